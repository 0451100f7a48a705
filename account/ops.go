// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package account

import (
	"errors"
	"fmt"
	"math"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
)

// Message opcodes
const (
	OpcodeDeploy      uint32 = 0x946a98b6
	OpcodeDeployOk    uint32 = 0xaff90f57
	OpcodeAdd         uint32 = 0x87d43ac2
	OpcodeTipMessage  uint32 = 0x5a4c3b2e
	OpcodeClaimReward uint32 = 0x3e4a6d01
	OpcodeWithdrawAll uint32 = 0x1fb64f09
)

// Operation is a decoded inbound message. The set of implementations is closed
type Operation interface {
	Opcode() uint32
	Name() string
	isOperation()
}

// Deploy initializes the account on first contact and is a no-op afterwards.
// Plain is set for messages with an empty body, which are not acknowledged
type Deploy struct {
	QueryID uint64
	Plain   bool
}

type Add struct {
	Amount uint64
}

type TipMessage struct {
	Amount    coins.Coins
	Recipient address.Address
	Sender    address.Address
}

type ClaimReward struct{}

type WithdrawAll struct{}

func (Deploy) Opcode() uint32      { return OpcodeDeploy }
func (Add) Opcode() uint32         { return OpcodeAdd }
func (TipMessage) Opcode() uint32  { return OpcodeTipMessage }
func (ClaimReward) Opcode() uint32 { return OpcodeClaimReward }
func (WithdrawAll) Opcode() uint32 { return OpcodeWithdrawAll }

func (Deploy) Name() string      { return "deploy" }
func (Add) Name() string         { return "add" }
func (TipMessage) Name() string  { return "tip" }
func (ClaimReward) Name() string { return "claim_reward" }
func (WithdrawAll) Name() string { return "withdraw_all" }

func (Deploy) isOperation()      {}
func (Add) isOperation()         {}
func (TipMessage) isOperation()  {}
func (ClaimReward) isOperation() {}
func (WithdrawAll) isOperation() {}

// Wire forms of the message bodies
type opcodeBody struct {
	cbor.StructAsArray
	Opcode uint32
}

type queryIdBody struct {
	cbor.StructAsArray
	Opcode  uint32
	QueryID uint64
}

type addBody struct {
	cbor.StructAsArray
	Opcode uint32
	Amount uint64
}

type tipBody struct {
	cbor.StructAsArray
	Opcode    uint32
	Amount    coins.Coins
	Recipient string
	Sender    string
}

// Encode returns the message body for an operation
func Encode(op Operation) ([]byte, error) {
	switch o := op.(type) {
	case Deploy:
		if o.Plain {
			return nil, nil
		}
		return cbor.Encode(&queryIdBody{Opcode: OpcodeDeploy, QueryID: o.QueryID})
	case Add:
		return cbor.Encode(&addBody{Opcode: OpcodeAdd, Amount: o.Amount})
	case TipMessage:
		return cbor.Encode(
			&tipBody{
				Opcode:    OpcodeTipMessage,
				Amount:    o.Amount,
				Recipient: o.Recipient.String(),
				Sender:    o.Sender.String(),
			},
		)
	case ClaimReward, WithdrawAll:
		return cbor.Encode(&opcodeBody{Opcode: op.Opcode()})
	default:
		return nil, fmt.Errorf("%w: unknown operation %T", ErrMalformedMessage, op)
	}
}

// EncodeDeployOk returns the body of the acknowledgement sent in reply to Deploy
func EncodeDeployOk(queryID uint64) ([]byte, error) {
	return cbor.Encode(&queryIdBody{Opcode: OpcodeDeployOk, QueryID: queryID})
}

// PeekOpcode returns the opcode of a message body without decoding the rest of it
func PeekOpcode(body []byte) (uint32, error) {
	var tmp []any
	if _, err := cbor.Decode(body, &tmp); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if len(tmp) == 0 {
		return 0, fmt.Errorf("%w: missing opcode", ErrMalformedMessage)
	}
	opcode, ok := tmp[0].(uint64)
	if !ok || opcode > math.MaxUint32 {
		return 0, fmt.Errorf(
			"%w: opcode is not a uint32: %v",
			ErrMalformedMessage,
			tmp[0],
		)
	}
	return uint32(opcode), nil
}

// OpName returns a short name for the message body, for use in journals and
// logs. It never fails
func OpName(body []byte) string {
	if len(body) == 0 {
		return "transfer"
	}
	opcode, err := PeekOpcode(body)
	if err != nil {
		return "unknown"
	}
	switch opcode {
	case OpcodeDeploy:
		return Deploy{}.Name()
	case OpcodeDeployOk:
		return "deploy_ok"
	case OpcodeAdd:
		return Add{}.Name()
	case OpcodeTipMessage:
		return TipMessage{}.Name()
	case OpcodeClaimReward:
		return ClaimReward{}.Name()
	case OpcodeWithdrawAll:
		return WithdrawAll{}.Name()
	default:
		return fmt.Sprintf("0x%08x", opcode)
	}
}

// Decode converts an inbound message body into an Operation. An empty body is
// a plain Deploy
func Decode(body []byte) (Operation, error) {
	if len(body) == 0 {
		return Deploy{Plain: true}, nil
	}
	opcode, err := PeekOpcode(body)
	if err != nil {
		return nil, err
	}
	switch opcode {
	case OpcodeDeploy:
		var tmp queryIdBody
		if err := decodeBody(body, &tmp); err != nil {
			return nil, err
		}
		return Deploy{QueryID: tmp.QueryID}, nil
	case OpcodeAdd:
		var tmp addBody
		if err := decodeBody(body, &tmp); err != nil {
			return nil, err
		}
		return Add{Amount: tmp.Amount}, nil
	case OpcodeTipMessage:
		var tmp tipBody
		if err := decodeBody(body, &tmp); err != nil {
			return nil, err
		}
		recipient, err := address.Parse(tmp.Recipient)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
		}
		sender, err := address.Parse(tmp.Sender)
		if err != nil {
			return nil, fmt.Errorf("%w: sender: %w", ErrMalformedMessage, err)
		}
		return TipMessage{
			Amount:    tmp.Amount,
			Recipient: recipient,
			Sender:    sender,
		}, nil
	case OpcodeClaimReward:
		if err := decodeBody(body, &opcodeBody{}); err != nil {
			return nil, err
		}
		return ClaimReward{}, nil
	case OpcodeWithdrawAll:
		if err := decodeBody(body, &opcodeBody{}); err != nil {
			return nil, err
		}
		return WithdrawAll{}, nil
	default:
		return nil, fmt.Errorf(
			"%w: unknown opcode 0x%08x",
			ErrMalformedMessage,
			opcode,
		)
	}
}

func decodeBody(body []byte, dest any) error {
	n, err := cbor.Decode(body, dest)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if n != len(body) {
		return fmt.Errorf(
			"%w: %d trailing bytes",
			ErrMalformedMessage,
			len(body)-n,
		)
	}
	return nil
}

// IsMalformed reports whether err was caused by an undecodable message
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedMessage)
}
