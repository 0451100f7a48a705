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
	"fmt"
	"strings"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
)

// Program selects which account program variant an account runs
type Program uint8

const (
	ProgramTipCounter Program = 1
	ProgramTreasury   Program = 2
)

func ParseProgram(s string) (Program, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tipcounter", "tip-counter", "tipbot":
		return ProgramTipCounter, nil
	case "treasury", "reward", "rewardcontract":
		return ProgramTreasury, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownProgram, s)
	}
}

func (p Program) Valid() bool {
	return p == ProgramTipCounter || p == ProgramTreasury
}

func (p Program) String() string {
	switch p {
	case ProgramTipCounter:
		return "tipcounter"
	case ProgramTreasury:
		return "treasury"
	default:
		return fmt.Sprintf("program(%d)", uint8(p))
	}
}

func (p Program) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Program) UnmarshalText(data []byte) error {
	tmp, err := ParseProgram(string(data))
	if err != nil {
		return err
	}
	*p = tmp
	return nil
}

func (p Program) supports(op Operation) bool {
	switch op.(type) {
	case Deploy:
		return true
	case Add, TipMessage:
		return p == ProgramTipCounter
	case ClaimReward, WithdrawAll:
		return p == ProgramTreasury
	default:
		return false
	}
}

func (p Program) supportsGetter(g Getter) bool {
	switch g {
	case GetOwner:
		return true
	case GetCounter, GetId, GetTotalTips:
		return p == ProgramTipCounter
	case GetRewardAmount:
		return p == ProgramTreasury
	default:
		return false
	}
}

// Init holds the constructor parameters of an account. Its encoding determines
// the account address
type Init struct {
	cbor.StructAsArray
	Program      Program         `json:"program"`
	Owner        address.Address `json:"owner"`
	SequenceID   uint64          `json:"sequenceId"`
	Counter      uint64          `json:"counter"`
	RewardAmount coins.Coins     `json:"rewardAmount"`
}

func (i Init) Validate() error {
	if !i.Program.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownProgram, uint8(i.Program))
	}
	return nil
}

func (i *Init) Encode() ([]byte, error) {
	return cbor.Encode(i)
}

// Address returns the address of the account created from these parameters
func (i *Init) Address() (address.Address, error) {
	if err := i.Validate(); err != nil {
		return address.Address{}, err
	}
	data, err := i.Encode()
	if err != nil {
		return address.Address{}, err
	}
	return address.FromInit(data), nil
}

func DecodeInit(data []byte) (Init, error) {
	var ret Init
	if _, err := cbor.Decode(data, &ret); err != nil {
		return Init{}, fmt.Errorf("%w: init: %w", ErrMalformedMessage, err)
	}
	if err := ret.Validate(); err != nil {
		return Init{}, err
	}
	return ret, nil
}
