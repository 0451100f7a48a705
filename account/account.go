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

// Package account implements the account programs: a tip-forwarding counter
// and a pooled-reward treasury. Every inbound message is applied by Apply, a
// pure function from the current state to either a new state plus outbound
// transfers, or the unchanged state plus an error.
package account

import (
	"fmt"

	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
)

var (
	// DefaultMinReserve is the balance kept back for continued account existence
	DefaultMinReserve = coins.FromNano(10_000_000)
	// DefaultRewardAmount is the treasury reward used when the constructor leaves it unset
	DefaultRewardAmount = coins.FromNano(10_000_000)
)

// Account is the persistent state of one account program
type Account struct {
	Address      address.Address `json:"address"`
	Init         Init            `json:"init"`
	Program      Program         `json:"program"`
	Deployed     bool            `json:"deployed"`
	Owner        address.Address `json:"owner"`
	SequenceID   uint64          `json:"sequenceId"`
	Counter      uint64          `json:"counter"`
	TotalTipped  coins.Coins     `json:"totalTipped"`
	RewardAmount coins.Coins     `json:"rewardAmount"`
	Balance      coins.Coins     `json:"balance"`
	LastLT       uint64          `json:"lastLt"`
}

// New returns the undeployed account for the given constructor parameters
func New(init Init) (Account, error) {
	addr, err := init.Address()
	if err != nil {
		return Account{}, err
	}
	return Account{
		Address: addr,
		Init:    init,
		Program: init.Program,
	}, nil
}

type Params struct {
	MinReserve coins.Coins
}

func DefaultParams() Params {
	return Params{
		MinReserve: DefaultMinReserve,
	}
}

// Inbound is a message delivered to an account. Sender is authenticated by the host
type Inbound struct {
	Sender address.Address
	Value  coins.Coins
	Op     Operation
	LT     uint64
}

// Transfer is an outbound value transfer issued by an account
type Transfer struct {
	To     address.Address
	Value  coins.Coins
	Body   []byte
	Bounce bool
}

type Effects struct {
	Deployed  bool
	Transfers []Transfer
}

// Apply processes one inbound message. The attached value is credited first
// and the operation then runs against the credited balance. On error the
// original state is returned with no effects
func Apply(state Account, msg Inbound, params Params) (Account, Effects, error) {
	next, effects, err := apply(state, msg, params)
	if err != nil {
		return state, Effects{}, err
	}
	return next, effects, nil
}

func apply(
	state Account,
	msg Inbound,
	params Params,
) (Account, Effects, error) {
	var effects Effects
	if msg.Op == nil {
		return state, effects, fmt.Errorf("%w: no operation", ErrMalformedMessage)
	}
	if !state.Program.supports(msg.Op) {
		return state, effects, fmt.Errorf(
			"%w: %s is not supported by %s",
			ErrMalformedMessage,
			msg.Op.Name(),
			state.Program,
		)
	}
	next := state
	// Deposit
	balance, err := next.Balance.Add(msg.Value)
	if err != nil {
		return state, effects, fmt.Errorf("%w: %w", ErrZeroOrInvalidAmount, err)
	}
	next.Balance = balance
	if !next.Deployed {
		next.deploy(msg.Sender)
		effects.Deployed = true
	}
	if msg.LT > next.LastLT {
		next.LastLT = msg.LT
	}
	switch op := msg.Op.(type) {
	case Deploy:
		err = next.applyDeploy(op, msg, &effects)
	case Add:
		err = next.applyAdd(op)
	case TipMessage:
		err = next.applyTip(op, params, &effects)
	case ClaimReward:
		err = next.applyClaimReward(msg.Sender, &effects)
	case WithdrawAll:
		err = next.applyWithdrawAll(state.Balance, msg.Sender, params, &effects)
	default:
		err = fmt.Errorf("%w: unknown operation %T", ErrMalformedMessage, op)
	}
	if err != nil {
		return state, Effects{}, err
	}
	return next, effects, nil
}

// deploy seeds the persistent state from the constructor parameters. It only
// runs for the first accepted message
func (a *Account) deploy(sender address.Address) {
	a.Deployed = true
	a.Owner = a.Init.Owner
	if a.Owner.IsZero() {
		a.Owner = sender
	}
	a.SequenceID = a.Init.SequenceID
	a.Counter = a.Init.Counter
	a.TotalTipped = coins.Zero()
	a.RewardAmount = a.Init.RewardAmount
	if a.Program == ProgramTreasury && a.RewardAmount.IsZero() {
		a.RewardAmount = DefaultRewardAmount
	}
}

func (a *Account) applyDeploy(op Deploy, msg Inbound, effects *Effects) error {
	if op.Plain {
		return nil
	}
	body, err := EncodeDeployOk(op.QueryID)
	if err != nil {
		return err
	}
	// The acknowledgement carries the attached value back to the deployer
	return a.send(msg.Sender, msg.Value, body, false, effects)
}

// checkOwner guards privileged operations
func (a *Account) checkOwner(sender address.Address) error {
	if sender != a.Owner {
		return fmt.Errorf(
			"%w: sender %s is not the owner",
			ErrAccessDenied,
			sender,
		)
	}
	return nil
}

// send debits the balance and records an outbound transfer
func (a *Account) send(
	to address.Address,
	value coins.Coins,
	body []byte,
	bounce bool,
	effects *Effects,
) error {
	balance, err := a.Balance.Sub(value)
	if err != nil {
		return fmt.Errorf(
			"%w: available %s, requested %s",
			ErrInsufficientFunds,
			a.Balance,
			value,
		)
	}
	a.Balance = balance
	effects.Transfers = append(
		effects.Transfers,
		Transfer{
			To:     to,
			Value:  value,
			Body:   body,
			Bounce: bounce,
		},
	)
	return nil
}

// Disposable returns the balance above the minimal reserve
func (a Account) Disposable(params Params) coins.Coins {
	return a.Balance.SaturatingSub(params.MinReserve)
}
