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

	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
)

// applyClaimReward pays the fixed reward to any sender while the balance,
// including the value attached to this message, covers it
func (a *Account) applyClaimReward(sender address.Address, effects *Effects) error {
	if a.Balance.LessThan(a.RewardAmount) {
		return fmt.Errorf(
			"%w: available %s, requested %s",
			ErrInsufficientFunds,
			a.Balance,
			a.RewardAmount,
		)
	}
	return a.send(sender, a.RewardAmount, nil, true, effects)
}

// applyWithdrawAll sweeps everything above the reserve to the owner. Whether
// there is anything to withdraw is decided on the balance held before this
// message
func (a *Account) applyWithdrawAll(
	prevBalance coins.Coins,
	sender address.Address,
	params Params,
	effects *Effects,
) error {
	if err := a.checkOwner(sender); err != nil {
		return err
	}
	if prevBalance.SaturatingSub(params.MinReserve).IsZero() {
		return fmt.Errorf(
			"%w: no funds beyond the reserve of %s",
			ErrInsufficientFunds,
			params.MinReserve,
		)
	}
	return a.send(a.Owner, a.Disposable(params), nil, true, effects)
}
