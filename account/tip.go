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
	"math"
)

func (a *Account) applyAdd(op Add) error {
	if op.Amount == 0 || op.Amount > math.MaxUint32 {
		return fmt.Errorf(
			"%w: add amount %d outside 1..%d",
			ErrZeroOrInvalidAmount,
			op.Amount,
			uint64(math.MaxUint32),
		)
	}
	if a.Counter > math.MaxUint64-op.Amount {
		return fmt.Errorf("%w: counter overflow", ErrZeroOrInvalidAmount)
	}
	a.Counter += op.Amount
	return nil
}

func (a *Account) applyTip(op TipMessage, params Params, effects *Effects) error {
	if op.Amount.IsZero() {
		return fmt.Errorf("%w: tip amount is zero", ErrZeroOrInvalidAmount)
	}
	if op.Recipient.IsZero() {
		return fmt.Errorf("%w: no recipient", ErrInvalidRecipient)
	}
	disposable := a.Disposable(params)
	if disposable.LessThan(op.Amount) {
		return fmt.Errorf(
			"%w: available %s, requested %s",
			ErrInsufficientFunds,
			disposable,
			op.Amount,
		)
	}
	total, err := a.TotalTipped.Add(op.Amount)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrZeroOrInvalidAmount, err)
	}
	if err := a.send(op.Recipient, op.Amount, nil, true, effects); err != nil {
		return err
	}
	a.TotalTipped = total
	return nil
}
