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

package ledger

import (
	"fmt"
	"strings"

	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/blinklabs-io/tontip/mempool"
)

// CreateWallet returns the address of the named wallet, creating and funding
// it with the configured initial balance on first use
func (ls *LedgerState) CreateWallet(name string) (address.Address, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return address.Address{}, fmt.Errorf("%w: empty name", ErrInvalidWalletName)
	}
	addr := address.FromName(name)
	ls.Lock()
	defer ls.Unlock()
	if _, ok := ls.wallets[addr]; ok {
		return addr, nil
	}
	if _, ok := ls.accounts[addr]; ok {
		return address.Address{}, fmt.Errorf(
			"%w: %s is a program account",
			ErrInvalidWalletName,
			addr,
		)
	}
	w := &wallet{
		Name:    name,
		Balance: ls.config.WalletBalance,
	}
	if err := ls.db.SetWallet(addr, w.Name, w.Balance, nil); err != nil {
		return address.Address{}, err
	}
	ls.wallets[addr] = w
	ls.updateMetrics()
	ls.logger.Info(
		"created wallet",
		"name", name,
		"address", addr.String(),
		"balance", w.Balance.String(),
	)
	return addr, nil
}

// Fund credits a known wallet and returns the new balance
func (ls *LedgerState) Fund(
	addr address.Address,
	amount coins.Coins,
) (coins.Coins, error) {
	ls.Lock()
	defer ls.Unlock()
	w, ok := ls.wallets[addr]
	if !ok {
		return coins.Coins{}, fmt.Errorf("%w: %s", ErrUnknownWallet, addr)
	}
	balance, err := w.Balance.Add(amount)
	if err != nil {
		return coins.Coins{}, err
	}
	if err := ls.db.SetWallet(addr, w.Name, balance, nil); err != nil {
		return coins.Coins{}, err
	}
	w.Balance = balance
	ls.logger.Debug(
		"funded wallet",
		"address", addr.String(),
		"amount", amount.String(),
		"balance", balance.String(),
	)
	return balance, nil
}

func (ls *LedgerState) WalletBalance(addr address.Address) (coins.Coins, error) {
	ls.RLock()
	defer ls.RUnlock()
	w, ok := ls.wallets[addr]
	if !ok {
		return coins.Coins{}, fmt.Errorf("%w: %s", ErrUnknownWallet, addr)
	}
	return w.Balance, nil
}

// ValidateMessage checks an external message against the current wallet
// balances before it enters the mempool
func (ls *LedgerState) ValidateMessage(msg mempool.ExternalMessage) error {
	ls.RLock()
	defer ls.RUnlock()
	return ls.validateMessage(msg.Message)
}

func (ls *LedgerState) validateMessage(msg Message) error {
	w, ok := ls.wallets[msg.From]
	if msg.From.IsZero() || !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWallet, msg.From)
	}
	if msg.To.IsZero() {
		return fmt.Errorf("%w: no destination", ErrInvalidDestination)
	}
	if w.Balance.LessThan(msg.Value) {
		return fmt.Errorf(
			"%w: available %s, requested %s",
			ErrInsufficientWalletBalance,
			w.Balance,
			msg.Value,
		)
	}
	if msg.Init != nil {
		addr, err := msg.Init.Address()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInit, err)
		}
		if addr != msg.To {
			return fmt.Errorf(
				"%w: init derives %s, destination is %s",
				ErrInvalidInit,
				addr,
				msg.To,
			)
		}
	}
	return nil
}
