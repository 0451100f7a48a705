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
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
)

const (
	AccountKindWallet  = "wallet"
	AccountKindProgram = "program"
)

// AccountInfo describes whatever lives at an address
type AccountInfo struct {
	Account *account.Account  `json:"account,omitempty"`
	Address address.Address   `json:"address"`
	Kind    string            `json:"kind"`
	Name    string            `json:"name,omitempty"`
	Balance coins.Coins       `json:"balance"`
	Owns    []address.Address `json:"owns,omitempty"`
}

// Account returns the program state or wallet balance at an address. Wallets
// list the deployed accounts they own
func (ls *LedgerState) Account(addr address.Address) (AccountInfo, error) {
	ls.RLock()
	acct, isProgram := ls.accounts[addr]
	w, isWallet := ls.wallets[addr]
	ret := AccountInfo{Address: addr}
	if isProgram {
		ret.Kind = AccountKindProgram
		ret.Balance = acct.Balance
		ret.Account = &acct
	} else if isWallet {
		ret.Kind = AccountKindWallet
		ret.Name = w.Name
		ret.Balance = w.Balance
	}
	ls.RUnlock()
	if !isProgram && !isWallet {
		return AccountInfo{}, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if isWallet {
		owned, err := ls.db.AccountsByOwner(addr, nil)
		if err != nil {
			return AccountInfo{}, err
		}
		for _, tmpAcct := range owned {
			ownedAddr, err := address.Parse(tmpAcct.Address)
			if err != nil {
				return AccountInfo{}, err
			}
			ret.Owns = append(ret.Owns, ownedAddr)
		}
	}
	return ret, nil
}

// RunGetter runs a read-only method against a program account
func (ls *LedgerState) RunGetter(
	addr address.Address,
	method string,
) (account.GetterResult, error) {
	getter, err := account.DecodeGetter(method)
	if err != nil {
		return account.GetterResult{}, err
	}
	ls.RLock()
	acct, ok := ls.accounts[addr]
	ls.RUnlock()
	if !ok {
		return account.GetterResult{}, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return account.Query(acct, getter)
}

// Transactions returns the most recent journal entries touching an address
func (ls *LedgerState) Transactions(
	addr address.Address,
	limit int,
) ([]Transaction, error) {
	tmpTxs, err := ls.db.Transactions(addr, limit, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]Transaction, 0, len(tmpTxs))
	for _, tmpTx := range tmpTxs {
		tx, err := transactionFromModel(tmpTx)
		if err != nil {
			return nil, err
		}
		ret = append(ret, tx)
	}
	return ret, nil
}

// TransactionsByHash returns the journal entries of the cascade started by an
// external message, in delivery order
func (ls *LedgerState) TransactionsByHash(hash string) ([]Transaction, error) {
	hashBytes, err := hex.DecodeString(hash)
	if err != nil || len(hashBytes) != 32 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	tmpTxs, err := ls.db.TransactionsByHash(hashBytes, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]Transaction, 0, len(tmpTxs))
	for _, tmpTx := range tmpTxs {
		tx, err := transactionFromModel(tmpTx)
		if err != nil {
			return nil, err
		}
		ret = append(ret, tx)
	}
	return ret, nil
}

// MessageBody returns the stored body of a delivered message
func (ls *LedgerState) MessageBody(hash string) ([]byte, error) {
	hashBytes, err := hex.DecodeString(hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	body, err := ls.db.GetMessageBody(hashBytes, nil)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("message body not found")
	}
	return body, nil
}
