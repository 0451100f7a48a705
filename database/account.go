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

package database

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/database/models"
	"github.com/blinklabs-io/tontip/database/types"
)

const accountBlobKeyPrefix = "acct_"

func accountBlobKey(addr address.Address) []byte {
	return []byte(accountBlobKeyPrefix + addr.String())
}

// SetAccount stores the account snapshot in the blob store and updates the
// queryable account row
func (d *Database) SetAccount(acct account.Account, txn *Txn) error {
	return d.withTxn(txn, true, func(txn *Txn) error {
		snapshot, err := cbor.Encode(&acct)
		if err != nil {
			return fmt.Errorf("encode account snapshot: %w", err)
		}
		if err := d.Blob().Set(txn.Blob(), accountBlobKey(acct.Address), snapshot); err != nil {
			return err
		}
		initData, err := acct.Init.Encode()
		if err != nil {
			return fmt.Errorf("encode account init: %w", err)
		}
		tmpAccount := &models.Account{
			Address:      acct.Address.String(),
			Init:         initData,
			TotalTipped:  acct.TotalTipped,
			RewardAmount: acct.RewardAmount,
			Balance:      acct.Balance,
			SequenceID:   types.Uint64(acct.SequenceID),
			Counter:      types.Uint64(acct.Counter),
			LastLT:       acct.LastLT,
			Program:      uint8(acct.Program),
			Deployed:     acct.Deployed,
		}
		if !acct.Owner.IsZero() {
			tmpAccount.Owner = acct.Owner.String()
		}
		return d.Metadata().SetAccount(tmpAccount, txn.Metadata())
	})
}

// GetAccount loads an account snapshot
func (d *Database) GetAccount(
	addr address.Address,
	txn *Txn,
) (account.Account, error) {
	var ret account.Account
	err := d.withTxn(txn, false, func(txn *Txn) error {
		data, err := d.Blob().Get(txn.Blob(), accountBlobKey(addr))
		if err != nil {
			if errors.Is(err, types.ErrBlobKeyNotFound) {
				return models.ErrAccountNotFound
			}
			return err
		}
		ret, err = decodeAccount(data)
		return err
	})
	return ret, err
}

// Accounts returns every stored account snapshot
func (d *Database) Accounts(txn *Txn) ([]account.Account, error) {
	var ret []account.Account
	err := d.withTxn(txn, false, func(txn *Txn) error {
		iter := d.Blob().NewIterator(
			txn.Blob(),
			types.BlobIteratorOptions{
				Prefix: []byte(accountBlobKeyPrefix),
			},
		)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			acct, err := decodeAccount(data)
			if err != nil {
				return fmt.Errorf("account %s: %w", item.Key(), err)
			}
			ret = append(ret, acct)
		}
		return iter.Err()
	})
	return ret, err
}

// AccountsByOwner returns the rows of the deployed accounts owned by an address
func (d *Database) AccountsByOwner(
	owner address.Address,
	txn *Txn,
) ([]models.Account, error) {
	var ret []models.Account
	err := d.withTxn(txn, false, func(txn *Txn) error {
		var err error
		ret, err = d.Metadata().GetAccountsByOwner(owner.String(), txn.Metadata())
		return err
	})
	return ret, err
}

func decodeAccount(data []byte) (account.Account, error) {
	var ret account.Account
	if _, err := cbor.Decode(data, &ret); err != nil {
		return account.Account{}, fmt.Errorf("decode account snapshot: %w", err)
	}
	return ret, nil
}

// withTxn runs fn in txn, or in a new transaction that is committed (or
// released for reads) when txn is nil
func (d *Database) withTxn(txn *Txn, readWrite bool, fn func(*Txn) error) error {
	if txn != nil {
		return fn(txn)
	}
	txn = d.Transaction(readWrite)
	if !readWrite {
		defer txn.Release()
		return fn(txn)
	}
	return txn.Do(fn)
}
