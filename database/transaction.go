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

	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/database/models"
	"github.com/blinklabs-io/tontip/database/types"
)

const messageBodyBlobKeyPrefix = "body_"

func messageBodyBlobKey(hash []byte) []byte {
	ret := make([]byte, 0, len(messageBodyBlobKeyPrefix)+len(hash))
	ret = append(ret, messageBodyBlobKeyPrefix...)
	return append(ret, hash...)
}

// AddTransactions appends entries to the transaction journal
func (d *Database) AddTransactions(txs []models.Transaction, txn *Txn) error {
	if len(txs) == 0 {
		return nil
	}
	return d.withTxn(txn, true, func(txn *Txn) error {
		return d.Metadata().AddTransactions(txs, txn.Metadata())
	})
}

// Transactions returns the journal entries touching an address, newest first
func (d *Database) Transactions(
	addr address.Address,
	limit int,
	txn *Txn,
) ([]models.Transaction, error) {
	var ret []models.Transaction
	err := d.withTxn(txn, false, func(txn *Txn) error {
		var err error
		ret, err = d.Metadata().GetTransactions(addr.String(), limit, txn.Metadata())
		return err
	})
	return ret, err
}

// TransactionsByHash returns the transaction for a message hash followed by
// the transactions of the cascade it started
func (d *Database) TransactionsByHash(
	hash []byte,
	txn *Txn,
) ([]models.Transaction, error) {
	var ret []models.Transaction
	err := d.withTxn(txn, false, func(txn *Txn) error {
		var err error
		ret, err = d.Metadata().GetTransactionsByHash(hash, txn.Metadata())
		return err
	})
	return ret, err
}

// SetMessageBody stores a raw message body by message hash
func (d *Database) SetMessageBody(hash []byte, body []byte, txn *Txn) error {
	return d.withTxn(txn, true, func(txn *Txn) error {
		return d.Blob().Set(txn.Blob(), messageBodyBlobKey(hash), body)
	})
}

// GetMessageBody returns a stored message body, or nil when none was stored
func (d *Database) GetMessageBody(hash []byte, txn *Txn) ([]byte, error) {
	var ret []byte
	err := d.withTxn(txn, false, func(txn *Txn) error {
		var err error
		ret, err = d.Blob().Get(txn.Blob(), messageBodyBlobKey(hash))
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil
		}
		return err
	})
	return ret, err
}
