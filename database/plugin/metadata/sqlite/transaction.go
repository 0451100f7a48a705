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

package sqlite

import (
	"github.com/blinklabs-io/tontip/database/models"
	"github.com/blinklabs-io/tontip/database/types"
)

// AddTransactions records processed messages
func (d *MetadataStoreSqlite) AddTransactions(
	txs []models.Transaction,
	txn types.Txn,
) error {
	if len(txs) == 0 {
		return nil
	}
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(&txs).Error
}

// GetTransactions returns the most recent transactions sent from or delivered
// to an address, newest first. A limit of 0 or less returns all of them
func (d *MetadataStoreSqlite) GetTransactions(
	addr string,
	limit int,
	txn types.Txn,
) ([]models.Transaction, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	query := db.Where("source = ? OR destination = ?", addr, addr).
		Order("lt DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ret []models.Transaction
	if result := query.Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetTransactionsByHash returns every transaction recorded for a message hash
func (d *MetadataStoreSqlite) GetTransactionsByHash(
	hash []byte,
	txn types.Txn,
) ([]models.Transaction, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Transaction
	result := db.Where("hash = ? OR parent_hash = ?", hash, hash).
		Order("lt").
		Order("id").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
