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
	"errors"

	"github.com/blinklabs-io/tontip/database/models"
	"github.com/blinklabs-io/tontip/database/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (d *MetadataStoreSqlite) GetWallet(
	addr string,
	txn types.Txn,
) (*models.Wallet, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.Wallet{}
	result := db.Where("address = ?", addr).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrWalletNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

func (d *MetadataStoreSqlite) GetWallets(txn types.Txn) ([]models.Wallet, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Wallet
	if result := db.Order("id").Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// SetWallet inserts a wallet or updates its balance. The name of an existing
// wallet is kept
func (d *MetadataStoreSqlite) SetWallet(
	wallet *models.Wallet,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
	}).Create(wallet)
	return result.Error
}

// DeleteWallet removes a wallet row. Deleting a missing wallet is not an error
func (d *MetadataStoreSqlite) DeleteWallet(addr string, txn types.Txn) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Where("address = ?", addr).Delete(&models.Wallet{}).Error
}
