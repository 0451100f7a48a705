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
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/blinklabs-io/tontip/database/models"
)

// SetWallet creates or updates a plain wallet balance. The name is only
// written when the wallet is first created
func (d *Database) SetWallet(
	addr address.Address,
	name string,
	balance coins.Coins,
	txn *Txn,
) error {
	return d.withTxn(txn, true, func(txn *Txn) error {
		return d.Metadata().SetWallet(
			&models.Wallet{
				Address: addr.String(),
				Name:    name,
				Balance: balance,
			},
			txn.Metadata(),
		)
	})
}

// DeleteWallet drops a plain wallet, used when its address becomes a program
// account
func (d *Database) DeleteWallet(addr address.Address, txn *Txn) error {
	return d.withTxn(txn, true, func(txn *Txn) error {
		return d.Metadata().DeleteWallet(addr.String(), txn.Metadata())
	})
}

func (d *Database) GetWallet(
	addr address.Address,
	txn *Txn,
) (*models.Wallet, error) {
	var ret *models.Wallet
	err := d.withTxn(txn, false, func(txn *Txn) error {
		var err error
		ret, err = d.Metadata().GetWallet(addr.String(), txn.Metadata())
		return err
	})
	return ret, err
}

func (d *Database) Wallets(txn *Txn) ([]models.Wallet, error) {
	var ret []models.Wallet
	err := d.withTxn(txn, false, func(txn *Txn) error {
		var err error
		ret, err = d.Metadata().GetWallets(txn.Metadata())
		return err
	})
	return ret, err
}
