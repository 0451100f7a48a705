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

package metadata

import (
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/tontip/database/models"
	"github.com/blinklabs-io/tontip/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/tontip/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Accounts
	GetAccount(string, types.Txn) (*models.Account, error)
	GetAccountsByOwner(string, types.Txn) ([]models.Account, error)
	SetAccount(*models.Account, types.Txn) error

	// Wallets
	GetWallet(string, types.Txn) (*models.Wallet, error)
	GetWallets(types.Txn) ([]models.Wallet, error)
	SetWallet(*models.Wallet, types.Txn) error
	DeleteWallet(string, types.Txn) error

	// Transactions
	AddTransactions([]models.Transaction, types.Txn) error
	GetTransactions(string, int, types.Txn) ([]models.Transaction, error)
	GetTransactionsByHash([]byte, types.Txn) ([]models.Transaction, error)
}

// New returns the metadata store selected by name
func New(
	storeName string,
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (MetadataStore, error) {
	switch storeName {
	case "sqlite":
		store, err := sqlite.New(dataDir, logger, promRegistry)
		if err != nil {
			if store != nil {
				_ = store.Close()
			}
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown metadata store: %s", storeName)
	}
}
