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

package models

import (
	"errors"
	"time"

	"github.com/blinklabs-io/tontip/coins"
)

var ErrWalletNotFound = errors.New("wallet not found")

// Wallet is a plain balance-holding address without a program
type Wallet struct {
	Address   string `gorm:"uniqueIndex;size:80"`
	Name      string `gorm:"index"`
	Balance   coins.Coins
	CreatedAt time.Time
	UpdatedAt time.Time
	ID        uint `gorm:"primarykey"`
}

func (Wallet) TableName() string {
	return "wallet"
}
