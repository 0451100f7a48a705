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
	"github.com/blinklabs-io/tontip/database/types"
)

var ErrAccountNotFound = errors.New("account not found")

// Account is the queryable row for a program account. The full state is kept
// as a snapshot in the blob store
type Account struct {
	Address      string `gorm:"uniqueIndex;size:80"`
	Owner        string `gorm:"index;size:80"`
	Init         []byte
	TotalTipped  coins.Coins
	RewardAmount coins.Coins
	Balance      coins.Coins
	UpdatedAt    time.Time
	ID           uint `gorm:"primarykey"`
	SequenceID   types.Uint64
	Counter      types.Uint64
	LastLT       uint64 `gorm:"index"`
	Program      uint8  `gorm:"index"`
	Deployed     bool
}

func (Account) TableName() string {
	return "account"
}
