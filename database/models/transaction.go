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
	"time"

	"github.com/blinklabs-io/tontip/coins"
)

// Transaction records the processing of one delivered message
type Transaction struct {
	Hash        []byte `gorm:"index;size:32"`
	ParentHash  []byte `gorm:"index;size:32"`
	Source      string `gorm:"index;size:80"`
	Destination string `gorm:"index;size:80"`
	Op          string
	Error       string
	Value       coins.Coins
	CreatedAt   time.Time
	ID          uint   `gorm:"primaryKey"`
	LT          uint64 `gorm:"index"`
	ExitCode    int
	OutMessages int
	Success     bool
	Deployed    bool
	Bounced     bool
}

func (Transaction) TableName() string {
	return "transaction"
}
