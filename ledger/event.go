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
	"fmt"
	"time"

	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/blinklabs-io/tontip/database/models"
	"github.com/blinklabs-io/tontip/event"
)

const TransactionEventType event.EventType = "ledger.transaction"

// Transaction is the journal entry for one delivered message. ParentHash is
// the hash of the external message that started the cascade, and is empty for
// the external message itself
type Transaction struct {
	Timestamp   time.Time       `json:"timestamp"`
	Hash        string          `json:"hash"`
	ParentHash  string          `json:"parentHash,omitempty"`
	Op          string          `json:"op"`
	Error       string          `json:"error,omitempty"`
	From        address.Address `json:"from"`
	To          address.Address `json:"to"`
	Value       coins.Coins     `json:"value"`
	LT          uint64          `json:"lt"`
	ExitCode    int             `json:"exitCode"`
	OutMessages int             `json:"outMessages"`
	Success     bool            `json:"success"`
	Deployed    bool            `json:"deployed"`
	Bounced     bool            `json:"bounced"`
}

func (t Transaction) toModel() (models.Transaction, error) {
	hash, err := hex.DecodeString(t.Hash)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction hash: %w", err)
	}
	var parentHash []byte
	if t.ParentHash != "" {
		parentHash, err = hex.DecodeString(t.ParentHash)
		if err != nil {
			return models.Transaction{}, fmt.Errorf("parent hash: %w", err)
		}
	}
	return models.Transaction{
		Hash:        hash,
		ParentHash:  parentHash,
		Source:      t.From.String(),
		Destination: t.To.String(),
		Op:          t.Op,
		Error:       t.Error,
		Value:       t.Value,
		CreatedAt:   t.Timestamp,
		LT:          t.LT,
		ExitCode:    t.ExitCode,
		OutMessages: t.OutMessages,
		Success:     t.Success,
		Deployed:    t.Deployed,
		Bounced:     t.Bounced,
	}, nil
}

func transactionFromModel(m models.Transaction) (Transaction, error) {
	from, err := address.Parse(m.Source)
	if err != nil {
		return Transaction{}, err
	}
	to, err := address.Parse(m.Destination)
	if err != nil {
		return Transaction{}, err
	}
	ret := Transaction{
		Timestamp:   m.CreatedAt,
		Hash:        hex.EncodeToString(m.Hash),
		Op:          m.Op,
		Error:       m.Error,
		From:        from,
		To:          to,
		Value:       m.Value,
		LT:          m.LT,
		ExitCode:    m.ExitCode,
		OutMessages: m.OutMessages,
		Success:     m.Success,
		Deployed:    m.Deployed,
		Bounced:     m.Bounced,
	}
	if len(m.ParentHash) > 0 {
		ret.ParentHash = hex.EncodeToString(m.ParentHash)
	}
	return ret, nil
}
