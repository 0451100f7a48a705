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

package api

import (
	"time"

	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/blinklabs-io/tontip/ledger"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

// NetworkResponse is returned by GET /api/v0/network
type NetworkResponse struct {
	Network    string      `json:"network"`
	MinReserve coins.Coins `json:"min_reserve"`
	Version    string      `json:"version"`
	DevMode    bool        `json:"dev_mode"`
}

// AccountResponse is returned by GET /api/v0/accounts/{address}
type AccountResponse struct {
	Address  address.Address   `json:"address"`
	Friendly string            `json:"friendly,omitempty"`
	Kind     string            `json:"kind"`
	Name     string            `json:"name,omitempty"`
	Balance  coins.Coins       `json:"balance"`
	Account  *account.Account  `json:"account,omitempty"`
	Owns     []address.Address `json:"owns,omitempty"`
}

// GetterResponse is returned by GET /api/v0/accounts/{address}/methods/{method}
type GetterResponse struct {
	Address address.Address `json:"address"`
	Method  string          `json:"method"`
	Kind    string          `json:"kind"`
	Value   string          `json:"value"`
}

// TransactionsResponse lists journal entries, newest first
type TransactionsResponse struct {
	Address      address.Address      `json:"address"`
	Transactions []ledger.Transaction `json:"transactions"`
}

// SubmitMessageRequest is the body of POST /api/v0/messages. Body is base64
// in JSON
type SubmitMessageRequest struct {
	From       address.Address `json:"from"`
	To         address.Address `json:"to"`
	Value      coins.Coins     `json:"value"`
	Body       []byte          `json:"body,omitempty"`
	Init       *account.Init   `json:"init,omitempty"`
	Bounce     bool            `json:"bounce"`
	ValidUntil *time.Time      `json:"validUntil,omitempty"`
}

// SubmitMessageResponse is returned with 202 Accepted, or 200 OK when the
// same message is already queued
type SubmitMessageResponse struct {
	Hash       string    `json:"hash"`
	ValidUntil time.Time `json:"validUntil"`
	Duplicate  bool      `json:"duplicate,omitempty"`
}

const (
	MessageStatusPending   = "pending"
	MessageStatusProcessed = "processed"
	MessageStatusUnknown   = "unknown"
)

// MessageStatusResponse is returned by GET /api/v0/messages/{hash}
type MessageStatusResponse struct {
	Hash         string               `json:"hash"`
	Status       string               `json:"status"`
	Op           string               `json:"op,omitempty"`
	ValidUntil   *time.Time           `json:"validUntil,omitempty"`
	Transactions []ledger.Transaction `json:"transactions,omitempty"`
}

// CreateWalletRequest is the body of POST /api/v0/wallets
type CreateWalletRequest struct {
	Name string `json:"name"`
}

// WalletResponse is returned by the wallet faucet routes
type WalletResponse struct {
	Address  address.Address `json:"address"`
	Friendly string          `json:"friendly,omitempty"`
	Name     string          `json:"name,omitempty"`
	Balance  coins.Coins     `json:"balance"`
}

// FundWalletRequest is the body of POST /api/v0/wallets/{address}/fund
type FundWalletRequest struct {
	Amount coins.Coins `json:"amount"`
}
