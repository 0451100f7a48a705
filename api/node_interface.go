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
	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/blinklabs-io/tontip/event"
	"github.com/blinklabs-io/tontip/ledger"
	"github.com/blinklabs-io/tontip/mempool"
)

// ApiNode is the interface that the API server uses to query and fund the
// ledger. This decouples the HTTP server from the concrete LedgerState and
// enables testing with mock implementations.
type ApiNode interface {
	// Account returns the program state or wallet balance at an address
	Account(address.Address) (ledger.AccountInfo, error)

	// RunGetter runs a read-only method against a program account
	RunGetter(address.Address, string) (account.GetterResult, error)

	// Transactions returns the newest journal entries touching an address
	Transactions(address.Address, int) ([]ledger.Transaction, error)

	// TransactionsByHash returns the cascade started by an external message
	TransactionsByHash(string) ([]ledger.Transaction, error)

	// CreateWallet creates or looks up a named wallet
	CreateWallet(string) (address.Address, error)

	// Fund credits a wallet and returns its new balance
	Fund(address.Address, coins.Coins) (coins.Coins, error)

	// WalletBalance returns the balance of a wallet
	WalletBalance(address.Address) (coins.Coins, error)

	// Params returns the account engine parameters
	Params() account.Params
}

// MessagePool queues external messages for the ledger
type MessagePool interface {
	AddMessage(mempool.ExternalMessage) (string, error)
	GetMessage(string) (mempool.MempoolMessage, bool)
}

// EventSource feeds the event stream
type EventSource interface {
	RegisterSubscriber(event.EventType, event.Subscriber) event.SubscriberId
	Unsubscribe(event.EventType, event.SubscriberId)
}
