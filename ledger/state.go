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

// Package ledger is the host ledger the account programs run in. It keeps
// funded wallets and program accounts, delivers messages along with the
// transfers they cause, and persists the result
package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/blinklabs-io/tontip/database"
	"github.com/blinklabs-io/tontip/event"
	"github.com/blinklabs-io/tontip/mempool"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// MaxCascadeMessages caps the messages delivered for one external message
	MaxCascadeMessages = 256

	mempoolConsumerName = "ledger"
)

// DefaultWalletBalance is the initial balance of wallets created by CreateWallet
var DefaultWalletBalance = coins.FromNano(1_000_000 * 1_000_000_000)

var (
	ErrUnknownWallet             = errors.New("unknown wallet")
	ErrInsufficientWalletBalance = errors.New("insufficient wallet balance")
	ErrInvalidWalletName         = errors.New("invalid wallet name")
	ErrInvalidDestination        = errors.New("invalid destination")
	ErrInvalidInit               = errors.New("init does not match destination")
	ErrAccountNotFound           = errors.New("account not found")
	ErrInvalidHash               = errors.New("invalid message hash")
)

type LedgerStateConfig struct {
	Logger        *slog.Logger
	EventBus      *event.EventBus
	PromRegistry  prometheus.Registerer
	Mempool       *mempool.Mempool
	DataDir       string
	BlobStore     string
	MetadataStore string
	Params        account.Params
	WalletBalance coins.Coins
}

type wallet struct {
	Name    string
	Balance coins.Coins
}

type LedgerState struct {
	sync.RWMutex
	config        LedgerStateConfig
	logger        *slog.Logger
	db            *database.Database
	metrics       stateMetrics
	wallets       map[address.Address]*wallet
	accounts      map[address.Address]account.Account
	lt            uint64
	processorWg   sync.WaitGroup
	processorStop func() bool
	closeOnce     sync.Once
}

func NewLedgerState(cfg LedgerStateConfig) (*LedgerState, error) {
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Params.MinReserve.IsZero() {
		cfg.Params = account.DefaultParams()
	}
	if cfg.WalletBalance.IsZero() {
		cfg.WalletBalance = DefaultWalletBalance
	}
	ls := &LedgerState{
		config: cfg,
		logger: cfg.Logger.With("component", "ledger"),
	}
	// Init metrics
	ls.metrics.init(cfg.PromRegistry)
	// Load database
	needsRecovery := false
	db, err := database.New(
		&database.Config{
			Logger:        cfg.Logger,
			PromRegistry:  cfg.PromRegistry,
			DataDir:       cfg.DataDir,
			BlobStore:     cfg.BlobStore,
			MetadataStore: cfg.MetadataStore,
		},
	)
	if db == nil {
		if err == nil {
			err = errors.New("empty database returned")
		}
		ls.logger.Error(
			"failed to create database",
			"error", err,
		)
		return nil, err
	}
	ls.db = db
	if err != nil {
		var dbErr database.CommitTimestampError
		if !errors.As(err, &dbErr) {
			_ = db.Close()
			return nil, err
		}
		ls.logger.Warn(
			"database initialization error, needs recovery",
			"error", err,
		)
		needsRecovery = true
	}
	if needsRecovery {
		if err := ls.recoverCommitTimestampConflict(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to recover database: %w", err)
		}
	}
	if err := ls.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ls, nil
}

// recoverCommitTimestampConflict rebuilds the account rows from the account
// snapshots, which are written first on commit
func (ls *LedgerState) recoverCommitTimestampConflict() error {
	txn := ls.db.Transaction(true)
	return txn.Do(func(txn *database.Txn) error {
		accounts, err := ls.db.Accounts(txn)
		if err != nil {
			return err
		}
		for _, acct := range accounts {
			if err := ls.db.SetAccount(acct, txn); err != nil {
				return err
			}
		}
		ls.logger.Info(
			"rebuilt account records from snapshots",
			"accounts", len(accounts),
		)
		return nil
	})
}

// load replaces the in-memory state with the persisted state
func (ls *LedgerState) load() error {
	txn := ls.db.Transaction(false)
	defer txn.Release()
	tmpWallets, err := ls.db.Wallets(txn)
	if err != nil {
		return fmt.Errorf("load wallets: %w", err)
	}
	tmpAccounts, err := ls.db.Accounts(txn)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	lt, err := ls.db.GetLogicalTime(txn)
	if err != nil {
		return fmt.Errorf("load logical time: %w", err)
	}
	wallets := make(map[address.Address]*wallet, len(tmpWallets))
	for _, w := range tmpWallets {
		addr, err := address.Parse(w.Address)
		if err != nil {
			return fmt.Errorf("load wallet %s: %w", w.Address, err)
		}
		wallets[addr] = &wallet{
			Name:    w.Name,
			Balance: w.Balance,
		}
	}
	accounts := make(map[address.Address]account.Account, len(tmpAccounts))
	for _, acct := range tmpAccounts {
		accounts[acct.Address] = acct
		lt = max(lt, acct.LastLT)
	}
	ls.wallets = wallets
	ls.accounts = accounts
	ls.lt = lt
	ls.updateMetrics()
	ls.logger.Debug(
		"loaded ledger state",
		"wallets", len(wallets),
		"accounts", len(accounts),
		"lt", lt,
	)
	return nil
}

func (ls *LedgerState) updateMetrics() {
	deployed := 0
	for _, acct := range ls.accounts {
		if acct.Deployed {
			deployed++
		}
	}
	ls.metrics.accounts.Set(float64(deployed))
	ls.metrics.wallets.Set(float64(len(ls.wallets)))
	ls.metrics.logicalTime.Set(float64(ls.lt))
}

func (ls *LedgerState) Database() *database.Database {
	return ls.db
}

func (ls *LedgerState) Params() account.Params {
	return ls.config.Params
}

// Start processes external messages from the mempool until ctx is done or
// the ledger is closed
func (ls *LedgerState) Start(ctx context.Context) error {
	if ls.config.Mempool == nil {
		return nil
	}
	consumer := ls.config.Mempool.AddConsumer(mempoolConsumerName)
	ls.Lock()
	ls.processorStop = context.AfterFunc(ctx, consumer.Close)
	ls.Unlock()
	ls.processorWg.Add(1)
	go ls.processMempool(ctx, consumer)
	return nil
}

func (ls *LedgerState) processMempool(
	ctx context.Context,
	consumer *mempool.MempoolConsumer,
) {
	defer ls.processorWg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		msg := consumer.NextMessage(true)
		if msg == nil {
			return
		}
		ls.processExternalMessage(ctx, msg)
	}
}

func (ls *LedgerState) processExternalMessage(
	ctx context.Context,
	msg *mempool.MempoolMessage,
) {
	defer ls.config.Mempool.RemoveMessage(msg.Hash)
	if msg.Message.Expired(timeNow()) {
		ls.logger.Debug(
			"dropped expired message",
			"msg_hash", msg.Hash,
		)
		return
	}
	hash, err := hex.DecodeString(msg.Hash)
	if err != nil {
		ls.logger.Warn(
			"invalid external message hash",
			"msg_hash", msg.Hash,
			"error", err,
		)
		return
	}
	result, err := ls.submit(ctx, msg.Message.Message, hash)
	if err != nil {
		ls.logger.Warn(
			"failed to process external message",
			"msg_hash", msg.Hash,
			"error", err,
		)
		return
	}
	ls.logger.Debug(
		"processed external message",
		"msg_hash", msg.Hash,
		"success", result.Success(),
		"transactions", len(result.Transactions),
	)
}

// Close stops the mempool processor and closes the database
func (ls *LedgerState) Close() error {
	var err error
	ls.closeOnce.Do(func() {
		if ls.config.Mempool != nil {
			ls.config.Mempool.RemoveConsumer(mempoolConsumerName)
		}
		ls.Lock()
		stop := ls.processorStop
		ls.Unlock()
		if stop != nil {
			stop()
		}
		ls.processorWg.Wait()
		err = ls.db.Close()
	})
	return err
}
