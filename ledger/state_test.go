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

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/blinklabs-io/tontip/event"
	"github.com/blinklabs-io/tontip/ledger"
	"github.com/blinklabs-io/tontip/mempool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var testWalletBalance = coins.MustParse("100")

func newTestLedger(t *testing.T, dataDir string) *ledger.LedgerState {
	t.Helper()
	ls, err := ledger.NewLedgerState(
		ledger.LedgerStateConfig{
			DataDir:       dataDir,
			PromRegistry:  prometheus.NewRegistry(),
			WalletBalance: testWalletBalance,
		},
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ls.Close()
	})
	return ls
}

func createWallet(t *testing.T, ls *ledger.LedgerState, name string) address.Address {
	t.Helper()
	addr, err := ls.CreateWallet(name)
	require.NoError(t, err)
	return addr
}

func requireBalance(
	t *testing.T,
	ls *ledger.LedgerState,
	addr address.Address,
	expected string,
) {
	t.Helper()
	info, err := ls.Account(addr)
	require.NoError(t, err)
	assert.Equal(t, expected, info.Balance.String(), "balance of %s", addr)
}

func TestCreateWallet(t *testing.T) {
	ls := newTestLedger(t, "")
	addr := createWallet(t, ls, "alice")
	assert.Equal(t, address.FromName("alice"), addr)
	balance, err := ls.WalletBalance(addr)
	require.NoError(t, err)
	assert.Equal(t, "100", balance.String())

	// Creating again returns the same wallet without funding it twice
	again := createWallet(t, ls, "alice")
	assert.Equal(t, addr, again)
	balance, err = ls.WalletBalance(addr)
	require.NoError(t, err)
	assert.Equal(t, "100", balance.String())

	_, err = ls.CreateWallet("  ")
	require.ErrorIs(t, err, ledger.ErrInvalidWalletName)

	info, err := ls.Account(addr)
	require.NoError(t, err)
	assert.Equal(t, ledger.AccountKindWallet, info.Kind)
	assert.Equal(t, "alice", info.Name)
}

func TestFund(t *testing.T) {
	ls := newTestLedger(t, "")
	addr := createWallet(t, ls, "alice")
	balance, err := ls.Fund(addr, coins.MustParse("2.5"))
	require.NoError(t, err)
	assert.Equal(t, "102.5", balance.String())

	_, err = ls.Fund(address.FromName("nobody"), coins.MustParse("1"))
	require.ErrorIs(t, err, ledger.ErrUnknownWallet)
	_, err = ls.WalletBalance(address.FromName("nobody"))
	require.ErrorIs(t, err, ledger.ErrUnknownWallet)
}

func TestAccountNotFound(t *testing.T) {
	ls := newTestLedger(t, "")
	_, err := ls.Account(address.FromName("nobody"))
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
	_, err = ls.RunGetter(address.FromName("nobody"), "counter")
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestReopen(t *testing.T) {
	dataDir := t.TempDir()
	ls, err := ledger.NewLedgerState(
		ledger.LedgerStateConfig{
			DataDir:       dataDir,
			WalletBalance: testWalletBalance,
		},
	)
	require.NoError(t, err)
	alice, err := ls.CreateWallet("alice")
	require.NoError(t, err)
	init := account.Init{Program: account.ProgramTipCounter, SequenceID: 9}
	result, err := ls.Deploy(
		context.Background(),
		alice,
		init,
		coins.MustParse("0.05"),
		1,
	)
	require.NoError(t, err)
	require.True(t, result.Success())
	counterAddr := result.Transactions[0].To
	lastLT := result.Transactions[len(result.Transactions)-1].LT
	require.NoError(t, ls.Close())

	ls = newTestLedger(t, dataDir)
	res, err := ls.RunGetter(counterAddr, "id")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), res.Value)
	res, err = ls.RunGetter(counterAddr, "owner")
	require.NoError(t, err)
	assert.Equal(t, alice, res.Value)
	requireBalance(t, ls, alice, "100")
	info, err := ls.Account(alice)
	require.NoError(t, err)
	assert.Equal(t, []address.Address{counterAddr}, info.Owns)

	// Logical time continues after a restart
	body, err := account.Encode(account.Add{Amount: 1})
	require.NoError(t, err)
	result, err = ls.SubmitMessage(
		context.Background(),
		ledger.Message{
			From:   alice,
			To:     counterAddr,
			Value:  coins.MustParse("0.01"),
			Body:   body,
			Bounce: true,
		},
	)
	require.NoError(t, err)
	assert.Greater(t, result.Transactions[0].LT, lastLT)
}

func TestMempoolProcessing(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	pool := mempool.NewMempool(mempool.MempoolConfig{EventBus: bus})
	defer pool.Stop(context.Background()) //nolint:errcheck
	ls, err := ledger.NewLedgerState(
		ledger.LedgerStateConfig{
			EventBus:      bus,
			Mempool:       pool,
			WalletBalance: testWalletBalance,
		},
	)
	require.NoError(t, err)
	defer ls.Close()
	pool.SetValidator(ls)
	alice, err := ls.CreateWallet("alice")
	require.NoError(t, err)
	bob, err := ls.CreateWallet("bob")
	require.NoError(t, err)

	_, txCh := bus.Subscribe(ledger.TransactionEventType)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ls.Start(ctx))

	msg := mempool.ExternalMessage{
		Message: mempool.Message{
			From:  alice,
			To:    bob,
			Value: coins.MustParse("3"),
		},
	}
	hash, err := pool.AddMessage(msg)
	require.NoError(t, err)

	select {
	case evt := <-txCh:
		tx, ok := evt.Data.(ledger.Transaction)
		require.True(t, ok)
		assert.Equal(t, hash, tx.Hash)
		assert.True(t, tx.Success)
		assert.Equal(t, "transfer", tx.Op)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for transaction event")
	}
	require.Eventually(
		t,
		func() bool {
			_, ok := pool.GetMessage(hash)
			return !ok
		},
		2*time.Second,
		10*time.Millisecond,
	)
	requireBalance(t, ls, alice, "97")
	requireBalance(t, ls, bob, "103")
	txs, err := ls.TransactionsByHash(hash)
	require.NoError(t, err)
	require.Len(t, txs, 1)
}

func TestMempoolRepeatedOperations(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	pool := mempool.NewMempool(mempool.MempoolConfig{EventBus: bus})
	defer pool.Stop(context.Background()) //nolint:errcheck
	ls, err := ledger.NewLedgerState(
		ledger.LedgerStateConfig{
			EventBus:      bus,
			Mempool:       pool,
			WalletBalance: testWalletBalance,
		},
	)
	require.NoError(t, err)
	defer ls.Close()
	pool.SetValidator(ls)
	alice := createWallet(t, ls, "alice")
	counter := deploy(t, ls, alice, account.Init{Program: account.ProgramTipCounter})

	body, err := account.Encode(account.Add{Amount: 1})
	require.NoError(t, err)
	msg := mempool.ExternalMessage{
		Message: mempool.Message{
			From:   alice,
			To:     counter,
			Value:  coins.MustParse("0.01"),
			Body:   body,
			Bounce: true,
		},
	}
	// Queue both before the processor runs
	hash1, err := pool.AddMessage(msg)
	require.NoError(t, err)
	hash2, err := pool.AddMessage(msg)
	require.NoError(t, err)
	require.NotEqual(t, hash1, hash2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ls.Start(ctx))
	require.Eventually(
		t,
		func() bool {
			res, err := ls.RunGetter(counter, "counter")
			return err == nil && res.Value == uint64(2)
		},
		5*time.Second,
		10*time.Millisecond,
	)
	for _, hash := range []string{hash1, hash2} {
		txs, err := ls.TransactionsByHash(hash)
		require.NoError(t, err)
		require.NotEmpty(t, txs)
		assert.Equal(t, hash, txs[0].Hash)
		assert.Equal(t, "add", txs[0].Op)
		assert.True(t, txs[0].Success)
	}
}

func TestValidateMessage(t *testing.T) {
	ls := newTestLedger(t, "")
	alice := createWallet(t, ls, "alice")
	bob := createWallet(t, ls, "bob")
	init := account.Init{Program: account.ProgramTreasury}
	treasuryAddr, err := init.Address()
	require.NoError(t, err)

	testDefs := []struct {
		name    string
		msg     ledger.Message
		wantErr error
	}{
		{
			name: "valid",
			msg:  ledger.Message{From: alice, To: bob, Value: coins.MustParse("1")},
		},
		{
			name:    "unknown sender",
			msg:     ledger.Message{From: address.FromName("nobody"), To: bob},
			wantErr: ledger.ErrUnknownWallet,
		},
		{
			name:    "no destination",
			msg:     ledger.Message{From: alice},
			wantErr: ledger.ErrInvalidDestination,
		},
		{
			name:    "insufficient balance",
			msg:     ledger.Message{From: alice, To: bob, Value: coins.MustParse("100.000000001")},
			wantErr: ledger.ErrInsufficientWalletBalance,
		},
		{
			name:    "init mismatch",
			msg:     ledger.Message{From: alice, To: bob, Init: &init},
			wantErr: ledger.ErrInvalidInit,
		},
		{
			name: "init match",
			msg:  ledger.Message{From: alice, To: treasuryAddr, Init: &init},
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			err := ls.ValidateMessage(mempool.ExternalMessage{Message: testDef.msg})
			if testDef.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, testDef.wantErr)
			// Rejected messages never reach the ledger
			_, err = ls.SubmitMessage(context.Background(), testDef.msg)
			require.ErrorIs(t, err, testDef.wantErr)
		})
	}
}
