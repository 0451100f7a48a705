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

package database_test

import (
	"errors"
	"testing"

	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/blinklabs-io/tontip/database"
	"github.com/blinklabs-io/tontip/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testOwner     = address.FromName("owner")
	testRecipient = address.FromName("recipient")
)

func newTestDatabase(t *testing.T, dataDir string) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func testAccount(t *testing.T) account.Account {
	t.Helper()
	acct, err := account.New(
		account.Init{
			Program:    account.ProgramTipCounter,
			Owner:      testOwner,
			SequenceID: 3,
		},
	)
	require.NoError(t, err)
	acct.Deployed = true
	acct.Owner = testOwner
	acct.SequenceID = 3
	acct.Counter = 42
	acct.TotalTipped = coins.MustParse("1.5")
	acct.Balance = coins.MustParse("0.25")
	acct.LastLT = 7
	return acct
}

func TestAccountRoundTrip(t *testing.T) {
	db := newTestDatabase(t, "")
	acct := testAccount(t)
	require.NoError(t, db.SetAccount(acct, nil))

	got, err := db.GetAccount(acct.Address, nil)
	require.NoError(t, err)
	assert.Equal(t, acct, got)

	rows, err := db.AccountsByOwner(testOwner, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, acct.Address.String(), rows[0].Address)
	assert.Equal(t, uint64(42), uint64(rows[0].Counter))
	assert.Equal(t, "0.25", rows[0].Balance.String())
	assert.Equal(t, uint8(account.ProgramTipCounter), rows[0].Program)
}

func TestAccountUpdate(t *testing.T) {
	db := newTestDatabase(t, "")
	acct := testAccount(t)
	require.NoError(t, db.SetAccount(acct, nil))
	acct.Counter = 43
	acct.Balance = coins.Zero()
	require.NoError(t, db.SetAccount(acct, nil))

	got, err := db.GetAccount(acct.Address, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(43), got.Counter)
	assert.True(t, got.Balance.IsZero())

	accounts, err := db.Accounts(nil)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestGetAccountNotFound(t *testing.T) {
	db := newTestDatabase(t, "")
	_, err := db.GetAccount(testRecipient, nil)
	require.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestWallets(t *testing.T) {
	db := newTestDatabase(t, "")
	require.NoError(t, db.SetWallet(testOwner, "owner", coins.MustParse("100"), nil))
	require.NoError(t, db.SetWallet(testRecipient, "recipient", coins.Zero(), nil))
	// Updating keeps the original name
	require.NoError(t, db.SetWallet(testOwner, "", coins.MustParse("99.5"), nil))

	wallet, err := db.GetWallet(testOwner, nil)
	require.NoError(t, err)
	assert.Equal(t, "owner", wallet.Name)
	assert.Equal(t, "99.5", wallet.Balance.String())

	wallets, err := db.Wallets(nil)
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, testRecipient.String(), wallets[1].Address)

	_, err = db.GetWallet(address.FromName("missing"), nil)
	require.ErrorIs(t, err, models.ErrWalletNotFound)

	require.NoError(t, db.DeleteWallet(testRecipient, nil))
	_, err = db.GetWallet(testRecipient, nil)
	require.ErrorIs(t, err, models.ErrWalletNotFound)
	wallets, err = db.Wallets(nil)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	// Deleting again is a no-op
	require.NoError(t, db.DeleteWallet(testRecipient, nil))
}

func TestTransactions(t *testing.T) {
	db := newTestDatabase(t, "")
	rootHash := []byte{0x01, 0x02}
	txs := []models.Transaction{
		{
			Hash:        rootHash,
			Source:      testOwner.String(),
			Destination: testRecipient.String(),
			Value:       coins.MustParse("1"),
			Op:          "tip",
			LT:          1,
			Success:     true,
			OutMessages: 1,
		},
		{
			Hash:        []byte{0x03},
			ParentHash:  rootHash,
			Source:      testRecipient.String(),
			Destination: address.FromName("other").String(),
			Value:       coins.MustParse("0.5"),
			Op:          "transfer",
			LT:          2,
			Success:     true,
		},
	}
	require.NoError(t, db.AddTransactions(txs, nil))

	got, err := db.Transactions(testRecipient, 0, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Newest first
	assert.Equal(t, uint64(2), got[0].LT)
	assert.Equal(t, uint64(1), got[1].LT)

	got, err = db.Transactions(testRecipient, 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = db.Transactions(testOwner, 10, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tip", got[0].Op)

	cascade, err := db.TransactionsByHash(rootHash, nil)
	require.NoError(t, err)
	require.Len(t, cascade, 2)
	assert.Equal(t, uint64(1), cascade[0].LT)
	assert.Equal(t, "0.5", cascade[1].Value.String())
}

func TestMessageBody(t *testing.T) {
	db := newTestDatabase(t, "")
	hash := []byte{0xaa, 0xbb}
	require.NoError(t, db.SetMessageBody(hash, []byte("body"), nil))
	body, err := db.GetMessageBody(hash, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("body"), body)

	body, err = db.GetMessageBody([]byte{0x00}, nil)
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestTxnRollback(t *testing.T) {
	db := newTestDatabase(t, "")
	acct := testAccount(t)
	wantErr := errors.New("abort")
	txn := db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		if err := db.SetAccount(acct, txn); err != nil {
			return err
		}
		if err := db.SetWallet(testOwner, "owner", coins.MustParse("1"), txn); err != nil {
			return err
		}
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	_, err = db.GetAccount(acct.Address, nil)
	require.ErrorIs(t, err, models.ErrAccountNotFound)
	_, err = db.GetWallet(testOwner, nil)
	require.ErrorIs(t, err, models.ErrWalletNotFound)
	// Finished transactions are inert
	require.NoError(t, txn.Commit())
	require.NoError(t, txn.Rollback())
}

func TestCommitTimestamp(t *testing.T) {
	db := newTestDatabase(t, "")
	require.NoError(t, db.SetAccount(testAccount(t), nil))
	metadataTs, err := db.Metadata().GetCommitTimestamp()
	require.NoError(t, err)
	blobTs, err := db.Blob().GetCommitTimestamp()
	require.NoError(t, err)
	assert.Positive(t, metadataTs)
	assert.Equal(t, metadataTs, blobTs)
}

func TestReopen(t *testing.T) {
	dataDir := t.TempDir()
	acct := testAccount(t)
	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	require.NoError(t, db.SetAccount(acct, nil))
	require.NoError(t, db.SetWallet(testOwner, "owner", coins.MustParse("5"), nil))
	require.NoError(t, db.Close())

	db = newTestDatabase(t, dataDir)
	got, err := db.GetAccount(acct.Address, nil)
	require.NoError(t, err)
	assert.Equal(t, acct, got)
	wallet, err := db.GetWallet(testOwner, nil)
	require.NoError(t, err)
	assert.Equal(t, "5", wallet.Balance.String())
}

func TestReopenCommitTimestampMismatch(t *testing.T) {
	dataDir := t.TempDir()
	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	require.NoError(t, db.SetAccount(testAccount(t), nil))
	ts, err := db.Metadata().GetCommitTimestamp()
	require.NoError(t, err)
	// Simulate a write that only reached the blob store
	blobTxn := db.Blob().NewTransaction(true)
	require.NoError(t, db.Blob().SetCommitTimestamp(ts+1, blobTxn))
	require.NoError(t, blobTxn.Commit())
	require.NoError(t, db.Close())

	db, err = database.New(&database.Config{DataDir: dataDir})
	require.Error(t, err)
	require.NotNil(t, db)
	defer db.Close()
	var tsErr database.CommitTimestampError
	require.ErrorAs(t, err, &tsErr)
	assert.Equal(t, ts, tsErr.MetadataTimestamp)
	assert.Equal(t, ts+1, tsErr.BlobTimestamp)
}

func TestUnknownStore(t *testing.T) {
	_, err := database.New(&database.Config{MetadataStore: "mysql"})
	require.Error(t, err)
	_, err = database.New(&database.Config{BlobStore: "gcs"})
	require.Error(t, err)
}

func TestLogicalTime(t *testing.T) {
	db := newTestDatabase(t, "")
	lt, err := db.GetLogicalTime(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), lt)
	require.NoError(t, db.SetLogicalTime(1234, nil))
	lt, err = db.GetLogicalTime(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), lt)
}
