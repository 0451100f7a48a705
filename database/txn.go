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

package database

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/tontip/database/types"
)

// Txn coordinates a blob and a metadata transaction. Read-write commits stamp
// both stores with the same commit timestamp
type Txn struct {
	db          *Database
	blobTxn     types.Txn
	metadataTxn types.Txn
	lock        sync.Mutex
	finished    bool
	readWrite   bool
}

func NewTxn(db *Database, readWrite bool) *Txn {
	return &Txn{
		db:          db,
		readWrite:   readWrite,
		blobTxn:     db.Blob().NewTransaction(readWrite),
		metadataTxn: db.Metadata().Transaction(),
	}
}

func (t *Txn) DB() *Database {
	return t.db
}

// Metadata returns the underlying metadata transaction handle
func (t *Txn) Metadata() types.Txn {
	return t.metadataTxn
}

// Blob returns the blob transaction handle
func (t *Txn) Blob() types.Txn {
	return t.blobTxn
}

// Do executes the specified function in the context of the transaction. Any errors returned will result
// in the transaction being rolled back
func (t *Txn) Do(fn func(*Txn) error) error {
	if err := fn(t); err != nil {
		if err2 := t.Rollback(); err2 != nil {
			return fmt.Errorf(
				"rollback failed: %w: original error: %w",
				err2,
				err,
			)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (t *Txn) Commit() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.finished {
		return nil
	}
	// Nothing to write for read-only transactions
	if !t.readWrite {
		return t.rollback()
	}
	if err := t.db.updateCommitTimestamp(t, time.Now().UnixMilli()); err != nil {
		_ = t.rollback()
		return fmt.Errorf("failed to update commit timestamp: %w", err)
	}
	// Blob commits first so a failure leaves metadata untouched
	if err := t.blobTxn.Commit(); err != nil {
		_ = t.metadataTxn.Rollback()
		t.finished = true
		return fmt.Errorf("blob commit failed: %w", err)
	}
	if err := t.metadataTxn.Commit(); err != nil {
		t.finished = true
		t.db.logger.Error(
			"partial commit: blob committed, metadata failed",
			"component", "database",
			"error", err,
		)
		return fmt.Errorf(
			"partial commit: metadata commit failed after blob commit: %w",
			err,
		)
	}
	t.finished = true
	return nil
}

func (t *Txn) Rollback() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.rollback()
}

func (t *Txn) rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	var errs []error
	if err := t.blobTxn.Rollback(); err != nil {
		errs = append(errs, fmt.Errorf("blob rollback: %w", err))
	}
	if err := t.metadataTxn.Rollback(); err != nil {
		errs = append(errs, fmt.Errorf("metadata rollback: %w", err))
	}
	return errors.Join(errs...)
}

// Release rolls back an unfinished transaction and logs any failure. It is
// meant for deferred calls
func (t *Txn) Release() {
	if err := t.Rollback(); err != nil {
		t.db.logger.Debug(
			"transaction release failed",
			"component", "database",
			"error", err,
			"read_write", t.readWrite,
		)
	}
}
