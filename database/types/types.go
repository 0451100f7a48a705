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

package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrBlobKeyNotFound is returned by blob operations when a key is missing
	ErrBlobKeyNotFound = errors.New("blob key not found")
	// ErrTxnWrongType is returned when a transaction belongs to another store type
	ErrTxnWrongType = errors.New("invalid transaction type")
	// ErrNilTxn is returned when a transaction is required but none was given
	ErrNilTxn = errors.New("nil transaction")
	// ErrTxnFinished is returned when a committed or rolled back transaction is reused
	ErrTxnFinished = errors.New("transaction already finished")
)

// Txn is a store-level transaction handle. The database layer coordinates
// one blob and one metadata Txn
type Txn interface {
	Commit() error
	Rollback() error
}

// BlobItem is a key/value pair returned by a BlobIterator
type BlobItem interface {
	Key() []byte
	ValueCopy(dst []byte) ([]byte, error)
}

// BlobIterator walks keys in the blob store. Items must only be accessed
// while the transaction that created the iterator is open
type BlobIterator interface {
	Rewind()
	Seek(key []byte)
	Valid() bool
	Next()
	Item() BlobItem
	Close()
	Err() error
}

type BlobIteratorOptions struct {
	Prefix  []byte
	Reverse bool
}

// Uint64 stores values above the signed 64-bit range in sqlite
//
//nolint:recvcheck
type Uint64 uint64

func (u Uint64) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(u), 10), nil
}

func (u *Uint64) Scan(val any) error {
	var tmp string
	switch v := val.(type) {
	case string:
		tmp = v
	case []byte:
		tmp = string(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("negative value for Uint64: %d", v)
		}
		*u = Uint64(v)
		return nil
	default:
		return fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
	tmpUint, err := strconv.ParseUint(tmp, 10, 64)
	if err != nil {
		return err
	}
	*u = Uint64(tmpUint)
	return nil
}
