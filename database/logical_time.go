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
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blinklabs-io/tontip/database/types"
)

const logicalTimeBlobKey = "ledger_logical_time"

// GetLogicalTime returns the last logical time handed out by the ledger, or 0
func (d *Database) GetLogicalTime(txn *Txn) (uint64, error) {
	var ret uint64
	err := d.withTxn(txn, false, func(txn *Txn) error {
		val, err := d.Blob().Get(txn.Blob(), []byte(logicalTimeBlobKey))
		if err != nil {
			if errors.Is(err, types.ErrBlobKeyNotFound) {
				return nil
			}
			return err
		}
		if len(val) != 8 {
			return fmt.Errorf("invalid logical time length: %d", len(val))
		}
		ret = binary.BigEndian.Uint64(val)
		return nil
	})
	return ret, err
}

func (d *Database) SetLogicalTime(lt uint64, txn *Txn) error {
	return d.withTxn(txn, true, func(txn *Txn) error {
		return d.Blob().Set(
			txn.Blob(),
			[]byte(logicalTimeBlobKey),
			binary.BigEndian.AppendUint64(nil, lt),
		)
	})
}
