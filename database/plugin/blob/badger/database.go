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

package badger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blinklabs-io/tontip/database/types"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BlobStoreBadger stores message bodies and account snapshots in badger
type BlobStoreBadger struct {
	promRegistry   prometheus.Registerer
	db             *badger.DB
	logger         *slog.Logger
	gcStopCh       chan struct{}
	dataDir        string
	gcWg           sync.WaitGroup
	closeOnce      sync.Once
	blockCacheSize uint64
	indexCacheSize uint64
	gcEnabled      bool
}

// New opens the blob store. Without a data directory the store is in-memory
// and background GC is disabled
func New(opts ...BlobStoreBadgerOptionFunc) (*BlobStoreBadger, error) {
	d := &BlobStoreBadger{
		gcEnabled:      true,
		blockCacheSize: DefaultBlockCacheSize,
		indexCacheSize: DefaultIndexCacheSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var badgerOpts badger.Options
	if d.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").
			WithInMemory(true)
		d.gcEnabled = false
	} else {
		if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		badgerOpts = badger.DefaultOptions(filepath.Join(d.dataDir, "blob")).
			WithBlockCacheSize(int64(d.blockCacheSize)). //nolint:gosec
			WithIndexCacheSize(int64(d.indexCacheSize)). //nolint:gosec
			WithCompression(options.Snappy)
	}
	badgerOpts = badgerOpts.
		WithLogger(NewBadgerLogger(d.logger)).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}
	d.db = db
	if d.promRegistry != nil {
		d.registerMetrics()
	}
	if d.gcEnabled {
		d.gcStopCh = make(chan struct{})
		d.gcWg.Add(1)
		go d.blobGc(DefaultGcInterval)
	}
	return d, nil
}

func (d *BlobStoreBadger) registerMetrics() {
	promautoFactory := promauto.With(d.promRegistry)
	promautoFactory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "tontip_blob_lsm_size_bytes",
			Help: "size of the blob store LSM tree",
		},
		func() float64 {
			lsm, _ := d.db.Size()
			return float64(lsm)
		},
	)
	promautoFactory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "tontip_blob_vlog_size_bytes",
			Help: "size of the blob store value log",
		},
		func() float64 {
			_, vlog := d.db.Size()
			return float64(vlog)
		},
	)
}

func (d *BlobStoreBadger) blobGc(interval time.Duration) {
	defer d.gcWg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// Keep collecting while each pass rewrites a file
			for {
				err := d.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					d.logger.Warn(
						"blob GC failure",
						"component", "database",
						"error", err,
					)
				}
				break
			}
		case <-d.gcStopCh:
			return
		}
	}
}

// Close stops background GC and closes the database
func (d *BlobStoreBadger) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if d.gcStopCh != nil {
			close(d.gcStopCh)
			d.gcWg.Wait()
		}
		err = d.db.Close()
	})
	return err
}

// DB returns the underlying badger handle
func (d *BlobStoreBadger) DB() *badger.DB {
	return d.db
}

// NewTransaction starts a badger transaction
func (d *BlobStoreBadger) NewTransaction(update bool) types.Txn {
	return &badgerTxn{store: d, tx: d.db.NewTransaction(update)}
}

func (d *BlobStoreBadger) Get(txn types.Txn, key []byte) ([]byte, error) {
	tmpTxn, err := d.validateTxn(txn)
	if err != nil {
		return nil, err
	}
	item, err := tmpTxn.tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, types.ErrBlobKeyNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (d *BlobStoreBadger) Set(txn types.Txn, key, val []byte) error {
	tmpTxn, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	return tmpTxn.tx.Set(key, val)
}

func (d *BlobStoreBadger) Delete(txn types.Txn, key []byte) error {
	tmpTxn, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	return tmpTxn.tx.Delete(key)
}

// NewIterator creates an iterator over the keys visible to txn
func (d *BlobStoreBadger) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	tmpTxn, err := d.validateTxn(txn)
	if err != nil {
		return &errorIterator{err: err}
	}
	iterOpts := badger.DefaultIteratorOptions
	iterOpts.Prefix = opts.Prefix
	iterOpts.Reverse = opts.Reverse
	return &badgerIterator{iter: tmpTxn.tx.NewIterator(iterOpts)}
}

func (d *BlobStoreBadger) validateTxn(txn types.Txn) (*badgerTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	tmpTxn, ok := txn.(*badgerTxn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	if tmpTxn.store != d {
		return nil, errors.New("transaction from different store")
	}
	if tmpTxn.finished {
		return nil, types.ErrTxnFinished
	}
	return tmpTxn, nil
}

// badgerTxn wraps a badger transaction and implements types.Txn
type badgerTxn struct {
	store    *BlobStoreBadger
	tx       *badger.Txn
	finished bool
}

func (t *badgerTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	return t.tx.Commit()
}

func (t *badgerTxn) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	t.tx.Discard()
	return nil
}

type badgerIterator struct {
	iter *badger.Iterator
}

func (it *badgerIterator) Rewind()         { it.iter.Rewind() }
func (it *badgerIterator) Seek(key []byte) { it.iter.Seek(key) }
func (it *badgerIterator) Valid() bool     { return it.iter.Valid() }
func (it *badgerIterator) Next()           { it.iter.Next() }
func (it *badgerIterator) Close()          { it.iter.Close() }
func (it *badgerIterator) Err() error      { return nil }

func (it *badgerIterator) Item() types.BlobItem {
	return &badgerItem{item: it.iter.Item()}
}

type badgerItem struct {
	item *badger.Item
}

func (i *badgerItem) Key() []byte {
	return i.item.KeyCopy(nil)
}

func (i *badgerItem) ValueCopy(dst []byte) ([]byte, error) {
	return i.item.ValueCopy(dst)
}

type errorIterator struct {
	err error
}

func (it *errorIterator) Rewind()              {}
func (it *errorIterator) Seek([]byte)          {}
func (it *errorIterator) Valid() bool          { return false }
func (it *errorIterator) Next()                {}
func (it *errorIterator) Item() types.BlobItem { return nil }
func (it *errorIterator) Close()               {}
func (it *errorIterator) Err() error           { return it.err }
