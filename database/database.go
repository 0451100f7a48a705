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

// Package database persists ledger state across a blob store (account
// snapshots and message bodies) and a metadata store (queryable account,
// wallet and transaction records). Writes to both go through a single Txn.
package database

import (
	"errors"
	"io"
	"log/slog"

	"github.com/blinklabs-io/tontip/database/plugin/blob"
	"github.com/blinklabs-io/tontip/database/plugin/metadata"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultBlobStore     = "badger"
	DefaultMetadataStore = "sqlite"
)

type Config struct {
	Logger        *slog.Logger
	PromRegistry  prometheus.Registerer
	DataDir       string
	BlobStore     string
	MetadataStore string
}

type Database struct {
	logger   *slog.Logger
	blob     blob.BlobStore
	metadata metadata.MetadataStore
	dataDir  string
}

// New opens both stores. An empty DataDir keeps everything in memory
func New(config *Config) (*Database, error) {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	blobStoreName := config.BlobStore
	if blobStoreName == "" {
		blobStoreName = DefaultBlobStore
	}
	metadataStoreName := config.MetadataStore
	if metadataStoreName == "" {
		metadataStoreName = DefaultMetadataStore
	}
	metadataDb, err := metadata.New(
		metadataStoreName,
		config.DataDir,
		logger,
		config.PromRegistry,
	)
	if err != nil {
		return nil, err
	}
	blobDb, err := blob.New(
		blobStoreName,
		config.DataDir,
		logger,
		config.PromRegistry,
	)
	if err != nil {
		_ = metadataDb.Close()
		return nil, err
	}
	db := &Database{
		logger:   logger,
		blob:     blobDb,
		metadata: metadataDb,
		dataDir:  config.DataDir,
	}
	if err := db.checkCommitTimestamp(); err != nil {
		// Database is available for recovery, so return it with error
		return db, err
	}
	return db, nil
}

// Blob returns the underling blob store instance
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Transaction starts a new database transaction and returns a handle to it
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// Close cleans up the database connections
func (d *Database) Close() error {
	return errors.Join(
		d.Metadata().Close(),
		d.Blob().Close(),
	)
}
