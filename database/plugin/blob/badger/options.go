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
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default cache sizes for BadgerDB (in bytes)
const (
	DefaultBlockCacheSize = 64 << 20
	DefaultIndexCacheSize = 16 << 20
	DefaultGcInterval     = 5 * time.Minute
)

type BlobStoreBadgerOptionFunc func(*BlobStoreBadger)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(
	registry prometheus.Registerer,
) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.promRegistry = registry
	}
}

// WithDataDir specifies the data directory to use for storage. An empty
// value keeps everything in memory
func WithDataDir(dataDir string) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.dataDir = dataDir
	}
}

// WithBlockCacheSize specifies the block cache size
func WithBlockCacheSize(size uint64) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.blockCacheSize = size
	}
}

// WithIndexCacheSize specifies the index cache size
func WithIndexCacheSize(size uint64) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.indexCacheSize = size
	}
}

// WithGc specifies whether value log garbage collection runs in the background
func WithGc(enabled bool) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.gcEnabled = enabled
	}
}
