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

package sqlite

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blinklabs-io/tontip/database/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

const vacuumInterval = 24 * time.Hour

// MetadataStoreSqlite keeps the queryable account, wallet and transaction
// records
type MetadataStoreSqlite struct {
	promRegistry prometheus.Registerer
	db           *gorm.DB
	logger       *slog.Logger
	timerVacuum  *time.Timer
	timerMutex   sync.Mutex
	vacuumWg     sync.WaitGroup
	dataDir      string
	closed       bool
}

// New creates a SQLite metadata store. Uses an in-memory database if dataDir is empty
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*MetadataStoreSqlite, error) {
	gormConfig := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	}
	var metadataDb *gorm.DB
	var err error
	if dataDir == "" {
		// Each store gets its own named in-memory database. The shared cache
		// lets pooled connections see the same data
		metadataDb, err = gorm.Open(
			sqlite.Open(
				fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
			),
			gormConfig,
		)
		if err != nil {
			return nil, err
		}
		sqlDb, err := metadataDb.DB()
		if err != nil {
			return nil, err
		}
		// Writers would otherwise see "table is locked" with a shared cache
		sqlDb.SetMaxOpenConns(1)
	} else {
		if err := os.MkdirAll(dataDir, fs.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		metadataDbPath := filepath.Join(dataDir, "metadata.sqlite")
		// WAL journal mode, disable sync on write, increase cache size to 50MB (from 2MB)
		metadataConnOpts := "_pragma=journal_mode(WAL)&_pragma=sync(OFF)&_pragma=cache_size(-50000)&_pragma=busy_timeout(5000)"
		metadataDb, err = gorm.Open(
			sqlite.Open(
				fmt.Sprintf("file:%s?%s", metadataDbPath, metadataConnOpts),
			),
			gormConfig,
		)
		if err != nil {
			return nil, err
		}
	}
	d := &MetadataStoreSqlite{
		db:           metadataDb,
		dataDir:      dataDir,
		logger:       logger,
		promRegistry: promRegistry,
	}
	if err := d.init(); err != nil {
		// MetadataStoreSqlite is available for recovery, so return it with error
		return d, err
	}
	if err := d.db.AutoMigrate(&CommitTimestamp{}); err != nil {
		return d, err
	}
	for _, model := range models.MigrateModels {
		d.logger.Debug(
			fmt.Sprintf("creating table: %T", model),
			"component", "database",
		)
		if err := d.db.AutoMigrate(model); err != nil {
			return d, err
		}
	}
	return d, nil
}

func (d *MetadataStoreSqlite) init() error {
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	// Configure tracing for GORM
	if err := d.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	if d.promRegistry != nil {
		sqlDb, err := d.db.DB()
		if err != nil {
			return err
		}
		promauto.With(d.promRegistry).NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "tontip_metadata_open_connections",
				Help: "open connections to the metadata database",
			},
			func() float64 {
				return float64(sqlDb.Stats().OpenConnections)
			},
		)
	}
	d.scheduleVacuum()
	return nil
}

func (d *MetadataStoreSqlite) runVacuum() error {
	d.timerMutex.Lock()
	if d.dataDir == "" || d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	d.vacuumWg.Add(1)
	d.timerMutex.Unlock()
	defer d.vacuumWg.Done()
	return d.DB().Exec("VACUUM").Error
}

// scheduleVacuum schedules a daily vacuum to free unused space
func (d *MetadataStoreSqlite) scheduleVacuum() {
	d.timerMutex.Lock()
	defer d.timerMutex.Unlock()
	if d.closed || d.dataDir == "" {
		return
	}
	d.timerVacuum = time.AfterFunc(
		vacuumInterval,
		func() {
			defer d.scheduleVacuum()
			d.logger.Debug(
				"running vacuum on sqlite metadata database",
				"component", "database",
			)
			if err := d.runVacuum(); err != nil {
				d.logger.Error(
					"failed to free unused space in metadata store",
					"component", "database",
					"error", err,
				)
			}
		},
	)
}

// Close stops background work and closes the database connection
func (d *MetadataStoreSqlite) Close() error {
	d.timerMutex.Lock()
	if d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	d.closed = true
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
		d.timerVacuum = nil
	}
	d.timerMutex.Unlock()
	d.vacuumWg.Wait()
	sqlDb, err := d.DB().DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDb.Close()
}

// DB returns the underlying GORM database handle
func (d *MetadataStoreSqlite) DB() *gorm.DB {
	return d.db
}
