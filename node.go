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

// Package tontip runs a sandbox ledger for the tip counter and reward
// treasury account programs, with a message pool and an HTTP API in front.
package tontip

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/tontip/api"
	"github.com/blinklabs-io/tontip/event"
	"github.com/blinklabs-io/tontip/ledger"
	"github.com/blinklabs-io/tontip/mempool"
)

type Node struct {
	eventBus      *event.EventBus
	mempool       *mempool.Mempool
	ledgerState   *ledger.LedgerState
	api           *api.Api
	shutdownFuncs []func(context.Context) error
	config        Config
	mu            sync.Mutex
	ready         chan struct{}
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	if cfg.logger == nil {
		cfg.logger = NewConfig().logger
	}
	eventBus := event.NewEventBus(cfg.promRegistry, cfg.logger)
	n := &Node{
		config:   cfg,
		eventBus: eventBus,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	if err := n.configValidate(); err != nil {
		eventBus.Stop()
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

// Run starts all components and blocks until ctx is cancelled or Stop is
// called
func (n *Node) Run(ctx context.Context) error {
	if err := n.start(ctx); err != nil {
		if stopErr := n.Stop(); stopErr != nil {
			n.config.logger.Error(
				"shutdown errors occurred during error cleanup",
				"error", stopErr,
			)
		}
		return err
	}
	close(n.ready)

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case <-n.done:
	}
	return nil
}

func (n *Node) start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	select {
	case <-n.done:
		return errors.New("node already stopped")
	default:
	}
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	// Load mempool
	n.mempool = mempool.NewMempool(mempool.MempoolConfig{
		MempoolCapacity: n.config.mempoolCapacity,
		MessageTTL:      n.config.messageTTL,
		Logger:          n.config.logger,
		EventBus:        n.eventBus,
		PromRegistry:    n.config.promRegistry,
	})
	// Load state
	ledgerCfg := ledger.LedgerStateConfig{
		Logger:        n.config.logger,
		EventBus:      n.eventBus,
		PromRegistry:  n.config.promRegistry,
		Mempool:       n.mempool,
		DataDir:       n.config.dataDir,
		BlobStore:     n.config.blobStore,
		MetadataStore: n.config.metadataStore,
		Params:        n.config.params(),
	}
	if n.config.walletBalance != nil {
		ledgerCfg.WalletBalance = *n.config.walletBalance
	}
	state, err := ledger.NewLedgerState(ledgerCfg)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	n.ledgerState = state
	// Messages are checked against wallet balances on admission
	n.mempool.SetValidator(n.ledgerState)
	if err := n.ledgerState.Start(ctx); err != nil {
		return fmt.Errorf("failed to start ledger: %w", err)
	}
	// Configure HTTP API
	if n.config.apiListenAddress != "" {
		n.api = api.New(
			api.ApiConfig{
				PromRegistry:  n.config.promRegistry,
				ListenAddress: n.config.apiListenAddress,
				Network:       n.config.network,
				Version:       n.config.version,
				SubmitRate:    n.config.submitRate,
				SubmitBurst:   n.config.submitBurst,
				DevMode:       n.config.isDevMode(),
			},
			n.ledgerState,
			n.mempool,
			n.eventBus,
			n.config.logger,
		)
		if err := n.api.Start(ctx); err != nil {
			return fmt.Errorf("failed to start API: %w", err)
		}
	}
	n.config.logger.Info(
		"node started",
		"component", "node",
		"network", n.config.network,
		"run_mode", n.config.runMode,
		"data_dir", n.config.dataDir,
	)
	return nil
}

// Ready is closed once Run has started every component
func (n *Node) Ready() <-chan struct{} {
	return n.ready
}

// LedgerState returns the running ledger, or nil before Run
func (n *Node) LedgerState() *ledger.LedgerState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledgerState
}

// ApiAddr returns the address the API is bound to, or an empty string when
// the API is disabled
func (n *Node) ApiAddr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.api == nil {
		return ""
	}
	return n.api.Addr()
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := DefaultShutdownTimeout
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown", "component", "node")

	// Phase 1: Stop accepting new work
	n.config.logger.Debug(
		"shutdown phase 1: stopping new work",
		"component", "node",
	)

	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	// Phase 2: Drain queued messages
	n.config.logger.Debug(
		"shutdown phase 2: draining message pool",
		"component", "node",
	)

	if n.mempool != nil {
		if stopErr := n.mempool.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("mempool shutdown: %w", stopErr))
		}
	}

	// Phase 3: Flush state and close database
	n.config.logger.Debug(
		"shutdown phase 3: flushing state",
		"component", "node",
	)

	if n.ledgerState != nil {
		if closeErr := n.ledgerState.Close(); closeErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("ledger state close: %w", closeErr),
			)
		}
	}

	// Phase 4: Cleanup resources
	n.config.logger.Debug(
		"shutdown phase 4: cleanup resources",
		"component", "node",
	)

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	n.config.logger.Debug("graceful shutdown complete", "component", "node")
	close(n.done)
	return err
}
