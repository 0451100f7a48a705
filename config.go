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

package tontip

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/prometheus/client_golang/prometheus"
)

// runMode constants for operational mode configuration
const (
	runModeServe = "serve"
	runModeDev   = "dev"
)

const (
	DefaultNetwork         = "sandbox"
	DefaultShutdownTimeout = 30 * time.Second
)

type Config struct {
	promRegistry     prometheus.Registerer
	logger           *slog.Logger
	dataDir          string
	blobStore        string
	metadataStore    string
	network          string
	version          string
	apiListenAddress string
	runMode          string
	minReserve       *coins.Coins
	walletBalance    *coins.Coins
	mempoolCapacity  int64
	messageTTL       time.Duration
	submitRate       float64
	submitBurst      int
	tracing          bool
	tracingStdout    bool
	shutdownTimeout  time.Duration
}

// isDevMode returns true if running in development mode
func (c *Config) isDevMode() bool {
	return c.runMode == runModeDev
}

// params returns the account engine parameters for the configured network
func (c *Config) params() account.Params {
	ret := account.DefaultParams()
	if c.minReserve != nil {
		ret.MinReserve = *c.minReserve
	}
	return ret
}

func (n *Node) configValidate() error {
	switch n.config.runMode {
	case runModeServe, runModeDev:
	default:
		return fmt.Errorf("invalid run mode: %q", n.config.runMode)
	}
	if n.config.network == "" {
		return errors.New("no network defined")
	}
	if n.config.mempoolCapacity < 0 {
		return fmt.Errorf(
			"invalid mempool capacity: %d",
			n.config.mempoolCapacity,
		)
	}
	if n.config.submitRate < 0 || n.config.submitBurst < 0 {
		return fmt.Errorf(
			"invalid submit rate limit: rate %v, burst %d",
			n.config.submitRate,
			n.config.submitBurst,
		)
	}
	if n.config.tracingStdout && !n.config.tracing {
		return errors.New("stdout tracing requires tracing to be enabled")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new node config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		network:         DefaultNetwork,
		runMode:         runModeServe,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobStore specifies the blob store to use
func WithBlobStore(name string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobStore = name
	}
}

// WithMetadataStore specifies the metadata store to use
func WithMetadataStore(name string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataStore = name
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithNetwork specifies the named network to operate on. It selects the
// human readable part of friendly addresses
func WithNetwork(network string) ConfigOptionFunc {
	return func(c *Config) {
		c.network = network
	}
}

// WithVersion specifies the version reported by the API
func WithVersion(version string) ConfigOptionFunc {
	return func(c *Config) {
		c.version = version
	}
}

// WithMinReserve specifies the balance accounts keep back from withdrawals
// and tip change
func WithMinReserve(minReserve coins.Coins) ConfigOptionFunc {
	return func(c *Config) {
		c.minReserve = &minReserve
	}
}

// WithWalletBalance specifies the initial balance of wallets created through
// the faucet
func WithWalletBalance(balance coins.Coins) ConfigOptionFunc {
	return func(c *Config) {
		c.walletBalance = &balance
	}
}

// WithApiListenAddress specifies the address the HTTP API listens on. The API
// is disabled when empty
func WithApiListenAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = address
	}
}

// WithSubmitRateLimit sets the per-client rate and burst for POST routes
func WithSubmitRateLimit(rate float64, burst int) ConfigOptionFunc {
	return func(c *Config) {
		c.submitRate = rate
		c.submitBurst = burst
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithMempoolCapacity sets the mempool capacity (in bytes)
func WithMempoolCapacity(capacity int64) ConfigOptionFunc {
	return func(c *Config) {
		c.mempoolCapacity = capacity
	}
}

// WithMessageTTL sets the default validity window of queued messages
func WithMessageTTL(ttl time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.messageTTL = ttl
	}
}

// WithRunMode sets the operational mode ("serve" or "dev"). Dev mode enables
// the wallet faucet routes
func WithRunMode(mode string) ConfigOptionFunc {
	return func(c *Config) {
		c.runMode = mode
	}
}
