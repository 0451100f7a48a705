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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/blinklabs-io/tontip"
	"github.com/blinklabs-io/tontip/internal/config"
	"github.com/blinklabs-io/tontip/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newNode builds a node from the loaded config. Metrics go to reg
func newNode(
	cfg *config.Config,
	logger *slog.Logger,
	reg prometheus.Registerer,
) (*tontip.Node, error) {
	minReserve, err := cfg.MinReserveCoins()
	if err != nil {
		return nil, fmt.Errorf("invalid min reserve: %w", err)
	}
	walletBalance, err := cfg.WalletBalanceCoins()
	if err != nil {
		return nil, fmt.Errorf("invalid wallet balance: %w", err)
	}
	messageTTL, err := cfg.MessageTTLDuration()
	if err != nil {
		return nil, fmt.Errorf("invalid message TTL: %w", err)
	}
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	apiAddress := ""
	if cfg.ApiPort > 0 {
		apiAddress = cfg.ApiListenAddress()
	}
	return tontip.New(
		tontip.NewConfig(
			tontip.WithLogger(logger),
			tontip.WithDatabasePath(cfg.DatabasePath),
			tontip.WithBlobStore(cfg.BlobStore),
			tontip.WithMetadataStore(cfg.MetadataStore),
			tontip.WithNetwork(cfg.Network),
			tontip.WithVersion(version.GetVersionString()),
			tontip.WithMinReserve(minReserve),
			tontip.WithWalletBalance(walletBalance),
			tontip.WithMempoolCapacity(cfg.MempoolCapacity),
			tontip.WithMessageTTL(messageTTL),
			tontip.WithApiListenAddress(apiAddress),
			tontip.WithSubmitRateLimit(cfg.SubmitRate, cfg.SubmitBurst),
			tontip.WithRunMode(string(cfg.RunMode)),
			tontip.WithShutdownTimeout(shutdownTimeout),
			tontip.WithTracing(cfg.Tracing),
			tontip.WithTracingStdout(cfg.TracingStdout),
			// Enable metrics with the given prometheus registry
			tontip.WithPrometheusRegistry(reg),
		),
	)
}

func newMetricsServer(cfg *config.Config, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(
		"/metrics",
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	)
	return &http.Server{
		Addr: net.JoinHostPort(
			cfg.BindAddr,
			strconv.FormatUint(uint64(cfg.MetricsPort), 10),
		),
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Run starts the node and blocks until SIGINT/SIGTERM or a fatal error
func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	n, err := newNode(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	// Metrics listener
	var metricsServer *http.Server
	metricsErr := make(chan error, 1)
	if cfg.MetricsPort > 0 {
		metricsServer = newMetricsServer(cfg, prometheus.DefaultGatherer)
		logger.Info(
			"serving prometheus metrics on "+metricsServer.Addr,
			"component", "node",
		)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				metricsErr <- fmt.Errorf("failed to start metrics listener: %w", err)
			}
		}()
	}
	shutdownMetrics := func() {
		if metricsServer == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run node in goroutine
	errChan := make(chan error, 1)
	go func() {
		//nolint:contextcheck
		errChan <- n.Run(signalCtx)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
		shutdownMetrics()
		if err := n.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil
	case err := <-metricsErr:
		logger.Error("metrics listener failed", "error", err)
		if stopErr := n.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during error cleanup",
				"error", stopErr,
			)
		}
		return err
	case err := <-errChan:
		shutdownMetrics()
		if stopErr := n.Stop(); stopErr != nil {
			logger.Error("shutdown errors occurred", "error", stopErr)
			if err == nil {
				return stopErr
			}
		}
		if err != nil {
			logger.Error("node error", "error", err)
			return err
		}
		logger.Info("node stopped")
		return nil
	}
}
