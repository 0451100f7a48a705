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

// Package api serves the ledger over HTTP: account queries, getters, the
// journal, message submission into the mempool, a dev wallet faucet and a
// websocket stream of ledger transactions.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultListenAddress = ":8080"
	DefaultSubmitRate    = 10
	DefaultSubmitBurst   = 20
)

type ApiConfig struct {
	PromRegistry  prometheus.Registerer
	ListenAddress string
	Network       string
	Version       string
	// SubmitRate is the sustained number of POST requests per second allowed
	// for one client IP
	SubmitRate  float64
	SubmitBurst int
	// DevMode enables the wallet faucet routes
	DevMode bool
}

// Api is the HTTP API server
type Api struct {
	config     ApiConfig
	logger     *slog.Logger
	node       ApiNode
	pool       MessagePool
	events     EventSource
	limiter    *rateLimiter
	metrics    *apiMetrics
	upgrader   websocket.Upgrader
	httpServer *http.Server
	streamCtx  context.Context
	mu         sync.Mutex
}

// New creates a new API server instance. The pool and events may be nil, in
// which case the routes that need them answer 503
func New(
	cfg ApiConfig,
	node ApiNode,
	pool MessagePool,
	events EventSource,
	logger *slog.Logger,
) *Api {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.SubmitRate <= 0 {
		cfg.SubmitRate = DefaultSubmitRate
	}
	if cfg.SubmitBurst <= 0 {
		cfg.SubmitBurst = DefaultSubmitBurst
	}
	a := &Api{
		config:  cfg,
		logger:  logger,
		node:    node,
		pool:    pool,
		events:  events,
		limiter: newRateLimiter(cfg.SubmitRate, cfg.SubmitBurst, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	a.metrics = newApiMetrics(cfg.PromRegistry)
	return a
}

// Handler returns the router with all middleware applied
func (a *Api) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(a.requestIdMiddleware, a.metricsMiddleware)
	r.NotFoundHandler = http.HandlerFunc(a.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(a.handleMethodNotAllowed)

	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)

	v0 := r.PathPrefix("/api/v0").Subrouter()
	v0.HandleFunc("/network", a.handleNetwork).Methods(http.MethodGet)
	v0.HandleFunc(
		"/accounts/{address}",
		a.handleAccount,
	).Methods(http.MethodGet)
	v0.HandleFunc(
		"/accounts/{address}/transactions",
		a.handleAccountTransactions,
	).Methods(http.MethodGet)
	v0.HandleFunc(
		"/accounts/{address}/methods/{method}",
		a.handleRunGetter,
	).Methods(http.MethodGet)
	v0.Handle(
		"/messages",
		a.limiter.Handler(http.HandlerFunc(a.handleSubmitMessage)),
	).Methods(http.MethodPost)
	v0.HandleFunc(
		"/messages/{hash}",
		a.handleMessageStatus,
	).Methods(http.MethodGet)
	v0.Handle(
		"/wallets",
		a.limiter.Handler(http.HandlerFunc(a.handleCreateWallet)),
	).Methods(http.MethodPost)
	v0.Handle(
		"/wallets/{address}/fund",
		a.limiter.Handler(http.HandlerFunc(a.handleFundWallet)),
	).Methods(http.MethodPost)
	v0.HandleFunc("/events", a.handleEvents).Methods(http.MethodGet)
	return r
}

// Start starts the HTTP server in a background goroutine
func (a *Api) Start(
	ctx context.Context,
) error {
	a.mu.Lock()
	if a.httpServer != nil {
		a.mu.Unlock()
		return errors.New("server already started")
	}

	server := &http.Server{
		Addr:              a.config.ListenAddress,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
	}
	// Event streams are hijacked connections, which Shutdown does not close
	streamCtx, streamCancel := context.WithCancel(context.Background())
	server.RegisterOnShutdown(streamCancel)
	a.httpServer = server
	a.streamCtx = streamCtx
	a.mu.Unlock()

	// Start the server with deterministic error detection
	if err := a.startServer(server); err != nil {
		streamCancel()
		a.mu.Lock()
		a.httpServer = nil
		a.streamCtx = nil
		a.mu.Unlock()
		return err
	}

	a.logger.Info(
		"API listener started on " + a.Addr(),
	)

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		a.mu.Lock()
		srv := a.httpServer
		a.httpServer = nil
		a.mu.Unlock()

		if srv != nil {
			a.logger.Debug(
				"context cancelled, shutting down API server",
			)
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				30*time.Second,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error(
					"failed to shutdown API server on context cancellation",
					"error", err,
				)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (a *Api) Stop(
	ctx context.Context,
) error {
	a.mu.Lock()
	srv := a.httpServer
	a.httpServer = nil
	a.mu.Unlock()

	if srv != nil {
		a.logger.Debug("shutting down API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf(
				"failed to shutdown API server: %w",
				err,
			)
		}
	}
	return nil
}

// Addr returns the bound listen address, which differs from the configured
// one when it asked for port 0
func (a *Api) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.httpServer == nil {
		return a.config.ListenAddress
	}
	return a.httpServer.Addr
}

// startServer binds the listening socket first so port conflicts are
// detected immediately, then serves in a background goroutine
func (a *Api) startServer(
	server *http.Server,
) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf(
			"failed to listen for API server: %w",
			err,
		)
	}
	a.mu.Lock()
	server.Addr = ln.Addr().String()
	a.mu.Unlock()
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	return nil
}

// streamContext returns the context that ends event streams on shutdown
func (a *Api) streamContext(r *http.Request) context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.streamCtx == nil {
		return r.Context()
	}
	return a.streamCtx
}
