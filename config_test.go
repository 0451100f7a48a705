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
	"testing"
	"time"

	"github.com/blinklabs-io/tontip/coins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.NotNil(t, cfg.logger)
	assert.Equal(t, DefaultNetwork, cfg.network)
	assert.Equal(t, runModeServe, cfg.runMode)
	assert.Equal(t, DefaultShutdownTimeout, cfg.shutdownTimeout)
	assert.False(t, cfg.isDevMode())
	assert.Empty(t, cfg.apiListenAddress)
	assert.Equal(t, "0.01", cfg.params().MinReserve.String())
}

func TestConfigOptions(t *testing.T) {
	cfg := NewConfig(
		WithDatabasePath("/tmp/tontip"),
		WithBlobStore("badger"),
		WithMetadataStore("sqlite"),
		WithNetwork("testnet"),
		WithVersion("1.2.3"),
		WithMinReserve(coins.MustParse("0.5")),
		WithWalletBalance(coins.MustParse("42")),
		WithApiListenAddress("127.0.0.1:0"),
		WithSubmitRateLimit(2, 4),
		WithTracing(true),
		WithTracingStdout(true),
		WithShutdownTimeout(5*time.Second),
		WithMempoolCapacity(1024),
		WithMessageTTL(time.Minute),
		WithRunMode("dev"),
	)
	assert.Equal(t, "/tmp/tontip", cfg.dataDir)
	assert.Equal(t, "badger", cfg.blobStore)
	assert.Equal(t, "sqlite", cfg.metadataStore)
	assert.Equal(t, "testnet", cfg.network)
	assert.Equal(t, "1.2.3", cfg.version)
	assert.Equal(t, "0.5", cfg.params().MinReserve.String())
	require.NotNil(t, cfg.walletBalance)
	assert.Equal(t, "42", cfg.walletBalance.String())
	assert.Equal(t, "127.0.0.1:0", cfg.apiListenAddress)
	assert.InDelta(t, 2, cfg.submitRate, 0)
	assert.Equal(t, 4, cfg.submitBurst)
	assert.True(t, cfg.tracing)
	assert.True(t, cfg.tracingStdout)
	assert.Equal(t, 5*time.Second, cfg.shutdownTimeout)
	assert.Equal(t, int64(1024), cfg.mempoolCapacity)
	assert.Equal(t, time.Minute, cfg.messageTTL)
	assert.True(t, cfg.isDevMode())
}

func TestConfigValidate(t *testing.T) {
	testDefs := []struct {
		opts   []ConfigOptionFunc
		errStr string
	}{
		{[]ConfigOptionFunc{WithRunMode("load")}, "invalid run mode"},
		{[]ConfigOptionFunc{WithNetwork("")}, "no network defined"},
		{[]ConfigOptionFunc{WithMempoolCapacity(-1)}, "invalid mempool capacity"},
		{[]ConfigOptionFunc{WithSubmitRateLimit(-1, 0)}, "invalid submit rate limit"},
		{[]ConfigOptionFunc{WithTracingStdout(true)}, "requires tracing"},
	}
	for _, testDef := range testDefs {
		_, err := New(NewConfig(testDef.opts...))
		require.Error(t, err, testDef.errStr)
		assert.Contains(t, err.Error(), testDef.errStr)
	}
}
