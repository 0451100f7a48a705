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

package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobalConfig(t *testing.T) {
	t.Helper()
	globalConfig = newDefaultConfig()
	// Keep a config file in the real home directory out of the tests
	t.Setenv("HOME", t.TempDir())
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "test-tontip.yaml")
	err := os.WriteFile(tmpFile, []byte(content), 0o644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return tmpFile
}

func TestLoad_CompareFullStruct(t *testing.T) {
	resetGlobalConfig(t)
	yamlContent := `
databasePath: "/var/lib/tontip"
bindAddr: "127.0.0.1"
apiUrl: "http://127.0.0.1:9000"
network: "testnet"
minReserve: "0.05"
walletBalance: "500"
messageTTL: "60s"
shutdownTimeout: "10s"
runMode: "dev"
mempoolCapacity: 2097152
submitRate: 2.5
submitBurst: 5
apiPort: 9000
metricsPort: 8088
tracing: true
tracingStdout: true
`
	tmpFile := writeConfigFile(t, yamlContent)

	expected := &Config{
		DatabasePath:    "/var/lib/tontip",
		BlobStore:       DefaultBlobStore,
		MetadataStore:   DefaultMetadataStore,
		BindAddr:        "127.0.0.1",
		ApiUrl:          "http://127.0.0.1:9000",
		Network:         "testnet",
		MinReserve:      "0.05",
		WalletBalance:   "500",
		MessageTTL:      "60s",
		ShutdownTimeout: "10s",
		RunMode:         RunModeDev,
		MempoolCapacity: 2097152,
		SubmitRate:      2.5,
		SubmitBurst:     5,
		ApiPort:         9000,
		MetricsPort:     8088,
		Tracing:         true,
		TracingStdout:   true,
	}

	actual, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if !reflect.DeepEqual(actual, expected) {
		t.Errorf(
			"Loaded config does not match expected.\nActual: %+v\nExpected: %+v",
			actual,
			expected,
		)
	}
}

func TestLoad_WithoutConfigFile_UsesDefaults(t *testing.T) {
	resetGlobalConfig(t)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if !reflect.DeepEqual(cfg, newDefaultConfig()) {
		t.Errorf(
			"config mismatch without file:\nExpected: %+v\nGot:      %+v",
			newDefaultConfig(),
			cfg,
		)
	}
	assert.False(t, cfg.RunMode.IsDevMode())
	assert.Equal(t, "0.0.0.0:8080", cfg.ApiListenAddress())
}

func TestLoad_HomeConfigFile(t *testing.T) {
	resetGlobalConfig(t)
	homeDir := os.Getenv("HOME")
	require.NoError(t, os.MkdirAll(filepath.Join(homeDir, ".tontip"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(homeDir, ".tontip", "tontip.yaml"),
		[]byte("network: mainnet\n"),
		0o644,
	))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "mainnet", cfg.Network)
}

func TestLoad_ConfigSection(t *testing.T) {
	resetGlobalConfig(t)
	yamlContent := `
config:
  apiPort: 3000
  runMode: dev
database:
  blob: badger
  metadata: sqlite
`
	cfg, err := LoadConfig(writeConfigFile(t, yamlContent))
	require.NoError(t, err)
	assert.Equal(t, uint(3000), cfg.ApiPort)
	assert.True(t, cfg.RunMode.IsDevMode())
	assert.Equal(t, "badger", cfg.BlobStore)
	assert.Equal(t, "sqlite", cfg.MetadataStore)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	resetGlobalConfig(t)
	t.Setenv("TONTIP_API_PORT", "7070")
	t.Setenv("TONTIP_DATABASE_PATH", "")
	t.Setenv("TONTIP_MESSAGE_TTL", "90s")
	t.Setenv("TONTIP_RUN_MODE", "dev")

	cfg, err := LoadConfig(writeConfigFile(t, "apiPort: 9000\n"))
	require.NoError(t, err)
	assert.Equal(t, uint(7070), cfg.ApiPort)
	assert.Empty(t, cfg.DatabasePath)
	assert.Equal(t, RunModeDev, cfg.RunMode)
	ttl, err := cfg.MessageTTLDuration()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, ttl)
}

func TestLoad_Invalid(t *testing.T) {
	testDefs := []struct {
		yaml   string
		errStr string
	}{
		{"runMode: load\n", "invalid runMode"},
		{"minReserve: abc\n", "invalid minReserve"},
		{"walletBalance: -5\n", "invalid walletBalance"},
		{"messageTTL: soon\n", "invalid messageTTL"},
		{"shutdownTimeout: 5\n", "invalid shutdownTimeout"},
		{"submitBurst: -1\n", "invalid submit rate limit"},
		{"apiPort: [1\n", "error parsing config file"},
	}
	for _, testDef := range testDefs {
		resetGlobalConfig(t)
		_, err := LoadConfig(writeConfigFile(t, testDef.yaml))
		require.Error(t, err, testDef.yaml)
		assert.Contains(t, err.Error(), testDef.errStr, testDef.yaml)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	resetGlobalConfig(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestConfigAccessors(t *testing.T) {
	cfg := newDefaultConfig()
	minReserve, err := cfg.MinReserveCoins()
	require.NoError(t, err)
	assert.Equal(t, "0.01", minReserve.String())
	balance, err := cfg.WalletBalanceCoins()
	require.NoError(t, err)
	assert.Equal(t, "1000000", balance.String())
	timeout, err := cfg.ShutdownTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)

	cfg.BindAddr = "::1"
	assert.Equal(t, "[::1]:8080", cfg.ApiListenAddress())
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := newDefaultConfig()
	ctx := WithContext(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
}

func TestRunModeValid(t *testing.T) {
	assert.True(t, RunModeServe.Valid())
	assert.True(t, RunModeDev.Valid())
	assert.True(t, RunMode("").Valid())
	assert.False(t, RunMode("load").Valid())
}
