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
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/blinklabs-io/tontip/coins"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "tontip.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultMessageTTL      = "360s"
	DefaultBlobStore       = "badger"
	DefaultMetadataStore   = "sqlite"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// RunMode represents the operational mode of the node
type RunMode string

const (
	RunModeServe RunMode = "serve" // Ledger and API only (default)
	RunModeDev   RunMode = "dev"   // Also serves the wallet faucet routes
)

// Valid returns true if the RunMode is a known valid mode
func (m RunMode) Valid() bool {
	switch m {
	case RunModeServe, RunModeDev, "":
		return true
	default:
		return false
	}
}

// IsDevMode returns true if the mode enables development behaviors
func (m RunMode) IsDevMode() bool {
	return m == RunModeDev
}

type tempConfig struct {
	Config   *Config         `yaml:"config,omitempty"`
	Database *databaseConfig `yaml:"database,omitempty"`
}

type databaseConfig struct {
	Blob     string `yaml:"blob,omitempty"`
	Metadata string `yaml:"metadata,omitempty"`
}

type Config struct {
	DatabasePath    string  `yaml:"databasePath"    split_words:"true"`
	BlobStore       string  `yaml:"blobStore"       split_words:"true"`
	MetadataStore   string  `yaml:"metadataStore"   split_words:"true"`
	BindAddr        string  `yaml:"bindAddr"        split_words:"true"`
	ApiUrl          string  `yaml:"apiUrl"          split_words:"true"`
	Network         string  `yaml:"network"`
	MinReserve      string  `yaml:"minReserve"      split_words:"true"`
	WalletBalance   string  `yaml:"walletBalance"   split_words:"true"`
	MessageTTL      string  `yaml:"messageTTL"      envconfig:"MESSAGE_TTL"`
	ShutdownTimeout string  `yaml:"shutdownTimeout" split_words:"true"`
	RunMode         RunMode `yaml:"runMode"         split_words:"true"`
	MempoolCapacity int64   `yaml:"mempoolCapacity" split_words:"true"`
	SubmitRate      float64 `yaml:"submitRate"      split_words:"true"`
	SubmitBurst     int     `yaml:"submitBurst"     split_words:"true"`
	ApiPort         uint    `yaml:"apiPort"         split_words:"true"`
	MetricsPort     uint    `yaml:"metricsPort"     split_words:"true"`
	Tracing         bool    `yaml:"tracing"`
	TracingStdout   bool    `yaml:"tracingStdout"   split_words:"true"`
}

func newDefaultConfig() *Config {
	return &Config{
		DatabasePath:    ".tontip",
		BlobStore:       DefaultBlobStore,
		MetadataStore:   DefaultMetadataStore,
		BindAddr:        "0.0.0.0",
		ApiUrl:          "http://localhost:8080",
		Network:         "sandbox",
		MinReserve:      "0.01",
		WalletBalance:   "1000000",
		MessageTTL:      DefaultMessageTTL,
		ShutdownTimeout: DefaultShutdownTimeout,
		RunMode:         RunModeServe,
		MempoolCapacity: 1048576,
		SubmitRate:      10,
		SubmitBurst:     20,
		ApiPort:         8080,
		MetricsPort:     12798,
	}
}

var globalConfig = newDefaultConfig()

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.tontip/tontip.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".tontip", "tontip.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/tontip/tontip.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/tontip/tontip.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		var tempCfg tempConfig
		err = yaml.Unmarshal(buf, &tempCfg)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}

		// If config section exists, use it for main config
		if tempCfg.Config != nil {
			// Overlay config values onto existing defaults
			configBytes, err := yaml.Marshal(tempCfg.Config)
			if err != nil {
				return nil, fmt.Errorf("error re-marshalling config: %w", err)
			}
			err = yaml.Unmarshal(configBytes, globalConfig)
			if err != nil {
				return nil, fmt.Errorf("error parsing config section: %w", err)
			}
		} else {
			// Otherwise unmarshal the whole file as main config
			err = yaml.Unmarshal(buf, globalConfig)
			if err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}

		// Handle database section if present
		if tempCfg.Database != nil {
			if tempCfg.Database.Blob != "" {
				globalConfig.BlobStore = tempCfg.Database.Blob
			}
			if tempCfg.Database.Metadata != "" {
				globalConfig.MetadataStore = tempCfg.Database.Metadata
			}
		}
	}
	// Process environment variables
	err := envconfig.Process("tontip", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	// Validate and default RunMode
	if !globalConfig.RunMode.Valid() {
		return nil, fmt.Errorf(
			"invalid runMode: %q (must be 'serve' or 'dev')",
			globalConfig.RunMode,
		)
	}
	if globalConfig.RunMode == "" {
		globalConfig.RunMode = RunModeServe
	}
	if err := globalConfig.validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}

func (c *Config) validate() error {
	if _, err := c.MinReserveCoins(); err != nil {
		return fmt.Errorf("invalid minReserve: %w", err)
	}
	if _, err := c.WalletBalanceCoins(); err != nil {
		return fmt.Errorf("invalid walletBalance: %w", err)
	}
	if _, err := c.MessageTTLDuration(); err != nil {
		return fmt.Errorf("invalid messageTTL: %w", err)
	}
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		return fmt.Errorf("invalid shutdownTimeout: %w", err)
	}
	if c.SubmitRate < 0 || c.SubmitBurst < 0 {
		return fmt.Errorf(
			"invalid submit rate limit: rate %v, burst %d",
			c.SubmitRate,
			c.SubmitBurst,
		)
	}
	return nil
}

// MinReserveCoins returns the balance accounts keep back from withdrawals
func (c *Config) MinReserveCoins() (coins.Coins, error) {
	return coins.Parse(c.MinReserve)
}

// WalletBalanceCoins returns the initial balance of new wallets
func (c *Config) WalletBalanceCoins() (coins.Coins, error) {
	return coins.Parse(c.WalletBalance)
}

func (c *Config) MessageTTLDuration() (time.Duration, error) {
	return time.ParseDuration(c.MessageTTL)
}

func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(c.ShutdownTimeout)
}

// ApiListenAddress returns the host:port the API binds to
func (c *Config) ApiListenAddress() string {
	return net.JoinHostPort(c.BindAddr, strconv.FormatUint(uint64(c.ApiPort), 10))
}
