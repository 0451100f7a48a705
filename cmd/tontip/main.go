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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/client"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/blinklabs-io/tontip/internal/config"
	"github.com/blinklabs-io/tontip/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

const (
	programName = "tontip"
)

func slogPrintf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...),
		"component", programName,
	)
}

var (
	globalFlags = struct {
		debug  bool
		apiUrl string
	}{}
	configFile string
)

func logLevel() (slog.Level, bool) {
	if globalFlags.debug {
		return slog.LevelDebug, true
	}
	return slog.LevelInfo, false
}

func commonRun() *slog.Logger {
	// Configure logger
	level, addSource := logLevel()
	logger := slog.New(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource: addSource,
			Level:     level,
		}),
	)
	slog.SetDefault(logger)
	// Configure max processes with our logger wrapper, toss undo func
	_, err := maxprocs.Set(maxprocs.Logger(slogPrintf))
	if err != nil {
		// If we hit this, something really wrong happened
		slog.Error(err.Error())
		os.Exit(1)
	}
	logger.Info(
		"version: "+version.GetVersionString(),
		"component", programName,
	)
	return logger
}

// newClient returns an API client for the configured node. Client logs go to
// stderr so command output stays parseable
func newClient(cmd *cobra.Command) (*client.Client, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, errNoConfig
	}
	level, addSource := logLevel()
	if !globalFlags.debug {
		level = slog.LevelWarn
	}
	logger := slog.New(
		slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			AddSource: addSource,
			Level:     level,
		}),
	)
	return client.New(client.Config{
		Logger:  logger,
		BaseUrl: cfg.ApiUrl,
	}), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAddressArg(name string, value string) (address.Address, error) {
	if value == "" {
		return address.Address{}, fmt.Errorf("missing %s address", name)
	}
	addr, err := address.Parse(value)
	if err != nil {
		return address.Address{}, fmt.Errorf("invalid %s address: %w", name, err)
	}
	return addr, nil
}

func parseCoinsArg(name string, value string) (coins.Coins, error) {
	if value == "" {
		return coins.Coins{}, nil
	}
	amount, err := coins.Parse(value)
	if err != nil {
		return coins.Coins{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return amount, nil
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Local tip counter and treasury ledger",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.apiUrl, "api", "", "base URL of the node API")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		// Override config with command line flags
		if globalFlags.apiUrl != "" {
			cfg.ApiUrl = globalFlags.apiUrl
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	// Subcommands
	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(walletCommand())
	rootCmd.AddCommand(deployCommand())
	rootCmd.AddCommand(sendCommand())
	rootCmd.AddCommand(getCommand())
	rootCmd.AddCommand(accountCommand())
	rootCmd.AddCommand(statusCommand())
	rootCmd.AddCommand(versionCommand())
	return rootCmd
}

func main() {
	// Execute cobra command
	if err := newRootCommand().Execute(); err != nil {
		// NOTE: we purposely don't display the error, since cobra will have already displayed it
		os.Exit(1)
	}
}
