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
	"github.com/blinklabs-io/tontip/api"
	"github.com/blinklabs-io/tontip/ledger"
	"github.com/spf13/cobra"
)

func getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ADDRESS METHOD",
		Short: "Run a read-only method on a program account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddressArg("account", args[0])
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			resp, err := c.RunGetter(cmd.Context(), addr, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

type accountResult struct {
	*api.AccountResponse
	Transactions []ledger.Transaction `json:"transactions,omitempty"`
}

func accountCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "account ADDRESS",
		Short: "Show an account and its recent transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddressArg("account", args[0])
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			resp, err := c.Account(cmd.Context(), addr)
			if err != nil {
				return err
			}
			ret := accountResult{AccountResponse: resp}
			if limit > 0 {
				ret.Transactions, err = c.Transactions(cmd.Context(), addr, limit)
				if err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), ret)
		},
	}
	cmd.Flags().IntVar(&limit, "transactions", 0, "number of recent transactions to include")
	return cmd
}

func statusCommand() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "status HASH",
		Short: "Show the processing status of a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			var resp *api.MessageStatusResponse
			if wait {
				resp, err = c.WaitForMessage(cmd.Context(), args[0])
			} else {
				resp, err = c.MessageStatus(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the message is processed")
	return cmd
}
