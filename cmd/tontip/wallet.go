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
	"github.com/spf13/cobra"
)

func walletCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage faucet wallets on a dev node",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create NAME",
			Short: "Create a wallet with the initial balance",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := newClient(cmd)
				if err != nil {
					return err
				}
				resp, err := c.CreateWallet(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			},
		},
		&cobra.Command{
			Use:   "fund ADDRESS AMOUNT",
			Short: "Add coins to a wallet",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				addr, err := parseAddressArg("wallet", args[0])
				if err != nil {
					return err
				}
				amount, err := parseCoinsArg("amount", args[1])
				if err != nil {
					return err
				}
				c, err := newClient(cmd)
				if err != nil {
					return err
				}
				resp, err := c.Fund(cmd.Context(), addr, amount)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			},
		},
	)
	return cmd
}
