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
	"context"
	"time"

	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/api"
	"github.com/spf13/cobra"
)

type deployFlags struct {
	from    string
	owner   string
	id      uint64
	counter uint64
	reward  string
	value   string
	queryID uint64
	wait    bool
	timeout time.Duration
}

type deployResult struct {
	Address string                     `json:"address"`
	Message *api.SubmitMessageResponse `json:"message"`
	Account *api.AccountResponse       `json:"account,omitempty"`
}

// buildInit assembles the init data for a program from the command flags
func (f *deployFlags) buildInit(program string) (account.Init, error) {
	prog, err := account.ParseProgram(program)
	if err != nil {
		return account.Init{}, err
	}
	owner := f.owner
	if owner == "" {
		owner = f.from
	}
	ownerAddr, err := parseAddressArg("owner", owner)
	if err != nil {
		return account.Init{}, err
	}
	reward, err := parseCoinsArg("reward", f.reward)
	if err != nil {
		return account.Init{}, err
	}
	return account.Init{
		Program:      prog,
		Owner:        ownerAddr,
		SequenceID:   f.id,
		Counter:      f.counter,
		RewardAmount: reward,
	}, nil
}

func deployCommand() *cobra.Command {
	flags := &deployFlags{}
	cmd := &cobra.Command{
		Use:       "deploy tipcounter|treasury",
		Short:     "Deploy a program account",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"tipcounter", "treasury"},
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseAddressArg("from", flags.from)
			if err != nil {
				return err
			}
			init, err := flags.buildInit(args[0])
			if err != nil {
				return err
			}
			value, err := parseCoinsArg("value", flags.value)
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()
			addr, resp, err := c.Deploy(
				ctx,
				from,
				init,
				value,
				flags.queryID,
			)
			if err != nil {
				return err
			}
			ret := deployResult{
				Address: addr.String(),
				Message: resp,
			}
			if flags.wait {
				acct, err := c.WaitForDeploy(ctx, addr)
				if err != nil {
					return err
				}
				ret.Account = acct
			}
			return printJSON(cmd.OutOrStdout(), ret)
		},
	}
	cmd.Flags().StringVar(&flags.from, "from", "", "wallet address paying for the deploy")
	cmd.Flags().StringVar(&flags.owner, "owner", "", "owner address (defaults to --from)")
	cmd.Flags().Uint64Var(&flags.id, "id", 0, "sequence ID, varies the account address")
	cmd.Flags().Uint64Var(&flags.counter, "counter", 0, "initial counter value")
	cmd.Flags().StringVar(&flags.reward, "reward", "0", "treasury reward amount")
	cmd.Flags().StringVar(&flags.value, "value", "0.05", "coins attached to the deploy")
	cmd.Flags().Uint64Var(&flags.queryID, "query-id", 0, "query ID echoed in the reply")
	cmd.Flags().BoolVar(&flags.wait, "wait", false, "wait until the account is deployed")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 2*time.Minute, "how long to wait with --wait")
	return cmd
}
