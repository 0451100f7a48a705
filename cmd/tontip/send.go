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
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/api"
	"github.com/blinklabs-io/tontip/client"
	"github.com/spf13/cobra"
)

type sendFlags struct {
	from      string
	to        string
	value     string
	amount    string
	recipient string
	sender    string
	queryID   uint64
	plain     bool
	noBounce  bool
	wait      bool
	timeout   time.Duration
}

type sendResult struct {
	Message *api.SubmitMessageResponse `json:"message"`
	Getter  *api.GetterResponse        `json:"getter,omitempty"`
	Status  *api.MessageStatusResponse `json:"status,omitempty"`
}

// buildOp returns the operation named by the first argument and the getter
// whose value it changes, if any
func (f *sendFlags) buildOp(
	name string,
	from address.Address,
) (account.Operation, string, error) {
	switch name {
	case "add":
		amount := uint64(1)
		if f.amount != "" {
			tmp, err := strconv.ParseUint(f.amount, 10, 64)
			if err != nil {
				return nil, "", fmt.Errorf("invalid amount: %w", err)
			}
			amount = tmp
		}
		return account.Add{Amount: amount}, "counter", nil
	case "tip":
		amount, err := parseCoinsArg("amount", f.amount)
		if err != nil {
			return nil, "", err
		}
		if amount.IsZero() {
			return nil, "", errors.New("tip requires a non-zero --amount")
		}
		recipient, err := parseAddressArg("recipient", f.recipient)
		if err != nil {
			return nil, "", err
		}
		sender := from
		if f.sender != "" {
			sender, err = parseAddressArg("sender", f.sender)
			if err != nil {
				return nil, "", err
			}
		}
		return account.TipMessage{
			Amount:    amount,
			Recipient: recipient,
			Sender:    sender,
		}, "totalTips", nil
	case "claim":
		return account.ClaimReward{}, "", nil
	case "withdraw":
		return account.WithdrawAll{}, "", nil
	case "deploy":
		return account.Deploy{QueryID: f.queryID, Plain: f.plain}, "", nil
	default:
		return nil, "", fmt.Errorf("unknown operation %q", name)
	}
}

func sendCommand() *cobra.Command {
	flags := &sendFlags{}
	cmd := &cobra.Command{
		Use:       "send add|tip|claim|withdraw|deploy",
		Short:     "Send an operation to a program account",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"add", "tip", "claim", "withdraw", "deploy"},
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseAddressArg("from", flags.from)
			if err != nil {
				return err
			}
			to, err := parseAddressArg("to", flags.to)
			if err != nil {
				return err
			}
			value, err := parseCoinsArg("value", flags.value)
			if err != nil {
				return err
			}
			op, getter, err := flags.buildOp(args[0], from)
			if err != nil {
				return err
			}
			body, err := account.Encode(op)
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()
			// Read the getter first so the wait can tell when it changes
			previous := ""
			if flags.wait && getter != "" {
				resp, err := c.RunGetter(ctx, to, getter)
				switch {
				case err == nil:
					previous = resp.Value
				case client.IsStatus(err, http.StatusNotFound),
					client.IsStatus(err, http.StatusConflict):
					// Not deployed yet
				default:
					return err
				}
			}
			resp, err := c.SendMessage(ctx, api.SubmitMessageRequest{
				From:   from,
				To:     to,
				Value:  value,
				Body:   body,
				Bounce: !flags.noBounce,
			})
			if err != nil {
				return err
			}
			ret := sendResult{Message: resp}
			if flags.wait {
				if getter != "" {
					ret.Getter, err = c.WaitForChange(ctx, to, getter, previous)
				} else {
					ret.Status, err = c.WaitForMessage(ctx, resp.Hash)
				}
				if err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), ret)
		},
	}
	cmd.Flags().StringVar(&flags.from, "from", "", "sending wallet address")
	cmd.Flags().StringVar(&flags.to, "to", "", "destination account address")
	cmd.Flags().StringVar(&flags.value, "value", "0.05", "coins attached to the message")
	cmd.Flags().StringVar(&flags.amount, "amount", "", "add: counter increment, tip: tip amount")
	cmd.Flags().StringVar(&flags.recipient, "recipient", "", "tip recipient address")
	cmd.Flags().StringVar(&flags.sender, "sender", "", "tip sender address (defaults to --from)")
	cmd.Flags().Uint64Var(&flags.queryID, "query-id", 0, "deploy: query ID echoed in the reply")
	cmd.Flags().BoolVar(&flags.plain, "plain", false, "deploy: skip the reply")
	cmd.Flags().BoolVar(&flags.noBounce, "no-bounce", false, "keep the value if processing fails")
	cmd.Flags().BoolVar(&flags.wait, "wait", false, "wait until the message is processed")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 2*time.Minute, "how long to wait with --wait")
	return cmd
}
