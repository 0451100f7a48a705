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
	"context"
	"testing"
	"time"

	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/api"
	"github.com/blinklabs-io/tontip/client"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTestNode(t *testing.T, opts ...ConfigOptionFunc) *Node {
	t.Helper()
	opts = append(
		[]ConfigOptionFunc{
			WithPrometheusRegistry(prometheus.NewRegistry()),
			WithShutdownTimeout(5 * time.Second),
		},
		opts...,
	)
	n, err := New(NewConfig(opts...))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Run(ctx)
	}()
	select {
	case <-n.Ready():
	case err := <-errCh:
		cancel()
		t.Fatalf("node failed to start: %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("timed out waiting for node to start")
	}
	t.Cleanup(func() {
		cancel()
		require.NoError(t, n.Stop())
		require.NoError(t, <-errCh)
	})
	return n
}

func TestNodeRunStop(t *testing.T) {
	n := runTestNode(t)
	require.NotNil(t, n.LedgerState())
	// API is disabled without a listen address
	assert.Empty(t, n.ApiAddr())
	// Stop is idempotent
	require.NoError(t, n.Stop())
	require.NoError(t, n.Stop())
}

func TestNodeStopBeforeRun(t *testing.T) {
	n, err := New(NewConfig())
	require.NoError(t, err)
	require.NoError(t, n.Stop())
	err = n.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already stopped")
}

func TestNodeEndToEnd(t *testing.T) {
	n := runTestNode(
		t,
		WithApiListenAddress("127.0.0.1:0"),
		WithRunMode("dev"),
		WithWalletBalance(coins.MustParse("100")),
		WithMinReserve(coins.MustParse("0.01")),
	)
	require.NotEmpty(t, n.ApiAddr())
	c := client.New(client.Config{
		BaseUrl:      "http://" + n.ApiAddr(),
		RetryMax:     -1,
		PollInterval: 20 * time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	network, err := c.Network(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultNetwork, network.Network)
	assert.True(t, network.DevMode)

	owner, err := c.CreateWallet(ctx, "owner")
	require.NoError(t, err)
	claimer, err := c.CreateWallet(ctx, "claimer")
	require.NoError(t, err)

	init := account.Init{
		Program:      account.ProgramTreasury,
		Owner:        owner.Address,
		SequenceID:   7,
		RewardAmount: coins.MustParse("0.01"),
	}
	addr, _, err := c.Deploy(ctx, owner.Address, init, coins.MustParse("0.1"), 1)
	require.NoError(t, err)
	_, err = c.WaitForDeploy(ctx, addr)
	require.NoError(t, err)

	// Fill the treasury, then claim one reward
	_, err = c.SendMessage(ctx, api.SubmitMessageRequest{
		From:   owner.Address,
		To:     addr,
		Value:  coins.MustParse("1"),
		Bounce: true,
	})
	require.NoError(t, err)
	sent, err := c.Send(ctx, claimer.Address, addr, coins.MustParse("0.01"), account.ClaimReward{})
	require.NoError(t, err)
	status, err := c.WaitForMessage(ctx, sent.Hash)
	require.NoError(t, err)
	require.NotEmpty(t, status.Transactions)
	assert.Equal(t, "claim_reward", status.Transactions[0].Op)
	assert.True(t, status.Transactions[0].Success)

	reward, err := c.RunGetter(ctx, addr, "rewardAmount")
	require.NoError(t, err)
	assert.Equal(t, "0.01", reward.Value)
}
