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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/blinklabs-io/tontip/event"
	"github.com/blinklabs-io/tontip/ledger"
	"github.com/blinklabs-io/tontip/mempool"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAlice   = address.FromName("alice")
	testBob     = address.FromName("bob")
	testProgram = address.FromName("program")
)

// mockNode implements ApiNode for testing.
type mockNode struct {
	accounts  map[address.Address]ledger.AccountInfo
	getters   map[string]account.GetterResult
	getterErr error
	txs       []ledger.Transaction
	txsErr    error
	byHash    map[string][]ledger.Transaction
	wallets   map[address.Address]coins.Coins
	lastLimit int
}

func newMockNode() *mockNode {
	return &mockNode{
		accounts: make(map[address.Address]ledger.AccountInfo),
		getters:  make(map[string]account.GetterResult),
		byHash:   make(map[string][]ledger.Transaction),
		wallets:  make(map[address.Address]coins.Coins),
	}
}

func (m *mockNode) Account(
	addr address.Address,
) (ledger.AccountInfo, error) {
	info, ok := m.accounts[addr]
	if !ok {
		return ledger.AccountInfo{}, fmt.Errorf(
			"%w: %s",
			ledger.ErrAccountNotFound,
			addr,
		)
	}
	return info, nil
}

func (m *mockNode) RunGetter(
	_ address.Address,
	method string,
) (account.GetterResult, error) {
	if m.getterErr != nil {
		return account.GetterResult{}, m.getterErr
	}
	return m.getters[method], nil
}

func (m *mockNode) Transactions(
	_ address.Address,
	limit int,
) ([]ledger.Transaction, error) {
	m.lastLimit = limit
	return m.txs, m.txsErr
}

func (m *mockNode) TransactionsByHash(
	hash string,
) ([]ledger.Transaction, error) {
	if len(hash) != 64 {
		return nil, ledger.ErrInvalidHash
	}
	return m.byHash[hash], nil
}

func (m *mockNode) CreateWallet(name string) (address.Address, error) {
	if name == "" {
		return address.Address{}, ledger.ErrInvalidWalletName
	}
	addr := address.FromName(name)
	if _, ok := m.wallets[addr]; !ok {
		m.wallets[addr] = coins.MustParse("100")
	}
	return addr, nil
}

func (m *mockNode) Fund(
	addr address.Address,
	amount coins.Coins,
) (coins.Coins, error) {
	balance, ok := m.wallets[addr]
	if !ok {
		return coins.Coins{}, ledger.ErrUnknownWallet
	}
	balance, err := balance.Add(amount)
	if err != nil {
		return coins.Coins{}, err
	}
	m.wallets[addr] = balance
	return balance, nil
}

func (m *mockNode) WalletBalance(addr address.Address) (coins.Coins, error) {
	balance, ok := m.wallets[addr]
	if !ok {
		return coins.Coins{}, ledger.ErrUnknownWallet
	}
	return balance, nil
}

func (m *mockNode) Params() account.Params {
	return account.DefaultParams()
}

// mockPool implements MessagePool with a fixed error
type mockPool struct {
	err error
}

func (m *mockPool) AddMessage(mempool.ExternalMessage) (string, error) {
	return "", m.err
}

func (m *mockPool) GetMessage(string) (mempool.MempoolMessage, bool) {
	return mempool.MempoolMessage{}, false
}

func newTestApi(
	node ApiNode,
	pool MessagePool,
	events EventSource,
	devMode bool,
) *Api {
	return New(
		ApiConfig{
			ListenAddress: ":0",
			Network:       "sandbox",
			Version:       "test",
			DevMode:       devMode,
			PromRegistry:  prometheus.NewRegistry(),
		},
		node,
		pool,
		events,
		slog.Default(),
	)
}

func doRequest(
	t *testing.T,
	a *Api,
	method string,
	path string,
	body any,
) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reqBody)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, rec.Code, resp.StatusCode)
	return resp
}

func TestStartStop(t *testing.T) {
	a := newTestApi(newMockNode(), nil, nil, false)

	err := a.Start(t.Context())
	require.NoError(t, err)

	// Verify server is running
	a.mu.Lock()
	assert.NotNil(t, a.httpServer)
	a.mu.Unlock()
	assert.NotEqual(t, ":0", a.Addr())

	_, port, err := net.SplitHostPort(a.Addr())
	require.NoError(t, err)
	resp, err := http.Get("http://127.0.0.1:" + port + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Stop the server
	stopCtx, stopCancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer stopCancel()
	err = a.Stop(stopCtx)
	require.NoError(t, err)

	// Verify server is stopped
	a.mu.Lock()
	assert.Nil(t, a.httpServer)
	a.mu.Unlock()
}

func TestStartAlreadyStarted(t *testing.T) {
	a := newTestApi(newMockNode(), nil, nil, false)

	ctx := t.Context()
	err := a.Start(ctx)
	require.NoError(t, err)
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(
			context.Background(),
			5*time.Second,
		)
		defer stopCancel()
		_ = a.Stop(stopCtx)
	}()

	// Starting again should error
	err = a.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestStartPortInUse(t *testing.T) {
	first := newTestApi(newMockNode(), nil, nil, false)
	require.NoError(t, first.Start(t.Context()))
	defer func() {
		_ = first.Stop(context.Background())
	}()

	second := New(
		ApiConfig{ListenAddress: first.Addr()},
		newMockNode(),
		nil,
		nil,
		nil,
	)
	err := second.Start(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestHandleHealth(t *testing.T) {
	a := newTestApi(newMockNode(), nil, nil, false)
	rec := doRequest(t, a, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(requestIdHeader))
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.IsHealthy)
}

func TestRequestIdKept(t *testing.T) {
	a := newTestApi(newMockNode(), nil, nil, false)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIdHeader, "abc123")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc123", rec.Header().Get(requestIdHeader))
}

func TestHandleNetwork(t *testing.T) {
	a := newTestApi(newMockNode(), nil, nil, true)
	rec := doRequest(t, a, http.MethodGet, "/api/v0/network", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp NetworkResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "sandbox", resp.Network)
	assert.Equal(t, "test", resp.Version)
	assert.True(t, resp.DevMode)
	assert.Equal(t, "0.01", resp.MinReserve.String())
}

func TestHandleNotFoundRoute(t *testing.T) {
	a := newTestApi(newMockNode(), nil, nil, false)
	rec := doRequest(t, a, http.MethodGet, "/api/v0/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	decodeError(t, rec)

	rec = doRequest(t, a, http.MethodDelete, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleAccount(t *testing.T) {
	node := newMockNode()
	acct := account.Account{
		Address: testProgram,
		Init: account.Init{
			Program: account.ProgramTipCounter,
			Owner:   testAlice,
		},
		Program:  account.ProgramTipCounter,
		Deployed: true,
		Owner:    testAlice,
		Balance:  coins.MustParse("1.5"),
	}
	node.accounts[testProgram] = ledger.AccountInfo{
		Account: &acct,
		Address: testProgram,
		Kind:    ledger.AccountKindProgram,
		Balance: acct.Balance,
	}
	node.accounts[testAlice] = ledger.AccountInfo{
		Address: testAlice,
		Kind:    ledger.AccountKindWallet,
		Name:    "alice",
		Balance: coins.MustParse("100"),
		Owns:    []address.Address{testProgram},
	}
	a := newTestApi(node, nil, nil, false)

	rec := doRequest(t, a, http.MethodGet, "/api/v0/accounts/"+testProgram.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AccountResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, ledger.AccountKindProgram, resp.Kind)
	assert.Equal(t, "1.5", resp.Balance.String())
	require.NotNil(t, resp.Account)
	assert.Equal(t, testAlice, resp.Account.Owner)
	assert.True(t, resp.Account.Deployed)
	assert.NotEmpty(t, resp.Friendly)

	// Friendly form resolves to the same account
	rec = doRequest(t, a, http.MethodGet, "/api/v0/accounts/"+resp.Friendly, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, a, http.MethodGet, "/api/v0/accounts/"+testAlice.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = AccountResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, ledger.AccountKindWallet, resp.Kind)
	assert.Equal(t, "alice", resp.Name)
	assert.Equal(t, []address.Address{testProgram}, resp.Owns)
	assert.Nil(t, resp.Account)
}

func TestHandleAccountErrors(t *testing.T) {
	a := newTestApi(newMockNode(), nil, nil, false)

	rec := doRequest(t, a, http.MethodGet, "/api/v0/accounts/not-an-address", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	decodeError(t, rec)

	rec = doRequest(t, a, http.MethodGet, "/api/v0/accounts/"+testBob.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Contains(t, resp.Message, "account not found")
}

func TestHandleAccountTransactions(t *testing.T) {
	node := newMockNode()
	node.txs = []ledger.Transaction{
		{Hash: "bb", LT: 2, Op: "tip", From: testAlice, To: testProgram},
		{Hash: "aa", LT: 1, Op: "deploy", From: testAlice, To: testProgram},
	}
	a := newTestApi(node, nil, nil, false)
	path := "/api/v0/accounts/" + testProgram.String() + "/transactions"

	rec := doRequest(t, a, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultTransactionsLimit, node.lastLimit)
	var resp TransactionsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Transactions, 2)
	assert.Equal(t, uint64(2), resp.Transactions[0].LT)

	rec = doRequest(t, a, http.MethodGet, path+"?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, node.lastLimit)

	for _, limit := range []string{"0", "-1", "abc", "100000"} {
		rec = doRequest(t, a, http.MethodGet, path+"?limit="+limit, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit %s", limit)
	}

	node.txsErr = errors.New("disk on fire")
	rec = doRequest(t, a, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp2 := decodeError(t, rec)
	assert.NotContains(t, resp2.Message, "disk on fire")
}

func TestHandleRunGetter(t *testing.T) {
	node := newMockNode()
	node.getters["counter"] = account.GetterResult{
		Getter: account.GetCounter,
		Value:  uint64(42),
	}
	node.getters["totalTips"] = account.GetterResult{
		Getter: account.GetTotalTips,
		Value:  coins.MustParse("1"),
	}
	a := newTestApi(node, nil, nil, false)
	base := "/api/v0/accounts/" + testProgram.String() + "/methods/"

	rec := doRequest(t, a, http.MethodGet, base+"counter", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp GetterResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "GetCounter", resp.Method)
	assert.Equal(t, "uint", resp.Kind)
	assert.Equal(t, "42", resp.Value)

	rec = doRequest(t, a, http.MethodGet, base+"totalTips", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = GetterResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "coins", resp.Kind)
	assert.Equal(t, "1", resp.Value)

	testDefs := []struct {
		err    error
		status int
	}{
		{account.ErrNotDeployed, http.StatusConflict},
		{account.ErrMalformedMessage, http.StatusBadRequest},
		{ledger.ErrAccountNotFound, http.StatusNotFound},
	}
	for _, testDef := range testDefs {
		node.getterErr = fmt.Errorf("%w: test", testDef.err)
		rec = doRequest(t, a, http.MethodGet, base+"counter", nil)
		assert.Equal(t, testDef.status, rec.Code, testDef.err.Error())
	}
}

func TestSubmitMessage(t *testing.T) {
	pool := mempool.NewMempool(mempool.MempoolConfig{})
	defer func() {
		_ = pool.Stop(context.Background())
	}()
	a := newTestApi(newMockNode(), pool, nil, false)
	body, err := account.Encode(account.Add{Amount: 5})
	require.NoError(t, err)

	rec := doRequest(t, a, http.MethodPost, "/api/v0/messages", SubmitMessageRequest{
		From:   testAlice,
		To:     testProgram,
		Value:  coins.MustParse("0.05"),
		Body:   body,
		Bounce: true,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp SubmitMessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Hash, 64)
	assert.True(t, resp.ValidUntil.After(time.Now()))
	assert.Len(t, pool.Messages(), 1)

	rec = doRequest(t, a, http.MethodGet, "/api/v0/messages/"+resp.Hash, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status MessageStatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, MessageStatusPending, status.Status)
	assert.Equal(t, "add", status.Op)
	require.NotNil(t, status.ValidUntil)
}

func TestSubmitMessageRepeats(t *testing.T) {
	pool := mempool.NewMempool(mempool.MempoolConfig{})
	defer func() {
		_ = pool.Stop(context.Background())
	}()
	a := newTestApi(newMockNode(), pool, nil, false)
	body, err := account.Encode(account.Add{Amount: 1})
	require.NoError(t, err)
	submit := func(validUntil *time.Time) (int, SubmitMessageResponse) {
		rec := doRequest(t, a, http.MethodPost, "/api/v0/messages", SubmitMessageRequest{
			From:       testAlice,
			To:         testProgram,
			Value:      coins.MustParse("0.05"),
			Body:       body,
			Bounce:     true,
			ValidUntil: validUntil,
		})
		var resp SubmitMessageResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		return rec.Code, resp
	}

	// Two identical operations without a validity window are both queued
	code1, resp1 := submit(nil)
	require.Equal(t, http.StatusAccepted, code1)
	code2, resp2 := submit(nil)
	require.Equal(t, http.StatusAccepted, code2)
	assert.NotEqual(t, resp1.Hash, resp2.Hash)
	assert.False(t, resp2.Duplicate)
	assert.Len(t, pool.Messages(), 2)

	// Resending with the same window is reported as a duplicate
	validUntil := time.Now().Add(time.Minute).Truncate(time.Second)
	code3, resp3 := submit(&validUntil)
	require.Equal(t, http.StatusAccepted, code3)
	code4, resp4 := submit(&validUntil)
	require.Equal(t, http.StatusOK, code4)
	assert.True(t, resp4.Duplicate)
	assert.Equal(t, resp3.Hash, resp4.Hash)
	assert.Len(t, pool.Messages(), 3)
}

func TestSubmitMessageBadRequest(t *testing.T) {
	pool := mempool.NewMempool(mempool.MempoolConfig{})
	defer func() {
		_ = pool.Stop(context.Background())
	}()
	a := newTestApi(newMockNode(), pool, nil, false)

	testDefs := []string{
		`not json`,
		`{"from":"bogus","to":"` + testProgram.String() + `"}`,
		`{"from":"` + testAlice.String() + `","value":"-1"}`,
		`{"from":"` + testAlice.String() + `","extra":true}`,
	}
	for _, testDef := range testDefs {
		req := httptest.NewRequest(
			http.MethodPost,
			"/api/v0/messages",
			strings.NewReader(testDef),
		)
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, testDef)
	}

	// Expired validity window
	past := time.Now().Add(-time.Minute)
	rec := doRequest(t, a, http.MethodPost, "/api/v0/messages", SubmitMessageRequest{
		From:       testAlice,
		To:         testProgram,
		ValidUntil: &past,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Contains(t, resp.Message, "expired")
}

func TestSubmitMessagePoolErrors(t *testing.T) {
	testDefs := []struct {
		err    error
		status int
	}{
		{&mempool.MempoolFullError{CurrentSize: 10, MsgSize: 5, Capacity: 12}, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: x", ledger.ErrUnknownWallet), http.StatusNotFound},
		{fmt.Errorf("%w: x", ledger.ErrInsufficientWalletBalance), http.StatusBadRequest},
		{fmt.Errorf("%w: x", ledger.ErrInvalidInit), http.StatusBadRequest},
	}
	for _, testDef := range testDefs {
		a := newTestApi(newMockNode(), &mockPool{err: testDef.err}, nil, false)
		rec := doRequest(t, a, http.MethodPost, "/api/v0/messages", SubmitMessageRequest{
			From: testAlice,
			To:   testProgram,
		})
		assert.Equal(t, testDef.status, rec.Code, testDef.err.Error())
	}

	a := newTestApi(newMockNode(), nil, nil, false)
	rec := doRequest(t, a, http.MethodPost, "/api/v0/messages", SubmitMessageRequest{})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMessageStatus(t *testing.T) {
	node := newMockNode()
	processed := strings.Repeat("ab", 32)
	node.byHash[processed] = []ledger.Transaction{
		{Hash: processed, Op: "tip", Success: true, LT: 3},
		{Hash: "cd", ParentHash: processed, Op: "transfer", Success: true, LT: 4},
	}
	a := newTestApi(node, &mockPool{}, nil, false)

	rec := doRequest(t, a, http.MethodGet, "/api/v0/messages/"+processed, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp MessageStatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, MessageStatusProcessed, resp.Status)
	assert.Equal(t, "tip", resp.Op)
	assert.Len(t, resp.Transactions, 2)

	rec = doRequest(t, a, http.MethodGet, "/api/v0/messages/"+strings.Repeat("00", 32), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	errResp := decodeError(t, rec)
	assert.Contains(t, errResp.Message, MessageStatusUnknown)

	rec = doRequest(t, a, http.MethodGet, "/api/v0/messages/xyz", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWalletFaucet(t *testing.T) {
	node := newMockNode()

	a := newTestApi(node, nil, nil, false)
	rec := doRequest(t, a, http.MethodPost, "/api/v0/wallets", CreateWalletRequest{Name: "alice"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doRequest(
		t, a, http.MethodPost,
		"/api/v0/wallets/"+testAlice.String()+"/fund",
		FundWalletRequest{Amount: coins.MustParse("1")},
	)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, node.wallets)

	a = newTestApi(node, nil, nil, true)
	rec = doRequest(t, a, http.MethodPost, "/api/v0/wallets", CreateWalletRequest{Name: "alice"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp WalletResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, testAlice, resp.Address)
	assert.Equal(t, "alice", resp.Name)
	assert.Equal(t, "100", resp.Balance.String())

	rec = doRequest(t, a, http.MethodPost, "/api/v0/wallets", CreateWalletRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(
		t, a, http.MethodPost,
		"/api/v0/wallets/"+testAlice.String()+"/fund",
		FundWalletRequest{Amount: coins.MustParse("2.5")},
	)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = WalletResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "102.5", resp.Balance.String())

	rec = doRequest(
		t, a, http.MethodPost,
		"/api/v0/wallets/"+testBob.String()+"/fund",
		FundWalletRequest{Amount: coins.MustParse("1")},
	)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(
		t, a, http.MethodPost,
		"/api/v0/wallets/"+testAlice.String()+"/fund",
		FundWalletRequest{},
	)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRateLimit(t *testing.T) {
	a := New(
		ApiConfig{
			SubmitRate:   0.001,
			SubmitBurst:  2,
			DevMode:      true,
			PromRegistry: prometheus.NewRegistry(),
		},
		newMockNode(),
		nil,
		nil,
		nil,
	)
	for range 2 {
		rec := doRequest(t, a, http.MethodPost, "/api/v0/wallets", CreateWalletRequest{Name: "alice"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := doRequest(t, a, http.MethodPost, "/api/v0/wallets", CreateWalletRequest{Name: "alice"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	decodeError(t, rec)

	// Reads are not limited
	rec = doRequest(t, a, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Another client has its own bucket
	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v0/wallets",
		strings.NewReader(`{"name":"bob"}`),
	)
	req.RemoteAddr = "10.1.2.3:4567"
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRequestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(
		ApiConfig{PromRegistry: reg},
		newMockNode(),
		nil,
		nil,
		nil,
	)
	doRequest(t, a, http.MethodGet, "/health", nil)
	doRequest(t, a, http.MethodGet, "/health", nil)
	doRequest(t, a, http.MethodGet, "/api/v0/accounts/"+testBob.String(), nil)
	assert.InDelta(
		t,
		2,
		testutil.ToFloat64(a.metrics.requests.WithLabelValues("/health", "200")),
		0,
	)
	assert.InDelta(
		t,
		1,
		testutil.ToFloat64(
			a.metrics.requests.WithLabelValues("/api/v0/accounts/{address}", "404"),
		),
		0,
	)
}

func TestEventStream(t *testing.T) {
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	a := newTestApi(newMockNode(), nil, bus, false)
	server := httptest.NewServer(a.Handler())
	defer server.Close()

	wsUrl := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v0/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsUrl, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	tx := ledger.Transaction{
		Hash:    strings.Repeat("ef", 32),
		Op:      "tip",
		From:    testAlice,
		To:      testProgram,
		Value:   coins.MustParse("1.2"),
		LT:      7,
		Success: true,
	}
	type streamEvent struct {
		Type event.EventType    `json:"type"`
		Data ledger.Transaction `json:"data"`
	}
	received := make(chan streamEvent, 16)
	go func() {
		defer close(received)
		for {
			var evt streamEvent
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			received <- evt
		}
	}()
	// The subscriber is registered once the upgrade completes
	var evt streamEvent
	require.Eventually(t, func() bool {
		bus.Publish(event.NewEvent(ledger.TransactionEventType, tx))
		select {
		case evt = <-received:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, ledger.TransactionEventType, evt.Type)
	assert.Equal(t, tx.Hash, evt.Data.Hash)
	assert.Equal(t, uint64(7), evt.Data.LT)
	assert.Equal(t, "1.2", evt.Data.Value.String())
	assert.True(t, evt.Data.Success)

	// Other event types are not streamed
	bus.Publish(event.NewEvent(mempool.AddMessageEventType, mempool.AddMessageEvent{}))
	bus.Publish(event.NewEvent(ledger.TransactionEventType, tx))
	select {
	case evt = <-received:
		assert.Equal(t, ledger.TransactionEventType, evt.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventStreamUnavailable(t *testing.T) {
	a := newTestApi(newMockNode(), nil, nil, false)
	rec := doRequest(t, a, http.MethodGet, "/api/v0/events", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamSubscriberSlowConsumer(t *testing.T) {
	sub := newStreamSubscriber()
	for range eventStreamBufferSize {
		require.NoError(t, sub.Deliver(event.Event{}))
	}
	require.ErrorIs(t, sub.Deliver(event.Event{}), errSlowConsumer)
	select {
	case <-sub.done:
	default:
		t.Fatal("subscriber should be closed")
	}
	// Closed subscribers drop events quietly
	require.NoError(t, sub.Deliver(event.Event{}))
	sub.Close()
}
