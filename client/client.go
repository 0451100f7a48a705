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

// Package client talks to the tontip HTTP API. Requests are retried on
// connection errors and 5xx/429 responses.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/api"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/blinklabs-io/tontip/ledger"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultBaseUrl      = "http://localhost:8080"
	DefaultTimeout      = 30 * time.Second
	DefaultRetryMax     = 3
	DefaultPollInterval = 2 * time.Second
)

type Config struct {
	Logger  *slog.Logger
	BaseUrl string
	Timeout time.Duration
	// RetryMax is the number of retries after the first attempt. A negative
	// value disables retries
	RetryMax     int
	PollInterval time.Duration
}

// ApiError is a non-2xx response from the API
type ApiError struct {
	StatusCode int
	ErrorText  string
	Message    string
}

func (e *ApiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.StatusCode, e.ErrorText)
	}
	return fmt.Sprintf(
		"api error: %d %s: %s",
		e.StatusCode,
		e.ErrorText,
		e.Message,
	)
}

// IsStatus reports whether err is an ApiError with the given status code
func IsStatus(err error, status int) bool {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == status
	}
	return false
}

type Client struct {
	baseUrl      string
	httpClient   *retryablehttp.Client
	logger       *slog.Logger
	pollInterval time.Duration
}

func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	logger = logger.With("component", "client")
	baseUrl := strings.TrimRight(cfg.BaseUrl, "/")
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	httpClient := retryablehttp.NewClient()
	httpClient.HTTPClient.Timeout = timeout
	httpClient.Logger = logger
	switch {
	case cfg.RetryMax < 0:
		httpClient.RetryMax = 0
	case cfg.RetryMax == 0:
		httpClient.RetryMax = DefaultRetryMax
	default:
		httpClient.RetryMax = cfg.RetryMax
	}
	httpClient.RetryWaitMin = 250 * time.Millisecond
	httpClient.RetryWaitMax = 5 * time.Second
	// Hand back the final response so the API error body can be decoded
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &Client{
		baseUrl:      baseUrl,
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	reqBody any,
	dest any,
) error {
	var rawBody any
	if reqBody != nil {
		tmpBody, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rawBody = tmpBody
	}
	req, err := retryablehttp.NewRequestWithContext(
		ctx,
		method,
		c.baseUrl+path,
		rawBody,
	)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &ApiError{
			StatusCode: resp.StatusCode,
			ErrorText:  http.StatusText(resp.StatusCode),
		}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			if errResp.Error != "" {
				apiErr.ErrorText = errResp.Error
			}
			apiErr.Message = errResp.Message
		}
		return apiErr
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, dest); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func accountPath(addr address.Address) string {
	return "/api/v0/accounts/" + url.PathEscape(addr.String())
}

// Network returns the network name and parameters of the node
func (c *Client) Network(ctx context.Context) (*api.NetworkResponse, error) {
	var ret api.NetworkResponse
	if err := c.do(ctx, http.MethodGet, "/api/v0/network", nil, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

// CreateWallet creates or looks up a named wallet. The node must run in dev mode
func (c *Client) CreateWallet(
	ctx context.Context,
	name string,
) (*api.WalletResponse, error) {
	var ret api.WalletResponse
	err := c.do(
		ctx,
		http.MethodPost,
		"/api/v0/wallets",
		api.CreateWalletRequest{Name: name},
		&ret,
	)
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// Fund credits a wallet from the dev faucet
func (c *Client) Fund(
	ctx context.Context,
	addr address.Address,
	amount coins.Coins,
) (*api.WalletResponse, error) {
	var ret api.WalletResponse
	err := c.do(
		ctx,
		http.MethodPost,
		"/api/v0/wallets/"+url.PathEscape(addr.String())+"/fund",
		api.FundWalletRequest{Amount: amount},
		&ret,
	)
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Client) Account(
	ctx context.Context,
	addr address.Address,
) (*api.AccountResponse, error) {
	var ret api.AccountResponse
	if err := c.do(ctx, http.MethodGet, accountPath(addr), nil, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

// RunGetter runs a read-only method such as "counter" or "GetTotalTips"
func (c *Client) RunGetter(
	ctx context.Context,
	addr address.Address,
	method string,
) (*api.GetterResponse, error) {
	var ret api.GetterResponse
	err := c.do(
		ctx,
		http.MethodGet,
		accountPath(addr)+"/methods/"+url.PathEscape(method),
		nil,
		&ret,
	)
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// Transactions returns the newest journal entries for an address. A limit of
// 0 uses the server default
func (c *Client) Transactions(
	ctx context.Context,
	addr address.Address,
	limit int,
) ([]ledger.Transaction, error) {
	path := accountPath(addr) + "/transactions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var ret api.TransactionsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &ret); err != nil {
		return nil, err
	}
	return ret.Transactions, nil
}

// SendMessage queues an external message and returns its hash
func (c *Client) SendMessage(
	ctx context.Context,
	msg api.SubmitMessageRequest,
) (*api.SubmitMessageResponse, error) {
	var ret api.SubmitMessageResponse
	if err := c.do(ctx, http.MethodPost, "/api/v0/messages", msg, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

// Send encodes an operation and queues it as a bounceable message
func (c *Client) Send(
	ctx context.Context,
	from address.Address,
	to address.Address,
	value coins.Coins,
	op account.Operation,
) (*api.SubmitMessageResponse, error) {
	body, err := account.Encode(op)
	if err != nil {
		return nil, err
	}
	return c.SendMessage(
		ctx,
		api.SubmitMessageRequest{
			From:   from,
			To:     to,
			Value:  value,
			Body:   body,
			Bounce: true,
		},
	)
}

// Deploy sends an explicit Deploy carrying the constructor parameters and
// returns the address they derive
func (c *Client) Deploy(
	ctx context.Context,
	from address.Address,
	init account.Init,
	value coins.Coins,
	queryID uint64,
) (address.Address, *api.SubmitMessageResponse, error) {
	addr, err := init.Address()
	if err != nil {
		return address.Address{}, nil, err
	}
	body, err := account.Encode(account.Deploy{QueryID: queryID})
	if err != nil {
		return address.Address{}, nil, err
	}
	resp, err := c.SendMessage(
		ctx,
		api.SubmitMessageRequest{
			From:   from,
			To:     addr,
			Value:  value,
			Body:   body,
			Init:   &init,
			Bounce: true,
		},
	)
	if err != nil {
		return address.Address{}, nil, err
	}
	return addr, resp, nil
}

// MessageStatus reports whether a message is pending or processed
func (c *Client) MessageStatus(
	ctx context.Context,
	hash string,
) (*api.MessageStatusResponse, error) {
	var ret api.MessageStatusResponse
	err := c.do(
		ctx,
		http.MethodGet,
		"/api/v0/messages/"+url.PathEscape(hash),
		nil,
		&ret,
	)
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// poll calls fn every poll interval until it reports done, returns an error
// or ctx ends
func (c *Client) poll(ctx context.Context, fn func() (bool, error)) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		done, err := fn()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitForDeploy polls until a program account is deployed at addr
func (c *Client) WaitForDeploy(
	ctx context.Context,
	addr address.Address,
) (*api.AccountResponse, error) {
	var ret *api.AccountResponse
	err := c.poll(ctx, func() (bool, error) {
		resp, err := c.Account(ctx, addr)
		if err != nil {
			if IsStatus(err, http.StatusNotFound) {
				return false, nil
			}
			return false, err
		}
		if resp.Kind != ledger.AccountKindProgram ||
			resp.Account == nil ||
			!resp.Account.Deployed {
			return false, nil
		}
		ret = resp
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("wait for deploy of %s: %w", addr, err)
	}
	c.logger.Debug(
		"account deployed",
		"address", addr.String(),
	)
	return ret, nil
}

// WaitForChange polls a getter until its value differs from previous and
// returns the new result
func (c *Client) WaitForChange(
	ctx context.Context,
	addr address.Address,
	method string,
	previous string,
) (*api.GetterResponse, error) {
	var ret *api.GetterResponse
	err := c.poll(ctx, func() (bool, error) {
		resp, err := c.RunGetter(ctx, addr, method)
		if err != nil {
			if IsStatus(err, http.StatusConflict) ||
				IsStatus(err, http.StatusNotFound) {
				return false, nil
			}
			return false, err
		}
		if resp.Value == previous {
			return false, nil
		}
		ret = resp
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("wait for %s to change: %w", method, err)
	}
	return ret, nil
}

// WaitForMessage polls until an external message has been processed
func (c *Client) WaitForMessage(
	ctx context.Context,
	hash string,
) (*api.MessageStatusResponse, error) {
	var ret *api.MessageStatusResponse
	err := c.poll(ctx, func() (bool, error) {
		resp, err := c.MessageStatus(ctx, hash)
		if err != nil {
			if IsStatus(err, http.StatusNotFound) {
				return false, nil
			}
			return false, err
		}
		if resp.Status != api.MessageStatusProcessed {
			return false, nil
		}
		ret = resp
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("wait for message %s: %w", hash, err)
	}
	return ret, nil
}
