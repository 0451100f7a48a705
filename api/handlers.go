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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/blinklabs-io/tontip/ledger"
	"github.com/blinklabs-io/tontip/mempool"
	"github.com/gorilla/mux"
)

const (
	defaultTransactionsLimit = 20
	maxTransactionsLimit     = 1000
	// Bodies are small CBOR payloads
	maxRequestBodySize = 64 * 1024
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response.
func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

// statusForError maps ledger, engine and pool errors to HTTP status codes
func statusForError(err error) int {
	var fullErr *mempool.MempoolFullError
	switch {
	case errors.As(err, &fullErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrUnknownWallet):
		return http.StatusNotFound
	case errors.Is(err, account.ErrNotDeployed):
		return http.StatusConflict
	case errors.Is(err, account.ErrMalformedMessage),
		errors.Is(err, account.ErrUnknownProgram),
		errors.Is(err, address.ErrInvalidAddress),
		errors.Is(err, coins.ErrInvalidAmount),
		errors.Is(err, coins.ErrOverflow),
		errors.Is(err, ledger.ErrInvalidHash),
		errors.Is(err, ledger.ErrInvalidWalletName),
		errors.Is(err, ledger.ErrInvalidDestination),
		errors.Is(err, ledger.ErrInvalidInit),
		errors.Is(err, ledger.ErrInsufficientWalletBalance),
		errors.Is(err, mempool.ErrMessageExpired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeErrorFor writes the mapped status for err. Unexpected errors are
// logged and their detail withheld from the client
func (a *Api) writeErrorFor(
	w http.ResponseWriter,
	r *http.Request,
	err error,
	action string,
) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		a.logger.Error(
			"failed to "+action,
			"error", err,
			"request_id", r.Header.Get(requestIdHeader),
		)
		writeError(
			w,
			status,
			http.StatusText(status),
			"failed to "+action,
		)
		return
	}
	writeError(w, status, http.StatusText(status), err.Error())
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (a *Api) addressParam(
	w http.ResponseWriter,
	r *http.Request,
) (address.Address, bool) {
	addr, err := address.Parse(mux.Vars(r)["address"])
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return address.Address{}, false
	}
	return addr, true
}

func (a *Api) friendly(addr address.Address) string {
	ret, err := addr.Friendly(a.config.Network)
	if err != nil {
		return ""
	}
	return ret
}

func (a *Api) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Not Found", "no such route")
}

func (a *Api) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(
		w,
		http.StatusMethodNotAllowed,
		"Method Not Allowed",
		"method not allowed for this route",
	)
}

// handleHealth handles GET /health
func (a *Api) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, HealthResponse{
		IsHealthy: true,
	})
}

// handleNetwork handles GET /api/v0/network
func (a *Api) handleNetwork(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, NetworkResponse{
		Network:    a.config.Network,
		MinReserve: a.node.Params().MinReserve,
		Version:    a.config.Version,
		DevMode:    a.config.DevMode,
	})
}

// handleAccount handles GET /api/v0/accounts/{address}
func (a *Api) handleAccount(
	w http.ResponseWriter,
	r *http.Request,
) {
	addr, ok := a.addressParam(w, r)
	if !ok {
		return
	}
	info, err := a.node.Account(addr)
	if err != nil {
		a.writeErrorFor(w, r, err, "retrieve account")
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{
		Address:  info.Address,
		Friendly: a.friendly(info.Address),
		Kind:     info.Kind,
		Name:     info.Name,
		Balance:  info.Balance,
		Account:  info.Account,
		Owns:     info.Owns,
	})
}

// handleAccountTransactions handles
// GET /api/v0/accounts/{address}/transactions?limit=N
func (a *Api) handleAccountTransactions(
	w http.ResponseWriter,
	r *http.Request,
) {
	addr, ok := a.addressParam(w, r)
	if !ok {
		return
	}
	limit := defaultTransactionsLimit
	if tmpLimit := r.URL.Query().Get("limit"); tmpLimit != "" {
		val, err := strconv.Atoi(tmpLimit)
		if err != nil || val < 1 || val > maxTransactionsLimit {
			writeError(
				w,
				http.StatusBadRequest,
				"Bad Request",
				fmt.Sprintf(
					"limit must be between 1 and %d",
					maxTransactionsLimit,
				),
			)
			return
		}
		limit = val
	}
	txs, err := a.node.Transactions(addr, limit)
	if err != nil {
		a.writeErrorFor(w, r, err, "retrieve transactions")
		return
	}
	if txs == nil {
		txs = []ledger.Transaction{}
	}
	writeJSON(w, http.StatusOK, TransactionsResponse{
		Address:      addr,
		Transactions: txs,
	})
}

// handleRunGetter handles GET /api/v0/accounts/{address}/methods/{method}
func (a *Api) handleRunGetter(
	w http.ResponseWriter,
	r *http.Request,
) {
	addr, ok := a.addressParam(w, r)
	if !ok {
		return
	}
	method := mux.Vars(r)["method"]
	result, err := a.node.RunGetter(addr, method)
	if err != nil {
		a.writeErrorFor(w, r, err, "run getter")
		return
	}
	writeJSON(w, http.StatusOK, GetterResponse{
		Address: addr,
		Method:  result.Getter.String(),
		Kind:    result.Kind(),
		Value:   result.String(),
	})
}

// handleSubmitMessage handles POST /api/v0/messages
func (a *Api) handleSubmitMessage(
	w http.ResponseWriter,
	r *http.Request,
) {
	if a.pool == nil {
		writeError(
			w,
			http.StatusServiceUnavailable,
			"Service Unavailable",
			"message pool is not available",
		)
		return
	}
	var req SubmitMessageRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	msg := mempool.ExternalMessage{
		Message: mempool.Message{
			From:   req.From,
			To:     req.To,
			Value:  req.Value,
			Body:   req.Body,
			Init:   req.Init,
			Bounce: req.Bounce,
		},
	}
	if req.ValidUntil != nil {
		msg.ValidUntil = *req.ValidUntil
	}
	hash, err := a.pool.AddMessage(msg)
	duplicate := errors.Is(err, mempool.ErrDuplicateMessage)
	if err != nil && !duplicate {
		a.writeErrorFor(w, r, err, "submit message")
		return
	}
	resp := SubmitMessageResponse{
		Hash:       hash,
		ValidUntil: msg.ValidUntil,
		Duplicate:  duplicate,
	}
	if tmpMsg, ok := a.pool.GetMessage(hash); ok {
		resp.ValidUntil = tmpMsg.Message.ValidUntil
	}
	a.logger.Debug(
		"accepted message",
		"msg_hash", hash,
		"from", req.From.String(),
		"to", req.To.String(),
		"op", account.OpName(req.Body),
		"duplicate", duplicate,
	)
	// A resend of a queued message is not queued again
	if duplicate {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// handleMessageStatus handles GET /api/v0/messages/{hash}
func (a *Api) handleMessageStatus(
	w http.ResponseWriter,
	r *http.Request,
) {
	hash := mux.Vars(r)["hash"]
	if a.pool != nil {
		if tmpMsg, ok := a.pool.GetMessage(hash); ok {
			validUntil := tmpMsg.Message.ValidUntil
			writeJSON(w, http.StatusOK, MessageStatusResponse{
				Hash:       hash,
				Status:     MessageStatusPending,
				Op:         account.OpName(tmpMsg.Message.Body),
				ValidUntil: &validUntil,
			})
			return
		}
	}
	txs, err := a.node.TransactionsByHash(hash)
	if err != nil {
		a.writeErrorFor(w, r, err, "retrieve message")
		return
	}
	if len(txs) == 0 {
		writeError(
			w,
			http.StatusNotFound,
			"Not Found",
			MessageStatusUnknown+" message "+hash,
		)
		return
	}
	writeJSON(w, http.StatusOK, MessageStatusResponse{
		Hash:         hash,
		Status:       MessageStatusProcessed,
		Op:           txs[0].Op,
		Transactions: txs,
	})
}

func (a *Api) requireDevMode(w http.ResponseWriter) bool {
	if !a.config.DevMode {
		writeError(
			w,
			http.StatusForbidden,
			"Forbidden",
			"the wallet faucet is only available in dev mode",
		)
		return false
	}
	return true
}

// handleCreateWallet handles POST /api/v0/wallets
func (a *Api) handleCreateWallet(
	w http.ResponseWriter,
	r *http.Request,
) {
	if !a.requireDevMode(w) {
		return
	}
	var req CreateWalletRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	addr, err := a.node.CreateWallet(req.Name)
	if err != nil {
		a.writeErrorFor(w, r, err, "create wallet")
		return
	}
	balance, err := a.node.WalletBalance(addr)
	if err != nil {
		a.writeErrorFor(w, r, err, "retrieve wallet balance")
		return
	}
	writeJSON(w, http.StatusCreated, WalletResponse{
		Address:  addr,
		Friendly: a.friendly(addr),
		Name:     req.Name,
		Balance:  balance,
	})
}

// handleFundWallet handles POST /api/v0/wallets/{address}/fund
func (a *Api) handleFundWallet(
	w http.ResponseWriter,
	r *http.Request,
) {
	if !a.requireDevMode(w) {
		return
	}
	addr, ok := a.addressParam(w, r)
	if !ok {
		return
	}
	var req FundWalletRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if req.Amount.IsZero() {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"amount must be greater than zero",
		)
		return
	}
	balance, err := a.node.Fund(addr, req.Amount)
	if err != nil {
		a.writeErrorFor(w, r, err, "fund wallet")
		return
	}
	writeJSON(w, http.StatusOK, WalletResponse{
		Address:  addr,
		Friendly: a.friendly(addr),
		Balance:  balance,
	})
}
