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

package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/blinklabs-io/tontip/database"
	"github.com/blinklabs-io/tontip/database/models"
	"github.com/blinklabs-io/tontip/event"
	"github.com/blinklabs-io/tontip/mempool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/blinklabs-io/tontip/ledger"

var timeNow = time.Now

// Message is a value-carrying message submitted by a wallet
type Message = mempool.Message

// Result describes the processing of one external message and its cascade
type Result struct {
	Hash         string        `json:"hash"`
	Transactions []Transaction `json:"transactions"`
	Dropped      int           `json:"dropped,omitempty"`
}

// Success reports whether the submitted message itself was accepted
func (r *Result) Success() bool {
	return len(r.Transactions) > 0 && r.Transactions[0].Success
}

// TransactionTo returns the first transaction delivered to addr
func (r *Result) TransactionTo(addr address.Address) (Transaction, bool) {
	for _, tx := range r.Transactions {
		if tx.To == addr {
			return tx, true
		}
	}
	return Transaction{}, false
}

type pendingMessage struct {
	msg     Message
	hash    []byte
	root    bool
	bounced bool
}

// changeSet tracks what a cascade touched so it can be persisted at once
type changeSet struct {
	wallets        map[address.Address]struct{}
	removedWallets map[address.Address]struct{}
	accounts       map[address.Address]struct{}
	bodies         map[string][]byte
}

func newChangeSet() *changeSet {
	return &changeSet{
		wallets:        make(map[address.Address]struct{}),
		removedWallets: make(map[address.Address]struct{}),
		accounts:       make(map[address.Address]struct{}),
		bodies:         make(map[string][]byte),
	}
}

// SubmitMessage debits the sending wallet and delivers the message, followed
// by every transfer it causes in breadth-first order. The whole cascade is
// applied before any other message is processed
func (ls *LedgerState) SubmitMessage(
	ctx context.Context,
	msg Message,
) (*Result, error) {
	return ls.submit(ctx, msg, nil)
}

// submit processes msg. A non-nil rootHash replaces the message hash of the
// first transaction, so pooled messages keep the hash they were queued under
func (ls *LedgerState) submit(
	ctx context.Context,
	msg Message,
	rootHash []byte,
) (*Result, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "SubmitMessage")
	defer span.End()
	span.SetAttributes(
		attribute.String("from", msg.From.String()),
		attribute.String("to", msg.To.String()),
		attribute.String("value", msg.Value.String()),
		attribute.String("op", account.OpName(msg.Body)),
	)
	result, err := ls.submitMessage(msg, rootHash)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("hash", result.Hash),
		attribute.Bool("success", result.Success()),
		attribute.Int("transactions", len(result.Transactions)),
	)
	return result, nil
}

func (ls *LedgerState) submitMessage(
	msg Message,
	rootHash []byte,
) (*Result, error) {
	ls.Lock()
	defer ls.Unlock()
	if err := ls.validateMessage(msg); err != nil {
		return nil, err
	}
	if rootHash == nil {
		var err error
		rootHash, err = msg.Hash()
		if err != nil {
			return nil, err
		}
	}
	changes := newChangeSet()
	sender := ls.wallets[msg.From]
	balance, err := sender.Balance.Sub(msg.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInsufficientWalletBalance, err)
	}
	sender.Balance = balance
	changes.wallets[msg.From] = struct{}{}
	result := &Result{
		Hash: hex.EncodeToString(rootHash),
	}
	queue := []pendingMessage{{msg: msg, hash: rootHash, root: true}}
	for len(queue) > 0 {
		if len(result.Transactions) >= MaxCascadeMessages {
			result.Dropped = len(queue)
			ls.metrics.messagesDropped.Add(float64(len(queue)))
			ls.logger.Warn(
				"cascade limit reached, dropping messages",
				"msg_hash", result.Hash,
				"dropped", len(queue),
			)
			break
		}
		pm := queue[0]
		queue = queue[1:]
		tx, out, err := ls.deliver(pm, result.Hash, changes)
		if err != nil {
			ls.discardChanges()
			return nil, err
		}
		result.Transactions = append(result.Transactions, tx)
		queue = append(queue, out...)
	}
	if err := ls.persist(result, changes); err != nil {
		ls.discardChanges()
		return nil, fmt.Errorf("persist cascade: %w", err)
	}
	ls.updateMetrics()
	ls.metrics.cascadeSize.Observe(float64(len(result.Transactions)))
	for _, tx := range result.Transactions {
		ls.recordTransaction(tx)
	}
	return result, nil
}

// deliver applies one message to its destination. It returns the journal
// entry and the messages it produced
func (ls *LedgerState) deliver(
	pm pendingMessage,
	rootHash string,
	changes *changeSet,
) (Transaction, []pendingMessage, error) {
	msg := pm.msg
	hash := pm.hash
	var err error
	if hash == nil {
		hash, err = msg.Hash()
		if err != nil {
			return Transaction{}, nil, err
		}
	}
	ls.lt++
	tx := Transaction{
		Timestamp: timeNow(),
		Hash:      hex.EncodeToString(hash),
		Op:        account.OpName(msg.Body),
		From:      msg.From,
		To:        msg.To,
		Value:     msg.Value,
		LT:        ls.lt,
		Bounced:   pm.bounced,
	}
	if !pm.root {
		tx.ParentHash = rootHash
	}
	if pm.bounced {
		tx.Op = "bounce"
	}
	if len(msg.Body) > 0 {
		changes.bodies[string(hash)] = msg.Body
	}
	acct, isProgram := ls.accounts[msg.To]
	if !isProgram && msg.Init != nil {
		// First contact with a program address creates the account
		acct, err = account.New(*msg.Init)
		if err != nil {
			return Transaction{}, nil, err
		}
		// Value sent before the deploy becomes the program's balance
		if w, ok := ls.wallets[msg.To]; ok {
			acct.Balance = w.Balance
			delete(ls.wallets, msg.To)
			delete(changes.wallets, msg.To)
			changes.removedWallets[msg.To] = struct{}{}
		}
		ls.accounts[msg.To] = acct
		changes.accounts[msg.To] = struct{}{}
		isProgram = true
	}
	if !isProgram {
		return ls.deliverToWallet(pm, tx, changes)
	}
	op, err := decodeOperation(pm)
	var next account.Account
	var effects account.Effects
	if err == nil {
		next, effects, err = account.Apply(
			acct,
			account.Inbound{
				Sender: msg.From,
				Value:  msg.Value,
				Op:     op,
				LT:     ls.lt,
			},
			ls.config.Params,
		)
	}
	if err != nil {
		tx.ExitCode = account.ExitCode(err)
		tx.Error = err.Error()
		return tx, ls.bounce(pm), nil
	}
	ls.accounts[msg.To] = next
	changes.accounts[msg.To] = struct{}{}
	tx.Success = true
	tx.Deployed = effects.Deployed
	tx.OutMessages = len(effects.Transfers)
	if tip, ok := op.(account.TipMessage); ok {
		ls.metrics.tipsTotal.Add(tip.Amount.Float64())
	}
	out := make([]pendingMessage, 0, len(effects.Transfers))
	for _, transfer := range effects.Transfers {
		out = append(
			out,
			pendingMessage{
				msg: Message{
					From:   msg.To,
					To:     transfer.To,
					Value:  transfer.Value,
					Body:   transfer.Body,
					Bounce: transfer.Bounce,
				},
			},
		)
	}
	return tx, out, nil
}

// deliverToWallet credits a plain wallet, creating it if needed
func (ls *LedgerState) deliverToWallet(
	pm pendingMessage,
	tx Transaction,
	changes *changeSet,
) (Transaction, []pendingMessage, error) {
	w, ok := ls.wallets[pm.msg.To]
	if !ok {
		w = &wallet{}
		ls.wallets[pm.msg.To] = w
	}
	balance, err := w.Balance.Add(pm.msg.Value)
	if err != nil {
		tx.ExitCode = account.ExitCode(err)
		tx.Error = err.Error()
		return tx, ls.bounce(pm), nil
	}
	w.Balance = balance
	changes.wallets[pm.msg.To] = struct{}{}
	tx.Success = true
	return tx, nil, nil
}

// decodeOperation returns the operation a program runs for a message. Bounces
// and acknowledgements are plain deposits
func decodeOperation(pm pendingMessage) (account.Operation, error) {
	if pm.bounced {
		return account.Deploy{Plain: true}, nil
	}
	if len(pm.msg.Body) > 0 {
		if opcode, err := account.PeekOpcode(pm.msg.Body); err == nil &&
			opcode == account.OpcodeDeployOk {
			return account.Deploy{Plain: true}, nil
		}
	}
	return account.Decode(pm.msg.Body)
}

// bounce returns the attached value of a failed bounceable message to its
// sender. Bounces never bounce
func (ls *LedgerState) bounce(pm pendingMessage) []pendingMessage {
	if !pm.msg.Bounce || pm.bounced || pm.msg.Value.IsZero() {
		return nil
	}
	ls.metrics.messagesBounced.Inc()
	return []pendingMessage{
		{
			msg: Message{
				From:  pm.msg.To,
				To:    pm.msg.From,
				Value: pm.msg.Value,
			},
			bounced: true,
		},
	}
}

func (ls *LedgerState) persist(result *Result, changes *changeSet) error {
	txs := make([]models.Transaction, 0, len(result.Transactions))
	for _, tx := range result.Transactions {
		tmpTx, err := tx.toModel()
		if err != nil {
			return err
		}
		txs = append(txs, tmpTx)
	}
	txn := ls.db.Transaction(true)
	return txn.Do(func(txn *database.Txn) error {
		for addr := range changes.wallets {
			w := ls.wallets[addr]
			if err := ls.db.SetWallet(addr, w.Name, w.Balance, txn); err != nil {
				return err
			}
		}
		for addr := range changes.removedWallets {
			if err := ls.db.DeleteWallet(addr, txn); err != nil {
				return err
			}
		}
		for addr := range changes.accounts {
			if err := ls.db.SetAccount(ls.accounts[addr], txn); err != nil {
				return err
			}
		}
		for hash, body := range changes.bodies {
			if err := ls.db.SetMessageBody([]byte(hash), body, txn); err != nil {
				return err
			}
		}
		if err := ls.db.AddTransactions(txs, txn); err != nil {
			return err
		}
		return ls.db.SetLogicalTime(ls.lt, txn)
	})
}

// discardChanges restores the persisted state after a failed cascade
func (ls *LedgerState) discardChanges() {
	if err := ls.load(); err != nil {
		ls.logger.Error(
			"failed to reload ledger state",
			"error", err,
		)
	}
}

func (ls *LedgerState) recordTransaction(tx Transaction) {
	ls.metrics.messagesProcessed.Inc()
	if tx.Success {
		ls.metrics.valueTransferred.Add(tx.Value.Float64())
	} else {
		ls.metrics.messagesFailed.Inc()
	}
	ls.logger.Debug(
		"processed message",
		"hash", tx.Hash,
		"lt", tx.LT,
		"from", tx.From.String(),
		"to", tx.To.String(),
		"op", tx.Op,
		"success", tx.Success,
		"exit_code", tx.ExitCode,
	)
	if ls.config.EventBus != nil {
		ls.config.EventBus.Publish(
			event.NewEvent(TransactionEventType, tx),
		)
	}
}

// Deploy sends an explicit Deploy with the constructor parameters to the
// address they derive
func (ls *LedgerState) Deploy(
	ctx context.Context,
	from address.Address,
	init account.Init,
	value coins.Coins,
	queryID uint64,
) (*Result, error) {
	addr, err := init.Address()
	if err != nil {
		return nil, err
	}
	body, err := account.Encode(account.Deploy{QueryID: queryID})
	if err != nil {
		return nil, err
	}
	return ls.SubmitMessage(
		ctx,
		Message{
			From:   from,
			To:     addr,
			Value:  value,
			Body:   body,
			Init:   &init,
			Bounce: true,
		},
	)
}
