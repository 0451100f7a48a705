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

// Package mempool holds external messages until the ledger processes them
package mempool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/blinklabs-io/tontip/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	AddMessageEventType    event.EventType = "mempool.add_message"
	RemoveMessageEventType event.EventType = "mempool.remove_message"

	DefaultCapacity   int64 = 1024 * 1024
	DefaultMessageTTL       = 360 * time.Second
)

var (
	ErrMessageExpired = errors.New("message expired")
	// ErrDuplicateMessage is returned along with the hash when an identical
	// message is already queued
	ErrDuplicateMessage = errors.New("message already queued")
)

type AddMessageEvent struct {
	Hash       string    `json:"hash"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Value      string    `json:"value"`
	ValidUntil time.Time `json:"validUntil"`
}

type RemoveMessageEvent struct {
	Hash string `json:"hash"`
}

type MempoolMessage struct {
	AddedAt  time.Time
	LastSeen time.Time
	Hash     string
	Cbor     []byte
	Message  ExternalMessage
}

// MessageValidator checks a message before it is admitted to the pool
type MessageValidator interface {
	ValidateMessage(msg ExternalMessage) error
}

type MempoolConfig struct {
	PromRegistry    prometheus.Registerer
	Validator       MessageValidator
	Logger          *slog.Logger
	EventBus        *event.EventBus
	MempoolCapacity int64
	MessageTTL      time.Duration
}

type Mempool struct {
	config  MempoolConfig
	metrics struct {
		messagesProcessedNum prometheus.Counter
		messagesRejectedNum  *prometheus.CounterVec
		messagesInMempool    prometheus.Gauge
		mempoolBytes         prometheus.Gauge
	}
	validator    MessageValidator
	logger       *slog.Logger
	eventBus     *event.EventBus
	consumers    map[string]*MempoolConsumer
	messages     []*MempoolMessage
	msgByHash    map[string]*MempoolMessage
	currentBytes int
	done         chan struct{}
	doneOnce     sync.Once
	sync.RWMutex
	consumersMutex sync.Mutex
}

type MempoolFullError struct {
	CurrentSize int
	MsgSize     int
	Capacity    int64
}

func (e *MempoolFullError) Error() string {
	return fmt.Sprintf(
		"mempool full: current size=%d bytes, message size=%d bytes, capacity=%d bytes",
		e.CurrentSize,
		e.MsgSize,
		e.Capacity,
	)
}

func NewMempool(config MempoolConfig) *Mempool {
	if config.MempoolCapacity <= 0 {
		config.MempoolCapacity = DefaultCapacity
	}
	if config.MessageTTL <= 0 {
		config.MessageTTL = DefaultMessageTTL
	}
	m := &Mempool{
		eventBus:  config.EventBus,
		consumers: make(map[string]*MempoolConsumer),
		msgByHash: make(map[string]*MempoolMessage),
		validator: config.Validator,
		config:    config,
		done:      make(chan struct{}),
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		m.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		m.logger = config.Logger
	}
	m.logger = m.logger.With("component", "mempool")
	// Init metrics
	promautoFactory := promauto.With(config.PromRegistry)
	m.metrics.messagesProcessedNum = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "tontip_mempool_messages_processed_total",
			Help: "total external messages admitted to the mempool",
		},
	)
	m.metrics.messagesRejectedNum = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tontip_mempool_messages_rejected_total",
			Help: "total external messages rejected by the mempool",
		},
		[]string{"reason"},
	)
	m.metrics.messagesInMempool = promautoFactory.NewGauge(
		prometheus.GaugeOpts{
			Name: "tontip_mempool_messages",
			Help: "current count of mempool messages",
		},
	)
	m.metrics.mempoolBytes = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "tontip_mempool_bytes",
		Help: "current size of mempool messages in bytes",
	})
	return m
}

// Stop releases blocked consumers and clears the pool
func (m *Mempool) Stop(ctx context.Context) error {
	m.doneOnce.Do(func() { close(m.done) })
	m.Lock()
	m.consumersMutex.Lock()
	defer func() {
		m.consumersMutex.Unlock()
		m.Unlock()
	}()
	for name, consumer := range m.consumers {
		consumer.Close()
		delete(m.consumers, name)
	}
	m.messages = nil
	m.msgByHash = make(map[string]*MempoolMessage)
	m.currentBytes = 0
	m.metrics.messagesInMempool.Set(0)
	m.metrics.mempoolBytes.Set(0)
	return ctx.Err()
}

// SetValidator replaces the validator used for new messages
func (m *Mempool) SetValidator(validator MessageValidator) {
	m.Lock()
	defer m.Unlock()
	m.validator = validator
}

func (m *Mempool) AddConsumer(name string) *MempoolConsumer {
	m.consumersMutex.Lock()
	defer m.consumersMutex.Unlock()
	consumer := newConsumer(m)
	m.consumers[name] = consumer
	return consumer
}

func (m *Mempool) RemoveConsumer(name string) {
	m.consumersMutex.Lock()
	defer m.consumersMutex.Unlock()
	if consumer, ok := m.consumers[name]; ok {
		consumer.Close()
		delete(m.consumers, name)
	}
}

func (m *Mempool) Consumer(name string) *MempoolConsumer {
	m.consumersMutex.Lock()
	defer m.consumersMutex.Unlock()
	return m.consumers[name]
}

// AddMessage validates a message and queues it. It returns the hex message
// hash. Resubmitting a queued message only refreshes its last seen time and
// returns the hash with ErrDuplicateMessage
func (m *Mempool) AddMessage(msg ExternalMessage) (string, error) {
	now := time.Now()
	if msg.ValidUntil.IsZero() {
		msg.ValidUntil = now.Add(m.config.MessageTTL)
	}
	if msg.Expired(now) {
		m.metrics.messagesRejectedNum.WithLabelValues("expired").Inc()
		return "", fmt.Errorf(
			"%w: valid until %s",
			ErrMessageExpired,
			msg.ValidUntil.Format(time.RFC3339),
		)
	}
	msgCbor, err := msg.Cbor()
	if err != nil {
		return "", err
	}
	hashBytes, err := msg.Hash()
	if err != nil {
		return "", err
	}
	hash := HashString(hashBytes)
	m.RLock()
	validator := m.validator
	m.RUnlock()
	if validator != nil {
		if err := validator.ValidateMessage(msg); err != nil {
			m.metrics.messagesRejectedNum.WithLabelValues("invalid").Inc()
			return "", err
		}
	}
	m.Lock()
	m.consumersMutex.Lock()
	defer func() {
		m.consumersMutex.Unlock()
		m.Unlock()
	}()
	// Update last seen for existing message
	if existing, ok := m.msgByHash[hash]; ok {
		existing.LastSeen = now
		m.logger.Debug(
			"updated last seen for message",
			"msg_hash", hash,
		)
		m.metrics.messagesRejectedNum.WithLabelValues("duplicate").Inc()
		return hash, ErrDuplicateMessage
	}
	m.purgeExpired(now)
	// Enforce mempool capacity
	if int64(m.currentBytes+len(msgCbor)) > m.config.MempoolCapacity {
		m.metrics.messagesRejectedNum.WithLabelValues("full").Inc()
		return "", &MempoolFullError{
			CurrentSize: m.currentBytes,
			MsgSize:     len(msgCbor),
			Capacity:    m.config.MempoolCapacity,
		}
	}
	tmpMsg := &MempoolMessage{
		Hash:     hash,
		Cbor:     msgCbor,
		Message:  msg,
		AddedAt:  now,
		LastSeen: now,
	}
	m.messages = append(m.messages, tmpMsg)
	m.msgByHash[hash] = tmpMsg
	m.currentBytes += len(msgCbor)
	m.logger.Debug(
		"added message",
		"msg_hash", hash,
		"from", msg.From.String(),
		"to", msg.To.String(),
	)
	m.metrics.messagesProcessedNum.Inc()
	m.metrics.messagesInMempool.Inc()
	m.metrics.mempoolBytes.Add(float64(len(msgCbor)))
	// Generate event
	if m.eventBus != nil {
		m.eventBus.Publish(
			event.NewEvent(
				AddMessageEventType,
				AddMessageEvent{
					Hash:       hash,
					From:       msg.From.String(),
					To:         msg.To.String(),
					Value:      msg.Value.String(),
					ValidUntil: msg.ValidUntil,
				},
			),
		)
	}
	return hash, nil
}

func (m *Mempool) GetMessage(hash string) (MempoolMessage, bool) {
	m.RLock()
	defer m.RUnlock()
	ret, ok := m.msgByHash[hash]
	if !ok {
		return MempoolMessage{}, false
	}
	return *ret, true
}

// Messages returns the queued messages in arrival order
func (m *Mempool) Messages() []MempoolMessage {
	m.RLock()
	defer m.RUnlock()
	ret := make([]MempoolMessage, len(m.messages))
	for i := range m.messages {
		ret[i] = *m.messages[i]
	}
	return ret
}

func (m *Mempool) RemoveMessage(hash string) {
	m.Lock()
	m.consumersMutex.Lock()
	defer func() {
		m.consumersMutex.Unlock()
		m.Unlock()
	}()
	if m.removeMessage(hash) {
		m.logger.Debug(
			"removed message",
			"msg_hash", hash,
		)
	}
}

// PurgeExpired drops every message past its validity window
func (m *Mempool) PurgeExpired() int {
	m.Lock()
	m.consumersMutex.Lock()
	defer func() {
		m.consumersMutex.Unlock()
		m.Unlock()
	}()
	return m.purgeExpired(time.Now())
}

func (m *Mempool) purgeExpired(now time.Time) int {
	count := 0
	// Iterate backward so removals don't shift the remaining indexes
	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := m.messages[i]
		if !msg.Message.Expired(now) {
			continue
		}
		if m.removeMessageByIndex(i) {
			count++
			m.logger.Debug(
				"removed expired message",
				"msg_hash", msg.Hash,
			)
		}
	}
	return count
}

func (m *Mempool) removeMessage(hash string) bool {
	for idx, msg := range m.messages {
		if msg.Hash == hash {
			return m.removeMessageByIndex(idx)
		}
	}
	return false
}

func (m *Mempool) removeMessageByIndex(idx int) bool {
	if idx >= len(m.messages) {
		return false
	}
	msg := m.messages[idx]
	m.messages = slices.Delete(m.messages, idx, idx+1)
	delete(m.msgByHash, msg.Hash)
	m.currentBytes -= len(msg.Cbor)
	m.metrics.messagesInMempool.Dec()
	m.metrics.mempoolBytes.Sub(float64(len(msg.Cbor)))
	// Update consumer indexes to reflect removed message
	for _, consumer := range m.consumers {
		consumer.nextIdxMu.Lock()
		if consumer.nextIdx > idx {
			consumer.nextIdx--
		}
		consumer.nextIdxMu.Unlock()
	}
	// Generate event
	if m.eventBus != nil {
		m.eventBus.Publish(
			event.NewEvent(
				RemoveMessageEventType,
				RemoveMessageEvent{
					Hash: msg.Hash,
				},
			),
		)
	}
	return true
}
