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

// Package event provides an in-process publish/subscribe bus used to fan out
// ledger and mempool notifications to internal consumers and to remote
// streams.
package event

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultQueueSize is the buffer size of channel subscribers
	DefaultQueueSize = 32

	asyncQueueSize   = 512
	asyncWorkerCount = 2
)

// AllEvents subscribes to every event type
const AllEvents EventType = "*"

const (
	kindChannel = "channel"
	kindRemote  = "remote"
)

type EventType string

type SubscriberId uint64

type HandlerFunc func(Event)

type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

func NewEvent(eventType EventType, data any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// Subscriber receives events from the bus. Deliver returning an error
// unregisters the subscriber. Close must be safe to call more than once
type Subscriber interface {
	Deliver(Event) error
	Close()
}

type subscription struct {
	sub  Subscriber
	kind string
}

type EventBus struct {
	mu       sync.RWMutex
	subs     map[EventType]map[SubscriberId]subscription
	lastId   SubscriberId
	stopped  bool
	logger   *slog.Logger
	metrics  *busMetrics
	asyncCh  chan Event
	doneCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewEventBus returns a running bus. Metrics are only registered when
// promRegistry is non-nil
func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e := &EventBus{
		subs:    make(map[EventType]map[SubscriberId]subscription),
		logger:  logger.With("component", "event"),
		asyncCh: make(chan Event, asyncQueueSize),
		doneCh:  make(chan struct{}),
	}
	if promRegistry != nil {
		e.metrics = newBusMetrics(promRegistry)
	}
	for range asyncWorkerCount {
		e.wg.Add(1)
		go e.asyncWorker()
	}
	return e
}

func (e *EventBus) asyncWorker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.doneCh:
			return
		case evt := <-e.asyncCh:
			e.Publish(evt)
		}
	}
}

// Subscribe returns a channel receiving events of the given type. The channel
// is closed by Unsubscribe or Stop
func (e *EventBus) Subscribe(
	eventType EventType,
) (SubscriberId, <-chan Event) {
	chSub := newChannelSubscriber(DefaultQueueSize)
	subId := e.register(eventType, chSub, kindChannel)
	return subId, chSub.ch
}

// SubscribeFunc calls handler for each event of the given type from a
// dedicated goroutine. A panicking handler does not stop delivery
func (e *EventBus) SubscribeFunc(
	eventType EventType,
	handler HandlerFunc,
) SubscriberId {
	subId, evtCh := e.Subscribe(eventType)
	go func() {
		for evt := range evtCh {
			e.callHandler(handler, evt)
		}
	}()
	return subId
}

func (e *EventBus) callHandler(handler HandlerFunc, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(
				"event handler panic",
				"type", evt.Type,
				"panic", r,
			)
		}
	}()
	handler(evt)
}

// RegisterSubscriber adds an externally managed subscriber, such as a
// websocket stream
func (e *EventBus) RegisterSubscriber(
	eventType EventType,
	sub Subscriber,
) SubscriberId {
	return e.register(eventType, sub, kindRemote)
}

func (e *EventBus) register(
	eventType EventType,
	sub Subscriber,
	kind string,
) SubscriberId {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastId++
	subId := e.lastId
	if e.stopped {
		sub.Close()
		return subId
	}
	typeSubs, ok := e.subs[eventType]
	if !ok {
		typeSubs = make(map[SubscriberId]subscription)
		e.subs[eventType] = typeSubs
	}
	typeSubs[subId] = subscription{sub: sub, kind: kind}
	e.metrics.subscriberAdded(eventType, kind)
	return subId
}

// Unsubscribe removes a subscriber and closes it
func (e *EventBus) Unsubscribe(eventType EventType, subId SubscriberId) {
	e.mu.Lock()
	tmpSub, ok := e.subs[eventType][subId]
	if ok {
		delete(e.subs[eventType], subId)
		if len(e.subs[eventType]) == 0 {
			delete(e.subs, eventType)
		}
		e.metrics.subscriberRemoved(eventType, tmpSub.kind)
	}
	e.mu.Unlock()
	if ok {
		tmpSub.sub.Close()
	}
}

type target struct {
	eventType EventType
	id        SubscriberId
	subscription
}

// Publish delivers an event to the subscribers of its type and to wildcard
// subscribers
func (e *EventBus) Publish(evt Event) {
	e.mu.RLock()
	if e.stopped {
		e.mu.RUnlock()
		return
	}
	targets := make([]target, 0, len(e.subs[evt.Type])+len(e.subs[AllEvents]))
	eventTypes := []EventType{evt.Type}
	if evt.Type != AllEvents {
		eventTypes = append(eventTypes, AllEvents)
	}
	for _, eventType := range eventTypes {
		for id, tmpSub := range e.subs[eventType] {
			targets = append(
				targets,
				target{eventType: eventType, id: id, subscription: tmpSub},
			)
		}
	}
	e.mu.RUnlock()
	for _, t := range targets {
		if err := deliver(t.sub, evt); err != nil {
			e.logger.Debug(
				"event delivery failed, removing subscriber",
				"type", evt.Type,
				"subscriber", t.id,
				"error", err,
			)
			e.metrics.deliveryFailed(evt.Type, t.kind)
			e.Unsubscribe(t.eventType, t.id)
		}
	}
	e.metrics.published(evt.Type)
}

func deliver(sub Subscriber, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return sub.Deliver(evt)
}

// PublishAsync queues an event for delivery by the worker pool. It returns
// false when the bus is stopped or the queue is full
func (e *EventBus) PublishAsync(evt Event) bool {
	e.mu.RLock()
	stopped := e.stopped
	e.mu.RUnlock()
	if stopped {
		return false
	}
	select {
	case e.asyncCh <- evt:
		return true
	default:
		e.logger.Warn("event queue full, dropping event", "type", evt.Type)
		e.metrics.deliveryFailed(evt.Type, "async")
		return false
	}
}

// Stop halts the worker pool and closes every subscriber. Later publishes are
// dropped and later subscriptions receive a closed channel
func (e *EventBus) Stop() {
	e.stopOnce.Do(func() {
		close(e.doneCh)
		e.wg.Wait()
		e.mu.Lock()
		e.stopped = true
		subs := e.subs
		e.subs = make(map[EventType]map[SubscriberId]subscription)
		e.mu.Unlock()
		for eventType, typeSubs := range subs {
			for _, tmpSub := range typeSubs {
				tmpSub.sub.Close()
				e.metrics.subscriberRemoved(eventType, tmpSub.kind)
			}
		}
	})
}

// channelSubscriber adapts a buffered channel to the Subscriber interface
type channelSubscriber struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

func newChannelSubscriber(size int) *channelSubscriber {
	return &channelSubscriber{
		ch: make(chan Event, size),
	}
}

// Deliver never blocks. Events are dropped while the buffer is full
func (c *channelSubscriber) Deliver(evt Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	select {
	case c.ch <- evt:
	default:
	}
	return nil
}

func (c *channelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}
