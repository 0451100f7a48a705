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
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/blinklabs-io/tontip/event"
	"github.com/blinklabs-io/tontip/ledger"
	"github.com/gorilla/websocket"
)

const (
	eventStreamBufferSize   = 256
	eventStreamWriteTimeout = 5 * time.Second
	eventStreamPingInterval = 30 * time.Second
)

var errSlowConsumer = errors.New("event stream consumer too slow")

// streamSubscriber buffers events for one websocket client. A client that
// falls a full buffer behind is disconnected
type streamSubscriber struct {
	events    chan event.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newStreamSubscriber() *streamSubscriber {
	return &streamSubscriber{
		events: make(chan event.Event, eventStreamBufferSize),
		done:   make(chan struct{}),
	}
}

func (s *streamSubscriber) Deliver(evt event.Event) error {
	select {
	case <-s.done:
		return nil
	default:
	}
	select {
	case s.events <- evt:
		return nil
	default:
		s.Close()
		return errSlowConsumer
	}
}

func (s *streamSubscriber) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// handleEvents handles GET /api/v0/events and streams ledger transactions
// as JSON text frames
func (a *Api) handleEvents(
	w http.ResponseWriter,
	r *http.Request,
) {
	if a.events == nil {
		writeError(
			w,
			http.StatusServiceUnavailable,
			"Service Unavailable",
			"event stream is not available",
		)
		return
	}
	streamCtx := a.streamContext(r)
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an error response
		a.logger.Debug(
			"websocket upgrade failed",
			"error", err,
		)
		return
	}
	defer conn.Close()

	sub := newStreamSubscriber()
	subId := a.events.RegisterSubscriber(ledger.TransactionEventType, sub)
	defer a.events.Unsubscribe(ledger.TransactionEventType, subId)
	a.logger.Debug(
		"event stream opened",
		"client", clientIp(r),
		"subscriber_id", subId,
	)

	// Clients only send control frames. Reading handles them and notices a
	// closed connection
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	pingTicker := time.NewTicker(eventStreamPingInterval)
	defer pingTicker.Stop()
	for {
		select {
		case <-sub.done:
			a.logger.Debug(
				"event stream closed",
				"subscriber_id", subId,
			)
			return
		case <-streamCtx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(
					websocket.CloseGoingAway,
					"server shutting down",
				),
				time.Now().Add(eventStreamWriteTimeout),
			)
			return
		case <-pingTicker.C:
			if err := conn.WriteControl(
				websocket.PingMessage,
				nil,
				time.Now().Add(eventStreamWriteTimeout),
			); err != nil {
				return
			}
		case evt := <-sub.events:
			_ = conn.SetWriteDeadline(time.Now().Add(eventStreamWriteTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				a.logger.Debug(
					"event stream write failed",
					"error", err,
					"subscriber_id", subId,
				)
				return
			}
		}
	}
}
