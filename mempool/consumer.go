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

package mempool

import (
	"sync"
)

// MempoolConsumer walks the pool in arrival order. Each consumer keeps its own
// position, which is adjusted as messages are removed
type MempoolConsumer struct {
	mempool   *Mempool
	nextIdx   int
	nextIdxMu sync.Mutex
	done      chan struct{}
	doneOnce  sync.Once
}

func newConsumer(mempool *Mempool) *MempoolConsumer {
	return &MempoolConsumer{
		mempool: mempool,
		done:    make(chan struct{}),
	}
}

// Close signals any goroutines blocked on NextMessage to exit.
// Safe to call multiple times.
func (c *MempoolConsumer) Close() {
	if c != nil {
		c.doneOnce.Do(func() { close(c.done) })
	}
}

// NextMessage returns the next unseen message. With blocking set it waits for
// one to be added. It returns nil once the consumer is closed
func (c *MempoolConsumer) NextMessage(blocking bool) *MempoolMessage {
	if c == nil {
		return nil
	}
	for {
		select {
		case <-c.done:
			return nil
		default:
		}
		c.mempool.RLock()
		c.nextIdxMu.Lock()
		if c.nextIdx < len(c.mempool.messages) {
			nextMsg := c.mempool.messages[c.nextIdx]
			c.nextIdx++
			c.nextIdxMu.Unlock()
			c.mempool.RUnlock()
			ret := *nextMsg
			return &ret
		}
		// No message available
		if !blocking || c.mempool.eventBus == nil {
			c.nextIdxMu.Unlock()
			c.mempool.RUnlock()
			return nil
		}
		// Subscribe before releasing the lock so an add can't be missed
		subId, addCh := c.mempool.eventBus.Subscribe(AddMessageEventType)
		c.nextIdxMu.Unlock()
		c.mempool.RUnlock()
		select {
		case _, ok := <-addCh:
			c.mempool.eventBus.Unsubscribe(AddMessageEventType, subId)
			if !ok {
				// Event bus stopped
				return nil
			}
		case <-c.mempool.done:
			c.mempool.eventBus.Unsubscribe(AddMessageEventType, subId)
			return nil
		case <-c.done:
			c.mempool.eventBus.Unsubscribe(AddMessageEventType, subId)
			return nil
		}
	}
}
