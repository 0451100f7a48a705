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
	"encoding/hex"
	"time"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/tontip/account"
	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
	"golang.org/x/crypto/blake2b"
)

// Message is a value-carrying message from a wallet to an address. A non-nil
// Init deploys the destination program on first contact
type Message struct {
	cbor.StructAsArray
	From   address.Address `json:"from"`
	To     address.Address `json:"to"`
	Value  coins.Coins     `json:"value"`
	Body   []byte          `json:"body,omitempty"`
	Init   *account.Init   `json:"init,omitempty"`
	Bounce bool            `json:"bounce"`
}

// Cbor returns the wire encoding of the message
func (m *Message) Cbor() ([]byte, error) {
	return cbor.Encode(m)
}

// Hash returns the blake2b-256 hash of the encoded message
func (m *Message) Hash() ([]byte, error) {
	data, err := m.Cbor()
	if err != nil {
		return nil, err
	}
	hash := blake2b.Sum256(data)
	return hash[:], nil
}

// ExternalMessage is a message waiting in the pool. A zero ValidUntil is
// replaced by the pool's default validity window
type ExternalMessage struct {
	Message
	ValidUntil time.Time `json:"validUntil"`
}

type externalMessageHashBody struct {
	cbor.StructAsArray
	Message    Message
	ValidUntil int64
}

// Hash returns the blake2b-256 hash of the message and its validity window.
// The same message sent with a different window gets a different hash
func (m *ExternalMessage) Hash() ([]byte, error) {
	body := externalMessageHashBody{Message: m.Message}
	if !m.ValidUntil.IsZero() {
		body.ValidUntil = m.ValidUntil.UnixNano()
	}
	data, err := cbor.Encode(&body)
	if err != nil {
		return nil, err
	}
	hash := blake2b.Sum256(data)
	return hash[:], nil
}

// Expired reports whether the message is past its validity window
func (m *ExternalMessage) Expired(now time.Time) bool {
	return !m.ValidUntil.IsZero() && now.After(m.ValidUntil)
}

// HashString returns the hex form of a message hash
func HashString(hash []byte) string {
	return hex.EncodeToString(hash)
}
