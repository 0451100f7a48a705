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

package address

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/blake2b"
)

const (
	HashSize = 32

	// Human readable parts for the friendly (bech32) address form
	MainnetHrp = "ton"
	TestnetHrp = "tton"

	BaseWorkchain   int32 = 0
	MasterWorkchain int32 = -1
)

var ErrInvalidAddress = errors.New("invalid address")

// Address identifies an account by workchain and 256-bit hash. The zero value
// means "no address".
type Address struct {
	Workchain int32
	Hash      [HashSize]byte
}

// New returns an address on the given workchain. The hash must be exactly 32 bytes
func New(workchain int32, hash []byte) (Address, error) {
	if len(hash) != HashSize {
		return Address{}, fmt.Errorf(
			"%w: hash length %d, expected %d",
			ErrInvalidAddress,
			len(hash),
			HashSize,
		)
	}
	if workchain < math.MinInt8 || workchain > math.MaxInt8 {
		return Address{}, fmt.Errorf(
			"%w: workchain %d out of range",
			ErrInvalidAddress,
			workchain,
		)
	}
	var a Address
	a.Workchain = workchain
	copy(a.Hash[:], hash)
	return a, nil
}

// FromInit derives the address of a program account from its serialized
// constructor data
func FromInit(initData []byte) Address {
	return Address{
		Workchain: BaseWorkchain,
		Hash:      blake2b.Sum256(initData),
	}
}

// FromName derives the address of a named wallet
func FromName(name string) Address {
	return Address{
		Workchain: BaseWorkchain,
		Hash:      blake2b.Sum256([]byte("wallet:" + name)),
	}
}

// Parse accepts either the raw "<workchain>:<hex hash>" form or the bech32
// friendly form
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty string", ErrInvalidAddress)
	}
	if strings.Contains(s, ":") {
		return parseRaw(s)
	}
	return parseFriendly(s)
}

// MustParse is like Parse but panics on error. It is intended for tests and constants
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func parseRaw(s string) (Address, error) {
	wcStr, hashStr, _ := strings.Cut(s, ":")
	wc, err := strconv.ParseInt(wcStr, 10, 8)
	if err != nil {
		return Address{}, fmt.Errorf(
			"%w: bad workchain %q",
			ErrInvalidAddress,
			wcStr,
		)
	}
	hash, err := hex.DecodeString(hashStr)
	if err != nil {
		return Address{}, fmt.Errorf(
			"%w: bad hash: %w",
			ErrInvalidAddress,
			err,
		)
	}
	return New(int32(wc), hash)
}

func parseFriendly(s string) (Address, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if hrp != MainnetHrp && hrp != TestnetHrp {
		return Address{}, fmt.Errorf(
			"%w: unknown prefix %q",
			ErrInvalidAddress,
			hrp,
		)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(decoded) != HashSize+1 {
		return Address{}, fmt.Errorf(
			"%w: payload length %d",
			ErrInvalidAddress,
			len(decoded),
		)
	}
	return New(int32(int8(decoded[0])), decoded[1:])
}

// IsZero reports whether the address is unset
func (a Address) IsZero() bool {
	return a == Address{}
}

// String returns the raw form of the address
func (a Address) String() string {
	return fmt.Sprintf("%d:%s", a.Workchain, hex.EncodeToString(a.Hash[:]))
}

// Friendly returns the bech32 form of the address using the prefix for the
// named network
func (a Address) Friendly(network string) (string, error) {
	payload := make([]byte, 0, HashSize+1)
	payload = append(payload, byte(int8(a.Workchain))) // #nosec G115
	payload = append(payload, a.Hash[:]...)
	convData, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert bits: %w", err)
	}
	encoded, err := bech32.Encode(HrpForNetwork(network), convData)
	if err != nil {
		return "", fmt.Errorf("failed to encode bech32: %w", err)
	}
	return encoded, nil
}

// HrpForNetwork returns the bech32 prefix used for the named network
func HrpForNetwork(network string) string {
	if network == "mainnet" {
		return MainnetHrp
	}
	return TestnetHrp
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = Address{}
		return nil
	}
	tmp, err := Parse(string(data))
	if err != nil {
		return err
	}
	*a = tmp
	return nil
}

type addressCbor struct {
	cbor.StructAsArray
	Workchain int32
	Hash      []byte
}

// MarshalCBOR encodes the address as a [workchain, hash] array
func (a Address) MarshalCBOR() ([]byte, error) {
	return cbor.Encode(
		&addressCbor{
			Workchain: a.Workchain,
			Hash:      a.Hash[:],
		},
	)
}

func (a *Address) UnmarshalCBOR(data []byte) error {
	var tmp addressCbor
	if _, err := cbor.Decode(data, &tmp); err != nil {
		return err
	}
	addr, err := New(tmp.Workchain, tmp.Hash)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}
