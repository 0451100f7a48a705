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

// Package coins implements amounts of the native asset. Amounts are unsigned
// and counted in nano units, with 10^9 nano per whole coin.
package coins

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const Decimals = 9

var (
	ErrOverflow      = errors.New("coins overflow")
	ErrUnderflow     = errors.New("coins underflow")
	ErrInvalidAmount = errors.New("invalid coins amount")
)

// Coins is an unsigned 256-bit amount of nano units. The zero value is zero coins
//
//nolint:recvcheck
type Coins struct {
	v uint256.Int
}

func Zero() Coins {
	return Coins{}
}

func FromNano(nano uint64) Coins {
	var c Coins
	c.v.SetUint64(nano)
	return c
}

// Parse converts a decimal amount of whole coins (e.g. "1.25") into Coins, the
// same way toNano does
func Parse(s string) (Coins, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Coins{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.Sign() < 0 {
		return Coins{}, fmt.Errorf("%w: negative amount %q", ErrInvalidAmount, s)
	}
	nano := d.Shift(Decimals)
	if !nano.IsInteger() {
		return Coins{}, fmt.Errorf(
			"%w: more than %d decimal places in %q",
			ErrInvalidAmount,
			Decimals,
			s,
		)
	}
	tmp, overflow := uint256.FromBig(nano.BigInt())
	if overflow {
		return Coins{}, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	return Coins{v: *tmp}, nil
}

// MustParse is like Parse but panics on error
func MustParse(s string) Coins {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseNano converts a base-10 count of nano units into Coins
func ParseNano(s string) (Coins, error) {
	tmp, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return Coins{}, fmt.Errorf("%w: %q: %w", ErrInvalidAmount, s, err)
	}
	return Coins{v: *tmp}, nil
}

func (c Coins) Add(other Coins) (Coins, error) {
	var ret Coins
	if _, overflow := ret.v.AddOverflow(&c.v, &other.v); overflow {
		return Coins{}, ErrOverflow
	}
	return ret, nil
}

func (c Coins) Sub(other Coins) (Coins, error) {
	var ret Coins
	if _, underflow := ret.v.SubOverflow(&c.v, &other.v); underflow {
		return Coins{}, fmt.Errorf(
			"%w: %s - %s",
			ErrUnderflow,
			c.String(),
			other.String(),
		)
	}
	return ret, nil
}

// SaturatingSub returns c - other, or zero when other is larger
func (c Coins) SaturatingSub(other Coins) Coins {
	if c.v.Lt(&other.v) {
		return Coins{}
	}
	var ret Coins
	ret.v.Sub(&c.v, &other.v)
	return ret
}

func (c Coins) Cmp(other Coins) int {
	return c.v.Cmp(&other.v)
}

func (c Coins) LessThan(other Coins) bool {
	return c.v.Lt(&other.v)
}

func (c Coins) IsZero() bool {
	return c.v.IsZero()
}

// Nano returns the amount in nano units as a base-10 string
func (c Coins) Nano() string {
	return c.v.Dec()
}

// Uint64 returns the amount in nano units and whether it fits in a uint64
func (c Coins) Uint64() (uint64, bool) {
	return c.v.Uint64(), c.v.IsUint64()
}

// Float64 is a lossy conversion used for metrics
func (c Coins) Float64() float64 {
	f, _ := decimal.NewFromBigInt(c.v.ToBig(), -Decimals).Float64()
	return f
}

// String returns the amount in whole coins, e.g. "1.25"
func (c Coins) String() string {
	return decimal.NewFromBigInt(c.v.ToBig(), -Decimals).String()
}

func (c Coins) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Coins) UnmarshalText(data []byte) error {
	tmp, err := Parse(string(data))
	if err != nil {
		return err
	}
	*c = tmp
	return nil
}

// MarshalCBOR encodes the amount as a big-endian byte string
func (c Coins) MarshalCBOR() ([]byte, error) {
	return cbor.Encode(c.v.Bytes())
}

func (c *Coins) UnmarshalCBOR(data []byte) error {
	var tmp []byte
	if _, err := cbor.Decode(data, &tmp); err != nil {
		return err
	}
	if len(tmp) > 32 {
		return fmt.Errorf("%w: %d bytes", ErrOverflow, len(tmp))
	}
	c.v.SetBytes(tmp)
	return nil
}

// Value stores the amount as a nano-unit decimal string, since it can exceed
// the range of a SQL integer
func (c Coins) Value() (driver.Value, error) {
	return c.Nano(), nil
}

func (c *Coins) Scan(val any) error {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("%w: negative value %d", ErrInvalidAmount, v)
		}
		*c = FromNano(uint64(v))
		return nil
	default:
		return fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
	tmp, err := ParseNano(s)
	if err != nil {
		return err
	}
	*c = tmp
	return nil
}
