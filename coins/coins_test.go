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

package coins_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/tontip/coins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testDefs := []struct {
		input string
		nano  string
		str   string
	}{
		{input: "0", nano: "0", str: "0"},
		{input: "1", nano: "1000000000", str: "1"},
		{input: "1.2", nano: "1200000000", str: "1.2"},
		{input: "0.01", nano: "10000000", str: "0.01"},
		{input: "0.000000001", nano: "1", str: "0.000000001"},
		{input: " 2.50 ", nano: "2500000000", str: "2.5"},
	}
	for _, testDef := range testDefs {
		c, err := coins.Parse(testDef.input)
		require.NoError(t, err, testDef.input)
		assert.Equal(t, testDef.nano, c.Nano(), testDef.input)
		assert.Equal(t, testDef.str, c.String(), testDef.input)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "-1", "0.0000000001", "1e100"} {
		_, err := coins.Parse(input)
		require.Error(t, err, input)
	}
}

func TestAddSub(t *testing.T) {
	a := coins.MustParse("1.5")
	b := coins.MustParse("0.25")
	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "1.75", sum.String())
	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, "1.25", diff.String())
	_, err = b.Sub(a)
	require.ErrorIs(t, err, coins.ErrUnderflow)
	assert.True(t, b.SaturatingSub(a).IsZero())
	assert.Equal(t, "1.25", a.SaturatingSub(b).String())
}

func TestAddOverflow(t *testing.T) {
	maxCoins, err := coins.ParseNano(
		"115792089237316195423570985008687907853269984665640564039457584007913129639935",
	)
	require.NoError(t, err)
	_, err = maxCoins.Add(coins.FromNano(1))
	require.ErrorIs(t, err, coins.ErrOverflow)
}

func TestCompare(t *testing.T) {
	a := coins.FromNano(10)
	b := coins.FromNano(20)
	assert.Equal(t, -1, a.Cmp(b))
	assert.Equal(t, 1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(coins.FromNano(10)))
	assert.True(t, a.LessThan(b))
	assert.True(t, coins.Zero().IsZero())
}

func TestSQL(t *testing.T) {
	c := coins.MustParse("123.456")
	val, err := c.Value()
	require.NoError(t, err)
	assert.Equal(t, "123456000000", val)
	var out coins.Coins
	require.NoError(t, out.Scan(val))
	assert.Equal(t, c, out)
	require.NoError(t, out.Scan([]byte("5")))
	assert.Equal(t, coins.FromNano(5), out)
	require.NoError(t, out.Scan(int64(7)))
	assert.Equal(t, coins.FromNano(7), out)
	require.Error(t, out.Scan(1.5))
}

func TestCBOR(t *testing.T) {
	c := coins.MustParse("1000000.000000001")
	data, err := cbor.Encode(c)
	require.NoError(t, err)
	var out coins.Coins
	_, err = cbor.Decode(data, &out)
	require.NoError(t, err)
	assert.Equal(t, c, out)

	tooBig, err := cbor.Encode([]byte(strings.Repeat("x", 33)))
	require.NoError(t, err)
	_, err = cbor.Decode(tooBig, &out)
	require.Error(t, err)
}

func TestJSON(t *testing.T) {
	type wrapper struct {
		Amount coins.Coins `json:"amount"`
	}
	data, err := json.Marshal(wrapper{Amount: coins.MustParse("0.05")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"0.05"}`, string(data))
	var out wrapper
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, coins.MustParse("0.05"), out.Amount)
}
