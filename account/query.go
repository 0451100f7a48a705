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

package account

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blinklabs-io/tontip/address"
	"github.com/blinklabs-io/tontip/coins"
)

// Getter names a read-only method
type Getter uint8

const (
	GetCounter Getter = iota + 1
	GetId
	GetTotalTips
	GetOwner
	GetRewardAmount
)

var getterNames = map[Getter]string{
	GetCounter:      "GetCounter",
	GetId:           "GetId",
	GetTotalTips:    "GetTotalTips",
	GetOwner:        "GetOwner",
	GetRewardAmount: "GetRewardAmount",
}

func (g Getter) String() string {
	if name, ok := getterNames[g]; ok {
		return name
	}
	return fmt.Sprintf("getter(%d)", uint8(g))
}

// DecodeGetter maps a method name to a Getter. Matching ignores case,
// underscores and an optional "get" prefix, so "GetTotalTips", "totalTips"
// and "get_total_tips" are the same method
func DecodeGetter(name string) (Getter, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", ""))
	key = strings.TrimPrefix(key, "get")
	for g, tmpName := range getterNames {
		if strings.ToLower(strings.TrimPrefix(tmpName, "Get")) == key {
			return g, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown method %q", ErrMalformedMessage, name)
}

// GetterResult holds the value returned by a getter. Value is a uint64, a
// coins.Coins or an address.Address
type GetterResult struct {
	Getter Getter
	Value  any
}

func (r GetterResult) String() string {
	switch v := r.Value.(type) {
	case uint64:
		return strconv.FormatUint(v, 10)
	case coins.Coins:
		return v.String()
	case address.Address:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Kind describes the type of the result value
func (r GetterResult) Kind() string {
	switch r.Value.(type) {
	case uint64:
		return "uint"
	case coins.Coins:
		return "coins"
	case address.Address:
		return "address"
	default:
		return "unknown"
	}
}

// Query runs a read-only method against the account state
func Query(state Account, g Getter) (GetterResult, error) {
	if !state.Deployed {
		return GetterResult{}, fmt.Errorf("%w: %s", ErrNotDeployed, state.Address)
	}
	if !state.Program.supportsGetter(g) {
		return GetterResult{}, fmt.Errorf(
			"%w: %s is not supported by %s",
			ErrMalformedMessage,
			g,
			state.Program,
		)
	}
	ret := GetterResult{Getter: g}
	switch g {
	case GetCounter:
		ret.Value = state.Counter
	case GetId:
		ret.Value = state.SequenceID
	case GetTotalTips:
		ret.Value = state.TotalTipped
	case GetOwner:
		ret.Value = state.Owner
	case GetRewardAmount:
		ret.Value = state.RewardAmount
	}
	return ret, nil
}
