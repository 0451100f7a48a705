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
	"errors"
)

var (
	ErrMalformedMessage    = errors.New("malformed message")
	ErrAccessDenied        = errors.New("access denied")
	ErrZeroOrInvalidAmount = errors.New("zero or invalid amount")
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNotDeployed         = errors.New("account not deployed")
	ErrUnknownProgram      = errors.New("unknown program")
)

// Exit codes reported for rejected messages. The values follow the codes a
// TON account program reports for the same conditions
const (
	ExitCodeSuccess             = 0
	ExitCodeUnknown             = 1
	ExitCodeZeroOrInvalidAmount = 5
	ExitCodeInsufficientFunds   = 37
	ExitCodeMalformedMessage    = 130
	ExitCodeAccessDenied        = 132
	ExitCodeInvalidRecipient    = 136
	ExitCodeNotDeployed         = -13
)

var exitCodes = []struct {
	err  error
	code int
}{
	{ErrMalformedMessage, ExitCodeMalformedMessage},
	{ErrAccessDenied, ExitCodeAccessDenied},
	{ErrZeroOrInvalidAmount, ExitCodeZeroOrInvalidAmount},
	{ErrInvalidRecipient, ExitCodeInvalidRecipient},
	{ErrInsufficientFunds, ExitCodeInsufficientFunds},
	{ErrNotDeployed, ExitCodeNotDeployed},
	{ErrUnknownProgram, ExitCodeMalformedMessage},
}

// ExitCode maps an error returned by Apply or Query to its exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	for _, tmp := range exitCodes {
		if errors.Is(err, tmp.err) {
			return tmp.code
		}
	}
	return ExitCodeUnknown
}
