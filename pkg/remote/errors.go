// Copyright 2025 walteh LLC
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

package remote

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

var (
	// ErrAuth matches every *AuthError
	ErrAuth = errors.Base("remote authentication failed")
	// ErrAuthRequired means remote storage was requested without a usable session
	ErrAuthRequired = errors.Base("remote authentication required")
	// ErrRemote matches every *Error
	ErrRemote = errors.Base("remote store error")
	// ErrNotFound is returned by backends for ids that do not exist
	ErrNotFound = errors.Base("remote object not found")
)

// 🔐 AuthError reports a credential or consent failure
type AuthError struct {
	Backend string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authenticating with %s: %v", e.Backend, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

// 🌐 Error reports a failed remote call: network, permission or transfer
type Error struct {
	Op  string
	ID  string
	Err error
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrRemote
}
