// Copyright 2026 The Authgrid Authors
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

// Package id generates identifiers for authgrid entities.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// NewUUIDv7 returns a time-ordered UUID string. Falls back to a random
// UUIDv4 if the system clock cannot produce a v7 value.
func NewUUIDv7() string {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return u.String()
}

// NewUserID returns a short prefixed user identifier, e.g. "usr_1a2b3c4d5e6f".
func NewUserID() string {
	return "usr_" + shortHex()
}

// NewRoleID returns a short prefixed role identifier, e.g. "role_1a2b3c4d5e6f".
func NewRoleID() string {
	return "role_" + shortHex()
}

func shortHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
