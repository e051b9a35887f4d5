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

package http

import "context"

type contextKey string

const (
	callerIDKey      contextKey = "caller_id"
	callerSubjectKey contextKey = "caller_subject"
)

// CallerID returns the authenticated caller's local user id, or "".
func CallerID(ctx context.Context) string {
	if val, ok := ctx.Value(callerIDKey).(string); ok {
		return val
	}
	return ""
}

// CallerSubject returns the identity-provider subject from the
// verified token, or "".
func CallerSubject(ctx context.Context) string {
	if val, ok := ctx.Value(callerSubjectKey).(string); ok {
		return val
	}
	return ""
}
