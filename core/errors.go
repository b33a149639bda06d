// Copyright 2025 Poiesic Systems
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


package core

import "errors"

// Stable error taxonomy surfaced to callers. Messages never include internal
// file paths or provider credentials.
var (
	// ErrNotFound indicates an unknown request id or store id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidParameter indicates an out-of-range or malformed input.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrCorruptStore indicates persisted store state failed validation on load.
	// The offending store is quarantined rather than silently accepted.
	ErrCorruptStore = errors.New("corrupt store")

	// ErrTimeout indicates an operation exceeded its time budget.
	// Timed-out work is not retried automatically.
	ErrTimeout = errors.New("operation timed out")

	// ErrProvider indicates the embedding or generation dependency failed.
	ErrProvider = errors.New("provider error")

	// ErrEmptyQuestion indicates the query text is empty.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrEmptyStoreID indicates a store identifier is empty.
	ErrEmptyStoreID = errors.New("store id cannot be empty")
)
