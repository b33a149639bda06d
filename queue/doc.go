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


// Package queue serializes and tracks long-running requests.
//
// The Manager admits ingestion and query requests, guaranteeing that at most
// one request per resource key executes at a time while requests on distinct
// keys run fully in parallel on a shared worker pool. Requests behind the
// same key execute in FIFO admission order.
//
// Callers interact through a polling contract: Submit returns an id
// immediately, even when every worker is busy (the pool hand-off happens off
// the caller's goroutine), Poll reports current state, and AwaitCompletion
// blocks with a timeout that never cancels the underlying work. Terminal
// requests are retained for a configurable window so results survive slow
// pollers, then removed by a background reaper. The reaper and all read paths share one
// table mutex, making "read current state" and "delete if expired" atomic
// with respect to each other.
package queue
