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


// Package vectorstore manages named persistent vector stores under a single
// storage root.
//
// Each store is two artifacts on disk: an opaque binary index blob holding
// the embedding vectors, and a human-inspectable JSON metadata file holding
// the chunk records and store bookkeeping. Writes go through temporary files
// and renames, with the metadata rename as the commit point, so a crash at
// any moment leaves the store loadable at its last committed state. State
// that fails validation on load is renamed aside rather than repaired or
// deleted.
//
// Appends hold the store's write lock across embed, insert, and persist;
// searches take the read lock, so reads of one store run concurrently with
// each other but never interleave with a partial append. Different stores
// share nothing but the manager's map and never block each other.
package vectorstore
