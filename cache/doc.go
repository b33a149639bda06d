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


// Package cache provides a memoizing front for embedding providers.
//
// The Embeddings type keys cached vectors by a BLAKE2b content hash of the
// input text, keeps them within a configurable byte budget (evicting by
// recency and frequency), and collapses concurrent computations for the same
// uncached key into a single provider call.
//
// Because Embeddings implements ai.Embedder, the ingestion pipeline and the
// query router share one cache in front of the real provider.
package cache
