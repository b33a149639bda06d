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


// Package router answers questions against the indexed document stores.
//
// A question first passes parameter validation, then intent classification.
// Conversational intents (greetings, clarification requests) go straight to
// the generator with no retrieval. Document questions embed the question
// once, search the scoped stores concurrently, merge results by score, and
// generate from a prompt template chosen by intent and classification
// confidence: low confidence selects a hedged template that does not presume
// the retrieved context is relevant.
//
// The classifier is a replaceable policy behind the Classifier interface;
// the default is ordered keyword matching.
package router
