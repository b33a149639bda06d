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


package router

import (
	"strings"

	"github.com/poiesic/docqa/core"
)

// Classification is the outcome of intent classification for one question.
type Classification struct {
	Intent     core.QueryIntent
	Confidence float64
}

// Classifier decides how a question should be routed. Implementations must
// be safe for concurrent use.
type Classifier interface {
	Classify(question string) Classification
}

// KeywordClassifier routes on ordered substring checks: casual greetings
// first, then clarification requests, then document cues. Questions matching
// nothing default to a low-confidence document question, which selects the
// hedged prompt downstream.
type KeywordClassifier struct {
	casual        []string
	clarification []string
	document      []string
}

// NewKeywordClassifier creates a classifier with the default pattern lists.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		casual: []string{
			"hello", "hi", "hey", "how are you", "what's up", "good morning",
			"good afternoon", "good evening", "thanks", "thank you", "bye",
			"goodbye", "how's it going", "how's your day", "nice to meet",
		},
		clarification: []string{
			"what do you mean", "can you clarify", "i don't understand",
			"could you explain", "say that again", "rephrase",
		},
		document: []string{
			"document", "file", "pdf", "csv", "spreadsheet", "invoice", "total",
			"amount", "page", "section", "paragraph", "quote", "extract", "find",
			"search", "what does", "according to", "in the", "show me",
		},
	}
}

// Classify implements Classifier.
func (c *KeywordClassifier) Classify(question string) Classification {
	q := strings.ToLower(strings.TrimSpace(question))

	// Short greetings only; a long question that happens to contain "hi"
	// is not casual chat.
	if containsAny(q, c.casual) && len(strings.Fields(q)) < 10 {
		return Classification{Intent: core.IntentCasualChat, Confidence: 0.9}
	}

	if containsAny(q, c.clarification) {
		return Classification{Intent: core.IntentClarification, Confidence: 0.8}
	}

	score := 0
	for _, pattern := range c.document {
		if strings.Contains(q, pattern) {
			score++
		}
	}
	if score >= 2 {
		return Classification{Intent: core.IntentDocumentQuestion, Confidence: 0.8}
	}

	return Classification{Intent: core.IntentDocumentQuestion, Confidence: 0.5}
}

func containsAny(s string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(s, pattern) {
			return true
		}
	}
	return false
}
