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
	"fmt"

	"github.com/poiesic/docqa/core"
)

// hedgeThreshold is the confidence below which the document prompt stops
// presuming the retrieved context is relevant.
const hedgeThreshold = 0.6

const casualTemplate = `You are a helpful and friendly AI assistant. Respond naturally to the user's message.

User: %s
Assistant:`

const clarificationTemplate = `You are a helpful AI assistant. The user is asking for clarification of an earlier answer. Restate the relevant point more plainly, or ask what part is unclear.

User: %s
Assistant:`

const documentTemplate = `You are a helpful AI assistant analyzing documents.

Context from documents:
%s

Question: %s

Instructions:
- First check if the provided context is relevant to the question
- If relevant, answer based on the context and cite specific information
- If not relevant or if you can't find the information, say so clearly and provide any helpful general information
- For specific values (numbers, dates, names), only report what's explicitly in the context

Answer:`

const hedgedTemplate = `You are a helpful AI assistant.

Context (may or may not be relevant):
%s

Question: %s

Instructions:
- If the context contains relevant information, use it to answer the question
- If the context doesn't seem relevant to the question, provide a helpful response based on general knowledge
- Be clear about whether your answer comes from the provided documents or general knowledge

Answer:`

// buildPrompt renders the prompt for an intent and confidence. Conversational
// intents take no context; document questions pick the confident or hedged
// template by confidence.
func buildPrompt(intent core.QueryIntent, confidence float64, context, question string) string {
	switch intent {
	case core.IntentCasualChat:
		return fmt.Sprintf(casualTemplate, question)
	case core.IntentClarification:
		return fmt.Sprintf(clarificationTemplate, question)
	}

	if confidence < hedgeThreshold {
		return fmt.Sprintf(hedgedTemplate, context, question)
	}
	return fmt.Sprintf(documentTemplate, context, question)
}
