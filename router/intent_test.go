package router

import (
	"testing"

	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
)

func TestClassify_CasualGreeting(t *testing.T) {
	c := NewKeywordClassifier()

	for _, q := range []string{"hello", "Hi there!", "thanks a lot", "good morning"} {
		cls := c.Classify(q)
		assert.Equal(t, core.IntentCasualChat, cls.Intent, "question %q", q)
		assert.InDelta(t, 0.9, cls.Confidence, 1e-9)
	}
}

func TestClassify_LongQuestionWithGreetingWordIsNotCasual(t *testing.T) {
	c := NewKeywordClassifier()

	cls := c.Classify("hi, could you tell me what the quarterly report says about the revenue projections for next year")
	assert.Equal(t, core.IntentDocumentQuestion, cls.Intent)
}

func TestClassify_DocumentQuestion(t *testing.T) {
	c := NewKeywordClassifier()

	cls := c.Classify("what does the invoice say about the total amount?")
	assert.Equal(t, core.IntentDocumentQuestion, cls.Intent)
	assert.InDelta(t, 0.8, cls.Confidence, 1e-9)
}

func TestClassify_SingleDocumentCueIsLowConfidence(t *testing.T) {
	c := NewKeywordClassifier()

	cls := c.Classify("tell me about the weather patterns in this file")
	assert.Equal(t, core.IntentDocumentQuestion, cls.Intent)
	assert.InDelta(t, 0.5, cls.Confidence, 1e-9)
}

func TestClassify_Clarification(t *testing.T) {
	c := NewKeywordClassifier()

	cls := c.Classify("what do you mean by that?")
	assert.Equal(t, core.IntentClarification, cls.Intent)
	assert.InDelta(t, 0.8, cls.Confidence, 1e-9)
}

func TestClassify_DefaultIsLowConfidenceDocument(t *testing.T) {
	c := NewKeywordClassifier()

	cls := c.Classify("why is the sky blue")
	assert.Equal(t, core.IntentDocumentQuestion, cls.Intent)
	assert.InDelta(t, 0.5, cls.Confidence, 1e-9)
}

func TestBuildPrompt_HedgesOnLowConfidence(t *testing.T) {
	confident := buildPrompt(core.IntentDocumentQuestion, 0.8, "ctx", "q")
	hedged := buildPrompt(core.IntentDocumentQuestion, 0.5, "ctx", "q")

	assert.Contains(t, confident, "analyzing documents")
	assert.Contains(t, hedged, "may or may not be relevant")
	assert.NotEqual(t, confident, hedged)
}

func TestBuildPrompt_ConversationalTakesNoContext(t *testing.T) {
	prompt := buildPrompt(core.IntentCasualChat, 0.9, "ignored context", "hello")
	assert.NotContains(t, prompt, "ignored context")
	assert.Contains(t, prompt, "hello")
}
