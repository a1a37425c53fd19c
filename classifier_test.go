package studytutor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordClassify(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantIntents []Intent
		wantTopic   string
	}{
		{
			name:        "quiz request",
			input:       "Generate a quiz on SMTP protocol",
			wantIntents: []Intent{IntentQuizGenerate},
			wantTopic:   "SMTP protocol",
		},
		{
			name:        "doubt",
			input:       "Why do deadlocks happen?",
			wantIntents: []Intent{IntentDoubt},
		},
		{
			name:        "evaluation request",
			input:       "Please grade my answers",
			wantIntents: []Intent{IntentQuizEvaluate},
		},
		{
			name:        "guidance request",
			input:       "Give me advice based on my progress",
			wantIntents: []Intent{IntentGuidance},
		},
		{
			name:        "quiz and guidance in one turn",
			input:       "Test me about paging and tell me what should I study next",
			wantIntents: []Intent{IntentQuizGenerate, IntentGuidance},
		},
		{
			name:        "ambiguous input asks for clarification",
			input:       "hello there",
			wantIntents: []Intent{IntentClarify},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KeywordClassifier{}.Classify(context.Background(), tt.input, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIntents, got.Intents)
			if tt.wantTopic != "" {
				assert.Equal(t, tt.wantTopic, got.Topic)
			}
		})
	}
}

func TestCapabilityClassifierParsesOutput(t *testing.T) {
	capability := &fakeCapability{responses: []string{
		`{"intents": ["doubt", "quiz_generate"], "topic": "TCP"}`,
	}}
	classifier := NewCapabilityClassifier(capability)

	got, err := classifier.Classify(context.Background(), "explain TCP then quiz me", nil)
	require.NoError(t, err)
	assert.Equal(t, []Intent{IntentDoubt, IntentQuizGenerate}, got.Intents)
	assert.Equal(t, "TCP", got.Topic)
}

func TestCapabilityClassifierFallsBackOnFailure(t *testing.T) {
	capability := &fakeCapability{errs: []error{transientErr("down")}}
	classifier := NewCapabilityClassifier(capability)

	got, err := classifier.Classify(context.Background(), "Generate a quiz on DNS", nil)
	require.NoError(t, err)
	assert.Equal(t, []Intent{IntentQuizGenerate}, got.Intents)
	assert.Equal(t, "DNS", got.Topic)
}

func TestCapabilityClassifierFallsBackOnGarbage(t *testing.T) {
	capability := &fakeCapability{responses: []string{"I think the user wants a quiz"}}
	classifier := NewCapabilityClassifier(capability)

	got, err := classifier.Classify(context.Background(), "mystery input", nil)
	require.NoError(t, err)
	assert.Equal(t, []Intent{IntentClarify}, got.Intents)
}

func TestCapabilityClassifierDropsUnknownIntents(t *testing.T) {
	capability := &fakeCapability{responses: []string{
		`{"intents": ["delete_everything", "doubt", "doubt"], "topic": ""}`,
	}}
	classifier := NewCapabilityClassifier(capability)

	got, err := classifier.Classify(context.Background(), "what is paging?", nil)
	require.NoError(t, err)
	assert.Equal(t, []Intent{IntentDoubt}, got.Intents)
}

func TestExtractTopic(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Generate a quiz on TCP/IP", "TCP/IP"},
		{"quiz me about virtual memory!", "virtual memory"},
		{"test me", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractTopic(tt.input), "input %q", tt.input)
	}
}
