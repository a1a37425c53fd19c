package studytutor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Classification is the routing decision for one learner turn. A turn may
// carry more than one intent; Topic is set when the turn names one.
type Classification struct {
	Intents []Intent `json:"intents"`
	Topic   string   `json:"topic"`
}

// IntentClassifier decides which sub-handlers a turn should reach. An
// ambiguous turn classifies as IntentClarify, never as a destructive action.
type IntentClassifier interface {
	Classify(ctx context.Context, input string, state *SessionState) (*Classification, error)
}

// CapabilityClassifier delegates classification to a reasoning capability
// and falls back to deterministic keyword rules when the capability fails
// or returns something unusable.
type CapabilityClassifier struct {
	capability Capability
}

// NewCapabilityClassifier creates a classifier backed by the capability.
func NewCapabilityClassifier(capability Capability) *CapabilityClassifier {
	return &CapabilityClassifier{capability: capability}
}

const classifierInstruction = "You classify a student's message into intents. " +
	"You do NOT answer the message. Valid intents: doubt (a question to explain), " +
	"quiz_generate (wants a new quiz), quiz_evaluate (wants their answers graded), " +
	"guidance (wants study advice based on past performance). A message may have " +
	"several intents. Respond with ONLY a JSON object like " +
	`{"intents": ["doubt"], "topic": "TCP/IP"}` +
	" where topic is the subject named by the message, or empty."

// Classify asks the capability for intents; any failure degrades to the
// keyword fallback so classification itself never fails a turn.
func (c *CapabilityClassifier) Classify(ctx context.Context, input string, state *SessionState) (*Classification, error) {
	query := classifierInstruction + "\n\nStudent message: " + input
	if state != nil && state.ActiveQuizID != "" {
		query += fmt.Sprintf("\n(The student has an active quiz with %d answers recorded.)",
			len(state.PendingAnswers))
	}

	raw, err := c.capability.Invoke(ctx, query)
	if err != nil {
		VerboseLog("Intent classification call failed, using keyword fallback: %v", err)
		return keywordClassify(input), nil
	}

	parsed, err := parseClassification(raw)
	if err != nil {
		VerboseLog("Intent classification output unusable, using keyword fallback: %v", err)
		return keywordClassify(input), nil
	}
	return parsed, nil
}

func parseClassification(raw string) (*Classification, error) {
	var payload Classification
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("classification is not valid JSON: %v", err)}
	}

	valid := map[Intent]bool{
		IntentDoubt:        true,
		IntentQuizGenerate: true,
		IntentQuizEvaluate: true,
		IntentGuidance:     true,
	}
	seen := map[Intent]bool{}
	var intents []Intent
	for _, intent := range payload.Intents {
		if valid[intent] && !seen[intent] {
			seen[intent] = true
			intents = append(intents, intent)
		}
	}
	if len(intents) == 0 {
		return nil, &ValidationError{Reason: "classification named no valid intents"}
	}
	return &Classification{Intents: intents, Topic: strings.TrimSpace(payload.Topic)}, nil
}

// KeywordClassifier is the purely deterministic classifier. It is also the
// fallback inside CapabilityClassifier.
type KeywordClassifier struct{}

// Classify applies keyword rules to the input.
func (KeywordClassifier) Classify(_ context.Context, input string, _ *SessionState) (*Classification, error) {
	return keywordClassify(input), nil
}

var (
	evaluateCues = []string{"grade", "evaluate", "score my", "check my answer", "my answers", "how did i do"}
	generateCues = []string{"quiz", "test me", "mcq", "practice questions"}
	guidanceCues = []string{"guidance", "advice", "how am i doing", "progress", "improve", "what should i study", "study plan"}
	doubtCues    = []string{"what", "why", "how", "when", "explain", "difference", "doubt", "confused", "?"}
)

func keywordClassify(input string) *Classification {
	lower := strings.ToLower(input)
	contains := func(cues []string) bool {
		for _, cue := range cues {
			if strings.Contains(lower, cue) {
				return true
			}
		}
		return false
	}

	var intents []Intent
	switch {
	case contains(evaluateCues):
		intents = append(intents, IntentQuizEvaluate)
	case contains(generateCues):
		intents = append(intents, IntentQuizGenerate)
	}
	if contains(guidanceCues) {
		intents = append(intents, IntentGuidance)
	}
	if len(intents) == 0 && contains(doubtCues) {
		intents = append(intents, IntentDoubt)
	}
	if len(intents) == 0 {
		intents = append(intents, IntentClarify)
	}
	return &Classification{Intents: intents, Topic: ExtractTopic(input)}
}

var topicMarkers = []string{" on ", " about ", " regarding ", " of "}

// ExtractTopic pulls the trailing subject from phrasings like "generate a
// quiz on SMTP protocol". It returns "" when no marker is present.
func ExtractTopic(input string) string {
	lower := strings.ToLower(input)
	best := -1
	markerLen := 0
	for _, marker := range topicMarkers {
		if idx := strings.LastIndex(lower, marker); idx > best {
			best = idx
			markerLen = len(marker)
		}
	}
	if best < 0 {
		return ""
	}
	topic := strings.TrimSpace(input[best+markerLen:])
	return strings.Trim(topic, ".!?")
}
