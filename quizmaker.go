package studytutor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MaxQuizQuestions caps the number of questions in a generated quiz.
const MaxQuizQuestions = 5

// QuizMaker generates a quiz through a reasoning capability, validates the
// structured output, and persists it. Generation is a two-step contract:
// generate, then validate, then persist — persistence is performed here, not
// delegated to the capability.
type QuizMaker struct {
	writer      Capability
	researcher  Capability
	store       QuizStore
	maxAttempts int
	logger      *TurnLogger
}

// NewQuizMaker creates a quiz maker. writer produces the quiz JSON;
// researcher is an optional domain expert consulted for topic grounding
// before generation.
func NewQuizMaker(writer Capability, store QuizStore) *QuizMaker {
	return &QuizMaker{
		writer:      writer,
		store:       store,
		maxAttempts: 3,
	}
}

// SetResearcher sets an optional expert capability whose notes are fed into
// the generation prompt as source material.
func (qm *QuizMaker) SetResearcher(researcher Capability) {
	qm.researcher = researcher
}

// SetMaxAttempts bounds the generate-and-validate cycles.
func (qm *QuizMaker) SetMaxAttempts(n int) {
	if n > 0 {
		qm.maxAttempts = n
	}
}

// SetLogger sets the transcript logger for capability traffic.
func (qm *QuizMaker) SetLogger(logger *TurnLogger) {
	qm.logger = logger
}

// Generate produces a quiz on the topic, persists it, and returns it with
// its id populated. Malformed capability output is rejected and generation
// is re-attempted up to the bound; on exhaustion it fails with
// ErrGenerationFailed.
func (qm *QuizMaker) Generate(ctx context.Context, topic string) (*Quiz, error) {
	notes := qm.researchTopic(ctx, topic)
	prompt := qm.buildPrompt(topic, notes)

	var quiz *Quiz
	var lastErr error
	for attempt := 1; attempt <= qm.maxAttempts; attempt++ {
		if qm.logger != nil {
			qm.logger.LogRequest("QuizMaker", prompt)
		}
		raw, err := qm.writer.Invoke(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			VerboseLog("Quiz generation attempt %d/%d failed: %v", attempt, qm.maxAttempts, err)
			continue
		}
		if qm.logger != nil {
			qm.logger.LogResponse("QuizMaker", raw)
		}

		parsed, err := ParseQuiz(raw, topic)
		if err != nil {
			lastErr = err
			VerboseLog("Quiz generation attempt %d/%d returned malformed output: %v", attempt, qm.maxAttempts, err)
			continue
		}
		quiz = parsed
		break
	}
	if quiz == nil {
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrGenerationFailed, qm.maxAttempts, lastErr)
	}

	id, err := qm.store.Create(ctx, quiz)
	if err != nil {
		return nil, fmt.Errorf("failed to persist quiz: %w", err)
	}
	quiz.ID = id

	VerboseLog("Generated quiz %s with %d questions on topic %q", id, len(quiz.Questions), quiz.Topic)
	return quiz, nil
}

// researchTopic asks the researcher for grounding notes. A failed research
// call is non-fatal; generation proceeds without notes.
func (qm *QuizMaker) researchTopic(ctx context.Context, topic string) string {
	if qm.researcher == nil {
		return ""
	}
	query := fmt.Sprintf("List the key facts, definitions, and common misconceptions about %s "+
		"that a quiz should cover. Be concise.", topic)
	if qm.logger != nil {
		qm.logger.LogRequest(qm.researcher.Name(), query)
	}
	notes, err := qm.researcher.Invoke(ctx, query)
	if err != nil {
		VerboseLog("Topic research failed, generating without notes: %v", err)
		return ""
	}
	if qm.logger != nil {
		qm.logger.LogResponse(qm.researcher.Name(), notes)
	}
	return notes
}

func (qm *QuizMaker) buildPrompt(topic, notes string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Create a multiple choice quiz about: %s\n\n", topic))

	if notes != "" {
		sb.WriteString("Use the following expert notes as reference:\n")
		sb.WriteString(notes)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Requirements:\n")
	sb.WriteString(fmt.Sprintf("- At most %d questions\n", MaxQuizQuestions))
	sb.WriteString("- Each question must have exactly 4 answer options\n")
	sb.WriteString("- Exactly one option is the correct answer, repeated verbatim in correct_answer\n")
	sb.WriteString("- Questions should cover varying difficulty and key subtopics\n")
	sb.WriteString("- Do not use escape characters in questions or answers\n\n")

	sb.WriteString("Respond with ONLY a JSON object in this exact shape, no other text and no code fences:\n")
	sb.WriteString(`{"topic": "Topic Name", "quiz": [{"question": "Question text?", ` +
		`"options": ["Option 1", "Option 2", "Option 3", "Option 4"], "correct_answer": "Option 2"}]}`)

	return sb.String()
}

// ParseQuiz parses and validates raw capability output into a quiz.
// Malformed output is rejected, never silently repaired.
func ParseQuiz(raw, topic string) (*Quiz, error) {
	var payload struct {
		Topic string     `json:"topic"`
		Quiz  []Question `json:"quiz"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("quiz output is not valid JSON: %v", err)}
	}

	quiz := &Quiz{Topic: payload.Topic, Questions: payload.Quiz}
	if quiz.Topic == "" {
		quiz.Topic = topic
	}
	if err := ValidateQuiz(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// ValidateQuiz checks the structural invariants of a quiz document: between
// one and MaxQuizQuestions questions, exactly 4 non-empty options each, and
// a correct answer matching exactly one option.
func ValidateQuiz(quiz *Quiz) error {
	if len(quiz.Questions) == 0 {
		return &ValidationError{Reason: "quiz has no questions"}
	}
	if len(quiz.Questions) > MaxQuizQuestions {
		return &ValidationError{Reason: fmt.Sprintf("quiz has %d questions, maximum is %d",
			len(quiz.Questions), MaxQuizQuestions)}
	}
	for i, q := range quiz.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return &ValidationError{Reason: fmt.Sprintf("question %d has empty text", i+1)}
		}
		if len(q.Options) != 4 {
			return &ValidationError{Reason: fmt.Sprintf("question %d has %d options, expected 4",
				i+1, len(q.Options))}
		}
		matches := 0
		for _, option := range q.Options {
			if strings.TrimSpace(option) == "" {
				return &ValidationError{Reason: fmt.Sprintf("question %d has an empty option", i+1)}
			}
			if option == q.CorrectAnswer {
				matches++
			}
		}
		if matches != 1 {
			return &ValidationError{Reason: fmt.Sprintf(
				"question %d: correct answer must match exactly one option, matched %d", i+1, matches)}
		}
	}
	return nil
}

// stripCodeFence removes a surrounding markdown code fence that models
// sometimes add despite instructions.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
