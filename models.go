package studytutor

import "time"

// Intent is the classified purpose of one learner turn.
type Intent string

const (
	IntentDoubt        Intent = "doubt"
	IntentQuizGenerate Intent = "quiz_generate"
	IntentQuizEvaluate Intent = "quiz_evaluate"
	IntentGuidance     Intent = "guidance"
	IntentClarify      Intent = "clarify"
)

// Question represents a single multiple choice question. CorrectAnswer must
// equal exactly one entry of Options.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

// Quiz is a persisted quiz document. ID is assigned by the quiz store at
// persistence time and is empty on a quiz that has not been stored yet.
type Quiz struct {
	ID        string     `json:"id,omitempty"`
	Topic     string     `json:"topic"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
}

// QuestionView is the learner-facing form of a question, without the answer.
type QuestionView struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
}

// QuizView is the learner-facing form of a quiz. It carries no correct
// answers and is the only quiz shape handed back for presentation.
type QuizView struct {
	ID        string         `json:"id"`
	Topic     string         `json:"topic"`
	Questions []QuestionView `json:"questions"`
}

// View strips the correct answers from a quiz for presentation.
func (q *Quiz) View() *QuizView {
	view := &QuizView{
		ID:        q.ID,
		Topic:     q.Topic,
		Questions: make([]QuestionView, len(q.Questions)),
	}
	for i, question := range q.Questions {
		options := make([]string, len(question.Options))
		copy(options, question.Options)
		view.Questions[i] = QuestionView{Text: question.Text, Options: options}
	}
	return view
}

// TopicScore is one past quiz result for a topic.
type TopicScore struct {
	ScorePercent float64   `json:"score_percent"`
	TakenAt      time.Time `json:"taken_at"`
}

// SessionState is the per (user, session) conversational state. It is owned
// by the session store and mutated only through its Update operation.
type SessionState struct {
	UserID         string
	SessionID      string
	ActiveQuizID   string
	PendingAnswers []string
	TopicHistory   map[string][]TopicScore
	UpdatedAt      time.Time
}

func (s *SessionState) clone() *SessionState {
	out := &SessionState{
		UserID:       s.UserID,
		SessionID:    s.SessionID,
		ActiveQuizID: s.ActiveQuizID,
		UpdatedAt:    s.UpdatedAt,
		TopicHistory: make(map[string][]TopicScore, len(s.TopicHistory)),
	}
	out.PendingAnswers = append(out.PendingAnswers, s.PendingAnswers...)
	for topic, scores := range s.TopicHistory {
		out.TopicHistory[topic] = append([]TopicScore(nil), scores...)
	}
	return out
}

// AnswerDetail is the per-question breakdown of an evaluation.
type AnswerDetail struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
}

// EvaluationResult is the graded outcome of one quiz submission. It is
// derived from the persisted quiz plus the submitted answers and is never
// persisted itself.
type EvaluationResult struct {
	QuizID         string         `json:"quiz_id"`
	TotalQuestions int            `json:"total_questions"`
	CorrectAnswers int            `json:"correct_answers"`
	ScorePercent   float64        `json:"score_percent"`
	Details        []AnswerDetail `json:"details"`
}

// Reply is the coordinator's answer to one learner turn.
type Reply struct {
	Text       string            `json:"reply"`
	Quiz       *QuizView         `json:"quiz,omitempty"`
	Evaluation *EvaluationResult `json:"evaluation,omitempty"`
}
