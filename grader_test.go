package studytutor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memQuizStore is an in-memory QuizStore for tests.
type memQuizStore struct {
	mu      sync.Mutex
	quizzes map[string]*Quiz
	fetches int
}

func newMemQuizStore() *memQuizStore {
	return &memQuizStore{quizzes: make(map[string]*Quiz)}
}

func (m *memQuizStore) Create(_ context.Context, quiz *Quiz) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	stored := *quiz
	stored.ID = id
	stored.Questions = append([]Question(nil), quiz.Questions...)
	m.quizzes[id] = &stored
	return id, nil
}

func (m *memQuizStore) Fetch(_ context.Context, id string) (*Quiz, error) {
	if err := ValidateQuizID(id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	quiz, ok := m.quizzes[id]
	if !ok {
		return nil, errors.New("quiz not found: " + id)
	}
	copied := *quiz
	copied.Questions = append([]Question(nil), quiz.Questions...)
	return &copied, nil
}

func smtpQuiz() *Quiz {
	return &Quiz{
		Topic: "SMTP",
		Questions: []Question{
			{
				Text:          "Default SMTP port?",
				Options:       []string{"21", "23", "25", "110"},
				CorrectAnswer: "25",
			},
		},
	}
}

func TestEvaluateSMTPQuiz(t *testing.T) {
	store := newMemQuizStore()
	id, err := store.Create(context.Background(), smtpQuiz())
	require.NoError(t, err)

	result, err := Evaluate(context.Background(), store, id, []string{"25"})
	require.NoError(t, err)
	assert.Equal(t, id, result.QuizID)
	assert.Equal(t, 1, result.TotalQuestions)
	assert.Equal(t, 1, result.CorrectAnswers)
	assert.Equal(t, 100.0, result.ScorePercent)
	require.Len(t, result.Details, 1)
	assert.True(t, result.Details[0].IsCorrect)
	assert.Equal(t, "25", result.Details[0].UserAnswer)

	wrong, err := Evaluate(context.Background(), store, id, []string{"21"})
	require.NoError(t, err)
	assert.Equal(t, 0, wrong.CorrectAnswers)
	assert.Equal(t, 0.0, wrong.ScorePercent)
	assert.False(t, wrong.Details[0].IsCorrect)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	store := newMemQuizStore()
	id, err := store.Create(context.Background(), smtpQuiz())
	require.NoError(t, err)

	first, err := Evaluate(context.Background(), store, id, []string{"25"})
	require.NoError(t, err)
	second, err := Evaluate(context.Background(), store, id, []string{"25"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEvaluateMalformedIDNeverFetches(t *testing.T) {
	store := newMemQuizStore()

	for _, id := range []string{"", "not-a-uuid", "12345"} {
		_, err := Evaluate(context.Background(), store, id, []string{"25"})
		require.Error(t, err, "id %q", id)
		var validationErr *ValidationError
		assert.ErrorAs(t, err, &validationErr, "id %q", id)
	}
	assert.Equal(t, 0, store.fetches, "a malformed id must be rejected before any fetch")
}

func TestGradeQuizAnswerPairing(t *testing.T) {
	quiz := &Quiz{
		ID:    uuid.NewString(),
		Topic: "Networking",
		Questions: []Question{
			{Text: "Q1", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: "a"},
			{Text: "Q2", Options: []string{"e", "f", "g", "h"}, CorrectAnswer: "f"},
			{Text: "Q3", Options: []string{"i", "j", "k", "l"}, CorrectAnswer: "k"},
		},
	}

	tests := []struct {
		name        string
		answers     []string
		wantCorrect int
		wantPercent float64
	}{
		{"all correct", []string{"a", "f", "k"}, 3, 100},
		{"all blank", nil, 0, 0},
		{"partial submission pads as blank", []string{"a"}, 1, 100.0 / 3},
		{"extra answers ignored", []string{"a", "f", "k", "z", "z"}, 3, 100},
		{"free text not matching any option", []string{"alpha", "F", " k"}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := GradeQuiz(quiz, tt.answers)
			require.NoError(t, err)
			assert.Equal(t, 3, result.TotalQuestions)
			assert.Equal(t, tt.wantCorrect, result.CorrectAnswers)
			assert.InDelta(t, tt.wantPercent, result.ScorePercent, 0.0001)
			assert.Len(t, result.Details, 3)
		})
	}
}

func TestGradeQuizEmptyQuizIsPreconditionFailure(t *testing.T) {
	quiz := &Quiz{ID: uuid.NewString(), Topic: "empty"}
	_, err := GradeQuiz(quiz, nil)
	require.ErrorIs(t, err, ErrEmptyQuiz)
}
