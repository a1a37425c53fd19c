package studytutor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteQuizStore {
	t.Helper()
	store, err := OpenQuizStore(filepath.Join(t.TempDir(), "quiz.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestQuizStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)

	quiz := &Quiz{
		Topic: "Databases",
		Questions: []Question{
			{Text: "What does ACID stand for?", Options: []string{
				"Atomicity, Consistency, Isolation, Durability",
				"Access, Control, Identity, Data",
				"Atomic, Clustered, Indexed, Distributed",
				"Async, Cached, Inline, Durable",
			}, CorrectAnswer: "Atomicity, Consistency, Isolation, Durability"},
			{Text: "Which index structure do most relational databases default to?", Options: []string{
				"Hash table", "B-tree", "Skip list", "Bloom filter",
			}, CorrectAnswer: "B-tree"},
		},
	}

	id, err := store.Create(context.Background(), quiz)
	require.NoError(t, err)
	require.NoError(t, ValidateQuizID(id), "assigned id must round-trip as a string")

	// Read-after-write: the id is immediately fetchable.
	fetched, err := store.Fetch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, fetched.ID)
	assert.Equal(t, quiz.Topic, fetched.Topic)
	assert.Equal(t, quiz.Questions, fetched.Questions)
}

func TestQuizStoreFetchUnknownID(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Fetch(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, ErrQuizNotFound)
}

func TestQuizStoreFetchMalformedID(t *testing.T) {
	store := openTestStore(t)

	for _, id := range []string{"", "quiz-1", "zzzz"} {
		_, err := store.Fetch(context.Background(), id)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr, "id %q", id)
	}
}

func TestValidateQuizID(t *testing.T) {
	assert.NoError(t, ValidateQuizID(uuid.NewString()))

	for _, id := range []string{"", " ", "abc", "123e4567"} {
		err := ValidateQuizID(id)
		var validationErr *ValidationError
		assert.ErrorAs(t, err, &validationErr, "id %q", id)
	}
}
