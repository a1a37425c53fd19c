package studytutor

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreCreateAndGet(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)

	_, err := store.Get("u1", "s1")
	require.ErrorIs(t, err, ErrSessionNotFound)

	created, err := store.Create("u1", "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, "u1", created.UserID)
	assert.Equal(t, "s1", created.SessionID)
	assert.Empty(t, created.ActiveQuizID)
	assert.NotNil(t, created.TopicHistory)

	got, err := store.Get("u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, created.UserID, got.UserID)
}

func TestSessionStoreUpdateAppliesPatchAsOneUnit(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	_, err := store.Create("u1", "s1", nil)
	require.NoError(t, err)

	quizID := "11111111-1111-1111-1111-111111111111"
	state, err := store.Update("u1", "s1", SessionPatch{
		SetActiveQuizID: &quizID,
		ResetAnswers:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, quizID, state.ActiveQuizID)
	assert.Empty(t, state.PendingAnswers)

	state, err = store.Update("u1", "s1", SessionPatch{AppendAnswers: []string{"25", "21"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"25", "21"}, state.PendingAnswers)

	cleared := ""
	state, err = store.Update("u1", "s1", SessionPatch{
		SetActiveQuizID: &cleared,
		ResetAnswers:    true,
		RecordScore:     &ScoreRecord{Topic: "SMTP", ScorePercent: 50},
	})
	require.NoError(t, err)
	assert.Empty(t, state.ActiveQuizID)
	assert.Empty(t, state.PendingAnswers)
	require.Len(t, state.TopicHistory["SMTP"], 1)
	assert.Equal(t, 50.0, state.TopicHistory["SMTP"][0].ScorePercent)
}

func TestSessionStoreUpdateMissingSession(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	_, err := store.Update("u1", "ghost", SessionPatch{ResetAnswers: true})
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreConcurrentUpdatesSerialize(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	_, err := store.Create("u1", "s1", nil)
	require.NoError(t, err)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Update("u1", "s1", SessionPatch{
				AppendAnswers: []string{fmt.Sprintf("answer-%d", i)},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	state, err := store.Get("u1", "s1")
	require.NoError(t, err)
	assert.Len(t, state.PendingAnswers, n, "no update may be lost or interleaved")
}

func TestSessionStoreNoCrossSessionVisibility(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	_, err := store.Create("u1", "s1", nil)
	require.NoError(t, err)
	_, err = store.Create("u1", "s2", nil)
	require.NoError(t, err)

	quizID := "22222222-2222-2222-2222-222222222222"
	_, err = store.Update("u1", "s1", SessionPatch{SetActiveQuizID: &quizID})
	require.NoError(t, err)

	other, err := store.Get("u1", "s2")
	require.NoError(t, err)
	assert.Empty(t, other.ActiveQuizID)
}

func TestSessionStoreReturnsCopies(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	_, err := store.Create("u1", "s1", nil)
	require.NoError(t, err)

	state, err := store.Get("u1", "s1")
	require.NoError(t, err)
	state.PendingAnswers = append(state.PendingAnswers, "smuggled")
	state.TopicHistory["hack"] = []TopicScore{{ScorePercent: 1}}

	fresh, err := store.Get("u1", "s1")
	require.NoError(t, err)
	assert.Empty(t, fresh.PendingAnswers, "mutating a returned state must not affect the store")
	assert.Empty(t, fresh.TopicHistory)
}
