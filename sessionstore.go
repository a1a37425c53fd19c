package studytutor

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// AppName keys every session entry written by this process.
const AppName = "studytutor"

// ScoreRecord folds one evaluation outcome into the topic history.
type ScoreRecord struct {
	Topic        string
	ScorePercent float64
}

// SessionPatch describes one atomic change to a session. All set fields are
// applied as a single unit; an update never interleaves with another.
type SessionPatch struct {
	SetActiveQuizID *string
	ResetAnswers    bool
	AppendAnswers   []string
	RecordScore     *ScoreRecord
}

// SessionStore holds per (user, session) state. Update is atomic per key.
type SessionStore interface {
	Get(userID, sessionID string) (*SessionState, error)
	Create(userID, sessionID string, initial *SessionState) (*SessionState, error)
	Update(userID, sessionID string, patch SessionPatch) (*SessionState, error)
}

// MemorySessionStore is an in-memory session store with TTL eviction.
// Reads refresh nothing; every update refreshes the entry's TTL.
type MemorySessionStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewMemorySessionStore creates a store whose entries expire after ttl of
// inactivity. A non-positive ttl defaults to one hour.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemorySessionStore{
		cache: cache.New(ttl, 10*time.Minute),
	}
}

func sessionKey(userID, sessionID string) string {
	return AppName + "/" + userID + "/" + sessionID
}

// Get returns a copy of the session state, or ErrSessionNotFound.
func (m *MemorySessionStore) Get(userID, sessionID string) (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.get(userID, sessionID)
	if err != nil {
		return nil, err
	}
	return state.clone(), nil
}

// Create initializes state for a (user, session) key. A nil initial state
// creates an empty one. Creating over an existing session replaces it.
func (m *MemorySessionStore) Create(userID, sessionID string, initial *SessionState) (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := initial
	if state == nil {
		state = &SessionState{}
	} else {
		state = state.clone()
	}
	state.UserID = userID
	state.SessionID = sessionID
	if state.TopicHistory == nil {
		state.TopicHistory = make(map[string][]TopicScore)
	}
	state.UpdatedAt = time.Now()

	m.cache.Set(sessionKey(userID, sessionID), state, cache.DefaultExpiration)
	return state.clone(), nil
}

// Update applies the patch as one unit and returns the resulting state.
func (m *MemorySessionStore) Update(userID, sessionID string, patch SessionPatch) (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.get(userID, sessionID)
	if err != nil {
		return nil, err
	}

	if patch.SetActiveQuizID != nil {
		state.ActiveQuizID = *patch.SetActiveQuizID
	}
	if patch.ResetAnswers {
		state.PendingAnswers = nil
	}
	if len(patch.AppendAnswers) > 0 {
		state.PendingAnswers = append(state.PendingAnswers, patch.AppendAnswers...)
	}
	if patch.RecordScore != nil {
		state.TopicHistory[patch.RecordScore.Topic] = append(
			state.TopicHistory[patch.RecordScore.Topic],
			TopicScore{ScorePercent: patch.RecordScore.ScorePercent, TakenAt: time.Now()},
		)
	}
	state.UpdatedAt = time.Now()

	m.cache.Set(sessionKey(userID, sessionID), state, cache.DefaultExpiration)
	return state.clone(), nil
}

func (m *MemorySessionStore) get(userID, sessionID string) (*SessionState, error) {
	if x, found := m.cache.Get(sessionKey(userID, sessionID)); found {
		return x.(*SessionState), nil
	}
	return nil, fmt.Errorf("%w: user=%s session=%s", ErrSessionNotFound, userID, sessionID)
}
