package studytutor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TurnLogger writes a per-session transcript of learner turns and capability
// traffic to a log file.
type TurnLogger struct {
	file      *os.File
	mu        sync.Mutex
	sessionID string
}

// NewTurnLogger creates a transcript logger for one session under dir.
func NewTurnLogger(dir, sessionID string) (*TurnLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s.log", sessionID))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}

	logger := &TurnLogger{file: file, sessionID: sessionID}
	logger.Logf("=== Session Transcript ===\n")
	logger.Logf("Session ID: %s\n", sessionID)
	logger.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	logger.Logf("==========================\n\n")
	return logger, nil
}

// Logf writes a formatted entry with a timestamp.
func (tl *TurnLogger) Logf(format string, args ...interface{}) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(tl.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	tl.file.Sync()
}

// LogTurn records one learner turn and the aggregated reply.
func (tl *TurnLogger) LogTurn(input, reply string) {
	tl.Logf("=== TURN ===\n")
	tl.Logf("Learner: %s\n", input)
	tl.Logf("Tutor: %s\n", reply)
	tl.Logf("============\n\n")
}

// LogRequest records an outgoing capability query.
func (tl *TurnLogger) LogRequest(capability, query string) {
	tl.Logf("=== CAPABILITY REQUEST (%s) ===\n", capability)
	tl.Logf("Query:\n%s\n", query)
	tl.Logf("===============================\n\n")
}

// LogResponse records a capability response.
func (tl *TurnLogger) LogResponse(capability, response string) {
	tl.Logf("=== CAPABILITY RESPONSE (%s) ===\n", capability)
	tl.Logf("Response:\n%s\n", response)
	tl.Logf("================================\n\n")
}

// Close finalizes and closes the transcript file.
func (tl *TurnLogger) Close() error {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if tl.file != nil {
		timestamp := time.Now().Format("15:04:05.000")
		fmt.Fprintf(tl.file, "[%s] === Session Complete: %s ===\n", timestamp, time.Now().Format(time.RFC3339))
		return tl.file.Close()
	}
	return nil
}
