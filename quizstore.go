package studytutor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// QuizStore persists quiz documents and retrieves them by id. An id returned
// by Create is immediately visible to Fetch within the same process.
type QuizStore interface {
	Create(ctx context.Context, quiz *Quiz) (string, error)
	Fetch(ctx context.Context, id string) (*Quiz, error)
}

// ValidateQuizID rejects identifiers that are not well-formed before any
// store fetch is attempted.
func ValidateQuizID(id string) error {
	if id == "" {
		return &ValidationError{Reason: "empty quiz id"}
	}
	if _, err := uuid.Parse(id); err != nil {
		return &ValidationError{Reason: fmt.Sprintf("malformed quiz id %q", id)}
	}
	return nil
}

// SQLiteQuizStore stores quizzes in SQLite, one row per quiz and one row per
// question with the options kept as a JSON column.
type SQLiteQuizStore struct {
	db *sql.DB
}

// OpenQuizStore opens the database at dbPath and ensures the schema exists.
func OpenQuizStore(dbPath string) (*SQLiteQuizStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteQuizStore{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteQuizStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteQuizStore) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS quizzes (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			quiz_id TEXT NOT NULL,
			question_num INTEGER NOT NULL,
			text TEXT NOT NULL,
			options TEXT NOT NULL,
			correct_answer TEXT NOT NULL,
			PRIMARY KEY (quiz_id, question_num),
			FOREIGN KEY (quiz_id) REFERENCES quizzes(id)
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// Create persists the quiz and returns its newly assigned id. The quiz and
// all of its questions are written in one transaction.
func (s *SQLiteQuizStore) Create(ctx context.Context, quiz *Quiz) (string, error) {
	id := uuid.NewString()
	createdAt := quiz.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO quizzes (id, topic, created_at) VALUES (?, ?, ?)",
		id, quiz.Topic, createdAt,
	); err != nil {
		return "", fmt.Errorf("failed to create quiz: %w", err)
	}

	for i, question := range quiz.Questions {
		optionsJSON, err := OptionsToJSON(question.Options)
		if err != nil {
			return "", err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO questions (quiz_id, question_num, text, options, correct_answer) VALUES (?, ?, ?, ?, ?)",
			id, i+1, question.Text, optionsJSON, question.CorrectAnswer,
		); err != nil {
			return "", fmt.Errorf("failed to create question %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit quiz: %w", err)
	}
	return id, nil
}

// Fetch retrieves a quiz by id. A malformed id is rejected without touching
// the database; an unknown id yields ErrQuizNotFound.
func (s *SQLiteQuizStore) Fetch(ctx context.Context, id string) (*Quiz, error) {
	if err := ValidateQuizID(id); err != nil {
		return nil, err
	}

	quiz := &Quiz{ID: id}
	err := s.db.QueryRowContext(ctx,
		"SELECT topic, created_at FROM quizzes WHERE id = ?", id,
	).Scan(&quiz.Topic, &quiz.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrQuizNotFound, id)
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT text, options, correct_answer FROM questions WHERE quiz_id = ? ORDER BY question_num",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var question Question
		var optionsJSON string
		if err := rows.Scan(&question.Text, &optionsJSON, &question.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		options, err := JSONToOptions(optionsJSON)
		if err != nil {
			return nil, err
		}
		question.Options = options
		quiz.Questions = append(quiz.Questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}

	return quiz, nil
}

// OptionsToJSON converts an options slice to its JSON column form.
func OptionsToJSON(options []string) (string, error) {
	data, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("failed to marshal options: %w", err)
	}
	return string(data), nil
}

// JSONToOptions converts the JSON column form back to an options slice.
func JSONToOptions(optionsJSON string) ([]string, error) {
	var options []string
	if err := json.Unmarshal([]byte(optionsJSON), &options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}
	return options, nil
}
