package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"studytutor"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	openai "github.com/sashabaranov/go-openai"
)

type Server struct {
	coordinator *studytutor.Coordinator
	store       *sessions.CookieStore
}

type chatRequest struct {
	Message string `json:"message"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func main() {
	studytutor.SetVerbose(os.Getenv("TUTOR_VERBOSE") != "")
	cfg := studytutor.LoadConfig()

	if cfg.OpenAIKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	quizStore, err := studytutor.OpenQuizStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open quiz store: %v", err)
	}
	defer quizStore.Close()

	client := openai.NewClient(cfg.OpenAIKey)
	registry := studytutor.NewRegistry(studytutor.DomainExperts(client, cfg.Model, cfg.Retry)...)

	maker := studytutor.NewQuizMaker(studytutor.NewQuizWriter(client, cfg.Model, cfg.Retry), quizStore)
	classifier := studytutor.NewCapabilityClassifier(
		studytutor.NewClassifierCapability(client, cfg.Model, cfg.Retry))
	sessionStore := studytutor.NewMemorySessionStore(cfg.SessionTTL)

	secret := os.Getenv("TUTOR_COOKIE_SECRET")
	if secret == "" {
		secret = uuid.NewString()
		log.Println("TUTOR_COOKIE_SECRET not set, using an ephemeral cookie secret")
	}

	server := &Server{
		coordinator: studytutor.NewCoordinator(classifier, registry, maker, quizStore, sessionStore),
		store:       sessions.NewCookieStore([]byte(secret)),
	}

	http.HandleFunc("/chat", server.handleChat)
	http.HandleFunc("/answer", server.handleAnswer)
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	log.Printf("Starting tutor server on port %s", cfg.HTTPPort)
	log.Fatal(http.ListenAndServe(":"+cfg.HTTPPort, nil))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		http.Error(w, "Request body must be JSON with a non-empty message", http.StatusBadRequest)
		return
	}

	userID, sessionID := s.identity(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	reply, err := s.coordinator.HandleTurn(ctx, userID, sessionID, req.Message)
	if err != nil {
		log.Printf("Turn failed for session %s: %v", sessionID, err)
		http.Error(w, "The tutor is unavailable right now", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		log.Printf("Failed to encode reply: %v", err)
	}
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Request body must be JSON with an answer", http.StatusBadRequest)
		return
	}

	userID, sessionID := s.identity(w, r)
	if err := s.coordinator.SubmitAnswer(userID, sessionID, req.Answer); err != nil {
		http.Error(w, "No active quiz to answer", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// identity reads or mints the (user, session) pair carried by the cookie.
func (s *Server) identity(w http.ResponseWriter, r *http.Request) (string, string) {
	cookie, _ := s.store.Get(r, "tutor-session")
	userID, ok := cookie.Values["user_id"].(string)
	if !ok || userID == "" {
		userID = uuid.NewString()
		cookie.Values["user_id"] = userID
	}
	sessionID, ok := cookie.Values["session_id"].(string)
	if !ok || sessionID == "" {
		sessionID = uuid.NewString()
		cookie.Values["session_id"] = sessionID
	}
	if err := cookie.Save(r, w); err != nil {
		log.Printf("Failed to save session cookie: %v", err)
	}
	return userID, sessionID
}
