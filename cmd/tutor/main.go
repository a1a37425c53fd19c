package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"studytutor"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

func main() {
	var (
		dbPath  = flag.String("db", "", "Path to the quiz database (default from TUTOR_DB_PATH)")
		apiKey  = flag.String("api-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		model   = flag.String("model", "", "Model to use (default from TUTOR_MODEL)")
		userID  = flag.String("user", "student", "User identifier for the session")
		verbose = flag.Bool("verbose", false, "Enable verbose debugging output")
	)
	flag.Parse()

	studytutor.SetVerbose(*verbose)
	cfg := studytutor.LoadConfig()

	if *apiKey == "" {
		*apiKey = cfg.OpenAIKey
		if *apiKey == "" {
			log.Fatal("OpenAI API key is required. Use -api-key flag or set OPENAI_API_KEY environment variable.")
		}
	}
	if *dbPath == "" {
		*dbPath = cfg.DBPath
	}
	if *model == "" {
		*model = cfg.Model
	}

	store, err := studytutor.OpenQuizStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open quiz store: %v", err)
	}
	defer store.Close()

	client := openai.NewClient(*apiKey)
	registry := studytutor.NewRegistry(studytutor.DomainExperts(client, *model, cfg.Retry)...)

	maker := studytutor.NewQuizMaker(studytutor.NewQuizWriter(client, *model, cfg.Retry), store)
	if researcher, ok := registry.Get(studytutor.CapabilityNetworkingExpert); ok {
		maker.SetResearcher(researcher)
	}

	classifier := studytutor.NewCapabilityClassifier(
		studytutor.NewClassifierCapability(client, *model, cfg.Retry))
	sessions := studytutor.NewMemorySessionStore(cfg.SessionTTL)
	coordinator := studytutor.NewCoordinator(classifier, registry, maker, store, sessions)

	sessionID := uuid.NewString()
	transcript, err := studytutor.NewTurnLogger(cfg.TranscriptDir, sessionID)
	if err != nil {
		log.Printf("Failed to create transcript, continuing without one: %v", err)
	} else {
		coordinator.SetLogger(transcript)
		maker.SetLogger(transcript)
		defer transcript.Close()
	}

	fmt.Println("Study tutor ready. Ask a doubt, request a quiz, or ask for guidance.")
	fmt.Println("Type 'exit' to quit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		reply, err := coordinator.HandleTurn(ctx, *userID, sessionID, input)
		cancel()
		if err != nil {
			log.Printf("Turn failed: %v", err)
			fmt.Println("Tutor: Something went wrong on my side. Please try again.")
			continue
		}

		fmt.Printf("Tutor: %s\n\n", reply.Text)

		if reply.Quiz != nil {
			takeQuiz(coordinator, scanner, *userID, sessionID, reply.Quiz)
		}
	}
}

// takeQuiz collects an answer for every question of a freshly generated
// quiz, then asks the coordinator to grade the quiz.
func takeQuiz(coordinator *studytutor.Coordinator, scanner *bufio.Scanner, userID, sessionID string, quiz *studytutor.QuizView) {
	for i, question := range quiz.Questions {
		fmt.Printf("Answer for question %d (1-%d): ", i+1, len(question.Options))
		if !scanner.Scan() {
			return
		}
		entry := strings.TrimSpace(scanner.Text())

		// An invalid entry counts as blank rather than stopping the quiz.
		answer := ""
		if n, err := strconv.Atoi(entry); err == nil && n >= 1 && n <= len(question.Options) {
			answer = question.Options[n-1]
		} else {
			fmt.Println("Invalid option, answer counted as blank.")
		}

		if err := coordinator.SubmitAnswer(userID, sessionID, answer); err != nil {
			log.Printf("Failed to record answer: %v", err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	reply, err := coordinator.HandleTurn(ctx, userID, sessionID, "grade my quiz")
	if err != nil {
		log.Printf("Evaluation failed: %v", err)
		fmt.Println("Tutor: I couldn't grade the quiz just now. Ask me to grade it again in a moment.")
		return
	}
	fmt.Printf("Tutor: %s\n\n", reply.Text)
}
