package studytutor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Stable user-facing messages. Every failure a turn can hit maps to one of
// these instead of crashing the session.
const (
	msgClarify          = "I can answer subject doubts, generate quizzes, grade your quiz answers, or give study guidance. What would you like to do?"
	msgNoTopic          = "What topic should the quiz cover?"
	msgNoActiveQuiz     = `You don't have an active quiz yet. Ask me to generate one first, for example: "generate a quiz on TCP/IP".`
	msgNoAnswers        = "I don't have any answers recorded for your active quiz yet. Answer the questions first, then ask me to grade them."
	msgGenerationFailed = "I couldn't put together a quiz on that topic right now. Please try again in a moment."
	msgNoHistory        = "You haven't completed any quizzes yet, so I can't assess your progress. Take a quiz first and I'll track your scores."
	msgNoExperts        = "I couldn't reach any of the domain experts right now. Please try again shortly."
)

// Coordinator routes each learner turn to one or more sub-handlers,
// aggregates their replies, and keeps the session state consistent across
// turns. Turns for the same session are processed sequentially; different
// sessions run concurrently.
type Coordinator struct {
	classifier  IntentClassifier
	registry    *Registry
	maker       *QuizMaker
	store       QuizStore
	sessions    SessionStore
	callTimeout time.Duration
	logger      *TurnLogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCoordinator wires the coordinator with its collaborators. There are no
// process-wide singletons; everything the coordinator touches is passed in.
func NewCoordinator(classifier IntentClassifier, registry *Registry, maker *QuizMaker, store QuizStore, sessions SessionStore) *Coordinator {
	return &Coordinator{
		classifier:  classifier,
		registry:    registry,
		maker:       maker,
		store:       store,
		sessions:    sessions,
		callTimeout: 30 * time.Second,
		locks:       make(map[string]*sync.Mutex),
	}
}

// SetCallTimeout bounds each individual expert call during a doubt fan-out.
func (c *Coordinator) SetCallTimeout(d time.Duration) {
	if d > 0 {
		c.callTimeout = d
	}
}

// SetLogger sets the transcript logger for turn traffic.
func (c *Coordinator) SetLogger(logger *TurnLogger) {
	c.logger = logger
}

func (c *Coordinator) sessionLock(userID, sessionID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := sessionKey(userID, sessionID)
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}

// Intents run in this order so that, for example, grading the old quiz
// happens before a new quiz replaces it in the session.
var intentOrder = []Intent{IntentDoubt, IntentQuizEvaluate, IntentQuizGenerate, IntentGuidance}

// HandleTurn processes one learner turn to completion and returns a single
// coherent reply. Sub-handler failures become partial, user-legible replies;
// only store connectivity failures fail the turn.
func (c *Coordinator) HandleTurn(ctx context.Context, userID, sessionID, input string) (*Reply, error) {
	lock := c.sessionLock(userID, sessionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := c.sessions.Get(userID, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		state, err = c.sessions.Create(userID, sessionID, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	classification, err := c.classifier.Classify(ctx, input, state)
	if err != nil || classification == nil || len(classification.Intents) == 0 {
		VerboseLog("Classification unusable for session %s: %v", sessionID, err)
		return &Reply{Text: msgClarify}, nil
	}

	reply := &Reply{}
	var parts []string
	for _, intent := range orderIntents(classification.Intents) {
		text, newState, err := c.dispatch(ctx, intent, classification, state, input, reply)
		if err != nil {
			msg, userFacing := userMessage(err)
			if !userFacing {
				return nil, err
			}
			VerboseLog("Intent %s failed for session %s: %v", intent, sessionID, err)
			text = msg
		}
		if newState != nil {
			state = newState
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, msgClarify)
	}
	reply.Text = strings.Join(parts, "\n\n")

	if c.logger != nil {
		c.logger.LogTurn(input, reply.Text)
	}
	return reply, nil
}

// SubmitAnswer records one answer for the session's active quiz. Answers
// accumulate in order until the quiz is evaluated.
func (c *Coordinator) SubmitAnswer(userID, sessionID, answer string) error {
	lock := c.sessionLock(userID, sessionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := c.sessions.Get(userID, sessionID)
	if err != nil {
		return err
	}
	if state.ActiveQuizID == "" {
		return ErrNoActiveQuiz
	}
	_, err = c.sessions.Update(userID, sessionID, SessionPatch{AppendAnswers: []string{answer}})
	return err
}

func orderIntents(intents []Intent) []Intent {
	present := make(map[Intent]bool, len(intents))
	for _, intent := range intents {
		present[intent] = true
	}
	var ordered []Intent
	for _, intent := range intentOrder {
		if present[intent] {
			ordered = append(ordered, intent)
		}
	}
	if len(ordered) == 0 {
		ordered = append(ordered, IntentClarify)
	}
	return ordered
}

func (c *Coordinator) dispatch(ctx context.Context, intent Intent, classification *Classification, state *SessionState, input string, reply *Reply) (string, *SessionState, error) {
	switch intent {
	case IntentDoubt:
		text, err := c.handleDoubt(ctx, input)
		return text, nil, err
	case IntentQuizGenerate:
		return c.handleQuizGenerate(ctx, classification, state, input, reply)
	case IntentQuizEvaluate:
		return c.handleQuizEvaluate(ctx, state, reply)
	case IntentGuidance:
		return c.handleGuidance(state), nil, nil
	default:
		return msgClarify, nil, nil
	}
}

func (c *Coordinator) handleQuizGenerate(ctx context.Context, classification *Classification, state *SessionState, input string, reply *Reply) (string, *SessionState, error) {
	topic := classification.Topic
	if topic == "" {
		topic = ExtractTopic(input)
	}
	if topic == "" {
		return msgNoTopic, nil, nil
	}

	quiz, err := c.maker.Generate(ctx, topic)
	if err != nil {
		return "", nil, err
	}

	quizID := quiz.ID
	newState, err := c.sessions.Update(state.UserID, state.SessionID, SessionPatch{
		SetActiveQuizID: &quizID,
		ResetAnswers:    true,
	})
	if err != nil {
		return "", nil, err
	}

	view := quiz.View()
	reply.Quiz = view
	return formatQuiz(view), newState, nil
}

func (c *Coordinator) handleQuizEvaluate(ctx context.Context, state *SessionState, reply *Reply) (string, *SessionState, error) {
	if state.ActiveQuizID == "" {
		return msgNoActiveQuiz, nil, nil
	}
	if len(state.PendingAnswers) == 0 {
		return msgNoAnswers, nil, nil
	}

	quiz, err := c.store.Fetch(ctx, state.ActiveQuizID)
	if err != nil {
		return "", nil, err
	}
	result, err := GradeQuiz(quiz, state.PendingAnswers)
	if err != nil {
		return "", nil, err
	}

	// The quiz is done: fold the score into the topic history and clear the
	// active quiz in one atomic patch.
	cleared := ""
	newState, err := c.sessions.Update(state.UserID, state.SessionID, SessionPatch{
		SetActiveQuizID: &cleared,
		ResetAnswers:    true,
		RecordScore:     &ScoreRecord{Topic: quiz.Topic, ScorePercent: result.ScorePercent},
	})
	if err != nil {
		return "", nil, err
	}

	reply.Evaluation = result
	return formatEvaluation(quiz.Topic, result), newState, nil
}

type expertAnswer struct {
	name string
	text string
	err  error
}

func (c *Coordinator) handleDoubt(ctx context.Context, input string) (string, error) {
	experts := c.registry.Match(input)
	if len(experts) == 0 {
		return msgNoExperts, nil
	}

	answers := make([]expertAnswer, len(experts))
	var wg sync.WaitGroup
	for i, expert := range experts {
		wg.Add(1)
		go func(i int, expert Capability) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
			defer cancel()
			text, err := expert.Invoke(callCtx, input)
			answers[i] = expertAnswer{name: expert.Name(), text: text, err: err}
		}(i, expert)
	}
	wg.Wait()

	var succeeded []expertAnswer
	var failed []string
	for _, answer := range answers {
		if answer.err != nil {
			VerboseLog("Expert %s failed during fan-out: %v", answer.name, answer.err)
			failed = append(failed, prettyName(answer.name))
			continue
		}
		succeeded = append(succeeded, answer)
	}
	if len(succeeded) == 0 {
		return msgNoExperts, nil
	}

	text := synthesizeAnswers(input, succeeded)
	if len(failed) > 0 {
		text += fmt.Sprintf("\n\n(Note: the %s did not respond in time, so this answer may be incomplete.)",
			strings.Join(failed, " and "))
	}
	return text, nil
}

func (c *Coordinator) handleGuidance(state *SessionState) string {
	if len(state.TopicHistory) == 0 {
		return msgNoHistory
	}

	type topicAverage struct {
		topic   string
		average float64
		taken   int
	}
	averages := make([]topicAverage, 0, len(state.TopicHistory))
	for topic, scores := range state.TopicHistory {
		total := 0.0
		for _, score := range scores {
			total += score.ScorePercent
		}
		averages = append(averages, topicAverage{
			topic:   topic,
			average: total / float64(len(scores)),
			taken:   len(scores),
		})
	}
	sort.Slice(averages, func(i, j int) bool {
		if averages[i].average != averages[j].average {
			return averages[i].average < averages[j].average
		}
		return averages[i].topic < averages[j].topic
	})

	var sb strings.Builder
	sb.WriteString("Here's how you're doing:\n")
	for _, avg := range averages {
		sb.WriteString(fmt.Sprintf("- %s: %.0f%% average over %d quiz(zes)\n", avg.topic, avg.average, avg.taken))
	}
	weakest := averages[0]
	strongest := averages[len(averages)-1]
	if weakest.average < 60 {
		sb.WriteString(fmt.Sprintf("\nFocus on %s next: your average there is %.0f%%. "+
			"Try asking me doubts on it, then take another quiz to check your progress.",
			weakest.topic, weakest.average))
	} else {
		sb.WriteString(fmt.Sprintf("\nSolid work across the board. %s is your strongest topic at %.0f%%; "+
			"consider a harder quiz on %s to keep improving.",
			strongest.topic, strongest.average, weakest.topic))
	}
	return sb.String()
}

// synthesizeAnswers reconciles multiple expert answers into one reply. The
// answer with the best direct coverage of the question's terms wins; with no
// clear winner, every answer is presented labeled by domain.
func synthesizeAnswers(query string, answers []expertAnswer) string {
	if len(answers) == 1 {
		return answers[0].text
	}

	terms := salientTerms(query)
	bestIdx := -1
	bestScore := -1
	tied := false
	for i, answer := range answers {
		score := coverage(answer.text, terms)
		if score > bestScore {
			bestIdx = i
			bestScore = score
			tied = false
		} else if score == bestScore {
			tied = true
		}
	}
	if bestIdx >= 0 && !tied {
		return answers[bestIdx].text
	}

	var sb strings.Builder
	for i, answer := range answers {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("From the %s:\n%s", prettyName(answer.name), answer.text))
	}
	return sb.String()
}

var stopwords = map[string]bool{
	"what": true, "when": true, "where": true, "which": true, "does": true,
	"this": true, "that": true, "with": true, "about": true, "explain": true,
	"difference": true, "between": true, "please": true, "tell": true,
}

func salientTerms(query string) []string {
	var terms []string
	for _, field := range strings.Fields(strings.ToLower(query)) {
		term := strings.Trim(field, ".,!?\"'()")
		if len(term) > 3 && !stopwords[term] {
			terms = append(terms, term)
		}
	}
	return terms
}

func coverage(text string, terms []string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			count++
		}
	}
	return count
}

func prettyName(capability string) string {
	return strings.ReplaceAll(capability, "_", " ")
}

func formatQuiz(view *QuizView) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Here's your %d-question quiz on %s (quiz %s). "+
		"Answer each question, then ask me to grade it.\n",
		len(view.Questions), view.Topic, view.ID))
	for i, question := range view.Questions {
		sb.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, question.Text))
		for j, option := range question.Options {
			sb.WriteString(fmt.Sprintf("   %d) %s\n", j+1, option))
		}
	}
	return sb.String()
}

func formatEvaluation(topic string, result *EvaluationResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You scored %d/%d (%.0f%%) on %s.\n",
		result.CorrectAnswers, result.TotalQuestions, result.ScorePercent, topic))
	for i, detail := range result.Details {
		if detail.IsCorrect {
			sb.WriteString(fmt.Sprintf("Q%d: correct.\n", i+1))
		} else if detail.UserAnswer == "" {
			sb.WriteString(fmt.Sprintf("Q%d: no answer. The correct answer is %q.\n",
				i+1, detail.CorrectAnswer))
		} else {
			sb.WriteString(fmt.Sprintf("Q%d: incorrect. You answered %q, the correct answer is %q.\n",
				i+1, detail.UserAnswer, detail.CorrectAnswer))
		}
	}
	return sb.String()
}

// userMessage maps a sub-handler failure to a stable user-facing message.
// The second return is false for failures that should fail the whole turn,
// such as losing the persistence store.
func userMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrNoActiveQuiz):
		return msgNoActiveQuiz, true
	case errors.Is(err, ErrQuizNotFound):
		return "I couldn't find that quiz anymore. Ask me to generate a fresh one.", true
	case errors.Is(err, ErrEmptyQuiz):
		return "That quiz has no questions to grade. Ask me for a new quiz.", true
	case errors.Is(err, ErrGenerationFailed):
		return msgGenerationFailed, true
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return "Something is wrong with the quiz data (" + validationErr.Reason + "). Please request a new quiz.", true
	}
	var capabilityErr *CapabilityError
	if errors.As(err, &capabilityErr) {
		return "I couldn't reach the " + prettyName(capabilityErr.Capability) + " right now. Please try again shortly.", true
	}
	return "", false
}
