package studytutor

import (
	"context"
	"fmt"
)

// Evaluate grades submitted answers against the persisted quiz. The id is
// validated before any store fetch. Evaluation never mutates the quiz, so
// calling it twice with the same inputs yields the same result.
func Evaluate(ctx context.Context, store QuizStore, quizID string, answers []string) (*EvaluationResult, error) {
	if err := ValidateQuizID(quizID); err != nil {
		return nil, err
	}
	quiz, err := store.Fetch(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return GradeQuiz(quiz, answers)
}

// GradeQuiz pairs answers[i] with questions[i] positionally. Missing answers
// count as blank and incorrect, so a partially completed quiz is still
// gradable; extra answers beyond the question count are ignored. Correctness
// is exact, case-sensitive string equality with the stored correct answer.
func GradeQuiz(quiz *Quiz, answers []string) (*EvaluationResult, error) {
	if len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyQuiz, quiz.ID)
	}

	result := &EvaluationResult{
		QuizID:         quiz.ID,
		TotalQuestions: len(quiz.Questions),
		Details:        make([]AnswerDetail, 0, len(quiz.Questions)),
	}
	for i, question := range quiz.Questions {
		answer := ""
		if i < len(answers) {
			answer = answers[i]
		}
		correct := answer == question.CorrectAnswer
		if correct {
			result.CorrectAnswers++
		}
		result.Details = append(result.Details, AnswerDetail{
			Question:      question.Text,
			UserAnswer:    answer,
			CorrectAnswer: question.CorrectAnswer,
			IsCorrect:     correct,
		})
	}
	result.ScorePercent = 100 * float64(result.CorrectAnswers) / float64(result.TotalQuestions)
	return result, nil
}
