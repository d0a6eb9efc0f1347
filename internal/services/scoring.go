package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"hyra-backend/internal/models"
)

// ScorePercent rounds correct/total*100 to the nearest integer, halves going up.
// Integer arithmetic keeps boundaries such as 7/10 = 70 exact.
func ScorePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}

// Grade compares every question of the quiz, in stored order, with the index the
// learner picked. Questions missing from selected count as NoAnswer.
func Grade(questions []*models.Question, selected map[string]int) ([]models.QuestionResult, int) {
	results := make([]models.QuestionResult, 0, len(questions))
	correct := 0

	for _, q := range questions {
		picked, ok := selected[q.ID]
		if !ok {
			picked = models.NoAnswer
		}
		want := q.CorrectIndex()
		isCorrect := want != models.NoAnswer && picked == want
		if isCorrect {
			correct++
		}
		results = append(results, models.QuestionResult{
			QuestionID:     q.ID,
			IsCorrect:      isCorrect,
			SelectedAnswer: picked,
			CorrectAnswer:  want,
		})
	}

	return results, correct
}

// validateSubmission checks the shape of a submission before any storage access
// and returns the picks keyed by question id.
func validateSubmission(req models.SubmitQuizRequest) (map[string]int, error) {
	if req.Answers == nil {
		return nil, validationErr("answers", "answers array is required")
	}
	if len(req.Answers) == 0 {
		return nil, validationErr("answers", "answers array cannot be empty")
	}

	fields := map[string]string{}
	selected := make(map[string]int, len(req.Answers))
	for i, a := range req.Answers {
		prefix := fmt.Sprintf("answers[%d]", i)
		questionID := canonicalID(a.QuestionID)
		if questionID == "" {
			fields[prefix+".questionId"] = "questionId is required for each answer"
			continue
		}
		if a.SelectedAnswer == nil {
			fields[prefix+".selectedAnswer"] = "selectedAnswer is required"
			continue
		}
		if *a.SelectedAnswer < 0 {
			fields[prefix+".selectedAnswer"] = "selectedAnswer must be a non-negative number (index)"
			continue
		}
		if _, dup := selected[questionID]; dup {
			fields[prefix+".questionId"] = "question answered more than once"
			continue
		}
		selected[questionID] = *a.SelectedAnswer
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return selected, nil
}

// canonicalID lowercases UUID ids the way the stores return them. Other ids
// are only trimmed.
func canonicalID(id string) string {
	id = strings.TrimSpace(id)
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return id
}

// unknownQuestions reports submitted question ids that are not part of the quiz.
func unknownQuestions(questions []*models.Question, selected map[string]int) map[string]string {
	known := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}
	fields := map[string]string{}
	for id := range selected {
		if _, ok := known[id]; !ok {
			fields["questionId."+id] = "question does not belong to this quiz"
		}
	}
	return fields
}
