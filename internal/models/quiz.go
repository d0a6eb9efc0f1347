package models

import (
	"strings"
	"time"
)

type Level string

const (
	LevelEasy   Level = "easy"
	LevelMedium Level = "medium"
	LevelHard   Level = "hard"
)

// ParseLevel accepts the canonical names plus the "ez" alias older imports used.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy", "ez":
		return LevelEasy, true
	case "medium":
		return LevelMedium, true
	case "hard":
		return LevelHard, true
	}
	return "", false
}

// UnattemptedScore is the highestScore of a quiz nobody has submitted yet.
const UnattemptedScore = -1

// NoAnswer marks a question the learner skipped, or one without a correct option.
const NoAnswer = -1

type Quiz struct {
	ID           string    `json:"_id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	FileID       string    `json:"fileId" bson:"fileId"`
	UserID       string    `json:"userId" bson:"userId"`
	Level        Level     `json:"level" bson:"level"`
	HighestScore int       `json:"highestScore" bson:"highestScore"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (q *Quiz) Attempted() bool {
	return q.HighestScore != UnattemptedScore
}

type Answer struct {
	ID        string `json:"_id" bson:"_id"`
	Content   string `json:"content" bson:"content"`
	IsCorrect bool   `json:"isCorrect" bson:"isCorrect"`
	Explain   string `json:"explain" bson:"explain,omitempty"`
}

type Question struct {
	ID          string    `json:"_id" bson:"_id"`
	QuizID      string    `json:"quizId" bson:"quizId"`
	Name        string    `json:"name" bson:"name"`
	Question    string    `json:"question" bson:"question"`
	Answers     []Answer  `json:"answers" bson:"answers"`
	Explanation string    `json:"explanation,omitempty" bson:"explanation,omitempty"`
	UserAnswer  *int      `json:"userAnswer,omitempty" bson:"userAnswer,omitempty"`
	Position    int       `json:"-" bson:"position"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CorrectIndex returns the position of the first answer flagged correct, or NoAnswer.
func (q *Question) CorrectIndex() int {
	for i, a := range q.Answers {
		if a.IsCorrect {
			return i
		}
	}
	return NoAnswer
}

// WithoutAnswerKey returns a copy safe to show before the learner has answered.
func (q *Question) WithoutAnswerKey() *Question {
	out := *q
	out.Explanation = ""
	out.UserAnswer = nil
	out.Answers = make([]Answer, len(q.Answers))
	for i, a := range q.Answers {
		out.Answers[i] = Answer{ID: a.ID, Content: a.Content}
	}
	return &out
}

// Submission

type AnswerInput struct {
	QuestionID     string `json:"questionId"`
	SelectedAnswer *int   `json:"selectedAnswer"`
}

type SubmitQuizRequest struct {
	Answers   []AnswerInput `json:"answers"`
	TimeSpent string        `json:"timeSpent,omitempty"`
}

type QuestionResult struct {
	QuestionID     string `json:"questionId"`
	IsCorrect      bool   `json:"isCorrect"`
	SelectedAnswer int    `json:"selectedAnswer"`
	CorrectAnswer  int    `json:"correctAnswer"`
}

type ScoreResult struct {
	QuizID         string           `json:"quizId"`
	Score          int              `json:"score"`
	CorrectAnswers int              `json:"correctAnswers"`
	TotalQuestions int              `json:"totalQuestions"`
	TimeSpent      string           `json:"timeSpent,omitempty"`
	Completed      bool             `json:"completed"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
	Results        []QuestionResult `json:"results"`
	HighestScore   int              `json:"highestScore"`
	NewHighScore   bool             `json:"newHighScore"`
	Persisted      bool             `json:"persisted"`
}

// Import payloads

type ImportOptions struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

type ImportQuestion struct {
	Question string         `json:"question"`
	Options  *ImportOptions `json:"options"`
	Answer   string         `json:"answer"`
}

type ImportQuizRequest struct {
	Name      string           `json:"name"`
	Level     string           `json:"level"`
	Questions []ImportQuestion `json:"questions"`
}
