package models

import (
	"time"

	"github.com/google/uuid"
)

// UserContext identifies the authenticated caller of a service operation.
type UserContext struct {
	UserID uuid.UUID
}

func (u UserContext) Owns(ownerID string) bool {
	return u.UserID != uuid.Nil && u.UserID.String() == ownerID
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	EventQuizScored   = "quiz_scored"
	EventQuizImported = "quiz_imported"
)

type QuizScoredEvent struct {
	QuizID         string    `json:"quizId"`
	UserID         string    `json:"userId"`
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correctAnswers"`
	TotalQuestions int       `json:"totalQuestions"`
	HighestScore   int       `json:"highestScore"`
	NewHighScore   bool      `json:"newHighScore"`
	CompletedAt    time.Time `json:"completedAt"`
}

type QuizImportedEvent struct {
	QuizID        string `json:"quizId"`
	FileID        string `json:"fileId"`
	UserID        string `json:"userId"`
	QuestionCount int    `json:"questionCount"`
}

// API error envelope
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}
