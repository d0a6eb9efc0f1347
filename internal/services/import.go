package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"hyra-backend/internal/models"
	"hyra-backend/internal/repository"
)

const optionLetters = "ABCD"

// ParseImportPayload decodes an import body. Two shapes are accepted: a bare
// array of questions, or {"questions": [...], "name": "...", "level": "..."}.
// Unknown fields, missing options and answer letters outside A-D are rejected.
func ParseImportPayload(body []byte) (*models.ImportQuizRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, validationErr("questions", "Payload questions is required")
	}

	req := &models.ImportQuizRequest{}
	var err error
	switch trimmed[0] {
	case '[':
		err = decodeStrict(trimmed, &req.Questions)
	case '{':
		err = decodeStrict(trimmed, req)
	default:
		return nil, validationErr("body", "Payload must be a JSON array or object")
	}
	if err != nil {
		return nil, validationErr("body", err.Error())
	}

	if err := validateImport(req); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after JSON payload")
	}
	return nil
}

func validateImport(req *models.ImportQuizRequest) error {
	if len(req.Questions) == 0 {
		return validationErr("questions", "Payload questions must be a non-empty array")
	}

	fields := map[string]string{}
	if req.Level != "" {
		level, ok := models.ParseLevel(req.Level)
		if !ok {
			fields["level"] = "level must be one of easy, medium, hard"
		} else {
			req.Level = string(level)
		}
	}

	for i := range req.Questions {
		q := &req.Questions[i]
		prefix := fmt.Sprintf("questions[%d]", i)

		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			fields[prefix+".question"] = "question text is required"
		}

		if q.Options == nil {
			fields[prefix+".options"] = "options A, B, C and D are required"
		} else {
			for j, text := range optionTexts(q.Options) {
				if strings.TrimSpace(text) == "" {
					fields[fmt.Sprintf("%s.options.%c", prefix, optionLetters[j])] = "option text is required"
				}
			}
		}

		q.Answer = strings.ToUpper(strings.TrimSpace(q.Answer))
		if len(q.Answer) != 1 || !strings.Contains(optionLetters, q.Answer) {
			fields[prefix+".answer"] = "answer must be one of A, B, C, D"
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func optionTexts(o *models.ImportOptions) [4]string {
	return [4]string{o.A, o.B, o.C, o.D}
}

// ImportQuestions stores a parsed import as a new, unattempted quiz on fileID.
func (s *QuizService) ImportQuestions(ctx context.Context, user models.UserContext, fileID string, req *models.ImportQuizRequest) (*models.Quiz, error) {
	if req == nil {
		return nil, validationErr("questions", "Payload questions is required")
	}
	if err := validateImport(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	level := models.LevelEasy
	if l, ok := models.ParseLevel(req.Level); ok {
		level = l
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Imported Quiz - " + now.Format(time.RFC3339)
	}

	quiz := &models.Quiz{
		ID:           uuid.NewString(),
		Name:         name,
		FileID:       fileID,
		UserID:       user.UserID.String(),
		Level:        level,
		HighestScore: models.UnattemptedScore,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	questions := make([]*models.Question, 0, len(req.Questions))
	for i, item := range req.Questions {
		answers := make([]models.Answer, 0, len(optionLetters))
		for j, text := range optionTexts(item.Options) {
			answers = append(answers, models.Answer{
				ID:        uuid.NewString(),
				Content:   strings.TrimSpace(text),
				IsCorrect: item.Answer[0] == optionLetters[j],
			})
		}
		questions = append(questions, &models.Question{
			ID:        uuid.NewString(),
			QuizID:    quiz.ID,
			Name:      fmt.Sprintf("Question %d", i+1),
			Question:  item.Question,
			Answers:   answers,
			Position:  i,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := s.store.CreateQuiz(ctx, quiz, questions); err != nil {
		return nil, &PersistenceError{Op: "create quiz", Err: err}
	}

	// Files are owned by the upload service; a missing row only means the count is not tracked here.
	if err := s.store.IncrementFileQuizCount(ctx, fileID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.log.Warn("failed to update file quiz count", "file_id", fileID, "error", err)
	}

	s.publish(ctx, user.UserID, models.WSMessage{
		Type: models.EventQuizImported,
		Payload: models.QuizImportedEvent{
			QuizID:        quiz.ID,
			FileID:        fileID,
			UserID:        quiz.UserID,
			QuestionCount: len(questions),
		},
	})

	return quiz, nil
}
