package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"hyra-backend/internal/logger"
	"hyra-backend/internal/models"
	"hyra-backend/internal/repository"
)

// QuizStore is the persistence the quiz service needs. Implemented by the
// Postgres, Mongo and in-memory repositories.
type QuizStore interface {
	GetQuiz(ctx context.Context, id string) (*models.Quiz, error)
	ListQuizzesByUser(ctx context.Context, userID string) ([]*models.Quiz, error)
	ListQuizzesByFile(ctx context.Context, fileID string) ([]*models.Quiz, error)
	ListQuestions(ctx context.Context, quizID string) ([]*models.Question, error)
	CreateQuiz(ctx context.Context, quiz *models.Quiz, questions []*models.Question) error
	SaveUserAnswers(ctx context.Context, quizID string, answers map[string]int) error
	RaiseHighestScore(ctx context.Context, quizID string, score int) (bool, error)
	IncrementFileQuizCount(ctx context.Context, fileID string) error
}

// EventPublisher delivers user-facing events. Failures never fail the request.
type EventPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

type QuizService struct {
	store       QuizStore
	events      EventPublisher
	log         *logger.Logger
	hideAnswers bool
	now         func() time.Time
}

// NewQuizService builds the service. events may be nil. hideAnswers strips the
// answer key from question listings requested outside review mode.
func NewQuizService(store QuizStore, events EventPublisher, log *logger.Logger, hideAnswers bool) *QuizService {
	if log == nil {
		log = logger.Nop()
	}
	return &QuizService{
		store:       store,
		events:      events,
		log:         log.With("service", "QuizService"),
		hideAnswers: hideAnswers,
		now:         time.Now,
	}
}

func (s *QuizService) loadOwnedQuiz(ctx context.Context, user models.UserContext, quizID string) (*models.Quiz, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Quiz not found"}
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load quiz", Err: err}
	}
	if !user.Owns(quiz.UserID) {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	return quiz, nil
}

func (s *QuizService) GetQuiz(ctx context.Context, user models.UserContext, quizID string) (*models.Quiz, error) {
	return s.loadOwnedQuiz(ctx, user, quizID)
}

func (s *QuizService) ListQuizzes(ctx context.Context, user models.UserContext) ([]*models.Quiz, error) {
	quizzes, err := s.store.ListQuizzesByUser(ctx, user.UserID.String())
	if err != nil {
		return nil, &PersistenceError{Op: "list quizzes", Err: err}
	}
	return quizzes, nil
}

// ListQuizzesByFile returns the caller's quizzes generated from or imported into fileID.
func (s *QuizService) ListQuizzesByFile(ctx context.Context, user models.UserContext, fileID string) ([]*models.Quiz, error) {
	quizzes, err := s.store.ListQuizzesByFile(ctx, fileID)
	if err != nil {
		return nil, &PersistenceError{Op: "list quizzes", Err: err}
	}
	owned := make([]*models.Quiz, 0, len(quizzes))
	for _, q := range quizzes {
		if user.Owns(q.UserID) {
			owned = append(owned, q)
		}
	}
	return owned, nil
}

// GetQuestionsForReview lists the quiz's questions. Outside review mode the
// answer key is only stripped when the service was built with hideAnswers.
func (s *QuizService) GetQuestionsForReview(ctx context.Context, user models.UserContext, quizID string, review bool) ([]*models.Question, error) {
	quiz, err := s.loadOwnedQuiz(ctx, user, quizID)
	if err != nil {
		return nil, err
	}

	questions, err := s.store.ListQuestions(ctx, quiz.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "load questions", Err: err}
	}

	if review || !s.hideAnswers {
		return questions, nil
	}

	stripped := make([]*models.Question, 0, len(questions))
	for _, q := range questions {
		stripped = append(stripped, q.WithoutAnswerKey())
	}
	return stripped, nil
}

// SubmitQuiz grades one attempt and records it. Validation runs before any
// write. Once the score is computed it is always returned; a failed write only
// clears ScoreResult.Persisted.
func (s *QuizService) SubmitQuiz(ctx context.Context, user models.UserContext, quizID string, req models.SubmitQuizRequest) (*models.ScoreResult, error) {
	selected, err := validateSubmission(req)
	if err != nil {
		return nil, err
	}

	quiz, err := s.loadOwnedQuiz(ctx, user, quizID)
	if err != nil {
		return nil, err
	}

	questions, err := s.store.ListQuestions(ctx, quiz.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "load questions", Err: err}
	}

	if fields := unknownQuestions(questions, selected); len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	results, correct := Grade(questions, selected)
	completedAt := s.now().UTC()
	result := &models.ScoreResult{
		QuizID:         quiz.ID,
		Score:          ScorePercent(correct, len(questions)),
		CorrectAnswers: correct,
		TotalQuestions: len(questions),
		TimeSpent:      req.TimeSpent,
		Completed:      true,
		CompletedAt:    &completedAt,
		Results:        results,
		HighestScore:   quiz.HighestScore,
		Persisted:      true,
	}

	s.recordAttempt(ctx, quiz, result)
	s.publish(ctx, user.UserID, models.WSMessage{
		Type: models.EventQuizScored,
		Payload: models.QuizScoredEvent{
			QuizID:         result.QuizID,
			UserID:         user.UserID.String(),
			Score:          result.Score,
			CorrectAnswers: result.CorrectAnswers,
			TotalQuestions: result.TotalQuestions,
			HighestScore:   result.HighestScore,
			NewHighScore:   result.NewHighScore,
			CompletedAt:    completedAt,
		},
	})

	return result, nil
}

// recordAttempt stores the latest picks and raises the best score.
func (s *QuizService) recordAttempt(ctx context.Context, quiz *models.Quiz, result *models.ScoreResult) {
	picks := make(map[string]int, len(result.Results))
	for _, r := range result.Results {
		picks[r.QuestionID] = r.SelectedAnswer
	}

	if err := s.store.SaveUserAnswers(ctx, quiz.ID, picks); err != nil {
		result.Persisted = false
		s.log.Error("failed to save user answers", "quiz_id", quiz.ID, "error", err)
	}

	raised, err := s.store.RaiseHighestScore(ctx, quiz.ID, result.Score)
	if err != nil {
		result.Persisted = false
		s.log.Error("failed to update highest score", "quiz_id", quiz.ID, "score", result.Score, "error", err)
		return
	}

	result.NewHighScore = raised
	if raised {
		result.HighestScore = result.Score
		return
	}
	if result.Score <= result.HighestScore {
		return
	}

	// A concurrent submission stored a higher best since the quiz was loaded.
	current, err := s.store.GetQuiz(ctx, quiz.ID)
	if err != nil {
		s.log.Warn("failed to reload highest score", "quiz_id", quiz.ID, "error", err)
		return
	}
	result.HighestScore = current.HighestScore
}

func (s *QuizService) publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, userID, msg); err != nil {
		s.log.Warn("failed to publish event", "type", msg.Type, "error", err)
	}
}
