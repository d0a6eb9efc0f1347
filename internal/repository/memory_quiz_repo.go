package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"hyra-backend/internal/models"
)

// MemoryQuizRepo keeps quizzes in process memory. It backs STORE_DRIVER=memory
// for local runs and is the store the service and handler tests run against.
type MemoryQuizRepo struct {
	mu          sync.RWMutex
	quizzes     map[string]*models.Quiz
	questions   map[string][]*models.Question
	fileQuizzes map[string]int
}

func NewMemoryQuizRepo() *MemoryQuizRepo {
	return &MemoryQuizRepo{
		quizzes:     make(map[string]*models.Quiz),
		questions:   make(map[string][]*models.Question),
		fileQuizzes: make(map[string]int),
	}
}

func copyQuestion(q *models.Question) *models.Question {
	out := *q
	out.Answers = append([]models.Answer(nil), q.Answers...)
	if q.UserAnswer != nil {
		v := *q.UserAnswer
		out.UserAnswer = &v
	}
	return &out
}

func (r *MemoryQuizRepo) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.quizzes[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *q
	return &out, nil
}

func (r *MemoryQuizRepo) ListQuizzesByUser(ctx context.Context, userID string) ([]*models.Quiz, error) {
	return r.filterQuizzes(func(q *models.Quiz) bool { return q.UserID == userID }), nil
}

func (r *MemoryQuizRepo) ListQuizzesByFile(ctx context.Context, fileID string) ([]*models.Quiz, error) {
	return r.filterQuizzes(func(q *models.Quiz) bool { return q.FileID == fileID }), nil
}

func (r *MemoryQuizRepo) filterQuizzes(keep func(*models.Quiz) bool) []*models.Quiz {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*models.Quiz{}
	for _, q := range r.quizzes {
		if keep(q) {
			c := *q
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *MemoryQuizRepo) ListQuestions(ctx context.Context, quizID string) ([]*models.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.questions[quizID]
	out := make([]*models.Question, 0, len(stored))
	for _, q := range stored {
		out = append(out, copyQuestion(q))
	}
	return out, nil
}

func (r *MemoryQuizRepo) CreateQuiz(ctx context.Context, quiz *models.Quiz, questions []*models.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := *quiz
	r.quizzes[quiz.ID] = &q

	stored := make([]*models.Question, 0, len(questions))
	for _, qu := range questions {
		stored = append(stored, copyQuestion(qu))
	}
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].Position < stored[j].Position })
	r.questions[quiz.ID] = stored
	return nil
}

func (r *MemoryQuizRepo) SaveUserAnswers(ctx context.Context, quizID string, answers map[string]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, q := range r.questions[quizID] {
		if selected, ok := answers[q.ID]; ok {
			v := selected
			q.UserAnswer = &v
			q.UpdatedAt = now
		}
	}
	return nil
}

func (r *MemoryQuizRepo) RaiseHighestScore(ctx context.Context, quizID string, score int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.quizzes[quizID]
	if !ok {
		return false, ErrNotFound
	}
	if score <= q.HighestScore {
		return false, nil
	}
	q.HighestScore = score
	q.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryQuizRepo) IncrementFileQuizCount(ctx context.Context, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fileQuizzes[fileID]++
	return nil
}

func (r *MemoryQuizRepo) FileQuizCount(fileID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fileQuizzes[fileID]
}
