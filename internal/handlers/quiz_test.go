package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hyra-backend/internal/middleware"
	"hyra-backend/internal/models"
	"hyra-backend/internal/repository"
	"hyra-backend/internal/services"
)

type envelope struct {
	Success  bool             `json:"success"`
	Data     json.RawMessage  `json:"data"`
	Count    int              `json:"count"`
	IsReview *bool            `json:"isReview"`
	Warning  *models.APIError `json:"warning"`
	Error    models.APIError  `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid response body %q: %v", rr.Body.String(), err)
	}
	return env
}

type failingStore struct {
	*repository.MemoryQuizRepo
	failGet   bool
	failRaise bool
}

func (s *failingStore) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	if s.failGet {
		return nil, errors.New("connection refused")
	}
	return s.MemoryQuizRepo.GetQuiz(ctx, id)
}

func (s *failingStore) RaiseHighestScore(ctx context.Context, quizID string, score int) (bool, error) {
	if s.failRaise {
		return false, errors.New("write timeout")
	}
	return s.MemoryQuizRepo.RaiseHighestScore(ctx, quizID, score)
}

// seedQuiz stores a quiz whose four questions have correct indices [0,1,2,0].
func seedQuiz(t *testing.T, store services.QuizStore, owner uuid.UUID, highest int) (*models.Quiz, []string) {
	t.Helper()
	now := time.Now().UTC()
	quiz := &models.Quiz{
		ID:           uuid.NewString(),
		Name:         "Photosynthesis",
		FileID:       uuid.NewString(),
		UserID:       owner.String(),
		Level:        models.LevelEasy,
		HighestScore: highest,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var questions []*models.Question
	var ids []string
	for i, correct := range []int{0, 1, 2, 0} {
		answers := make([]models.Answer, 4)
		for j := range answers {
			answers[j] = models.Answer{ID: uuid.NewString(), Content: fmt.Sprintf("option %d", j), IsCorrect: j == correct}
		}
		q := &models.Question{
			ID:       uuid.NewString(),
			QuizID:   quiz.ID,
			Name:     fmt.Sprintf("Question %d", i+1),
			Question: fmt.Sprintf("Question text %d", i+1),
			Answers:  answers,
			Position: i,
		}
		questions = append(questions, q)
		ids = append(ids, q.ID)
	}
	if err := store.CreateQuiz(context.Background(), quiz, questions); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return quiz, ids
}

func submitBody(ids []string, picks ...int) []byte {
	answers := make([]map[string]interface{}, 0, len(picks))
	for i, p := range picks {
		answers = append(answers, map[string]interface{}{"questionId": ids[i], "selectedAnswer": p})
	}
	body, _ := json.Marshal(map[string]interface{}{"answers": answers, "timeSpent": "02:30"})
	return body
}

func newRequest(method, target string, body []byte, userID uuid.UUID, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
	return req
}

func newHandler(store services.QuizStore) *QuizHandler {
	return NewQuizHandler(services.NewQuizService(store, nil, nil, false), nil)
}

func TestSubmit_KeepsHigherStoredScore(t *testing.T) {
	store := repository.NewMemoryQuizRepo()
	owner := uuid.New()
	quiz, ids := seedQuiz(t, store, owner, 80)
	h := newHandler(store)

	rr := httptest.NewRecorder()
	h.Submit(rr, newRequest(http.MethodPost, "/api/v1/quizzes/"+quiz.ID+"/submit", submitBody(ids, 0, 1, 3, 0), owner, map[string]string{"quizId": quiz.ID}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decode(t, rr)
	var result models.ScoreResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Score != 75 || result.CorrectAnswers != 3 || result.TotalQuestions != 4 || result.TimeSpent != "02:30" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.HighestScore != 80 || result.NewHighScore || env.Warning != nil {
		t.Fatalf("expected stored 80 to be kept without warning: %+v", result)
	}

	stored, _ := store.GetQuiz(context.Background(), quiz.ID)
	if stored.HighestScore != 80 {
		t.Fatalf("expected highest score 80, got %d", stored.HighestScore)
	}
}

func TestSubmit_FirstAttemptRecordsScore(t *testing.T) {
	store := repository.NewMemoryQuizRepo()
	owner := uuid.New()
	quiz, ids := seedQuiz(t, store, owner, models.UnattemptedScore)
	h := newHandler(store)

	rr := httptest.NewRecorder()
	h.Submit(rr, newRequest(http.MethodPost, "/submit", submitBody(ids, 0, 1, 3, 0), owner, map[string]string{"quizId": quiz.ID}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	stored, _ := store.GetQuiz(context.Background(), quiz.ID)
	if stored.HighestScore != 75 {
		t.Fatalf("expected highest score 75, got %d", stored.HighestScore)
	}
}

func TestSubmit_RejectsInvalidPayloads(t *testing.T) {
	owner := uuid.New()

	tests := []struct {
		name string
		body func(ids []string) string
	}{
		{"empty answers", func([]string) string { return `{"answers": []}` }},
		{"missing answers", func([]string) string { return `{}` }},
		{"answers not an array", func([]string) string { return `{"answers": {}}` }},
		{"selected answer as string", func(ids []string) string {
			return `{"answers": [{"questionId": "` + ids[0] + `", "selectedAnswer": "2"}]}`
		}},
		{"negative selected answer", func(ids []string) string {
			return `{"answers": [{"questionId": "` + ids[0] + `", "selectedAnswer": -1}]}`
		}},
		{"unknown question", func(ids []string) string {
			return `{"answers": [{"questionId": "` + ids[0] + `", "selectedAnswer": 0}, {"questionId": "nope", "selectedAnswer": 1}]}`
		}},
		{"malformed json", func([]string) string { return `{"answers": [` }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := repository.NewMemoryQuizRepo()
			quiz, ids := seedQuiz(t, store, owner, 60)
			h := newHandler(store)

			rr := httptest.NewRecorder()
			h.Submit(rr, newRequest(http.MethodPost, "/submit", []byte(tc.body(ids)), owner, map[string]string{"quizId": quiz.ID}))

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			env := decode(t, rr)
			if env.Success || env.Error.Code != "VALIDATION_ERROR" {
				t.Fatalf("unexpected error body: %+v", env)
			}

			stored, _ := store.GetQuiz(context.Background(), quiz.ID)
			if stored.HighestScore != 60 {
				t.Fatalf("highest score must not change, got %d", stored.HighestScore)
			}
			questions, _ := store.ListQuestions(context.Background(), quiz.ID)
			for _, q := range questions {
				if q.UserAnswer != nil {
					t.Fatalf("user answers must not be stored")
				}
			}
		})
	}
}

func TestSubmit_ErrorStatuses(t *testing.T) {
	owner := uuid.New()
	store := repository.NewMemoryQuizRepo()
	quiz, ids := seedQuiz(t, store, owner, models.UnattemptedScore)
	h := newHandler(store)
	body := submitBody(ids, 0)

	tests := []struct {
		name   string
		quizID string
		user   uuid.UUID
		status int
		code   string
	}{
		{"invalid id", "not-a-uuid", owner, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown quiz", uuid.NewString(), owner, http.StatusNotFound, "NOT_FOUND"},
		{"other user", quiz.ID, uuid.New(), http.StatusForbidden, "FORBIDDEN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Submit(rr, newRequest(http.MethodPost, "/submit", body, tc.user, map[string]string{"quizId": tc.quizID}))

			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			if env := decode(t, rr); env.Error.Code != tc.code {
				t.Fatalf("expected code %s, got %+v", tc.code, env.Error)
			}
		})
	}
}

func TestSubmit_StoreUnavailable(t *testing.T) {
	store := &failingStore{MemoryQuizRepo: repository.NewMemoryQuizRepo(), failGet: true}
	h := newHandler(store)
	quizID := uuid.NewString()

	rr := httptest.NewRecorder()
	h.Submit(rr, newRequest(http.MethodPost, "/submit", submitBody([]string{"q1"}, 0), uuid.New(), map[string]string{"quizId": quizID}))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if env := decode(t, rr); env.Error.Code != "PERSISTENCE_ERROR" {
		t.Fatalf("expected PERSISTENCE_ERROR, got %+v", env.Error)
	}
}

func TestSubmit_ScoreReturnedWhenHighScoreWriteFails(t *testing.T) {
	store := &failingStore{MemoryQuizRepo: repository.NewMemoryQuizRepo()}
	owner := uuid.New()
	quiz, ids := seedQuiz(t, store, owner, models.UnattemptedScore)
	store.failRaise = true
	h := newHandler(store)

	rr := httptest.NewRecorder()
	h.Submit(rr, newRequest(http.MethodPost, "/submit", submitBody(ids, 0, 1, 2, 0), owner, map[string]string{"quizId": quiz.ID}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decode(t, rr)
	var result models.ScoreResult
	json.Unmarshal(env.Data, &result)
	if result.Score != 100 || result.Persisted {
		t.Fatalf("expected score 100 with persisted=false, got %+v", result)
	}
	if env.Warning == nil || env.Warning.Code != "PERSISTENCE_ERROR" {
		t.Fatalf("expected persistence warning, got %+v", env.Warning)
	}
}

func TestQuestions_ReviewShowsLastSubmission(t *testing.T) {
	store := repository.NewMemoryQuizRepo()
	owner := uuid.New()
	quiz, ids := seedQuiz(t, store, owner, models.UnattemptedScore)
	h := newHandler(store)
	params := map[string]string{"quizId": quiz.ID}

	rr := httptest.NewRecorder()
	h.Submit(rr, newRequest(http.MethodPost, "/submit", submitBody(ids, 0, 1, 3, 0), owner, params))
	if rr.Code != http.StatusOK {
		t.Fatalf("submit failed: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Questions(rr, newRequest(http.MethodGet, "/api/v1/quizzes/"+quiz.ID+"/questions?review=true", nil, owner, params))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decode(t, rr)
	var questions []models.Question
	if err := json.Unmarshal(env.Data, &questions); err != nil {
		t.Fatalf("decode questions: %v", err)
	}
	if env.Count != 4 || len(questions) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(questions))
	}
	if env.IsReview == nil || !*env.IsReview {
		t.Fatalf("expected isReview=true in response, got %s", rr.Body.String())
	}
	want := []int{0, 1, 3, 0}
	for i, q := range questions {
		if q.UserAnswer == nil || *q.UserAnswer != want[i] {
			t.Fatalf("question %d: expected user answer %d, got %v", i, want[i], q.UserAnswer)
		}
	}
	if !strings.Contains(rr.Body.String(), `"isCorrect":true`) {
		t.Fatalf("expected answer key in review payload")
	}
}

func TestQuestions_HiddenAnswersOutsideReview(t *testing.T) {
	store := repository.NewMemoryQuizRepo()
	owner := uuid.New()
	quiz, _ := seedQuiz(t, store, owner, models.UnattemptedScore)
	h := NewQuizHandler(services.NewQuizService(store, nil, nil, true), nil)

	rr := httptest.NewRecorder()
	h.Questions(rr, newRequest(http.MethodGet, "/questions?review=false", nil, owner, map[string]string{"quizId": quiz.ID}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), `"isCorrect":true`) {
		t.Fatalf("answer key must be hidden outside review: %s", rr.Body.String())
	}
	if env := decode(t, rr); env.IsReview == nil || *env.IsReview {
		t.Fatalf("expected isReview=false in response, got %s", rr.Body.String())
	}
}

func TestQuestions_UnknownQuiz(t *testing.T) {
	h := newHandler(repository.NewMemoryQuizRepo())
	quizID := uuid.NewString()

	rr := httptest.NewRecorder()
	h.Questions(rr, newRequest(http.MethodGet, "/questions", nil, uuid.New(), map[string]string{"quizId": quizID}))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestGetAndList(t *testing.T) {
	store := repository.NewMemoryQuizRepo()
	owner := uuid.New()
	quiz, _ := seedQuiz(t, store, owner, 40)
	seedQuiz(t, store, uuid.New(), 90)
	h := newHandler(store)

	rr := httptest.NewRecorder()
	h.Get(rr, newRequest(http.MethodGet, "/quizzes/"+quiz.ID, nil, owner, map[string]string{"quizId": quiz.ID}))
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}
	var got models.Quiz
	json.Unmarshal(decode(t, rr).Data, &got)
	if got.ID != quiz.ID || got.HighestScore != 40 {
		t.Fatalf("unexpected quiz: %+v", got)
	}

	rr = httptest.NewRecorder()
	h.ListAll(rr, newRequest(http.MethodGet, "/quizzes/all", nil, owner, nil))
	if env := decode(t, rr); rr.Code != http.StatusOK || env.Count != 1 {
		t.Fatalf("list all: expected 1 quiz, got %d (%d)", env.Count, rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ListByFile(rr, newRequest(http.MethodGet, "/quizzes/file/"+quiz.FileID, nil, owner, map[string]string{"fileId": quiz.FileID}))
	if env := decode(t, rr); rr.Code != http.StatusOK || env.Count != 1 {
		t.Fatalf("list by file: expected 1 quiz, got %d (%d)", env.Count, rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ListByFile(rr, newRequest(http.MethodGet, "/quizzes/file/bad", nil, owner, map[string]string{"fileId": "bad"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("list by file: expected 400 for bad id, got %d", rr.Code)
	}
}

func TestImport(t *testing.T) {
	store := repository.NewMemoryQuizRepo()
	owner := uuid.New()
	fileID := uuid.NewString()
	h := newHandler(store)
	params := map[string]string{"fileId": fileID}

	body := `[
		{"question": "Largest planet?", "options": {"A": "Mars", "B": "Jupiter", "C": "Venus", "D": "Earth"}, "answer": "B"},
		{"question": "Closest star?", "options": {"A": "Sun", "B": "Sirius", "C": "Vega", "D": "Rigel"}, "answer": "a"}
	]`

	rr := httptest.NewRecorder()
	h.Import(rr, newRequest(http.MethodPost, "/files/"+fileID+"/import-questions", []byte(body), owner, params))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decode(t, rr)
	var data struct {
		QuizID string `json:"quizId"`
	}
	json.Unmarshal(env.Data, &data)
	if env.Count != 2 || data.QuizID == "" {
		t.Fatalf("unexpected import response: %s", rr.Body.String())
	}

	quiz, err := store.GetQuiz(context.Background(), data.QuizID)
	if err != nil || quiz.HighestScore != models.UnattemptedScore || quiz.UserID != owner.String() {
		t.Fatalf("unexpected imported quiz: %+v (%v)", quiz, err)
	}
}

func TestImport_RejectsMalformedItems(t *testing.T) {
	h := newHandler(repository.NewMemoryQuizRepo())
	fileID := uuid.NewString()

	rr := httptest.NewRecorder()
	body := `[{"question": "q", "options": {"A": "1", "B": "2"}, "answer": "C"}]`
	h.Import(rr, newRequest(http.MethodPost, "/import-questions", []byte(body), uuid.New(), map[string]string{"fileId": fileID}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	env := decode(t, rr)
	if _, ok := env.Error.Fields["questions[0].options.C"]; !ok {
		t.Fatalf("expected field error for missing option C, got %+v", env.Error.Fields)
	}
}

func TestSubmit_AcceptsUppercaseQuestionIDs(t *testing.T) {
	store := repository.NewMemoryQuizRepo()
	owner := uuid.New()
	quiz, ids := seedQuiz(t, store, owner, models.UnattemptedScore)
	h := newHandler(store)

	upper := make([]string, len(ids))
	for i, id := range ids {
		upper[i] = strings.ToUpper(id)
	}

	rr := httptest.NewRecorder()
	h.Submit(rr, newRequest(http.MethodPost, "/submit", submitBody(upper, 0, 1, 2, 0), owner, map[string]string{"quizId": quiz.ID}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result models.ScoreResult
	json.Unmarshal(decode(t, rr).Data, &result)
	if result.Score != 100 {
		t.Fatalf("expected score 100, got %+v", result)
	}
}
