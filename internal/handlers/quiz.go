package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hyra-backend/internal/logger"
	"hyra-backend/internal/middleware"
	"hyra-backend/internal/models"
	"hyra-backend/internal/services"
)

const (
	maxSubmitBody = 1 << 20
	maxImportBody = 5 << 20
)

type QuizHandler struct {
	quizzes *services.QuizService
	log     *logger.Logger
}

func NewQuizHandler(quizzes *services.QuizService, log *logger.Logger) *QuizHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &QuizHandler{quizzes: quizzes, log: log.With("handler", "QuizHandler")}
}

// fail logs server-side failures and writes the mapped error response.
func (h *QuizHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *services.ValidationError
	var nfErr *services.NotFoundError
	var fErr *services.ForbiddenError
	if !errors.As(err, &vErr) && !errors.As(err, &nfErr) && !errors.As(err, &fErr) {
		h.log.Error("quiz request failed", "path", r.URL.Path, "request_id", requestID(r), "error", err)
	}
	handleServiceError(w, r, err)
}

// idParam returns the canonical form of a UUID path parameter.
func idParam(r *http.Request, name string) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func invalidBody(err error) *services.ValidationError {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return &services.ValidationError{Fields: map[string]string{"body": "request body too large"}}
	}
	return &services.ValidationError{Fields: map[string]string{"body": "Invalid request body: " + err.Error()}}
}

// Submit handles POST /quizzes/{quizId}/submit.
func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	quizID, ok := idParam(r, "quizId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid quiz ID", r))
		return
	}

	var req models.SubmitQuizRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBody)).Decode(&req); err != nil {
		h.fail(w, r, invalidBody(err))
		return
	}

	result, err := h.quizzes.SubmitQuiz(r.Context(), middleware.GetUserContext(r.Context()), quizID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"success": true,
		"message": "Quiz submitted successfully",
		"data":    result,
	}
	if !result.Persisted {
		resp["warning"] = models.APIError{
			Code:      "PERSISTENCE_ERROR",
			Message:   "Your score was calculated but could not be saved",
			RequestID: requestID(r),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Questions handles GET /quizzes/{quizId}/questions?review=true.
func (h *QuizHandler) Questions(w http.ResponseWriter, r *http.Request) {
	quizID, ok := idParam(r, "quizId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid quiz ID", r))
		return
	}

	review := r.URL.Query().Get("review")
	isReview := review == "true" || review == "1"

	questions, err := h.quizzes.GetQuestionsForReview(r.Context(), middleware.GetUserContext(r.Context()), quizID, isReview)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"data":     questions,
		"count":    len(questions),
		"isReview": isReview,
	})
}

func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	quizID, ok := idParam(r, "quizId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid quiz ID", r))
		return
	}

	quiz, err := h.quizzes.GetQuiz(r.Context(), middleware.GetUserContext(r.Context()), quizID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": quiz})
}

func (h *QuizHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.quizzes.ListQuizzes(r.Context(), middleware.GetUserContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    quizzes,
		"count":   len(quizzes),
	})
}

func (h *QuizHandler) ListByFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := idParam(r, "fileId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid file ID", r))
		return
	}

	quizzes, err := h.quizzes.ListQuizzesByFile(r.Context(), middleware.GetUserContext(r.Context()), fileID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    quizzes,
		"count":   len(quizzes),
	})
}

// Import handles POST /files/{fileId}/import-questions.
func (h *QuizHandler) Import(w http.ResponseWriter, r *http.Request) {
	fileID, ok := idParam(r, "fileId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid file ID", r))
		return
	}

	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Content-Type must be application/json", r))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBody))
	if err != nil {
		h.fail(w, r, invalidBody(err))
		return
	}

	req, err := services.ParseImportPayload(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	quiz, err := h.quizzes.ImportQuestions(r.Context(), middleware.GetUserContext(r.Context()), fileID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Questions imported successfully",
		"data":    map[string]string{"quizId": quiz.ID},
		"count":   len(req.Questions),
	})
}
