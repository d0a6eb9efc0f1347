package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"hyra-backend/internal/handlers"
	"hyra-backend/internal/logger"
	"hyra-backend/internal/middleware"
	"hyra-backend/internal/websocket"
)

// Options configures New. New returns the handler and a func that stops the
// background work it started.
type Options struct {
	FrontendURL     string
	StoreDriver     string
	SubmitRateLimit int
}

func New(
	jwtAuth *middleware.JWTAuth,
	quizHandler *handlers.QuizHandler,
	wsHub *websocket.Hub,
	log *logger.Logger,
	opts Options,
) (http.Handler, func()) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(opts.FrontendURL))

	// Submissions per user per minute, stopped by the returned func
	submitLimiter := middleware.NewRateLimiter(opts.SubmitRateLimit, time.Minute)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","store":"` + opts.StoreDriver + `"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Quiz Routes ────
		r.Route("/quizzes", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/all", quizHandler.ListAll)
			r.Get("/file/{fileId}", quizHandler.ListByFile)
			r.Get("/{quizId}", quizHandler.Get)
			r.Get("/{quizId}/questions", quizHandler.Questions)
			r.With(submitLimiter.Middleware).Post("/{quizId}/submit", quizHandler.Submit)
		})

		// ──── File Routes ────
		r.Route("/files/{fileId}", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/quizzes", quizHandler.ListByFile)
			r.Post("/import-questions", quizHandler.Import)
		})

		// ──── WebSocket ────
		if wsHub != nil {
			r.Get("/ws", wsHub.HandleWebSocket)
		}
	})

	return r, submitLimiter.Stop
}
