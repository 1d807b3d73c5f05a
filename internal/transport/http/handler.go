package http

import (
	"net/http"
	"time"

	"evaly-service/internal/app"
	"evaly-service/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler exposes the services over JSON HTTP and the presence websocket.
type Handler struct {
	svc       *app.Services
	auth      *Authenticator
	validate  *validator.Validate
	log       *zap.Logger
	upgrader  websocket.Upgrader
	pushEvery time.Duration
}

type HandlerOption func(*Handler)

// WithPresencePushInterval sets how often websocket clients receive the presence list.
func WithPresencePushInterval(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.pushEvery = d
		}
	}
}

func NewHandler(svc *app.Services, auth *Authenticator, log *zap.Logger, opts ...HandlerOption) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		svc:      svc,
		auth:     auth,
		validate: validator.New(),
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pushEvery: time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the mux with every endpoint, wrapped in the metrics middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/tests", h.authed(h.createTest))
	mux.HandleFunc("GET /api/tests", h.authed(h.getTests))
	mux.HandleFunc("GET /api/tests/{id}", h.authed(h.getTest))
	mux.HandleFunc("PATCH /api/tests/{id}", h.authed(h.updateTest))
	mux.HandleFunc("DELETE /api/tests/{id}", h.authed(h.deleteTest))
	mux.HandleFunc("POST /api/tests/{id}/publish", h.authed(h.publishTest))
	mux.HandleFunc("POST /api/tests/{id}/schedule", h.authed(h.updateSchedule))
	mux.HandleFunc("POST /api/tests/{id}/stop", h.authed(h.stopTest))
	mux.HandleFunc("POST /api/tests/{id}/duplicate", h.authed(h.duplicateTest))

	mux.HandleFunc("POST /api/tests/{id}/sections", h.authed(h.createSection))
	mux.HandleFunc("GET /api/tests/{id}/sections", h.authed(h.getSections))
	mux.HandleFunc("GET /api/sections/{id}", h.authed(h.getSection))
	mux.HandleFunc("PATCH /api/sections/{id}", h.authed(h.updateSection))
	mux.HandleFunc("DELETE /api/sections/{id}", h.authed(h.removeSection))

	mux.HandleFunc("POST /api/questions", h.authed(h.createQuestion))
	mux.HandleFunc("PATCH /api/questions/{id}", h.authed(h.updateQuestion))
	mux.HandleFunc("DELETE /api/questions/{id}", h.authed(h.deleteQuestion))
	mux.HandleFunc("GET /api/references/{id}/questions", h.authed(h.getQuestions))

	mux.HandleFunc("POST /api/question-banks", h.authed(h.createBank))
	mux.HandleFunc("GET /api/question-banks", h.authed(h.getBanks))
	mux.HandleFunc("GET /api/question-banks/{id}", h.authed(h.getBank))
	mux.HandleFunc("PATCH /api/question-banks/{id}", h.authed(h.updateBank))
	mux.HandleFunc("DELETE /api/question-banks/{id}", h.authed(h.deleteBank))
	mux.HandleFunc("GET /api/question-banks/{id}/questions", h.authed(h.getBankQuestions))
	mux.HandleFunc("POST /api/question-banks/{id}/questions", h.authed(h.addBankQuestion))
	mux.HandleFunc("POST /api/question-banks/{id}/duplicate", h.authed(h.duplicateBankQuestions))

	mux.HandleFunc("POST /api/sections/{id}/attempts", h.authed(h.startAttempt))
	mux.HandleFunc("POST /api/attempts/{id}/answers", h.authed(h.submitAnswer))
	mux.HandleFunc("POST /api/attempts/{id}/finish", h.authed(h.finishAttempt))
	mux.HandleFunc("GET /api/tests/{id}/attempts", h.authed(h.getAttempts))

	mux.HandleFunc("GET /api/tests/{id}/progress", h.authed(h.getProgress))
	mux.HandleFunc("GET /api/tests/{id}/results", h.authed(h.getResults))
	mux.HandleFunc("GET /api/tests/{id}/sections/{sectionId}/summary", h.authed(h.getSummary))
	mux.HandleFunc("GET /api/tests/{id}/analytics", h.authed(h.getAnalytics))
	mux.HandleFunc("POST /api/tests/{id}/participants/{participantId}/score", h.authed(h.calculateScore))

	mux.HandleFunc("POST /api/tests/{id}/presence", h.authed(h.updatePresence))
	mux.HandleFunc("POST /api/tests/{id}/presence/heartbeat", h.authed(h.heartbeat))
	mux.HandleFunc("GET /api/tests/{id}/presence", h.authed(h.listPresence))
	mux.HandleFunc("GET /ws/presence", h.authed(h.ServePresenceWS))

	return metrics.Middleware(endpointLabel, mux)
}

// endpointLabel uses the matched route pattern so ids do not explode label cardinality.
func endpointLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	return r.Pattern
}
