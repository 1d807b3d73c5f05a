package http

import (
	"encoding/json"
	"net/http"

	"evaly-service/internal/app"
)

type answerRequest struct {
	QuestionID    string   `json:"questionId" validate:"required"`
	AnswerText    *string  `json:"answerText" validate:"omitempty,max=20000"`
	AnswerOptions []string `json:"answerOptions"`
}

type presenceRequest struct {
	Data json.RawMessage `json:"data"`
}

func (h *Handler) startAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.svc.Attempts.StartAttempt(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	answer, err := h.svc.Attempts.SubmitAnswer(r.Context(), callerFrom(r.Context()), r.PathValue("id"), app.AnswerInput{
		QuestionID:    req.QuestionID,
		AnswerText:    req.AnswerText,
		AnswerOptions: req.AnswerOptions,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *Handler) finishAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.svc.Attempts.FinishAttempt(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) getAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.svc.Attempts.GetAttempts(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(attempts))
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.svc.Analytics.GetProgress(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) getResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.Analytics.GetResultsWithScores(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(results))
}

func (h *Handler) getSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Analytics.GetSummary(r.Context(), callerFrom(r.Context()), r.PathValue("id"), r.PathValue("sectionId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(summary))
}

func (h *Handler) getAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.svc.Analytics.GetComprehensiveAnalytics(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (h *Handler) calculateScore(w http.ResponseWriter, r *http.Request) {
	score, err := h.svc.Scores.CalculateAndStoreScore(r.Context(), callerFrom(r.Context()),
		r.PathValue("id"), r.PathValue("participantId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (h *Handler) updatePresence(w http.ResponseWriter, r *http.Request) {
	var req presenceRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	presence, err := h.svc.Presence.UpdatePresence(r.Context(), r.PathValue("id"), callerFrom(r.Context()).UserID, req.Data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presence)
}

func (h *Handler) heartbeat(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Presence.Heartbeat(r.Context(), r.PathValue("id"), callerFrom(r.Context()).UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPresence(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Presence.ListPresence(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(list))
}
