package http

import (
	"net/http"

	"evaly-service/internal/app"
	"evaly-service/internal/domain"
)

type questionRequest struct {
	ReferenceID          string          `json:"referenceId" validate:"required"`
	Type                 string          `json:"type" validate:"required"`
	Question             string          `json:"question" validate:"max=10000"`
	Options              []domain.Option `json:"options" validate:"omitempty,max=50"`
	AllowMultipleAnswers bool            `json:"allowMultipleAnswers"`
	PointValue           *int            `json:"pointValue" validate:"omitempty,min=0"`
}

func (req questionRequest) input() app.QuestionInput {
	return app.QuestionInput{
		ReferenceID:          req.ReferenceID,
		Type:                 domain.QuestionType(req.Type),
		Question:             req.Question,
		Options:              req.Options,
		AllowMultipleAnswers: req.AllowMultipleAnswers,
		PointValue:           req.PointValue,
	}
}

type questionPatchRequest struct {
	Type                 *string          `json:"type"`
	Question             *string          `json:"question" validate:"omitempty,max=10000"`
	Options              *[]domain.Option `json:"options"`
	AllowMultipleAnswers *bool            `json:"allowMultipleAnswers"`
	PointValue           *int             `json:"pointValue" validate:"omitempty,min=0"`
}

type bankRequest struct {
	Title string `json:"title" validate:"max=200"`
}

// bankQuestionRequest is a questionRequest whose reference comes from the URL.
type bankQuestionRequest struct {
	Type                 string          `json:"type" validate:"required"`
	Question             string          `json:"question" validate:"max=10000"`
	Options              []domain.Option `json:"options" validate:"omitempty,max=50"`
	AllowMultipleAnswers bool            `json:"allowMultipleAnswers"`
	PointValue           *int            `json:"pointValue" validate:"omitempty,min=0"`
}

type duplicateRequest struct {
	QuestionIDs []string `json:"questionIds"`
	SectionID   string   `json:"sectionId" validate:"required"`
}

func (h *Handler) createQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	question, err := h.svc.Questions.Create(r.Context(), callerFrom(r.Context()), req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, question)
}

func (h *Handler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionPatchRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	patch := app.QuestionPatch{
		Question:             req.Question,
		Options:              req.Options,
		AllowMultipleAnswers: req.AllowMultipleAnswers,
		PointValue:           req.PointValue,
	}
	if req.Type != nil {
		t := domain.QuestionType(*req.Type)
		patch.Type = &t
	}
	question, err := h.svc.Questions.Update(r.Context(), callerFrom(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (h *Handler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Questions.Delete(r.Context(), callerFrom(r.Context()), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.svc.Questions.GetByReference(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(questions))
}

func (h *Handler) createBank(w http.ResponseWriter, r *http.Request) {
	var req bankRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	bank, err := h.svc.QuestionBanks.Create(r.Context(), callerFrom(r.Context()), req.Title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bank)
}

func (h *Handler) getBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := h.svc.QuestionBanks.GetAll(r.Context(), callerFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(banks))
}

func (h *Handler) getBank(w http.ResponseWriter, r *http.Request) {
	bank, err := h.svc.QuestionBanks.GetByID(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bank)
}

func (h *Handler) updateBank(w http.ResponseWriter, r *http.Request) {
	var req bankRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	bank, err := h.svc.QuestionBanks.Update(r.Context(), callerFrom(r.Context()), r.PathValue("id"), req.Title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bank)
}

func (h *Handler) deleteBank(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.QuestionBanks.DeleteByID(r.Context(), callerFrom(r.Context()), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getBankQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.svc.QuestionBanks.GetQuestions(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(questions))
}

func (h *Handler) addBankQuestion(w http.ResponseWriter, r *http.Request) {
	var req bankQuestionRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	question, err := h.svc.QuestionBanks.AddQuestion(r.Context(), callerFrom(r.Context()), r.PathValue("id"), app.QuestionInput{
		Type:                 domain.QuestionType(req.Type),
		Question:             req.Question,
		Options:              req.Options,
		AllowMultipleAnswers: req.AllowMultipleAnswers,
		PointValue:           req.PointValue,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, question)
}

func (h *Handler) duplicateBankQuestions(w http.ResponseWriter, r *http.Request) {
	var req duplicateRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	questions, err := h.svc.QuestionBanks.DuplicateQuestionsToSection(r.Context(), callerFrom(r.Context()),
		r.PathValue("id"), req.QuestionIDs, req.SectionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, orEmpty(questions))
}
