package http

import (
	"net/http"
	"time"

	"evaly-service/internal/app"
	"evaly-service/internal/domain"
)

type createTestRequest struct {
	Type string `json:"type" validate:"required,oneof=live self-paced"`
}

type updateTestRequest struct {
	Title                 *string `json:"title" validate:"omitempty,max=200"`
	Description           *string `json:"description" validate:"omitempty,max=5000"`
	Access                *string `json:"access" validate:"omitempty,oneof=public private"`
	ShowResultImmediately *bool   `json:"showResultImmediately"`
}

type publishRequest struct {
	StartOption      string     `json:"startOption" validate:"required"`
	ScheduledStartAt *time.Time `json:"scheduledStartAt"`
	ScheduledEndAt   *time.Time `json:"scheduledEndAt"`
}

type scheduleRequest struct {
	ScheduledEndAt *time.Time `json:"scheduledEndAt"`
}

func (h *Handler) createTest(w http.ResponseWriter, r *http.Request) {
	var req createTestRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	test, err := h.svc.Tests.CreateTest(r.Context(), callerFrom(r.Context()), domain.TestType(req.Type))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, test)
}

func (h *Handler) getTests(w http.ResponseWriter, r *http.Request) {
	tests, err := h.svc.Tests.GetTests(r.Context(), callerFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tests))
}

func (h *Handler) getTest(w http.ResponseWriter, r *http.Request) {
	test, err := h.svc.Tests.GetTestByID(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, test)
}

func (h *Handler) updateTest(w http.ResponseWriter, r *http.Request) {
	var req updateTestRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	patch := app.TestPatch{
		Title:                 req.Title,
		Description:           req.Description,
		ShowResultImmediately: req.ShowResultImmediately,
	}
	if req.Access != nil {
		access := domain.TestAccess(*req.Access)
		patch.Access = &access
	}
	test, err := h.svc.Tests.UpdateTest(r.Context(), callerFrom(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, test)
}

func (h *Handler) deleteTest(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Tests.DeleteTest(r.Context(), callerFrom(r.Context()), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) publishTest(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	test, err := h.svc.Tests.PublishTest(r.Context(), callerFrom(r.Context()), r.PathValue("id"), app.PublishInput{
		StartOption:      app.StartOption(req.StartOption),
		ScheduledStartAt: req.ScheduledStartAt,
		ScheduledEndAt:   req.ScheduledEndAt,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, test)
}

func (h *Handler) updateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	test, err := h.svc.Tests.UpdateTestSchedule(r.Context(), callerFrom(r.Context()), r.PathValue("id"), req.ScheduledEndAt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, test)
}

func (h *Handler) stopTest(w http.ResponseWriter, r *http.Request) {
	test, err := h.svc.Tests.StopTest(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, test)
}

func (h *Handler) duplicateTest(w http.ResponseWriter, r *http.Request) {
	test, err := h.svc.Tests.DuplicateTest(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, test)
}

type sectionPatchRequest struct {
	Title         *string `json:"title" validate:"omitempty,max=200"`
	Description   *string `json:"description"`
	Duration      *int    `json:"duration" validate:"omitempty,min=1"`
	ClearDuration bool    `json:"clearDuration"`
}

func (h *Handler) createSection(w http.ResponseWriter, r *http.Request) {
	section, err := h.svc.Sections.Create(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, section)
}

func (h *Handler) getSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.svc.Sections.GetByTestID(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(sections))
}

func (h *Handler) getSection(w http.ResponseWriter, r *http.Request) {
	section, err := h.svc.Sections.GetByID(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, section)
}

func (h *Handler) updateSection(w http.ResponseWriter, r *http.Request) {
	var req sectionPatchRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	section, err := h.svc.Sections.Update(r.Context(), callerFrom(r.Context()), r.PathValue("id"), app.SectionPatch{
		Title:         req.Title,
		Description:   req.Description,
		Duration:      req.Duration,
		ClearDuration: req.ClearDuration,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, section)
}

func (h *Handler) removeSection(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Sections.Remove(r.Context(), callerFrom(r.Context()), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
