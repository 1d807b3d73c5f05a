package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"evaly-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func statusOf(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidStartOption),
		errors.As(err, &verrs),
		errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyDeleted),
		errors.Is(err, domain.ErrAlreadyFinished),
		errors.Is(err, domain.ErrTestFinished),
		errors.Is(err, domain.ErrTestNotPublished):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	body := errorBody{Error: err.Error()}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		body.Error = "validation failed"
		body.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			body.Fields[fe.Field()] = fe.Tag()
		}
	}
	if code == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		body.Error = http.StatusText(code)
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

var errBadBody = errors.New("malformed request body")

// decode reads a JSON body into dst and validates it. An empty body leaves dst zero.
func (h *Handler) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return h.validate.Struct(dst)
}

// orEmpty keeps list responses as JSON arrays.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
