package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
)

// envelope wraps every JSON response body.
type envelope struct {
	Content    any         `json:"content"`
	Message    string      `json:"message"`
	Status     int         `json:"status"`
	Pagination *pagination `json:"pagination,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Error      string      `json:"error,omitempty"`
}

type pagination struct {
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
}

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeContent sends a successful envelope.
func writeContent(w http.ResponseWriter, status int, message string, content any) {
	writeJSON(w, status, envelope{
		Content:   content,
		Message:   message,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}

// writePage sends one page of results with pagination metadata.
func writePage[T, R any](w http.ResponseWriter, page domain.Page[T], convert func(T) R) {
	items := make([]R, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, convert(item))
	}
	writeJSON(w, http.StatusOK, envelope{
		Content: items,
		Message: "ok",
		Status:  http.StatusOK,
		Pagination: &pagination{
			Page:          page.Number,
			Size:          page.Size,
			TotalElements: page.Total,
			TotalPages:    page.TotalPages(),
		},
		Timestamp: time.Now().UTC(),
	})
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{
		Message:   msg,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Error:     http.StatusText(status),
	})
}

// statusFor maps an error kind onto an HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateAllocation):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotPermitted), errors.Is(err, domain.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders a service error, hiding internal failures.
func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		r.logger.Error("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}
