package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/models"
	"github.com/nikhilbhutani/revisionrag/internal/usage"
)

// UsageReader is the read side of the usage log.
type UsageReader interface {
	GetUsageSummary(ctx context.Context, userID string, startDate, endDate *time.Time) ([]usage.Summary, error)
	Recent(ctx context.Context, userID string, limit int) ([]models.LLMUsageLog, error)
}

type UsageHandler struct {
	usage UsageReader
}

func NewUsageHandler(u UsageReader) *UsageHandler {
	return &UsageHandler{usage: u}
}

// Usage returns the caller's token totals per provider and model, plus the
// most recent calls when recent=N is given.
func (h *UsageHandler) Usage(w http.ResponseWriter, r *http.Request) {
	owner, ok := userID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	var startDate, endDate *time.Time
	for name, dst := range map[string]**time.Time{"start_date": &startDate, "end_date": &endDate} {
		s := q.Get(name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, r, apperr.Validation(name, "must be an RFC 3339 timestamp"))
			return
		}
		*dst = &t
	}

	summary, err := h.usage.GetUsageSummary(r.Context(), owner, startDate, endDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := map[string]interface{}{"usage": summary}

	if n, _ := strconv.Atoi(q.Get("recent")); n > 0 {
		recent, err := h.usage.Recent(r.Context(), owner, n)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if recent == nil {
			recent = []models.LLMUsageLog{}
		}
		resp["recent"] = recent
	}

	writeJSON(w, http.StatusOK, resp)
}
