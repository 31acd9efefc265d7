package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	domainerrors "github.com/sentinelops/anomaly-sentinel/internal/domain/errors"
	auditsvc "github.com/sentinelops/anomaly-sentinel/internal/service/audit"
)

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "healthy"}
	code := http.StatusOK
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			status = map[string]string{"status": "unhealthy", "error": err.Error()}
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}

// handleRunCycle triggers one detection cycle and returns the produced
// events.
func (h *Handler) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	result, err := h.detector.RunCycle(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAuditVerify(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeError(w, domainerrors.NewNotFoundError("audit ledger"))
		return
	}
	result, err := h.ledger.Verify(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAuditSearch(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeError(w, domainerrors.NewNotFoundError("audit ledger"))
		return
	}

	filters := auditsvc.Filters{
		CycleID:      r.URL.Query().Get("cycle_id"),
		ContainsText: r.URL.Query().Get("q"),
	}
	var err error
	if filters.Start, err = parseTimeParam(r, "start"); err != nil {
		writeError(w, domainerrors.NewValidationError("INVALID_START", "start must be RFC3339"))
		return
	}
	if filters.End, err = parseTimeParam(r, "end"); err != nil {
		writeError(w, domainerrors.NewValidationError("INVALID_END", "end must be RFC3339"))
		return
	}

	blocks, err := h.ledger.Search(r.Context(), filters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks, "count": len(blocks)})
}

func (h *Handler) handleAuditCycle(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeError(w, domainerrors.NewNotFoundError("audit ledger"))
		return
	}
	block, err := h.ledger.Cycle(r.PathValue("cycle_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (h *Handler) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeError(w, domainerrors.NewNotFoundError("audit ledger"))
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, domainerrors.NewValidationError("INVALID_LIMIT", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": h.ledger.Recent(limit)})
}

func (h *Handler) handleAuditReport(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeError(w, domainerrors.NewNotFoundError("audit ledger"))
		return
	}
	start, err := parseTimeParam(r, "start")
	if err != nil {
		writeError(w, domainerrors.NewValidationError("INVALID_START", "start must be RFC3339"))
		return
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		writeError(w, domainerrors.NewValidationError("INVALID_END", "end must be RFC3339"))
		return
	}

	report, err := h.ledger.GenerateReport(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, domainerrors.GetStatusCode(err), map[string]any{"error": appErr})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
