package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/errors"
	auditsvc "github.com/sentinelops/anomaly-sentinel/internal/service/audit"
	"github.com/sentinelops/anomaly-sentinel/internal/service/detection"
)

type stubDetector struct {
	result *detection.CycleResult
	err    error
}

func (s *stubDetector) RunCycle(context.Context) (*detection.CycleResult, error) {
	return s.result, s.err
}

type memoryBlobStore struct {
	data []byte
}

func (m *memoryBlobStore) Load(context.Context) ([]byte, error) { return m.data, nil }
func (m *memoryBlobStore) Store(_ context.Context, data []byte) error {
	m.data = append([]byte(nil), data...)
	return nil
}

func newTestHandler(t *testing.T, detector detection.Service) *Handler {
	t.Helper()
	ledger, err := auditsvc.NewService(context.Background(), &memoryBlobStore{}, nil)
	require.NoError(t, err)
	return &Handler{
		detector: detector,
		ledger:   ledger,
		logger:   slog.Default(),
	}
}

func TestHandleRunCycle(t *testing.T) {
	event := anomaly.NewEvent(anomaly.EventInventory, map[string]string{"product_id": "1"}).
		WithMessage("Inventory anomaly", "stockout")
	detector := &stubDetector{result: &detection.CycleResult{
		CycleID: uuid.New(),
		Events:  []*anomaly.Event{event},
	}}
	handler := newTestHandler(t, detector)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cycles/run", nil)
	rec := httptest.NewRecorder()
	handler.handleRunCycle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload detection.CycleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Events, 1)
	assert.Equal(t, anomaly.EventInventory, payload.Events[0].Type)
}

func TestHandleRunCycle_SinkErrorSurfaces(t *testing.T) {
	detector := &stubDetector{err: errors.NewSinkWriteError(assert.AnError)}
	handler := newTestHandler(t, detector)

	rec := httptest.NewRecorder()
	handler.handleRunCycle(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cycles/run", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleAuditVerifyAndRecent(t *testing.T) {
	handler := newTestHandler(t, &stubDetector{result: &detection.CycleResult{}})
	_, err := handler.ledger.Append(context.Background(),
		map[string]any{"rows": 1}, map[string]any{}, map[string]any{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.handleAuditVerify(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audit/verify", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":true`)

	rec = httptest.NewRecorder()
	handler.handleAuditRecent(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audit/recent?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cycle_")
}

func TestHandleAuditRecent_RejectsBadLimit(t *testing.T) {
	handler := newTestHandler(t, &stubDetector{})

	rec := httptest.NewRecorder()
	handler.handleAuditRecent(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audit/recent?limit=zero", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAuditSearch_TimeFilterValidation(t *testing.T) {
	handler := newTestHandler(t, &stubDetector{})

	rec := httptest.NewRecorder()
	handler.handleAuditSearch(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audit/blocks?start=yesterday", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
