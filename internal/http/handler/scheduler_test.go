package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotaforge/scheduler/internal/domain"
	"github.com/rotaforge/scheduler/internal/engine"
)

// stubRunner implements Runner with canned responses.
type stubRunner struct {
	summary *domain.RunSummary
	runErr  error
	running bool
	session *domain.RunSession
	gotOpts engine.RunOptions
}

func (s *stubRunner) Run(ctx context.Context, opts engine.RunOptions) (*domain.RunSummary, error) {
	s.gotOpts = opts
	if s.runErr != nil {
		return nil, s.runErr
	}
	return s.summary, nil
}

func (s *stubRunner) IsRunning() bool { return s.running }

func (s *stubRunner) ActiveSession(ctx context.Context) (*domain.RunSession, error) {
	return s.session, nil
}

type stubLister struct {
	runs     []domain.RunSummary
	err      error
	gotLimit int
}

func (s *stubLister) ListRecentRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	s.gotLimit = limit
	return s.runs, s.err
}

func completedSummary() *domain.RunSummary {
	done := time.Date(2026, time.March, 2, 4, 0, 9, 0, time.UTC)
	return &domain.RunSummary{
		RunID:           "0195f9e2-8d2c-7a31-b4ef-3a56cc9d1e20",
		Status:          domain.RunStatusCompleted,
		StartedAt:       time.Date(2026, time.March, 2, 4, 0, 0, 0, time.UTC),
		CompletedAt:     &done,
		DurationSec:     9.0,
		WeeklyTemplates: 4,
		Created:         17,
		Duplicates:      3,
	}
}

func TestStatus_NotRunning(t *testing.T) {
	srv := NewServer(&stubRunner{}, &stubLister{}, "1.4.0", time.UTC)
	srv.clock = func() time.Time {
		return time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	}

	w := httptest.NewRecorder()
	srv.Status(w, httptest.NewRequest(http.MethodGet, "/scheduler/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "healthy", got.Status)
	assert.False(t, got.IsRunning)
	assert.Equal(t, "1.4.0", got.Version)
	assert.Equal(t, time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC), got.Timestamp)
}

func TestStatus_SessionHeldElsewhereReportsRunning(t *testing.T) {
	runner := &stubRunner{session: &domain.RunSession{JobName: "shift-scheduler", RunID: "other"}}
	srv := NewServer(runner, &stubLister{}, "1.4.0", time.UTC)

	w := httptest.NewRecorder()
	srv.Status(w, httptest.NewRequest(http.MethodGet, "/scheduler/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "healthy", got.Status)
	assert.True(t, got.IsRunning)
}

func TestTriggerRun_ReturnsSummary(t *testing.T) {
	runner := &stubRunner{summary: completedSummary()}
	srv := NewServer(runner, &stubLister{}, "1.4.0", time.UTC)

	req := httptest.NewRequest(http.MethodPost, "/scheduler/run", nil)
	w := httptest.NewRecorder()
	srv.TriggerRun(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got runSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "0195f9e2-8d2c-7a31-b4ef-3a56cc9d1e20", got.RunID)
	assert.Equal(t, "Completed", got.Status)
	assert.Equal(t, 17, got.Created)
	assert.Zero(t, runner.gotOpts, "empty body means no narrowing")
}

func TestTriggerRun_ForwardsNarrowing(t *testing.T) {
	runner := &stubRunner{summary: completedSummary()}
	srv := NewServer(runner, &stubLister{}, "1.4.0", time.UTC)

	body := `{"company_id":12,"template_id":400,"advance_days":14,"monthly_months_ahead":1,"reset":true,"base_date":"2026-03-02"}`
	req := httptest.NewRequest(http.MethodPost, "/scheduler/run", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.TriggerRun(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, engine.RunOptions{
		BaseTime:    time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		CompanyID:   12,
		TemplateID:  400,
		AdvanceDays: 14,
		MonthsAhead: 1,
		Reset:       true,
	}, runner.gotOpts)
}

func TestTriggerRun_BaseDateInSessionZone(t *testing.T) {
	runner := &stubRunner{summary: completedSummary()}
	srv := NewServer(runner, &stubLister{}, "1.4.0", time.FixedZone("EST", -5*3600))

	body := `{"base_date":"2026-03-02"}`
	req := httptest.NewRequest(http.MethodPost, "/scheduler/run", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.TriggerRun(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	// Midnight Eastern, not midnight UTC.
	assert.Equal(t, time.Date(2026, time.March, 2, 5, 0, 0, 0, time.UTC), runner.gotOpts.BaseTime.UTC())
}

func TestTriggerRun_InvalidJSON(t *testing.T) {
	srv := NewServer(&stubRunner{}, &stubLister{}, "1.4.0", time.UTC)

	req := httptest.NewRequest(http.MethodPost, "/scheduler/run", bytes.NewReader([]byte(`{`)))
	w := httptest.NewRecorder()
	srv.TriggerRun(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerRun_BadBaseDate(t *testing.T) {
	srv := NewServer(&stubRunner{}, &stubLister{}, "1.4.0", time.UTC)

	req := httptest.NewRequest(http.MethodPost, "/scheduler/run", bytes.NewReader([]byte(`{"base_date":"03/02/2026"}`)))
	w := httptest.NewRecorder()
	srv.TriggerRun(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "base_date")
}

func TestTriggerRun_ActiveRunConflicts(t *testing.T) {
	runner := &stubRunner{runErr: domain.ErrRunActive}
	srv := NewServer(runner, &stubLister{}, "1.4.0", time.UTC)

	req := httptest.NewRequest(http.MethodPost, "/scheduler/run", nil)
	w := httptest.NewRecorder()
	srv.TriggerRun(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CONFLICT")
}

func TestTriggerRun_ClientDisconnectReports499(t *testing.T) {
	runner := &stubRunner{runErr: context.Canceled}
	srv := NewServer(runner, &stubLister{}, "1.4.0", time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/scheduler/run", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	srv.TriggerRun(w, req)

	assert.Equal(t, 499, w.Code)
}

func TestTriggerRun_CancelWithLiveRequestIs500(t *testing.T) {
	// Cancellation that did not come from the client maps to 500.
	runner := &stubRunner{runErr: context.Canceled}
	srv := NewServer(runner, &stubLister{}, "1.4.0", time.UTC)

	req := httptest.NewRequest(http.MethodPost, "/scheduler/run", nil)
	w := httptest.NewRecorder()
	srv.TriggerRun(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestListRuns(t *testing.T) {
	lister := &stubLister{runs: []domain.RunSummary{*completedSummary()}}
	srv := NewServer(&stubRunner{}, lister, "1.4.0", time.UTC)

	req := httptest.NewRequest(http.MethodGet, "/scheduler/runs?limit=5", nil)
	w := httptest.NewRecorder()
	srv.ListRuns(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, lister.gotLimit)
	var got listRunsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Runs, 1)
	assert.Equal(t, "Completed", got.Runs[0].Status)
}

func TestListRuns_LimitValidation(t *testing.T) {
	srv := NewServer(&stubRunner{}, &stubLister{}, "1.4.0", time.UTC)

	for _, raw := range []string{"0", "101", "abc", "-3"} {
		req := httptest.NewRequest(http.MethodGet, "/scheduler/runs?limit="+raw, nil)
		w := httptest.NewRecorder()
		srv.ListRuns(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", raw)
	}
}

func TestListRuns_EmptyHistory(t *testing.T) {
	srv := NewServer(&stubRunner{}, &stubLister{}, "1.4.0", time.UTC)

	req := httptest.NewRequest(http.MethodGet, "/scheduler/runs", nil)
	w := httptest.NewRecorder()
	srv.ListRuns(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"runs":[]}`, w.Body.String())
}
