package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/chandumcs/opstracker/internal/jobs"
	"github.com/chandumcs/opstracker/internal/shared"
)

type fakeAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
	err  error
}

func (f *fakeAudit) Record(ctx context.Context, log shared.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.logs = append(f.logs, log)
	return nil
}

type fakeIdleMarker struct {
	got   time.Duration
	count int64
	err   error
}

func (f *fakeIdleMarker) MarkIdleOffline(ctx context.Context, idleFor time.Duration) (int64, error) {
	f.got = idleFor
	return f.count, f.err
}

func TestHandoverPublishedWritesAudit(t *testing.T) {
	audit := &fakeAudit{}
	job := NewHandoverPublishedJob(audit, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	savedAt := time.Date(2025, 2, 1, 6, 0, 0, 0, time.UTC)

	task, err := NewHandoverPublishedTask(HandoverPublishedPayload{
		HandoverID: 12, Name: "Night", ShiftFrom: "22:00", ShiftTo: "06:00", Points: 2, CreatedBy: 4, SavedAt: savedAt,
	})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, audit.logs, 1)
	entry := audit.logs[0]
	assert.Equal(t, "handover.published", entry.Action)
	assert.Equal(t, "shift_handover", entry.Entity)
	assert.Equal(t, "12", entry.EntityID)
	assert.Equal(t, int64(4), entry.ActorID)
	assert.Equal(t, savedAt, entry.At)
}

func TestHandoverPublishedSkipsBadPayload(t *testing.T) {
	job := NewHandoverPublishedJob(&fakeAudit{}, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskHandoverPublished, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskHandoverPublished, []byte(`{"handoverId":0}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandoverPublishedCountsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	job := NewHandoverPublishedJob(&fakeAudit{err: errors.New("db down")}, nil, metrics)
	task, err := NewHandoverPublishedTask(HandoverPublishedPayload{HandoverID: 1})
	require.NoError(t, err)

	require.Error(t, job.Handle(context.Background(), task))

	count, err := testutil.GatherAndCount(reg, "tracker_jobs_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIdleLogoutUsesConfiguredWindow(t *testing.T) {
	marker := &fakeIdleMarker{count: 3}
	job := NewIdleLogoutJob(marker, 2*time.Hour, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewIdleLogoutTask(0)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 2*time.Hour, marker.got)
}

func TestIdleLogoutPayloadOverridesWindow(t *testing.T) {
	marker := &fakeIdleMarker{}
	job := NewIdleLogoutJob(marker, 2*time.Hour, nil, nil)
	task, err := NewIdleLogoutTask(30 * time.Minute)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 30*time.Minute, marker.got)
}

func TestIdleLogoutWithoutWindowIsSkipped(t *testing.T) {
	job := NewIdleLogoutJob(&fakeIdleMarker{}, 0, nil, nil)
	task, err := NewIdleLogoutTask(0)
	require.NoError(t, err)

	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestIdleLogoutRejectsOversizedWindow(t *testing.T) {
	marker := &fakeIdleMarker{}
	job := NewIdleLogoutJob(marker, 2*time.Hour, nil, nil)

	for _, seconds := range []int64{int64(MaxIdleWindow/time.Second) + 1, 1 << 62} {
		data, err := json.Marshal(IdleLogoutPayload{IdleForSeconds: seconds})
		require.NoError(t, err)
		err = job.Handle(context.Background(), asynq.NewTask(TaskUsersIdleLogout, data))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	}
	assert.Zero(t, marker.got, "the sweep must not run")

	data, err := json.Marshal(IdleLogoutPayload{IdleForSeconds: int64(MaxIdleWindow / time.Second)})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskUsersIdleLogout, data)))
	assert.Equal(t, MaxIdleWindow, marker.got)
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	assert.Error(t, err)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestHealthHandler(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   int
	}{
		{name: "no inspector", inspector: nil, status: http.StatusOK},
		{name: "queue info", inspector: fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4}}, status: http.StatusOK, pending: 4},
		{name: "missing queue", inspector: fakeInspector{err: asynq.ErrQueueNotFound}, status: http.StatusOK},
		{name: "broken", inspector: fakeInspector{err: errors.New("redis down")}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspector, nil).MountRoutes(r)
			res := httptest.NewRecorder()
			r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, tc.status, res.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body queueHealth
			require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
			assert.Equal(t, QueueDefault, body.Queue)
			assert.Equal(t, tc.pending, body.Pending)
		})
	}
}
