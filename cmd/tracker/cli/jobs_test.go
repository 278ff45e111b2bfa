package cli

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandumcs/opstracker/jobs"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (r *recordingEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: "1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestTriggerIdleLogout(t *testing.T) {
	enq := &recordingEnqueuer{}
	c := NewJobsCLIWith(enq, nil)

	info, err := c.Trigger(context.Background(), jobs.TaskUsersIdleLogout, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskUsersIdleLogout, info.Type)

	require.Len(t, enq.tasks, 1)
	var payload jobs.IdleLogoutPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, int64(7200), payload.IdleForSeconds)
}

func TestTriggerUnknownJob(t *testing.T) {
	c := NewJobsCLIWith(&recordingEnqueuer{}, nil)

	_, err := c.Trigger(context.Background(), "reports:nightly", 0)
	assert.ErrorContains(t, err, "unsupported job")
}

func TestInspectQueue(t *testing.T) {
	c := NewJobsCLIWith(nil, stubInspector{info: &asynq.QueueInfo{Pending: 3, Active: 1, Scheduled: 2, Retry: 4}})

	stats, err := c.InspectQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 3, Active: 1, Scheduled: 2, Retry: 4}, stats)
}

func TestInspectQueueMissingQueueIsEmpty(t *testing.T) {
	c := NewJobsCLIWith(nil, stubInspector{err: asynq.ErrQueueNotFound})

	stats, err := c.InspectQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)

	c = NewJobsCLIWith(nil, stubInspector{err: errors.New("redis down")})
	_, err = c.InspectQueue(context.Background())
	assert.Error(t, err)
}
