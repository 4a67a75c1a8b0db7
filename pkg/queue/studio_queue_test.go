package queue

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/testutils"
	"github.com/atelier-studio/atelier/pkg/types"
)

func TestJobTaskRoundTrip(t *testing.T) {
	job := types.BackgroundJob{
		ID:        "job-1",
		Kind:      types.JOB_VIDEO,
		SessionID: "s1",
		UserID:    "u1",
		Payload:   json.RawMessage(`{"prompt":"sunset"}`),
	}
	task, err := NewJobTask(job)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeStudioJob, task.Type())

	got, err := DecodeJob(task)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.JSONEq(t, `{"prompt":"sunset"}`, string(got.Payload))

	_, err = DecodeJob(asynq.NewTask("other", nil))
	assert.Error(t, err)
}

func TestEnqueueAgainstRedis(t *testing.T) {
	addr := testutils.RequireEnv(t, "ATELIER_TEST_REDIS_ADDR")

	opt := RedisConnOpt(addr, os.Getenv("ATELIER_TEST_REDIS_PASSWORD"), 1, false, nil)
	client := asynq.NewClient(opt)
	q := NewStudioQueueWithClient("", client)
	defer q.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job := types.BackgroundJob{ID: "job-" + time.Now().Format("150405.000"), Kind: types.JOB_VIDEO, SessionID: "s1"}
	require.NoError(t, q.Enqueue(ctx, job))

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()
	info, err := inspector.GetTaskInfo(StudioQueueName, job.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeStudioJob, info.Type)
	_ = inspector.DeleteTask(StudioQueueName, job.ID)
}
