package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atelier-studio/atelier/pkg/types"
)

const (
	TaskTypeStudioJob = "studio:background"

	StudioQueueName = "studio"

	// A job writes exactly one assistant message, so asynq never retries it;
	// vendor retries happen inside the job.
	StudioMaxRetries = 0
	StudioJobTimeout = 45 * time.Minute
)

// StudioQueue hands background productions to the process workers.
type StudioQueue struct {
	client    *asynq.Client
	keyPrefix string
}

func NewStudioQueueWithClient(keyPrefix string, client *asynq.Client) *StudioQueue {
	if keyPrefix == "" {
		keyPrefix = "atelier"
	}
	return &StudioQueue{
		keyPrefix: keyPrefix,
		client:    client,
	}
}

// RedisConnOpt builds the asynq connection options shared by client and server.
func RedisConnOpt(addr, password string, db int, cluster bool, clusterAddrs []string) asynq.RedisConnOpt {
	if cluster {
		return asynq.RedisClusterClientOpt{
			Addrs:    clusterAddrs,
			Password: password,
		}
	}
	return asynq.RedisClientOpt{
		Network:  "tcp",
		Addr:     addr,
		Password: password,
		DB:       db,
	}
}

func NewJobTask(job types.BackgroundJob) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}
	return asynq.NewTask(TaskTypeStudioJob, payload,
		asynq.MaxRetry(StudioMaxRetries),
		asynq.Timeout(StudioJobTimeout),
		asynq.TaskID(job.ID),
		asynq.Queue(StudioQueueName),
	), nil
}

func DecodeJob(task *asynq.Task) (types.BackgroundJob, error) {
	var job types.BackgroundJob
	if task.Type() != TaskTypeStudioJob {
		return job, fmt.Errorf("unexpected task type %s", task.Type())
	}
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return job, err
	}
	return job, nil
}

func (q *StudioQueue) Enqueue(ctx context.Context, job types.BackgroundJob) error {
	task, err := NewJobTask(job)
	if err != nil {
		return err
	}
	if _, err = q.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue studio job: %w", err)
	}

	slog.Info("studio job enqueued",
		slog.String("job_id", job.ID),
		slog.String("kind", job.Kind),
		slog.String("session_id", job.SessionID))
	return nil
}

func (q *StudioQueue) Shutdown() {
	if q.client == nil {
		return
	}
	if err := q.client.Close(); err != nil {
		slog.Error("Failed to close studio queue client", slog.String("error", err.Error()))
	}
}
