package process

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/atelier-studio/atelier/pkg/queue"
	"github.com/atelier-studio/atelier/pkg/register"
)

func init() {
	register.RegisterFunc[*Process](ProcessKey{}, func(p *Process) {
		if !p.Durable() {
			return
		}
		p.AsynqServerMux().HandleFunc(queue.TaskTypeStudioJob, func(ctx context.Context, task *asynq.Task) error {
			job, err := queue.DecodeJob(task)
			if err != nil {
				slog.Error("Failed to decode studio job", slog.String("error", err.Error()))
				// a malformed payload never becomes valid
				return asynq.SkipRetry
			}

			slog.Info("Processing studio job",
				slog.String("job_id", job.ID),
				slog.String("kind", job.Kind),
				slog.String("session_id", job.SessionID))

			// Run reports failures to the session itself
			p.Studio().Runner().Run(ctx, job)
			return nil
		})
		slog.Info("Studio job consumer registered")
	})
}
