package process

import (
	"context"
	"log/slog"
	"time"

	v1 "github.com/atelier-studio/atelier/app/logic/v1"
	"github.com/atelier-studio/atelier/pkg/register"
)

const trashPurgeBatch = 500

func init() {
	register.RegisterFunc(ProcessKey{}, func(provider *Process) {
		provider.Cron().AddFunc("*/15 * * * *", func() {
			n, err := PurgeTrash(context.Background(), provider, time.Now())
			if err != nil {
				slog.Error("Failed to purge expired trash", slog.String("error", err.Error()))
			} else if n > 0 {
				slog.Info("Purged expired trash", slog.Int("count", n))
			}
		})

		provider.Cron().AddFunc("@every 30m", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Minute)
			defer cancel()
			n, err := provider.Studio().SummarizeIdleSessions(ctx, time.Now())
			if err != nil {
				slog.Error("Failed to summarize idle sessions", slog.String("error", err.Error()))
			} else if n > 0 {
				slog.Info("Summarized idle sessions", slog.Int("count", n))
			}
		})
	})
}

// PurgeTrash drains expired trash in batches until a batch comes back short.
func PurgeTrash(ctx context.Context, p *Process, now time.Time) (int, error) {
	total := 0
	for {
		n, err := v1.PurgeExpired(ctx, p.Core(), now, trashPurgeBatch)
		total += n
		if err != nil || n < trashPurgeBatch {
			return total, err
		}
	}
}
