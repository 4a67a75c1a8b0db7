package process

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"

	"github.com/atelier-studio/atelier/app/core"
	v1 "github.com/atelier-studio/atelier/app/logic/v1"
	"github.com/atelier-studio/atelier/pkg/queue"
	"github.com/atelier-studio/atelier/pkg/register"
)

// Process runs the periodic maintenance jobs and, in durable mode, consumes
// background productions from the redis queue.
type Process struct {
	cron        *cron.Cron
	studio      *v1.Studio
	asynqServer *asynq.Server
	asynqMux    *asynq.ServeMux
}

type ProcessKey struct{}

func NewProcess(studio *v1.Studio) *Process {
	p := &Process{
		cron:     cron.New(),
		studio:   studio,
		asynqMux: asynq.NewServeMux(),
	}

	cfg := studio.Core().Cfg()
	if cfg.Background.Durable {
		redisOpt := queue.RedisConnOpt(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Cluster, cfg.Redis.ClusterAddrs)
		concurrency := cfg.Background.Concurrency
		if concurrency <= 0 {
			concurrency = 4
		}
		p.asynqServer = asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queue.StudioQueueName: 1,
			},
		})
	}

	for _, h := range register.ResolveFuncHandlers[*Process](ProcessKey{}) {
		h(p)
	}
	return p
}

func (p *Process) Cron() *cron.Cron {
	return p.cron
}

func (p *Process) Core() *core.Core {
	return p.studio.Core()
}

func (p *Process) Studio() *v1.Studio {
	return p.studio
}

func (p *Process) AsynqServerMux() *asynq.ServeMux {
	return p.asynqMux
}

// Durable reports whether this process consumes the background queue.
func (p *Process) Durable() bool {
	return p.asynqServer != nil
}

func (p *Process) Start() {
	p.cron.Start()
	if p.asynqServer != nil {
		go func() {
			if err := p.asynqServer.Run(p.asynqMux); err != nil {
				slog.Error("studio queue consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}
}

func (p *Process) Stop(ctx context.Context) {
	if p.cron != nil {
		<-p.cron.Stop().Done()
	}
	if p.asynqServer != nil {
		p.asynqServer.Shutdown()
	}
	if err := p.studio.Runner().Wait(ctx); err != nil {
		slog.Warn("background jobs still running at shutdown", slog.Int("count", len(p.studio.Runner().Running())))
	}
}
