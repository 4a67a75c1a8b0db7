package v1

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/atelier-studio/atelier/pkg/errors"
	"github.com/atelier-studio/atelier/pkg/i18n"
	"github.com/atelier-studio/atelier/pkg/safe"
	"github.com/atelier-studio/atelier/pkg/types"
)

// ProgressFunc reports the progress of a running job to its session.
type ProgressFunc func(fraction float64, message string, details any)

// JobExecutor runs one job kind. The outcome message becomes the assistant
// message posted to the session.
type JobExecutor func(sc *types.StudioContext, job types.BackgroundJob, progress ProgressFunc) (*types.JobOutcome, error)

// BackgroundRunner owns every in-flight production. Jobs run to completion;
// there is no cancellation.
type BackgroundRunner struct {
	studio  *Studio
	execs   map[string]JobExecutor
	running cmap.ConcurrentMap[string, types.BackgroundJob]
	wg      sync.WaitGroup
}

func NewBackgroundRunner(s *Studio) *BackgroundRunner {
	return &BackgroundRunner{
		studio:  s,
		execs:   map[string]JobExecutor{},
		running: cmap.New[types.BackgroundJob](),
	}
}

// Register must be called before the first Submit.
func (r *BackgroundRunner) Register(kind string, exec JobExecutor) {
	r.execs[kind] = exec
}

func (r *BackgroundRunner) Kinds() []string {
	kinds := make([]string, 0, len(r.execs))
	for k := range r.execs {
		kinds = append(kinds, k)
	}
	return kinds
}

func NewBackgroundJob(sc *types.StudioContext, kind string, payload any) (types.BackgroundJob, error) {
	raw, err := jsonRaw(payload)
	if err != nil {
		return types.BackgroundJob{}, err
	}
	return types.BackgroundJob{
		ID:        uuid.NewString(),
		Kind:      kind,
		SessionID: sc.SessionID,
		UserID:    sc.UserID,
		Lang:      sc.Lang,
		Payload:   raw,
		CreatedAt: time.Now().Unix(),
	}, nil
}

// Submit returns as soon as the job is handed off, either to the durable queue
// or to a tracked goroutine of this process.
func (r *BackgroundRunner) Submit(ctx context.Context, job types.BackgroundJob) error {
	if _, ok := r.execs[job.Kind]; !ok {
		return fmt.Errorf("unknown background job kind %q", job.Kind)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt == 0 {
		job.CreatedAt = time.Now().Unix()
	}

	if q := r.studio.core.Queue(); q != nil {
		if err := q.Enqueue(ctx, job); err != nil {
			return errors.New("BackgroundRunner.Submit.Queue.Enqueue", i18n.ERROR_INTERNAL, err)
		}
		return nil
	}

	r.running.Set(job.ID, job)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Remove(job.ID)
		r.Run(context.Background(), job)
	}()
	return nil
}

// Run executes the job in the calling goroutine and reports its outcome. It
// is also the entry point of the durable queue consumer.
func (r *BackgroundRunner) Run(ctx context.Context, job types.BackgroundJob) {
	exec, ok := r.execs[job.Kind]
	if !ok {
		slog.Error("no executor for background job", slog.String("kind", job.Kind), slog.String("job_id", job.ID))
		return
	}

	metrics := r.studio.core.Metrics()
	metrics.BackgroundJobStarted(job.Kind)
	defer metrics.BackgroundJobFinished(job.Kind)

	lang := job.Lang
	if lang == "" {
		lang = i18n.DEFAULT_LANG
	}
	sc := types.NewStudioContext(WithUser(ctx, job.UserID, lang), job.UserID, job.SessionID, lang)
	bus := r.studio.bus
	progress := func(fraction float64, message string, details any) {
		bus.SendProgress(sc, job.SessionID, job.Kind, fraction, message, details)
	}

	var outcome *types.JobOutcome
	err := safe.Call(func() error {
		var err error
		outcome, err = exec(sc, job, progress)
		return err
	}, "background."+job.Kind)

	// the request that started the job is gone; every write below opens its own scope
	scope := context.WithoutCancel(sc)
	msgs := NewMessageLogic(scope, r.studio.core)

	if err != nil {
		var text string
		var panicked *safe.PanicError
		if errors.As(err, &panicked) {
			text = r.studio.localizer.Get(lang, i18n.MESSAGE_BACKGROUND_CRASHED)
		} else {
			text = r.studio.localizer.GetWithData(lang, i18n.MESSAGE_BACKGROUND_FAILED, map[string]any{
				"Task":  job.Kind,
				"Error": err.Error(),
			})
		}
		slog.Error("background job failed", slog.String("job_id", job.ID), slog.String("kind", job.Kind),
			slog.String("session_id", job.SessionID), slog.Any("error", err), slog.String("component", "background"))
		if _, werr := msgs.AppendAssistant(job.SessionID, job.UserID, text, types.MessageMeta{TaskType: job.Kind, IsError: true}); werr != nil {
			slog.Error("failed to write background failure message", slog.String("job_id", job.ID), slog.Any("error", werr))
		}
		bus.SendError(scope, job.SessionID, job.Kind, text)
		return
	}

	if outcome == nil {
		outcome = &types.JobOutcome{}
	}
	meta := types.MessageMeta{TaskType: job.Kind}
	if res := outcome.Result; res != nil {
		if res.AssetURL != "" {
			meta.GeneratedURLs = append(meta.GeneratedURLs, res.AssetURL)
		}
		if res.AssetID != "" {
			meta.AssetIDs = append(meta.AssetIDs, res.AssetID)
		}
	}
	if _, werr := msgs.AppendAssistant(job.SessionID, job.UserID, outcome.Message, meta); werr != nil {
		slog.Error("failed to write background result message", slog.String("job_id", job.ID), slog.Any("error", werr))
	}
	bus.SendComplete(scope, job.SessionID, job.Kind, outcome.Result)
	slog.Info("background job finished", slog.String("job_id", job.ID), slog.String("kind", job.Kind), slog.String("session_id", job.SessionID))
}

// Running returns the jobs currently executing in this process.
func (r *BackgroundRunner) Running() []types.BackgroundJob {
	var res []types.BackgroundJob
	for _, item := range r.running.Items() {
		res = append(res, item)
	}
	return res
}

// Wait blocks until every in-process job has finished or ctx is done.
func (r *BackgroundRunner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
