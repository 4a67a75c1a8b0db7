package v1

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/app/store"
	"github.com/atelier-studio/atelier/pkg/errors"
	"github.com/atelier-studio/atelier/pkg/i18n"
	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/utils"
)

type PlanningLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewPlanningLogic(ctx context.Context, core *core.Core) *PlanningLogic {
	return &PlanningLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx),
	}
}

// CreateRoadmap stores the goal with its ordered steps and starts the first one.
func (l *PlanningLogic) CreateRoadmap(sessionID, goal string, steps []string) (*types.RoadmapProgress, error) {
	steps = lo.Filter(steps, func(s string, _ int) bool { return strings.TrimSpace(s) != "" })
	if strings.TrimSpace(goal) == "" || len(steps) == 0 {
		return nil, errors.New("PlanningLogic.CreateRoadmap.args", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	now := time.Now().Unix()
	roadmap := types.Task{
		ID:        utils.GenUniqIDStr(),
		SessionID: sessionID,
		UserID:    l.GetUserID(),
		Type:      types.TASK_TYPE_ROADMAP,
		Status:    types.TASK_IN_PROGRESS,
		Title:     strings.TrimSpace(goal),
		InputData: types.JSONMap{"steps": steps},
		StartedAt: now,
	}
	err := l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if err := l.core.Store().TaskStore().Create(ctx, roadmap); err != nil {
			return errors.New("PlanningLogic.CreateRoadmap.TaskStore.Create", i18n.ERROR_INTERNAL, err)
		}
		for i, title := range steps {
			step := types.Task{
				ID:        utils.GenUniqIDStr(),
				SessionID: sessionID,
				UserID:    l.GetUserID(),
				Type:      types.TASK_TYPE_STEP,
				Status:    types.TASK_PENDING,
				Priority:  i,
				ParentID:  roadmap.ID,
				Title:     strings.TrimSpace(title),
			}
			if i == 0 {
				step.Status = types.TASK_IN_PROGRESS
				step.StartedAt = now
			}
			if err := l.core.Store().TaskStore().Create(ctx, step); err != nil {
				return errors.New("PlanningLogic.CreateRoadmap.TaskStore.Create.step", i18n.ERROR_INTERNAL, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l.Progress(sessionID, roadmap.ID)
}

func (l *PlanningLogic) roadmap(sessionID, roadmapID string) (*types.Task, error) {
	var (
		t   *types.Task
		err error
	)
	if roadmapID == "" {
		t, err = l.core.Store().TaskStore().LatestByType(l.ctx, sessionID, types.TASK_TYPE_ROADMAP)
	} else {
		t, err = l.core.Store().TaskStore().Get(l.ctx, roadmapID)
	}
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("PlanningLogic.roadmap.TaskStore", i18n.ERROR_INTERNAL, err)
	}
	if t == nil || t.Type != types.TASK_TYPE_ROADMAP || t.UserID != l.GetUserID() {
		return nil, errors.New("PlanningLogic.roadmap.nil", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}
	return t, nil
}

// Progress summarizes a roadmap, the latest one of the session when roadmapID is empty.
func (l *PlanningLogic) Progress(sessionID, roadmapID string) (*types.RoadmapProgress, error) {
	roadmap, err := l.roadmap(sessionID, roadmapID)
	if err != nil {
		return nil, err
	}
	steps, err := l.core.Store().TaskStore().ListChildren(l.ctx, roadmap.ID)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("PlanningLogic.Progress.TaskStore.ListChildren", i18n.ERROR_INTERNAL, err)
	}
	return roadmapProgress(roadmap, steps), nil
}

func roadmapProgress(roadmap *types.Task, steps []*types.Task) *types.RoadmapProgress {
	p := &types.RoadmapProgress{
		RoadmapID: roadmap.ID,
		Goal:      roadmap.Title,
		Total:     len(steps),
	}
	for _, s := range steps {
		switch s.Status {
		case types.TASK_COMPLETED:
			p.Completed++
		case types.TASK_FAILED:
			p.Failed++
		case types.TASK_IN_PROGRESS:
			p.InProgress++
		case types.TASK_PENDING:
			p.Pending++
		}
		p.Steps = append(p.Steps, *s)
	}
	if p.Total > 0 {
		p.Percent = p.Completed * 100 / p.Total
	}
	p.IsComplete = p.Total > 0 && p.Completed == p.Total
	p.HasFailure = p.Failed > 0
	return p
}

// UpdateStep records the outcome of one step. Completing a step starts the
// next pending one; completing the last step completes the roadmap.
func (l *PlanningLogic) UpdateStep(stepID string, status types.TaskStatus, output map[string]any, errMsg string) (*types.RoadmapProgress, error) {
	step, err := l.core.Store().TaskStore().Get(l.ctx, stepID)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("PlanningLogic.UpdateStep.TaskStore.Get", i18n.ERROR_INTERNAL, err)
	}
	if step == nil || step.Type != types.TASK_TYPE_STEP || step.UserID != l.GetUserID() {
		return nil, errors.New("PlanningLogic.UpdateStep.nil", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}

	now := time.Now().Unix()
	args := store.UpdateTaskArgs{Status: status, OutputData: output, ErrorMessage: errMsg}
	switch status {
	case types.TASK_IN_PROGRESS:
		args.StartedAt = now
	case types.TASK_COMPLETED, types.TASK_FAILED, types.TASK_CANCELLED:
		args.CompletedAt = now
	}
	if err = l.core.Store().TaskStore().UpdateStatus(l.ctx, step.ID, args); err != nil {
		return nil, errors.New("PlanningLogic.UpdateStep.TaskStore.UpdateStatus", i18n.ERROR_INTERNAL, err)
	}

	roadmap, err := l.roadmap(step.SessionID, step.ParentID)
	if err != nil {
		return nil, err
	}
	steps, err := l.core.Store().TaskStore().ListChildren(l.ctx, roadmap.ID)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("PlanningLogic.UpdateStep.TaskStore.ListChildren", i18n.ERROR_INTERNAL, err)
	}

	if status == types.TASK_COMPLETED {
		running := lo.ContainsBy(steps, func(t *types.Task) bool { return t.Status == types.TASK_IN_PROGRESS })
		if next, ok := lo.Find(steps, func(t *types.Task) bool { return t.Status == types.TASK_PENDING }); ok && !running {
			if err = l.core.Store().TaskStore().UpdateStatus(l.ctx, next.ID, store.UpdateTaskArgs{Status: types.TASK_IN_PROGRESS, StartedAt: now}); err != nil {
				return nil, errors.New("PlanningLogic.UpdateStep.TaskStore.UpdateStatus.next", i18n.ERROR_INTERNAL, err)
			}
			next.Status = types.TASK_IN_PROGRESS
		}
	}

	p := roadmapProgress(roadmap, steps)
	if p.IsComplete && roadmap.Status != types.TASK_COMPLETED {
		summary := lo.Map(steps, func(t *types.Task, i int) string { return fmt.Sprintf("%d. %s", i+1, t.Title) })
		err = l.core.Store().TaskStore().UpdateStatus(l.ctx, roadmap.ID, store.UpdateTaskArgs{
			Status: types.TASK_COMPLETED,
			OutputData: types.JSONMap{
				"summary":   fmt.Sprintf("Completed %d steps of %q", p.Total, roadmap.Title),
				"steps":     summary,
				"completed": now,
			},
			CompletedAt: now,
		})
		if err != nil {
			return nil, errors.New("PlanningLogic.UpdateStep.TaskStore.UpdateStatus.roadmap", i18n.ERROR_INTERNAL, err)
		}
	}
	return p, nil
}
