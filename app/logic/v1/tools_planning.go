package v1

import (
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/atelier-studio/atelier/pkg/types"
)

func planningTools(s *Studio) []*Tool {
	return []*Tool{
		{
			Name:        TOOL_CREATE_ROADMAP,
			Description: "Break a multi-step creative goal into ordered steps and track them.",
			Family:      FAMILY_PLANNING,
			Params: map[string]*schema.ParameterInfo{
				"goal":  strParam("The overall goal", true),
				"steps": strListParam("Ordered step titles", true),
			},
			Handler: s.createRoadmap,
		},
		{
			Name:         "get_roadmap_progress",
			Description:  "Report the progress of a roadmap, the latest of this project by default.",
			Family:       FAMILY_PLANNING,
			Capabilities: []ToolCapability{TOOL_CAP_READ_ONLY},
			Params: map[string]*schema.ParameterInfo{
				"roadmap_id": strParam("Roadmap id", false),
			},
			Handler: s.getRoadmapProgress,
		},
		{
			Name:        "update_roadmap_step",
			Description: "Mark a roadmap step as in progress, completed or failed.",
			Family:      FAMILY_PLANNING,
			Params: map[string]*schema.ParameterInfo{
				"step_id": strParam("Step id", true),
				"status":  strParam("New status", true, string(types.TASK_IN_PROGRESS), string(types.TASK_COMPLETED), string(types.TASK_FAILED)),
				"result":  strParam("What the step produced, or why it failed", false),
			},
			Handler: s.updateRoadmapStep,
		},
	}
}

func progressResult(p *types.RoadmapProgress) *types.ToolResult {
	res := types.ToolOK(fmt.Sprintf("%d/%d steps completed", p.Completed, p.Total))
	res.Data = p
	return res
}

func (s *Studio) createRoadmap(tc *TurnContext, args Args) *types.ToolResult {
	p, err := NewPlanningLogic(tc, s.core).CreateRoadmap(tc.SessionID, args.String("goal"), args.Strings("steps"))
	if err != nil {
		return toolError(tc, err)
	}
	return progressResult(p)
}

func (s *Studio) getRoadmapProgress(tc *TurnContext, args Args) *types.ToolResult {
	p, err := NewPlanningLogic(tc, s.core).Progress(tc.SessionID, args.String("roadmap_id"))
	if err != nil {
		return toolError(tc, err)
	}
	return progressResult(p)
}

func (s *Studio) updateRoadmapStep(tc *TurnContext, args Args) *types.ToolResult {
	status := types.TaskStatus(args.String("status"))
	var (
		output map[string]any
		errMsg string
	)
	if status == types.TASK_FAILED {
		errMsg = args.String("result")
	} else if args.Has("result") {
		output = map[string]any{"result": args.String("result")}
	}
	p, err := NewPlanningLogic(tc, s.core).UpdateStep(args.String("step_id"), status, output, errMsg)
	if err != nil {
		return toolError(tc, err)
	}
	return progressResult(p)
}
