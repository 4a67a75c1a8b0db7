package v1

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/atelier-studio/atelier/pkg/types"
)

func memoryTools(s *Studio) []*Tool {
	return []*Tool{
		{
			Name:        "manage_core_memory",
			Description: "Remember, forget or clear lasting facts about the user, such as their profession or recurring projects.",
			Family:      FAMILY_MEMORY,
			Params: map[string]*schema.ParameterInfo{
				"action": strParam("Action", true, "add", "delete", "clear"),
				"fact":   strParam("Fact to add, or text matching the facts to delete", false),
			},
			Handler: s.manageCoreMemory,
		},
		{
			Name:        "save_style",
			Description: "Save a style the user keeps asking for so it applies to future work.",
			Family:      FAMILY_MEMORY,
			Params: map[string]*schema.ParameterInfo{
				"name":        strParam("Short name of the style, like lighting or palette", true),
				"description": strParam("The style itself", true),
			},
			Handler: s.saveStyle,
		},
	}
}

func (s *Studio) manageCoreMemory(tc *TurnContext, args Args) *types.ToolResult {
	fact := strings.TrimSpace(args.String("fact"))
	switch args.String("action") {
	case "add":
		if fact == "" {
			return types.ToolFailure("fact is required to add")
		}
		if err := s.memory.AddCoreMemory(tc, tc.UserID, fact); err != nil {
			return types.ToolFailure("failed to remember: " + err.Error())
		}
		s.episodes.Remember(tc.UserID, types.EPISODE_PREFERENCE, fact, map[string]any{"source": "core_memory"})
		return types.ToolOK("remembered: " + fact)
	case "delete":
		if fact == "" {
			return types.ToolFailure("fact is required to delete")
		}
		n, err := s.memory.DeleteCoreMemory(tc, tc.UserID, fact)
		if err != nil {
			return types.ToolFailure("failed to forget: " + err.Error())
		}
		if n == 0 {
			return types.ToolFailure(fmt.Sprintf("no remembered fact matches %q", fact))
		}
		return types.ToolOK(fmt.Sprintf("forgot %d facts", n))
	case "clear":
		if err := s.memory.ClearCoreMemories(tc, tc.UserID); err != nil {
			return types.ToolFailure("failed to clear memory: " + err.Error())
		}
		return types.ToolOK("all remembered facts cleared")
	}
	return types.ToolFailure("action must be add, delete or clear")
}

func (s *Studio) saveStyle(tc *TurnContext, args Args) *types.ToolResult {
	name, desc := strings.TrimSpace(args.String("name")), strings.TrimSpace(args.String("description"))
	if err := s.memory.SetStylePreference(tc, tc.UserID, name, desc); err != nil {
		return types.ToolFailure("failed to save the style: " + err.Error())
	}
	if name == "style" || name == "default" {
		if _, err := NewPreferenceLogic(tc, s.core).Update(tc.UserID, func(p *types.UserPreferences) {
			p.Style = desc
		}); err == nil && tc.Prefs != nil {
			tc.Prefs.Style = desc
		}
	}
	s.episodes.Remember(tc.UserID, types.EPISODE_PREFERENCE, fmt.Sprintf("style %s: %s", name, desc), nil)
	return types.ToolOK(fmt.Sprintf("style %q saved", name))
}
