package v1

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/samber/lo"

	"github.com/atelier-studio/atelier/app/store"
	"github.com/atelier-studio/atelier/pkg/types"
)

func adminTools(s *Studio) []*Tool {
	return []*Tool{
		{
			Name:        TOOL_MANAGE_PLUGIN,
			Description: "List, enable or disable the optional tool groups: analysis, search, planning.",
			Family:      FAMILY_ADMIN,
			Params: map[string]*schema.ParameterInfo{
				"action": strParam("Action", true, "list", "enable", "disable"),
				"plugin": strParam("Tool group", false, lo.Map(OptionalFamilies, func(f ToolFamily, _ int) string { return string(f) })...),
			},
			Handler: s.managePlugin,
		},
		{
			Name:        "manage_project",
			Description: "Read or update the title, description, category and notes of the current project.",
			Family:      FAMILY_ADMIN,
			Params: map[string]*schema.ParameterInfo{
				"action":      strParam("Action", true, "get", "update"),
				"title":       strParam("New title", false),
				"description": strParam("New description", false),
				"category":    strParam("New category", false),
				"notes":       objParam("Project data to merge, like audience or deadline", nil),
			},
			Handler: s.manageProject,
		},
		{
			Name:        "manage_trash",
			Description: "List, restore or empty the trash. Deleted items stay restorable for 3 days.",
			Family:      FAMILY_ADMIN,
			Params: map[string]*schema.ParameterInfo{
				"action":  strParam("Action", true, "list", "restore", "empty"),
				"item_id": strParam("Trash item id to restore", false),
			},
			Handler: s.manageTrash,
		},
		{
			Name:         "get_system_state",
			Description:  "Report configured services, running background productions and available tools.",
			Family:       FAMILY_ADMIN,
			Capabilities: []ToolCapability{TOOL_CAP_READ_ONLY},
			Params:       map[string]*schema.ParameterInfo{},
			Handler:      s.getSystemState,
		},
	}
}

func (s *Studio) managePlugin(tc *TurnContext, args Args) *types.ToolResult {
	prefs := tc.Preferences()
	disabled := DisabledFamilies(prefs)
	state := func(list []ToolFamily) map[string]bool {
		return lo.SliceToMap(OptionalFamilies, func(f ToolFamily) (string, bool) { return string(f), !lo.Contains(list, f) })
	}

	action := args.String("action")
	if action == "list" {
		res := types.ToolOK("")
		res.Data = map[string]any{"plugins": state(disabled)}
		return res
	}
	family := ToolFamily(strings.ToLower(args.String("plugin")))
	if !lo.Contains(OptionalFamilies, family) {
		return types.ToolFailure(fmt.Sprintf("unknown plugin %q", family))
	}
	switch action {
	case "enable":
		disabled = lo.Without(disabled, family)
	case "disable":
		disabled = lo.Uniq(append(disabled, family))
	default:
		return types.ToolFailure("action must be list, enable or disable")
	}

	value := lo.Map(disabled, func(f ToolFamily, _ int) string { return string(f) })
	if err := NewPreferenceLogic(tc, s.core).SetLearned(tc.UserID, LEARNED_DISABLED_FAMILIES, value); err != nil {
		return toolError(tc, err)
	}
	prefs.Learned[LEARNED_DISABLED_FAMILIES] = value
	res := types.ToolOK(fmt.Sprintf("%s tools %sd, effective from the next message", family, action))
	res.Data = map[string]any{"plugins": state(disabled)}
	return res
}

func (s *Studio) manageProject(tc *TurnContext, args Args) *types.ToolResult {
	logic := NewSessionLogic(tc, s.core)
	if args.String("action") == "update" {
		var upd store.UpdateSessionArgs
		for key, dst := range map[string]**string{"title": &upd.Title, "description": &upd.Description, "category": &upd.Category} {
			if args.Has(key) {
				v := args.String(key)
				*dst = &v
			}
		}
		if notes := args.Map("notes"); len(notes) > 0 {
			current, err := logic.Get(tc.SessionID)
			if err != nil {
				return toolError(tc, err)
			}
			upd.ProjectData = types.JSONMap(lo.Assign(map[string]any(current.ProjectData), notes))
		}
		if _, err := logic.Update(tc.SessionID, upd); err != nil {
			return toolError(tc, err)
		}
	}

	session, err := logic.Get(tc.SessionID)
	if err != nil {
		return toolError(tc, err)
	}
	res := types.ToolOK(session.Title)
	res.Data = map[string]any{
		"title":        session.Title,
		"description":  session.Description,
		"category":     session.Category,
		"project_data": session.ProjectData,
	}
	return res
}

func (s *Studio) manageTrash(tc *TurnContext, args Args) *types.ToolResult {
	logic := NewTrashLogic(tc, s.core)
	switch args.String("action") {
	case "list":
		list, err := logic.List()
		if err != nil {
			return toolError(tc, err)
		}
		res := types.ToolOK(fmt.Sprintf("%d items in the trash", len(list)))
		res.Data = map[string]any{"items": lo.Map(list, func(item *types.TrashItem, _ int) map[string]any {
			return map[string]any{"id": item.ID, "type": item.ItemType, "name": item.DisplayName, "expires_at": item.ExpiresAt}
		})}
		return res
	case "restore":
		item, err := logic.Restore(args.String("item_id"))
		if err != nil {
			return toolError(tc, err)
		}
		return types.ToolOK(fmt.Sprintf("%s restored", item.DisplayName))
	case "empty":
		n, err := logic.Empty()
		if err != nil {
			return toolError(tc, err)
		}
		return types.ToolOK(fmt.Sprintf("%d items deleted permanently", n))
	}
	return types.ToolFailure("action must be list, restore or empty")
}

func (s *Studio) getSystemState(tc *TurnContext, args Args) *types.ToolResult {
	jobs := lo.Filter(s.runner.Running(), func(j types.BackgroundJob, _ int) bool { return j.UserID == tc.UserID })
	res := types.ToolOK("")
	res.Data = map[string]any{
		"services": s.core.Srv().Status(),
		"running_jobs": lo.Map(jobs, func(j types.BackgroundJob, _ int) map[string]any {
			return map[string]any{"id": j.ID, "kind": j.Kind, "session_id": j.SessionID}
		}),
		"tools":             s.registry.Names(),
		"disabled_families": DisabledFamilies(tc.Preferences()),
	}
	return res
}
