package v1

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/samber/lo"

	"github.com/atelier-studio/atelier/app/core/srv"
	"github.com/atelier-studio/atelier/app/store"
	"github.com/atelier-studio/atelier/pkg/errors"
	"github.com/atelier-studio/atelier/pkg/types"
)

func entityTools(s *Studio) []*Tool {
	common := func(extra map[string]*schema.ParameterInfo) map[string]*schema.ParameterInfo {
		params := map[string]*schema.ParameterInfo{
			"name":                  strParam("Display name, the @tag is derived from it", true),
			"description":           strParam("Visual description", false),
			"reference_image_url":   strParam("Reference image url", false),
			"use_current_reference": boolParam("Use the image the user just shared as the reference"),
		}
		for k, v := range extra {
			params[k] = v
		}
		return params
	}
	return []*Tool{
		{
			Name:        TOOL_CREATE_CHARACTER,
			Description: "Save a recurring character. Only when the user explicitly asks to save or create one.",
			Family:      FAMILY_ENTITIES,
			Params: common(map[string]*schema.ParameterInfo{
				"attributes": objParam("Traits such as age, hair, outfit", nil),
			}),
			Handler: s.createEntity(types.ENTITY_CHARACTER),
		},
		{
			Name:        "create_location",
			Description: "Save a recurring location. Only when the user explicitly asks.",
			Family:      FAMILY_ENTITIES,
			Params: common(map[string]*schema.ParameterInfo{
				"attributes": objParam("Lighting, era, mood", nil),
			}),
			Handler: s.createEntity(types.ENTITY_LOCATION),
		},
		{
			Name:        "create_brand",
			Description: "Save a brand with its colors, fonts and tone. Only when the user explicitly asks.",
			Family:      FAMILY_ENTITIES,
			Params: common(map[string]*schema.ParameterInfo{
				"attributes": objParam("Colors, fonts, tone, logo url", nil),
			}),
			Handler: s.createEntity(types.ENTITY_BRAND),
		},
		{
			Name:         "get_entity",
			Description:  "Get a saved entity by @tag or id.",
			Family:       FAMILY_ENTITIES,
			Capabilities: []ToolCapability{TOOL_CAP_READ_ONLY},
			Params: map[string]*schema.ParameterInfo{
				"tag": strParam("@tag or id", true),
			},
			Handler: s.getEntity,
		},
		{
			Name:         "list_entities",
			Description:  "List saved entities, optionally of one type.",
			Family:       FAMILY_ENTITIES,
			Capabilities: []ToolCapability{TOOL_CAP_READ_ONLY},
			Params: map[string]*schema.ParameterInfo{
				"type": strParam("Entity type", false, lo.Map(types.EntityTypes, func(t types.EntityType, _ int) string { return string(t) })...),
			},
			Handler: s.listEntities,
		},
		{
			Name:        "delete_entity",
			Description: "Move a saved entity to the trash. It can be restored for 3 days.",
			Family:      FAMILY_ENTITIES,
			Params: map[string]*schema.ParameterInfo{
				"tag": strParam("@tag or id", true),
			},
			Handler: s.deleteEntity,
		},
		{
			Name:        "manage_wardrobe",
			Description: "Add, remove or list outfits of a saved character.",
			Family:      FAMILY_ENTITIES,
			Params: map[string]*schema.ParameterInfo{
				"character": strParam("Character @tag", true),
				"action":    strParam("Action", true, "add", "remove", "list"),
				"outfit":    strParam("Outfit description for add and remove", false),
			},
			Handler: s.manageWardrobe,
		},
		{
			Name:        "research_brand",
			Description: "Research a brand on the web and save its visual identity as a brand entity.",
			Family:      FAMILY_ENTITIES,
			Params: map[string]*schema.ParameterInfo{
				"brand_name": strParam("Brand to research", true),
				"website":    strParam("Optional official website", false),
			},
			Handler: s.researchBrand,
		},
	}
}

// toolError turns a logic error into a failed result with a localized message.
func toolError(tc *TurnContext, err error) *types.ToolResult {
	var ce *errors.CustomizedError
	if !errors.As(err, &ce) {
		return types.ToolFailure(err.Error())
	}
	res := types.ToolFailure(tc.T(ce.Message(), ce.Data()))
	res.Duplicate = errors.Is(err, store.ErrDuplicateEntity)
	if res.Duplicate {
		res.Data = ce.Data()
	}
	return res
}

func entityResult(msg string, e *types.Entity) *types.ToolResult {
	res := types.ToolOK(msg)
	res.Entity = e
	return res
}

func (s *Studio) createEntity(t types.EntityType) ToolHandler {
	return func(tc *TurnContext, args Args) *types.ToolResult {
		ref := args.String("reference_image_url")
		if ref == "" && args.Bool("use_current_reference") {
			ref = currentReference(tc)
		}
		e, err := NewEntityLogic(tc, s.core).Create(CreateEntityArgs{
			Type:           t,
			Name:           args.String("name"),
			Description:    args.String("description"),
			Attributes:     args.Map("attributes"),
			ReferenceImage: ref,
			SessionID:      tc.SessionID,
		})
		if err != nil {
			return toolError(tc, err)
		}
		tc.Entities = append(tc.Entities, e)
		return entityResult(fmt.Sprintf("saved %s @%s", t, e.Tag), e)
	}
}

// currentReference prefers what the user uploaded in this turn over older references.
func currentReference(tc *TurnContext) string {
	if len(tc.Refs.Uploaded) > 0 {
		return tc.Refs.Uploaded[0]
	}
	return tc.Refs.Primary
}

func (s *Studio) getEntity(tc *TurnContext, args Args) *types.ToolResult {
	e, err := NewEntityLogic(tc, s.core).Lookup(args.String("tag"))
	if err != nil {
		return toolError(tc, err)
	}
	if e == nil {
		return types.ToolFailure(fmt.Sprintf("no entity named %s", args.String("tag")))
	}
	return entityResult("", e)
}

func (s *Studio) listEntities(tc *TurnContext, args Args) *types.ToolResult {
	list, err := NewEntityLogic(tc, s.core).List(types.EntityType(args.String("type")))
	if err != nil {
		return toolError(tc, err)
	}
	res := types.ToolOK(fmt.Sprintf("%d entities", len(list)))
	res.Entities = list
	return res
}

func (s *Studio) deleteEntity(tc *TurnContext, args Args) *types.ToolResult {
	item, err := NewEntityLogic(tc, s.core).Delete(args.String("tag"))
	if err != nil {
		return toolError(tc, err)
	}
	res := types.ToolOK(fmt.Sprintf("%s moved to the trash, restorable until it expires", item.DisplayName))
	res.Data = map[string]any{"trash_id": item.ID, "expires_at": item.ExpiresAt}
	return res
}

const wardrobeKey = "wardrobe"

func wardrobeOf(e *types.Entity) []string {
	switch v := e.Attributes[wardrobeKey].(type) {
	case []string:
		return v
	case []any:
		return lo.FilterMap(v, func(item any, _ int) (string, bool) {
			s, ok := item.(string)
			return s, ok && s != ""
		})
	}
	return nil
}

func (s *Studio) manageWardrobe(tc *TurnContext, args Args) *types.ToolResult {
	logic := NewEntityLogic(tc, s.core)
	e, err := logic.Lookup(args.String("character"))
	if err != nil {
		return toolError(tc, err)
	}
	if e == nil || e.Type != types.ENTITY_CHARACTER {
		return types.ToolFailure(fmt.Sprintf("no character named %s", args.String("character")))
	}

	outfits := wardrobeOf(e)
	outfit := strings.TrimSpace(args.String("outfit"))
	switch args.String("action") {
	case "list":
		res := entityResult(fmt.Sprintf("%d outfits", len(outfits)), e)
		res.Data = map[string]any{"wardrobe": outfits}
		return res
	case "add":
		if outfit == "" {
			return types.ToolFailure("outfit is required to add")
		}
		outfits = lo.Uniq(append(outfits, outfit))
	case "remove":
		before := len(outfits)
		outfits = lo.Filter(outfits, func(o string, _ int) bool { return !strings.EqualFold(o, outfit) })
		if len(outfits) == before {
			return types.ToolFailure(fmt.Sprintf("@%s has no outfit %q", e.Tag, outfit))
		}
	default:
		return types.ToolFailure("action must be add, remove or list")
	}

	if e.Attributes == nil {
		e.Attributes = types.JSONMap{}
	}
	e.Attributes[wardrobeKey] = outfits
	if err = logic.Update(e); err != nil {
		return toolError(tc, err)
	}
	res := entityResult(fmt.Sprintf("@%s wardrobe updated", e.Tag), e)
	res.Data = map[string]any{"wardrobe": outfits}
	return res
}

// researchBrand collects search snippets, condenses them into an identity
// description with the cheap model and saves the brand.
func (s *Studio) researchBrand(tc *TurnContext, args Args) *types.ToolResult {
	name := args.String("brand_name")
	searcher := s.core.Srv().Search()
	if searcher == nil {
		return types.ToolFailure("web search is not configured")
	}
	query := name + " brand colors logo typography visual identity"
	if site := args.String("website"); site != "" {
		query += " " + site
	}
	hits, err := searcher.Search(tc, query)
	if err != nil {
		return types.ToolFailure("brand research failed: " + err.Error())
	}
	if len(hits) == 0 {
		return types.ToolFailure(fmt.Sprintf("nothing found about %s", name))
	}

	var sb strings.Builder
	for _, h := range lo.Slice(hits, 0, 6) {
		sb.WriteString(fmt.Sprintf("- %s: %s (%s)\n", h.Title, h.Summary, h.URL))
	}
	summary, err := s.llmText(tc, s.core.Srv().AI().Cheap(), "brand_research",
		"Summarize the visual identity of the brand from these search results: primary colors with hex codes when known, fonts, logo, tone of voice. Plain text, at most 120 words.",
		"Brand: "+name+"\n"+sb.String())
	if err != nil {
		slog.Warn("brand summary failed, saving raw findings", slog.String("brand", name), slog.Any("error", err))
		summary = sb.String()
	}

	e, err := NewEntityLogic(tc, s.core).Create(CreateEntityArgs{
		Type:        types.ENTITY_BRAND,
		Name:        name,
		Description: summary,
		Attributes: map[string]any{
			"website": args.String("website"),
			"sources": lo.Map(lo.Slice(hits, 0, 6), func(h srv.SearchResult, _ int) string { return h.URL }),
		},
		SessionID: tc.SessionID,
	})
	if err != nil {
		return toolError(tc, err)
	}
	tc.Entities = append(tc.Entities, e)
	return entityResult(fmt.Sprintf("researched and saved brand @%s", e.Tag), e)
}
