package v1

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/utils"
)

type TurnInput struct {
	UserID    string
	SessionID string
	Message   string
	Lang      string
}

// AssembledContext is the system prompt plus the lookups it was built from,
// which the turn reuses instead of querying again.
type AssembledContext struct {
	Prompt        string
	Session       *types.Session
	Entities      []*types.Entity
	WorkingMemory []*types.GeneratedAsset
	Prefs         *types.UserPreferences
}

// ContextAssembler layers the per-turn system prompt. A failing lookup drops
// its section and never fails the turn.
type ContextAssembler struct {
	studio *Studio
}

func NewContextAssembler(s *Studio) *ContextAssembler {
	return &ContextAssembler{studio: s}
}

func (a *ContextAssembler) BuildSystemPrompt(ctx context.Context, in TurnInput) string {
	return a.Assemble(ctx, in).Prompt
}

func (a *ContextAssembler) Assemble(ctx context.Context, in TurnInput) *AssembledContext {
	timer := a.studio.core.Metrics().GenContextTimer("system_prompt")
	defer timer.ObserveDuration()

	ctx = WithUser(ctx, in.UserID, in.Lang)
	res := &AssembledContext{}
	sections := []string{studioPersona}

	res.Entities = NewEntityLogic(ctx, a.studio.core).ResolveTags(in.Message)
	if s := entitySection(res.Entities); s != "" {
		sections = append(sections, s)
	}

	session, err := a.studio.core.Store().SessionStore().Get(ctx, in.SessionID)
	if err != nil && err != sql.ErrNoRows {
		slog.Warn("failed to load session for context", slog.String("session_id", in.SessionID), slog.Any("error", err))
	}
	res.Session = session
	if s := projectSection(session); s != "" {
		sections = append(sections, s)
	}

	res.WorkingMemory = a.workingMemory(ctx, in.SessionID)
	if s := workingMemorySection(res.WorkingMemory); s != "" {
		sections = append(sections, s)
	}

	prefs, err := NewPreferenceLogic(ctx, a.studio.core).Get(in.UserID)
	if err != nil {
		slog.Warn("failed to load preferences for context", slog.String("user_id", in.UserID), slog.Any("error", err))
		prefs = types.DefaultPreferences(in.UserID)
	}
	res.Prefs = prefs
	sections = append(sections, PreferencesForPrompt(prefs))

	episodes := a.studio.episodes.Recall(in.UserID, types.EpisodeFilter{Limit: a.studio.core.Cfg().Studio.EpisodicRecall})
	if s := episodeSection(episodes); s != "" {
		sections = append(sections, s)
	}

	if s := a.studio.memory.BuildMemoryContext(ctx, in.UserID); s != "" {
		sections = append(sections, s)
	}

	res.Prompt = strings.Join(sections, "\n\n")
	return res
}

// workingMemory is the newest non-deleted assets of the session, newest first.
func (a *ContextAssembler) workingMemory(ctx context.Context, sessionID string) []*types.GeneratedAsset {
	list, err := a.studio.core.Store().AssetStore().ListRecent(ctx, types.ListAssetOptions{SessionID: sessionID}, uint64(a.studio.core.Cfg().Studio.WorkingMemorySize))
	if err != nil && err != sql.ErrNoRows {
		slog.Warn("failed to load working memory", slog.String("session_id", sessionID), slog.Any("error", err))
		return nil
	}
	return list
}

func entitySection(list []*types.Entity) string {
	if len(list) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Referenced entities\n")
	for _, e := range list {
		attrs, _ := json.Marshal(e.Attributes)
		ref := e.ReferenceImageURL
		if ref == "" {
			ref = "∅"
		}
		sb.WriteString(fmt.Sprintf("- %s (%s) name: %s\n  description: %s\n  attributes: %s\n  reference_image_url: %s\n",
			e.Tag, e.Type, e.Name, e.Description, attrs, ref))
	}
	return sb.String()
}

func projectSection(s *types.Session) string {
	if !s.HasProject() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Active project\n")
	if s.Title != "" {
		sb.WriteString("- title: " + s.Title + "\n")
	}
	if s.Description != "" {
		sb.WriteString("- description: " + s.Description + "\n")
	}
	if s.Category != "" {
		sb.WriteString("- category: " + s.Category + "\n")
	}
	if len(s.ProjectData) > 0 {
		raw, _ := json.Marshal(s.ProjectData)
		sb.WriteString("- data: " + string(raw) + "\n")
	}
	return sb.String()
}

func workingMemorySection(list []*types.GeneratedAsset) string {
	if len(list) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Working memory (newest first)\n")
	for i, a := range list {
		sb.WriteString(fmt.Sprintf("%d. %s %s: %q url: %s", i+1, a.Type.Icon(), a.Type, utils.Prefix(a.Prompt, 80), a.URL))
		if a.ThumbnailURL != "" {
			sb.WriteString(" thumbnail: " + a.ThumbnailURL)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(`Follow-up edit requests that refer to "this", "last", "it", "the image" or "the video" MUST use a URL from this list.`)
	return sb.String()
}

func episodeSection(list []types.Episode) string {
	if len(list) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Notable moments\n")
	for _, e := range list {
		sb.WriteString(fmt.Sprintf("- [%s] %s\n", e.EventType, e.Content))
	}
	return sb.String()
}
