package v1

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/pkg/errors"
	"github.com/atelier-studio/atelier/pkg/i18n"
	"github.com/atelier-studio/atelier/pkg/types"
)

// learned keys written by the tools themselves
const (
	LEARNED_DISABLED_FAMILIES = "disabled_tool_families"
)

type PreferenceLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewPreferenceLogic(ctx context.Context, core *core.Core) *PreferenceLogic {
	return &PreferenceLogic{ctx: ctx, core: core}
}

// Get returns the stored preferences or the defaults for a new user.
func (l *PreferenceLogic) Get(userID string) (*types.UserPreferences, error) {
	prefs, err := l.core.Store().PreferenceStore().Get(l.ctx, userID)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("PreferenceLogic.Get.PreferenceStore.Get", i18n.ERROR_INTERNAL, err)
	}
	if prefs == nil {
		return types.DefaultPreferences(userID), nil
	}
	if prefs.Learned == nil {
		prefs.Learned = types.JSONMap{}
	}
	return prefs, nil
}

func (l *PreferenceLogic) Update(userID string, fn func(p *types.UserPreferences)) (*types.UserPreferences, error) {
	prefs, err := l.Get(userID)
	if err != nil {
		return nil, err
	}
	fn(prefs)
	prefs.UserID = userID
	prefs.UpdatedAt = time.Now().Unix()
	if err = l.core.Store().PreferenceStore().Upsert(l.ctx, *prefs); err != nil {
		return nil, errors.New("PreferenceLogic.Update.PreferenceStore.Upsert", i18n.ERROR_INTERNAL, err)
	}
	return prefs, nil
}

func (l *PreferenceLogic) SetLearned(userID, key string, value any) error {
	_, err := l.Update(userID, func(p *types.UserPreferences) {
		p.Learned[key] = value
	})
	return err
}

// DisabledFamilies lists the optional tool families switched off for the user.
func DisabledFamilies(p *types.UserPreferences) []ToolFamily {
	if p == nil {
		return nil
	}
	var res []ToolFamily
	switch v := p.Learned[LEARNED_DISABLED_FAMILIES].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				res = append(res, ToolFamily(s))
			}
		}
	case []string:
		for _, s := range v {
			res = append(res, ToolFamily(s))
		}
	}
	return res
}

func FamilyEnabled(p *types.UserPreferences, f ToolFamily) bool {
	return !lo.Contains(DisabledFamilies(p), f)
}

// PreferencesForPrompt flattens the active preferences into prompt text.
func PreferencesForPrompt(p *types.UserPreferences) string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## User preferences\n")
	sb.WriteString(fmt.Sprintf("- default aspect ratio: %s\n", p.AspectRatio))
	sb.WriteString(fmt.Sprintf("- default style: %s\n", p.Style))
	if p.ImageModel != "" && p.ImageModel != "auto" {
		sb.WriteString(fmt.Sprintf("- preferred image model: %s\n", p.ImageModel))
	}
	if p.VideoModel != "" && p.VideoModel != "auto" {
		sb.WriteString(fmt.Sprintf("- preferred video model: %s\n", p.VideoModel))
	}
	if p.AutoFaceSwap {
		sb.WriteString("- restore faces from references automatically\n")
	}
	if p.AutoUpscale {
		sb.WriteString("- upscale finished images automatically\n")
	}
	if p.Language != "" {
		sb.WriteString(fmt.Sprintf("- reply language: %s\n", p.Language))
	}
	if len(p.FavoriteEntities) > 0 {
		sb.WriteString(fmt.Sprintf("- favorite entities: %s\n", strings.Join(p.FavoriteEntities, ", ")))
	}

	keys := lo.Filter(lo.Keys(p.Learned), func(k string, _ int) bool { return k != LEARNED_DISABLED_FAMILIES })
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("- %s: %v\n", k, p.Learned[k]))
	}
	return sb.String()
}
