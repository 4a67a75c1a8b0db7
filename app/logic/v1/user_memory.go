package v1

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/atelier-studio/atelier/app/core/srv"
	"github.com/atelier-studio/atelier/pkg/ai"
	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/utils"
)

const sessionSummaryPrompt = `Summarize this creative session in at most 4 sentences.
Keep the user's explicit parameters verbatim (durations, sizes, model names, styles).
Mention the entities that were created and what kind of media was produced.
Leave out failures and retries. Reply with the summary only.`

// UserMemoryService keeps the cross-session memory of each user in the cache.
// Writes are read-modify-write; concurrent writers on different nodes may
// overwrite each other, which is accepted.
type UserMemoryService struct {
	cache types.Cache
	ai    *srv.AI
	ttl   time.Duration
	mu    sync.Mutex
}

func NewUserMemoryService(cache types.Cache, ai *srv.AI, ttl time.Duration) *UserMemoryService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &UserMemoryService{cache: cache, ai: ai, ttl: ttl}
}

func userMemoryKey(userID string) string {
	return "user_memory:" + userID
}

// Get never fails: a missing or unreadable entry yields an empty memory.
func (s *UserMemoryService) Get(ctx context.Context, userID string) *types.UserMemory {
	if s.cache == nil {
		return types.NewUserMemory(userID)
	}
	m, err := types.CacheGetJSON[types.UserMemory](ctx, s.cache, userMemoryKey(userID))
	if err != nil {
		if err != types.ErrCacheMiss {
			slog.Warn("failed to read user memory", slog.String("user_id", userID), slog.Any("error", err))
		}
		return types.NewUserMemory(userID)
	}
	if m.Preferences == nil {
		m.Preferences = map[string]string{}
	}
	if m.StylePreferences == nil {
		m.StylePreferences = map[string]string{}
	}
	return m
}

func (s *UserMemoryService) update(ctx context.Context, userID string, fn func(m *types.UserMemory)) error {
	if s.cache == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.Get(ctx, userID)
	fn(m)
	m.UpdatedAt = time.Now().Unix()
	return types.CacheSetJSON(ctx, s.cache, userMemoryKey(userID), m, s.ttl)
}

// AddSessionSummary summarizes the messages with the cheap model and appends
// the digest to the user's memory.
func (s *UserMemoryService) AddSessionSummary(ctx context.Context, userID, sessionID string, history []*types.Message) (string, error) {
	var sb strings.Builder
	for _, m := range history {
		if m.Role == types.ROLE_SYSTEM || strings.TrimSpace(m.Content) == "" {
			continue
		}
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return "", nil
	}

	summary, err := ai.CompleteText(ctx, s.ai.Cheap(), sessionSummaryPrompt, sb.String())
	if err != nil {
		return "", err
	}
	err = s.update(ctx, userID, func(m *types.UserMemory) {
		m.Summaries = lo.Filter(m.Summaries, func(item types.SessionSummary, _ int) bool {
			return item.SessionID != sessionID
		})
		m.Summaries = append(m.Summaries, types.SessionSummary{
			SessionID: sessionID,
			Summary:   summary,
			CreatedAt: time.Now().Unix(),
		})
		if n := len(m.Summaries); n > types.USER_MEMORY_MAX_SUMMARIES {
			m.Summaries = m.Summaries[n-types.USER_MEMORY_MAX_SUMMARIES:]
		}
	})
	return summary, err
}

func (s *UserMemoryService) RecordSuccessfulPrompt(ctx context.Context, userID, prompt, url string, assetType types.AssetType, score float64) error {
	if strings.TrimSpace(prompt) == "" {
		return nil
	}
	return s.update(ctx, userID, func(m *types.UserMemory) {
		m.SuccessfulPrompts = lo.Filter(m.SuccessfulPrompts, func(item types.SuccessfulPrompt, _ int) bool {
			return item.URL != url || url == ""
		})
		m.SuccessfulPrompts = append(m.SuccessfulPrompts, types.SuccessfulPrompt{
			Prompt:    prompt,
			URL:       url,
			Score:     score,
			Type:      assetType,
			CreatedAt: time.Now().Unix(),
		})
		if n := len(m.SuccessfulPrompts); n > types.USER_MEMORY_MAX_PROMPTS {
			m.SuccessfulPrompts = m.SuccessfulPrompts[n-types.USER_MEMORY_MAX_PROMPTS:]
		}
	})
}

func (s *UserMemoryService) SetPreference(ctx context.Context, userID, key, value string) error {
	return s.update(ctx, userID, func(m *types.UserMemory) {
		m.Preferences[key] = value
	})
}

func (s *UserMemoryService) SetStylePreference(ctx context.Context, userID, key, value string) error {
	return s.update(ctx, userID, func(m *types.UserMemory) {
		m.StylePreferences[key] = value
	})
}

func (s *UserMemoryService) AddCoreMemory(ctx context.Context, userID, fact string) error {
	fact = strings.TrimSpace(fact)
	return s.update(ctx, userID, func(m *types.UserMemory) {
		if !lo.Contains(m.CoreMemories, fact) {
			m.CoreMemories = append(m.CoreMemories, fact)
		}
	})
}

// DeleteCoreMemory removes every fact containing match, case-insensitively,
// and reports how many were removed.
func (s *UserMemoryService) DeleteCoreMemory(ctx context.Context, userID, match string) (int, error) {
	match = strings.ToLower(strings.TrimSpace(match))
	removed := 0
	err := s.update(ctx, userID, func(m *types.UserMemory) {
		kept := m.CoreMemories[:0]
		for _, f := range m.CoreMemories {
			if match != "" && strings.Contains(strings.ToLower(f), match) {
				removed++
				continue
			}
			kept = append(kept, f)
		}
		m.CoreMemories = kept
	})
	return removed, err
}

func (s *UserMemoryService) ClearCoreMemories(ctx context.Context, userID string) error {
	return s.update(ctx, userID, func(m *types.UserMemory) {
		m.CoreMemories = nil
	})
}

// BuildMemoryContext renders the compact cross-project block of the system prompt.
func (s *UserMemoryService) BuildMemoryContext(ctx context.Context, userID string) string {
	m := s.Get(ctx, userID)

	var sb strings.Builder
	if len(m.CoreMemories) > 0 {
		sb.WriteString("Facts about the user (treat as true):\n")
		for _, f := range m.CoreMemories {
			sb.WriteString("- " + f + "\n")
		}
	}
	if len(m.Summaries) > 0 {
		sb.WriteString("Recent projects:\n")
		for _, item := range lo.Slice(m.Summaries, max(0, len(m.Summaries)-5), len(m.Summaries)) {
			sb.WriteString("- " + item.Summary + "\n")
		}
	}
	if len(m.Preferences) > 0 {
		sb.WriteString("Known preferences:\n")
		writeSortedPairs(&sb, m.Preferences)
	}
	if len(m.SuccessfulPrompts) > 0 {
		top := append([]types.SuccessfulPrompt(nil), m.SuccessfulPrompts...)
		sort.SliceStable(top, func(i, j int) bool { return top[i].Score > top[j].Score })
		sb.WriteString("Prompts that worked well:\n")
		for _, p := range lo.Slice(top, 0, 3) {
			sb.WriteString(fmt.Sprintf("- [%s] %s\n", p.Type, utils.Prefix(p.Prompt, 160)))
		}
	}
	if len(m.StylePreferences) > 0 {
		sb.WriteString("Style preferences:\n")
		writeSortedPairs(&sb, m.StylePreferences)
	}
	if sb.Len() == 0 {
		return ""
	}
	return "## Cross-project memory\n" + sb.String()
}

func writeSortedPairs(sb *strings.Builder, m map[string]string) {
	keys := lo.Keys(m)
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", k, m[k]))
	}
}
