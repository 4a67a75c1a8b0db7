package v1

import (
	"context"
	"log/slog"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/pkg/i18n"
	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/utils"
)

// Studio holds the process-scoped parts of the orchestration core: the tool
// catalog, the progress bus, the background runner and in-process memories.
// Request-scoped logic objects are built on top of it.
type Studio struct {
	core       *core.Core
	bus        *ProgressBus
	runner     *BackgroundRunner
	episodes   EpisodicMemory
	memory     *UserMemoryService
	registry   *ToolRegistry
	dispatcher *Dispatcher
	localizer  i18n.Localizer

	// active foreground streams by session, for stop requests
	streams cmap.ConcurrentMap[string, *streamHandle]
}

type streamHandle struct {
	id     string
	cancel context.CancelFunc
}

func NewStudio(core *core.Core) *Studio {
	cfg := core.Cfg().Studio
	s := &Studio{
		core:      core,
		localizer: i18n.NewLocalizer(types.LANGUAGE_TR_KEY, types.LANGUAGE_EN_KEY),
		streams:   cmap.New[*streamHandle](),
	}
	s.bus = NewProgressBus(core.Cache(), cfg.ProgressSnapshotTTL.Duration, core.Srv().Centrifuge(), core.Metrics())
	s.episodes = NewEpisodicBuffer(cfg.EpisodicCapacity)
	s.memory = NewUserMemoryService(core.Cache(), core.Srv().AI(), cfg.UserMemoryTTL.Duration)
	s.registry = NewToolRegistry(studioTools(s)...)
	s.dispatcher = NewDispatcher(s)
	s.runner = NewBackgroundRunner(s)
	s.runner.Register(types.JOB_VIDEO, s.runVideoJob)
	s.runner.Register(types.JOB_LONG_VIDEO, s.runLongVideoJob)
	return s
}

func (s *Studio) Core() *core.Core {
	return s.core
}

func (s *Studio) Bus() *ProgressBus {
	return s.bus
}

func (s *Studio) Runner() *BackgroundRunner {
	return s.runner
}

func (s *Studio) Registry() *ToolRegistry {
	return s.registry
}

func (s *Studio) Dispatcher() *Dispatcher {
	return s.dispatcher
}

func (s *Studio) Episodes() EpisodicMemory {
	return s.episodes
}

func (s *Studio) Memory() *UserMemoryService {
	return s.memory
}

func (s *Studio) Localizer() i18n.Localizer {
	return s.localizer
}

// StopStream cancels the foreground reply of a session. Background jobs keep running.
func (s *Studio) StopStream(sessionID string) bool {
	stopped := false
	if h, ok := s.streams.Pop(sessionID); ok {
		h.cancel()
		stopped = true
	}
	if c := s.core.Srv().Centrifuge(); c != nil {
		// other nodes may own the stream
		if c.NewCloseChatStreamSignal(sessionID) {
			stopped = true
		}
	}
	return stopped
}

func (s *Studio) trackStream(sessionID string, cancel context.CancelFunc) func() {
	h := &streamHandle{id: utils.GenRandomID(), cancel: cancel}
	s.streams.Set(sessionID, h)
	var unregister func()
	if c := s.core.Srv().Centrifuge(); c != nil {
		unregister = c.RegisterStreamSignal(sessionID, cancel)
	}
	return func() {
		// a newer turn may own the slot by now
		s.streams.RemoveCb(sessionID, func(key string, v *streamHandle, exists bool) bool {
			return exists && v.id == h.id
		})
		if unregister != nil {
			unregister()
		}
	}
}

// TurnContext is what tool handlers see of the running turn.
type TurnContext struct {
	*types.StudioContext
	studio *Studio

	UserMessage   string
	Refs          types.ResolvedReferences
	Entities      []*types.Entity
	Prefs         *types.UserPreferences
	WorkingMemory []*types.GeneratedAsset
}

func (s *Studio) NewTurnContext(ctx context.Context, userID, sessionID, lang string) *TurnContext {
	if lang == "" {
		lang = i18n.DEFAULT_LANG
	}
	return &TurnContext{
		StudioContext: types.NewStudioContext(WithUser(ctx, userID, lang), userID, sessionID, lang),
		studio:        s,
	}
}

func (tc *TurnContext) WithContext(ctx context.Context) *TurnContext {
	n := *tc
	sc := *tc.StudioContext
	sc.Context = ctx
	n.StudioContext = &sc
	return &n
}

func (tc *TurnContext) Core() *core.Core {
	return tc.studio.core
}

func (tc *TurnContext) T(id string, data map[string]any) string {
	return tc.studio.localizer.GetWithData(tc.Lang, id, data)
}

// Preferences loads the user preferences once per turn.
func (tc *TurnContext) Preferences() *types.UserPreferences {
	if tc.Prefs == nil {
		prefs, err := NewPreferenceLogic(tc, tc.Core()).Get(tc.UserID)
		if err != nil {
			slog.Warn("failed to load preferences, using defaults", slog.String("user_id", tc.UserID), slog.Any("error", err))
			prefs = types.DefaultPreferences(tc.UserID)
		}
		tc.Prefs = prefs
	}
	return tc.Prefs
}

func (tc *TurnContext) entityIDs() []string {
	ids := make([]string, 0, len(tc.Entities))
	for _, e := range tc.Entities {
		ids = append(ids, e.ID)
	}
	return ids
}
