package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/atelier-studio/atelier/pkg/ai"
	"github.com/atelier-studio/atelier/pkg/i18n"
	"github.com/atelier-studio/atelier/pkg/types"
)

const (
	maxToolRounds  = 3
	chatTaskType   = "chat"
	statusTools    = "tools-running"
	statusStopped  = "stopped"
	chatMetricName = "chat"
)

var (
	// \b is ascii only, so the turkish stems anchor on a non-letter instead
	editIntentCue = regexp.MustCompile(`(?i)(\b(change|add|remove|make|replace|put|turn|erase|delete)\b|background|(?:^|[^\p{L}])(arka ?plan|yap|değiştir|ekle|sil|kaldır|koy|çıkar))`)
	refusalCue    = regexp.MustCompile(`(?i)(sorry|cannot|can't|can not|unable to|not able to|yapamam|üzgünüm|maalesef|yardımcı olamam|tanımlayamıyorum|mümkün değil)`)
)

type turnState string

const (
	STATE_INITIAL            turnState = "initial"
	STATE_STREAMING          turnState = "streaming"
	STATE_TOOLS_PENDING      turnState = "tools_pending"
	STATE_TOOL_EXECUTING     turnState = "tool_executing"
	STATE_RETRY              turnState = "retry"
	STATE_AUTO_EDIT_FALLBACK turnState = "auto_edit_fallback"
	STATE_DONE               turnState = "done"
)

// ChatInput is one user message with whatever came attached to it.
type ChatInput struct {
	UserID    string
	SessionID string
	Message   string
	Lang      string
	// Images are urls or base64 payloads uploaded with the message.
	Images             []string
	PriorReferenceURLs []string
}

type TurnOutcome struct {
	SessionID string
	MessageID string
	Content   string
	Results   []*types.ToolResult
	Stopped   bool
}

// StudioAssistant drives one conversational turn: it streams the model,
// executes the tools it asks for and publishes everything on the bus.
type StudioAssistant struct {
	studio *Studio
}

func NewStudioAssistant(s *Studio) *StudioAssistant {
	return &StudioAssistant{studio: s}
}

type turn struct {
	*TurnContext
	assistant *StudioAssistant
	state     turnState

	buffered   bool
	buffer     strings.Builder
	content    strings.Builder
	transcript []types.LLMMessage
	results    []*types.ToolResult
	traces     []types.ToolCallTrace
	started    []types.AssetType
	retries    int
	rounds     int
}

func (t *turn) to(s turnState) {
	slog.Debug("turn state", slog.String("session_id", t.SessionID), slog.String("from", string(t.state)), slog.String("to", string(s)))
	t.state = s
}

func (a *StudioAssistant) emit(ctx context.Context, sessionID string, ev types.Event) {
	a.studio.bus.Emit(ctx, sessionID, ev)
}

// RequestAssistant runs the turn to completion. Events go to the session on
// the progress bus, so callers register their subscriber before calling.
func (a *StudioAssistant) RequestAssistant(ctx context.Context, in ChatInput) (*TurnOutcome, error) {
	s := a.studio
	chat := s.core.Srv().AI().Chat()
	if chat == nil {
		return nil, fmt.Errorf("chat model is not configured")
	}

	session, err := NewSessionLogic(WithUser(ctx, in.UserID, in.Lang), s.core).Ensure(in.SessionID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	release := s.trackStream(session.ID, cancel)
	defer release()

	t := &turn{
		TurnContext: s.NewTurnContext(ctx, in.UserID, session.ID, in.Lang),
		assistant:   a,
		state:       STATE_INITIAL,
	}
	t.UserMessage = in.Message

	history, err := NewMessageLogic(t, s.core).Recent(session.ID, 0)
	if err != nil {
		slog.Warn("failed to load history, starting fresh", slog.String("session_id", session.ID), slog.Any("error", err))
	}

	assembled := NewContextAssembler(s).Assemble(t, TurnInput{UserID: in.UserID, SessionID: session.ID, Message: in.Message, Lang: t.Lang})
	t.Entities = assembled.Entities
	t.Prefs = assembled.Prefs
	t.WorkingMemory = assembled.WorkingMemory

	// the last render only feeds edits, it is never an identity reference
	lastImage := lastGeneratedImage(t.WorkingMemory, history)
	t.Refs = NewReferenceResolver(s.core).Resolve(t, in.UserID, session.ID, in.Images, lo.Without(in.PriorReferenceURLs, lastImage))
	t.Refs.LastGenerated = lastImage

	if _, err = NewMessageLogic(t, s.core).Append(types.Message{
		SessionID: session.ID,
		UserID:    in.UserID,
		Role:      types.ROLE_USER,
		Content:   in.Message,
		Metadata: types.MessageMeta{
			UploadedImageURLs: t.Refs.Uploaded,
			ReferenceURLs:     t.Refs.All,
		},
	}); err != nil {
		slog.Error("failed to save user message", slog.String("session_id", session.ID), slog.Any("error", err))
	}

	compactor := NewCompactor(s.core.Srv().AI().Cheap(), s.core.Cfg().Studio)
	t.transcript = append(compactor.Compact(t, history), userMessage(in.Message, t.Refs))
	t.buffered = t.Refs.HasAny() || editIntentCue.MatchString(in.Message)

	runErr := t.run(chat, assembled.Prompt)
	return t.finish(runErr)
}

// userMessage carries the images of the turn and the hint listing every
// reference url the model may pass to tools.
func userMessage(text string, refs types.ResolvedReferences) types.LLMMessage {
	msg := types.LLMMessage{Role: types.ROLE_USER, Content: text}
	if !refs.HasAny() && refs.LastGenerated == "" {
		return msg
	}
	var hint strings.Builder
	hint.WriteString(referenceHintPrefix + "\n")
	if refs.Primary != "" {
		hint.WriteString("- current image: " + refs.Primary + "\n")
	}
	for _, u := range refs.Uploaded {
		hint.WriteString("- uploaded: " + u + "\n")
	}
	for _, u := range lo.Without(refs.All, append([]string{refs.Primary}, refs.Uploaded...)...) {
		hint.WriteString("- reference: " + u + "\n")
	}
	if refs.LastGenerated != "" && refs.LastGenerated != refs.Primary {
		hint.WriteString("- last generated: " + refs.LastGenerated + "\n")
	}

	msg.Parts = []types.ChatMessagePart{{Type: types.PART_TEXT, Text: text}}
	for _, u := range refs.Uploaded {
		msg.Parts = append(msg.Parts, types.ChatMessagePart{Type: types.PART_IMAGE, ImageURL: u})
	}
	msg.Parts = append(msg.Parts, types.ChatMessagePart{Type: types.PART_TEXT, Text: hint.String()})
	msg.Content = text + "\n\n" + hint.String()
	return msg
}

func (t *turn) run(chat ai.ChatModel, system string) error {
	s := t.assistant.studio
	specs := s.registry.Specs(func(tool *Tool) bool { return FamilyEnabled(t.Prefs, tool.Family) })
	choice := types.TOOL_CHOICE_AUTO
	maxRetries := min(s.core.Cfg().Studio.MaxToolRetries, maxToolRounds-1)

	for {
		req := ai.ChatRequest{System: system, Messages: t.transcript, Tools: specs, ToolChoice: choice}
		if t.rounds >= maxToolRounds {
			// out of rounds: one last reply in words only
			req.Tools, req.ToolChoice = nil, types.TOOL_CHOICE_NONE
		}

		t.to(STATE_STREAMING)
		text, calls, err := t.stream(chat, req)
		if err != nil {
			return err
		}
		if len(calls) == 0 || t.rounds >= maxToolRounds {
			if t.rounds == 0 && t.autoEdit(text) {
				return nil
			}
			t.flush()
			return nil
		}
		t.flush()

		t.to(STATE_TOOLS_PENDING)
		t.rounds++
		t.executeTools(text, calls)

		last := t.results[len(t.results)-1]
		if !last.Success && !t.producedBefore(len(t.results)-1) && t.retries < maxRetries && t.rounds < maxToolRounds {
			t.to(STATE_RETRY)
			t.retries++
			t.transcript = append(t.transcript, types.LLMMessage{Role: types.ROLE_USER, Content: retryDirective})
			choice = types.TOOL_CHOICE_REQUIRED
			continue
		}
		choice = types.TOOL_CHOICE_AUTO
	}
}

// producedBefore reports whether any of the first n results of the turn made
// media or an entity. Earlier calls of the same round count.
func (t *turn) producedBefore(n int) bool {
	return lo.ContainsBy(t.results[:n], func(r *types.ToolResult) bool { return r.ProducedMedia() || r.ProducedEntity() })
}

// stream runs one completion. Text goes out as token events unless the turn
// buffers it.
func (t *turn) stream(chat ai.ChatModel, req ai.ChatRequest) (string, []types.ToolCall, error) {
	s := t.assistant.studio
	metrics := s.core.Metrics()
	timer := metrics.LLMRequestTimer(chatMetricName)
	defer timer.ObserveDuration()

	resp, err := chat.Stream(t, req)
	if err != nil {
		metrics.LLMErrorInc(chatMetricName)
		return "", nil, err
	}

	var text strings.Builder
	acc := ai.NewToolCallAccumulator()
	for msg := range resp {
		if msg.Error != nil {
			metrics.LLMErrorInc(chatMetricName)
			return text.String(), nil, msg.Error
		}
		if msg.Usage != nil {
			metrics.LLMTokensAdd(chatMetricName, msg.Usage.PromptTokens, msg.Usage.CompletionTokens)
		}
		if msg.Chunk.ToolCall != nil {
			acc.Add(*msg.Chunk.ToolCall)
		}
		if msg.Chunk.Text != "" {
			text.WriteString(msg.Chunk.Text)
			t.token(msg.Chunk.Text)
		}
	}
	if err = t.Err(); err != nil {
		return text.String(), nil, err
	}
	return text.String(), acc.Calls(), nil
}

func (t *turn) token(text string) {
	if t.buffered {
		t.buffer.WriteString(text)
		return
	}
	t.content.WriteString(text)
	t.assistant.emit(t, t.SessionID, types.NewEvent(types.EVENT_TOKEN, text))
}

func (t *turn) flush() {
	if t.buffer.Len() == 0 {
		return
	}
	text := t.buffer.String()
	t.buffer.Reset()
	t.content.WriteString(text)
	t.assistant.emit(t, t.SessionID, types.NewEvent(types.EVENT_TOKEN, text))
}

func (t *turn) executeTools(text string, calls []types.ToolCall) {
	s := t.assistant.studio
	t.assistant.emit(t, t.SessionID, types.NewEvent(types.EVENT_STATUS, statusTools))

	var starts []types.GenerationStartItem
	for _, call := range calls {
		tool, ok := s.registry.Get(call.Name)
		if !ok || !tool.Is(TOOL_CAP_GENERATION) || tool.Produces == "" {
			continue
		}
		args, _ := ParseArgs(call.Arguments)
		starts = append(starts, types.GenerationStartItem{Type: tool.Produces, Prompt: args.String("prompt"), Duration: args.Int("duration", 0)})
		t.started = append(t.started, tool.Produces)
	}
	if len(starts) > 0 {
		t.assistant.emit(t, t.SessionID, types.NewEvent(types.EVENT_GENERATION_START, starts))
	}

	t.transcript = append(t.transcript, types.LLMMessage{Role: types.ROLE_ASSISTANT, Content: text, ToolCalls: calls})
	t.to(STATE_TOOL_EXECUTING)
	for _, call := range calls {
		res := t.dispatch(call.Name, call.Arguments)
		t.traces = append(t.traces, types.ToolCallTrace{ID: call.ID, Name: call.Name, Arguments: call.Arguments, Success: res.Success})
		t.transcript = append(t.transcript, types.LLMMessage{
			Role:       types.ROLE_TOOL,
			ToolCallID: call.ID,
			Name:       call.Name,
			Content:    toolMessage(res),
		})
	}
}

func (t *turn) dispatch(name, arguments string) *types.ToolResult {
	res, err := t.assistant.studio.dispatcher.Dispatch(t.TurnContext, name, arguments)
	if err != nil {
		slog.Error("tool crashed", slog.String("tool", name), slog.String("session_id", t.SessionID), slog.Any("error", err))
		res = types.ToolFailure("the tool failed unexpectedly: " + err.Error())
	}
	t.results = append(t.results, res)
	return res
}

func toolMessage(res *types.ToolResult) string {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf(`{"success":%t,"error":"unencodable result"}`, res.Success)
	}
	return string(raw)
}

// autoEdit replaces a refusal of a plain edit request on an image the user
// owns with a direct edit call. It reports whether it took over the reply.
func (t *turn) autoEdit(text string) bool {
	if !editIntentCue.MatchString(t.UserMessage) || !refusalCue.MatchString(text) {
		return false
	}
	target := t.Refs.LastGenerated
	if len(t.Refs.Uploaded) > 0 {
		target = t.Refs.Uploaded[0]
	} else if target == "" {
		target = t.Refs.Primary
	}
	if target == "" {
		return false
	}
	t.to(STATE_AUTO_EDIT_FALLBACK)
	slog.Info("llm refused an edit, editing directly", slog.String("session_id", t.SessionID), slog.String("image_url", target))

	args := map[string]any{"image_url": target, "prompt": t.UserMessage}
	if len(t.Refs.Uploaded) > 0 && t.Refs.Uploaded[0] != target {
		args["face_reference_url"] = t.Refs.Uploaded[0]
	}
	raw, _ := json.Marshal(args)

	t.started = append(t.started, types.ASSET_IMAGE)
	t.assistant.emit(t, t.SessionID, types.NewEvent(types.EVENT_GENERATION_START, []types.GenerationStartItem{{Type: types.ASSET_IMAGE, Prompt: t.UserMessage}}))
	res := t.dispatch(TOOL_EDIT_IMAGE, string(raw))
	t.traces = append(t.traces, types.ToolCallTrace{Name: TOOL_EDIT_IMAGE, Arguments: string(raw), Success: res.Success})
	if !res.Success {
		// nothing better to show than what the model said
		t.flush()
		return true
	}
	t.buffer.Reset()
	t.content.WriteString(t.T(i18n.MESSAGE_EDIT_APPLIED, nil))
	t.assistant.emit(t, t.SessionID, types.NewEvent(types.EVENT_TOKEN, t.content.String()))
	return true
}

// finish publishes the collected results, persists the assistant message
// and closes the turn with done.
func (t *turn) finish(runErr error) (*TurnOutcome, error) {
	s := t.assistant.studio
	stopped := runErr != nil && t.Err() != nil
	scope := t.Detached()
	emit := func(ev types.Event) { t.assistant.emit(scope, t.SessionID, ev) }

	var (
		assets    []types.AssetEventItem
		videos    []types.VideoEventItem
		entities  []types.EntityEventItem
		generated []string
		assetIDs  []string
		inflight  []types.AssetType
	)
	for _, r := range t.results {
		if r.IsBackgroundTask && r.BgGeneration != nil {
			inflight = append(inflight, r.BgGeneration.Type)
		}
		if r.ProducedMedia() {
			items := append([]types.MediaItem{}, r.Media...)
			if r.AssetURL != "" {
				items = append([]types.MediaItem{{AssetID: r.AssetID, URL: r.AssetURL, ThumbnailURL: r.ThumbnailURL, Type: r.AssetType, Prompt: r.Prompt}}, items...)
			}
			for _, m := range items {
				switch m.Type {
				case types.ASSET_VIDEO:
					videos = append(videos, types.VideoEventItem{URL: m.URL, Prompt: m.Prompt, ThumbnailURL: m.ThumbnailURL})
				case types.ASSET_IMAGE:
					assets = append(assets, types.AssetEventItem{URL: m.URL, Prompt: m.Prompt})
				}
				generated = append(generated, m.URL)
				if m.AssetID != "" {
					assetIDs = append(assetIDs, m.AssetID)
				}
			}
		}
		if r.ProducedEntity() {
			list := r.Entities
			if r.Entity != nil {
				list = append([]*types.Entity{r.Entity}, list...)
			}
			entities = append(entities, entityEventItems(list)...)
		}
	}
	if len(assets) > 0 {
		emit(types.NewEvent(types.EVENT_ASSETS, assets))
	}
	if len(videos) > 0 {
		emit(types.NewEvent(types.EVENT_VIDEOS, videos))
	}
	if len(entities) > 0 {
		emit(types.NewEvent(types.EVENT_ENTITIES, lo.UniqBy(entities, func(e types.EntityEventItem) string { return e.ID })))
	}
	for _, typ := range lo.Uniq(t.started) {
		if lo.Contains(inflight, typ) && !lo.ContainsBy(t.results, func(r *types.ToolResult) bool { return r.AssetType == typ && r.ProducedMedia() }) {
			// the background job closes its own card
			continue
		}
		emit(types.NewEvent(types.EVENT_GENERATION_COMPLETE, types.GenerationCompleteItem{Type: typ}))
	}

	content := strings.TrimSpace(t.content.String() + t.buffer.String())
	meta := types.MessageMeta{GeneratedURLs: generated, AssetIDs: assetIDs, ToolCalls: t.traces}
	switch {
	case stopped:
		content = strings.TrimSpace(content + "\n\n" + t.T(i18n.MESSAGE_STREAM_STOPPED, nil))
		emit(types.NewEvent(types.EVENT_STATUS, statusStopped))
	case runErr != nil:
		slog.Error("turn failed", slog.String("session_id", t.SessionID), slog.String("state", string(t.state)), slog.Any("error", runErr))
		msg := t.T(i18n.MESSAGE_TURN_FAILED, nil)
		content = strings.TrimSpace(content + "\n\n" + msg)
		meta.IsError = true
		emit(types.Event{Type: types.EVENT_ERROR, TaskType: chatTaskType, Message: msg})
	}

	outcome := &TurnOutcome{SessionID: t.SessionID, Content: content, Results: t.results, Stopped: stopped}
	if content != "" || len(generated) > 0 {
		saved, err := NewMessageLogic(scope, s.core).AppendAssistant(t.SessionID, t.UserID, content, meta)
		if err != nil {
			slog.Error("failed to save assistant message", slog.String("session_id", t.SessionID), slog.Any("error", err))
		} else {
			outcome.MessageID = saved.ID
		}
	}

	t.to(STATE_DONE)
	emit(types.NewEvent(types.EVENT_DONE, struct{}{}))
	if runErr != nil && !stopped {
		return outcome, runErr
	}
	return outcome, nil
}
