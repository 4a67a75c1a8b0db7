package v1

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/ai"
	"github.com/atelier-studio/atelier/pkg/types"
)

// runTurn registers a subscriber on sessionID, runs one turn and returns
// what the subscriber saw.
func runTurn(t *testing.T, f *studioFixture, in ChatInput) (*TurnOutcome, []types.Event, error) {
	t.Helper()
	sub := NewChanSubscriber(0)
	f.studio.Bus().Register(in.SessionID, sub)
	defer f.studio.Bus().Unregister(in.SessionID, sub)

	if in.UserID == "" {
		in.UserID = "u1"
	}
	if in.Lang == "" {
		in.Lang = types.LANGUAGE_EN_KEY
	}
	out, err := NewStudioAssistant(f.studio).RequestAssistant(context.Background(), in)
	return out, collect(sub), err
}

func TestTurnStreamsTextThenDone(t *testing.T) {
	f := newTestStudio(t)
	f.chat.rounds = [][]ai.ResponseChoice{textRound("Hello", " there.")}

	out, events, err := runTurn(t, f, ChatInput{SessionID: "s-text", Message: "hello, what can you do"})
	require.NoError(t, err)
	assert.Equal(t, []types.EventType{types.EVENT_TOKEN, types.EVENT_TOKEN, types.EVENT_DONE}, eventTypes(events))
	assert.Equal(t, "Hello there.", tokenText(events))
	assert.Equal(t, "Hello there.", out.Content)
	assert.NotEmpty(t, out.MessageID)

	history, err := NewMessageLogic(WithUser(context.Background(), "u1", "en"), f.studio.core).Recent("s-text", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, types.ROLE_USER, history[0].Role)
	assert.Equal(t, types.ROLE_ASSISTANT, history[1].Role)
	assert.Equal(t, "Hello there.", history[1].Content)

	reqs := f.chat.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, types.TOOL_CHOICE_AUTO, reqs[0].ToolChoice)
	assert.NotEmpty(t, reqs[0].Tools)
	assert.Contains(t, reqs[0].System, "## User preferences")
}

func TestTurnExecutesToolRound(t *testing.T) {
	f := newTestStudio(t)
	f.chat.rounds = [][]ai.ResponseChoice{
		toolRound(types.ToolCall{ID: "call_1", Name: TOOL_GENERATE_IMAGE, Arguments: argsJSON(t, map[string]any{"prompt": longPrompt})}),
		textRound("Here is your lighthouse."),
	}

	out, events, err := runTurn(t, f, ChatInput{SessionID: "s-tools", Message: "draw a lighthouse for me please"})
	require.NoError(t, err)
	assert.Equal(t, []types.EventType{
		types.EVENT_STATUS,
		types.EVENT_GENERATION_START,
		types.EVENT_TOKEN,
		types.EVENT_ASSETS,
		types.EVENT_GENERATION_COMPLETE,
		types.EVENT_DONE,
	}, eventTypes(events))

	assets, ok := events[3].Data.([]types.AssetEventItem)
	require.True(t, ok)
	require.Len(t, assets, 1)
	assert.Equal(t, "https://cdn.test/flux-2-pro.png", assets[0].URL)

	require.Len(t, out.Results, 1)
	assert.True(t, out.Results[0].Success)
	assert.Equal(t, "Here is your lighthouse.", out.Content)

	history, err := NewMessageLogic(WithUser(context.Background(), "u1", "en"), f.studio.core).Recent("s-tools", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Contains(t, history[1].Content, GENERATED_MARKER+" https://cdn.test/flux-2-pro.png")
	assert.Equal(t, []string{out.Results[0].AssetID}, history[1].Metadata.AssetIDs)

	reqs := f.chat.Requests()
	require.Len(t, reqs, 2)
	msgs := reqs[1].Messages
	toolMsg := msgs[len(msgs)-1]
	assert.Equal(t, types.ROLE_TOOL, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.Contains(t, toolMsg.Content, `"success":true`)
	assert.Len(t, msgs[len(msgs)-2].ToolCalls, 1)
}

func TestTurnRetriesFailedToolWithDirective(t *testing.T) {
	f := newTestStudio(t)
	f.chat.rounds = [][]ai.ResponseChoice{
		toolRound(types.ToolCall{ID: "call_1", Name: TOOL_GENERATE_IMAGE, Arguments: `{}`}),
		toolRound(types.ToolCall{ID: "call_2", Name: TOOL_GENERATE_IMAGE, Arguments: argsJSON(t, map[string]any{"prompt": longPrompt})}),
		textRound("Done."),
	}

	out, _, err := runTurn(t, f, ChatInput{SessionID: "s-retry", Message: "draw a lighthouse for me please"})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.False(t, out.Results[0].Success)
	assert.True(t, out.Results[1].Success)

	reqs := f.chat.Requests()
	require.Len(t, reqs, 3)
	retry := reqs[1]
	assert.Equal(t, types.TOOL_CHOICE_REQUIRED, retry.ToolChoice)
	last := retry.Messages[len(retry.Messages)-1]
	assert.Equal(t, types.ROLE_USER, last.Role)
	assert.Equal(t, retryDirective, last.Content)
	assert.Equal(t, types.TOOL_CHOICE_AUTO, reqs[2].ToolChoice)
}

func TestTurnStopsOfferingToolsAfterMaxRounds(t *testing.T) {
	f := newTestStudio(t)
	list := types.ToolCall{ID: "call", Name: "list_entities", Arguments: `{}`}
	f.chat.rounds = [][]ai.ResponseChoice{
		toolRound(list), toolRound(list), toolRound(list),
		textRound("That is everything."),
	}

	out, _, err := runTurn(t, f, ChatInput{SessionID: "s-rounds", Message: "show what is saved"})
	require.NoError(t, err)
	assert.Len(t, out.Results, maxToolRounds)
	assert.Equal(t, "That is everything.", out.Content)

	reqs := f.chat.Requests()
	require.Len(t, reqs, maxToolRounds+1)
	final := reqs[maxToolRounds]
	assert.Nil(t, final.Tools)
	assert.Equal(t, types.TOOL_CHOICE_NONE, final.ToolChoice)
}

func TestTurnAutoEditsOnRefusal(t *testing.T) {
	f := newTestStudio(t)
	f.chat.rounds = [][]ai.ResponseChoice{textRound("Sorry, I cannot edit photos of real people.")}

	out, events, err := runTurn(t, f, ChatInput{
		SessionID: "s-edit",
		Message:   "change the background to a beach",
		Images:    []string{"https://img.test/me.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, []types.EventType{
		types.EVENT_GENERATION_START,
		types.EVENT_TOKEN,
		types.EVENT_ASSETS,
		types.EVENT_GENERATION_COMPLETE,
		types.EVENT_DONE,
	}, eventTypes(events))
	assert.Equal(t, "I applied the edit, the result is below.", tokenText(events))
	assert.NotContains(t, out.Content, "Sorry")

	require.Len(t, out.Results, 1)
	assert.True(t, out.Results[0].Success)
	call, ok := f.vendor.lastCall(endpointNanoBanana)
	require.True(t, ok)
	assert.Equal(t, []string{"https://img.test/me.png"}, call.Args["image_urls"])

	// the upload became the session reference
	slot := NewReferenceResolver(f.studio.core).Slot(context.Background(), "s-edit")
	require.NotNil(t, slot)
	assert.Equal(t, "https://img.test/me.png", slot.URL)
}

func TestTurnBuffersTextWhenReferencesExist(t *testing.T) {
	f := newTestStudio(t)
	f.chat.rounds = [][]ai.ResponseChoice{textRound("Nice ", "photo!")}

	_, events, err := runTurn(t, f, ChatInput{
		SessionID: "s-buffer",
		Message:   "what do you think of this",
		Images:    []string{"https://img.test/me.png"},
	})
	require.NoError(t, err)
	// one flushed token instead of two streamed ones
	assert.Equal(t, []types.EventType{types.EVENT_TOKEN, types.EVENT_DONE}, eventTypes(events))
	assert.Equal(t, "Nice photo!", tokenText(events))

	reqs := f.chat.Requests()
	require.Len(t, reqs, 1)
	user := reqs[0].Messages[len(reqs[0].Messages)-1]
	assert.Contains(t, user.Content, referenceHintPrefix)
	assert.Contains(t, user.Content, "- uploaded: https://img.test/me.png")
}

func TestTurnModelErrorEndsWithErrorEvent(t *testing.T) {
	f := newTestStudio(t)
	f.chat.rounds = [][]ai.ResponseChoice{
		append(textRound("Let me "), ai.ResponseChoice{Error: errors.New("upstream reset")}),
	}

	out, events, err := runTurn(t, f, ChatInput{SessionID: "s-error", Message: "hello, what can you do"})
	require.Error(t, err)
	require.NotNil(t, out)
	kinds := eventTypes(events)
	assert.Equal(t, []types.EventType{types.EVENT_TOKEN, types.EVENT_ERROR, types.EVENT_DONE}, kinds)
	assert.Equal(t, "Sorry, something went wrong while handling your request.", events[len(events)-2].Message)
	assert.Contains(t, out.Content, "Sorry, something went wrong")

	history, herr := NewMessageLogic(WithUser(context.Background(), "u1", "en"), f.studio.core).Recent("s-error", 0)
	require.NoError(t, herr)
	require.Len(t, history, 2)
	assert.True(t, history[1].Metadata.IsError)
}

func TestTurnRejectsForeignSession(t *testing.T) {
	f := newTestStudio(t)
	_, _, err := runTurn(t, f, ChatInput{UserID: "owner", SessionID: "s-owned", Message: "hello, what can you do"})
	require.NoError(t, err)

	_, _, err = runTurn(t, f, ChatInput{UserID: "intruder", SessionID: "s-owned", Message: "hello, what can you do"})
	assert.Error(t, err)
}

func TestTurnSkipsRetryAfterEarlierSuccessInSameRound(t *testing.T) {
	f := newTestStudio(t)
	f.chat.rounds = [][]ai.ResponseChoice{
		toolRound(
			types.ToolCall{ID: "call_1", Name: TOOL_GENERATE_IMAGE, Arguments: argsJSON(t, map[string]any{"prompt": longPrompt})},
			types.ToolCall{ID: "call_2", Name: TOOL_GENERATE_IMAGE, Arguments: `{}`},
		),
		textRound("Here is the first one."),
	}

	out, _, err := runTurn(t, f, ChatInput{SessionID: "s-partial", Message: "draw two lighthouses for me please"})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.True(t, out.Results[0].Success)
	assert.False(t, out.Results[1].Success)

	reqs := f.chat.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, types.TOOL_CHOICE_AUTO, reqs[1].ToolChoice)
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	assert.Equal(t, types.ROLE_TOOL, last.Role)
	assert.Equal(t, "call_2", last.ToolCallID)
	// one render only
	assert.Equal(t, []string{"fal-ai/flux-2-pro"}, f.vendor.endpoints())
}

func TestTurnLastRenderIsNotAnIdentityReference(t *testing.T) {
	f := newTestStudio(t)
	f.chat.rounds = [][]ai.ResponseChoice{
		toolRound(types.ToolCall{ID: "call_1", Name: TOOL_GENERATE_IMAGE, Arguments: argsJSON(t, map[string]any{"prompt": longPrompt})}),
		textRound("Here is your lighthouse."),
		toolRound(types.ToolCall{ID: "call_2", Name: TOOL_GENERATE_IMAGE, Arguments: argsJSON(t, map[string]any{"prompt": longPrompt + ", a cat on a sofa in the foreground"})}),
		textRound("Here is the cat."),
	}

	_, _, err := runTurn(t, f, ChatInput{SessionID: "s-fresh", Message: "draw a lighthouse for me please"})
	require.NoError(t, err)
	out, _, err := runTurn(t, f, ChatInput{SessionID: "s-fresh", Message: "now draw a cat on a sofa"})
	require.NoError(t, err)

	require.Len(t, out.Results, 1)
	assert.True(t, out.Results[0].Success)
	assert.Equal(t, []string{"fal-ai/flux-2-pro", "fal-ai/flux-2-pro"}, f.vendor.endpoints())

	// the model still learns about the render for follow-up edits
	reqs := f.chat.Requests()
	require.Len(t, reqs, 4)
	var user types.LLMMessage
	for _, m := range reqs[2].Messages {
		if m.Role == types.ROLE_USER {
			user = m
		}
	}
	assert.Contains(t, user.Content, "- last generated: https://cdn.test/flux-2-pro.png")
	assert.NotContains(t, user.Content, "- current image:")
}

func TestTurnAutoEditsLastRenderWithoutUpload(t *testing.T) {
	f := newTestStudio(t)
	f.chat.rounds = [][]ai.ResponseChoice{
		toolRound(types.ToolCall{ID: "call_1", Name: TOOL_GENERATE_IMAGE, Arguments: argsJSON(t, map[string]any{"prompt": longPrompt})}),
		textRound("Here is your lighthouse."),
		textRound("Sorry, I cannot change that image."),
	}

	_, _, err := runTurn(t, f, ChatInput{SessionID: "s-followup", Message: "draw a lighthouse for me please"})
	require.NoError(t, err)
	out, events, err := runTurn(t, f, ChatInput{SessionID: "s-followup", Message: "change the background to a beach"})
	require.NoError(t, err)

	assert.Equal(t, "I applied the edit, the result is below.", tokenText(events))
	assert.NotContains(t, out.Content, "Sorry")
	require.Len(t, out.Results, 1)
	assert.True(t, out.Results[0].Success)

	call, ok := f.vendor.lastCall(endpointNanoBanana)
	require.True(t, ok)
	assert.Equal(t, []string{"https://cdn.test/flux-2-pro.png"}, call.Args["image_urls"])
}

func TestEditIntentCue(t *testing.T) {
	for msg, want := range map[string]bool{
		"change the background to a beach": true,
		"arka planı sil":                   true,
		"Şapkayı kaldır":                   true,
		"gözlüğü çıkar lütfen":             true,
		"bunu daha parlak yap":             true,
		"basil pesto for the poster copy":  false,
		"a cosy kitchen with a teapot":     false,
		"hello, what can you do":           false,
	} {
		assert.Equal(t, want, editIntentCue.MatchString(msg), msg)
	}
}
