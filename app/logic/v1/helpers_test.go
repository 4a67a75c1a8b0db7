package v1

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/app/core/srv"
	"github.com/atelier-studio/atelier/pkg/ai"
	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/vendor"
)

// longPrompt skips the enrichment pass, which only runs on short prompts.
const longPrompt = "A cinematic wide shot of a lighthouse on a rocky coast at dusk, waves crashing, warm light in the windows, volumetric fog"

// scriptedChat replays one scripted stream per Stream call and answers
// Complete with complete, or by echoing the user text.
type scriptedChat struct {
	mu       sync.Mutex
	rounds   [][]ai.ResponseChoice
	requests []ai.ChatRequest
	complete func(req ai.ChatRequest) (string, error)
}

func (m *scriptedChat) ModelName() string {
	return "gpt-4o"
}

func (m *scriptedChat) Stream(ctx context.Context, req ai.ChatRequest) (<-chan ai.ResponseChoice, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	round := textRound("ok")
	if len(m.rounds) > 0 {
		round, m.rounds = m.rounds[0], m.rounds[1:]
	}
	m.mu.Unlock()

	ch := make(chan ai.ResponseChoice, len(round))
	for _, c := range round {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (m *scriptedChat) Complete(ctx context.Context, req ai.ChatRequest) (*ai.Completion, error) {
	if m.complete != nil {
		text, err := m.complete(req)
		if err != nil {
			return nil, err
		}
		return &ai.Completion{Content: text}, nil
	}
	var last string
	for _, msg := range req.Messages {
		if msg.Role == types.ROLE_USER {
			last = msg.Content
		}
	}
	return &ai.Completion{Content: last}, nil
}

func (m *scriptedChat) Requests() []ai.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.ChatRequest{}, m.requests...)
}

func textRound(parts ...string) []ai.ResponseChoice {
	res := make([]ai.ResponseChoice, 0, len(parts))
	for _, p := range parts {
		res = append(res, ai.ResponseChoice{Chunk: types.StreamChunk{Text: p}})
	}
	return res
}

func toolRound(calls ...types.ToolCall) []ai.ResponseChoice {
	res := make([]ai.ResponseChoice, 0, len(calls))
	for i, c := range calls {
		res = append(res, ai.ResponseChoice{Chunk: types.StreamChunk{ToolCall: &types.ToolCallDelta{
			Index:     i,
			ID:        c.ID,
			Name:      c.Name,
			Arguments: c.Arguments,
		}}})
	}
	return res
}

type vendorCall struct {
	Endpoint string
	Args     map[string]any
}

// fakeVendor succeeds on every endpoint unless a reply is scripted for it.
type fakeVendor struct {
	mu      sync.Mutex
	replies map[string]func(args map[string]any) (*vendor.Output, error)
	calls   []vendorCall
}

func newFakeVendor() *fakeVendor {
	return &fakeVendor{replies: map[string]func(args map[string]any) (*vendor.Output, error){}}
}

func (f *fakeVendor) Invoke(ctx context.Context, endpoint string, args map[string]any) (*vendor.Output, error) {
	f.mu.Lock()
	copied := make(map[string]any, len(args))
	for k, v := range args {
		copied[k] = v
	}
	f.calls = append(f.calls, vendorCall{Endpoint: endpoint, Args: copied})
	reply := f.replies[endpoint]
	f.mu.Unlock()

	if reply != nil {
		return reply(args)
	}
	return &vendor.Output{URL: "https://cdn.test/" + path.Base(endpoint) + ".png"}, nil
}

func (f *fakeVendor) fail(endpoint string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[endpoint] = func(map[string]any) (*vendor.Output, error) {
		return nil, &vendor.StatusError{Code: code, Body: "upstream unavailable"}
	}
}

func (f *fakeVendor) endpoints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		res = append(res, c.Endpoint)
	}
	return res
}

func (f *fakeVendor) lastCall(endpoint string) (vendorCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Endpoint == endpoint {
			return f.calls[i], true
		}
	}
	return vendorCall{}, false
}

type fakeSearcher struct {
	hits  []srv.SearchResult
	calls []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]srv.SearchResult, error) {
	f.calls = append(f.calls, query)
	if f.hits == nil {
		return nil, fmt.Errorf("no results for %q", query)
	}
	return f.hits, nil
}

// memStorage keeps uploads in memory.
type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memStorage) Upload(ctx context.Context, fullPath string, content []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[fullPath] = content
	return "https://storage.test/" + fullPath, nil
}

func (m *memStorage) Delete(ctx context.Context, fullPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, fullPath)
	return nil
}

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

type studioFixture struct {
	studio   *Studio
	chat     *scriptedChat
	vendor   *fakeVendor
	searcher *fakeSearcher
	storage  *memStorage
}

// newTestStudio wires scripted collaborators; extra adds services such as
// local media processing.
func newTestStudio(t *testing.T, extra ...srv.ApplyFunc) *studioFixture {
	t.Helper()
	f := &studioFixture{
		chat:     &scriptedChat{},
		vendor:   newFakeVendor(),
		searcher: &fakeSearcher{},
		storage:  &memStorage{files: map[string][]byte{}},
	}
	applies := append([]srv.ApplyFunc{
		srv.ApplyAIDriver(srv.NewAI(f.chat, nil, nil, nil, nil)),
		srv.ApplyVendorGateway(vendor.NewGateway(vendor.MustLoadCatalog(""), f.vendor)),
		srv.ApplyWebSearcher(f.searcher),
	}, extra...)
	c := core.NewCore(core.CoreConfig{}, core.WithSrv(srv.SetupSrvs(applies...)), core.WithFileStorage(f.storage))
	f.studio = NewStudio(c)
	t.Cleanup(func() {
		_ = f.studio.Runner().Wait(context.Background())
		c.Shutdown(context.Background())
	})
	return f
}

// turnContext opens a session owned by userID and a turn context on it.
func (f *studioFixture) turnContext(t *testing.T, userID string) *TurnContext {
	t.Helper()
	ctx := WithUser(context.Background(), userID, types.LANGUAGE_EN_KEY)
	session, err := NewSessionLogic(ctx, f.studio.core).Create("test project", "", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return f.studio.NewTurnContext(ctx, userID, session.ID, types.LANGUAGE_EN_KEY)
}

func (f *studioFixture) dispatch(t *testing.T, tc *TurnContext, name, args string) *types.ToolResult {
	t.Helper()
	res, err := f.studio.Dispatcher().Dispatch(tc, name, args)
	if err != nil {
		t.Fatalf("dispatch %s: %v", name, err)
	}
	return res
}

// collect drains every event the subscriber received so far.
func collect(sub *ChanSubscriber) []types.Event {
	var res []types.Event
	for {
		select {
		case ev := <-sub.Events():
			res = append(res, ev)
		default:
			return res
		}
	}
}

func eventTypes(events []types.Event) []types.EventType {
	res := make([]types.EventType, 0, len(events))
	for _, ev := range events {
		res = append(res, ev.Type)
	}
	return res
}

func tokenText(events []types.Event) string {
	var sb strings.Builder
	for _, ev := range events {
		if ev.Type == types.EVENT_TOKEN {
			if s, ok := ev.Data.(string); ok {
				sb.WriteString(s)
			}
		}
	}
	return sb.String()
}
