package v1

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/types"
)

type relayedEvent struct {
	session string
	kind    string
}

type fakeRelay struct {
	mu     sync.Mutex
	events []relayedEvent
}

func (r *fakeRelay) PublishSessionEvent(sessionID string, eventType string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, relayedEvent{session: sessionID, kind: eventType})
	return nil
}

func (r *fakeRelay) RegisterStreamSignal(sessionID string, closeFunc func()) func() {
	return func() {}
}

func (r *fakeRelay) NewCloseChatStreamSignal(sessionID string) bool {
	return false
}

func (r *fakeRelay) HandleWebSocket(w http.ResponseWriter, req *http.Request) error {
	return nil
}

func (r *fakeRelay) Shutdown(ctx context.Context) error {
	return nil
}

func TestBusDeliversInOrder(t *testing.T) {
	f := newTestStudio(t)
	bus := f.studio.Bus()
	sub := NewChanSubscriber(0)
	bus.Register("s1", sub)
	other := NewChanSubscriber(0)
	bus.Register("s2", other)

	ctx := context.Background()
	bus.Emit(ctx, "s1", types.NewEvent(types.EVENT_TOKEN, "a"))
	bus.Emit(ctx, "s1", types.NewEvent(types.EVENT_TOKEN, "b"))
	bus.Emit(ctx, "s1", types.NewEvent(types.EVENT_DONE, nil))

	events := collect(sub)
	assert.Equal(t, []types.EventType{types.EVENT_TOKEN, types.EVENT_TOKEN, types.EVENT_DONE}, eventTypes(events))
	assert.Equal(t, "ab", tokenText(events))
	for _, ev := range events {
		assert.Equal(t, "s1", ev.SessionID)
		assert.NotZero(t, ev.Timestamp)
	}
	assert.Empty(t, collect(other))
}

func TestBusPrunesClosedAndFullSubscribers(t *testing.T) {
	f := newTestStudio(t)
	bus := f.studio.Bus()
	ctx := context.Background()

	closed := NewChanSubscriber(0)
	full := NewChanSubscriber(1)
	live := NewChanSubscriber(0)
	bus.Register("s1", closed)
	bus.Register("s1", full)
	bus.Register("s1", live)
	require.Equal(t, 3, bus.Subscribers("s1"))

	closed.Close()
	bus.Emit(ctx, "s1", types.NewEvent(types.EVENT_STATUS, "one"))
	assert.Equal(t, 2, bus.Subscribers("s1"))

	// the second event does not fit in full's buffer
	bus.Emit(ctx, "s1", types.NewEvent(types.EVENT_STATUS, "two"))
	assert.Equal(t, 1, bus.Subscribers("s1"))
	assert.Len(t, collect(live), 2)

	bus.Unregister("s1", live)
	assert.Zero(t, bus.Subscribers("s1"))

	// emitting to a session without subscribers is a no-op
	bus.Emit(ctx, "s1", types.NewEvent(types.EVENT_STATUS, "three"))
}

func TestBusProgressSnapshot(t *testing.T) {
	f := newTestStudio(t)
	bus := f.studio.Bus()
	ctx := context.Background()

	bus.SendProgress(ctx, "s1", types.JOB_VIDEO, 1.7, "rendering", nil)
	bus.SendProgress(ctx, "s2", types.JOB_VIDEO, 0.1, "queued", nil)

	snap := bus.LastProgress(ctx, "s1")
	require.Len(t, snap, 1)
	assert.Equal(t, types.JOB_VIDEO, snap[0].TaskType)
	assert.Equal(t, "rendering", snap[0].Message)
	require.NotNil(t, snap[0].Progress)
	assert.Equal(t, 1.0, *snap[0].Progress)

	bus.SendComplete(ctx, "s1", types.JOB_VIDEO, nil)
	assert.Empty(t, bus.LastProgress(ctx, "s1"))
	assert.Len(t, bus.LastProgress(ctx, "s2"), 1)

	bus.SendError(ctx, "s2", types.JOB_VIDEO, "vendor down")
	assert.Empty(t, bus.LastProgress(ctx, "s2"))
}

func TestBusRelaysEverythingButTokens(t *testing.T) {
	f := newTestStudio(t)
	relay := &fakeRelay{}
	bus := NewProgressBus(f.studio.core.Cache(), 0, relay, nil)
	ctx := context.Background()

	bus.Emit(ctx, "s1", types.NewEvent(types.EVENT_TOKEN, "hi"))
	bus.Emit(ctx, "s1", types.NewEvent(types.EVENT_STATUS, "tools-running"))
	bus.SendComplete(ctx, "s1", types.JOB_VIDEO, nil)

	assert.Equal(t, []relayedEvent{
		{session: "s1", kind: string(types.EVENT_STATUS)},
		{session: "s1", kind: string(types.EVENT_COMPLETE)},
	}, relay.events)
}

func TestBusRegisterRacesLastUnregister(t *testing.T) {
	bus := NewProgressBus(nil, 0, nil, nil)
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		leaving := NewChanSubscriber(1)
		bus.Register("s1", leaving)
		joining := NewChanSubscriber(1)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			bus.Unregister("s1", leaving)
		}()
		go func() {
			defer wg.Done()
			bus.Register("s1", joining)
		}()
		wg.Wait()

		require.Equal(t, 1, bus.Subscribers("s1"), "iteration %d", i)
		bus.Emit(ctx, "s1", types.NewEvent(types.EVENT_TOKEN, "x"))
		select {
		case ev := <-joining.Events():
			assert.Equal(t, types.EVENT_TOKEN, ev.Type)
		default:
			t.Fatalf("iteration %d: joining subscriber missed the event", i)
		}
		bus.Unregister("s1", joining)
	}
	assert.Zero(t, bus.Subscribers("s1"))
}
