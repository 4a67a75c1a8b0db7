package v1

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/app/core/srv"
	"github.com/atelier-studio/atelier/pkg/types"
)

var (
	ErrSubscriberClosed = errors.New("subscriber closed")
	ErrSubscriberFull   = errors.New("subscriber buffer full")
)

// Subscriber receives the events of one session. Send must not block; any
// error removes the subscriber from the bus. Implementations must be
// comparable (pointer types) so Unregister can find them.
type Subscriber interface {
	Send(ev types.Event) error
}

// ChanSubscriber buffers events for a streaming response.
type ChanSubscriber struct {
	mu     sync.Mutex
	ch     chan types.Event
	closed bool
}

func NewChanSubscriber(size int) *ChanSubscriber {
	if size <= 0 {
		size = 256
	}
	return &ChanSubscriber{ch: make(chan types.Event, size)}
}

func (s *ChanSubscriber) Send(ev types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSubscriberClosed
	}
	select {
	case s.ch <- ev:
		return nil
	default:
		return ErrSubscriberFull
	}
}

func (s *ChanSubscriber) Events() <-chan types.Event {
	return s.ch
}

func (s *ChanSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

type sessionSubscribers struct {
	mu   sync.Mutex
	subs []Subscriber
}

// ProgressBus fans session events out to live subscribers in emission order
// and mirrors them to the realtime relay when one is configured.
type ProgressBus struct {
	sessions    cmap.ConcurrentMap[string, *sessionSubscribers]
	cache       types.Cache
	snapshotTTL time.Duration
	relay       srv.CentrifugeManager
	metrics     *core.Metrics
	total       atomic.Int64
}

func NewProgressBus(cache types.Cache, snapshotTTL time.Duration, relay srv.CentrifugeManager, metrics *core.Metrics) *ProgressBus {
	if snapshotTTL <= 0 {
		snapshotTTL = 5 * time.Minute
	}
	return &ProgressBus{
		sessions:    cmap.New[*sessionSubscribers](),
		cache:       cache,
		snapshotTTL: snapshotTTL,
		relay:       relay,
		metrics:     metrics,
	}
}

// Register appends sub under the map shard lock, so a concurrent Unregister
// cannot drop the entry it lands in.
func (b *ProgressBus) Register(sessionID string, sub Subscriber) {
	b.sessions.Upsert(sessionID, nil, func(exist bool, cur, _ *sessionSubscribers) *sessionSubscribers {
		if !exist || cur == nil {
			cur = &sessionSubscribers{}
		}
		cur.mu.Lock()
		cur.subs = append(cur.subs, sub)
		cur.mu.Unlock()
		return cur
	})
	b.observe(1)
}

func (b *ProgressBus) Unregister(sessionID string, sub Subscriber) {
	s, ok := b.sessions.Get(sessionID)
	if !ok {
		return
	}
	s.mu.Lock()
	removed := 0
	kept := s.subs[:0]
	for _, v := range s.subs {
		if v == sub {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	s.subs = kept
	empty := len(s.subs) == 0
	s.mu.Unlock()
	b.observe(-removed)

	if empty {
		b.sessions.RemoveCb(sessionID, func(key string, v *sessionSubscribers, exists bool) bool {
			if !exists {
				return false
			}
			v.mu.Lock()
			defer v.mu.Unlock()
			return len(v.subs) == 0
		})
	}
}

func (b *ProgressBus) Subscribers(sessionID string) int {
	s, ok := b.sessions.Get(sessionID)
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (b *ProgressBus) observe(delta int) {
	n := b.total.Add(int64(delta))
	if b.metrics != nil {
		b.metrics.BusSubscribers(int(n))
	}
}

// Emit delivers ev to every subscriber of the session. Subscribers failing to
// accept it are pruned.
func (b *ProgressBus) Emit(ctx context.Context, sessionID string, ev types.Event) {
	ev.SessionID = sessionID
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	if s, ok := b.sessions.Get(sessionID); ok {
		s.mu.Lock()
		pruned := 0
		kept := s.subs[:0]
		for _, sub := range s.subs {
			if err := sub.Send(ev); err != nil {
				slog.Debug("pruning bus subscriber", slog.String("session_id", sessionID), slog.Any("error", err))
				pruned++
				continue
			}
			kept = append(kept, sub)
		}
		s.subs = kept
		s.mu.Unlock()
		if pruned > 0 {
			b.observe(-pruned)
		}
	}

	b.snapshot(ctx, sessionID, ev)

	if b.relay != nil && ev.Type != types.EVENT_TOKEN {
		if err := b.relay.PublishSessionEvent(sessionID, string(ev.Type), ev.Payload()); err != nil {
			slog.Warn("failed to relay session event", slog.String("session_id", sessionID), slog.String("type", string(ev.Type)), slog.Any("error", err))
		}
	}
}

func (b *ProgressBus) SendProgress(ctx context.Context, sessionID, taskType string, fraction float64, message string, details any) {
	fraction = min(max(fraction, 0), 1)
	ev := types.NewEvent(types.EVENT_PROGRESS, nil)
	ev.TaskType = taskType
	ev.Progress = &fraction
	ev.Message = message
	ev.Details = details
	b.Emit(ctx, sessionID, ev)
}

func (b *ProgressBus) SendComplete(ctx context.Context, sessionID, taskType string, result any) {
	ev := types.NewEvent(types.EVENT_COMPLETE, nil)
	ev.TaskType = taskType
	ev.Result = result
	b.Emit(ctx, sessionID, ev)
}

func (b *ProgressBus) SendError(ctx context.Context, sessionID, taskType, message string) {
	ev := types.NewEvent(types.EVENT_ERROR, nil)
	ev.TaskType = taskType
	ev.Message = message
	b.Emit(ctx, sessionID, ev)
}

func progressKey(sessionID, taskType string) string {
	return "progress:" + sessionID + ":" + taskType
}

// snapshot keeps the last progress of every running task; terminal events clear it.
func (b *ProgressBus) snapshot(ctx context.Context, sessionID string, ev types.Event) {
	if b.cache == nil || ev.TaskType == "" {
		return
	}
	var err error
	switch ev.Type {
	case types.EVENT_PROGRESS:
		err = types.CacheSetJSON(ctx, b.cache, progressKey(sessionID, ev.TaskType), ev, b.snapshotTTL)
	case types.EVENT_COMPLETE, types.EVENT_ERROR:
		err = b.cache.Del(ctx, progressKey(sessionID, ev.TaskType))
	}
	if err != nil {
		slog.Warn("failed to update progress snapshot", slog.String("session_id", sessionID), slog.Any("error", err))
	}
}

// LastProgress returns the cached progress of every task still running in
// the session, oldest first, for subscribers that join late.
func (b *ProgressBus) LastProgress(ctx context.Context, sessionID string) []types.Event {
	if b.cache == nil {
		return nil
	}
	keys, err := b.cache.Scan(ctx, progressKey(sessionID, "*"))
	if err != nil {
		slog.Warn("failed to scan progress snapshots", slog.String("session_id", sessionID), slog.Any("error", err))
		return nil
	}
	var res []types.Event
	for _, key := range keys {
		if !strings.HasPrefix(key, "progress:"+sessionID+":") {
			continue
		}
		ev, err := types.CacheGetJSON[types.Event](ctx, b.cache, key)
		if err != nil {
			continue
		}
		res = append(res, *ev)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Timestamp < res[j].Timestamp })
	return res
}
