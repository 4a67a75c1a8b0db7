package v1

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/utils"
)

// EpisodicMemory is the per-user log of notable moments. The default lives in
// process memory; nothing in the turn pipeline requires it to persist.
type EpisodicMemory interface {
	Remember(userID string, eventType types.EpisodeType, content string, metadata map[string]any) types.Episode
	Recall(userID string, filter types.EpisodeFilter) []types.Episode
	Forget(userID string)
}

type episode struct {
	types.Episode
	seq uint64
}

// EpisodicBuffer keeps at most capacity episodes per user. When full, the
// least important episode goes first, the oldest among equals.
type EpisodicBuffer struct {
	mu       sync.Mutex
	capacity int
	seq      uint64
	users    map[string][]*episode
}

func NewEpisodicBuffer(capacity int) *EpisodicBuffer {
	if capacity <= 0 {
		capacity = 100
	}
	return &EpisodicBuffer{capacity: capacity, users: map[string][]*episode{}}
}

func (b *EpisodicBuffer) Remember(userID string, eventType types.EpisodeType, content string, metadata map[string]any) types.Episode {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	e := &episode{
		Episode: types.Episode{
			ID:         utils.GenRandomID(),
			UserID:     userID,
			EventType:  eventType,
			Content:    content,
			Metadata:   metadata,
			Importance: eventType.Importance(),
			CreatedAt:  time.Now().UnixMilli(),
		},
		seq: b.seq,
	}

	list := b.users[userID]
	if len(list) >= b.capacity {
		list = evictOne(list)
	}
	b.users[userID] = append(list, e)
	return e.Episode
}

func evictOne(list []*episode) []*episode {
	victim := 0
	for i, e := range list {
		v := list[victim]
		if e.Importance < v.Importance || (e.Importance == v.Importance && e.seq < v.seq) {
			victim = i
		}
	}
	return append(list[:victim], list[victim+1:]...)
}

// Recall returns matching episodes by importance, then recency, and counts
// the access on each returned one.
func (b *EpisodicBuffer) Recall(userID string, filter types.EpisodeFilter) []types.Episode {
	b.mu.Lock()
	defer b.mu.Unlock()

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	var matched []*episode
	for _, e := range b.users[userID] {
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(e.Content), query) {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Importance != matched[j].Importance {
			return matched[i].Importance > matched[j].Importance
		}
		return matched[i].seq > matched[j].seq
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 5
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	res := make([]types.Episode, 0, len(matched))
	for _, e := range matched {
		e.AccessCount++
		res = append(res, e.Episode)
	}
	return res
}

func (b *EpisodicBuffer) Forget(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.users, userID)
}

func (b *EpisodicBuffer) Len(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.users[userID])
}
