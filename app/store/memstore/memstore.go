// Package memstore is an in-process implementation of store.Provider used in
// single-node development mode and by logic tests.
package memstore

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/samber/lo"

	"github.com/atelier-studio/atelier/app/store"
	"github.com/atelier-studio/atelier/pkg/types"
)

type Provider struct {
	mu sync.RWMutex

	sessions    map[string]types.Session
	messages    map[string][]types.Message
	entities    map[string]types.Entity
	assets      map[string]types.GeneratedAsset
	assetLinks  map[string]map[string]struct{}
	tasks       map[string]types.Task
	trash       map[string]types.TrashItem
	preferences map[string]types.UserPreferences
	vectors     map[string]entityVector
	seq         int64
}

type entityVector struct {
	userID string
	vec    []float32
}

func New() *Provider {
	return &Provider{
		sessions:    map[string]types.Session{},
		messages:    map[string][]types.Message{},
		entities:    map[string]types.Entity{},
		assets:      map[string]types.GeneratedAsset{},
		assetLinks:  map[string]map[string]struct{}{},
		tasks:       map[string]types.Task{},
		trash:       map[string]types.TrashItem{},
		preferences: map[string]types.UserPreferences{},
		vectors:     map[string]entityVector{},
	}
}

// Transaction has no isolation here; it only runs next.
func (p *Provider) Transaction(ctx context.Context, next func(ctx context.Context) error) error {
	return next(ctx)
}

// tick returns a strictly increasing millisecond timestamp so ordering by
// creation is stable inside one process.
func (p *Provider) tick() int64 {
	now := time.Now().UnixMilli()
	if now <= p.seq {
		now = p.seq + 1
	}
	p.seq = now
	return now
}

func (p *Provider) SessionStore() store.SessionStore           { return sessionStore{p} }
func (p *Provider) MessageStore() store.MessageStore           { return messageStore{p} }
func (p *Provider) EntityStore() store.EntityStore             { return entityStore{p} }
func (p *Provider) AssetStore() store.AssetStore               { return assetStore{p} }
func (p *Provider) TaskStore() store.TaskStore                 { return taskStore{p} }
func (p *Provider) TrashStore() store.TrashStore               { return trashStore{p} }
func (p *Provider) PreferenceStore() store.PreferenceStore     { return preferenceStore{p} }
func (p *Provider) EntityVectorStore() store.EntityVectorStore { return vectorStore{p} }

var _ store.Provider = (*Provider)(nil)

type sessionStore struct{ p *Provider }

func (s sessionStore) Create(ctx context.Context, data types.Session) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	now := time.Now().Unix()
	if data.CreatedAt == 0 {
		data.CreatedAt = now
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = now
	}
	s.p.sessions[data.ID] = data
	return nil
}

func (s sessionStore) Get(ctx context.Context, id string) (*types.Session, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	v, ok := s.p.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &v, nil
}

func (s sessionStore) List(ctx context.Context, opts types.ListSessionOptions, page, pageSize uint64) ([]*types.Session, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	var res []*types.Session
	for _, v := range s.p.sessions {
		if opts.UserID != "" && v.UserID != opts.UserID {
			continue
		}
		if opts.OnlyActive && !v.IsActive {
			continue
		}
		if opts.IdleBefore > 0 && v.UpdatedAt >= opts.IdleBefore {
			continue
		}
		v := v
		res = append(res, &v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UpdatedAt > res[j].UpdatedAt })
	return paginate(res, page, pageSize), nil
}

func (s sessionStore) Update(ctx context.Context, id string, args store.UpdateSessionArgs) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	v, ok := s.p.sessions[id]
	if !ok {
		return nil
	}
	if args.Title != nil {
		v.Title = *args.Title
	}
	if args.Description != nil {
		v.Description = *args.Description
	}
	if args.Category != nil {
		v.Category = *args.Category
	}
	if args.ProjectData != nil {
		v.ProjectData = args.ProjectData
	}
	v.UpdatedAt = time.Now().Unix()
	s.p.sessions[id] = v
	return nil
}

func (s sessionStore) Touch(ctx context.Context, id string) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if v, ok := s.p.sessions[id]; ok {
		v.UpdatedAt = time.Now().Unix()
		s.p.sessions[id] = v
	}
	return nil
}

func (s sessionStore) SetActive(ctx context.Context, id string, active bool) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if v, ok := s.p.sessions[id]; ok {
		v.IsActive = active
		v.UpdatedAt = time.Now().Unix()
		s.p.sessions[id] = v
	}
	return nil
}

type messageStore struct{ p *Provider }

func (s messageStore) Create(ctx context.Context, data types.Message) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if data.CreatedAt == 0 {
		data.CreatedAt = s.p.tick()
	}
	s.p.messages[data.SessionID] = append(s.p.messages[data.SessionID], data)
	return nil
}

func (s messageStore) ListRecent(ctx context.Context, sessionID string, limit uint64) ([]*types.Message, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	all := s.p.messages[sessionID]
	start := 0
	if uint64(len(all)) > limit {
		start = len(all) - int(limit)
	}
	res := make([]*types.Message, 0, len(all)-start)
	for _, m := range all[start:] {
		m := m
		res = append(res, &m)
	}
	return res, nil
}

func (s messageStore) Count(ctx context.Context, sessionID string) (int64, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	return int64(len(s.p.messages[sessionID])), nil
}

type entityStore struct{ p *Provider }

func (s entityStore) Create(ctx context.Context, data types.Entity) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	for _, e := range s.p.entities {
		if e.UserID == data.UserID && e.Tag == data.Tag && !e.IsDeleted {
			return store.ErrDuplicateEntity
		}
	}
	now := time.Now().Unix()
	if data.CreatedAt == 0 {
		data.CreatedAt = now
	}
	data.UpdatedAt = now
	data.IsDeleted = false
	s.p.entities[data.ID] = data
	return nil
}

func (s entityStore) Get(ctx context.Context, userID, id string) (*types.Entity, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	e, ok := s.p.entities[id]
	if !ok || e.UserID != userID || e.IsDeleted {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (s entityStore) GetByTag(ctx context.Context, userID, tag string) (*types.Entity, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	for _, e := range s.p.entities {
		if e.UserID == userID && e.Tag == tag && !e.IsDeleted {
			e := e
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s entityStore) List(ctx context.Context, opts types.ListEntityOptions) ([]*types.Entity, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	var res []*types.Entity
	for _, e := range s.p.entities {
		if e.UserID != opts.UserID || e.IsDeleted {
			continue
		}
		if opts.Type != "" && e.Type != opts.Type {
			continue
		}
		if len(opts.Tags) > 0 && !lo.Contains(opts.Tags, e.Tag) {
			continue
		}
		e := e
		res = append(res, &e)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt == res[j].CreatedAt {
			return res[i].ID > res[j].ID
		}
		return res[i].CreatedAt > res[j].CreatedAt
	})
	return res, nil
}

func (s entityStore) Update(ctx context.Context, data types.Entity) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	e, ok := s.p.entities[data.ID]
	if !ok || e.UserID != data.UserID {
		return nil
	}
	e.Name = data.Name
	e.Description = data.Description
	e.Attributes = data.Attributes
	e.ReferenceImageURL = data.ReferenceImageURL
	e.UpdatedAt = time.Now().Unix()
	s.p.entities[data.ID] = e
	return nil
}

func (s entityStore) Delete(ctx context.Context, userID, id string) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if e, ok := s.p.entities[id]; ok && e.UserID == userID {
		delete(s.p.entities, id)
	}
	return nil
}

func (s entityStore) Search(ctx context.Context, userID, query string, limit uint64) ([]*types.Entity, error) {
	all, _ := s.List(ctx, types.ListEntityOptions{UserID: userID})
	q := strings.ToLower(query)
	var res []*types.Entity
	for _, e := range all {
		attrs, _ := e.Attributes.Value()
		raw, _ := attrs.([]byte)
		hay := strings.ToLower(e.Name + "\n" + e.Description + "\n" + string(raw))
		if strings.Contains(hay, q) {
			res = append(res, e)
		}
		if uint64(len(res)) >= limit {
			break
		}
	}
	return res, nil
}

type assetStore struct{ p *Provider }

func (s assetStore) Create(ctx context.Context, data types.GeneratedAsset) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if data.CreatedAt == 0 {
		data.CreatedAt = s.p.tick()
	}
	data.EntityIDs = nil
	s.p.assets[data.ID] = data
	return nil
}

func (s assetStore) Get(ctx context.Context, id string) (*types.GeneratedAsset, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	a, ok := s.p.assets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (s assetStore) GetByURL(ctx context.Context, sessionID, url string) (*types.GeneratedAsset, error) {
	list, _ := s.ListRecent(ctx, types.ListAssetOptions{SessionID: sessionID}, 1<<20)
	for _, a := range list {
		if a.URL == url {
			return a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s assetStore) ListRecent(ctx context.Context, opts types.ListAssetOptions, limit uint64) ([]*types.GeneratedAsset, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	var res []*types.GeneratedAsset
	for _, a := range s.p.assets {
		if a.IsDeleted {
			continue
		}
		if opts.SessionID != "" && a.SessionID != opts.SessionID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Type != "" && a.Type != opts.Type {
			continue
		}
		if opts.OnlyFavorite && !a.IsFavorite {
			continue
		}
		a := a
		res = append(res, &a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt > res[j].CreatedAt })
	if uint64(len(res)) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s assetStore) SetFavorite(ctx context.Context, id string, favorite bool) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if a, ok := s.p.assets[id]; ok {
		a.IsFavorite = favorite
		s.p.assets[id] = a
	}
	return nil
}

func (s assetStore) SetDeleted(ctx context.Context, id string, deleted bool) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if a, ok := s.p.assets[id]; ok {
		a.IsDeleted = deleted
		s.p.assets[id] = a
	}
	return nil
}

func (s assetStore) HardDelete(ctx context.Context, id string) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	delete(s.p.assets, id)
	delete(s.p.assetLinks, id)
	return nil
}

func (s assetStore) LinkEntities(ctx context.Context, assetID string, entityIDs []string) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	set := s.p.assetLinks[assetID]
	if set == nil {
		set = map[string]struct{}{}
		s.p.assetLinks[assetID] = set
	}
	for _, id := range entityIDs {
		set[id] = struct{}{}
	}
	return nil
}

func (s assetStore) UnlinkEntity(ctx context.Context, entityID string) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	for _, set := range s.p.assetLinks {
		delete(set, entityID)
	}
	return nil
}

func (s assetStore) ListEntityIDs(ctx context.Context, assetID string) ([]string, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	ids := lo.Keys(s.p.assetLinks[assetID])
	sort.Strings(ids)
	return ids, nil
}

type taskStore struct{ p *Provider }

func (s taskStore) Create(ctx context.Context, data types.Task) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	now := s.p.tick()
	if data.CreatedAt == 0 {
		data.CreatedAt = now
	}
	data.UpdatedAt = now
	s.p.tasks[data.ID] = data
	return nil
}

func (s taskStore) Get(ctx context.Context, id string) (*types.Task, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	t, ok := s.p.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (s taskStore) ListChildren(ctx context.Context, parentID string) ([]*types.Task, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	var res []*types.Task
	for _, t := range s.p.tasks {
		if t.ParentID == parentID {
			t := t
			res = append(res, &t)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Priority == res[j].Priority {
			return res[i].CreatedAt < res[j].CreatedAt
		}
		return res[i].Priority < res[j].Priority
	})
	return res, nil
}

func (s taskStore) LatestByType(ctx context.Context, sessionID, taskType string) (*types.Task, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	var latest *types.Task
	for _, t := range s.p.tasks {
		if t.SessionID != sessionID || t.Type != taskType {
			continue
		}
		if latest == nil || t.CreatedAt > latest.CreatedAt {
			t := t
			latest = &t
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return latest, nil
}

func (s taskStore) UpdateStatus(ctx context.Context, id string, args store.UpdateTaskArgs) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	t, ok := s.p.tasks[id]
	if !ok {
		return nil
	}
	t.Status = args.Status
	if args.OutputData != nil {
		t.OutputData = args.OutputData
	}
	if args.ErrorMessage != "" {
		t.ErrorMessage = args.ErrorMessage
	}
	if args.StartedAt != 0 {
		t.StartedAt = args.StartedAt
	}
	if args.CompletedAt != 0 {
		t.CompletedAt = args.CompletedAt
	}
	t.UpdatedAt = time.Now().UnixMilli()
	s.p.tasks[id] = t
	return nil
}

type trashStore struct{ p *Provider }

func (s trashStore) Create(ctx context.Context, data types.TrashItem) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	if data.ExpiresAt == 0 {
		data.ExpiresAt = time.Unix(data.CreatedAt, 0).Add(types.TRASH_RETENTION).Unix()
	}
	if data.Status == "" {
		data.Status = types.TRASH_TRASHED
	}
	s.p.trash[data.ID] = data
	return nil
}

func (s trashStore) Get(ctx context.Context, userID, id string) (*types.TrashItem, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	t, ok := s.p.trash[id]
	if !ok || t.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (s trashStore) List(ctx context.Context, userID string) ([]*types.TrashItem, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	var res []*types.TrashItem
	for _, t := range s.p.trash {
		if t.UserID == userID && t.Status == types.TRASH_TRASHED {
			t := t
			res = append(res, &t)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt > res[j].CreatedAt })
	return res, nil
}

func (s trashStore) SetStatus(ctx context.Context, id string, status types.TrashStatus) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if t, ok := s.p.trash[id]; ok {
		t.Status = status
		s.p.trash[id] = t
	}
	return nil
}

func (s trashStore) ListExpired(ctx context.Context, before int64, limit uint64) ([]*types.TrashItem, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	var res []*types.TrashItem
	for _, t := range s.p.trash {
		if t.Status == types.TRASH_TRASHED && t.ExpiresAt < before {
			t := t
			res = append(res, &t)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ExpiresAt < res[j].ExpiresAt })
	if uint64(len(res)) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s trashStore) Delete(ctx context.Context, id string) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	delete(s.p.trash, id)
	return nil
}

type preferenceStore struct{ p *Provider }

func (s preferenceStore) Get(ctx context.Context, userID string) (*types.UserPreferences, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	v, ok := s.p.preferences[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &v, nil
}

func (s preferenceStore) Upsert(ctx context.Context, data types.UserPreferences) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	data.UpdatedAt = time.Now().Unix()
	s.p.preferences[data.UserID] = data
	return nil
}

type vectorStore struct{ p *Provider }

func (s vectorStore) Upsert(ctx context.Context, userID, entityID string, vec pgvector.Vector) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.vectors[entityID] = entityVector{userID: userID, vec: vec.Slice()}
	return nil
}

func (s vectorStore) Delete(ctx context.Context, entityID string) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	delete(s.p.vectors, entityID)
	return nil
}

func (s vectorStore) Query(ctx context.Context, userID string, vec pgvector.Vector, limit uint64) ([]types.EntitySearchHit, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	q := vec.Slice()
	var hits []types.EntitySearchHit
	for id, v := range s.p.vectors {
		if v.userID != userID {
			continue
		}
		hits = append(hits, types.EntitySearchHit{EntityID: id, Cos: cosine(q, v.vec)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Cos > hits[j].Cos })
	if uint64(len(hits)) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func paginate[T any](in []T, page, pageSize uint64) []T {
	if page == types.NO_PAGINATION || pageSize == types.NO_PAGINATION {
		return in
	}
	start := (page - 1) * pageSize
	if start >= uint64(len(in)) {
		return nil
	}
	end := start + pageSize
	if end > uint64(len(in)) {
		end = uint64(len(in))
	}
	return in[start:end]
}
