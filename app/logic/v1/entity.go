package v1

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/samber/lo"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/app/store"
	"github.com/atelier-studio/atelier/pkg/errors"
	"github.com/atelier-studio/atelier/pkg/i18n"
	"github.com/atelier-studio/atelier/pkg/slug"
	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/utils"
)

type EntityLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewEntityLogic(ctx context.Context, core *core.Core) *EntityLogic {
	return &EntityLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx),
	}
}

type CreateEntityArgs struct {
	Type        types.EntityType
	Name        string
	Description string
	Attributes  map[string]any
	// ReferenceImage is either a url or a base64 payload.
	ReferenceImage string
	SessionID      string
}

// Create persists a new entity. A taken tag returns an error wrapping
// store.ErrDuplicateEntity and nothing is written.
func (l *EntityLogic) Create(args CreateEntityArgs) (*types.Entity, error) {
	if !args.Type.Valid() {
		return nil, errors.New("EntityLogic.Create.Type", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	tag := slug.Tag(args.Name)
	if tag == "" {
		return nil, errors.New("EntityLogic.Create.Tag", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	exist, err := l.GetByTag(tag)
	if err != nil {
		return nil, errors.Trace("EntityLogic.Create", err)
	}
	if exist != nil {
		return nil, l.duplicate(tag)
	}

	ref := strings.TrimSpace(args.ReferenceImage)
	if ref != "" && !utils.IsURL(ref) {
		if ref, err = UploadImage(l.ctx, l.core, l.GetUserID(), ref); err != nil {
			return nil, errors.New("EntityLogic.Create.UploadImage", i18n.ERROR_INTERNAL, err)
		}
	}

	now := time.Now().Unix()
	entity := types.Entity{
		ID:                utils.GenUniqIDStr(),
		UserID:            l.GetUserID(),
		SessionID:         args.SessionID,
		Type:              args.Type,
		Name:              strings.TrimSpace(args.Name),
		Tag:               tag,
		Description:       strings.TrimSpace(args.Description),
		Attributes:        types.JSONMap(args.Attributes),
		ReferenceImageURL: ref,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if entity.Attributes == nil {
		entity.Attributes = types.JSONMap{}
	}
	if err = l.core.Store().EntityStore().Create(l.ctx, entity); err != nil {
		if errors.Is(err, store.ErrDuplicateEntity) {
			return nil, l.duplicate(tag)
		}
		return nil, errors.New("EntityLogic.Create.EntityStore.Create", i18n.ERROR_INTERNAL, err)
	}

	l.index(&entity)
	return &entity, nil
}

func (l *EntityLogic) duplicate(tag string) error {
	return errors.New("EntityLogic.Create.duplicate", i18n.MESSAGE_DUPLICATE_ENTITY, store.ErrDuplicateEntity).
		Code(http.StatusConflict).
		WithData(map[string]any{"Tag": tag, "Suggestion": tag + "_2"})
}

// GetByTag accepts the tag with or without "@". A missing entity is (nil, nil).
func (l *EntityLogic) GetByTag(tag string) (*types.Entity, error) {
	tag = slug.Normalize(tag)
	if tag == "" {
		return nil, nil
	}
	e, err := l.core.Store().EntityStore().GetByTag(l.ctx, l.GetUserID(), tag)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("EntityLogic.GetByTag.EntityStore.GetByTag", i18n.ERROR_INTERNAL, err)
	}
	if e == nil || e.IsDeleted {
		return nil, nil
	}
	return e, nil
}

func (l *EntityLogic) Get(id string) (*types.Entity, error) {
	e, err := l.core.Store().EntityStore().Get(l.ctx, l.GetUserID(), id)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("EntityLogic.Get.EntityStore.Get", i18n.ERROR_INTERNAL, err)
	}
	if e == nil || e.IsDeleted {
		return nil, errors.New("EntityLogic.Get.nil", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}
	return e, nil
}

// Lookup resolves an id or a tag.
func (l *EntityLogic) Lookup(ref string) (*types.Entity, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	if e, err := l.GetByTag(ref); err != nil || e != nil {
		return e, err
	}
	e, err := l.core.Store().EntityStore().Get(l.ctx, l.GetUserID(), ref)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("EntityLogic.Lookup.EntityStore.Get", i18n.ERROR_INTERNAL, err)
	}
	if e != nil && e.IsDeleted {
		return nil, nil
	}
	return e, nil
}

func (l *EntityLogic) List(t types.EntityType) ([]*types.Entity, error) {
	list, err := l.core.Store().EntityStore().List(l.ctx, types.ListEntityOptions{
		UserID: l.GetUserID(),
		Type:   t,
	})
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("EntityLogic.List.EntityStore.List", i18n.ERROR_INTERNAL, err)
	}
	return lo.Filter(list, func(e *types.Entity, _ int) bool { return !e.IsDeleted }), nil
}

// ResolveTags finds every @tag in text owned by the user. Unknown tags are skipped.
func (l *EntityLogic) ResolveTags(text string) []*types.Entity {
	var res []*types.Entity
	for _, tag := range slug.FindTags(text) {
		e, err := l.GetByTag(tag)
		if err != nil {
			slog.Warn("failed to resolve tag", slog.String("tag", tag), slog.Any("error", err))
			continue
		}
		if e != nil {
			res = append(res, e)
		}
	}
	return res
}

func (l *EntityLogic) Update(e *types.Entity) error {
	e.UpdatedAt = time.Now().Unix()
	if err := l.core.Store().EntityStore().Update(l.ctx, *e); err != nil {
		return errors.New("EntityLogic.Update.EntityStore.Update", i18n.ERROR_INTERNAL, err)
	}
	l.index(e)
	return nil
}

// Search uses the semantic index when an embedder is configured and falls
// back to substring matching otherwise or when the index finds nothing.
func (l *EntityLogic) Search(query string, limit int) ([]*types.Entity, error) {
	if limit <= 0 {
		limit = 10
	}
	if hits := l.semanticSearch(query, limit); len(hits) > 0 {
		return hits, nil
	}
	list, err := l.core.Store().EntityStore().Search(l.ctx, l.GetUserID(), query, uint64(limit))
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("EntityLogic.Search.EntityStore.Search", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

func (l *EntityLogic) semanticSearch(query string, limit int) []*types.Entity {
	embedder := l.core.Srv().AI().Embedder()
	if embedder == nil {
		return nil
	}
	vecs, err := embedder.Embed(l.ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		if err != nil {
			slog.Warn("failed to embed entity query", slog.Any("error", err))
		}
		return nil
	}
	hits, err := l.core.Store().EntityVectorStore().Query(l.ctx, l.GetUserID(), pgvector.NewVector(vecs[0]), uint64(limit))
	if err != nil {
		slog.Warn("semantic entity search failed", slog.Any("error", err))
		return nil
	}
	var res []*types.Entity
	for _, h := range hits {
		e, err := l.core.Store().EntityStore().Get(l.ctx, l.GetUserID(), h.EntityID)
		if err != nil || e == nil || e.IsDeleted {
			continue
		}
		res = append(res, e)
	}
	return res
}

func entityDocument(e *types.Entity) string {
	attrs, _ := json.Marshal(e.Attributes)
	return fmt.Sprintf("%s %s (%s): %s %s", e.Tag, e.Name, e.Type, e.Description, attrs)
}

// index upserts the entity embedding. Failures only log.
func (l *EntityLogic) index(e *types.Entity) {
	embedder := l.core.Srv().AI().Embedder()
	if embedder == nil {
		return
	}
	vecs, err := embedder.Embed(l.ctx, []string{entityDocument(e)})
	if err == nil && len(vecs) > 0 {
		err = l.core.Store().EntityVectorStore().Upsert(l.ctx, e.UserID, e.ID, pgvector.NewVector(vecs[0]))
	}
	if err != nil {
		slog.Warn("failed to index entity", slog.String("entity_id", e.ID), slog.Any("error", err))
	}
}

// Delete moves the entity into the trash, severs its asset links and removes
// it. The semantic index is cleaned up best-effort.
func (l *EntityLogic) Delete(ref string) (*types.TrashItem, error) {
	e, err := l.Lookup(ref)
	if err != nil {
		return nil, errors.Trace("EntityLogic.Delete", err)
	}
	if e == nil {
		return nil, errors.New("EntityLogic.Delete.nil", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}

	item, err := entityTrashItem(e)
	if err != nil {
		return nil, errors.New("EntityLogic.Delete.entityTrashItem", i18n.ERROR_INTERNAL, err)
	}

	err = l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if err := l.core.Store().TrashStore().Create(ctx, item); err != nil {
			return errors.New("EntityLogic.Delete.TrashStore.Create", i18n.ERROR_INTERNAL, err)
		}
		if err := l.core.Store().AssetStore().UnlinkEntity(ctx, e.ID); err != nil {
			return errors.New("EntityLogic.Delete.AssetStore.UnlinkEntity", i18n.ERROR_INTERNAL, err)
		}
		if err := l.core.Store().EntityStore().Delete(ctx, e.UserID, e.ID); err != nil {
			return errors.New("EntityLogic.Delete.EntityStore.Delete", i18n.ERROR_INTERNAL, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := l.core.Store().EntityVectorStore().Delete(l.ctx, e.ID); err != nil && err != sql.ErrNoRows {
		slog.Warn("failed to delete entity vector", slog.String("entity_id", e.ID), slog.Any("error", err))
	}
	return &item, nil
}

func entityTrashItem(e *types.Entity) (types.TrashItem, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return types.TrashItem{}, err
	}
	var data types.JSONMap
	if err = json.Unmarshal(raw, &data); err != nil {
		return types.TrashItem{}, err
	}
	now := time.Now()
	return types.TrashItem{
		ID:           utils.GenUniqIDStr(),
		UserID:       e.UserID,
		ItemType:     types.TRASH_ITEM_ENTITY,
		OriginalID:   e.ID,
		DisplayName:  e.Tag,
		OriginalData: data,
		Status:       types.TRASH_TRASHED,
		ExpiresAt:    now.Add(types.TRASH_RETENTION).Unix(),
		CreatedAt:    now.Unix(),
	}, nil
}

func entityEventItems(list []*types.Entity) []types.EntityEventItem {
	return lo.Map(list, func(e *types.Entity, _ int) types.EntityEventItem {
		return types.EntityEventItem{ID: e.ID, Tag: e.Tag, Name: e.Name, Type: e.Type}
	})
}
