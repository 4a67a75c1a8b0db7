package v1

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/app/store"
	"github.com/atelier-studio/atelier/pkg/errors"
	"github.com/atelier-studio/atelier/pkg/i18n"
	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/utils"
)

type TrashLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewTrashLogic(ctx context.Context, core *core.Core) *TrashLogic {
	return &TrashLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx),
	}
}

func (l *TrashLogic) List() ([]*types.TrashItem, error) {
	list, err := l.core.Store().TrashStore().List(l.ctx, l.GetUserID())
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("TrashLogic.List.TrashStore.List", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

// TrashAsset soft-deletes an asset and keeps a restorable shadow of it.
func (l *TrashLogic) TrashAsset(asset *types.GeneratedAsset) (*types.TrashItem, error) {
	raw, err := json.Marshal(asset)
	if err != nil {
		return nil, errors.New("TrashLogic.TrashAsset.Marshal", i18n.ERROR_INTERNAL, err)
	}
	var data types.JSONMap
	if err = json.Unmarshal(raw, &data); err != nil {
		return nil, errors.New("TrashLogic.TrashAsset.Unmarshal", i18n.ERROR_INTERNAL, err)
	}
	now := time.Now()
	item := types.TrashItem{
		ID:           utils.GenUniqIDStr(),
		UserID:       asset.UserID,
		ItemType:     types.TRASH_ITEM_ASSET,
		OriginalID:   asset.ID,
		DisplayName:  utils.Prefix(asset.Prompt, 60),
		OriginalData: data,
		Status:       types.TRASH_TRASHED,
		ExpiresAt:    now.Add(types.TRASH_RETENTION).Unix(),
		CreatedAt:    now.Unix(),
	}
	err = l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if err := l.core.Store().TrashStore().Create(ctx, item); err != nil {
			return errors.New("TrashLogic.TrashAsset.TrashStore.Create", i18n.ERROR_INTERNAL, err)
		}
		if err := l.core.Store().AssetStore().SetDeleted(ctx, asset.ID, true); err != nil {
			return errors.New("TrashLogic.TrashAsset.AssetStore.SetDeleted", i18n.ERROR_INTERNAL, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Restore brings a trashed item back exactly as it was. A trashed entity
// whose tag was taken again in the meantime cannot be restored.
func (l *TrashLogic) Restore(id string) (*types.TrashItem, error) {
	item, err := l.core.Store().TrashStore().Get(l.ctx, l.GetUserID(), id)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("TrashLogic.Restore.TrashStore.Get", i18n.ERROR_INTERNAL, err)
	}
	if item == nil || item.Status != types.TRASH_TRASHED {
		return nil, errors.New("TrashLogic.Restore.nil", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}

	raw, err := json.Marshal(item.OriginalData)
	if err != nil {
		return nil, errors.New("TrashLogic.Restore.Marshal", i18n.ERROR_INTERNAL, err)
	}

	var restored *types.Entity
	err = l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		switch item.ItemType {
		case types.TRASH_ITEM_ENTITY:
			var e types.Entity
			if err := json.Unmarshal(raw, &e); err != nil {
				return errors.New("TrashLogic.Restore.Unmarshal", i18n.ERROR_INTERNAL, err)
			}
			e.IsDeleted = false
			e.UpdatedAt = time.Now().Unix()
			if err := l.core.Store().EntityStore().Create(ctx, e); err != nil {
				if errors.Is(err, store.ErrDuplicateEntity) {
					return NewEntityLogic(ctx, l.core).duplicate(e.Tag)
				}
				return errors.New("TrashLogic.Restore.EntityStore.Create", i18n.ERROR_INTERNAL, err)
			}
			restored = &e
		case types.TRASH_ITEM_ASSET:
			if err := l.core.Store().AssetStore().SetDeleted(ctx, item.OriginalID, false); err != nil {
				return errors.New("TrashLogic.Restore.AssetStore.SetDeleted", i18n.ERROR_INTERNAL, err)
			}
		}
		if err := l.core.Store().TrashStore().SetStatus(ctx, item.ID, types.TRASH_RESTORED); err != nil {
			return errors.New("TrashLogic.Restore.TrashStore.SetStatus", i18n.ERROR_INTERNAL, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if restored != nil {
		NewEntityLogic(l.ctx, l.core).index(restored)
	}
	item.Status = types.TRASH_RESTORED
	return item, nil
}

// Empty purges every trashed item of the user now instead of at expiry.
func (l *TrashLogic) Empty() (int, error) {
	list, err := l.List()
	if err != nil {
		return 0, err
	}
	for _, item := range list {
		if err = purgeShadowed(l.ctx, l.core, item); err != nil {
			return 0, err
		}
		if err = l.core.Store().TrashStore().SetStatus(l.ctx, item.ID, types.TRASH_PURGED); err != nil {
			return 0, errors.New("TrashLogic.Empty.TrashStore.SetStatus", i18n.ERROR_INTERNAL, err)
		}
	}
	return len(list), nil
}

func purgeShadowed(ctx context.Context, c *core.Core, item *types.TrashItem) error {
	if item.ItemType != types.TRASH_ITEM_ASSET {
		// entities were already removed when trashed
		return nil
	}
	if err := c.Store().AssetStore().HardDelete(ctx, item.OriginalID); err != nil && err != sql.ErrNoRows {
		return errors.New("purgeShadowed.AssetStore.HardDelete", i18n.ERROR_INTERNAL, err)
	}
	return nil
}

// PurgeExpired removes trash past its expiry for every user, at most limit
// items per call. It backs the periodic cleanup of the process command.
func PurgeExpired(ctx context.Context, c *core.Core, now time.Time, limit uint64) (int, error) {
	list, err := c.Store().TrashStore().ListExpired(ctx, now.Unix(), limit)
	if err != nil && err != sql.ErrNoRows {
		return 0, errors.New("PurgeExpired.TrashStore.ListExpired", i18n.ERROR_INTERNAL, err)
	}
	purged := 0
	for _, item := range list {
		if err = purgeShadowed(ctx, c, item); err != nil {
			slog.Error("failed to purge trashed item", slog.String("trash_id", item.ID), slog.Any("error", err))
			continue
		}
		if err = c.Store().TrashStore().Delete(ctx, item.ID); err != nil {
			slog.Error("failed to delete trash row", slog.String("trash_id", item.ID), slog.Any("error", err))
			continue
		}
		purged++
	}
	return purged, nil
}
