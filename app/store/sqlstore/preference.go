package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/atelier-studio/atelier/pkg/register"
	"github.com/atelier-studio/atelier/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.PreferenceStore = NewPreferenceStore(provider)
	})
}

type PreferenceStore struct {
	CommonFields
}

func NewPreferenceStore(provider SqlProviderAchieve) *PreferenceStore {
	repo := &PreferenceStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_USER_PREFERENCE)
	repo.SetAllColumns("user_id", "aspect_ratio", "style", "image_model", "video_model", "auto_face_swap", "auto_upscale", "auto_translate", "language", "favorite_entities", "learned", "updated_at")
	return repo
}

func (s *PreferenceStore) Get(ctx context.Context, userID string) (*types.UserPreferences, error) {
	queryString, args, err := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var res types.UserPreferences
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *PreferenceStore) Upsert(ctx context.Context, data types.UserPreferences) error {
	data.UpdatedAt = time.Now().Unix()
	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.UserID, data.AspectRatio, data.Style, data.ImageModel, data.VideoModel, data.AutoFaceSwap, data.AutoUpscale,
			data.AutoTranslate, data.Language, data.FavoriteEntities, data.Learned, data.UpdatedAt).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			aspect_ratio = EXCLUDED.aspect_ratio, style = EXCLUDED.style, image_model = EXCLUDED.image_model,
			video_model = EXCLUDED.video_model, auto_face_swap = EXCLUDED.auto_face_swap, auto_upscale = EXCLUDED.auto_upscale,
			auto_translate = EXCLUDED.auto_translate, language = EXCLUDED.language,
			favorite_entities = EXCLUDED.favorite_entities, learned = EXCLUDED.learned, updated_at = EXCLUDED.updated_at`)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
