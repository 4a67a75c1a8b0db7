package v1

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/utils"
)

// ReferenceResolver turns the images of a turn into durable urls and keeps the
// latest one per session so later turns can refer to it implicitly.
type ReferenceResolver struct {
	core *core.Core
	ttl  time.Duration
}

func NewReferenceResolver(core *core.Core) *ReferenceResolver {
	return &ReferenceResolver{core: core, ttl: core.Cfg().Studio.ReferenceTTL.Duration}
}

func referenceKey(sessionID string) string {
	return "ref:" + sessionID
}

// Resolve never fails; upload errors are logged and the image is skipped.
func (r *ReferenceResolver) Resolve(ctx context.Context, userID, sessionID string, images, priorURLs []string) types.ResolvedReferences {
	var urls []string
	for i, img := range images {
		if img == "" {
			continue
		}
		if utils.IsURL(img) {
			urls = append(urls, img)
			continue
		}
		url, err := UploadImage(ctx, r.core, userID, img)
		if err != nil {
			slog.Warn("failed to upload reference image", slog.String("session_id", sessionID), slog.Int("index", i), slog.Any("error", err))
			continue
		}
		urls = append(urls, url)
	}

	if len(urls) > 0 {
		r.Remember(ctx, sessionID, urls[0])
		return types.ResolvedReferences{Primary: urls[0], All: urls, Uploaded: urls}
	}

	if slot := r.Slot(ctx, sessionID); slot != nil && slot.URL != "" {
		return types.ResolvedReferences{Primary: slot.URL, All: []string{slot.URL}}
	}

	var prior []string
	for _, u := range priorURLs {
		if utils.IsURL(u) {
			prior = append(prior, u)
		}
	}
	if len(prior) > 0 {
		return types.ResolvedReferences{Primary: prior[0], All: prior}
	}
	return types.ResolvedReferences{}
}

// Remember overwrites the session slot. Only the url is cached, never the
// image bytes.
func (r *ReferenceResolver) Remember(ctx context.Context, sessionID, url string) {
	if r.core.Cache() == nil || url == "" {
		return
	}
	if err := types.CacheSetJSON(ctx, r.core.Cache(), referenceKey(sessionID), types.SessionReference{URL: url}, r.ttl); err != nil {
		slog.Warn("failed to cache session reference", slog.String("session_id", sessionID), slog.Any("error", err))
	}
}

func (r *ReferenceResolver) Slot(ctx context.Context, sessionID string) *types.SessionReference {
	if r.core.Cache() == nil {
		return nil
	}
	ref, err := types.CacheGetJSON[types.SessionReference](ctx, r.core.Cache(), referenceKey(sessionID))
	if err != nil {
		if err != types.ErrCacheMiss {
			slog.Warn("failed to read session reference", slog.String("session_id", sessionID), slog.Any("error", err))
		}
		return nil
	}
	return ref
}

// UploadImage stores a base64 or data-url image and returns its public url.
func UploadImage(ctx context.Context, c *core.Core, userID, payload string) (string, error) {
	raw, mime, err := utils.DecodeBase64Image(payload)
	if err != nil {
		return "", err
	}
	return UploadBytes(ctx, c, userID, UPLOAD_KIND_REFERENCE, raw, mime)
}

const (
	UPLOAD_KIND_REFERENCE = "references"
	UPLOAD_KIND_RENDER    = "renders"
	UPLOAD_KIND_WEB       = "web"
)

func UploadBytes(ctx context.Context, c *core.Core, userID, kind string, raw []byte, mime string) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("empty upload")
	}
	name := uuid.NewString() + "." + utils.MimeExtension(mime)
	return c.FileStorage().Upload(ctx, types.GenS3FilePath(userID, kind, name), raw, mime)
}

// lastGeneratedImage finds the newest image of the session: working memory
// first, then the marker left in assistant messages.
func lastGeneratedImage(working []*types.GeneratedAsset, history []*types.Message) string {
	for _, a := range working {
		if a.Type == types.ASSET_IMAGE {
			return a.URL
		}
	}
	return LastGeneratedURL(history)
}
