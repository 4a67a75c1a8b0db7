package v1

import (
	"context"

	"github.com/atelier-studio/atelier/pkg/i18n"
	"github.com/atelier-studio/atelier/pkg/types"
)

// WithUser stores the caller identity on ctx.
func WithUser(ctx context.Context, userID, lang string) context.Context {
	ctx = context.WithValue(ctx, types.CTX_USER_ID, userID)
	if lang != "" {
		ctx = context.WithValue(ctx, types.CTX_LANG, lang)
	}
	return ctx
}

// InjectUserID get the resolved user id from context
func InjectUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(types.CTX_USER_ID).(string)
	return v, ok && v != ""
}

func InjectLang(ctx context.Context) string {
	if v, ok := ctx.Value(types.CTX_LANG).(string); ok && i18n.ALLOW_LANG[v] {
		return v
	}
	return i18n.DEFAULT_LANG
}

// ByLang picks the variant matching the request language.
func ByLang[T any](ctx context.Context, tr, en T) T {
	if InjectLang(ctx) == types.LANGUAGE_EN_KEY {
		return en
	}
	return tr
}
