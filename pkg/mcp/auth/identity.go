package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/atelier-studio/atelier/pkg/i18n"
	"github.com/atelier-studio/atelier/pkg/utils"
)

const USER_ID_HEADER = "X-User-Id"

type contextKey string

const userContextKey contextKey = "mcp_user_context"

func SetUserContext(ctx context.Context, userCtx *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, userCtx)
}

func GetUserContext(ctx context.Context) (*UserContext, bool) {
	userCtx, ok := ctx.Value(userContextKey).(*UserContext)
	return userCtx, ok
}

// UserContext is the caller of an MCP request. Identity is resolved in front
// of this service; the request only carries the id.
type UserContext struct {
	UserID string
	Lang   string
}

// ValidateRequest reads the caller from the X-User-Id header, falling back to
// the user_id query parameter for clients that cannot set headers.
func ValidateRequest(c *gin.Context) (*UserContext, error) {
	userID := strings.TrimSpace(c.GetHeader(USER_ID_HEADER))
	if userID == "" {
		userID = strings.TrimSpace(c.Query("user_id"))
	}
	if userID == "" {
		return nil, fmt.Errorf("missing user id (provide the %s header or the user_id param)", USER_ID_HEADER)
	}

	lang := i18n.DEFAULT_LANG
	if res := utils.ParseAcceptLanguage(c.GetHeader("Accept-Language")); len(res) > 0 {
		tag := strings.ToLower(strings.SplitN(res[0].Tag, "-", 2)[0])
		if i18n.ALLOW_LANG[tag] {
			lang = tag
		}
	}
	return &UserContext{UserID: userID, Lang: lang}, nil
}
