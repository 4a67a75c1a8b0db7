package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/atelier-studio/atelier/app/core"
	v1 "github.com/atelier-studio/atelier/app/logic/v1"
	"github.com/atelier-studio/atelier/app/response"
	"github.com/atelier-studio/atelier/pkg/errors"
	"github.com/atelier-studio/atelier/pkg/i18n"
	"github.com/atelier-studio/atelier/pkg/utils"
)

const USER_ID_HEADER = "X-User-Id"

func I18n() gin.HandlerFunc {
	var allowList []string
	for k := range i18n.ALLOW_LANG {
		allowList = append(allowList, k)
	}
	return response.ProvideResponseLocalizer(i18n.NewLocalizer(allowList...))
}

// Identity trusts the user id resolved by the gateway in front of the service
// and puts it, with the request language, on the request context.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(USER_ID_HEADER))
		if userID == "" {
			// websocket and EventSource clients cannot set headers
			userID = strings.TrimSpace(c.Query("user_id"))
		}
		if userID == "" {
			response.APIError(c, errors.New("middleware.Identity", i18n.ERROR_UNAUTHORIZED, nil).Code(http.StatusUnauthorized))
			return
		}
		ctx := v1.WithUser(c.Request.Context(), userID, requestLang(c))
		c.Request = c.Request.WithContext(ctx)
	}
}

func requestLang(c *gin.Context) string {
	for _, l := range utils.ParseAcceptLanguage(c.GetHeader("Accept-Language")) {
		tag := strings.ToLower(strings.SplitN(l.Tag, "-", 2)[0])
		if i18n.ALLOW_LANG[tag] {
			return tag
		}
	}
	return i18n.DEFAULT_LANG
}

func Cors(c *gin.Context) {
	method := c.Request.Method
	origin := c.Request.Header.Get("Origin")
	if origin != "" {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		c.Header("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Accept-Language, X-User-Id, Mcp-Session-Id")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Access-Control-Allow-Origin, Access-Control-Allow-Headers, Cache-Control, Content-Language, Content-Type, Mcp-Session-Id")
		c.Header("Access-Control-Allow-Credentials", "true")
	}
	if method == "OPTIONS" {
		c.AbortWithStatus(http.StatusNoContent)
	}
	c.Next()
}

// UseLimit applies the per-user budget of an operation class.
func UseLimit(appCore *core.Core, class string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := v1.InjectUserID(c.Request.Context())
		ok, wait := appCore.Limiter().Allow(userID, class)
		if !ok {
			c.Header("Retry-After", strconv.Itoa(wait))
			response.APIError(c, errors.New("middleware.limiter", i18n.ERROR_TOO_MANY_REQUESTS, nil).Code(http.StatusTooManyRequests))
		}
	}
}
