package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atelier-studio/atelier/app/core"
	"github.com/atelier-studio/atelier/app/response"
	"github.com/atelier-studio/atelier/pkg/errors"
	"github.com/atelier-studio/atelier/pkg/i18n"
)

// Websocket hands the connection to the centrifuge node. Clients subscribe to
// their session channels there; the relay carries the same events as the bus.
func Websocket(core *core.Core) gin.HandlerFunc {
	if core.Srv().Centrifuge() == nil {
		return func(c *gin.Context) {
			response.APIError(c, errors.New("api.Websocket", i18n.ERROR_INTERNAL, nil).Code(http.StatusNotImplemented))
		}
	}
	return func(c *gin.Context) {
		if err := core.Srv().Centrifuge().HandleWebSocket(c.Writer, c.Request); err != nil {
			slog.Error("Websocket upgrade failed", slog.String("error", err.Error()))
		}
	}
}
