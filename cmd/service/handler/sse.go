package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atelier-studio/atelier/pkg/types"
)

func startEventStream(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()
}

// writeEvent writes one frame: the event name, then the JSON payload on a
// single data line.
func writeEvent(c *gin.Context, ev types.Event) error {
	raw, err := json.Marshal(ev.Payload())
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, raw); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

func writeKeepAlive(c *gin.Context) error {
	if _, err := c.Writer.WriteString(": ping\n\n"); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}
