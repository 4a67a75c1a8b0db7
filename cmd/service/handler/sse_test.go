package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/types"
)

func TestEventStreamFrames(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	startEventStream(c)
	require.NoError(t, writeEvent(c, types.NewEvent(types.EVENT_TOKEN, "Hel")))
	require.NoError(t, writeEvent(c, types.Event{Type: types.EVENT_ERROR, TaskType: "video", Message: "boom"}))
	require.NoError(t, writeKeepAlive(c))
	require.NoError(t, writeEvent(c, types.NewEvent(types.EVENT_DONE, nil)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))
	assert.Equal(t, "event: token\ndata: \"Hel\"\n\n"+
		"event: error\ndata: {\"task_type\":\"video\",\"message\":\"boom\"}\n\n"+
		": ping\n\n"+
		"event: done\ndata: {}\n\n", w.Body.String())
}
