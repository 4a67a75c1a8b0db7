package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	v1 "github.com/atelier-studio/atelier/app/logic/v1"
	"github.com/atelier-studio/atelier/app/response"
	"github.com/atelier-studio/atelier/pkg/i18n"
	"github.com/atelier-studio/atelier/pkg/safe"
	"github.com/atelier-studio/atelier/pkg/types"
	"github.com/atelier-studio/atelier/pkg/utils"
)

const keepAliveInterval = 15 * time.Second

type ChatRequest struct {
	SessionID          string   `json:"session_id"`
	Message            string   `json:"message" binding:"required"`
	Images             []string `json:"images"`
	PriorReferenceURLs []string `json:"prior_reference_urls"`
}

// Chat runs one assistant turn and streams its events until done. Events of
// background jobs arriving later go to the session events stream.
func (s *HttpSrv) Chat(c *gin.Context) {
	var req ChatRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	session, err := v1.NewSessionLogic(c, s.Core).Ensure(req.SessionID)
	if err != nil {
		response.APIError(c, err)
		return
	}
	userID, _ := v1.InjectUserID(c)
	lang := v1.InjectLang(c)

	bus := s.Studio.Bus()
	sub := v1.NewChanSubscriber(0)
	bus.Register(session.ID, sub)
	defer func() {
		bus.Unregister(session.ID, sub)
		sub.Close()
	}()

	finished := make(chan error, 1)
	go safe.RunWithLog(func() {
		_, err := v1.NewStudioAssistant(s.Studio).RequestAssistant(c.Request.Context(), v1.ChatInput{
			UserID:             userID,
			SessionID:          session.ID,
			Message:            req.Message,
			Lang:               lang,
			Images:             req.Images,
			PriorReferenceURLs: req.PriorReferenceURLs,
		})
		finished <- err
	}, "chat")

	startEventStream(c)
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeEvent(c, ev); err != nil {
				slog.Debug("chat stream closed by client", slog.String("session_id", session.ID))
				return
			}
			if ev.Type == types.EVENT_DONE {
				return
			}
		case err := <-finished:
			if s.drain(c, sub) {
				return
			}
			// the turn ended without emitting done, e.g. it failed before the first event
			if err != nil {
				msg := s.Studio.Localizer().Get(lang, i18n.MESSAGE_TURN_FAILED)
				_ = writeEvent(c, types.Event{Type: types.EVENT_ERROR, TaskType: "chat", Message: msg})
			}
			_ = writeEvent(c, types.NewEvent(types.EVENT_DONE, nil))
			return
		case <-ticker.C:
			if err := writeKeepAlive(c); err != nil {
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}

// drain flushes what is already buffered and reports whether done was among it.
func (s *HttpSrv) drain(c *gin.Context, sub *v1.ChanSubscriber) bool {
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			if writeEvent(c, ev) != nil || ev.Type == types.EVENT_DONE {
				return true
			}
		default:
			return false
		}
	}
}

// SessionEvents subscribes to everything the session emits, starting with
// the last progress snapshot of each running task.
func (s *HttpSrv) SessionEvents(c *gin.Context) {
	sessionID, _ := c.Params.Get("session")
	if _, err := v1.NewSessionLogic(c, s.Core).Get(sessionID); err != nil {
		response.APIError(c, err)
		return
	}

	bus := s.Studio.Bus()
	sub := v1.NewChanSubscriber(0)
	bus.Register(sessionID, sub)
	defer func() {
		bus.Unregister(sessionID, sub)
		sub.Close()
	}()

	startEventStream(c)
	for _, ev := range bus.LastProgress(c, sessionID) {
		if writeEvent(c, ev) != nil {
			return
		}
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok || writeEvent(c, ev) != nil {
				return
			}
		case <-ticker.C:
			if writeKeepAlive(c) != nil {
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}

type StopStreamResponse struct {
	Stopped bool `json:"stopped"`
}

func (s *HttpSrv) StopStream(c *gin.Context) {
	sessionID, _ := c.Params.Get("session")
	if _, err := v1.NewSessionLogic(c, s.Core).Get(sessionID); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, StopStreamResponse{Stopped: s.Studio.StopStream(sessionID)})
}
