package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	v1 "github.com/atelier-studio/atelier/app/logic/v1"
	"github.com/atelier-studio/atelier/app/response"
	"github.com/atelier-studio/atelier/cmd/service/handler"
	"github.com/atelier-studio/atelier/cmd/service/middleware"
	"github.com/atelier-studio/atelier/pkg/mcp"
	"github.com/atelier-studio/atelier/pkg/metrics"
)

const (
	LIMIT_CLASS_CHAT = "chat"
	shutdownTimeout  = 30 * time.Second
)

func serve(studio *v1.Studio) error {
	app := studio.Core()
	httpSrv := &handler.HttpSrv{
		Core:   app,
		Studio: studio,
		Engine: app.HttpEngine(),
	}
	setupHttpRouter(httpSrv)

	server := &http.Server{Addr: app.Cfg().Addr, Handler: httpSrv.Engine}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-sigs:
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown", slog.String("error", err.Error()))
	}
	if err := studio.Runner().Wait(ctx); err != nil {
		slog.Warn("background jobs still running at shutdown", slog.Int("count", len(studio.Runner().Running())))
	}
	app.Shutdown(ctx)
	return nil
}

func setupHttpRouter(s *handler.HttpSrv) {
	s.Engine.Use(middleware.I18n(), response.NewResponse())
	s.Engine.Use(middleware.Cors)

	s.Engine.GET("/metrics", metrics.DefaultExportHandler())
	s.Engine.GET("/healthz", func(c *gin.Context) {
		response.APISuccess(c, s.Core.Srv().Status())
	})

	s.Engine.GET("/connect", handler.Websocket(s.Core))
	mcpHandler := mcp.MCPStreamableHandler(s.Studio)
	s.Engine.Any("/mcp", mcpHandler)

	apiV1 := s.Engine.Group("/api/v1")
	apiV1.Use(middleware.Identity())
	{
		apiV1.POST("/chat", middleware.UseLimit(s.Core, LIMIT_CLASS_CHAT), s.Chat)

		sessions := apiV1.Group("/sessions")
		{
			sessions.POST("", s.CreateSession)
			sessions.GET("", s.ListSessions)
			sessions.GET("/:session", s.GetSession)
			sessions.PUT("/:session", s.UpdateSession)
			sessions.DELETE("/:session", s.DeleteSession)
			sessions.GET("/:session/messages", s.ListMessages)
			sessions.GET("/:session/events", s.SessionEvents)
			sessions.POST("/:session/stop", s.StopStream)
		}

		apiV1.GET("/preferences", s.GetPreferences)
		apiV1.PUT("/preferences", s.UpdatePreferences)
	}
}
