package v1

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/atelier-studio/atelier/pkg/types"
)

const (
	// sessions idle for longer than this are left alone
	summaryLookback   = 7 * 24 * time.Hour
	summaryMarkerTTL  = 30 * 24 * time.Hour
	summaryPageSize   = 50
	summaryMaxPerTick = 200
)

func sessionSummaryMarker(sessionID string) string {
	return "session_summary:" + sessionID
}

// SummarizeIdleSessions digests the projects that went quiet since the last
// run into the owners' long-term memory. A session is summarized again only
// after new messages move its updated_at.
func (s *Studio) SummarizeIdleSessions(ctx context.Context, now time.Time) (int, error) {
	cfg := s.core.Cfg().Studio
	oldest := now.Add(-summaryLookback).Unix()
	opts := types.ListSessionOptions{
		OnlyActive: true,
		IdleBefore: now.Add(-cfg.IdleSessionAfter.Duration).Unix(),
	}

	done := 0
	for page := uint64(1); done < summaryMaxPerTick; page++ {
		list, err := s.core.Store().SessionStore().List(ctx, opts, page, summaryPageSize)
		if err != nil {
			return done, fmt.Errorf("failed to list idle sessions: %w", err)
		}
		for _, session := range list {
			if session.UpdatedAt < oldest {
				return done, nil
			}
			ok, err := s.summarizeSession(ctx, session)
			if err != nil {
				slog.Error("failed to summarize session", slog.String("session_id", session.ID), slog.Any("error", err))
				continue
			}
			if ok {
				done++
			}
		}
		if len(list) < summaryPageSize {
			break
		}
	}
	return done, nil
}

func (s *Studio) summarizeSession(ctx context.Context, session *types.Session) (bool, error) {
	cache := s.core.Cache()
	marker := sessionSummaryMarker(session.ID)
	stamp := strconv.FormatInt(session.UpdatedAt, 10)
	if last, err := cache.Get(ctx, marker); err == nil && last == stamp {
		return false, nil
	}

	history, err := NewMessageLogic(WithUser(ctx, session.UserID, ""), s.core).Recent(session.ID, 0)
	if err != nil {
		return false, err
	}
	summary, err := s.memory.AddSessionSummary(ctx, session.UserID, session.ID, history)
	if err != nil {
		return false, err
	}
	if err = cache.SetEx(ctx, marker, stamp, summaryMarkerTTL); err != nil {
		slog.Warn("failed to store session summary marker", slog.String("session_id", session.ID), slog.Any("error", err))
	}
	return summary != "", nil
}
