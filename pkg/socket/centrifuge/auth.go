package centrifuge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/centrifugal/centrifuge"

	"github.com/atelier-studio/atelier/app/store"
)

type SessionOwners interface {
	SessionStore() store.SessionStore
}

// AuthHandler trusts the resolved user id carried by the connection (token or
// x-user-id header) and restricts subscriptions to the user's own channels.
type AuthHandler struct {
	owners SessionOwners
}

func NewAuthHandler(owners SessionOwners) *AuthHandler {
	return &AuthHandler{owners: owners}
}

func (a *AuthHandler) OnConnecting(ctx context.Context, event centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
	userID := event.Token
	if userID == "" {
		userID = event.Headers["x-user-id"]
	}
	if userID == "" {
		return centrifuge.ConnectReply{}, centrifuge.ErrorUnauthorized
	}

	info, err := connInfo(userID)
	if err != nil {
		return centrifuge.ConnectReply{}, err
	}
	return centrifuge.ConnectReply{
		Credentials: &centrifuge.Credentials{
			UserID: userID,
			Info:   info,
		},
	}, nil
}

func connInfo(userID string) ([]byte, error) {
	return json.Marshal(struct {
		UserID string `json:"user_id"`
	}{UserID: userID})
}

func (a *AuthHandler) OnSubscribe(ctx context.Context, client *centrifuge.Client, event centrifuge.SubscribeEvent) (centrifuge.SubscribeReply, error) {
	if err := a.authorize(ctx, client.UserID(), event.Channel); err != nil {
		return centrifuge.SubscribeReply{}, err
	}
	return centrifuge.SubscribeReply{}, nil
}

func (a *AuthHandler) authorize(ctx context.Context, userID, channel string) error {
	slog.Debug("user subscribing to channel",
		slog.String("user_id", userID),
		slog.String("channel", channel))

	switch {
	case strings.HasPrefix(channel, UserChannelPrefix):
		if strings.TrimPrefix(channel, UserChannelPrefix) != userID {
			return centrifuge.ErrorPermissionDenied
		}
	case strings.HasPrefix(channel, SessionChannelPrefix):
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()

		session, err := a.owners.SessionStore().Get(ctx, strings.TrimPrefix(channel, SessionChannelPrefix))
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if session == nil || session.UserID != userID {
			return centrifuge.ErrorPermissionDenied
		}
	default:
		slog.Warn("Unknown channel prefix", slog.String("channel", channel))
		return centrifuge.ErrorPermissionDenied
	}
	return nil
}
