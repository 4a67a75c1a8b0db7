package centrifuge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/centrifugal/centrifuge"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/samber/lo"
)

const (
	SessionChannelPrefix = "studio:session:"
	UserChannelPrefix    = "studio:user:"
)

func SessionChannel(sessionID string) string {
	return SessionChannelPrefix + sessionID
}

func UserChannel(userID string) string {
	return UserChannelPrefix + userID
}

// Manager relays progress-bus events to websocket clients and keeps the
// registry of cancellable foreground streams.
type Manager struct {
	node   *centrifuge.Node
	config *Config

	streamSignals cmap.ConcurrentMap[string, func()]
}

const (
	relayVersion = "v1"
	historyTTL   = 5 * time.Minute
)

type relayEnvelope struct {
	Version string `json:"version"`
	Type    string `json:"type"`
	Data    any    `json:"data"`
}

func NewManager(cfg *Config, owners SessionOwners) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ResolveEnvVars()

	node, err := centrifuge.New(centrifuge.Config{
		LogLevel: centrifuge.LogLevelWarn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create centrifuge node: %w", err)
	}

	manager := &Manager{
		node:          node,
		config:        cfg,
		streamSignals: cmap.New[func()](),
	}

	switch cfg.DeploymentMode {
	case "distributed":
		slog.Info("centrifuge running with redis broker", slog.String("redis_url", cfg.RedisURL))
		if err := manager.setupRedisBroker(cfg.RedisURL); err != nil {
			return nil, err
		}
	default:
		slog.Info("centrifuge running with memory broker")
	}

	authHandler := NewAuthHandler(owners)
	node.OnConnecting(func(ctx context.Context, ce centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
		reply, err := authHandler.OnConnecting(ctx, ce)
		if err != nil {
			slog.Warn("websocket connection rejected", slog.Any("error", err))
		}
		return reply, err
	})

	node.OnConnect(func(client *centrifuge.Client) {
		client.OnSubscribe(func(e centrifuge.SubscribeEvent, cb centrifuge.SubscribeCallback) {
			reply, err := authHandler.OnSubscribe(context.Background(), client, e)
			cb(reply, err)
		})

		client.OnUnsubscribe(func(e centrifuge.UnsubscribeEvent) {
			slog.Debug("client unsubscribed", slog.String("user_id", client.UserID()), slog.String("channel", e.Channel))
		})

		client.OnDisconnect(func(e centrifuge.DisconnectEvent) {
			slog.Debug("client disconnected", slog.String("user_id", client.UserID()), slog.String("reason", e.Reason))
		})
	})

	if err := node.Run(); err != nil {
		return nil, fmt.Errorf("failed to run centrifuge node: %w", err)
	}

	return manager, nil
}

func (m *Manager) Node() *centrifuge.Node {
	return m.node
}

// PublishSessionEvent mirrors one progress-bus event onto the session channel
// so clients on other nodes see it too.
func (m *Manager) PublishSessionEvent(sessionID string, eventType string, payload any) error {
	raw, err := json.Marshal(relayEnvelope{Version: relayVersion, Type: eventType, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}
	_, err = m.node.Publish(SessionChannel(sessionID), raw, centrifuge.WithHistory(m.config.HistorySize, historyTTL))
	return err
}

// RegisterStreamSignal stores the cancel func of the active foreground stream
// of a session; the returned func removes it.
func (m *Manager) RegisterStreamSignal(sessionID string, closeFunc func()) func() {
	m.streamSignals.Set(sessionID, closeFunc)
	return func() {
		m.streamSignals.Remove(sessionID)
	}
}

// NewCloseChatStreamSignal cancels the active foreground stream of a session.
// It reports whether a stream was running.
func (m *Manager) NewCloseChatStreamSignal(sessionID string) bool {
	closeFunc, exists := m.streamSignals.Pop(sessionID)
	if exists && closeFunc != nil {
		go closeFunc()
	}
	return exists
}

// setupRedisBroker shares publications and presence across nodes.
func (m *Manager) setupRedisBroker(redisURL string) error {
	shard, err := centrifuge.NewRedisShard(m.node, centrifuge.RedisShardConfig{Address: redisURL})
	if err != nil {
		return fmt.Errorf("failed to connect redis shard: %w", err)
	}
	shards := []*centrifuge.RedisShard{shard}

	broker, err := centrifuge.NewRedisBroker(m.node, centrifuge.RedisBrokerConfig{Shards: shards})
	if err != nil {
		return fmt.Errorf("failed to create redis broker: %w", err)
	}
	m.node.SetBroker(broker)

	presence, err := centrifuge.NewRedisPresenceManager(m.node, centrifuge.RedisPresenceManagerConfig{Shards: shards})
	if err != nil {
		return fmt.Errorf("failed to create redis presence manager: %w", err)
	}
	m.node.SetPresenceManager(presence)
	return nil
}

func (m *Manager) allowOrigin(r *http.Request) bool {
	origins := m.config.AllowedOrigins
	return len(origins) == 0 || lo.Contains(origins, "*") || lo.Contains(origins, r.Header.Get("Origin"))
}

func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) error {
	centrifuge.NewWebsocketHandler(m.node, centrifuge.WebsocketConfig{CheckOrigin: m.allowOrigin}).ServeHTTP(w, r)
	return nil
}

func (m *Manager) Shutdown(ctx context.Context) error {
	return m.node.Shutdown(ctx)
}
