package core

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/atelier-studio/atelier/app/core/srv"
	"github.com/atelier-studio/atelier/app/store"
	"github.com/atelier-studio/atelier/app/store/memstore"
	"github.com/atelier-studio/atelier/app/store/sqlstore"
	"github.com/atelier-studio/atelier/pkg/queue"
	centrifugeManager "github.com/atelier-studio/atelier/pkg/socket/centrifuge"
	"github.com/atelier-studio/atelier/pkg/types"
)

type Core struct {
	cfg CoreConfig
	srv *srv.Srv

	stores      store.Provider
	redis       redis.UniversalClient
	cache       types.Cache
	fileStorage FileStorage
	limiter     *Limiter
	semaphores  *SemaphoreManager
	queue       *queue.StudioQueue
	httpEngine  *gin.Engine

	metrics  *Metrics
	closures []func()
}

type Option func(c *Core)

func WithStore(p store.Provider) Option {
	return func(c *Core) { c.stores = p }
}

func WithRedis(cli redis.UniversalClient) Option {
	return func(c *Core) { c.redis = cli }
}

func WithFileStorage(fs FileStorage) Option {
	return func(c *Core) { c.fileStorage = fs }
}

func WithSrv(s *srv.Srv) Option {
	return func(c *Core) { c.srv = s }
}

// NewCore assembles a core from explicit parts; anything not provided falls
// back to an in-process implementation.
func NewCore(cfg CoreConfig, opts ...Option) *Core {
	cfg.Studio.applyDefaults()
	c := &Core{
		cfg:        cfg,
		metrics:    NewMetrics("atelier", "core"),
		httpEngine: gin.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.stores == nil {
		c.stores = memstore.New()
	}
	if c.redis == nil {
		cli, closeFn := embeddedRedis()
		c.redis = cli
		c.closures = append(c.closures, closeFn)
	}
	c.cache = NewCache(c.redis, cfg.Redis.KeyPrefix)
	if c.fileStorage == nil {
		c.fileStorage = disabledStorage{}
	}
	if c.srv == nil {
		c.srv = srv.SetupSrvs()
	}
	c.limiter = NewLimiter(cfg.Limits.Classes)
	c.semaphores = NewSemaphoreManager(c.redis, cfg.Redis.KeyPrefix, cfg.Limits.MaxConcurrentVideos)
	return c
}

func MustSetupCore(cfg CoreConfig) *Core {
	setupLogger(cfg.Log)

	var opts []Option
	if cfg.Postgres.DSN != "" {
		opts = append(opts, WithStore(setupSqlStore(cfg.Postgres)))
	} else {
		slog.Warn("postgres dsn not configured, using in-memory store")
	}
	if cfg.Redis.Addr != "" || cfg.Redis.Cluster {
		opts = append(opts, WithRedis(setupRedis(cfg.Redis)))
	}
	opts = append(opts, WithFileStorage(setupFileStorage(cfg.ObjectStorage)))

	core := NewCore(cfg, opts...)
	SetupSrv(core)

	if cfg.Background.Durable {
		opt := queue.RedisConnOpt(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Cluster, cfg.Redis.ClusterAddrs)
		core.queue = queue.NewStudioQueueWithClient(cfg.Background.KeyPrefix, asynq.NewClient(opt))
	}
	return core
}

func setupLogger(cfg Log) {
	var writer io.Writer = os.Stdout
	if cfg.Path != "" {
		writer = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    500, // megabytes
			MaxBackups: 3,
			MaxAge:     28, //days
			Compress:   true,
		}
	}
	l := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(l)
}

func setupSqlStore(cfg PGConfig) store.Provider {
	p := sqlstore.MustSetup(cfg)()
	if err := p.Install(); err != nil {
		panic(err)
	}
	slog.Info("sql store ready")
	return p
}

// SetupSrv builds the external collaborators from configuration.
func SetupSrv(core *Core) {
	centrifugeSetupFunc := func() (srv.CentrifugeManager, error) {
		return centrifugeManager.NewManager(&centrifugeManager.Config{
			MaxConnections:    core.cfg.Centrifuge.MaxConnections,
			HeartbeatInterval: core.cfg.Centrifuge.HeartbeatInterval,
			DeploymentMode:    core.cfg.Centrifuge.DeploymentMode,
			RedisURL:          core.cfg.Centrifuge.RedisURL,
			HistorySize:       core.cfg.Centrifuge.HistorySize,
			AllowedOrigins:    core.cfg.Centrifuge.AllowedOrigins,
		}, core.Store())
	}

	core.srv = srv.SetupSrvs(
		srv.ApplyAI(core.cfg.AI),
		srv.ApplyVendor(core.cfg.Vendors, core.metrics.VendorAttempt),
		srv.ApplyMedia(core.cfg.Media),
		srv.ApplyWebSearch(5),
		srv.ApplyCentrifuge(centrifugeSetupFunc),
	)
}

func (s *Core) Cfg() CoreConfig {
	return s.cfg
}

func (s *Core) HttpEngine() *gin.Engine {
	return s.httpEngine
}

func (s *Core) Metrics() *Metrics {
	return s.metrics
}

func (s *Core) Store() store.Provider {
	return s.stores
}

func (s *Core) Srv() *srv.Srv {
	return s.srv
}

func (s *Core) Redis() redis.UniversalClient {
	return s.redis
}

func (s *Core) Cache() types.Cache {
	return s.cache
}

func (s *Core) FileStorage() FileStorage {
	return s.fileStorage
}

func (s *Core) Limiter() *Limiter {
	return s.limiter
}

func (s *Core) Semaphores() *SemaphoreManager {
	return s.semaphores
}

// Queue is nil unless background jobs run in durable mode.
func (s *Core) Queue() *queue.StudioQueue {
	return s.queue
}

func (s *Core) Shutdown(ctx context.Context) {
	if s.queue != nil {
		s.queue.Shutdown()
	}
	if c := s.srv.Centrifuge(); c != nil {
		if err := c.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown centrifuge", slog.Any("error", err))
		}
	}
	for _, fn := range s.closures {
		fn()
	}
}
