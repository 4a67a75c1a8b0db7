package core

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/atelier-studio/atelier/app/core/srv"
)

func MustLoadBaseConfig(path string) CoreConfig {
	if path == "" {
		return LoadBaseConfigFromENV()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	conf := &CoreConfig{}
	conf.SetConfigBytes(raw)

	if err = toml.Unmarshal(raw, conf); err != nil {
		panic(err)
	}
	conf.Studio.applyDefaults()

	return *conf
}

func (c CoreConfig) LoadCustomConfig(cfg any) error {
	if len(c.bytes) == 0 {
		return nil
	}
	return toml.Unmarshal(c.bytes, cfg)
}

func LoadBaseConfigFromENV() CoreConfig {
	var c CoreConfig
	c.FromENV()
	c.Studio.applyDefaults()
	return c
}

type CoreConfig struct {
	Addr          string              `toml:"addr"`
	Log           Log                 `toml:"log"`
	Postgres      PGConfig            `toml:"postgres"`
	Redis         RedisConfig         `toml:"redis"`
	ObjectStorage ObjectStorageDriver `toml:"object_storage"`

	AI         srv.AIConfig     `toml:"ai"`
	Vendors    srv.VendorConfig `toml:"vendors"`
	Media      srv.MediaConfig  `toml:"media"`
	Centrifuge CentrifugeConfig `toml:"centrifuge"`

	Studio     StudioConfig     `toml:"studio"`
	Background BackgroundConfig `toml:"background"`
	Limits     LimitsConfig     `toml:"limits"`

	bytes []byte `toml:"-"`
}

func (c *CoreConfig) SetConfigBytes(raw []byte) {
	c.bytes = raw
}

type ObjectStorageDriver struct {
	StaticDomain string    `toml:"static_domain"`
	Driver       string    `toml:"driver"`
	S3           *S3Config `toml:"s3"`
}

type S3Config struct {
	Bucket       string `toml:"bucket"`
	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	UsePathStyle bool   `toml:"use_path_style"`
}

// StudioConfig holds the tunables of the turn pipeline.
type StudioConfig struct {
	CompactionThreshold int      `toml:"compaction_threshold"`
	CompactionKeep      int      `toml:"compaction_keep"`
	CompactionFallback  int      `toml:"compaction_fallback"`
	HistoryLimit        int      `toml:"history_limit"`
	WorkingMemorySize   int      `toml:"working_memory_size"`
	MaxToolRetries      int      `toml:"max_tool_retries"`
	EpisodicCapacity    int      `toml:"episodic_capacity"`
	EpisodicRecall      int      `toml:"episodic_recall"`
	UserMemoryTTL       Duration `toml:"user_memory_ttl"`
	ProgressSnapshotTTL Duration `toml:"progress_snapshot_ttl"`
	ReferenceTTL        Duration `toml:"reference_ttl"`
	MaxVideoSeconds     int      `toml:"max_video_seconds"`
	MaxLongVideoSeconds int      `toml:"max_long_video_seconds"`
	EditStageTimeout    Duration `toml:"edit_stage_timeout"`
	IdleSessionAfter    Duration `toml:"idle_session_after"`
}

func (s *StudioConfig) applyDefaults() {
	setInt := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	setDur := func(v *Duration, d time.Duration) {
		if v.Duration <= 0 {
			v.Duration = d
		}
	}
	setInt(&s.CompactionThreshold, 15)
	setInt(&s.CompactionKeep, 5)
	setInt(&s.CompactionFallback, 10)
	setInt(&s.HistoryLimit, 40)
	setInt(&s.WorkingMemorySize, 5)
	setInt(&s.MaxToolRetries, 2)
	setInt(&s.EpisodicCapacity, 100)
	setInt(&s.EpisodicRecall, 5)
	setInt(&s.MaxVideoSeconds, 10)
	setInt(&s.MaxLongVideoSeconds, 180)
	setDur(&s.UserMemoryTTL, 7*24*time.Hour)
	setDur(&s.ProgressSnapshotTTL, 5*time.Minute)
	setDur(&s.ReferenceTTL, 24*time.Hour)
	setDur(&s.EditStageTimeout, 90*time.Second)
	setDur(&s.IdleSessionAfter, 2*time.Hour)
}

// Duration decodes toml strings such as "90s" or "168h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type BackgroundConfig struct {
	// Durable routes background productions through the redis queue consumed
	// by the process command instead of in-process goroutines.
	Durable     bool   `toml:"durable"`
	Concurrency int    `toml:"concurrency"`
	KeyPrefix   string `toml:"key_prefix"`
}

type LimitsConfig struct {
	// Classes maps an operation class (image, video, audio, search) to its budget.
	Classes             map[string]LimitRule `toml:"classes"`
	MaxConcurrentVideos int                  `toml:"max_concurrent_videos"`
}

type LimitRule struct {
	PerMinute int `toml:"per_minute"`
	Burst     int `toml:"burst"`
}

type CentrifugeConfig struct {
	MaxConnections    int      `toml:"max_connections"`
	HeartbeatInterval int      `toml:"heartbeat_interval"`
	DeploymentMode    string   `toml:"deployment_mode"`
	RedisURL          string   `toml:"redis_url"`
	HistorySize       int      `toml:"history_size"`
	AllowedOrigins    []string `toml:"allowed_origins"`
}

func (c *CoreConfig) FromENV() {
	c.Addr = os.Getenv("ATELIER_API_SERVICE_ADDRESS")
	c.Log.FromENV()
	c.Postgres.FromENV()
	c.Redis.FromENV()
	c.AI.FromENV()
	c.Vendors.FromENV()
	c.Background.Durable = os.Getenv("ATELIER_BACKGROUND_DURABLE") == "true"
	if bucket := os.Getenv("ATELIER_S3_BUCKET"); bucket != "" {
		c.ObjectStorage.Driver = "s3"
		c.ObjectStorage.StaticDomain = os.Getenv("ATELIER_S3_STATIC_DOMAIN")
		c.ObjectStorage.S3 = &S3Config{
			Bucket:       bucket,
			Region:       os.Getenv("ATELIER_S3_REGION"),
			Endpoint:     os.Getenv("ATELIER_S3_ENDPOINT"),
			AccessKey:    os.Getenv("ATELIER_S3_ACCESS_KEY"),
			SecretKey:    os.Getenv("ATELIER_S3_SECRET_KEY"),
			UsePathStyle: os.Getenv("ATELIER_S3_PATH_STYLE") == "true",
		}
	}
}

type PGConfig struct {
	DSN string `toml:"dsn"`
}

func (m *PGConfig) FromENV() {
	m.DSN = os.Getenv("ATELIER_POSTGRESQL_DSN")
}

func (c PGConfig) FormatDSN() string {
	return c.DSN
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`

	Cluster      bool     `toml:"cluster"`
	ClusterAddrs []string `toml:"cluster_addrs"`

	PoolSize     int `toml:"pool_size"`
	MinIdleConns int `toml:"min_idle_conns"`
	MaxRetries   int `toml:"max_retries"`
	DialTimeout  int `toml:"dial_timeout"`  // seconds
	ReadTimeout  int `toml:"read_timeout"`  // seconds
	WriteTimeout int `toml:"write_timeout"` // seconds

	KeyPrefix string `toml:"key_prefix"`
}

func (r *RedisConfig) FromENV() {
	r.Addr = os.Getenv("ATELIER_REDIS_ADDR")
	r.Password = os.Getenv("ATELIER_REDIS_PASSWORD")
	if dbStr := os.Getenv("ATELIER_REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			r.DB = db
		}
	}
}

type Log struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

func (l *Log) FromENV() {
	l.Level = os.Getenv("ATELIER_API_LOG_LEVEL")
	l.Path = os.Getenv("ATELIER_API_LOG_PATH")
}

func (l *Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
