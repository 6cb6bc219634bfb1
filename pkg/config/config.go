package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Core         CoreConfig
	DMAPI        DMAPIConfig
	Media        MediaConfig
	Backfill     BackfillConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.DMAPI.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env           string `envconfig:"CASTINGLY_APP_ENV" required:"true"`
	Port          string `envconfig:"CASTINGLY_APP_PORT" default:"8080"`
	LogLevel      string `envconfig:"CASTINGLY_LOG_LEVEL" default:"info"`
	LogWarnStack  bool   `envconfig:"CASTINGLY_LOG_WARN_STACK" default:"false"`
	PublicBaseURL string `envconfig:"CASTINGLY_PUBLIC_BASE_URL" default:""`

	CORSOrigins []string `envconfig:"CASTINGLY_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"CASTINGLY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"CASTINGLY_DB_DSN"`

	LegacyHost     string `envconfig:"CASTINGLY_DB_HOST"`
	LegacyPort     int    `envconfig:"CASTINGLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CASTINGLY_DB_USER"`
	LegacyPassword string `envconfig:"CASTINGLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"CASTINGLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"CASTINGLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CASTINGLY_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"CASTINGLY_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CASTINGLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CASTINGLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"CASTINGLY_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CASTINGLY_REDIS_URL"`
	Address      string        `envconfig:"CASTINGLY_REDIS_ADDR"`
	Password     string        `envconfig:"CASTINGLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"CASTINGLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CASTINGLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CASTINGLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CASTINGLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CASTINGLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CASTINGLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes the legacy HS256 session tokens still carried by older clients.
type JWTConfig struct {
	Secret string `envconfig:"CASTINGLY_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"CASTINGLY_JWT_ISSUER" default:""`
}

// CoreConfig points at the Dailey Core identity provider.
type CoreConfig struct {
	BaseURL           string        `envconfig:"CASTINGLY_CORE_URL" default:"https://core.dailey.cloud"`
	Timeout           time.Duration `envconfig:"CASTINGLY_CORE_TIMEOUT" default:"10s"`
	PrincipalCacheTTL time.Duration `envconfig:"CASTINGLY_CORE_PRINCIPAL_CACHE_TTL" default:"60s"`
}

// DMAPIConfig points at the external media storage API.
type DMAPIConfig struct {
	BaseURL         string        `envconfig:"CASTINGLY_DMAPI_URL" default:"https://media.dailey.cloud"`
	AppSlug         string        `envconfig:"CASTINGLY_DMAPI_APP_SLUG" default:"castingly"`
	LegacyAppID     string        `envconfig:"CASTINGLY_DMAPI_LEGACY_APP_ID" default:"castingly"`
	ServiceEmail    string        `envconfig:"CASTINGLY_DMAPI_SERVICE_EMAIL"`
	ServicePassword string        `envconfig:"CASTINGLY_DMAPI_SERVICE_PASSWORD"`
	APIKey          string        `envconfig:"CASTINGLY_DMAPI_API_KEY"`
	PublicBucket    string        `envconfig:"CASTINGLY_DMAPI_PUBLIC_BUCKET" default:"castingly-public"`
	PrivateBucket   string        `envconfig:"CASTINGLY_DMAPI_PRIVATE_BUCKET" default:"castingly-private"`
	Timeout         time.Duration `envconfig:"CASTINGLY_DMAPI_TIMEOUT" default:"60s"`
	TokenTTL        time.Duration `envconfig:"CASTINGLY_DMAPI_TOKEN_TTL" default:"50m"`
	KeyCacheTTL     time.Duration `envconfig:"CASTINGLY_DMAPI_KEY_CACHE_TTL" default:"5m"`
}

// HasServiceAccount reports whether a service login (or static key) is configured.
func (d DMAPIConfig) HasServiceAccount() bool {
	if strings.TrimSpace(d.APIKey) != "" {
		return true
	}
	return strings.TrimSpace(d.ServiceEmail) != "" && d.ServicePassword != ""
}

func (d DMAPIConfig) validate() error {
	if strings.TrimSpace(d.BaseURL) == "" {
		return fmt.Errorf("%s is required", EnvDMAPIURL)
	}
	if _, err := url.Parse(d.BaseURL); err != nil {
		return fmt.Errorf("parsing %s: %w", EnvDMAPIURL, err)
	}
	if d.APIKey != "" && !strings.HasPrefix(d.APIKey, DMAPIKeyPrefix) {
		return fmt.Errorf("%s must start with %q", EnvDMAPIAPIKey, DMAPIKeyPrefix)
	}
	if d.PublicBucket == "" || d.PrivateBucket == "" {
		return fmt.Errorf("dmapi bucket names are required")
	}
	return nil
}

// MediaConfig carries per-category limit overrides. Zero means "use the built-in default".
type MediaConfig struct {
	DisableImageLimits bool  `envconfig:"CASTINGLY_MEDIA_DISABLE_IMAGE_LIMITS" default:"false"`
	MultipartMemoryMB  int64 `envconfig:"CASTINGLY_MEDIA_MULTIPART_MEMORY_MB" default:"32"`

	HeadshotMaxCount  int   `envconfig:"CASTINGLY_MEDIA_HEADSHOT_MAX_COUNT"`
	HeadshotMaxMB     int64 `envconfig:"CASTINGLY_MEDIA_HEADSHOT_MAX_MB"`
	GalleryMaxCount   int   `envconfig:"CASTINGLY_MEDIA_GALLERY_MAX_COUNT"`
	GalleryMaxMB      int64 `envconfig:"CASTINGLY_MEDIA_GALLERY_MAX_MB"`
	ReelMaxCount      int   `envconfig:"CASTINGLY_MEDIA_REEL_MAX_COUNT"`
	ReelMaxMB         int64 `envconfig:"CASTINGLY_MEDIA_REEL_MAX_MB"`
	ResumeMaxCount    int   `envconfig:"CASTINGLY_MEDIA_RESUME_MAX_COUNT"`
	ResumeMaxMB       int64 `envconfig:"CASTINGLY_MEDIA_RESUME_MAX_MB"`
	SelfTapeMaxCount  int   `envconfig:"CASTINGLY_MEDIA_SELF_TAPE_MAX_COUNT"`
	SelfTapeMaxMB     int64 `envconfig:"CASTINGLY_MEDIA_SELF_TAPE_MAX_MB"`
	VoiceOverMaxCount int   `envconfig:"CASTINGLY_MEDIA_VOICE_OVER_MAX_COUNT"`
	VoiceOverMaxMB    int64 `envconfig:"CASTINGLY_MEDIA_VOICE_OVER_MAX_MB"`
	DocumentMaxCount  int   `envconfig:"CASTINGLY_MEDIA_DOCUMENT_MAX_COUNT"`
	DocumentMaxMB     int64 `envconfig:"CASTINGLY_MEDIA_DOCUMENT_MAX_MB"`
	OtherMaxCount     int   `envconfig:"CASTINGLY_MEDIA_OTHER_MAX_COUNT"`
	OtherMaxMB        int64 `envconfig:"CASTINGLY_MEDIA_OTHER_MAX_MB"`

	UploadRateLimit  int           `envconfig:"CASTINGLY_MEDIA_UPLOAD_RATE_LIMIT" default:"30"`
	UploadRateWindow time.Duration `envconfig:"CASTINGLY_MEDIA_UPLOAD_RATE_WINDOW" default:"1m"`
	SignedURLTTL     time.Duration `envconfig:"CASTINGLY_MEDIA_SIGNED_URL_TTL" default:"1h"`
}

// MultipartMemory returns the in-memory threshold for multipart parsing.
func (m MediaConfig) MultipartMemory() int64 {
	if m.MultipartMemoryMB <= 0 {
		return 32 << 20
	}
	return m.MultipartMemoryMB << 20
}

type BackfillConfig struct {
	AdminSecret      string        `envconfig:"CASTINGLY_ADMIN_SECRET"`
	DefaultMax       int           `envconfig:"CASTINGLY_BACKFILL_DEFAULT_MAX" default:"500"`
	MutationPause    time.Duration `envconfig:"CASTINGLY_BACKFILL_MUTATION_PAUSE" default:"120ms"`
	RetryMaxAttempts int           `envconfig:"CASTINGLY_BACKFILL_RETRY_MAX_ATTEMPTS" default:"12"`
	RetryBaseDelay   time.Duration `envconfig:"CASTINGLY_BACKFILL_RETRY_BASE_DELAY" default:"1s"`
	RetryMultiplier  float64       `envconfig:"CASTINGLY_BACKFILL_RETRY_MULTIPLIER" default:"1.8"`
	LockTTL          time.Duration `envconfig:"CASTINGLY_BACKFILL_LOCK_TTL" default:"30m"`
	CronEnabled      bool          `envconfig:"CASTINGLY_BACKFILL_CRON_ENABLED" default:"false"`
	CronInterval     time.Duration `envconfig:"CASTINGLY_BACKFILL_CRON_INTERVAL" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CASTINGLY_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CASTINGLY_GCP_PROJECT_ID"`
}

// PubSubConfig enables media event publishing when MediaTopic is set.
type PubSubConfig struct {
	MediaTopic string `envconfig:"CASTINGLY_PUBSUB_MEDIA_TOPIC"`
}

// Enabled reports whether media events should be published.
func (p PubSubConfig) Enabled(gcp GCPConfig) bool {
	return strings.TrimSpace(p.MediaTopic) != "" && strings.TrimSpace(gcp.ProjectID) != ""
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
