package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	RateLimit     RateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Auth          AuthConfig
	Menu          MenuConfig
	Cart          CartConfig
	Realtime      RealtimeConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Kafka         KafkaConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Storage       StorageConfig
	Media         MediaConfig
	Contact       ContactConfig
	CORS          CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validateTransports(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FOODORDER_APP_ENV" required:"true"`
	Port         string `envconfig:"FOODORDER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FOODORDER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FOODORDER_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"FOODORDER_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FOODORDER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FOODORDER_DB_DSN"`
	Driver string `envconfig:"FOODORDER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FOODORDER_DB_HOST"`
	LegacyPort     int    `envconfig:"FOODORDER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FOODORDER_DB_USER"`
	LegacyPassword string `envconfig:"FOODORDER_DB_PASSWORD"`
	LegacyName     string `envconfig:"FOODORDER_DB_NAME"`
	LegacySSLMode  string `envconfig:"FOODORDER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FOODORDER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FOODORDER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FOODORDER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FOODORDER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"FOODORDER_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FOODORDER_REDIS_URL"`
	Address      string        `envconfig:"FOODORDER_REDIS_ADDR"`
	Password     string        `envconfig:"FOODORDER_REDIS_PASSWORD"`
	DB           int           `envconfig:"FOODORDER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FOODORDER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FOODORDER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FOODORDER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FOODORDER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FOODORDER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"FOODORDER_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"FOODORDER_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"FOODORDER_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"FOODORDER_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FOODORDER_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FOODORDER_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FOODORDER_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FOODORDER_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FOODORDER_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	SignInWindow     time.Duration `envconfig:"FOODORDER_AUTH_RATE_LIMIT_SIGNIN_WINDOW" default:"1m"`
	SignInEmailLimit int           `envconfig:"FOODORDER_AUTH_RATE_LIMIT_SIGNIN_EMAIL_LIMIT" default:"5"`
	SignInIPLimit    int           `envconfig:"FOODORDER_AUTH_RATE_LIMIT_SIGNIN_IP_LIMIT" default:"20"`
	SignUpWindow     time.Duration `envconfig:"FOODORDER_AUTH_RATE_LIMIT_SIGNUP_WINDOW" default:"5m"`
	SignUpEmailLimit int           `envconfig:"FOODORDER_AUTH_RATE_LIMIT_SIGNUP_EMAIL_LIMIT" default:"3"`
	SignUpIPLimit    int           `envconfig:"FOODORDER_AUTH_RATE_LIMIT_SIGNUP_IP_LIMIT" default:"20"`
}

// RateLimitConfig drives the in-process per-IP token bucket.
type RateLimitConfig struct {
	RequestsPerSecond int `envconfig:"FOODORDER_RATE_LIMIT_RPS" default:"20"`
	Burst             int `envconfig:"FOODORDER_RATE_LIMIT_BURST" default:"40"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FOODORDER_AUTO_MIGRATE" default:"false"`
}

type AuthConfig struct {
	RoleLookupTimeout time.Duration `envconfig:"FOODORDER_AUTH_ROLE_LOOKUP_TIMEOUT" default:"5s"`
	RoleCacheTTL      time.Duration `envconfig:"FOODORDER_AUTH_ROLE_CACHE_TTL" default:"1m"`
	SessionTimeout    time.Duration `envconfig:"FOODORDER_AUTH_SESSION_TIMEOUT" default:"20s"`
}

type MenuConfig struct {
	FetchTimeout  time.Duration `envconfig:"FOODORDER_MENU_FETCH_TIMEOUT" default:"10s"`
	RetryDelay    time.Duration `envconfig:"FOODORDER_MENU_RETRY_DELAY" default:"1s"`
	StaticCatalog bool          `envconfig:"FOODORDER_MENU_STATIC_CATALOG" default:"false"`
	CacheTTL      time.Duration `envconfig:"FOODORDER_MENU_CACHE_TTL" default:"5m"`
}

type CartConfig struct {
	SessionTTL time.Duration `envconfig:"FOODORDER_CART_SESSION_TTL" default:"24h"`
}

type RealtimeConfig struct {
	Source     string `envconfig:"FOODORDER_REALTIME_SOURCE" default:"local"`
	FeedBuffer int    `envconfig:"FOODORDER_REALTIME_FEED_BUFFER" default:"16"`
}

type EventingConfig struct {
	Transport string `envconfig:"FOODORDER_EVENTS_TRANSPORT" default:"kafka"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"FOODORDER_GCP_PROJECT_ID"`
}

// PubSubConfig.OrdersSubscription is a base name: each API instance listens on
// its own <base>-<instance> subscription.
type PubSubConfig struct {
	OrdersTopic        string        `envconfig:"FOODORDER_PUBSUB_ORDERS_TOPIC" default:"fo-order-events"`
	OrdersSubscription string        `envconfig:"FOODORDER_PUBSUB_ORDERS_SUBSCRIPTION"`
	SubscriptionTTL    time.Duration `envconfig:"FOODORDER_PUBSUB_SUBSCRIPTION_TTL" default:"24h"`
}

type KafkaConfig struct {
	Brokers     []string `envconfig:"FOODORDER_KAFKA_BROKERS" default:"localhost:9092"`
	OrdersTopic string   `envconfig:"FOODORDER_KAFKA_ORDERS_TOPIC" default:"order-events"`
	GroupID     string   `envconfig:"FOODORDER_KAFKA_GROUP_ID" default:"foodorder-api"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FOODORDER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FOODORDER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FOODORDER_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionHours int `envconfig:"FOODORDER_OUTBOX_RETENTION_HOURS" default:"72"`
}

// CronConfig drives the maintenance worker.
type CronConfig struct {
	Interval                  time.Duration `envconfig:"FOODORDER_CRON_INTERVAL" default:"1h"`
	JobTimeout                time.Duration `envconfig:"FOODORDER_CRON_JOB_TIMEOUT" default:"5m"`
	NotificationRetentionDays int           `envconfig:"FOODORDER_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
	DLQRetentionDays          int           `envconfig:"FOODORDER_CRON_DLQ_RETENTION_DAYS" default:"14"`
}

type StorageConfig struct {
	Provider      string `envconfig:"FOODORDER_STORAGE_PROVIDER" default:"s3"`
	Bucket        string `envconfig:"FOODORDER_STORAGE_BUCKET" default:"menu-images"`
	Region        string `envconfig:"FOODORDER_STORAGE_REGION" default:"us-east-1"`
	Endpoint      string `envconfig:"FOODORDER_STORAGE_ENDPOINT"`
	Prefix        string `envconfig:"FOODORDER_STORAGE_PREFIX" default:"menu/"`
	PublicBaseURL string `envconfig:"FOODORDER_STORAGE_PUBLIC_BASE_URL"`
}

type MediaConfig struct {
	ImageMaxWidth int `envconfig:"FOODORDER_MEDIA_IMAGE_MAX_WIDTH" default:"800"`
	ImageQuality  int `envconfig:"FOODORDER_MEDIA_IMAGE_QUALITY" default:"80"`
}

type ContactConfig struct {
	WhatsAppNumber  string `envconfig:"FOODORDER_WHATSAPP_NUMBER"`
	WhatsAppMessage string `envconfig:"FOODORDER_WHATSAPP_MESSAGE" default:"Hello! I would like to place an order."`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"FOODORDER_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
}

// Normalized reports the realtime source in lower case, defaulting to local.
func (r RealtimeConfig) Normalized() string {
	source := strings.ToLower(strings.TrimSpace(r.Source))
	if source == "" {
		return RealtimeSourceLocal
	}
	return source
}

// Normalized reports the outbox transport in lower case, defaulting to kafka.
func (e EventingConfig) Normalized() string {
	transport := strings.ToLower(strings.TrimSpace(e.Transport))
	if transport == "" {
		return TransportKafka
	}
	return transport
}

func (c *Config) validateTransports() error {
	switch c.Eventing.Normalized() {
	case TransportKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("%s is required when transport is kafka", EnvKafkaBrokers)
		}
	case TransportPubSub:
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			return fmt.Errorf("%s is required when transport is pubsub", EnvGCPProjectID)
		}
	default:
		return fmt.Errorf("unsupported events transport %q", c.Eventing.Transport)
	}

	switch c.Realtime.Normalized() {
	case RealtimeSourceLocal, TransportKafka:
	case TransportPubSub:
		if strings.TrimSpace(c.PubSub.OrdersSubscription) == "" {
			return fmt.Errorf("%s is required when realtime source is pubsub", EnvPubSubOrdersSub)
		}
	default:
		return fmt.Errorf("unsupported realtime source %q", c.Realtime.Source)
	}
	return nil
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
