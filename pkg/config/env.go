package config

const EnvPrefix = "FOODORDER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	RealtimeSourceLocal = "local"
	TransportKafka      = "kafka"
	TransportPubSub     = "pubsub"

	StorageProviderS3     = "s3"
	StorageProviderGCS    = "gcs"
	StorageProviderMemory = "memory"
)

const (
	EnvAppEnv                 = "FOODORDER_APP_ENV"
	EnvPort                   = "FOODORDER_APP_PORT"
	EnvLogLvl                 = "FOODORDER_LOG_LEVEL"
	EnvDBDSN                  = "FOODORDER_DB_DSN"
	EnvDBHost                 = "FOODORDER_DB_HOST"
	EnvDBUser                 = "FOODORDER_DB_USER"
	EnvDBName                 = "FOODORDER_DB_NAME"
	EnvDBPass                 = "FOODORDER_DB_PASSWORD"
	EnvDBPort                 = "FOODORDER_DB_PORT"
	EnvDBSSL                  = "FOODORDER_DB_SSLMODE"
	EnvRedisURL               = "FOODORDER_REDIS_URL"
	EnvJWTSecret              = "FOODORDER_JWT_SECRET"
	EnvJWTIssuer              = "FOODORDER_JWT_ISSUER"
	EnvJWTExpMins             = "FOODORDER_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "FOODORDER_REFRESH_TOKEN_TTL_MINUTES"
	EnvMenuFetchTimeout       = "FOODORDER_MENU_FETCH_TIMEOUT"
	EnvMenuStaticCatalog      = "FOODORDER_MENU_STATIC_CATALOG"
	EnvEventsTransport        = "FOODORDER_EVENTS_TRANSPORT"
	EnvRealtimeSource         = "FOODORDER_REALTIME_SOURCE"
	EnvGCPProjectID           = "FOODORDER_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic      = "FOODORDER_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub        = "FOODORDER_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvKafkaBrokers           = "FOODORDER_KAFKA_BROKERS"
	EnvWhatsAppNumber         = "FOODORDER_WHATSAPP_NUMBER"
	EnvCORSAllowedOrigins     = "FOODORDER_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
