package config

import "time"

// GatewayEnv holds per-environment gateway settings. SourceKey and Pin are the
// current credential field names; ApiKey and ApiSecret are accepted as legacy
// aliases written by earlier versions of the console.
type GatewayEnv struct {
	RestBaseURL  string
	SoapEndpoint string
	SourceKey    string
	Pin          string
	ApiKey       string
	ApiSecret    string
}

// Config holds runtime configuration for the testbench service.
type Config struct {
	Environment        string
	LogLevel           string
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	SessionRedisAddr   string
	SessionRedisPass   string
	SessionRedisDB     int
	SessionTTL         time.Duration
	SessionTokenSecret string
	SessionSecretKey   string
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
	UpstreamTimeout    time.Duration
	Sandbox            GatewayEnv
	Production         GatewayEnv
}

// Load constructs a Config from environment variables.
func Load() Config {
	return Config{
		Environment:        GetString("APP_ENV", "development"),
		LogLevel:           GetString("LOG_LEVEL", "info"),
		Addr:               GetString("TESTBENCH_ADDR", ":4100"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://testbench:testbench@db:5432/testbench?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		SessionRedisAddr:   GetString("SESSION_REDIS_ADDR", ""),
		SessionRedisPass:   GetString("SESSION_REDIS_PASSWORD", ""),
		SessionRedisDB:     GetInt("SESSION_REDIS_DB", 0),
		SessionTTL:         GetSeconds("SESSION_TTL_SECONDS", 8*3600),
		SessionTokenSecret: GetString("SESSION_TOKEN_SECRET", "supersecuresecret"),
		SessionSecretKey:   GetString("SESSION_ENCRYPTION_KEY", "supersecuresecret"),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
		UpstreamTimeout:    GetSeconds("UPSTREAM_TIMEOUT_SECONDS", 30),
		Sandbox: GatewayEnv{
			RestBaseURL:  GetString("USAEPAY_SANDBOX_REST_BASE_URL", "https://sandbox.usaepay.com/api"),
			SoapEndpoint: GetString("USAEPAY_SANDBOX_SOAP_ENDPOINT", ""),
			SourceKey:    GetString("USAEPAY_SANDBOX_SOURCE_KEY", ""),
			Pin:          GetString("USAEPAY_SANDBOX_PIN", ""),
			ApiKey:       GetString("USAEPAY_SANDBOX_API_KEY", ""),
			ApiSecret:    GetString("USAEPAY_SANDBOX_API_SECRET", ""),
		},
		Production: GatewayEnv{
			RestBaseURL:  GetString("USAEPAY_PRODUCTION_REST_BASE_URL", ""),
			SoapEndpoint: GetString("USAEPAY_PRODUCTION_SOAP_ENDPOINT", ""),
			SourceKey:    GetString("USAEPAY_PRODUCTION_SOURCE_KEY", ""),
			Pin:          GetString("USAEPAY_PRODUCTION_PIN", ""),
			ApiKey:       GetString("USAEPAY_PRODUCTION_API_KEY", ""),
			ApiSecret:    GetString("USAEPAY_PRODUCTION_API_SECRET", ""),
		},
	}
}

// Gateway selects the settings for the named environment; anything other than
// "production" resolves to sandbox.
func (c Config) Gateway(environment string) GatewayEnv {
	if environment == "production" {
		return c.Production
	}
	return c.Sandbox
}
