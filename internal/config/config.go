package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration required by the API and billing processes.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Twilio  TwilioConfig
	LiveKit LiveKitConfig
	Stripe  StripeConfig
	Billing BillingConfig
	Deploy  DeployConfig
	Tracing TracingConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
}

// LiveKitConfig points at the SIP/media gateway.
type LiveKitConfig struct {
	URL       string
	APIKey    string
	APISecret string

	// SIPURI is the gateway's SIP ingestion host, used as the carrier origination target.
	SIPURI string
}

type StripeConfig struct {
	SecretKey string
}

type BillingConfig struct {
	RatePerMinute decimal.Decimal
	Currency      string
	Concurrency   int
}

type DeployConfig struct {
	LockTTL     time.Duration
	CallTimeout time.Duration
}

type TracingConfig struct {
	// OTLPEndpoint is optional; tracing is a no-op when empty.
	OTLPEndpoint string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL, parseErrs = appendDurationErr(parseErrs, "JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL, parseErrs = appendDurationErr(parseErrs, "JWT_REFRESH_TTL")

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")

	c.LiveKit.URL = strings.TrimSpace(os.Getenv("LIVEKIT_URL"))
	c.LiveKit.APIKey = strings.TrimSpace(os.Getenv("LIVEKIT_API_KEY"))
	c.LiveKit.APISecret = os.Getenv("LIVEKIT_API_SECRET")
	c.LiveKit.SIPURI = strings.TrimSpace(os.Getenv("LIVEKIT_SIP_URI"))

	c.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")

	if v := strings.TrimSpace(os.Getenv("BILLING_RATE_PER_MINUTE")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("BILLING_RATE_PER_MINUTE must be a decimal, got %q", v))
		}
		c.Billing.RatePerMinute = d
	}
	c.Billing.Currency = strings.ToLower(strings.TrimSpace(os.Getenv("BILLING_CURRENCY")))
	{
		n, err := optionalInt("BILLING_CONCURRENCY")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Billing.Concurrency = n
	}

	c.Deploy.LockTTL, parseErrs = appendDurationErr(parseErrs, "DEPLOY_LOCK_TTL")
	c.Deploy.CallTimeout, parseErrs = appendDurationErr(parseErrs, "DEPLOY_CALL_TIMEOUT")

	c.Tracing.OTLPEndpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
	}
	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}

	if c.LiveKit.URL == "" {
		errs = append(errs, errors.New("LIVEKIT_URL is required"))
	}
	if c.LiveKit.APIKey == "" || c.LiveKit.APISecret == "" {
		errs = append(errs, errors.New("LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required"))
	}
	if c.LiveKit.SIPURI == "" {
		errs = append(errs, errors.New("LIVEKIT_SIP_URI is required"))
	}

	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
	}

	if c.Billing.RatePerMinute.IsZero() {
		c.Billing.RatePerMinute = decimal.RequireFromString("0.25")
	}
	if c.Billing.RatePerMinute.IsNegative() {
		errs = append(errs, fmt.Errorf("BILLING_RATE_PER_MINUTE must be positive, got %s", c.Billing.RatePerMinute))
	}
	if c.Billing.Currency == "" {
		c.Billing.Currency = "usd"
	}
	if c.Billing.Concurrency <= 0 {
		c.Billing.Concurrency = 4
	}

	if c.Deploy.LockTTL <= 0 {
		c.Deploy.LockTTL = 2 * time.Minute
	}
	if c.Deploy.CallTimeout <= 0 {
		c.Deploy.CallTimeout = 15 * time.Second
	}
	// The lock holder renews every LockTTL/3; a shorter TTL than one call
	// leaves no slack for a stalled renewal.
	if c.Deploy.LockTTL < c.Deploy.CallTimeout {
		errs = append(errs, fmt.Errorf("DEPLOY_LOCK_TTL (%s) must be at least DEPLOY_CALL_TIMEOUT (%s)", c.Deploy.LockTTL, c.Deploy.CallTimeout))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

// optionalDuration returns zero when key is unset so Validate can apply defaults.
func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s or 2m, got %q", key, v)
	}
	return d, nil
}

func appendDurationErr(errs []error, key string) (time.Duration, []error) {
	d, err := optionalDuration(key)
	if err != nil {
		errs = append(errs, err)
	}
	return d, errs
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
