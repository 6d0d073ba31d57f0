package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the marketing SMS worker.
type Config struct {
	App           AppConfig
	Kafka         KafkaConfig
	Topics        TopicConfig
	ConsumerGroup string
	Retry         RetryConfig
	Validation    ValidationConfig
	Providers     ProviderConfig
	Timeouts      TimeoutConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// KafkaConfig defines the broker list.
type KafkaConfig struct {
	Brokers []string
}

// TopicConfig names the request, status and DLQ topics of the marketing channel.
type TopicConfig struct {
	Request string
	Status  string
	DLQ     string
}

// RetryConfig controls worker retry and backoff behaviour.
type RetryConfig struct {
	MaxAttempts         int
	BaseBackoffSeconds  int
	MaxBackoffSeconds   int
	WorkerConcurrency   int
	CommitOnSuccessOnly bool
}

// ValidationConfig holds the limits used while validating inbound requests.
type ValidationConfig struct {
	MsgMaxBytes     int
	TextMaxBytes    int
	KeywordMaxLen   int
	MetaMaxEntries  int
	MetaMaxKeyLen   int
	MetaMaxValueLen int
}

// NexmoConfig stores the credentials and endpoint of the short-code provider.
type NexmoConfig struct {
	APIKey             string
	APISecret          string
	BaseURL            string
	RateLimitPerSecond float64
	RateBurst          int
}

// ProviderConfig selects and configures the outbound transport.
type ProviderConfig struct {
	Backend string
	Nexmo   NexmoConfig
}

// TimeoutConfig contains timeout thresholds for outbound providers.
type TimeoutConfig struct {
	ProviderTimeoutSeconds int
}

const (
	BackendNexmo = "nexmo"
	BackendMock  = "mock"
)

// Load reads environment variables for the worker, applies defaults,
// validates required values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}
	cfg := &Config{}

	ldr.loadApp(&cfg.App)

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", true)
	cfg.Topics = TopicConfig{
		Request: ldr.getString("KAFKA_MARKETING_REQUEST_TOPIC", "", true),
		Status:  ldr.getString("KAFKA_MARKETING_STATUS_TOPIC", "", true),
		DLQ:     ldr.getString("KAFKA_MARKETING_DLQ_TOPIC", "", true),
	}
	cfg.ConsumerGroup = ldr.getString("MARKETING_CONSUMER_GROUP", "", true)

	cfg.Retry.MaxAttempts = ldr.getInt("MAX_ATTEMPTS", 3, false)
	cfg.Retry.BaseBackoffSeconds = ldr.getInt("BASE_BACKOFF_SECONDS", 10, false)
	cfg.Retry.MaxBackoffSeconds = ldr.getInt("MAX_BACKOFF_SECONDS", 120, false)
	cfg.Retry.WorkerConcurrency = ldr.getInt("WORKER_CONCURRENCY", 10, false)
	cfg.Retry.CommitOnSuccessOnly = ldr.getBool("COMMIT_ON_SUCCESS_ONLY", true, false)

	cfg.Validation.MsgMaxBytes = ldr.getInt("MSG_MAX_BYTES", 200000, false)
	cfg.Validation.TextMaxBytes = ldr.getInt("TEXT_MAX_BYTES", 3200, false)
	cfg.Validation.KeywordMaxLen = ldr.getInt("KEYWORD_MAX_LEN", 32, false)
	cfg.Validation.MetaMaxEntries = ldr.getInt("META_MAX_ENTRIES", 20, false)
	cfg.Validation.MetaMaxKeyLen = ldr.getInt("META_MAX_KEY_LEN", 64, false)
	cfg.Validation.MetaMaxValueLen = ldr.getInt("META_MAX_VALUE_LEN", 256, false)

	ldr.loadProviders(&cfg.Providers)
	cfg.Timeouts.ProviderTimeoutSeconds = ldr.getInt("PROVIDER_TIMEOUT_SECONDS", 30, false)

	if err := ldr.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSender reads only the settings needed to send a message directly,
// without any Kafka configuration.
func LoadSender() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}
	cfg := &Config{}

	ldr.loadApp(&cfg.App)
	ldr.loadProviders(&cfg.Providers)
	cfg.Timeouts.ProviderTimeoutSeconds = ldr.getInt("PROVIDER_TIMEOUT_SECONDS", 30, false)

	if err := ldr.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *envLoader) loadApp(app *AppConfig) {
	app.Env = l.getString("APP_ENV", "development", false)
	app.Port = l.getInt("APP_PORT", 8080, false)
	app.LogLevel = l.getString("LOG_LEVEL", "info", false)
}

func (l *envLoader) loadProviders(p *ProviderConfig) {
	p.Backend = strings.ToLower(l.getString("SHORTCODE_PROVIDER", BackendMock, false))

	nexmoRequired := p.Backend == BackendNexmo
	p.Nexmo.APIKey = l.getString("NEXMO_API_KEY", "", nexmoRequired)
	p.Nexmo.APISecret = l.getString("NEXMO_API_SECRET", "", nexmoRequired)
	p.Nexmo.BaseURL = l.getString("NEXMO_BASE_URL", "https://rest.nexmo.com", false)
	p.Nexmo.RateLimitPerSecond = l.getFloat("NEXMO_RATE_LIMIT_PER_SECOND", 0, false)
	p.Nexmo.RateBurst = l.getInt("NEXMO_RATE_BURST", 1, false)

	switch p.Backend {
	case BackendNexmo, BackendMock:
	default:
		l.addError(fmt.Sprintf("SHORTCODE_PROVIDER must be one of %s, %s", BackendNexmo, BackendMock))
	}
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

// lookup returns the trimmed value of key and whether a non-empty value was
// set, recording an error when a required key is missing.
func (l *envLoader) lookup(key string, required bool) (string, bool) {
	val, ok := os.LookupEnv(key)
	val = strings.TrimSpace(val)
	if !ok || val == "" {
		if required {
			l.addError(fmt.Sprintf("%s is required", key))
		}
		return "", false
	}
	return val, true
}

func (l *envLoader) getString(key, def string, required bool) string {
	val, ok := l.lookup(key, required)
	if !ok {
		return def
	}
	return val
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	val, ok := l.lookup(key, required)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	return i
}

func (l *envLoader) getFloat(key string, def float64, required bool) float64 {
	val, ok := l.lookup(key, required)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid number", key))
		return def
	}
	return f
}

func (l *envLoader) getBool(key string, def bool, required bool) bool {
	val, ok := l.lookup(key, required)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid boolean", key))
		return def
	}
	return parsed
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		if required {
			return nil
		}
		return []string{}
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
