// Package config loads engine settings from the environment.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/nbenliogludev/go-browser-run-engine/internal/artifacts"
)

const (
	DriverPlaywright = "playwright"
	DriverChromedp   = "chromedp"
)

// Config holds runtime configuration for every run-engine command.
type Config struct {
	DBDSN   string `env:"DB_DSN"`
	NATSURL string `env:"NATS_URL"`

	BrowserDriver     string        `env:"BROWSER_DRIVER,default=playwright"`
	Headless          bool          `env:"HEADLESS,default=true"`
	StepTimeout       time.Duration `env:"STEP_TIMEOUT,default=15s"`
	NavigationTimeout time.Duration `env:"NAVIGATION_TIMEOUT,default=45s"`
	RunTimeout        time.Duration `env:"RUN_TIMEOUT,default=10m"`
	CaptureOnFailure  bool          `env:"CAPTURE_ON_FAILURE,default=true"`

	RetryAttempts  int           `env:"RETRY_ATTEMPTS,default=3"`
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY,default=500ms"`
	MaxInvites     int           `env:"MAX_INVITES,default=10"`

	ProxyURI      string `env:"PROXY_URI"`
	SelectorsFile string `env:"SELECTORS_FILE"`
	AgeIdentity   string `env:"AGE_IDENTITY"`

	S3 S3 `env:", prefix=S3_"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	HTTPAddr          string   `env:"HTTP_ADDR,default=:8080"`
	HTTPRatePerMinute int      `env:"HTTP_RATE_PER_MINUTE,default=100"`
	AllowedOrigins    []string `env:"ALLOWED_ORIGINS"`

	WorkerConcurrency int           `env:"WORKER_CONCURRENCY,default=4"`
	WorkerDurable     string        `env:"WORKER_DURABLE,default=run-engine-worker"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL,default=1m"`
	SweepGrace        time.Duration `env:"SWEEP_GRACE,default=2m"`
}

type S3 struct {
	Endpoint       string `env:"ENDPOINT"`
	Bucket         string `env:"BUCKET,default=run-artifacts"`
	AccessKey      string `env:"ACCESS_KEY"`
	SecretKey      string `env:"SECRET_KEY"`
	Region         string `env:"REGION,default=us-east-1"`
	DisableTLS     bool   `env:"DISABLE_TLS,default=false"`
	ForcePathStyle bool   `env:"FORCE_PATH_STYLE,default=true"`
}

// Enabled reports whether screenshots should go to S3 at all.
func (s S3) Enabled() bool { return s.Endpoint != "" }

func (s S3) Store() artifacts.S3Config {
	return artifacts.S3Config{
		Endpoint:       s.Endpoint,
		Bucket:         s.Bucket,
		AccessKey:      s.AccessKey,
		SecretKey:      s.SecretKey,
		Region:         s.Region,
		DisableTLS:     s.DisableTLS,
		ForcePathStyle: s.ForcePathStyle,
	}
}

// Load reads .env files when present, then the environment.
func Load(ctx context.Context, files ...string) (Config, error) {
	_ = godotenv.Load(files...)
	return process(ctx, envconfig.OsLookuper())
}

func process(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.BrowserDriver {
	case DriverPlaywright, DriverChromedp:
	default:
		return fmt.Errorf("BROWSER_DRIVER must be %s or %s, got %q", DriverPlaywright, DriverChromedp, c.BrowserDriver)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS must be at least 1")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	return nil
}

// RequireDB fails when a command that needs Postgres has no DSN.
func (c Config) RequireDB() error {
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	return nil
}

// RequireNATS fails when a command that needs the bus has no URL.
func (c Config) RequireNATS() error {
	if c.NATSURL == "" {
		return fmt.Errorf("NATS_URL is required")
	}
	return nil
}
