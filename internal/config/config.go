package config

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress          string
	DatabaseURI         string
	StripeWebhookSecret string
	WebhookTolerance    time.Duration
	PayPalAPIBase       string
	PayPalClientID      string
	PayPalClientSecret  string
	ProviderTimeout     time.Duration
	LedgerTimeout       time.Duration
	CaptureRetries      int
	ReconcileInterval   time.Duration
	ReconcileBackoff    time.Duration
	ReconcileBatchSize  int
	WorkerPoolSize      int
	ShutdownTimeout     time.Duration
	BrokerURL           string
	PaymentsExchange    string
	OutboxInterval      time.Duration
	OutboxBatchSize     int
	AdminTokenHash      string
}

const (
	defaultRunAddress         = ":8080"
	defaultWebhookTolerance   = 5 * time.Minute
	defaultPayPalAPIBase      = "https://api-m.sandbox.paypal.com"
	defaultProviderTimeout    = 15 * time.Second
	defaultLedgerTimeout      = 5 * time.Second
	defaultCaptureRetries     = 1
	defaultReconcileInterval  = 30 * time.Second
	defaultReconcileBackoff   = time.Minute
	defaultReconcileBatchSize = 32
	defaultWorkerPoolSize     = 4
	defaultShutdownTimeout    = 10 * time.Second
	defaultPaymentsExchange   = "payments.events"
	defaultOutboxInterval     = 2 * time.Second
	defaultOutboxBatchSize    = 32
)

// Load parses configuration from flags and environment variables.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

// LoadEnv parses configuration from environment variables only.
func LoadEnv() (*Config, error) {
	return load(nil, os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:          getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:         getString(lookup, "DATABASE_URI", ""),
		StripeWebhookSecret: getString(lookup, "STRIPE_WEBHOOK_SECRET", ""),
		WebhookTolerance:    getDuration(lookup, "WEBHOOK_TOLERANCE", defaultWebhookTolerance),
		PayPalAPIBase:       getString(lookup, "PAYPAL_API_BASE", defaultPayPalAPIBase),
		PayPalClientID:      getString(lookup, "PAYPAL_CLIENT_ID", ""),
		PayPalClientSecret:  getString(lookup, "PAYPAL_CLIENT_SECRET", ""),
		ProviderTimeout:     getDuration(lookup, "PROVIDER_TIMEOUT", defaultProviderTimeout),
		LedgerTimeout:       getDuration(lookup, "LEDGER_TIMEOUT", defaultLedgerTimeout),
		CaptureRetries:      getInt(lookup, "CAPTURE_RETRIES", defaultCaptureRetries),
		ReconcileInterval:   getDuration(lookup, "RECONCILE_INTERVAL", defaultReconcileInterval),
		ReconcileBackoff:    getDuration(lookup, "RECONCILE_BACKOFF", defaultReconcileBackoff),
		ReconcileBatchSize:  getInt(lookup, "RECONCILE_BATCH_SIZE", defaultReconcileBatchSize),
		WorkerPoolSize:      getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		ShutdownTimeout:     getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		BrokerURL:           getString(lookup, "BROKER_URL", ""),
		PaymentsExchange:    getString(lookup, "PAYMENTS_EXCHANGE", defaultPaymentsExchange),
		OutboxInterval:      getDuration(lookup, "OUTBOX_INTERVAL", defaultOutboxInterval),
		OutboxBatchSize:     getInt(lookup, "OUTBOX_BATCH_SIZE", defaultOutboxBatchSize),
		AdminTokenHash:      getString(lookup, "ADMIN_TOKEN_HASH", ""),
	}

	fs := flag.NewFlagSet("payrecon", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	durations := []struct {
		name  string
		usage string
		dst   *time.Duration
		raw   string
	}{
		{name: "webhook-tolerance", usage: "Accepted webhook timestamp skew", dst: &cfg.WebhookTolerance},
		{name: "provider-timeout", usage: "Timeout for outbound provider calls", dst: &cfg.ProviderTimeout},
		{name: "ledger-timeout", usage: "Timeout for ledger reads and writes", dst: &cfg.LedgerTimeout},
		{name: "reconcile-interval", usage: "Interval between reconciliation sweeps", dst: &cfg.ReconcileInterval},
		{name: "reconcile-backoff", usage: "Delay before an order is probed again", dst: &cfg.ReconcileBackoff},
		{name: "shutdown-timeout", usage: "Graceful shutdown timeout", dst: &cfg.ShutdownTimeout},
		{name: "outbox-interval", usage: "Interval between outbox dispatch rounds", dst: &cfg.OutboxInterval},
	}
	for i := range durations {
		d := &durations[i]
		d.raw = d.dst.String()
		fs.StringVar(&d.raw, d.name, d.raw, d.usage)
	}

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.StripeWebhookSecret, "webhook-secret", cfg.StripeWebhookSecret, "Stripe webhook signing secret")
	fs.StringVar(&cfg.PayPalAPIBase, "paypal-api", cfg.PayPalAPIBase, "PayPal REST API base URL")
	fs.StringVar(&cfg.PayPalClientID, "paypal-client-id", cfg.PayPalClientID, "PayPal REST client id")
	fs.IntVar(&cfg.CaptureRetries, "capture-retries", cfg.CaptureRetries, "Retries for captures with unknown outcome")
	fs.IntVar(&cfg.ReconcileBatchSize, "reconcile-batch", cfg.ReconcileBatchSize, "Maximum orders per reconciliation sweep")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent reconciliation workers")
	fs.StringVar(&cfg.BrokerURL, "broker", cfg.BrokerURL, "AMQP broker URL, empty disables event publishing")
	fs.StringVar(&cfg.PaymentsExchange, "exchange", cfg.PaymentsExchange, "Exchange receiving order events")
	fs.IntVar(&cfg.OutboxBatchSize, "outbox-batch", cfg.OutboxBatchSize, "Maximum events per outbox dispatch round")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	for _, d := range durations {
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	secrets := []struct {
		env string
		dst *string
	}{
		{"STRIPE_WEBHOOK_SECRET_FILE", &cfg.StripeWebhookSecret},
		{"PAYPAL_CLIENT_SECRET_FILE", &cfg.PayPalClientSecret},
		{"ADMIN_TOKEN_HASH_FILE", &cfg.AdminTokenHash},
	}
	for _, s := range secrets {
		if path, ok := lookup(s.env); ok && path != "" {
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", strings.ToLower(s.env), err)
			}
			*s.dst = strings.TrimSpace(string(content))
		}
	}

	normalize(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = defaultWebhookTolerance
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = defaultLedgerTimeout
	}
	if cfg.CaptureRetries < 0 {
		cfg.CaptureRetries = 0
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = defaultReconcileInterval
	}
	if cfg.ReconcileBackoff <= 0 {
		cfg.ReconcileBackoff = defaultReconcileBackoff
	}
	if cfg.ReconcileBatchSize <= 0 {
		cfg.ReconcileBatchSize = defaultReconcileBatchSize
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.PaymentsExchange == "" {
		cfg.PaymentsExchange = defaultPaymentsExchange
	}
	if cfg.OutboxInterval <= 0 {
		cfg.OutboxInterval = defaultOutboxInterval
	}
	if cfg.OutboxBatchSize <= 0 {
		cfg.OutboxBatchSize = defaultOutboxBatchSize
	}
}

func validate(cfg *Config) error {
	if cfg.DatabaseURI == "" {
		return fmt.Errorf("database URI must be provided")
	}
	if cfg.StripeWebhookSecret == "" {
		return fmt.Errorf("stripe webhook secret must be provided")
	}
	if cfg.PayPalClientID == "" || cfg.PayPalClientSecret == "" {
		return fmt.Errorf("paypal client credentials must be provided")
	}
	base, err := url.Parse(cfg.PayPalAPIBase)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("paypal api base must be an absolute URL")
	}
	return nil
}

// LogValue renders the configuration with secrets redacted.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_address", c.RunAddress),
		slog.String("database_uri", redactDSN(c.DatabaseURI)),
		slog.String("paypal_api_base", c.PayPalAPIBase),
		slog.Bool("paypal_credentials", c.PayPalClientID != "" && c.PayPalClientSecret != ""),
		slog.Bool("webhook_secret", c.StripeWebhookSecret != ""),
		slog.Duration("webhook_tolerance", c.WebhookTolerance),
		slog.Duration("provider_timeout", c.ProviderTimeout),
		slog.Duration("ledger_timeout", c.LedgerTimeout),
		slog.Int("capture_retries", c.CaptureRetries),
		slog.Duration("reconcile_interval", c.ReconcileInterval),
		slog.Int("worker_pool", c.WorkerPoolSize),
		slog.Bool("broker", c.BrokerURL != ""),
		slog.String("exchange", c.PaymentsExchange),
		slog.Bool("admin_api", c.AdminTokenHash != ""),
	)
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		if dsn == "" {
			return ""
		}
		return "[redacted]"
	}
	return u.Redacted()
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
