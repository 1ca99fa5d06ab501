package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App struct {
		Name        string `koanf:"name"`
		HTTPAddr    string `koanf:"http_addr"`
		LogLevel    string `koanf:"log_level"`
		LogFile     string `koanf:"log_file"`
		InternalKey string `koanf:"internal_key"`
		Timezone    string `koanf:"timezone"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
		IdleTimeout  time.Duration `koanf:"idle_timeout"`
	} `koanf:"http"`

	Postgres struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"postgres"`

	Redis struct {
		Addr     string        `koanf:"addr"`
		Password string        `koanf:"password"`
		QuoteTTL time.Duration `koanf:"quote_ttl"`
	} `koanf:"redis"`

	Rabbit struct {
		URL            string        `koanf:"url"`
		Exchange       string        `koanf:"exchange"`
		InboxQueue     string        `koanf:"inbox_queue"`
		Prefetch       int           `koanf:"prefetch"`
		MaxReconnects  int           `koanf:"max_reconnects"`
		ReconnectDelay time.Duration `koanf:"reconnect_delay"`
	} `koanf:"rabbitmq"`

	Outbox struct {
		BatchSize    int           `koanf:"batch_size"`
		PollInterval time.Duration `koanf:"poll_interval"`
	} `koanf:"outbox"`

	Inbox struct {
		BatchSize    int           `koanf:"batch_size"`
		PollInterval time.Duration `koanf:"poll_interval"`
	} `koanf:"inbox"`

	Orders struct {
		DeliveryFeeCents      int64         `koanf:"delivery_fee_cents"`
		PaymentDeadlineBefore time.Duration `koanf:"payment_deadline_before"`
		ReminderBefore        time.Duration `koanf:"reminder_before"`
		AutoCancelBefore      time.Duration `koanf:"auto_cancel_before"`
		MenuBaseURL           string        `koanf:"menu_base_url"`
		MenuTimeout           time.Duration `koanf:"menu_timeout"`
		PaymentsBaseURL       string        `koanf:"payments_base_url"`
	} `koanf:"orders"`
}

// Load reads configs/base.yaml, overlays configs/<env>.yaml (optional), then
// environment variables (prefix CHOW_, nested with __).
// e.g. CHOW_POSTGRES__DSN, CHOW_RABBITMQ__URL.
func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// env-specific overlay is optional for local runs
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	if err := k.Load(env.Provider("CHOW_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "CHOW_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Timezone == "" {
		c.App.Timezone = "Asia/Singapore"
	}
	if c.Outbox.BatchSize <= 0 {
		c.Outbox.BatchSize = 100
	}
	if c.Outbox.PollInterval <= 0 {
		c.Outbox.PollInterval = time.Second
	}
	if c.Inbox.BatchSize <= 0 {
		c.Inbox.BatchSize = 50
	}
	if c.Inbox.PollInterval <= 0 {
		c.Inbox.PollInterval = time.Second
	}
	if c.Rabbit.Prefetch <= 0 {
		c.Rabbit.Prefetch = 20
	}
	if c.Rabbit.MaxReconnects <= 0 {
		c.Rabbit.MaxReconnects = 10
	}
	if c.Rabbit.ReconnectDelay <= 0 {
		c.Rabbit.ReconnectDelay = 5 * time.Second
	}
	if c.Orders.DeliveryFeeCents == 0 {
		c.Orders.DeliveryFeeCents = 100
	}
	if c.Orders.PaymentDeadlineBefore <= 0 {
		c.Orders.PaymentDeadlineBefore = 40 * time.Minute
	}
	if c.Orders.ReminderBefore <= 0 {
		c.Orders.ReminderBefore = 90 * time.Minute
	}
	if c.Orders.AutoCancelBefore <= 0 {
		c.Orders.AutoCancelBefore = 60 * time.Minute
	}
	if c.Orders.MenuTimeout <= 0 {
		c.Orders.MenuTimeout = 5 * time.Second
	}
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn required")
	}
	if c.Rabbit.URL == "" {
		return fmt.Errorf("rabbitmq.url required")
	}
	if c.Rabbit.Exchange == "" {
		return fmt.Errorf("rabbitmq.exchange required")
	}
	if c.Orders.ReminderBefore <= c.Orders.AutoCancelBefore {
		return fmt.Errorf("orders.reminder_before must be greater than orders.auto_cancel_before")
	}
	return nil
}
