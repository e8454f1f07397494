package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jmehdipour/leadsite/internal/features"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	App        AppConfig       `mapstructure:"app"`
	Log        LogConfig       `mapstructure:"log"`
	HTTP       HTTPConfig      `mapstructure:"http"`
	Package    PackageConfig   `mapstructure:"package"`
	Booking    BookingConfig   `mapstructure:"booking"`
	SMTP       SMTPConfig      `mapstructure:"smtp"`
	Sheets     SheetsConfig    `mapstructure:"sheets"`
	WhatsApp   WhatsAppConfig  `mapstructure:"whatsapp"`
	LLM        LLMConfig       `mapstructure:"llm"`
	Store      StoreConfig     `mapstructure:"store"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Dedup      DedupConfig     `mapstructure:"dedup"`
	FollowUps  FollowUpsConfig `mapstructure:"follow_ups"`

	// Overrides holds the explicitly set feature toggles; absent keys follow the tier.
	Overrides map[features.Feature]bool `mapstructure:"-"`
}

// ---- Leaf structs ----

type AppConfig struct {
	Env          string `mapstructure:"env"`
	BusinessName string `mapstructure:"business_name"`
	OwnerName    string `mapstructure:"owner_name"`
	OwnerEmail   string `mapstructure:"owner_email"`
	SiteURL      string `mapstructure:"site_url"`
}

func (a AppConfig) Development() bool { return strings.EqualFold(a.Env, "development") }

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type HTTPConfig struct {
	Addr          string        `mapstructure:"addr"`
	LeadTimeout   time.Duration `mapstructure:"lead_timeout"`
	BodyLimit     string        `mapstructure:"body_limit"`
	CORSOrigins   []string      `mapstructure:"cors_origins"`
	AdminKey      string        `mapstructure:"admin_key"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`

	// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For.
	// Empty means the client IP is the connection's remote address.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type PackageConfig struct {
	Tier string `mapstructure:"tier"`
}

type BookingConfig struct {
	Link string `mapstructure:"link"`
}

type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Pass     string        `mapstructure:"pass"`
	From     string        `mapstructure:"from"`
	FromName string        `mapstructure:"from_name"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type SheetsConfig struct {
	SheetID         string `mapstructure:"sheet_id"`
	CredentialsJSON string `mapstructure:"credentials_json"`
}

type WhatsAppConfig struct {
	AccountSID         string `mapstructure:"account_sid"`
	AuthToken          string `mapstructure:"auth_token"`
	From               string `mapstructure:"from"`
	OwnerNumber        string `mapstructure:"owner_number"`
	DefaultCountryCode string `mapstructure:"default_country_code"`
}

type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai|gemini
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

// Configured reports whether a chat model can be called.
func (l LLMConfig) Configured() bool { return l.APIKey != "" }

type StoreConfig struct {
	Backend string `mapstructure:"backend"` // sheets|mysql
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"` // empty keeps dedup and rate limits in memory
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	Topic          string        `mapstructure:"topic"`
	GroupID        string        `mapstructure:"group_id"`
	MinBytes       int           `mapstructure:"min_bytes"`
	MaxBytes       int           `mapstructure:"max_bytes"`
	CommitInterval int           `mapstructure:"commit_interval_ms"`
	BatchSize      int           `mapstructure:"batch_size"`
	BatchWait      time.Duration `mapstructure:"batch_wait"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

type RateLimitConfig struct {
	Window    time.Duration `mapstructure:"window"`
	Lead      int           `mapstructure:"lead"`
	Chat      int           `mapstructure:"chat"`
	FollowUps int           `mapstructure:"follow_ups"`
}

type DedupConfig struct {
	Window    time.Duration `mapstructure:"window"`
	Retention time.Duration `mapstructure:"retention"`
}

type FollowUpsConfig struct {
	FirstAfter  time.Duration `mapstructure:"first_after"`
	SecondAfter time.Duration `mapstructure:"second_after"`
}

// envAliases binds the conventional variable names used by existing deployments
// next to the LEADSITE_* form.
var envAliases = map[string]string{
	"app.env":                       "NODE_ENV",
	"app.business_name":             "BUSINESS_NAME",
	"app.owner_name":                "OWNER_NAME",
	"app.owner_email":               "OWNER_EMAIL",
	"app.site_url":                  "SITE_URL",
	"http.admin_key":                "ADMIN_API_KEY",
	"package.tier":                  "PACKAGE_TIER",
	"booking.link":                  "BOOKING_LINK",
	"smtp.host":                     "SMTP_HOST",
	"smtp.port":                     "SMTP_PORT",
	"smtp.user":                     "SMTP_USER",
	"smtp.pass":                     "SMTP_PASS",
	"smtp.from":                     "SMTP_FROM",
	"sheets.sheet_id":               "GOOGLE_SHEET_ID",
	"sheets.credentials_json":       "GOOGLE_CREDENTIALS_JSON",
	"whatsapp.account_sid":          "TWILIO_ACCOUNT_SID",
	"whatsapp.auth_token":           "TWILIO_AUTH_TOKEN",
	"whatsapp.from":                 "TWILIO_WHATSAPP_FROM",
	"whatsapp.owner_number":         "OWNER_WHATSAPP",
	"whatsapp.default_country_code": "WHATSAPP_DEFAULT_COUNTRY_CODE",
	"redis.addr":                    "REDIS_ADDR",
}

// featureEnv names the *_ENABLED variable for each feature.
var featureEnv = map[features.Feature]string{
	features.Email:     "EMAIL_ENABLED",
	features.Chatbot:   "CHATBOT_ENABLED",
	features.Sheets:    "SHEETS_ENABLED",
	features.WhatsApp:  "WHATSAPP_ENABLED",
	features.Booking:   "BOOKING_ENABLED",
	features.FollowUps: "FOLLOW_UPS_ENABLED",
	features.Reports:   "REPORTS_ENABLED",
}

// Load reads .env (if present), embedded defaults, merges user YAML (if provided),
// and applies env overrides (LEADSITE_* and the conventional names).
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.MergeInConfig(); err != nil {
				return Config{}, fmt.Errorf("read %s: %w", path, err)
			}
		}
	}

	// env override (LEADSITE_*)
	v.SetEnvPrefix("LEADSITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envAliases {
		if err := v.BindEnv(key, "LEADSITE_"+envKey(key), env); err != nil {
			return Config{}, err
		}
	}
	if err := v.BindEnv("llm.api_key", "LEADSITE_LLM_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return Config{}, err
	}
	if err := v.BindEnv("llm.provider", "LEADSITE_LLM_PROVIDER", "LLM_PROVIDER"); err != nil {
		return Config{}, err
	}
	if err := v.BindEnv("kafka.brokers", "LEADSITE_KAFKA_BROKERS", "KAFKA_BROKERS"); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	// a comma separated env value arrives as a single element
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.HTTP.CORSOrigins = splitList(cfg.HTTP.CORSOrigins)
	cfg.HTTP.TrustedProxies = splitList(cfg.HTTP.TrustedProxies)

	if cfg.LLM.Provider == "" && cfg.LLM.APIKey != "" {
		cfg.LLM.Provider = "openai"
		if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("GEMINI_API_KEY") != "" {
			cfg.LLM.Provider = "gemini"
		}
	}

	cfg.Overrides = make(map[features.Feature]bool)
	for f, env := range featureEnv {
		key := "features." + strings.ToLower(string(f))
		if err := v.BindEnv(key, "LEADSITE_"+envKey(key), env); err != nil {
			return Config{}, err
		}
		if v.IsSet(key) {
			cfg.Overrides[f] = v.GetBool(key)
		}
	}

	return cfg, nil
}

// Credentials collects the channel secrets the feature resolver validates.
func (c Config) Credentials() features.Credentials {
	return features.Credentials{
		SMTPHost:        c.SMTP.Host,
		SMTPUser:        c.SMTP.User,
		SMTPPass:        c.SMTP.Pass,
		SheetID:         c.Sheets.SheetID,
		GoogleCredsJSON: c.Sheets.CredentialsJSON,
		TwilioSID:       c.WhatsApp.AccountSID,
		TwilioToken:     c.WhatsApp.AuthToken,
		TwilioFrom:      c.WhatsApp.From,
		BookingLink:     c.Booking.Link,
	}
}

func envKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
