package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jmehdipour/leadsite/internal/chat"
	"github.com/jmehdipour/leadsite/internal/config"
	"github.com/jmehdipour/leadsite/internal/db"
	"github.com/jmehdipour/leadsite/internal/dedup"
	"github.com/jmehdipour/leadsite/internal/events"
	"github.com/jmehdipour/leadsite/internal/features"
	httpSrv "github.com/jmehdipour/leadsite/internal/http"
	"github.com/jmehdipour/leadsite/internal/kafka"
	"github.com/jmehdipour/leadsite/internal/logger"
	"github.com/jmehdipour/leadsite/internal/notify"
	"github.com/jmehdipour/leadsite/internal/ratelimit"
	"github.com/jmehdipour/leadsite/internal/repository"
	"github.com/jmehdipour/leadsite/internal/service/leads"
)

// app holds everything a command needs, built once from the config.
type app struct {
	cfg    config.Config
	log    *zap.Logger
	client features.ClientConfig

	rdb     *redis.Client
	mysqlDB *sqlx.DB
	chDB    *sqlx.DB

	store    repository.LeadStore
	events   repository.EventsRepository
	leads    *leads.Service
	chat     *chat.Responder
	limiters httpSrv.Limiters

	closers []func() error
}

// loadConfig reads the config file named by --config and initializes the
// global logger from it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Encoding)
	return cfg, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, log: logger.Log}

	a.client = features.Resolve(cfg.Package.Tier, cfg.Overrides, cfg.Credentials(), a.log)
	if missing := a.client.Validate(); len(missing) > 0 {
		a.log.Warn("enabled features are missing configuration", zap.Strings("missing", missing))
	}

	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	cfg := a.cfg

	rdb, err := db.NewRedisClient(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	if rdb != nil {
		a.rdb = rdb
		a.closers = append(a.closers, rdb.Close)
	}

	// dedup
	var ttl dedup.Store = dedup.NewMemoryStore(cfg.Dedup.Retention)
	if a.rdb != nil {
		ttl = dedup.NewRedisStore(a.rdb, cfg.Redis.Prefix+":dedup:")
	}
	dd := dedup.New(ttl, cfg.Dedup.Window, a.log.Named("dedup"))

	if err := a.openStore(ctx); err != nil {
		return err
	}

	// notifications
	from := cfg.SMTP.From
	if from == "" {
		from = cfg.SMTP.User
	}
	email := notify.NewEmailSender(
		notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Pass),
		notify.EmailOptions{
			From:     from,
			FromName: firstNonEmpty(cfg.SMTP.FromName, cfg.App.BusinessName),
			ReplyTo:  cfg.App.OwnerEmail,
			Enabled:  a.client.IsFeatureEnabled(features.Email),
			Timeout:  cfg.SMTP.Timeout,
		},
		dd, a.log,
	)
	whatsapp := notify.NewWhatsAppSender(
		notify.NewTwilioAPI(cfg.WhatsApp.AccountSID, cfg.WhatsApp.AuthToken),
		notify.WhatsAppOptions{
			From:               cfg.WhatsApp.From,
			DefaultCountryCode: cfg.WhatsApp.DefaultCountryCode,
			Enabled:            a.client.IsFeatureEnabled(features.WhatsApp),
		},
		dd, a.log,
	)

	// events
	var pub events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, producer.Close)
		pub = events.NewKafkaPublisher(producer, cfg.Kafka.PublishTimeout, a.log)
	}

	if cfg.ClickHouse.DSN != "" && a.client.IsFeatureEnabled(features.Reports) {
		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
		if err != nil {
			// reports answer 503 until ClickHouse is reachable at startup
			a.log.Warn("clickhouse unavailable, reports disabled", zap.Error(err))
		} else {
			a.chDB = chDB
			a.closers = append(a.closers, chDB.Close)
			a.events = repository.NewEventsRepository(chDB)
		}
	}

	// chat
	llm, err := chat.NewCompleter(ctx, chat.CompleterConfig{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return fmt.Errorf("chat model: %w", err)
	}
	if llm != nil {
		llm = chat.NewBreaker(llm, 3, 30*time.Second)
	}
	a.chat = chat.NewResponder(llm, chat.Options{
		BusinessName: cfg.App.BusinessName,
		Timeout:      cfg.LLM.Timeout,
	}, a.log)

	a.limiters = httpSrv.Limiters{
		Lead:      a.limiter("lead", cfg.RateLimit.Lead),
		Chat:      a.limiter("chat", cfg.RateLimit.Chat),
		FollowUps: a.limiter("follow_ups", cfg.RateLimit.FollowUps),
	}

	a.leads = leads.New(leads.Deps{
		Store:    a.store,
		Dedup:    dd,
		Email:    email,
		WhatsApp: whatsapp,
		Events:   pub,
		Client:   a.client,
		Settings: leads.Settings{
			BusinessName:        cfg.App.BusinessName,
			OwnerName:           cfg.App.OwnerName,
			OwnerEmail:          cfg.App.OwnerEmail,
			OwnerWhatsApp:       cfg.WhatsApp.OwnerNumber,
			SiteURL:             cfg.App.SiteURL,
			FirstFollowUpAfter:  cfg.FollowUps.FirstAfter,
			SecondFollowUpAfter: cfg.FollowUps.SecondAfter,
		},
		Log: a.log,
	})
	return nil
}

// openStore picks the lead store backend. Storage that is switched off or
// unconfigured leaves store nil; submissions are then accepted but not kept.
func (a *app) openStore(ctx context.Context) error {
	cfg := a.cfg
	if !a.client.IsFeatureEnabled(features.Sheets) {
		a.log.Info("lead storage disabled for this package")
		return nil
	}

	switch strings.ToLower(cfg.Store.Backend) {
	case "mysql":
		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		a.mysqlDB = mysqlDB
		a.closers = append(a.closers, mysqlDB.Close)
		a.store = repository.NewMySQLLeadStore(mysqlDB)
	case "", "sheets":
		if !a.client.SheetsConfigured() {
			a.log.Warn("google sheets not configured, leads will not be stored")
			return nil
		}
		api, err := repository.NewGoogleSheets(ctx, cfg.Sheets.SheetID, cfg.Sheets.CredentialsJSON)
		if err != nil {
			return fmt.Errorf("google sheets: %w (%s)", err, repository.StorageHint(err))
		}
		a.store = repository.NewSheetsLeadStore(api, a.log)
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	return nil
}

func (a *app) limiter(name string, limit int) ratelimit.Limiter {
	if limit <= 0 {
		return nil
	}
	if a.rdb != nil {
		return ratelimit.NewRedis(a.rdb, a.cfg.Redis.Prefix+":"+name, limit, a.cfg.RateLimit.Window)
	}
	return ratelimit.NewMemory(limit, a.cfg.RateLimit.Window)
}

func (a *app) server() *httpSrv.Server {
	return httpSrv.NewServer(a.cfg, httpSrv.Deps{
		Leads:    a.leads,
		Chat:     a.chat,
		Client:   a.client,
		Store:    a.store,
		Events:   a.events,
		Limiters: a.limiters,
		Log:      a.log,
	})
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.log.Sync()
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
