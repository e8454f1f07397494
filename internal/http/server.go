package http

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jmehdipour/leadsite/internal/chat"
	"github.com/jmehdipour/leadsite/internal/config"
	"github.com/jmehdipour/leadsite/internal/features"
	"github.com/jmehdipour/leadsite/internal/http/middleware"
	"github.com/jmehdipour/leadsite/internal/metrics"
	"github.com/jmehdipour/leadsite/internal/ratelimit"
	"github.com/jmehdipour/leadsite/internal/repository"
	"github.com/jmehdipour/leadsite/internal/service/leads"
)

// Limiters holds one limiter per rate-limited endpoint. A nil limiter leaves
// its endpoint unlimited.
type Limiters struct {
	Lead      ratelimit.Limiter
	Chat      ratelimit.Limiter
	FollowUps ratelimit.Limiter
}

type Deps struct {
	Leads    *leads.Service
	Chat     *chat.Responder
	Client   features.ClientConfig
	Store    repository.LeadStore        // nil when lead storage is off
	Events   repository.EventsRepository // nil without ClickHouse
	Limiters Limiters
	Log      *zap.Logger
}

type Server struct {
	e       *echo.Echo
	started time.Time
}

func NewServer(cfg config.Config, d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	lg := d.Log.Named("http")
	s := &Server{started: time.Now()}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.ERROR)
	e.IPExtractor = ipExtractor(cfg.HTTP.TrustedProxies, lg)
	e.Use(
		echoMid.Recover(),
		echoMid.RequestIDWithConfig(echoMid.RequestIDConfig{Generator: uuid.NewString}),
		requestLogger(lg),
	)
	if len(cfg.HTTP.CORSOrigins) > 0 {
		e.Use(echoMid.CORSWithConfig(echoMid.CORSConfig{
			AllowOrigins: cfg.HTTP.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, middleware.HeaderAPIKey},
		}))
	} else {
		e.Use(echoMid.CORS())
	}
	if cfg.HTTP.BodyLimit != "" {
		e.Use(echoMid.BodyLimit(cfg.HTTP.BodyLimit))
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// middlewares
	adminMW := middleware.AdminKeyMiddleware(cfg.HTTP.AdminKey)
	limit := func(endpoint string, l ratelimit.Limiter, msg string) echo.MiddlewareFunc {
		return middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Endpoint: endpoint,
			Limiter:  l,
			Message:  msg,
			Log:      lg,
		})
	}

	dev := cfg.App.Development()

	// routes
	api := e.Group("/api")
	api.GET("/health", healthHandler(d, s.started))
	api.POST("/lead", leadHandler(d.Leads, cfg.HTTP.LeadTimeout, dev, lg),
		limit("lead", d.Limiters.Lead, "Too many submissions. Please wait a minute and try again."))
	api.POST("/chat", chatHandler(d.Chat, d.Client),
		limit("chat", d.Limiters.Chat, "You're sending messages too quickly. Please slow down."))
	api.GET("/leads", listLeadsHandler(d.Leads, dev, lg), adminMW)
	api.POST("/follow-ups", followUpsHandler(d.Leads, d.Client, dev, lg),
		adminMW, limit("follow_ups", d.Limiters.FollowUps, ""))
	api.GET("/config", configHandler(d.Client), adminMW)
	api.GET("/reports", reportsHandler(d.Events, d.Client, lg), adminMW)

	s.e = e
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	zap.L().Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

func requestLogger(lg *zap.Logger) echo.MiddlewareFunc {
	return echoMid.RequestLoggerWithConfig(echoMid.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echoMid.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				lg.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			lg.Info("request", fields...)
			return nil
		},
	})
}

// ipExtractor reads X-Forwarded-For only from the listed proxies. Without any,
// the client IP is the remote address and forwarding headers are ignored.
func ipExtractor(proxies []string, lg *zap.Logger) echo.IPExtractor {
	var trusted []echo.TrustOption
	for _, p := range proxies {
		if !strings.Contains(p, "/") {
			if strings.Contains(p, ":") {
				p += "/128"
			} else {
				p += "/32"
			}
		}
		_, ipNet, err := net.ParseCIDR(p)
		if err != nil {
			lg.Warn("ignoring invalid trusted proxy", zap.String("proxy", p), zap.Error(err))
			continue
		}
		trusted = append(trusted, echo.TrustIPRange(ipNet))
	}
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := append([]echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}, trusted...)
	return echo.ExtractIPFromXFFHeader(opts...)
}
