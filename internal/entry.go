// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/starford/smartmarks/internal/api"
	"github.com/starford/smartmarks/internal/auth"
	"github.com/starford/smartmarks/internal/bookmarkservice"
	"github.com/starford/smartmarks/internal/feed"
	"github.com/starford/smartmarks/internal/importer"
	"github.com/starford/smartmarks/internal/mcpserver"
	"github.com/starford/smartmarks/internal/metrics"
	"github.com/starford/smartmarks/internal/storage"
	"github.com/starford/smartmarks/internal/store"
	"github.com/starford/smartmarks/internal/web"
)

// services is everything a server process shares between its handlers.
type services struct {
	db      *store.DB
	broker  *feed.Broker
	redis   *redis.Client
	relay   *feed.RedisRelay
	metrics *metrics.Metrics
	svc     *bookmarkservice.Service
	gate    *auth.Gate
	oauth   *auth.OAuth
}

func (s *services) close() {
	if s.broker != nil {
		s.broker.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.logger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("feed_backend", cfg.Feed.Backend),
		slog.String("log_level", cfg.App.LogLevel.String()))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := buildServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	handler, err := newRouter(cfg, s, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if s.relay != nil {
		g.Go(func() error {
			return s.relay.Run(gCtx)
		})
	}

	if cfg.Import.Enabled {
		if err := os.MkdirAll(cfg.Import.Path, 0o755); err != nil {
			return fmt.Errorf("create import dir: %w", err)
		}
		inbox, err := storage.NewFS(cfg.Import.Path)
		if err != nil {
			return fmt.Errorf("init import inbox: %w", err)
		}
		im := importer.New(inbox, s.svc, cfg.Import.Owner, logger)
		g.Go(func() error {
			return im.Watch(gCtx, cfg.Import.Path, func(res importer.Result) {
				s.metrics.ObserveImport(res.Imported, res.Err)
			})
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Close the broker first so open event streams return and do not
		// hold Shutdown until its deadline.
		s.broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdio, acting as owner.
func RunMCP(ctx context.Context, owner string, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()
	slog.SetDefault(logger)

	if owner == "" {
		owner = cfg.Auth.LocalOwner
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	// Without a relay nobody else would see these changes; there are no
	// local subscribers in this process.
	var pub feed.Publisher
	if cfg.Feed.Backend == FeedBackendRedis {
		client, err := feed.ConnectRedis(ctx, redisOptions(cfg.Feed), logger)
		if err != nil {
			return err
		}
		defer client.Close()
		pub = feed.NewRedisRelay(client, cfg.Feed.Redis.Channel, "mcp-"+uuid.NewString(), nil, logger)
	} else {
		logger.Warn("feed backend is memory; MCP changes will not reach open web or terminal views")
	}

	svc := bookmarkservice.NewService(db, pub)
	logger.Info("Serving MCP on stdio", slog.String("owner", owner))
	return mcpserver.New(svc, owner, app.version).ServeStdio()
}

func buildServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*services, error) {
	s := &services{metrics: metrics.New()}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	s.db = db

	s.broker = feed.NewBroker(cfg.Feed.Heartbeat)
	s.metrics.WatchSubscribers(s.broker.ClientCount)

	var pub feed.Publisher = s.broker
	if cfg.Feed.Backend == FeedBackendRedis {
		client, err := feed.ConnectRedis(ctx, redisOptions(cfg.Feed), logger)
		if err != nil {
			s.close()
			return nil, err
		}
		s.redis = client
		s.relay = feed.NewRedisRelay(client, cfg.Feed.Redis.Channel, uuid.NewString(), s.broker, logger)
		pub = s.relay
	}
	s.svc = bookmarkservice.NewService(db, s.metrics.Publisher(pub))

	sessions, err := newSessions(cfg.Auth, logger)
	if err != nil {
		s.close()
		return nil, err
	}
	s.gate = auth.NewGate(auth.Mode(cfg.Auth.Mode), cfg.Auth.Token, cfg.Auth.LocalOwner, sessions)
	if cfg.Auth.Mode == AuthModeOAuth {
		o := cfg.Auth.OAuth
		s.oauth = auth.NewOAuth(auth.OAuthConfig{
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			AuthURL:      o.AuthURL,
			TokenURL:     o.TokenURL,
			UserinfoURL:  o.UserinfoURL,
			RedirectURL:  strings.TrimRight(cfg.App.HTTP.BaseURL, "/") + "/auth/callback",
			Scopes:       o.Scopes,
		}, sessions, logger)
	}
	return s, nil
}

// newSessions returns nil in disabled mode. Token mode without a configured
// secret gets a random one, so browser sessions end on restart.
func newSessions(c AuthConfig, logger *slog.Logger) (*auth.Sessions, error) {
	if c.Mode == AuthModeDisabled {
		return nil, nil
	}
	secret := c.Session.Secret
	if secret == "" {
		logger.Warn("auth.session.secret not set; sessions will not survive a restart")
		secret = strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	}
	sessions, err := auth.NewSessions(secret, c.Session.TTL)
	if err != nil {
		return nil, fmt.Errorf("init sessions: %w", err)
	}
	return sessions, nil
}

func redisOptions(c FeedConfig) feed.RedisOptions {
	return feed.RedisOptions{
		Addr:           c.Redis.Addr,
		Username:       c.Redis.Username,
		Password:       c.Redis.Password,
		DB:             c.Redis.DB,
		Channel:        c.Redis.Channel,
		ConnectTimeout: c.Redis.ConnectTimeout,
	}
}

func newRouter(cfg *Config, s *services, logger *slog.Logger) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.Metrics.Enabled {
		r.Use(s.metrics.Middleware)
	}

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if err := s.db.Ping(); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, s.metrics.Handler())
	}

	// Mount API routes under /api.
	r.Mount("/api", api.NewRouter(api.RouterConfig{
		Service: s.svc,
		Gate:    s.gate,
		Events:  s.broker.Handler(auth.OwnerFrom),
		RateLimit: api.RateLimitConfig{
			PerMinute: cfg.Limits.MutationsPerMinute,
			Burst:     cfg.Limits.Burst,
		},
	}))

	pages, err := web.New(web.Config{Service: s.svc, Gate: s.gate, OAuth: s.oauth, Logger: logger})
	if err != nil {
		return nil, err
	}
	pages.Mount(r)

	return r, nil
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}
