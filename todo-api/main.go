package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/yush1006/todo/api"
	"github.com/yush1006/todo/config"
	"github.com/yush1006/todo/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("dotenv: %v", err)
	}
	cfg, err := config.LoadServer("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := newBackend(cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var feed storage.Feed
	if cfg.RedisConnectionString != "" {
		rc := storage.NewRedisClient(cfg.RedisConnectionString)
		backend = storage.NewCache(backend, rc, cfg.TasksCacheTTL)
		rf := storage.NewRedisFeed(rc, cfg.RedisUpdatesChannel)
		go rf.Run(ctx)
		feed = rf
		log.WithField("channel", cfg.RedisUpdatesChannel).Info("using redis cache and change feed")
	}

	var events storage.EventPublisher
	if cfg.TaskEventsQueue != "" {
		qp, err := storage.NewQueuePublisher(cfg.StorageConnectionString, cfg.TaskEventsQueue)
		if err != nil {
			log.Fatalf("event queue: %v", err)
		}
		events = qp
	}
	store := storage.NewStore(backend, feed, events)

	auth, err := newAuth(cfg)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, api.HeaderAPIKey},
	}))
	e.Use(echoprometheus.NewMiddleware("todo_api"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, store, auth, api.Options{
		Logger:    log.StandardLogger(),
		Heartbeat: cfg.StreamHeartbeat,
		APIKeys:   cfg.APIKeys,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	log.WithFields(log.Fields{"port": cfg.Port, "backend": cfg.StorageBackend}).Info("todo api starting")
	if err := e.Start(":" + cfg.Port); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}

func newBackend(cfg *config.Server) (storage.Backend, error) {
	switch cfg.StorageBackend {
	case config.BackendTables:
		return storage.NewTableStore(cfg.StorageConnectionString, cfg.TasksTable)
	case config.BackendSQLite:
		db, err := storage.OpenSQLite(cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		return storage.NewSQLStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.StorageBackend)
	}
}

func newAuth(cfg *config.Server) (*api.Auth, error) {
	if cfg.Auth0TestMode {
		log.Warn("AUTH0_TEST_MODE enabled, accepting HS256 tokens")
		return api.NewTestAuth([]byte(cfg.TestJWTSecret), cfg.Auth0Audience, ""), nil
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.Auth0Domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(jwks, cfg.Auth0Audience, "https://"+cfg.Auth0Domain+"/"), nil
}
