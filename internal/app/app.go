package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"waasp/internal/audit"
	"waasp/internal/auth"
	"waasp/internal/config"
	"waasp/internal/httpapi"
	"waasp/internal/notify"
	"waasp/internal/rbac"
	"waasp/internal/retention"
	"waasp/internal/store"
	"waasp/internal/whitelist"
	"waasp/pkg/logger"
	"waasp/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Version is stamped at build time with -ldflags "-X waasp/internal/app.Version=...".
var Version = "dev"

// App owns the process-wide dependencies shared by the API server and the CLI.
type App struct {
	Config config.Config
	Log    *slog.Logger

	DB    *store.DB
	Redis *redis.Client // nil when REDIS_ADDR is unset

	Audit     *audit.Service
	Whitelist *whitelist.Service
	Auth      *auth.Manager // nil when JWT_SECRET is unset
	Janitor   *retention.Janitor
}

// New opens storage (running migrations), optional Redis, and builds services.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{Config: cfg, Log: log}

	db, err := store.Open(ctx, cfg.DB.URL, utils.PoolConfig{MaxOpenConns: cfg.DB.MaxOpenConns})
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	a.DB = db
	if err := db.Migrate(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("database migrate failed: %w", err)
	}

	var publisher notify.Publisher = notify.Nop{}
	var locker retention.Locker
	if cfg.Redis.Addr != "" {
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("redis init failed: %w", err)
		}
		a.Redis = rdb
		pub, err := notify.NewRedisPublisher(rdb, cfg.Redis.NotifyChannel)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		publisher = pub
		locker = retention.NewRedisLocker(rdb, retention.DefaultLockKey, 0)
	}

	if cfg.Auth.JWTSecret != "" {
		m, err := auth.NewManager(cfg.Auth)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("auth init failed: %w", err)
		}
		a.Auth = m
	}

	a.Audit = audit.NewService(db)
	a.Whitelist = whitelist.NewService(db, a.Audit).WithNotifier(publisher)
	a.Janitor = &retention.Janitor{
		Cleaner:   a.Audit,
		Locker:    locker,
		Retention: cfg.Retention(),
		Interval:  cfg.Audit.CleanupInterval,
	}
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

// Authenticator builds the admin auth middleware from config.
// With no credentials configured, admin routes are open outside production only.
func (a *App) Authenticator() *auth.Authenticator {
	prod := a.Config.IsProduction()
	return &auth.Authenticator{
		Manager:              a.Auth,
		APIToken:             a.Config.Auth.APIToken,
		DefaultRole:          rbac.RoleAdmin,
		AllowUnauthenticated: !prod && !a.Config.AdminAuthConfigured(),
		TrustLoopback:        !prod,
	}
}

// Router builds the Gin engine with all routes.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(a.Log))

	httpapi.Register(r, httpapi.Handlers{
		Whitelist: a.Whitelist,
		Audit:     a.Audit,
		DB:        a.DB,
		Version:   Version,
	}, a.Authenticator().Middleware())
	return r
}

// Serve runs the HTTP server and the retention janitor until ctx is cancelled,
// then shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	log := a.Log
	if a.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if !a.Config.AdminAuthConfigured() {
		log.Warn("no admin credentials configured; admin API is open (non-production only)")
	}

	srv := &http.Server{
		Addr:              a.Config.HTTPAddr(),
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		a.Janitor.Run(logger.With(ctx, log.With("component", "retention")))
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", a.Config.App.Env, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	<-janitorDone

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	default:
		return nil
	}
}
