package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/sports-calendar/internal/config"
	"github.com/iliyamo/sports-calendar/internal/database"
	"github.com/iliyamo/sports-calendar/internal/detail"
	"github.com/iliyamo/sports-calendar/internal/handler"
	"github.com/iliyamo/sports-calendar/internal/logging"
	"github.com/iliyamo/sports-calendar/internal/metrics"
	"github.com/iliyamo/sports-calendar/internal/middleware"
	"github.com/iliyamo/sports-calendar/internal/notify"
	"github.com/iliyamo/sports-calendar/internal/queue"
	"github.com/iliyamo/sports-calendar/internal/repository"
	"github.com/iliyamo/sports-calendar/internal/router"
	"github.com/iliyamo/sports-calendar/internal/service"
	"github.com/iliyamo/sports-calendar/internal/tracing"
	"github.com/iliyamo/sports-calendar/internal/web"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.SetupGlobal(os.Stdout, cfg.ServiceName, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	db, err := database.Open(ctx, cfg.Database())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db.DB, cfg.MigrationsDir); err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	rdb := config.NewRedisClient(ctx, cfg.Redis)
	if rdb == nil {
		logger.Warn("redis unavailable, cache and rate limit disabled", "addr", cfg.Redis.Address())
	} else {
		defer rdb.Close()
	}

	var publisher service.EventPublisher
	if cfg.RabbitURL != "" {
		publisher = queue.NewPublisher(cfg.RabbitURL)
		consumer := queue.NewConsumer(cfg.RabbitURL, cfg.CancellationLog, notify.New(cfg.ResendAPIKey, cfg.EmailFrom), logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("cancel consumer stopped", "error", err)
			}
		}()
	} else {
		logger.Info("RABBITMQ_URL not set, session.cancelled events are not published")
	}

	sessions := repository.NewSessionRepo(db)
	participants := repository.NewParticipantRepo(db)
	svc := service.NewSessionService(sessions, participants, publisher, middleware.NewCachePurger(cfg.Cache, rdb), logger)

	views := detail.NewRegistry()
	go views.RunSweeper(ctx, cfg.ViewSweepInterval, cfg.ViewIdleTTL)

	renderer, err := web.NewRenderer(loc)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.Renderer = renderer
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.Any("error", v.Error),
			)
			return nil
		},
	}))
	e.Use(metrics.Middleware())

	csrf := middleware.CSRF([]byte(cfg.CSRFKey), cfg.CSRFSecure)
	router.RegisterRoutes(e, &handler.HealthHandler{DB: db})
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db)), cfg.JWTSecret, csrf)

	sh := handler.NewSessionHandler(svc, views, loc, cfg.VisiblePerDay)
	router.RegisterCalendar(e, sh, cfg.JWTSecret, csrf)
	router.RegisterAPI(e, sh, cfg.JWTSecret,
		middleware.NewRedisCache(cfg.Cache, rdb, middleware.WithKeySuffix(sh.CalendarDay)),
		middleware.NewTokenBucket(cfg.RateLimit, rdb),
	)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
