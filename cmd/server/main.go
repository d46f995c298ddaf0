package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/microwire-quality/internal/config"
	"github.com/iliyamo/microwire-quality/internal/database"
	"github.com/iliyamo/microwire-quality/internal/handler"
	"github.com/iliyamo/microwire-quality/internal/jobs"
	"github.com/iliyamo/microwire-quality/internal/logger"
	"github.com/iliyamo/microwire-quality/internal/middleware"
	"github.com/iliyamo/microwire-quality/internal/queue"
	"github.com/iliyamo/microwire-quality/internal/repository"
	"github.com/iliyamo/microwire-quality/internal/router"
	"github.com/iliyamo/microwire-quality/internal/service"
)

// Expired refresh tokens are kept this long before the cleanup job removes them.
const tokenRetention = 7 * 24 * time.Hour

func main() {
	// .env is optional; real deployments pass the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	lg := logger.Init(cfg.Log)

	if err := run(cfg, lg); err != nil {
		lg.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, lg *slog.Logger) error {
	notify, err := config.LoadNotificationConfig()
	if err != nil {
		return err
	}
	sched, err := config.LoadScheduleConfig()
	if err != nil {
		return err
	}
	rlCfg := config.LoadRateLimitConfig()
	cacheCfg := config.LoadCacheConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	devices := repository.NewDeviceRepo(db)
	wires := repository.NewWireMaterialRepo(db)
	scenarios := repository.NewScenarioRepo(db)
	questions := repository.NewQuestionRepo(db)
	chats := repository.NewChatRepo(db)

	if err := service.EnsureRoot(ctx, users, cfg, lg); err != nil {
		return err
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		lg.Warn("redis unavailable, rate limiting and response cache disabled")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	brokerURL := config.BrokerURL()
	traceability := service.NewTraceabilityService(wires, service.NewAMQPPublisher(brokerURL, lg), notify, lg)

	var mail service.EmailSender = service.NewLogSender(lg)
	if cfg.SMTP.Host != "" {
		mail = service.NewSMTPSender(cfg.SMTP)
	} else {
		lg.Warn("SMTP_HOST not set, reports are written to the log instead of emailed")
	}

	monitor := jobs.NewQualityMonitorJob(traceability, lg)
	report := jobs.NewDailyReportJob(traceability, mail, notify, sched.Location, lg)

	scheduler := jobs.NewScheduler(sched.Location, lg)
	if err := jobs.RegisterScheduled(scheduler, sched, monitor, report); err != nil {
		return err
	}
	if err := scheduler.Register(jobs.TokenCleanupSpec, jobs.NewTokenCleanupJob(tokens, tokenRetention, lg)); err != nil {
		return err
	}

	chatSvc := service.NewChatService(chats, service.NewOpenAICompatClient(cfg.Assistant), cfg.Assistant, lg)

	h := router.Handlers{
		Health:       &handler.HealthHandler{DB: db, Redis: rdb},
		Auth:         handler.NewAuthHandler(cfg, users, tokens),
		Users:        handler.NewUserHandler(cfg, users, tokens),
		Devices:      handler.NewDeviceHandler(devices),
		Wires:        handler.NewWireMaterialHandler(wires, rdb, cacheCfg.Prefix),
		Scenarios:    handler.NewScenarioHandler(scenarios),
		Questions:    handler.NewQuestionHandler(questions),
		Chat:         handler.NewChatHandler(chats, chatSvc, cfg.Assistant.Timeout+30*time.Second),
		Predictions:  handler.NewPredictionHandler(service.NewPredictionClient(cfg.Predictor)),
		Traceability: handler.NewTraceabilityHandler(traceability, report, notify),
	}
	var mw router.Middlewares
	if rdb != nil {
		mw.RateLimit = middleware.NewTokenBucket(rlCfg, rdb)
		mw.StatsCache = middleware.NewRedisCache(cacheCfg, rdb)
	}

	v, err := handler.NewValidator()
	if err != nil {
		return err
	}
	e := echo.New()
	e.HideBanner = true
	e.Validator = v
	e.HTTPErrorHandler = handler.ErrorHandler(lg)
	if cfg.Env == "prod" {
		e.Logger.SetLevel(log.WARN)
	} else {
		e.Logger.SetLevel(log.INFO)
	}
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLog(lg))

	router.RegisterRoutes(e, h)
	router.RegisterAPI(e, h, mw, cfg.JWTSecret)

	alerts := logger.NewRotatingWriter("logs/quality_alerts.log", cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays)
	defer func() { _ = alerts.Close() }()

	scheduler.Start()
	lg.Info("scheduled jobs", "jobs", scheduler.Jobs(), "timezone", sched.Location.String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		lg.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := queue.StartQualityIssueConsumer(gctx, brokerURL, alerts, lg)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		httpErr := e.Shutdown(shutdownCtx)
		schedErr := scheduler.Stop(shutdownCtx)
		return errors.Join(httpErr, schedErr)
	})
	return g.Wait()
}
