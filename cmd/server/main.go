package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/reqtrack/reqtrack/internal/config"
	"github.com/reqtrack/reqtrack/internal/database"
	"github.com/reqtrack/reqtrack/internal/handler"
	"github.com/reqtrack/reqtrack/internal/mail"
	"github.com/reqtrack/reqtrack/internal/middleware"
	"github.com/reqtrack/reqtrack/internal/queue"
	"github.com/reqtrack/reqtrack/internal/repository"
	"github.com/reqtrack/reqtrack/internal/router"
	"github.com/reqtrack/reqtrack/internal/service"
	"github.com/reqtrack/reqtrack/internal/storage"
)

func main() {
	boot := config.NewLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"), "reqtrack-api")
	cfg := config.MustLoad(boot)
	log := config.NewLogger(cfg.Env, cfg.LogLevel, "reqtrack-api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, db, err := database.Open(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal().Err(err).Msg("connect mongo")
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("ensure indexes")
	}

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, rate limiting and caching disabled")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	mailCfg := config.LoadMailConfig()
	var mailer mail.Mailer
	switch {
	case cfg.RabbitURL != "":
		mailer = queue.NewPublisher(cfg.RabbitURL, mailCfg.Queue)
		log.Info().Str("queue", mailCfg.Queue).Msg("mail queued through rabbitmq")
	case mailCfg.Enabled():
		mailer = mail.NewSMTPMailer(mailCfg)
	default:
		mailer = mail.NewLogMailer(log)
	}

	files := storage.NewLocal(cfg.UploadDir, cfg.UploadURLPath, cfg.MaxUploadBytes)
	st := service.Stores{
		Users:        repository.NewUserRepo(db),
		Tokens:       repository.NewTokenRepo(db),
		Projects:     repository.NewProjectRepo(db),
		Requirements: repository.NewRequirementRepo(db),
		Assets:       repository.NewAssetRepo(db),
		Notes:        repository.NewNotificationRepo(db),
		Activity:     repository.NewActivityRepo(db),
		Files:        files,
	}

	notifier := service.NewNotifier(st.Notes, st.Users, mailer, mailCfg.AppName, cfg.ClientURL, log)
	auth := service.NewAuthService(service.AuthConfig{
		JWTSecret:           cfg.JWTSecret,
		TokenTTL:            cfg.JWTExpiresIn,
		BcryptCost:          cfg.BcryptCost,
		ResetTTL:            cfg.ResetTokenTTL,
		ClientURL:           cfg.ClientURL,
		AppName:             mailCfg.AppName,
		Production:          cfg.IsProduction(),
		RestrictStaffSignup: cfg.RestrictStaffSignup,
	}, st, mailer, log)
	audit := service.NewAuditService(st.Activity, st.Users, log)
	projects := service.NewProjectService(st, notifier, log)
	requirements := service.NewRequirementService(st, notifier, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler(log)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.ClientURL},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(echomw.BodyLimit(bodyLimit(cfg.MaxUploadBytes)))
	e.Use(requestLogger(log))

	router.Register(e, router.Handlers{
		Auth:          handler.NewAuthHandler(auth, log),
		Projects:      handler.NewProjectHandler(projects, log),
		Requirements:  handler.NewRequirementHandler(requirements, log),
		Assets:        handler.NewAssetHandler(service.NewAssetService(st, notifier, log), log),
		Search:        handler.NewSearchHandler(service.NewSearchService(st), log),
		Dashboard:     handler.NewDashboardHandler(service.NewDashboardService(st, audit), audit, log),
		Notifications: handler.NewNotificationHandler(service.NewNotificationService(st.Notes), log),
		Users:         handler.NewUserHandler(service.NewUserService(st.Users), log),
		Export:        handler.NewExportHandler(handler.NewExportSource(projects, requirements), mailCfg.AppName, log),
		Health: handler.Health(func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}),
	}, router.Deps{
		Sessions:  auth,
		Audit:     audit,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig("AUTH_RATE_LIMIT"),
		Cache:     config.LoadCacheConfig(),
		UploadDir: cfg.UploadDir,
		UploadURL: cfg.UploadURLPath,
		Log:       log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}

// bodyLimit allows a full client submission plus form overhead.
func bodyLimit(perFile int64) string {
	return strconv.FormatInt((perFile*service.MaxSubmissionFiles)>>20+1, 10) + "M"
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", middleware.RedactedPath(c, v.URI)).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
