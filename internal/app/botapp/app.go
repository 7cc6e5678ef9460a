package botapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/wolfpost/internal/config"
	s3infra "github.com/ivankudzin/wolfpost/internal/infra/s3"
	tginfra "github.com/ivankudzin/wolfpost/internal/infra/telegram"
	"github.com/ivankudzin/wolfpost/internal/jobs/dispatch"
	"github.com/ivankudzin/wolfpost/internal/jobs/reminder"
	pgrepo "github.com/ivankudzin/wolfpost/internal/repo/postgres"
	redrepo "github.com/ivankudzin/wolfpost/internal/repo/redis"
	imagesvc "github.com/ivankudzin/wolfpost/internal/services/images"
	mediasvc "github.com/ivankudzin/wolfpost/internal/services/media"
	modsvc "github.com/ivankudzin/wolfpost/internal/services/moderation"
	notifysvc "github.com/ivankudzin/wolfpost/internal/services/notify"
	ratesvc "github.com/ivankudzin/wolfpost/internal/services/rate"
	schedsvc "github.com/ivankudzin/wolfpost/internal/services/schedules"
	usersvc "github.com/ivankudzin/wolfpost/internal/services/users"
)

type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	redis    *goredis.Client
	s3       *minio.Client
	bot      *tginfra.Bot

	userService       *usersvc.Service
	imageService      *imagesvc.Service
	moderationService *modsvc.Service
	scheduleService   *schedsvc.Service
	notifyService     *notifysvc.Service
	limiter           *ratesvc.Limiter

	dispatchJob *dispatch.Job
	reminderJob *reminder.Job
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres for bot app: %w", err)
	}

	s3Client, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init s3 for bot app: %w", err)
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	var bot *tginfra.Bot
	if strings.TrimSpace(cfg.Bot.Token) != "" {
		bot, err = tginfra.NewBot(cfg.Bot.Token)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init telegram bot: %w", err)
		}
	} else {
		logger.Warn("BOT_TOKEN is empty, telegram listener disabled")
	}

	storage := mediasvc.NewS3Storage(s3Client, cfg.S3.Bucket)
	imageRepo := pgrepo.NewImageRepo(pool)
	moderatorRepo := pgrepo.NewModeratorRepo(pool)
	scheduleRepo := pgrepo.NewScheduleRepo(pool)
	userRepo := pgrepo.NewUserRepo(pool)
	rateRepo := redrepo.NewRateRepo(redisClient)

	userService := usersvc.NewService(userRepo, logger)
	imageService := imagesvc.NewService(imageRepo, storage, logger, cfg.Bot.MaxFileSize)
	moderationService := modsvc.NewService(imageRepo, moderatorRepo, userRepo, imageService, bot, logger)
	scheduleService := schedsvc.NewService(scheduleRepo, logger)
	notifyService := notifysvc.NewService(userRepo, bot, logger, cfg.Dispatch.BroadcastDelay)
	limiter := ratesvc.NewLimiter(rateRepo, imageRepo, cfg.Limits.UploadsPerHour, cfg.Limits.MaxPending)

	dispatchJob := dispatch.New(scheduleService, imageService, notifyService, logger)
	reminderJob := reminder.New(imageRepo, moderatorRepo, bot, cfg.Dispatch.StalePendingAge, logger)

	return &App{
		cfg:               cfg,
		logger:            logger,
		postgres:          pool,
		redis:             redisClient,
		s3:                s3Client,
		bot:               bot,
		userService:       userService,
		imageService:      imageService,
		moderationService: moderationService,
		scheduleService:   scheduleService,
		notifyService:     notifyService,
		limiter:           limiter,
		dispatchJob:       dispatchJob,
		reminderJob:       reminderJob,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("bot app started")

	errCh := make(chan error, 3)
	go func() {
		errCh <- a.runDispatchLoop(ctx)
	}()
	go func() {
		errCh <- a.runReminderLoop(ctx)
	}()

	if a.bot != nil {
		go func() {
			errCh <- a.bot.Listen(ctx, a.loggedHandlers())
		}()
	}

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("bot app stopped")
			return nil
		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) {
				continue
			}
			return err
		}
	}
}

// loggedHandlers wraps the update handlers so a failed reply or a
// transient store error is logged and the listener keeps receiving.
// Only context cancellation stops the loop.
func (a *App) loggedHandlers() tginfra.Handlers {
	return tginfra.Handlers{
		OnCommand: func(ctx context.Context, update tginfra.CommandUpdate) error {
			return a.logHandlerError("command", a.handleCommand(ctx, update))
		},
		OnText: func(ctx context.Context, update tginfra.TextUpdate) error {
			return a.logHandlerError("text", a.handleText(ctx, update))
		},
		OnPhoto: func(ctx context.Context, update tginfra.PhotoUpdate) error {
			return a.logHandlerError("photo", a.handlePhoto(ctx, update))
		},
		OnCallback: func(ctx context.Context, update tginfra.CallbackUpdate) error {
			return a.logHandlerError("callback", a.handleCallback(ctx, update))
		},
	}
}

func (a *App) logHandlerError(kind string, err error) error {
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("update handler failed", zap.String("update", kind), zap.Error(err))
	}
	return nil
}

func (a *App) runDispatchLoop(ctx context.Context) error {
	if a.dispatchJob == nil {
		return nil
	}

	tick := a.cfg.Dispatch.Tick
	if tick <= 0 {
		tick = time.Minute
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.dispatchJob.Run(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				a.logger.Error("dispatch pass failed", zap.Error(err))
			}
		}
	}
}

func (a *App) runReminderLoop(ctx context.Context) error {
	if a.reminderJob == nil {
		return nil
	}

	interval := a.cfg.Dispatch.ReminderInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.reminderJob.Run(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				a.logger.Error("reminder pass failed", zap.Error(err))
			}
		}
	}
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
