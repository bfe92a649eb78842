package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/huangang/soundvault/internal/config"
	"github.com/huangang/soundvault/internal/handlers"
	"github.com/huangang/soundvault/internal/models"
	"github.com/huangang/soundvault/internal/services"
	"github.com/huangang/soundvault/internal/utils"
	"github.com/huangang/soundvault/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg              *config.Config
	db               *gorm.DB
	redis            *redis.Client
	mailQueue        services.MailQueue
	worker           *services.Worker
	systemLogService *services.SystemLogService
	authService      *services.AuthService
	audit            *services.AuditLogger

	authHandler      *handlers.AuthHandler
	userHandler      *handlers.UserHandler
	artistHandler    *handlers.ArtistHandler
	albumHandler     *handlers.AlbumHandler
	musicHandler     *handlers.MusicHandler
	genreHandler     *handlers.GenreHandler
	systemLogHandler *handlers.SystemLogHandler
	healthHandler    *handlers.HealthHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	db, err := models.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	if err := models.SeedDefaultData(db); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = newRedisClient(&cfg.Redis)
	}

	svc := newAppServices(cfg, db, rdb)

	if err := svc.authService.CreateSuperAdminIfNotExists(&cfg.Admin); err != nil {
		logger.Warn().Err(err).Msg("Failed to create super admin")
	}

	if err := svc.systemLogService.StartCleanupScheduler(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start system log cleanup")
	}

	if svc.worker != nil {
		if err := svc.worker.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start mail worker")
		}
	}

	return svc
}

// newAppServices wires services and handlers on top of an open database.
// rdb may be nil when Redis is disabled.
func newAppServices(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *appServices {
	codec := utils.NewTokenCodec([]byte(cfg.JWT.Secret))
	audit := services.NewAuditLogger(db)

	emailService := services.NewEmailService(db)
	mailQueue := services.NewMailQueue(&cfg.Redis, emailService.Process)
	worker := services.NewWorker(&cfg.Redis, emailService.Process)

	userService := services.NewUserService(db)
	authService := services.NewAuthService(db, codec, &cfg.JWT, mailQueue, audit)
	systemLogService := services.NewSystemLogService(db)

	return &appServices{
		cfg:              cfg,
		db:               db,
		redis:            rdb,
		mailQueue:        mailQueue,
		worker:           worker,
		systemLogService: systemLogService,
		authService:      authService,
		audit:            audit,

		authHandler:      handlers.NewAuthHandler(authService, userService, cfg.Cookie),
		userHandler:      handlers.NewUserHandler(userService),
		artistHandler:    handlers.NewArtistHandler(services.NewArtistService(db)),
		albumHandler:     handlers.NewAlbumHandler(services.NewAlbumService(db)),
		musicHandler:     handlers.NewMusicHandler(services.NewMusicService(db)),
		genreHandler:     handlers.NewGenreHandler(services.NewGenreService(db)),
		systemLogHandler: handlers.NewSystemLogHandler(systemLogService),
		healthHandler:    handlers.NewHealthHandler(db, rdb, mailQueue),
	}
}

func newRedisClient(cfg *config.RedisConfig) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis is not reachable yet")
	}
	return rdb
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.systemLogService.StopCleanupScheduler()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.mailQueue != nil {
		if err := s.mailQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close mail queue")
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
