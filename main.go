package main

import (
	"context"
	"log"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/techblog/techblog/auth"
	"github.com/techblog/techblog/config"
	"github.com/techblog/techblog/models"
	"github.com/techblog/techblog/routes"
	"github.com/techblog/techblog/store"
	"github.com/techblog/techblog/utils"
)

func main() {
	cfg := config.Load()

	logger, err := utils.InitLogger(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := config.OpenDatabase(cfg, models.All()...)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionStore, err := newSessionStore(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatal("init session store", zap.Error(err))
	}

	credentials := store.NewCredentialStore(db, logger)
	sessions := auth.NewManager(credentials, sessionStore,
		utils.NewTokenSigner(cfg.SessionSecret, cfg.SessionMaxAge()), cfg.SessionTTL(), logger)

	accessLog, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		logger.Warn("gin access log unavailable, using app logger", zap.Error(err))
		accessLog = logger
	}

	r := routes.SetupRouter(routes.Deps{
		Config:      cfg,
		Credentials: credentials,
		Content:     store.NewContentStore(db, logger),
		Sessions:    sessions,
		Logger:      logger,
		AccessLog:   accessLog,
	})

	srv := utils.NewServer(":"+cfg.AppPort, r, logger)
	srv.OnShutdown(cancel)

	logger.Info("starting server", zap.String("port", cfg.AppPort), zap.String("session_store", cfg.SessionStore))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func newSessionStore(ctx context.Context, cfg config.AppConfig, db *gorm.DB, logger *zap.Logger) (auth.SessionStore, error) {
	switch strings.ToLower(cfg.SessionStore) {
	case "redis":
		rc, err := utils.NewRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return auth.NewRedisSessionStore(rc), nil
	case "memory":
		return auth.NewMemorySessionStore(), nil
	default:
		dbStore := auth.NewDatabaseSessionStore(db)
		auth.StartSessionCleaner(ctx, dbStore, cfg.SessionCleanupInterval(), logger)
		return dbStore, nil
	}
}
