package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"gorm.io/gorm"

	cfgpkg "github.com/taoyao-code/isis-master/internal/config"
	"github.com/taoyao-code/isis-master/internal/migrate"
	"github.com/taoyao-code/isis-master/internal/show"
	"github.com/taoyao-code/isis-master/internal/storage/gormrepo"
	pgstorage "github.com/taoyao-code/isis-master/internal/storage/pg"
)

// ConnectDBAndMigrate 建立数据库连接并按需执行迁移
func ConnectDBAndMigrate(ctx context.Context, cfg cfgpkg.DatabaseConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	dbpool, err := pgstorage.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error("db connect error", zap.Error(err))
		return nil, err
	}
	if cfg.AutoMigrate {
		if err = (migrate.Runner{Dir: cfg.MigrationsDir, Logger: log}).Up(ctx, dbpool); err != nil {
			log.Error("db migrate error", zap.Error(err))
			return dbpool, err
		}
		log.Info("db migrations applied")
	}
	return dbpool, nil
}

// NewProgramStore 按配置选择程序库：目录或数据库（gorm）
func NewProgramStore(cfg cfgpkg.Config, log *zap.Logger) (show.ProgramStore, *gorm.DB, error) {
	if cfg.Programs.Store != "db" {
		log.Info("program store: directory", zap.String("dir", cfg.Programs.Dir))
		return show.DirStore{Dir: cfg.Programs.Dir}, nil, nil
	}
	db, err := gormrepo.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	log.Info("program store: database")
	return gormrepo.New(db), db, nil
}
