package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/isis-master/internal/config"
	redisstorage "github.com/taoyao-code/isis-master/internal/storage/redis"
)

// OpenJournal 连接 Redis 并创建日志流；未启用时两者均为 nil
func OpenJournal(ctx context.Context, cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, *redisstorage.Journal, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, journal off")
		return nil, nil, nil
	}
	client, err := redisstorage.NewClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize))
	return client, redisstorage.NewJournal(client, cfg.JournalKey, cfg.JournalLen, logger), nil
}
