package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/isis-master/internal/api/middleware"
)

// RegisterShowRoutes 注册演出控制路由（/api 组，需认证）
func RegisterShowRoutes(r gin.IRouter, h *ShowHandler, authCfg middleware.AuthConfig, logger *zap.Logger) {
	if r == nil || h == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	api := r.Group("/api")
	api.Use(middleware.RequestID())
	if authCfg.Enabled {
		api.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	// 播放器
	api.GET("/player", h.GetPlayer)
	api.POST("/player/start", h.StartPlayer)
	api.POST("/player/stop", h.StopPlayer)

	// 程序库
	api.GET("/programs", h.ListPrograms)
	api.PUT("/programs/:name", h.PutProgram)
	api.GET("/programs/:name/records", h.GetProgramRecords)

	// 操作台
	api.GET("/console", h.GetConsole)
	api.POST("/console/buttons", h.SetButtons)

	// 历史
	api.GET("/runs", h.ListRuns)
	api.GET("/journal", h.ListJournal)

	logger.Info("show routes registered", zap.Int("endpoints", 10))
}
