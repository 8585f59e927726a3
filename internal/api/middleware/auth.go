// Package middleware 控制接口的 gin 中间件
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthConfig API认证配置
type AuthConfig struct {
	APIKeys []string `json:"api_keys"`
	Enabled bool     `json:"enabled"`
}

// NewAuthConfig 配置了 key 即启用认证
func NewAuthConfig(keys []string) AuthConfig {
	return AuthConfig{APIKeys: keys, Enabled: len(keys) > 0}
}

// Allows 常量时间比较，逐个匹配
func (a AuthConfig) Allows(key string) bool {
	ok := false
	for _, k := range a.APIKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			ok = true
		}
	}
	return ok
}

// APIKeyAuth 校验 X-API-Key 或 Authorization: Bearer <key>；未启用时放行
func APIKeyAuth(cfg AuthConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}
		key := extractKey(c.Request)
		switch {
		case key == "":
			deny(c, logger, http.StatusUnauthorized, "missing api key", "")
		case !cfg.Allows(key):
			deny(c, logger, http.StatusForbidden, "invalid api key", key)
		default:
			c.Set("authenticated", true)
			c.Next()
		}
	}
}

func extractKey(r *http.Request) string {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	if auth, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(auth)
	}
	return ""
}

func deny(c *gin.Context, logger *zap.Logger, status int, reason, key string) {
	logger.Warn("api auth: "+reason,
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("remote_addr", c.ClientIP()),
		zap.String("api_key_prefix", maskAPIKey(key)),
	)
	c.AbortWithStatusJSON(status, gin.H{
		"code":       status,
		"message":    reason,
		"request_id": c.GetString("request_id"),
	})
}

// maskAPIKey 脱敏（仅保留前后各 4 位）
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
