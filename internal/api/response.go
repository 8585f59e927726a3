package api

import (
	"time"

	"github.com/gin-gonic/gin"
)

// StandardResponse 统一响应格式
type StandardResponse struct {
	Code      int         `json:"code"`           // 0=成功, >0=错误码
	Message   string      `json:"message"`        // 消息
	Data      interface{} `json:"data,omitempty"` // 业务数据
	RequestID string      `json:"request_id"`     // 请求追踪ID
	Timestamp int64       `json:"timestamp"`      // 时间戳
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, StandardResponse{
		Code:      0,
		Message:   "success",
		Data:      data,
		RequestID: c.GetString("request_id"),
		Timestamp: time.Now().Unix(),
	})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, StandardResponse{
		Code:      status,
		Message:   msg,
		RequestID: c.GetString("request_id"),
		Timestamp: time.Now().Unix(),
	})
}
