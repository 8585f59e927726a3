package app

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// InstanceID 主控实例标识，写入日志字段；ISIS_INSTANCE_ID 优先
func InstanceID() string {
	if id := strings.TrimSpace(os.Getenv("ISIS_INSTANCE_ID")); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return "isis-" + host + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}
