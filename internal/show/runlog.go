package show

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/taoyao-code/isis-master/internal/player"
)

// Run 一次播放（循环播放的每一轮各记一次）
type Run struct {
	ID        uuid.UUID `json:"id"`
	Program   string    `json:"program"`
	Loop      bool      `json:"loop"`
	Iteration int       `json:"iteration"`
	StartedAt time.Time `json:"started_at"`
}

// RunLog 播放记录持久化
type RunLog interface {
	Begin(ctx context.Context, run Run) error
	Finish(ctx context.Context, id uuid.UUID, st player.Status, err error) error
}

// Entry 日志流条目
type Entry struct {
	RunID string    `json:"run_id"`
	Kind  string    `json:"kind"` // console | frame | state
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// Journal 操作台输出与发出帧的镜像（尽力而为，不得阻塞播放任务）
type Journal interface {
	Append(e Entry)
}
