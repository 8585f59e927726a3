package redis

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taoyao-code/isis-master/internal/show"
)

// Journal 将演出日志写入 Redis Stream（XADD MAXLEN ~）。
// Append 只入本地缓冲，由 Run 异步写出；缓冲满时丢弃并计数。
type Journal struct {
	rdb     redis.Cmdable
	key     string
	maxLen  int64
	ch      chan show.Entry
	dropped atomic.Int64
	logger  *zap.Logger
}

// NewJournal key 为 Stream 名，maxLen 为近似保留条数
func NewJournal(rdb redis.Cmdable, key string, maxLen int64, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &Journal{rdb: rdb, key: key, maxLen: maxLen, ch: make(chan show.Entry, 1024), logger: logger}
}

// Append 非阻塞入队
func (j *Journal) Append(e show.Entry) {
	select {
	case j.ch <- e:
	default:
		j.dropped.Add(1)
	}
}

// Dropped 因缓冲满丢弃的条目数
func (j *Journal) Dropped() int64 { return j.dropped.Load() }

// Run 写出循环，ctx 结束时尽量写完已缓冲条目
func (j *Journal) Run(ctx context.Context) {
	for {
		select {
		case e := <-j.ch:
			j.write(ctx, e)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			for {
				select {
				case e := <-j.ch:
					j.write(flushCtx, e)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) write(ctx context.Context, e show.Entry) {
	err := j.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: j.key,
		MaxLen: j.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"run_id": e.RunID,
			"kind":   e.Kind,
			"text":   e.Text,
			"at":     e.At.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		j.logger.Warn("journal write failed", zap.String("kind", e.Kind), zap.Error(err))
	}
}

// Recent 读取最近 n 条（新到旧）
func (j *Journal) Recent(ctx context.Context, n int64) ([]show.Entry, error) {
	msgs, err := j.rdb.XRevRangeN(ctx, j.key, "+", "-", n).Result()
	if err != nil {
		return nil, err
	}
	out := make([]show.Entry, 0, len(msgs))
	for _, m := range msgs {
		e := show.Entry{
			RunID: str(m.Values["run_id"]),
			Kind:  str(m.Values["kind"]),
			Text:  str(m.Values["text"]),
		}
		if at, err := time.Parse(time.RFC3339Nano, str(m.Values["at"])); err == nil {
			e.At = at
		}
		out = append(out, e)
	}
	return out, nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
