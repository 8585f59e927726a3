package isis

import "sync"

// Handler 处理器函数类型
type Handler func(p Packet) error

// Table 路由表（cmd -> handler）
type Table struct {
	mu       sync.RWMutex
	handlers map[Command]Handler
	fallback Handler
}

func NewTable() *Table { return &Table{handlers: make(map[Command]Handler)} }

func (t *Table) Register(cmd Command, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[cmd] = h
}

// SetFallback 设置未注册命令的兜底处理器
func (t *Table) SetFallback(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fallback = h
}

func (t *Table) Route(p Packet) error {
	t.mu.RLock()
	h := t.handlers[p.Cmd()]
	if h == nil {
		h = t.fallback
	}
	t.mu.RUnlock()
	if h == nil {
		return nil
	}
	return h(p)
}
