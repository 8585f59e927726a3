package health

import "sync/atomic"

// Readiness 启动期就绪标记：出站链路已打开、程序库可用
type Readiness struct {
	linkReady  atomic.Bool
	storeReady atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetLinkReady(v bool)  { r.linkReady.Store(v) }
func (r *Readiness) SetStoreReady(v bool) { r.storeReady.Store(v) }

// Ready 两者均为 true
func (r *Readiness) Ready() bool {
	return r.linkReady.Load() && r.storeReady.Load()
}
