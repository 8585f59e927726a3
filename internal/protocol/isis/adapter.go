package isis

import (
	"github.com/taoyao-code/isis-master/internal/protocol/slip"
)

// Adapter 接收方向的协议适配器：SLIP 流式解码 + 包解析 + 路由表
type Adapter struct {
	decoder *slip.StreamDecoder
	table   *Table
	onError func(raw []byte, err error)
}

func NewAdapter() *Adapter {
	return &Adapter{decoder: slip.NewStreamDecoder(4 * PacketMax), table: NewTable()}
}

// Register 注册命令处理器
func (a *Adapter) Register(cmd Command, h Handler) { a.table.Register(cmd, h) }

// SetFallback 未注册命令的兜底处理器
func (a *Adapter) SetFallback(h Handler) { a.table.SetFallback(h) }

// OnError 安装坏帧/坏包回调（raw 为 nil 表示帧层错误）
func (a *Adapter) OnError(fn func(raw []byte, err error)) { a.onError = fn }

// ProcessBytes 处理接收字节流；帧层与包层错误只回调报告，不中断后续帧
func (a *Adapter) ProcessBytes(p []byte) error {
	frames, err := a.decoder.Feed(p)
	if err != nil && a.onError != nil {
		a.onError(nil, err)
	}
	for _, raw := range frames {
		pkt, err := Parse(raw)
		if err != nil {
			if a.onError != nil {
				a.onError(raw, err)
			}
			continue
		}
		if err := a.table.Route(pkt); err != nil {
			return err
		}
	}
	return nil
}
