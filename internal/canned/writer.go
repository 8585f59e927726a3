package canned

import (
	"encoding/binary"
	"io"

	"github.com/taoyao-code/isis-master/internal/protocol/isis"
	"github.com/taoyao-code/isis-master/internal/protocol/slip"
)

// Writer 按 SLIP 成帧写出预置包文件；第一次写错误后后续写入均为空操作
type Writer struct {
	w   io.Writer
	n   int
	err error
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Raw 写出一条未成帧的原始记录
func (w *Writer) Raw(raw []byte) error {
	if w.err != nil {
		return w.err
	}
	if _, err := w.w.Write(slip.Encode(raw)); err != nil {
		w.err = err
		return err
	}
	w.n++
	return nil
}

// WritePacket 序列化并写出协议包
func (w *Writer) WritePacket(p isis.Packet) error {
	raw, err := isis.Serialize(p)
	if err != nil {
		return err
	}
	return w.Raw(raw)
}

func (w *Writer) meta(cmd MetaCommand, data ...byte) error {
	return w.Raw(append([]byte{byte(isis.CmdMeta), byte(cmd)}, data...))
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// Console 操作台文本
func (w *Writer) Console(text string) error { return w.meta(MetaConsole, []byte(text)...) }

// ConsoleValue 写入数值型 CONSOLE（小端 16 位），操作台显示该数值
func (w *Writer) ConsoleValue(v uint16) error { return w.meta(MetaConsole, le16(v)...) }

// Wait 暂停 ticks 个 tick（绝对模式下为等待到第 ticks 个 tick）
func (w *Writer) Wait(ticks uint16) error { return w.meta(MetaWait, le16(ticks)...) }

// Ends 结束播放，endTick 为程序结束时的 tick
func (w *Writer) Ends(endTick uint16) error { return w.meta(MetaEnds, le16(endTick)...) }

// EndsNow 不携带结束 tick 的结束指令
func (w *Writer) EndsNow() error { return w.meta(MetaEnds) }

// ResetTime 复位主控 tick 纪元
func (w *Writer) ResetTime() error { return w.meta(MetaResetTime) }

// Count 已写出的记录数
func (w *Writer) Count() int { return w.n }

// Err 返回第一次写错误
func (w *Writer) Err() error { return w.err }
