// Package canned 实现预置包文件：由 SLIP 帧组成的协议包与元指令序列
package canned

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/taoyao-code/isis-master/internal/protocol/isis"
)

// MetaCommand 元指令（仅存在于预置包文件中，从不发送）
type MetaCommand uint8

const (
	MetaConsole   MetaCommand = 0x00 // 向操作台输出文本
	MetaWait      MetaCommand = 0x01 // 暂停发包若干 tick
	MetaEnds      MetaCommand = 0x02 // 结束播放（可携带程序结束 tick）
	MetaResetTime MetaCommand = 0x03 // 复位主控 tick 纪元
)

// 元记录偏移
const (
	OffsetMetaCommand = 1
	OffsetMetaData    = 2
)

func (m MetaCommand) String() string {
	switch m {
	case MetaConsole:
		return "CONSOLE"
	case MetaWait:
		return "WAIT"
	case MetaEnds:
		return "ENDS"
	case MetaResetTime:
		return "RESET_TIME"
	default:
		return fmt.Sprintf("META_0x%02X", uint8(m))
	}
}

var (
	// ErrBadRecord 单条记录损坏：上报并跳过
	ErrBadRecord = errors.New("bad record")
	// ErrSourceExhausted 输入源无法继续产出记录：终止播放
	ErrSourceExhausted = errors.New("source exhausted unexpectedly")
)

// RecordError 携带坏记录的原始字节与位置
type RecordError struct {
	Index int
	Raw   []byte
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d [% X]: %v", e.Index, e.Raw, e.Err)
}

// Unwrap 同时匹配 ErrBadRecord 与底层原因（如 isis.ErrUnknownCommand）
func (e *RecordError) Unwrap() []error { return []error{ErrBadRecord, e.Err} }

// Record 预置文件记录（标签联合：PacketRecord | MetaRecord）
type Record interface {
	record()
}

// PacketRecord 已通过解析校验的协议包
type PacketRecord struct {
	Packet isis.Packet
	Raw    []byte
}

// MetaRecord 元指令记录
type MetaRecord struct {
	Command MetaCommand
	Data    []byte
}

func (PacketRecord) record() {}
func (MetaRecord) record()   {}

// Text CONSOLE 数据文本。
// 两字节且含不可打印字符的数据按小端 16 位数值显示（原程序编译器 console(value) 的格式）。
func (m MetaRecord) Text() string {
	if v, ok := m.Value(); ok {
		return strconv.Itoa(int(v))
	}
	return string(m.Data)
}

// Value CONSOLE 数值形式的数据；ok=false 表示数据为文本
func (m MetaRecord) Value() (uint16, bool) {
	if len(m.Data) != 2 || (printable(m.Data[0]) && printable(m.Data[1])) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(m.Data), true
}

func printable(b byte) bool { return b >= 0x20 && b < 0x7F }

// Ticks WAIT/ENDS 数据中的 16 位 tick 值（小端）；ok=false 表示缺少数据
func (m MetaRecord) Ticks() (uint16, bool) {
	if len(m.Data) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(m.Data), true
}

func (m MetaRecord) String() string {
	switch m.Command {
	case MetaConsole:
		return fmt.Sprintf("META %s %q", m.Command, m.Text())
	case MetaWait, MetaEnds:
		if v, ok := m.Ticks(); ok {
			return fmt.Sprintf("META %s %d", m.Command, v)
		}
	}
	return fmt.Sprintf("META %s [% X]", m.Command, m.Data)
}

func (r PacketRecord) String() string {
	return fmt.Sprintf("%s -> %s [% X]", r.Packet.Cmd(), isis.ResolvePacket(r.Packet), r.Raw)
}

// ParseRecord 将一帧去帧后的字节解析为记录
func ParseRecord(raw []byte) (Record, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty", isis.ErrTooShort)
	}
	if isis.Command(raw[0]) == isis.CmdMeta {
		if len(raw) < OffsetMetaData {
			return nil, fmt.Errorf("%w: meta record without command", isis.ErrTooShort)
		}
		m := MetaRecord{Command: MetaCommand(raw[OffsetMetaCommand])}
		if len(raw) > OffsetMetaData {
			m.Data = append([]byte(nil), raw[OffsetMetaData:]...)
		}
		switch m.Command {
		case MetaConsole, MetaEnds, MetaResetTime:
		case MetaWait:
			if _, ok := m.Ticks(); !ok {
				return nil, fmt.Errorf("WAIT without duration: %w", isis.ErrTooShort)
			}
		default:
			return nil, fmt.Errorf("unknown meta command 0x%02X", uint8(m.Command))
		}
		return m, nil
	}
	pkt, err := isis.Parse(raw)
	if err != nil {
		return nil, err
	}
	return PacketRecord{Packet: pkt, Raw: append([]byte(nil), raw...)}, nil
}

// EncodeRecord 将记录编码为去帧前的原始字节
func EncodeRecord(r Record) ([]byte, error) {
	switch v := r.(type) {
	case PacketRecord:
		return isis.Serialize(v.Packet)
	case MetaRecord:
		return append([]byte{byte(isis.CmdMeta), byte(v.Command)}, v.Data...), nil
	default:
		return nil, fmt.Errorf("unsupported record %T", r)
	}
}
