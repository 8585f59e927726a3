// Package isis 定义 Isis Pyramid 1.1 主控协议的数据包模型与解析/序列化
package isis

import "fmt"

// Command 包命令码（1 字节）
type Command uint8

// 从机命令（0x00-0x3F）
const (
	CmdResetClock Command = 0x00
	CmdDynBlink   Command = 0x01
	CmdDynThrob   Command = 0x02
	CmdDynSparkle Command = 0x03
	CmdComment    Command = 0x04 // 注释包：从机忽略，仅用于在比特流中插入可读文本
)

// 实体命令（0x40-0x7F）
const (
	CmdFillRGB   Command = 0x40
	CmdFillD     Command = 0x41
	CmdShiftUp   Command = 0x42
	CmdShiftDown Command = 0x43
	CmdRotate    Command = 0x44
	CmdRandomize Command = 0x45
	CmdLoadOne   Command = 0x46
	CmdRainbow   Command = 0x47
)

// CmdMeta 仅出现在预置包文件中的元命令转义码，从不上线
const CmdMeta Command = 0xFF

// Family 命令族
type Family uint8

const (
	FamilyNone Family = iota
	FamilySlave
	FamilyEntity
	FamilyMeta
)

func (f Family) String() string {
	switch f {
	case FamilySlave:
		return "slave"
	case FamilyEntity:
		return "entity"
	case FamilyMeta:
		return "meta"
	default:
		return "none"
	}
}

// Family 按命令码区间判定命令族
func (c Command) Family() Family {
	switch {
	case c < 0x40:
		return FamilySlave
	case c < 0x80:
		return FamilyEntity
	case c == CmdMeta:
		return FamilyMeta
	default:
		return FamilyNone
	}
}

var commandNames = map[Command]string{
	CmdResetClock: "RESET_CLOCK",
	CmdDynBlink:   "DYN_BLINK",
	CmdDynThrob:   "DYN_THROB",
	CmdDynSparkle: "DYN_SPARKLE",
	CmdComment:    "COMMENT",
	CmdFillRGB:    "FILL_RGB",
	CmdFillD:      "FILL_D",
	CmdShiftUp:    "SHIFT_UP",
	CmdShiftDown:  "SHIFT_DOWN",
	CmdRotate:     "ROTATE",
	CmdRandomize:  "RANDOMIZE",
	CmdLoadOne:    "LOADONE",
	CmdRainbow:    "RAINBOW",
	CmdMeta:       "META",
}

// Known 判断命令码是否为已定义的从机/实体命令
func (c Command) Known() bool {
	_, ok := commandNames[c]
	return ok && c != CmdMeta
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return fmt.Sprintf("CMD_0x%02X", uint8(c))
}

// 动态效果类型（FILL_D 等命令的 dynamics 参数）
const (
	DynamicsBlink   = 0x01 // 按占空比与速率硬亮/暗
	DynamicsThrob   = 0x02 // 柔和亮度调制
	DynamicsSparkle = 0x04 // 以概率 P 闪亮一个 tick
)
