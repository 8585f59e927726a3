package isis

// 以下构造函数与灯光程序编译器的命令一一对应；16 位参数按小端写入

func le16(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }

// ResetClock 复位从机时钟
func ResetClock(addr uint16) *SlavePacket {
	return &SlavePacket{Command: CmdResetClock, Address: addr}
}

// DynBlink 闪烁动态参数：周期、点亮时间、暗度
func DynBlink(addr, period, onTime uint16, dimming uint8) *SlavePacket {
	payload := append(le16(period), le16(onTime)...)
	return &SlavePacket{Command: CmdDynBlink, Address: addr, Payload: append(payload, dimming)}
}

// DynThrob 呼吸动态参数：周期、渐变时间、亮度、暗度
func DynThrob(addr, period, rampTime uint16, bright, dim uint8) *SlavePacket {
	payload := append(le16(period), le16(rampTime)...)
	return &SlavePacket{Command: CmdDynThrob, Address: addr, Payload: append(payload, bright, dim)}
}

// DynSparkle 闪耀动态参数：概率
func DynSparkle(addr uint16, probability uint8) *SlavePacket {
	return &SlavePacket{Command: CmdDynSparkle, Address: addr, Payload: []byte{probability}}
}

// Comment 注释包，发往所有从机，文本截断到包长上限
func Comment(text string) *SlavePacket {
	b := []byte(text)
	if limit := PacketMax - slaveHeaderLen; len(b) > limit {
		b = b[:limit]
	}
	if len(b) == 0 {
		b = nil
	}
	return &SlavePacket{Command: CmdComment, Address: AddressAllCall, Payload: b}
}

// Schedule 实体包公共头：重复次数、生效时间、重复间隔
type Schedule struct {
	Repeat   uint8
	Start    uint16
	Interval uint16
}

// Once 立即执行一次
var Once = Schedule{Repeat: 1}

func entity(cmd Command, addr uint16, s Schedule, data ...byte) *EntityPacket {
	if len(data) == 0 {
		data = nil
	}
	return &EntityPacket{
		Command:        cmd,
		Address:        addr,
		RepeatCount:    s.Repeat,
		EffectiveTime:  s.Start,
		RepeatInterval: s.Interval,
		Data:           data,
	}
}

func FillRGB(addr uint16, s Schedule, r, g, b uint8) *EntityPacket {
	return entity(CmdFillRGB, addr, s, r, g, b)
}

func FillD(addr uint16, s Schedule, dynamics uint8) *EntityPacket {
	return entity(CmdFillD, addr, s, dynamics)
}

func ShiftUp(addr uint16, s Schedule, count, r, g, b, dynamics uint8) *EntityPacket {
	return entity(CmdShiftUp, addr, s, count, r, g, b, dynamics)
}

func ShiftDown(addr uint16, s Schedule, count, r, g, b, dynamics uint8) *EntityPacket {
	return entity(CmdShiftDown, addr, s, count, r, g, b, dynamics)
}

// Rotate down 非零表示向下旋转
func Rotate(addr uint16, s Schedule, count, down uint8) *EntityPacket {
	return entity(CmdRotate, addr, s, count, down)
}

func Randomize(addr uint16, s Schedule) *EntityPacket {
	return entity(CmdRandomize, addr, s)
}

func LoadOne(addr uint16, s Schedule, index, r, g, b, dynamics uint8) *EntityPacket {
	return entity(CmdLoadOne, addr, s, index, r, g, b, dynamics)
}

func Rainbow(addr uint16, s Schedule, start, incr, dir uint8) *EntityPacket {
	return entity(CmdRainbow, addr, s, start, incr, dir)
}
