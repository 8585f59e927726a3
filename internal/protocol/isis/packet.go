package isis

// 包格式偏移（所有包）
const (
	OffsetCommand = 0
	OffsetAddress = 1 // uint16
)

// 从机包偏移
const OffsetSlaveData = 3

// 实体包公共头偏移
const (
	OffsetRepeatCount    = 3
	OffsetEffectiveTime  = 4 // uint16
	OffsetRepeatInterval = 6 // uint16
	OffsetEntityData     = 8
)

const (
	// PacketMax 最长合法包字节数（从机与实体包均适用，成帧前）
	PacketMax = 15
	// AddressAllCall 全呼地址：所有从机或所有实体
	AddressAllCall uint16 = 0xFFFF

	slaveHeaderLen  = OffsetSlaveData
	entityHeaderLen = OffsetEntityData
)

// Packet 协议包（标签联合：*SlavePacket | *EntityPacket）
type Packet interface {
	Cmd() Command
	Addr() uint16
	Family() Family
	// Len 返回序列化后的字节数
	Len() int
}

// SlavePacket 从机命令包
// 布局：cmd[1] | addrLE[2] | payload[..]
type SlavePacket struct {
	Command Command
	Address uint16
	Payload []byte
}

func (p *SlavePacket) Cmd() Command   { return p.Command }
func (p *SlavePacket) Addr() uint16   { return p.Address }
func (p *SlavePacket) Family() Family { return FamilySlave }
func (p *SlavePacket) Len() int       { return slaveHeaderLen + len(p.Payload) }

// EntityPacket 实体命令包
// 布局：cmd[1] | addrLE[2] | repeat[1] | effectiveTimeLE[2] | repeatIntervalLE[2] | data[..]
type EntityPacket struct {
	Command        Command
	Address        uint16
	RepeatCount    uint8  // 0 或 1 约定表示执行一次
	EffectiveTime  uint16 // 生效前的延迟（tick）
	RepeatInterval uint16 // 重复间隔（tick）
	Data           []byte
}

func (p *EntityPacket) Cmd() Command   { return p.Command }
func (p *EntityPacket) Addr() uint16   { return p.Address }
func (p *EntityPacket) Family() Family { return FamilyEntity }
func (p *EntityPacket) Len() int       { return entityHeaderLen + len(p.Data) }
