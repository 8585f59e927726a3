package isis

import (
	"encoding/binary"
	"fmt"
)

// Serialize 将包序列化为原始字节（与 Parse 对应），长度超过 PacketMax 时报错
func Serialize(p Packet) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil packet", ErrUnknownCommand)
	}
	if p.Cmd().Family() != p.Family() || !p.Cmd().Known() {
		return nil, cmdErr(p.Cmd(), p.Len(), ErrUnknownCommand)
	}
	if p.Len() > PacketMax {
		return nil, cmdErr(p.Cmd(), p.Len(), ErrTooLong)
	}

	buf := make([]byte, p.Len())
	buf[OffsetCommand] = byte(p.Cmd())
	binary.LittleEndian.PutUint16(buf[OffsetAddress:], p.Addr())

	switch v := p.(type) {
	case *SlavePacket:
		copy(buf[OffsetSlaveData:], v.Payload)
	case *EntityPacket:
		buf[OffsetRepeatCount] = v.RepeatCount
		binary.LittleEndian.PutUint16(buf[OffsetEffectiveTime:], v.EffectiveTime)
		binary.LittleEndian.PutUint16(buf[OffsetRepeatInterval:], v.RepeatInterval)
		copy(buf[OffsetEntityData:], v.Data)
	default:
		return nil, fmt.Errorf("%w: unsupported packet type %T", ErrUnknownCommand, p)
	}
	return buf, nil
}

// MustSerialize 序列化失败时 panic，仅用于测试与常量包构造
func MustSerialize(p Packet) []byte {
	b, err := Serialize(p)
	if err != nil {
		panic(err)
	}
	return b
}
