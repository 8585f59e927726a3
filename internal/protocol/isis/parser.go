package isis

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrTooShort       = errors.New("packet too short")
	ErrTooLong        = errors.New("packet too long")
	ErrUnknownCommand = errors.New("unknown command")
	ErrMetaCommand    = errors.New("meta command is not a wire packet")
)

// CommandError 携带出错包的命令码，便于诊断
type CommandError struct {
	Command Command
	Len     int
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%v: command 0x%02X (%s), %d bytes", e.Err, uint8(e.Command), e.Command.Family(), e.Len)
}

func (e *CommandError) Unwrap() error { return e.Err }

func cmdErr(cmd Command, n int, err error) error {
	return &CommandError{Command: cmd, Len: n, Err: err}
}

// Parse 解析一个去帧后的字节缓冲（严格校验：命令族、已知命令、最小头长、最大包长）
func Parse(raw []byte) (Packet, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrTooShort)
	}
	cmd := Command(raw[OffsetCommand])
	switch cmd.Family() {
	case FamilyMeta:
		return nil, cmdErr(cmd, len(raw), ErrMetaCommand)
	case FamilySlave, FamilyEntity:
	default:
		return nil, cmdErr(cmd, len(raw), ErrUnknownCommand)
	}
	if !cmd.Known() {
		return nil, cmdErr(cmd, len(raw), ErrUnknownCommand)
	}
	if len(raw) > PacketMax {
		return nil, cmdErr(cmd, len(raw), ErrTooLong)
	}

	if cmd.Family() == FamilySlave {
		if len(raw) < slaveHeaderLen {
			return nil, cmdErr(cmd, len(raw), ErrTooShort)
		}
		return &SlavePacket{
			Command: cmd,
			Address: binary.LittleEndian.Uint16(raw[OffsetAddress:]),
			Payload: clone(raw[OffsetSlaveData:]),
		}, nil
	}

	if len(raw) < entityHeaderLen {
		return nil, cmdErr(cmd, len(raw), ErrTooShort)
	}
	return &EntityPacket{
		Command:        cmd,
		Address:        binary.LittleEndian.Uint16(raw[OffsetAddress:]),
		RepeatCount:    raw[OffsetRepeatCount],
		EffectiveTime:  binary.LittleEndian.Uint16(raw[OffsetEffectiveTime:]),
		RepeatInterval: binary.LittleEndian.Uint16(raw[OffsetRepeatInterval:]),
		Data:           clone(raw[OffsetEntityData:]),
	}, nil
}

// clone 复制切片；空数据统一为 nil，保证 Parse(Serialize(p)) 与构造值一致
func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
