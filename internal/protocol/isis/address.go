package isis

import (
	"fmt"
	"strconv"
	"strings"
)

// TargetKind 寻址目标类型
type TargetKind uint8

const (
	TargetSingle TargetKind = iota
	TargetAllSlaves
	TargetAllEntities
)

// Target 地址解析结果
type Target struct {
	Kind    TargetKind
	Address uint16
}

// Broadcast 是否为全呼目标
func (t Target) Broadcast() bool { return t.Kind != TargetSingle }

func (t Target) String() string {
	switch t.Kind {
	case TargetAllSlaves:
		return "all-slaves"
	case TargetAllEntities:
		return "all-entities"
	default:
		return fmt.Sprintf("0x%04X", t.Address)
	}
}

// Resolve 将 16 位地址映射到单个节点或全呼广播；不校验单地址是否存在（属于注册表/传输层职责）
func Resolve(addr uint16, family Family) Target {
	if addr == AddressAllCall {
		if family == FamilyEntity {
			return Target{Kind: TargetAllEntities, Address: addr}
		}
		return Target{Kind: TargetAllSlaves, Address: addr}
	}
	return Target{Kind: TargetSingle, Address: addr}
}

// ResolvePacket 按包的命令族解析目标
func ResolvePacket(p Packet) Target { return Resolve(p.Addr(), p.Family()) }

// 实体地址位图（金字塔各边与对角线）
const (
	EntityDiag0 uint16 = 0x0001
	EntityDiag1 uint16 = 0x0002
	EntityDiag2 uint16 = 0x0004
	EntityDiag3 uint16 = 0x0008
	EntityDiag4 uint16 = 0x0010
	EntityDiag5 uint16 = 0x0020
	EntityDiag6 uint16 = 0x0040
	EntityDiag7 uint16 = 0x0080
	EntityLeft  uint16 = 0x0100
	EntityBack  uint16 = 0x0200
	EntityRight uint16 = 0x0400
	EntityFront uint16 = 0x0800

	EntityDiags uint16 = 0x00FF // 所有对角线
	EntitySides uint16 = 0x0F00 // 所有底边
)

var addressNames = map[string]uint16{
	"all":   AddressAllCall,
	"diags": EntityDiags,
	"sides": EntitySides,
	"diag0": EntityDiag0,
	"diag1": EntityDiag1,
	"diag2": EntityDiag2,
	"diag3": EntityDiag3,
	"diag4": EntityDiag4,
	"diag5": EntityDiag5,
	"diag6": EntityDiag6,
	"diag7": EntityDiag7,
	"left":  EntityLeft,
	"back":  EntityBack,
	"right": EntityRight,
	"front": EntityFront,
}

// ParseAddress 解析地址表达式：名称、以 | 连接的名称组合、十进制或 0x 十六进制
func ParseAddress(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty address")
	}
	var addr uint16
	for _, part := range strings.Split(s, "|") {
		part = strings.ToLower(strings.TrimSpace(part))
		if v, ok := addressNames[part]; ok {
			addr |= v
			continue
		}
		n, err := strconv.ParseUint(part, 0, 16)
		if err != nil {
			return 0, fmt.Errorf("bad address %q: %w", part, err)
		}
		addr |= uint16(n)
	}
	return addr, nil
}
