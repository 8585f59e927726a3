// Package slip 实现 SLIP/KISS 字节填充帧编解码（纯函数，无 I/O）
package slip

import (
	"errors"
	"fmt"
)

// 字节填充特殊码（KISS / SLIP 标准）
const (
	FEND  byte = 0xC0 // 帧定界
	FESC  byte = 0xDB // 转义
	TFEND byte = 0xDC // 转义后的 FEND
	TFESC byte = 0xDD // 转义后的 FESC
)

var (
	ErrInvalidEscape = errors.New("invalid escape sequence")
	ErrFrameTooLong  = errors.New("frame too long")
)

// Encode 将原始字节编码为一帧：FEND + 转义数据 + FEND
func Encode(raw []byte) []byte {
	buf := make([]byte, 0, len(raw)+len(raw)/4+2)
	buf = append(buf, FEND)
	for _, b := range raw {
		switch b {
		case FEND:
			buf = append(buf, FESC, TFEND)
		case FESC:
			buf = append(buf, FESC, TFESC)
		default:
			buf = append(buf, b)
		}
	}
	return append(buf, FEND)
}

// Decode 解码一帧。
// 首尾 FEND 被剥离；连续 FEND 构成的空帧被丢弃后继续；返回第一个非空帧。
// 空输入或全 FEND 输入解码为空包。
func Decode(framed []byte) ([]byte, error) {
	rest := framed
	for len(rest) > 0 {
		raw, next, err := Next(rest)
		if err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			return raw, nil
		}
		rest = next
	}
	return []byte{}, nil
}

// Next 从 buf 中取出下一帧，返回解码后的数据与剩余字节。
// 转义错误时 rest 定位到下一个 FEND 之后，便于调用方重新同步。
// 返回的 raw 为空表示遇到空帧（或 buf 仅含 FEND）。
func Next(buf []byte) (raw, rest []byte, err error) {
	i := 0
	for i < len(buf) && buf[i] == FEND {
		i++
	}
	out := make([]byte, 0, len(buf)-i)
	for ; i < len(buf); i++ {
		b := buf[i]
		switch b {
		case FEND:
			return out, buf[i+1:], nil
		case FESC:
			if i+1 >= len(buf) {
				return nil, nil, fmt.Errorf("%w: dangling FESC at offset %d", ErrInvalidEscape, i)
			}
			i++
			switch buf[i] {
			case TFEND:
				out = append(out, FEND)
			case TFESC:
				out = append(out, FESC)
			default:
				return nil, resync(buf, i), fmt.Errorf("%w: 0x%02X after FESC at offset %d", ErrInvalidEscape, buf[i], i)
			}
		default:
			out = append(out, b)
		}
	}
	return out, nil, nil
}

// resync 返回 i 之后第一个 FEND 之后的剩余字节
func resync(buf []byte, i int) []byte {
	for j := i; j < len(buf); j++ {
		if buf[j] == FEND {
			return buf[j+1:]
		}
	}
	return nil
}

// StreamDecoder 处理半包/粘包的流式解码器
type StreamDecoder struct {
	buf         []byte
	escaped     bool
	dropping    bool
	maxFrameLen int // 保护上限，避免畸形数据占用过多内存
	dropped     int
}

// NewStreamDecoder 创建流式解码器
func NewStreamDecoder(maxFrameLen int) *StreamDecoder {
	if maxFrameLen <= 0 {
		maxFrameLen = 256
	}
	return &StreamDecoder{maxFrameLen: maxFrameLen}
}

// Feed 追加数据并尽可能解出多帧。
// 坏帧（非法转义、超长）被丢弃并计数，在下一个 FEND 处重新同步；
// 返回的 error 仅提示本批数据中出现过坏帧，frames 仍然有效。
func (d *StreamDecoder) Feed(p []byte) ([][]byte, error) {
	var frames [][]byte
	var firstErr error
	for _, b := range p {
		if b == FEND {
			if d.escaped && !d.dropping {
				if firstErr == nil {
					firstErr = fmt.Errorf("%w: FEND after FESC", ErrInvalidEscape)
				}
				d.dropped++
			} else if !d.dropping && len(d.buf) > 0 {
				frame := make([]byte, len(d.buf))
				copy(frame, d.buf)
				frames = append(frames, frame)
			}
			d.reset()
			continue
		}
		if d.dropping {
			continue
		}
		if d.escaped {
			d.escaped = false
			switch b {
			case TFEND:
				b = FEND
			case TFESC:
				b = FESC
			default:
				if firstErr == nil {
					firstErr = fmt.Errorf("%w: 0x%02X after FESC", ErrInvalidEscape, b)
				}
				d.drop()
				continue
			}
		} else if b == FESC {
			d.escaped = true
			continue
		}
		if len(d.buf) >= d.maxFrameLen {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: limit %d", ErrFrameTooLong, d.maxFrameLen)
			}
			d.drop()
			continue
		}
		d.buf = append(d.buf, b)
	}
	return frames, firstErr
}

// Pending 返回缓冲中尚未遇到结束 FEND 的字节数
func (d *StreamDecoder) Pending() int { return len(d.buf) }

// Dropped 返回累计丢弃的坏帧数
func (d *StreamDecoder) Dropped() int { return d.dropped }

func (d *StreamDecoder) drop() {
	d.dropped++
	d.dropping = true
	d.escaped = false
	d.buf = d.buf[:0]
}

func (d *StreamDecoder) reset() {
	d.dropping = false
	d.escaped = false
	d.buf = d.buf[:0]
}
