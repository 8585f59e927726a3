// Package console 操作台：四位七段数码管、小数点与五个按键
package console

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Button 按键位图
type Button uint8

const (
	ButtonGreen  Button = 1
	ButtonRed    Button = 2
	ButtonBlack  Button = 4
	ButtonYellow Button = 8
	ButtonBlue   Button = 16

	buttonMask = ButtonGreen | ButtonRed | ButtonBlack | ButtonYellow | ButtonBlue
)

var buttonNames = []struct {
	b    Button
	name string
}{
	{ButtonGreen, "green"},
	{ButtonRed, "red"},
	{ButtonBlack, "black"},
	{ButtonYellow, "yellow"},
	{ButtonBlue, "blue"},
}

func (b Button) String() string {
	if b == 0 {
		return "none"
	}
	var parts []string
	for _, n := range buttonNames {
		if b&n.b != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := b &^ buttonMask; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%02X", uint8(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseButton 按名称解析按键（green/red/black/yellow/blue）
func ParseButton(name string) (Button, error) {
	for _, n := range buttonNames {
		if strings.EqualFold(strings.TrimSpace(name), n.name) {
			return n.b, nil
		}
	}
	return 0, fmt.Errorf("unknown button %q", name)
}

// 数码管可显示范围
const (
	DisplayMin = -999
	DisplayMax = 9999
)

// Line 操作台输出的一行文本
type Line struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// Snapshot 操作台状态快照
type Snapshot struct {
	Display  int    `json:"display"`
	Decimals uint8  `json:"decimals"`
	Buttons  Button `json:"buttons"`
	Pressed  string `json:"pressed"`
	Lines    []Line `json:"lines"`
}

// Context 操作台状态，替代驱动层的全局变量；并发安全
type Context struct {
	mu       sync.Mutex
	display  int
	decimals uint8
	buttons  Button
	lines    []Line
	maxLines int
	now      func() time.Time
}

// NewContext 创建操作台；maxLines 为保留的最近输出行数
func NewContext(maxLines int) *Context {
	if maxLines <= 0 {
		maxLines = 32
	}
	return &Context{maxLines: maxLines, now: time.Now}
}

// DisplayNumber 在数码管上显示数字，超出范围时截断到边界
func (c *Context) DisplayNumber(n int) {
	if n < DisplayMin {
		n = DisplayMin
	}
	if n > DisplayMax {
		n = DisplayMax
	}
	c.mu.Lock()
	c.display = n
	c.mu.Unlock()
}

// SetDecimals 设置小数点位图（低 6 位有效）
func (c *Context) SetDecimals(bits uint8) {
	c.mu.Lock()
	c.decimals = bits & 0x3F
	c.mu.Unlock()
}

// Press 按下按键
func (c *Context) Press(b Button) {
	c.mu.Lock()
	c.buttons |= b & buttonMask
	c.mu.Unlock()
}

// Release 松开按键
func (c *Context) Release(b Button) {
	c.mu.Lock()
	c.buttons &^= b
	c.mu.Unlock()
}

// ScanButtons 返回当前按下的按键位图
func (c *Context) ScanButtons() Button {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buttons
}

// Append 记录一行输出
func (c *Context) Append(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, Line{At: c.now(), Text: text})
	if over := len(c.lines) - c.maxLines; over > 0 {
		c.lines = append(c.lines[:0], c.lines[over:]...)
	}
}

// Snapshot 返回状态副本
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make([]Line, len(c.lines))
	copy(lines, c.lines)
	return Snapshot{
		Display:  c.display,
		Decimals: c.decimals,
		Buttons:  c.buttons,
		Pressed:  c.buttons.String(),
		Lines:    lines,
	}
}
