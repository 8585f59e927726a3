package canned

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/taoyao-code/isis-master/internal/protocol/isis"
)

// Program YAML 灯光程序：设计者按步骤描述要发送的包与元指令，由 Compile 编译为预置包文件。
//
//	name: throb
//	steps:
//	  - comment: throb
//	  - reset_clock: all
//	  - reset_time: true
//	  - dyn_throb: {address: all, args: [80, 20, 100, 100]}
//	  - fill_rgb: {address: all, args: [128, 0, 0]}
//	  - wait: 500
//	  - ends: 2010
type Program struct {
	Name  string      `yaml:"name"`
	File  string      `yaml:"file"`
	Steps []yaml.Node `yaml:"steps"`
}

// stepArgs 包命令步骤参数
type stepArgs struct {
	Address  string `yaml:"address"`
	Repeat   *uint8 `yaml:"repeat"`
	Start    uint16 `yaml:"start"`
	Interval uint16 `yaml:"interval"`
	Args     []int  `yaml:"args"`
}

type commandSpec struct {
	cmd    isis.Command
	widths []int // 每个参数的字节宽度（1 或 2，2 为小端 uint16）
}

var commandSpecs = map[string]commandSpec{
	"reset_clock": {isis.CmdResetClock, nil},
	"dyn_blink":   {isis.CmdDynBlink, []int{2, 2, 1}},
	"dyn_throb":   {isis.CmdDynThrob, []int{2, 2, 1, 1}},
	"dyn_sparkle": {isis.CmdDynSparkle, []int{1}},
	"fill_rgb":    {isis.CmdFillRGB, []int{1, 1, 1}},
	"fill_d":      {isis.CmdFillD, []int{1}},
	"shift_up":    {isis.CmdShiftUp, []int{1, 1, 1, 1, 1}},
	"shift_down":  {isis.CmdShiftDown, []int{1, 1, 1, 1, 1}},
	"rotate":      {isis.CmdRotate, []int{1, 1}},
	"randomize":   {isis.CmdRandomize, nil},
	"loadone":     {isis.CmdLoadOne, []int{1, 1, 1, 1, 1}},
	"rainbow":     {isis.CmdRainbow, []int{1, 1, 1}},
}

// CompileResult 编译结果
type CompileResult struct {
	Name    string
	File    string
	Records int
	EndTick uint16
}

// Compile 解析 YAML 程序并写出预置包文件
func Compile(src []byte, out io.Writer) (*CompileResult, error) {
	var prog Program
	if err := yaml.Unmarshal(src, &prog); err != nil {
		return nil, fmt.Errorf("parse program: %w", err)
	}
	w := NewWriter(out)
	c := &compiler{w: w}
	for i := range prog.Steps {
		if err := c.step(&prog.Steps[i]); err != nil {
			return nil, fmt.Errorf("step %d (line %d): %w", i+1, prog.Steps[i].Line, err)
		}
	}
	return &CompileResult{Name: prog.Name, File: prog.File, Records: w.Count(), EndTick: c.endTick}, nil
}

// CompileBytes 编译到内存
func CompileBytes(src []byte) ([]byte, *CompileResult, error) {
	var buf bytes.Buffer
	res, err := Compile(src, &buf)
	if err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), res, nil
}

type compiler struct {
	w       *Writer
	cursor  uint16 // 最近一次 wait 写出的 tick 值，供 after 累加
	endTick uint16
}

func (c *compiler) step(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return fmt.Errorf("a step must be a single-key mapping")
	}
	key := strings.ToLower(n.Content[0].Value)
	val := n.Content[1]

	switch key {
	case "comment":
		return c.w.WritePacket(isis.Comment(val.Value))
	case "console":
		if val.ShortTag() == "!!int" {
			v, err := decodeTick(val)
			if err != nil {
				return err
			}
			return c.w.ConsoleValue(v)
		}
		return c.w.Console(val.Value)
	case "reset_time":
		return c.w.ResetTime()
	case "wait", "wait_for_tick":
		v, err := decodeTick(val)
		if err != nil {
			return err
		}
		c.cursor = v
		return c.w.Wait(v)
	case "after":
		v, err := decodeTick(val)
		if err != nil {
			return err
		}
		if int(c.cursor)+int(v) > math.MaxUint16 {
			return fmt.Errorf("after %d overflows tick counter at %d", v, c.cursor)
		}
		c.cursor += v
		return c.w.Wait(c.cursor)
	case "ends", "ends_at_tick":
		if val.ShortTag() == "!!int" {
			v, err := decodeTick(val)
			if err != nil {
				return err
			}
			c.endTick = v
			return c.w.Ends(v)
		}
		return c.w.EndsNow()
	}

	spec, ok := commandSpecs[key]
	if !ok {
		return fmt.Errorf("unknown step %q (known: %s)", key, knownSteps())
	}
	var args stepArgs
	if val.Kind == yaml.ScalarNode {
		args.Address = val.Value
	} else if err := val.Decode(&args); err != nil {
		return err
	}
	pkt, err := buildPacket(spec, args)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return c.w.WritePacket(pkt)
}

func decodeTick(n *yaml.Node) (uint16, error) {
	var v uint16
	if err := n.Decode(&v); err != nil {
		return 0, fmt.Errorf("bad tick value %q: %w", n.Value, err)
	}
	return v, nil
}

func buildPacket(spec commandSpec, a stepArgs) (isis.Packet, error) {
	if a.Address == "" {
		return nil, fmt.Errorf("missing address")
	}
	addr, err := isis.ParseAddress(a.Address)
	if err != nil {
		return nil, err
	}
	if len(a.Args) != len(spec.widths) {
		return nil, fmt.Errorf("want %d args, got %d", len(spec.widths), len(a.Args))
	}
	var data []byte
	for i, width := range spec.widths {
		v := a.Args[i]
		if v < 0 || (width == 1 && v > math.MaxUint8) || v > math.MaxUint16 {
			return nil, fmt.Errorf("arg %d out of range: %d", i+1, v)
		}
		if width == 2 {
			data = append(data, le16(uint16(v))...)
		} else {
			data = append(data, byte(v))
		}
	}

	if spec.cmd.Family() == isis.FamilySlave {
		return &isis.SlavePacket{Command: spec.cmd, Address: addr, Payload: data}, nil
	}
	repeat := uint8(1)
	if a.Repeat != nil {
		repeat = *a.Repeat
	}
	return &isis.EntityPacket{
		Command:        spec.cmd,
		Address:        addr,
		RepeatCount:    repeat,
		EffectiveTime:  a.Start,
		RepeatInterval: a.Interval,
		Data:           data,
	}, nil
}

func knownSteps() string {
	names := []string{"comment", "console", "reset_time", "wait", "after", "ends"}
	for k := range commandSpecs {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
