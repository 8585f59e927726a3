package canned

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/taoyao-code/isis-master/internal/protocol/slip"
)

// Reader 从字节流中逐帧读取记录。
// Next 在正常结束时返回 io.EOF；单条坏记录返回 *RecordError（匹配 ErrBadRecord），
// 读取可继续；输入损坏时返回匹配 ErrSourceExhausted 的错误，之后一直返回该错误。
type Reader struct {
	br    *bufio.Reader
	index int
	err   error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// NewBytesReader 从内存中的预置文件内容读取
func NewBytesReader(b []byte) *Reader { return NewReader(bytes.NewReader(b)) }

// Next 返回下一条记录
func (r *Reader) Next() (Record, error) {
	for {
		if r.err != nil {
			return nil, r.err
		}
		chunk, err := r.br.ReadBytes(slip.FEND)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(bytes.Trim(chunk, string([]byte{slip.FEND}))) > 0 {
					r.err = fmt.Errorf("%w: unterminated frame after record %d", ErrSourceExhausted, r.index)
				} else {
					r.err = io.EOF
				}
				return nil, r.err
			}
			r.err = fmt.Errorf("%w: %w", ErrSourceExhausted, err)
			return nil, r.err
		}
		body := chunk[:len(chunk)-1]
		if len(body) == 0 {
			// 起始 FEND 或空帧
			continue
		}
		index := r.index
		r.index++

		raw, err := slip.Decode(body)
		if err != nil {
			return nil, &RecordError{Index: index, Raw: append([]byte(nil), body...), Err: err}
		}
		rec, err := ParseRecord(raw)
		if err != nil {
			return nil, &RecordError{Index: index, Raw: raw, Err: err}
		}
		return rec, nil
	}
}

// Index 已读取的记录数（含坏记录）
func (r *Reader) Index() int { return r.index }

// RawSource 内存中的未成帧记录序列，主要用于测试与 API 直接下发
type RawSource struct {
	raws [][]byte
	pos  int
}

func NewRawSource(raws ...[]byte) *RawSource { return &RawSource{raws: raws} }

func (s *RawSource) Next() (Record, error) {
	if s.pos >= len(s.raws) {
		return nil, io.EOF
	}
	index := s.pos
	raw := s.raws[index]
	s.pos++
	rec, err := ParseRecord(raw)
	if err != nil {
		return nil, &RecordError{Index: index, Raw: raw, Err: err}
	}
	return rec, nil
}

// SliceSource 内存中的记录序列
type SliceSource struct {
	records []Record
	pos     int
}

func NewSliceSource(records ...Record) *SliceSource { return &SliceSource{records: records} }

func (s *SliceSource) Next() (Record, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

// ReadAll 读取全部记录；坏记录收集到 errs 中，遇到输入损坏时返回错误
func ReadAll(r io.Reader) (records []Record, errs []error, err error) {
	rd := NewReader(r)
	for {
		rec, e := rd.Next()
		switch {
		case e == nil:
			records = append(records, rec)
		case errors.Is(e, io.EOF):
			return records, errs, nil
		case errors.Is(e, ErrBadRecord):
			errs = append(errs, e)
		default:
			return records, errs, e
		}
	}
}
