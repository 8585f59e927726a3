package slip

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Escapes(t *testing.T) {
	got := Encode([]byte{0x01, FEND, 0x02, FESC, 0x03})
	want := []byte{FEND, 0x01, FESC, TFEND, 0x02, FESC, TFESC, 0x03, FEND}
	assert.Equal(t, want, got)
}

func TestEncode_NoLiteralDelimitersInside(t *testing.T) {
	raw := make([]byte, 0, 256)
	for i := 0; i < 256; i++ {
		raw = append(raw, byte(i))
	}
	enc := Encode(raw)
	require.Equal(t, FEND, enc[0])
	require.Equal(t, FEND, enc[len(enc)-1])
	body := enc[1 : len(enc)-1]
	assert.NotContains(t, body, FEND)
	for i, b := range body {
		if b == FESC {
			require.Less(t, i+1, len(body), "FESC at end of body")
			next := body[i+1]
			assert.True(t, next == TFEND || next == TFESC, "FESC followed by 0x%02X", next)
		}
	}
}

func TestRoundTrip_AllShortPackets(t *testing.T) {
	// 覆盖每个字节值在每个位置出现，长度不超过 15
	for length := 0; length <= 15; length++ {
		for v := 0; v < 256; v++ {
			p := bytes.Repeat([]byte{byte(v)}, length)
			if length > 1 {
				p[0] = 0x40
			}
			got, err := Decode(Encode(p))
			require.NoError(t, err)
			require.Equal(t, p, got, "len=%d v=0x%02X", length, v)
		}
	}
}

func TestDecode_StripsAndSkipsEmptyFrames(t *testing.T) {
	framed := []byte{FEND, FEND, FEND, 0x10, 0x20, FEND, FEND}
	got, err := Decode(framed)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x20}, got)
}

func TestDecode_WithoutDelimiters(t *testing.T) {
	got, err := Decode([]byte{0x01, FESC, TFESC})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, FESC}, got)
}

func TestDecode_InvalidEscape(t *testing.T) {
	_, err := Decode([]byte{FEND, 0x01, FESC, 0x55, FEND})
	assert.True(t, errors.Is(err, ErrInvalidEscape))

	_, err = Decode([]byte{FEND, 0x01, FESC})
	assert.True(t, errors.Is(err, ErrInvalidEscape))
}

func TestNext_ResyncAfterInvalidEscape(t *testing.T) {
	buf := append([]byte{FEND, 0x01, FESC, 0x00, 0x02, FEND}, Encode([]byte{0x44, 0x55})...)
	_, rest, err := Next(buf)
	require.ErrorIs(t, err, ErrInvalidEscape)

	raw, _, err := Next(rest)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x44, 0x55}, raw)
}

func TestDecode_EmptyInput(t *testing.T) {
	got, err := Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Decode(Encode(nil))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStreamDecoder_HalfAndStickyFrames(t *testing.T) {
	d := NewStreamDecoder(64)
	f1 := Encode([]byte{0x40, 0xFF, 0xFF, FEND})
	f2 := Encode([]byte{0x00, 0x01, 0x00})
	stream := append(append([]byte{}, f1...), f2...)

	frames, err := d.Feed(stream[:5])
	require.NoError(t, err)
	assert.Empty(t, frames)
	assert.Greater(t, d.Pending(), 0)

	frames, err = d.Feed(stream[5:])
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, []byte{0x40, 0xFF, 0xFF, FEND}, frames[0])
	assert.Equal(t, []byte{0x00, 0x01, 0x00}, frames[1])
	assert.Equal(t, 0, d.Pending())
}

func TestStreamDecoder_DropsBadFrameAndResyncs(t *testing.T) {
	d := NewStreamDecoder(64)
	bad := []byte{FEND, 0x01, FESC, 0x99, 0x02, FEND}
	good := Encode([]byte{0x03, 0x04})
	frames, err := d.Feed(append(bad, good...))
	require.ErrorIs(t, err, ErrInvalidEscape)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x03, 0x04}, frames[0])
	assert.Equal(t, 1, d.Dropped())
}

func TestStreamDecoder_FrameTooLong(t *testing.T) {
	d := NewStreamDecoder(4)
	frames, err := d.Feed(Encode([]byte{1, 2, 3, 4, 5, 6}))
	require.ErrorIs(t, err, ErrFrameTooLong)
	assert.Empty(t, frames)

	frames, err = d.Feed(Encode([]byte{7, 8}))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{7, 8}, frames[0])
}
