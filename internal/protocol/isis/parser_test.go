package isis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SlaveRoundTrip(t *testing.T) {
	cases := []*SlavePacket{
		ResetClock(AddressAllCall),
		DynBlink(0x0003, 80, 20, 5),
		DynThrob(AddressAllCall, 80, 20, 100, 100),
		DynSparkle(0x0102, 30),
		Comment("Rotate 2"),
		{Command: CmdDynBlink, Address: 0x1234, Payload: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}},
	}
	for _, pkt := range cases {
		raw, err := Serialize(pkt)
		require.NoError(t, err, pkt.Command.String())
		got, err := Parse(raw)
		require.NoError(t, err, pkt.Command.String())
		assert.Equal(t, Packet(pkt), got)
	}
}

func TestParse_EntityRoundTrip(t *testing.T) {
	cases := []*EntityPacket{
		FillRGB(AddressAllCall, Once, 128, 0, 0),
		FillD(EntityDiags, Once, DynamicsThrob),
		ShiftUp(EntityFront, Schedule{Repeat: 24, Start: 0, Interval: 1}, 1, 0, 0, 0, 0),
		ShiftDown(EntityLeft, Schedule{Repeat: 72, Start: 300, Interval: 2}, 1, 255, 0, 0, 0),
		Rotate(EntitySides, Schedule{Repeat: 0, Start: 0xBEEF, Interval: 0xC0DB}, 3, 1),
		Randomize(EntityDiag0|EntityDiag1, Once),
		LoadOne(EntityBack, Once, 7, 1, 2, 3, DynamicsSparkle),
		Rainbow(AddressAllCall, Once, 0, 16, 1),
	}
	for _, pkt := range cases {
		raw, err := Serialize(pkt)
		require.NoError(t, err, pkt.Command.String())
		got, err := Parse(raw)
		require.NoError(t, err, pkt.Command.String())
		assert.Equal(t, Packet(pkt), got)
	}
}

func TestSerialize_LittleEndianLayout(t *testing.T) {
	raw, err := Serialize(FillRGB(0x0102, Schedule{Repeat: 3, Start: 0x0304, Interval: 0x0506}, 9, 8, 7))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x40, 0x02, 0x01, 0x03, 0x04, 0x03, 0x06, 0x05, 9, 8, 7}, raw)

	raw, err = Serialize(DynBlink(0xFFFF, 0x0150, 20, 7))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xFF, 0xFF, 0x50, 0x01, 20, 0, 7}, raw)
}

func TestParse_TooShort(t *testing.T) {
	for _, raw := range [][]byte{
		nil,
		{0x00},
		{0x00, 0xFF},
		{0x40, 0xFF, 0xFF},
		{0x44, 0xFF, 0xFF, 1, 0, 0, 0},
	} {
		_, err := Parse(raw)
		assert.True(t, errors.Is(err, ErrTooShort), "raw=% X err=%v", raw, err)
	}
}

func TestParse_UnknownCommandKeepsByte(t *testing.T) {
	for _, c := range []byte{0x05, 0x3F, 0x48, 0x7F, 0x80, 0xC0, 0xFE} {
		_, err := Parse([]byte{c, 0xFF, 0xFF, 0, 0, 0, 0, 0})
		require.ErrorIs(t, err, ErrUnknownCommand)
		var ce *CommandError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, Command(c), ce.Command)
		assert.Contains(t, err.Error(), "0x")
	}
}

func TestParse_RejectsMeta(t *testing.T) {
	_, err := Parse([]byte{0xFF, 0x01, 0x10, 0x00})
	assert.ErrorIs(t, err, ErrMetaCommand)
}

func TestParse_TooLong(t *testing.T) {
	raw := make([]byte, PacketMax+1)
	raw[0] = byte(CmdFillRGB)
	_, err := Parse(raw)
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestSerialize_Errors(t *testing.T) {
	_, err := Serialize(&EntityPacket{Command: CmdRainbow, Data: make([]byte, PacketMax-OffsetEntityData+1)})
	assert.ErrorIs(t, err, ErrTooLong)

	_, err = Serialize(&EntityPacket{Command: CmdRainbow, Data: make([]byte, PacketMax-OffsetEntityData)})
	assert.NoError(t, err)

	// 命令码与变体族不符
	_, err = Serialize(&SlavePacket{Command: CmdFillRGB})
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = Serialize(&SlavePacket{Command: 0x30})
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestComment_Truncates(t *testing.T) {
	p := Comment("a very long comment text")
	assert.Len(t, p.Payload, PacketMax-OffsetSlaveData)
	raw, err := Serialize(p)
	require.NoError(t, err)
	assert.Len(t, raw, PacketMax)
}
