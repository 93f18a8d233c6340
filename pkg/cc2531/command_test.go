package cc2531

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected byte
	}{
		{name: "empty data", data: []byte{}, expected: 0xFF},
		{name: "init header", data: []byte{0x03, 0x00}, expected: 0xFC},
		{name: "set channel 13", data: []byte{0x04, 0x02, 0x0D}, expected: 0xF4},
		{name: "single byte", data: []byte{0xFF}, expected: 0x00},
		{name: "self cancelling", data: []byte{0x5A, 0x5A}, expected: 0xFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Checksum(tt.data))
		})
	}
}

func TestChecksumMatchesXorFold(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		data := make([]byte, 1+rng.Intn(255))
		rng.Read(data)

		want := byte(0xFF)
		for _, b := range data {
			want ^= b
		}
		require.Equal(t, want, Checksum(data), "data % X", data)
	}
}

func TestBuildCommandFrame(t *testing.T) {
	frame, err := BuildCommandFrame(CodeInit, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x00, 0xFC}, frame)

	frame, err = BuildCommandFrame(CodeSetChannel, []byte{13})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x02, 0x0D, 0xFF ^ 0x04 ^ 0x02 ^ 0x0D}, frame)

	frame, err = BuildCommandFrame(CodeSendPacket, bytes.Repeat([]byte{0xAA}, MaxPayloadSize))
	require.NoError(t, err)
	assert.Len(t, frame, 255)
	assert.Equal(t, byte(255), frame[0])
	assert.Equal(t, Checksum(frame[:254]), frame[254])

	_, err = BuildCommandFrame(CodeSendPacket, make([]byte, MaxPayloadSize+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestCommandsCarryExplicitAcks(t *testing.T) {
	for _, cmd := range []Command{CmdInit, CmdSetChannel, CmdSendPacket, CmdSniffOn, CmdSniffOff} {
		assert.Equal(t, cmd.Code+1, cmd.Ack, cmd.Name)
		assert.Zero(t, cmd.Code%2, cmd.Name)
	}
}

func TestSendCommandWritesFrame(t *testing.T) {
	device, in, out := newFakeDevice()
	in.push(0x03, 0x03, CodeInitAck, 0x00)

	require.NoError(t, device.Init(context.Background()))
	require.Len(t, out.writes, 1)
	assert.Equal(t, []byte{0x03, 0x00, 0xFC}, out.writes[0])
}

func TestSendCommandAckValidation(t *testing.T) {
	commands := []Command{CmdInit, CmdSetChannel, CmdSendPacket, CmdSniffOn, CmdSniffOff}

	for _, cmd := range commands {
		for code := 0; code <= 0xFF; code++ {
			device, in, _ := newFakeDevice()
			in.push(0x03, 0x03, byte(code))

			err := device.SendCommand(context.Background(), cmd, nil)
			if byte(code) == cmd.Ack {
				require.NoError(t, err, "%s ack 0x%02X", cmd, code)
				continue
			}

			var pe *ProtocolError
			require.ErrorAs(t, err, &pe, "%s response 0x%02X", cmd, code)
			assert.True(t, pe.HasCode)
			assert.Equal(t, byte(code), pe.Code)
			assert.ErrorIs(t, err, ErrProtocol)
		}
	}
}

func TestSendCommandDeviceErrorCode(t *testing.T) {
	device, in, _ := newFakeDevice()
	in.push(0x03, 0x03, CodeError)

	err := device.SniffOn(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device error 0xFF")
}

func TestSendCommandShortWrite(t *testing.T) {
	device, in, out := newFakeDevice()
	out.short = 2
	in.push(0x03, 0x03, CodeInitAck)

	err := device.Init(context.Background())
	assert.ErrorIs(t, err, ErrDevice)
	assert.Equal(t, 0, in.reads, "ack must not be read after a short write")
}

func TestSendCommandZeroByteAck(t *testing.T) {
	device, in, _ := newFakeDevice()
	in.push()

	err := device.Init(context.Background())
	assert.ErrorIs(t, err, ErrDevice)
}

func TestSendCommandShortAck(t *testing.T) {
	device, in, _ := newFakeDevice()
	in.push(0x01, 0x01)

	err := device.Init(context.Background())
	assert.True(t, IsProtocolError(err))
}

func TestSendCommandAckTimeoutIsTransportError(t *testing.T) {
	device, _, _ := newFakeDevice()

	err := device.SniffOff(context.Background())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, errTransferTimeout)
}

func TestSendCommandWriteFailure(t *testing.T) {
	device, _, out := newFakeDevice()
	out.err = gousb.ErrorIO

	err := device.Init(context.Background())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, gousb.ErrorIO)
}

func TestSendCommandDisconnected(t *testing.T) {
	device, _, out := newFakeDevice()
	out.err = gousb.ErrorNoDevice

	err := device.Init(context.Background())
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestSendCommandNotRetried(t *testing.T) {
	device, in, out := newFakeDevice()
	in.push(0x03, 0x03, CodeSniffOffAck)

	err := device.SniffOn(context.Background())
	require.Error(t, err)
	assert.Len(t, out.writes, 1)
	assert.Equal(t, 1, in.reads)
}

func TestSendCommandCancelledContext(t *testing.T) {
	device, _, out := newFakeDevice()
	out.err = errors.New("transfer cancelled")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := device.Init(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSetChannel(t *testing.T) {
	device, in, out := newFakeDevice()
	in.push(0x03, 0x03, CodeSetChannelAck)

	require.NoError(t, device.SetChannel(context.Background(), 13))
	assert.Equal(t, []byte{0x04, 0x02, 0x0D, 0xF4}, out.writes[0])

	for _, channel := range []uint8{0, 10, 27, 255} {
		err := device.SetChannel(context.Background(), channel)
		assert.ErrorIs(t, err, ErrInvalidChannel)
	}
	assert.Len(t, out.writes, 1)
}

func TestSendCommandDumpsFrames(t *testing.T) {
	device, in, _ := newFakeDevice()
	sink := &recordingSink{}
	device.SetDebugSink(sink)
	in.push(0x03, 0x03, CodeSniffOnAck)

	require.NoError(t, device.SniffOn(context.Background()))
	assert.Equal(t, []string{"command sniff-on", "ack sniff-on"}, sink.labels)
}
