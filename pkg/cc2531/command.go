package cc2531

import (
	"context"
	"fmt"
)

// Command is a firmware command together with the acknowledgement code the
// firmware answers it with.
type Command struct {
	Name string
	Code byte
	Ack  byte
}

func (c Command) String() string {
	return c.Name
}

// Commands understood by the sniffer firmware
var (
	CmdInit       = Command{Name: "init", Code: CodeInit, Ack: CodeInitAck}
	CmdSetChannel = Command{Name: "set-channel", Code: CodeSetChannel, Ack: CodeSetChannelAck}
	CmdSendPacket = Command{Name: "send-packet", Code: CodeSendPacket, Ack: CodeSendPacketAck}
	CmdSniffOn    = Command{Name: "sniff-on", Code: CodeSniffOn, Ack: CodeSniffOnAck}
	CmdSniffOff   = Command{Name: "sniff-off", Code: CodeSniffOff, Ack: CodeSniffOffAck}
)

// Checksum folds data into the firmware's XOR checksum, seeded with 0xFF.
// The seed and byte order are fixed by the firmware.
func Checksum(data []byte) byte {
	var checksum byte = ChecksumSeed
	for _, b := range data {
		checksum ^= b
	}
	return checksum
}

// BuildCommandFrame returns len(1) + code(1) + payload + checksum(1)
func BuildCommandFrame(code byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	frame := make([]byte, FrameOverhead+len(payload))
	frame[0] = byte(len(frame))
	frame[1] = code
	copy(frame[2:], payload)
	frame[len(frame)-1] = Checksum(frame[:len(frame)-1])
	return frame, nil
}

// SendCommand writes one command frame and validates the acknowledgement.
// The command is sent once; nothing is retried.
func (d *Device) SendCommand(ctx context.Context, cmd Command, payload []byte) error {
	frame, err := BuildCommandFrame(cmd.Code, payload)
	if err != nil {
		return err
	}

	d.dump("command "+cmd.Name, frame)

	n, err := d.writeBulk(ctx, "write "+cmd.Name, frame, CommandTimeout)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return fmt.Errorf("%w: short write: wrote %d of %d bytes", ErrDevice, n, len(frame))
	}

	response := make([]byte, MaxTransferSize)
	n, err = d.readBulk(ctx, "read "+cmd.Name+" ack", response, CommandTimeout)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: no bytes read for %s acknowledgement", ErrDevice, cmd.Name)
	}
	response = response[:n]

	d.dump("ack "+cmd.Name, response)

	if n < MinAckLength {
		return protocolError(fmt.Sprintf("short %s acknowledgement: %d bytes", cmd.Name, n))
	}
	if response[AckCodeOffset] != cmd.Ack {
		return protocolErrorCode("unexpected response code", response[AckCodeOffset])
	}

	return nil
}

// Init resets the sniffer firmware
func (d *Device) Init(ctx context.Context) error {
	return d.SendCommand(ctx, CmdInit, nil)
}

// SetChannel tunes the radio to an IEEE 802.15.4 channel (11-26)
func (d *Device) SetChannel(ctx context.Context, channel uint8) error {
	if channel < MinChannel || channel > MaxChannel {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	return d.SendCommand(ctx, CmdSetChannel, []byte{channel})
}

// SniffOn starts unsolicited frame delivery
func (d *Device) SniffOn(ctx context.Context) error {
	return d.SendCommand(ctx, CmdSniffOn, nil)
}

// SniffOff stops unsolicited frame delivery
func (d *Device) SniffOff(ctx context.Context) error {
	return d.SendCommand(ctx, CmdSniffOff, nil)
}
