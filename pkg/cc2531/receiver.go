package cc2531

import (
	"context"
	"errors"
)

// FrameState tracks where the receiver is in parsing the unsolicited frame stream
type FrameState int

const (
	AwaitingFrame FrameState = iota // ready for the next read
	Validating                      // bytes read, framing being checked
	Decoded                         // last frame decoded successfully
	Desynced                        // a malformed frame ended the stream
)

func (s FrameState) String() string {
	switch s {
	case AwaitingFrame:
		return "awaiting-frame"
	case Validating:
		return "validating"
	case Decoded:
		return "decoded"
	case Desynced:
		return "desynced"
	default:
		return "unknown"
	}
}

// Packet is one captured radio frame with the metadata the firmware attached
type Packet struct {
	RSSI    int8 // dBm
	LQI     uint8
	Payload []byte
	// Checksum is the trailing frame byte. It is carried through but not verified.
	Checksum byte
}

// FrameState returns the receiver state after the last ReceivePacket call
func (d *Device) FrameState() FrameState {
	return d.state
}

// ReceivePacket performs one blocking read and decodes a captured frame.
//
// ErrTimeout means nothing arrived in ReceiveTimeout and the caller should poll again.
// A malformed frame leaves the receiver Desynced and is returned as a ProtocolError.
// No resynchronization to the next frame boundary is attempted; callers end the session.
//
// Frame layout:
//
//	[0] = USB transfer length
//	[1] = packet length
//	[2] = command code (CodeGotPacket)
//	[3] = RSSI (signed dBm)
//	[4] = LQI
//	[..] = raw radio frame
//	[n-1] = trailing checksum
func (d *Device) ReceivePacket(ctx context.Context) (*Packet, error) {
	buffer := make([]byte, MaxTransferSize)
	n, err := d.readBulk(ctx, "read packet", buffer, ReceiveTimeout)
	if err != nil {
		// A partial transfer cannot be framed; it is dumped and discarded
		if n > 0 {
			d.dump("discarded", buffer[:n])
		}
		if errors.Is(err, errTransferTimeout) {
			d.state = AwaitingFrame
			return nil, ErrTimeout
		}
		return nil, err
	}
	buffer = buffer[:n]

	d.state = Validating
	packet, err := decodeDataFrame(buffer)
	if err != nil {
		d.state = Desynced
		if n > 0 {
			d.dump("malformed frame", buffer)
		}
		return nil, err
	}

	d.dump("frame", buffer)
	d.state = Decoded
	return packet, nil
}

// decodeDataFrame validates framing in a fixed order and extracts the packet.
// It never returns a partially decoded packet.
func decodeDataFrame(frame []byte) (*Packet, error) {
	n := len(frame)
	if n == 0 {
		return nil, protocolError("empty read")
	}
	if n < 2 {
		return nil, protocolError("short frame")
	}
	if frame[0] != frame[1] {
		return nil, protocolError("size mismatch")
	}
	if n < 3 {
		return nil, protocolError("short frame")
	}
	if frame[2] != CodeGotPacket {
		return nil, protocolErrorCode("unexpected command code", frame[2])
	}
	if n < MinDataFrameLen {
		return nil, protocolError("short frame")
	}

	payload := make([]byte, n-MinDataFrameLen)
	copy(payload, frame[DataHeaderSize:n-1])

	return &Packet{
		RSSI:     int8(frame[RSSIOffset]),
		LQI:      frame[LQIOffset],
		Payload:  payload,
		Checksum: frame[n-1],
	}, nil
}
