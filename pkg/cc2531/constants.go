package cc2531

import "time"

// USB Device Identifiers
const (
	VendorID  = 0x0451 // Texas Instruments
	ProductID = 0x16A8 // CC2531 USB dongle, sniffer firmware
)

// USB Interface Configuration
const (
	InterfaceNumber = 0
	AltSetting      = 0
	MaxTransferSize = 256 // largest bulk read the firmware produces
)

// USB Timeouts
const (
	CommandTimeout = 250 * time.Millisecond
	ReceiveTimeout = 1000 * time.Millisecond
	DrainTimeout   = 10 * time.Millisecond
)

// Command frame layout: len(1) + code(1) + payload + checksum(1)
const (
	FrameOverhead   = 3
	MaxPayloadSize  = 255 - FrameOverhead
	ChecksumSeed    = 0xFF
	AckCodeOffset   = 2
	MinAckLength    = AckCodeOffset + 1
	RSSIOffset      = 3
	LQIOffset       = 4
	DataHeaderSize  = 5
	MinDataFrameLen = DataHeaderSize + 1 // header plus trailing checksum
)

// Firmware command codes. Commands are even; the firmware acks each with the next value.
const (
	CodeInit          = 0x00
	CodeInitAck       = 0x01
	CodeSetChannel    = 0x02
	CodeSetChannelAck = 0x03
	CodeSendPacket    = 0x04
	CodeSendPacketAck = 0x05
	CodeSniffOn       = 0x06
	CodeSniffOnAck    = 0x07
	CodeSniffOff      = 0x08
	CodeSniffOffAck   = 0x09
	CodeGotPacket     = 0x0A // unsolicited captured frame
	CodeError         = 0xFF
)

// IEEE 802.15.4 2.4 GHz channel range (page 0)
const (
	MinChannel     = 11
	MaxChannel     = 26
	DefaultChannel = 13
)
