// Package tap encodes the IEEE 802.15.4 TAP metadata header that precedes each
// captured frame (pcap link type LINKTYPE_IEEE802_15_4_TAP).
//
// Layout, little-endian:
//
//	header: version(1)=0, reserved(1)=0, length(2) = 4 + 8 * blocks
//	TLV:    type(2), length(2), value padded to 4 bytes
package tap

import (
	"encoding/binary"
	"math"
)

// TLV types
const (
	TypeRSSI              = 1
	TypeChannelAssignment = 3
	TypeLQI               = 10
)

const (
	Version    = 0
	HeaderSize = 4
	BlockSize  = 8
	// MetadataSize is the header plus the RSSI, channel and LQI blocks
	MetadataSize = HeaderSize + 3*BlockSize

	// ChannelPage is the 802.15.4 channel page of the 2.4 GHz O-QPSK band
	ChannelPage = 0
)

// AppendHeader appends the 4-byte header announcing blocks TLVs
func AppendHeader(b []byte, blocks int) []byte {
	b = append(b, Version, 0)
	return binary.LittleEndian.AppendUint16(b, uint16(HeaderSize+BlockSize*blocks))
}

// AppendRSSI appends an RSSI TLV carrying dBm as an IEEE-754 float
func AppendRSSI(b []byte, dbm float32) []byte {
	b = appendTLVHeader(b, TypeRSSI, 4)
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(dbm))
}

// AppendChannel appends a channel assignment TLV: channel(2) + page(1) + pad(1)
func AppendChannel(b []byte, channel uint16, page uint8) []byte {
	b = appendTLVHeader(b, TypeChannelAssignment, 3)
	b = binary.LittleEndian.AppendUint16(b, channel)
	return append(b, page, 0)
}

// AppendLQI appends an LQI TLV: lqi(1) + pad(3)
func AppendLQI(b []byte, lqi uint8) []byte {
	b = appendTLVHeader(b, TypeLQI, 1)
	return append(b, lqi, 0, 0, 0)
}

func appendTLVHeader(b []byte, tlvType, length uint16) []byte {
	b = binary.LittleEndian.AppendUint16(b, tlvType)
	return binary.LittleEndian.AppendUint16(b, length)
}

// EncodeMetadata returns the full TAP header: RSSI, channel assignment and LQI, in that order
func EncodeMetadata(rssi float32, lqi uint8, channel uint16) []byte {
	b := make([]byte, 0, MetadataSize)
	b = AppendHeader(b, 3)
	b = AppendRSSI(b, rssi)
	b = AppendChannel(b, channel, ChannelPage)
	return AppendLQI(b, lqi)
}

// Encapsulate prepends the metadata header to a radio payload
func Encapsulate(rssi float32, lqi uint8, channel uint16, payload []byte) []byte {
	b := make([]byte, 0, MetadataSize+len(payload))
	b = append(b, EncodeMetadata(rssi, lqi, channel)...)
	return append(b, payload...)
}
