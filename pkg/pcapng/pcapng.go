// Package pcapng writes capture files in the pcapng format: one section header,
// one interface description and an enhanced packet block per captured frame.
package pcapng

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Block types
const (
	BlockSectionHeader        = 0x0A0D0D0A
	BlockInterfaceDescription = 0x00000001
	BlockEnhancedPacket       = 0x00000006
)

// Option codes
const (
	OptEndOfOpt    = 0
	OptComment     = 1
	OptSHBUserAppl = 4
	OptIfName      = 2
)

const (
	ByteOrderMagic = 0x1A2B3C4D
	VersionMajor   = 1
	VersionMinor   = 0

	// LinkTypeIEEE802154TAP is LINKTYPE_IEEE802_15_4_TAP: frames prefixed with TLV metadata
	LinkTypeIEEE802154TAP = 283
	// LinkTypeIEEE802154NoFCS is LINKTYPE_IEEE802_15_4_NOFCS: bare frames without FCS
	LinkTypeIEEE802154NoFCS = 230

	DefaultSnapLen = 0xFFFF
)

var (
	// ErrNoInterface indicates a packet was written before AddInterface
	ErrNoInterface = errors.New("no interface description written")
)

// SectionOptions are recorded in the section header
type SectionOptions struct {
	Application string
	Comment     string
}

// Writer emits a single pcapng section. It is not safe for concurrent use.
type Writer struct {
	dst     io.Writer
	w       *bufio.Writer
	snapLen uint32
	hasIf   bool
	packets uint64
}

// option is one TLV in a block's option list
type option struct {
	code  uint16
	value []byte
}

// NewWriter writes the section header block and returns a Writer.
func NewWriter(w io.Writer, opts SectionOptions) (*Writer, error) {
	pw := &Writer{dst: w, w: bufio.NewWriter(w)}

	body := make([]byte, 0, 16)
	body = binary.LittleEndian.AppendUint32(body, ByteOrderMagic)
	body = binary.LittleEndian.AppendUint16(body, VersionMajor)
	body = binary.LittleEndian.AppendUint16(body, VersionMinor)
	body = binary.LittleEndian.AppendUint64(body, 0xFFFFFFFFFFFFFFFF) // section length unknown

	var options []option
	if opts.Comment != "" {
		options = append(options, option{OptComment, []byte(opts.Comment)})
	}
	if opts.Application != "" {
		options = append(options, option{OptSHBUserAppl, []byte(opts.Application)})
	}

	if err := pw.writeBlock(BlockSectionHeader, body, options); err != nil {
		return nil, fmt.Errorf("failed to write section header: %w", err)
	}
	return pw, nil
}

// AddInterface writes the interface description every packet refers to.
// Only one interface is supported.
func (pw *Writer) AddInterface(linkType uint16, snapLen uint32, name string) error {
	if pw.hasIf {
		return fmt.Errorf("interface already described")
	}
	if snapLen == 0 {
		snapLen = DefaultSnapLen
	}

	body := make([]byte, 0, 8)
	body = binary.LittleEndian.AppendUint16(body, linkType)
	body = binary.LittleEndian.AppendUint16(body, 0)
	body = binary.LittleEndian.AppendUint32(body, snapLen)

	var options []option
	if name != "" {
		options = append(options, option{OptIfName, []byte(name)})
	}

	if err := pw.writeBlock(BlockInterfaceDescription, body, options); err != nil {
		return fmt.Errorf("failed to write interface description: %w", err)
	}
	pw.snapLen = snapLen
	pw.hasIf = true
	return nil
}

// WritePacket writes one enhanced packet block with a microsecond timestamp.
// Data longer than the snap length is truncated; the original length is kept.
func (pw *Writer) WritePacket(ts time.Time, data []byte) error {
	if !pw.hasIf {
		return ErrNoInterface
	}

	captured := data
	if uint32(len(captured)) > pw.snapLen {
		captured = captured[:pw.snapLen]
	}

	micros := uint64(ts.UnixMicro())
	body := make([]byte, 0, 20+len(captured)+3)
	body = binary.LittleEndian.AppendUint32(body, 0) // interface id
	body = binary.LittleEndian.AppendUint32(body, uint32(micros>>32))
	body = binary.LittleEndian.AppendUint32(body, uint32(micros))
	body = binary.LittleEndian.AppendUint32(body, uint32(len(captured)))
	body = binary.LittleEndian.AppendUint32(body, uint32(len(data)))
	body = append(body, captured...)
	body = append(body, make([]byte, pad4(len(captured)))...)

	if err := pw.writeBlock(BlockEnhancedPacket, body, nil); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	pw.packets++
	return nil
}

// Packets returns the number of packets written
func (pw *Writer) Packets() uint64 {
	return pw.packets
}

// Flush writes buffered blocks to the underlying writer
func (pw *Writer) Flush() error {
	return pw.w.Flush()
}

// Close flushes buffered blocks and closes the underlying writer when it is an
// io.Closer. The underlying writer is closed even if the flush fails.
func (pw *Writer) Close() error {
	flushErr := pw.w.Flush()
	if c, ok := pw.dst.(io.Closer); ok {
		return errors.Join(flushErr, c.Close())
	}
	return flushErr
}

func (pw *Writer) writeBlock(blockType uint32, body []byte, options []option) error {
	optLen := 0
	if len(options) > 0 {
		for _, o := range options {
			optLen += 4 + len(o.value) + pad4(len(o.value))
		}
		optLen += 4 // end of options
	}
	total := uint32(12 + len(body) + optLen)

	block := make([]byte, 0, total)
	block = binary.LittleEndian.AppendUint32(block, blockType)
	block = binary.LittleEndian.AppendUint32(block, total)
	block = append(block, body...)
	if len(options) > 0 {
		for _, o := range options {
			block = binary.LittleEndian.AppendUint16(block, o.code)
			block = binary.LittleEndian.AppendUint16(block, uint16(len(o.value)))
			block = append(block, o.value...)
			block = append(block, make([]byte, pad4(len(o.value)))...)
		}
		block = binary.LittleEndian.AppendUint16(block, OptEndOfOpt)
		block = binary.LittleEndian.AppendUint16(block, 0)
	}
	block = binary.LittleEndian.AppendUint32(block, total)

	_, err := pw.w.Write(block)
	return err
}

func pad4(n int) int {
	return (4 - n%4) % 4
}
