package cc2531

import (
	"errors"
	"fmt"
)

// Sniffer errors
var (
	// ErrDevice indicates enumeration, claim, endpoint discovery or transfer-size failures
	ErrDevice = errors.New("device error")

	// ErrProtocol is matched by every *ProtocolError
	ErrProtocol = errors.New("protocol error")

	// ErrTimeout indicates no frame arrived within the receive deadline. It is not a failure.
	ErrTimeout = errors.New("time out")

	// ErrDisconnected indicates the device went away while the session was active
	ErrDisconnected = errors.New("device disconnected")

	// ErrPayloadTooLarge indicates a command payload that does not fit in a frame
	ErrPayloadTooLarge = errors.New("command payload too large")

	// ErrInvalidChannel indicates a channel outside 11-26
	ErrInvalidChannel = errors.New("channel must be between 11 and 26")
)

// ProtocolError is a framing or content violation in a device response.
type ProtocolError struct {
	Reason string
	// Code is the offending byte, valid when HasCode is set
	Code    byte
	HasCode bool
}

func (e *ProtocolError) Error() string {
	if !e.HasCode {
		return fmt.Sprintf("protocol error: %s", e.Reason)
	}
	if e.Code == CodeError {
		return fmt.Sprintf("protocol error: %s (device error 0x%02X)", e.Reason, e.Code)
	}
	return fmt.Sprintf("protocol error: %s (0x%02X)", e.Reason, e.Code)
}

// Is reports ErrProtocol as a match so callers can test the class.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

func protocolError(reason string) error {
	return &ProtocolError{Reason: reason}
}

func protocolErrorCode(reason string, code byte) error {
	return &ProtocolError{Reason: reason, Code: code, HasCode: true}
}

// TransportError wraps a failure of the underlying USB stack.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("usb error: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsProtocolError returns true if err carries a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
