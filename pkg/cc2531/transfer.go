package cc2531

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// inEndpoint is the part of *gousb.InEndpoint the engine uses
type inEndpoint interface {
	ReadContext(ctx context.Context, buf []byte) (int, error)
}

// outEndpoint is the part of *gousb.OutEndpoint the engine uses
type outEndpoint interface {
	WriteContext(ctx context.Context, buf []byte) (int, error)
}

var errTransferTimeout = errors.New("transfer timed out")

// readBulk performs one bulk IN transfer bounded by timeout
func (d *Device) readBulk(ctx context.Context, op string, buf []byte, timeout time.Duration) (int, error) {
	readCtx, cancel := context.WithTimeout(ctx, timeout)
	n, err := d.epIn.ReadContext(readCtx, buf)
	expired := errors.Is(readCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		return n, classifyTransferError(ctx, op, timeout, expired, err)
	}
	return n, nil
}

// writeBulk performs one bulk OUT transfer bounded by timeout
func (d *Device) writeBulk(ctx context.Context, op string, data []byte, timeout time.Duration) (int, error) {
	writeCtx, cancel := context.WithTimeout(ctx, timeout)
	n, err := d.epOut.WriteContext(writeCtx, data)
	expired := errors.Is(writeCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		return n, classifyTransferError(ctx, op, timeout, expired, err)
	}
	return n, nil
}

// classifyTransferError maps a gousb failure onto the sniffer error taxonomy.
// Cancellation of the caller's context is returned untouched.
func classifyTransferError(ctx context.Context, op string, timeout time.Duration, expired bool, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if isDisconnect(err) {
		return &TransportError{Op: op, Err: fmt.Errorf("%w: %w", ErrDisconnected, err)}
	}
	if expired || isTimeout(err) {
		return &TransportError{Op: op, Err: fmt.Errorf("%w after %v: %w", errTransferTimeout, timeout, err)}
	}
	return &TransportError{Op: op, Err: err}
}

func isTimeout(err error) bool {
	return errors.Is(err, gousb.ErrorTimeout) || errors.Is(err, gousb.TransferTimedOut)
}

func isDisconnect(err error) bool {
	return errors.Is(err, gousb.ErrorNoDevice) || errors.Is(err, gousb.TransferNoDevice)
}
