// Package session runs one capture: it starts the sniffer, drains frames into
// a capture writer until asked to stop, and shuts the sniffer down again.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/herlein/ccsniffer/pkg/cc2531"
	"github.com/herlein/ccsniffer/pkg/interrupt"
	"github.com/herlein/ccsniffer/pkg/metrics"
	"github.com/herlein/ccsniffer/pkg/tap"
)

// Sniffer is the protocol engine a session drives; *cc2531.Device implements it
type Sniffer interface {
	SendCommand(ctx context.Context, cmd cc2531.Command, payload []byte) error
	ReceivePacket(ctx context.Context) (*cc2531.Packet, error)
}

// PacketWriter receives metadata-prefixed frames; *pcapng.Writer implements it
type PacketWriter interface {
	WritePacket(ts time.Time, data []byte) error
}

// Options configure a Session
type Options struct {
	Channel uint8
	Logger  *zap.Logger
	Metrics *metrics.CaptureMetrics
	// Now stamps captured frames; defaults to time.Now
	Now func() time.Time
}

// Session owns the sniffer for the duration of one capture
type Session struct {
	sniffer  Sniffer
	writer   PacketWriter
	channel  uint8
	logger   *zap.Logger
	metrics  *metrics.CaptureMetrics
	now      func() time.Time
	sniffing atomic.Bool

	mu    sync.Mutex
	stats *Stats
}

// New creates a session; nothing is sent to the device until Start
func New(sniffer Sniffer, writer PacketWriter, opts Options) *Session {
	s := &Session{
		sniffer: sniffer,
		writer:  writer,
		channel: opts.Channel,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
		stats:   newStats(),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewCaptureMetrics(nil)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Session) command(ctx context.Context, cmd cc2531.Command, payload []byte) error {
	err := s.sniffer.SendCommand(ctx, cmd, payload)
	s.metrics.ObserveCommand(cmd.Name, err)
	if err != nil {
		s.countProtocolError(err)
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	s.logger.Info("command acknowledged", zap.Stringer("command", cmd))
	return nil
}

func (s *Session) countProtocolError(err error) {
	var pe *cc2531.ProtocolError
	if errors.As(err, &pe) {
		s.metrics.ProtocolErrors.WithLabelValues(pe.Reason).Inc()
	}
}

// Start initializes the firmware, tunes the channel and enables sniffing
func (s *Session) Start(ctx context.Context) error {
	if s.channel < cc2531.MinChannel || s.channel > cc2531.MaxChannel {
		return fmt.Errorf("%w: %d", cc2531.ErrInvalidChannel, s.channel)
	}

	if err := s.command(ctx, cc2531.CmdInit, nil); err != nil {
		return err
	}
	if err := s.command(ctx, cc2531.CmdSetChannel, []byte{s.channel}); err != nil {
		return err
	}
	if err := s.command(ctx, cc2531.CmdSniffOn, nil); err != nil {
		return err
	}

	s.sniffing.Store(true)
	s.metrics.Sniffing.Set(1)
	s.logger.Info("sniffing", zap.Uint8("channel", s.channel))
	return nil
}

// Run receives frames until the token is stopped, ctx ends or a receive fails.
// Timeouts keep the loop polling; every other error ends it. A stop request is
// noticed at the latest one receive timeout later.
func (s *Session) Run(ctx context.Context, token *interrupt.Token) error {
	for {
		if token.Stopped() {
			s.logger.Info("stop requested", zap.Stringer("state", token.State()))
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		packet, err := s.sniffer.ReceivePacket(ctx)
		if err != nil {
			if errors.Is(err, cc2531.ErrTimeout) {
				s.metrics.ReceiveTimeouts.Inc()
				continue
			}
			s.countProtocolError(err)
			return fmt.Errorf("receive: %w", err)
		}

		if err := s.handle(packet); err != nil {
			return err
		}
	}
}

func (s *Session) handle(packet *cc2531.Packet) error {
	at := s.now()
	data := tap.Encapsulate(float32(packet.RSSI), packet.LQI, uint16(s.channel), packet.Payload)
	if err := s.writer.WritePacket(at, data); err != nil {
		return fmt.Errorf("write capture: %w", err)
	}

	s.metrics.ObservePacket(packet.RSSI, packet.LQI, len(packet.Payload))
	s.mu.Lock()
	s.stats.Update(packet, at)
	s.mu.Unlock()

	if ce := s.logger.Check(zap.DebugLevel, "frame captured"); ce != nil {
		ce.Write(
			zap.Int8("rssi", packet.RSSI),
			zap.Uint8("lqi", packet.LQI),
			zap.Int("length", len(packet.Payload)),
		)
	}
	return nil
}

// Stop disables sniffing
func (s *Session) Stop(ctx context.Context) error {
	s.sniffing.Store(false)
	s.metrics.Sniffing.Set(0)
	return s.command(ctx, cc2531.CmdSniffOff, nil)
}

// Capture runs Start, Run and Stop. SniffOff is sent after any loop exit unless
// the device disconnected; it is sent even when ctx was cancelled.
func (s *Session) Capture(ctx context.Context, token *interrupt.Token) error {
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	runErr := s.Run(ctx, token)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		s.logger.Error("capture loop failed", zap.Error(runErr))
	}

	if errors.Is(runErr, cc2531.ErrDisconnected) {
		s.sniffing.Store(false)
		s.metrics.Sniffing.Set(0)
		s.logSummary()
		return runErr
	}

	stopErr := s.Stop(context.WithoutCancel(ctx))
	s.logSummary()

	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return errors.Join(runErr, stopErr)
}

func (s *Session) logSummary() {
	stats := s.Stats()
	s.logger.Info(fmt.Sprintf("captured %d packets", stats.Packets),
		zap.Uint64("bytes", stats.Bytes),
		zap.Int8("min_rssi", stats.MinRSSI),
		zap.Int8("max_rssi", stats.MaxRSSI),
		zap.Float64("smoothed_rssi", stats.SmoothedRSSI),
		zap.Float64("mean_lqi", stats.MeanLQI()),
	)
}

// Sniffing reports whether the device is delivering frames
func (s *Session) Sniffing() bool {
	return s.sniffing.Load()
}

// Stats returns a snapshot of the capture statistics
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := *s.stats
	snapshot.smoother = nil
	return snapshot
}
