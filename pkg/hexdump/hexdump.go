// Package hexdump renders raw USB frames for debugging.
package hexdump

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Default throttle: a busy channel can deliver hundreds of frames per second
const (
	DefaultRate  = 50
	DefaultBurst = 100
)

// Sink writes canonical hex dumps to w. Dumps beyond the rate limit are
// dropped and counted.
type Sink struct {
	mu      sync.Mutex
	w       io.Writer
	limiter *rate.Limiter
	logger  *zap.Logger
	dropped uint64
}

// New returns a Sink limited to perSecond dumps with the given burst.
// A non-positive perSecond disables throttling.
func New(w io.Writer, logger *zap.Logger, perSecond float64, burst int) *Sink {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		w:       w,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Dump renders data under label. Write errors are ignored.
func (s *Sink) Dump(label string, data []byte) {
	if !s.limiter.Allow() {
		s.mu.Lock()
		s.dropped++
		dropped := s.dropped
		s.mu.Unlock()
		if dropped == 1 || dropped%1000 == 0 {
			s.logger.Debug("hex dump throttled", zap.Uint64("dropped", dropped))
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%s (%d bytes)\n%s", label, len(data), hex.Dump(data))
}

// Dropped returns how many dumps were suppressed by the rate limit
func (s *Sink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
