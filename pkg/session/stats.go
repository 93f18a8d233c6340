package session

import (
	"math"
	"time"

	"github.com/herlein/ccsniffer/pkg/cc2531"
)

// Default smoothing parameters for the RSSI trend
const (
	DefaultSmoothThreshold = 6.0 // dB, above this a change is treated as a new transmitter
	DefaultKFast           = 0.5
	DefaultKSlow           = 0.05
)

// RSSISmoother implements adaptive exponential smoothing: large jumps are
// followed quickly, small fluctuations slowly.
type RSSISmoother struct {
	value     float64
	primed    bool
	threshold float64 // dB
	kFast     float64 // adaptation coefficient for large changes (0-1)
	kSlow     float64 // adaptation coefficient for small changes (0-1)
}

// NewRSSISmoother creates a smoother with default parameters
func NewRSSISmoother() *RSSISmoother {
	return &RSSISmoother{
		threshold: DefaultSmoothThreshold,
		kFast:     DefaultKFast,
		kSlow:     DefaultKSlow,
	}
}

// Update applies adaptive smoothing to a new sample and returns the smoothed value
func (s *RSSISmoother) Update(sample float64) float64 {
	// First value is returned as-is
	if !s.primed {
		s.value = sample
		s.primed = true
		return sample
	}

	k := s.kSlow
	if math.Abs(sample-s.value) > s.threshold {
		k = s.kFast
	}
	s.value += (sample - s.value) * k
	return s.value
}

// Value returns the current smoothed value
func (s *RSSISmoother) Value() float64 {
	return s.value
}

// Stats summarizes a capture session
type Stats struct {
	Packets      uint64
	Bytes        uint64
	MinRSSI      int8 // dBm
	MaxRSSI      int8 // dBm
	SmoothedRSSI float64
	FirstSeen    time.Time
	LastSeen     time.Time
	lqiSum       uint64
	smoother     *RSSISmoother
}

func newStats() *Stats {
	return &Stats{smoother: NewRSSISmoother()}
}

// Update folds one captured packet into the summary. The zero Stats is ready to use.
func (s *Stats) Update(packet *cc2531.Packet, at time.Time) {
	if s.smoother == nil {
		s.smoother = NewRSSISmoother()
	}
	if s.Packets == 0 {
		s.MinRSSI, s.MaxRSSI = packet.RSSI, packet.RSSI
		s.FirstSeen = at
	}
	if packet.RSSI < s.MinRSSI {
		s.MinRSSI = packet.RSSI
	}
	if packet.RSSI > s.MaxRSSI {
		s.MaxRSSI = packet.RSSI
	}
	s.Packets++
	s.Bytes += uint64(len(packet.Payload))
	s.lqiSum += uint64(packet.LQI)
	s.LastSeen = at
	s.SmoothedRSSI = s.smoother.Update(float64(packet.RSSI))
}

// MeanLQI returns the average link quality, 0 before the first packet
func (s *Stats) MeanLQI() float64 {
	if s.Packets == 0 {
		return 0
	}
	return float64(s.lqiSum) / float64(s.Packets)
}
