// Package httpserver serves health, capture statistics and metrics while a capture runs.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/herlein/ccsniffer/pkg/session"
)

// CaptureStatus reports on the running capture; *session.Session implements it
type CaptureStatus interface {
	Sniffing() bool
	Stats() session.Stats
}

// Server wraps the gin engine and its http.Server
type Server struct {
	srv    *http.Server
	status CaptureStatus
}

// statsResponse is the /stats body. Timestamps are omitted before the first frame.
type statsResponse struct {
	Sniffing     bool       `json:"sniffing"`
	Packets      uint64     `json:"packets"`
	Bytes        uint64     `json:"bytes"`
	MinRSSI      int8       `json:"min_rssi_dbm"`
	MaxRSSI      int8       `json:"max_rssi_dbm"`
	SmoothedRSSI float64    `json:"smoothed_rssi_dbm"`
	MeanLQI      float64    `json:"mean_lqi"`
	FirstSeen    *time.Time `json:"first_seen,omitempty"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`
}

// New builds the router: /healthz, /readyz (ready while sniffing), /stats and the metrics path.
// A nil status makes /readyz always ready and /stats unavailable.
func New(addr string, metricsPath string, metricsHandler http.Handler, status CaptureStatus) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{status: status}

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", s.readyz)
	r.GET("/stats", s.stats)
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if metricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(metricsHandler))
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) readyz(c *gin.Context) {
	if s.status == nil || s.status.Sniffing() {
		c.String(http.StatusOK, "ready")
		return
	}
	c.String(http.StatusServiceUnavailable, "not-ready")
}

func (s *Server) stats(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no capture"})
		return
	}

	stats := s.status.Stats()
	resp := statsResponse{
		Sniffing:     s.status.Sniffing(),
		Packets:      stats.Packets,
		Bytes:        stats.Bytes,
		MinRSSI:      stats.MinRSSI,
		MaxRSSI:      stats.MaxRSSI,
		SmoothedRSSI: stats.SmoothedRSSI,
		MeanLQI:      stats.MeanLQI(),
	}
	if stats.Packets > 0 {
		resp.FirstSeen = &stats.FirstSeen
		resp.LastSeen = &stats.LastSeen
	}
	c.JSON(http.StatusOK, resp)
}

// Start serves until Shutdown; a clean shutdown returns nil
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
