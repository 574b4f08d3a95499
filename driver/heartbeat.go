package driver

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// heartbeat probes the peer at a fixed interval and declares the
// connection dead when a full interval passes without an acknowledgment.
// Acknowledgments arrive asynchronously on the transport's pong path;
// they are invisible to command correlation.
type heartbeat struct {
	interval time.Duration
	logger   *zap.Logger

	ackSeen  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newHeartbeat(interval time.Duration, logger *zap.Logger) *heartbeat {
	return &heartbeat{
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// run probes until stopped or until the peer goes silent. probe sends one
// liveness probe; onDead is invoked at most once, when an interval
// elapses without an acknowledgment. Runs on its own goroutine.
func (h *heartbeat) run(probe func() error, onDead func()) {
	// Seed the flag so the peer has one full interval to answer the
	// initial probe.
	h.ackSeen.Store(true)
	if err := probe(); err != nil {
		h.logger.Debug("liveness probe failed", zap.Error(err))
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !h.ackSeen.Swap(false) {
				h.logger.Warn("no liveness acknowledgment within interval",
					zap.Duration("interval", h.interval))
				onDead()
				return
			}
			if err := probe(); err != nil {
				// A failing probe write means the transport is on its
				// way down; the read loop surfaces the fault.
				h.logger.Debug("liveness probe failed", zap.Error(err))
			}
		case <-h.stopCh:
			return
		}
	}
}

// ack records a liveness acknowledgment from the peer.
func (h *heartbeat) ack() {
	h.ackSeen.Store(true)
}

// stop halts the monitor. Safe to call more than once.
func (h *heartbeat) stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
}
