package driver

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHeartbeat_ProbesWhileAcknowledged(t *testing.T) {
	h := newHeartbeat(40*time.Millisecond, zap.NewNop())
	defer h.stop()

	var probes atomic.Int32
	dead := make(chan struct{}, 1)
	go h.run(func() error {
		probes.Add(1)
		h.ack()
		return nil
	}, func() { dead <- struct{}{} })

	time.Sleep(220 * time.Millisecond)
	assert.GreaterOrEqual(t, probes.Load(), int32(3))
	select {
	case <-dead:
		t.Fatal("declared dead despite steady acknowledgments")
	default:
	}
}

func TestHeartbeat_DeclaresDeadWithoutAcknowledgment(t *testing.T) {
	h := newHeartbeat(40*time.Millisecond, zap.NewNop())

	var probes atomic.Int32
	dead := make(chan struct{})
	start := time.Now()
	go h.run(func() error {
		probes.Add(1)
		return nil
	}, func() { close(dead) })

	select {
	case <-dead:
	case <-time.After(2 * time.Second):
		t.Fatal("silent peer never declared dead")
	}
	elapsed := time.Since(start)

	// One interval of grace for the initial probe, a second interval for
	// the unanswered one.
	assert.GreaterOrEqual(t, elapsed, 70*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, int32(2), probes.Load())
}

func TestHeartbeat_StopEndsTheLoop(t *testing.T) {
	h := newHeartbeat(time.Hour, zap.NewNop())

	done := make(chan struct{})
	go func() {
		h.run(func() error { return nil }, func() {})
		close(done)
	}()

	h.stop()
	h.stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not return after stop")
	}
}
