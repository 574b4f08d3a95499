package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunsCallbackAfterDelay(t *testing.T) {
	s := newScheduler()

	fired := make(chan struct{})
	s.after(20*time.Millisecond, func() { close(fired) })
	assert.Equal(t, 1, s.pending())

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}
	assert.Zero(t, s.pending())
}

func TestScheduler_StopPreventsExecution(t *testing.T) {
	s := newScheduler()

	fired := make(chan struct{}, 1)
	tk := s.after(30*time.Millisecond, func() { fired <- struct{}{} })
	tk.stop()
	assert.Zero(t, s.pending())

	select {
	case <-fired:
		t.Fatal("stopped task fired anyway")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScheduler_StopToleratesNilAndRepeats(t *testing.T) {
	s := newScheduler()

	var nilTask *task
	nilTask.stop()

	tk := s.after(time.Hour, func() {})
	tk.stop()
	tk.stop()
	assert.Zero(t, s.pending())
}
