package driver

import (
	"sync"
	"time"
)

// scheduler tracks the timers a connection arms, currently one reply
// timer per pending call. Owners must stop a task on every path that
// makes it moot; the registry relies on that to never leak a timer or
// let a stale callback fire against a settled call.
type scheduler struct {
	mu    sync.Mutex
	tasks map[*task]struct{}
}

// task is one armed timer. Stop is safe on fired and already-stopped
// tasks.
type task struct {
	sched *scheduler
	timer *time.Timer
}

func newScheduler() *scheduler {
	return &scheduler{tasks: make(map[*task]struct{})}
}

// after arms fn to run on its own goroutine once d elapses.
func (s *scheduler) after(d time.Duration, fn func()) *task {
	t := &task{sched: s}
	s.mu.Lock()
	s.tasks[t] = struct{}{}
	s.mu.Unlock()
	t.timer = time.AfterFunc(d, func() {
		s.remove(t)
		fn()
	})
	return t
}

func (s *scheduler) remove(t *task) {
	s.mu.Lock()
	delete(s.tasks, t)
	s.mu.Unlock()
}

// pending reports the number of armed timers. Settling every call must
// bring this back to zero.
func (s *scheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// stop cancels the task if it has not fired yet.
func (t *task) stop() {
	if t == nil {
		return
	}
	t.timer.Stop()
	t.sched.remove(t)
}
