package driver

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/browsergrid/pilot/wire"
)

// callState tracks the exactly-once settlement of one pending call.
type callState int

const (
	callPending callState = iota
	callResolved
	callRejected
)

// callOutcome is what a settled call delivers to its waiting sender.
// Exactly one of result and err is set.
type callOutcome struct {
	result *wire.Result
	err    error
}

// pendingCall is the bookkeeping record for one in-flight request
// awaiting exactly one reply. The id is a generated identifier for logs
// and diagnostics only; the wire format cannot carry it, which is why
// replies are matched by send order instead.
type pendingCall struct {
	id     string
	seq    uint64
	action wire.Action
	state  callState // guarded by the registry mutex
	timer  *task     // stopped on every settlement path
	done   chan callOutcome
}

// callRegistry tracks in-flight calls in send order and settles each one
// exactly once. Three paths compete to settle a call: the matching reply,
// the call's own reply timer, and a connection-level fault. Whichever
// path observes state == callPending first under the mutex wins; the
// others see a settled call and do nothing.
type callRegistry struct {
	logger *zap.Logger
	sched  *scheduler

	mu      sync.Mutex
	calls   []*pendingCall // pending only, FIFO by seq
	nextSeq uint64
}

func newCallRegistry(logger *zap.Logger, sched *scheduler) *callRegistry {
	return &callRegistry{logger: logger, sched: sched}
}

// register files a new call and arms its reply timer. The timer settles
// the call with CommandTimeoutError if it is still pending at expiry.
func (r *callRegistry) register(action wire.Action, timeout time.Duration) *pendingCall {
	c := &pendingCall{
		id:     uuid.NewString(),
		action: action,
		done:   make(chan callOutcome, 1),
	}
	r.mu.Lock()
	r.nextSeq++
	c.seq = r.nextSeq
	r.calls = append(r.calls, c)
	c.timer = r.sched.after(timeout, func() {
		r.timeout(c, timeout)
	})
	r.mu.Unlock()
	return c
}

// resolveOldest settles the oldest still-pending call with res.
//
// Inbound replies carry no correlation identifier, so the oldest pending
// call claims the next reply. That is only sound under the server
// contract of exactly one reply per request, delivered in request order,
// with no unsolicited data messages; two calls in flight at once could be
// misattributed if the peer ever answered out of order. Callers are
// expected to finish one call before sending the next.
//
// Returns false when nothing was pending, which makes the inbound frame a
// protocol anomaly for the caller to log.
func (r *callRegistry) resolveOldest(res *wire.Result) bool {
	r.mu.Lock()
	if len(r.calls) == 0 {
		r.mu.Unlock()
		return false
	}
	c := r.calls[0]
	r.calls = r.calls[1:]
	c.state = callResolved
	c.timer.stop()
	r.mu.Unlock()

	r.logger.Debug("call resolved",
		zap.String("call_id", c.id),
		zap.Uint64("seq", c.seq),
		zap.String("action", string(c.action)))
	c.done <- callOutcome{result: res}
	return true
}

// cancel settles c with err if it is still pending and reports whether
// this invocation performed the settlement. Late timers and duplicate
// fault paths get false and must not touch the call again.
func (r *callRegistry) cancel(c *pendingCall, err error) bool {
	r.mu.Lock()
	if c.state != callPending {
		r.mu.Unlock()
		return false
	}
	c.state = callRejected
	c.timer.stop()
	r.removeLocked(c)
	r.mu.Unlock()

	c.done <- callOutcome{err: err}
	return true
}

// rejectAll settles every still-pending call with err. Used when the
// connection closes or faults; the registry is empty afterwards.
func (r *callRegistry) rejectAll(err error) {
	r.mu.Lock()
	calls := r.calls
	r.calls = nil
	for _, c := range calls {
		c.state = callRejected
		c.timer.stop()
	}
	r.mu.Unlock()

	for _, c := range calls {
		c.done <- callOutcome{err: err}
	}
	if len(calls) > 0 {
		r.logger.Debug("rejected pending calls",
			zap.Int("count", len(calls)),
			zap.Error(err))
	}
}

// pendingCount reports how many calls are awaiting settlement.
func (r *callRegistry) pendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *callRegistry) removeLocked(c *pendingCall) {
	for i, candidate := range r.calls {
		if candidate == c {
			r.calls = append(r.calls[:i], r.calls[i+1:]...)
			return
		}
	}
}

func (r *callRegistry) timeout(c *pendingCall, timeout time.Duration) {
	err := &CommandTimeoutError{Action: c.action, Timeout: timeout}
	if r.cancel(c, err) {
		r.logger.Warn("call timed out",
			zap.String("call_id", c.id),
			zap.Uint64("seq", c.seq),
			zap.String("action", string(c.action)),
			zap.Duration("timeout", timeout))
	}
}
