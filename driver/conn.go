// Package driver is the client-side connection layer for a browsergrid
// session endpoint: one persistent WebSocket turned into a strict
// request/response channel with FIFO reply correlation, per-call
// timeouts, a liveness heartbeat, and exactly-once settlement of every
// in-flight call when the connection dies.
package driver

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/browsergrid/pilot/wire"
)

// ConnState is the connection lifecycle state. The walk is
// idle → connecting → open → closing → closed; faults jump straight to
// closed, and a closed connection may connect again.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// writeWait bounds writes of control frames.
const writeWait = 10 * time.Second

// Conn owns one WebSocket connection and multiplexes request/response
// pairs over it. The socket and the pending-call registry belong
// exclusively to the Conn; nothing else writes the socket or settles
// calls.
type Conn struct {
	settings  Settings
	logger    *zap.Logger
	dialer    *websocket.Dialer
	sessionID string

	mu       sync.Mutex
	state    ConnState
	ws       *websocket.Conn
	hb       *heartbeat
	readDone chan struct{} // closed when the read loop exits

	writeMu sync.Mutex // serializes data frame writes

	sched *scheduler
	calls *callRegistry
}

// NewConn validates settings, applies the documented defaults, and
// returns an unopened connection manager. An endpoint scheme other than
// ws or wss fails here, before any dial happens.
func NewConn(settings Settings, opts ...Option) (*Conn, error) {
	settings = settings.WithDefaults()
	if err := settings.validate(); err != nil {
		return nil, err
	}

	c := &Conn{
		settings:  settings,
		logger:    zap.NewNop(),
		dialer:    websocket.DefaultDialer,
		sessionID: uuid.NewString(),
		state:     StateIdle,
		sched:     newScheduler(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("session_id", c.sessionID))
	c.calls = newCallRegistry(c.logger, c.sched)
	return c, nil
}

// State reports the current lifecycle state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID is the generated identifier this connection logs under.
func (c *Conn) SessionID() string {
	return c.sessionID
}

// Connect opens the transport and blocks until the connection is open or
// the attempt has failed. On failure the state is closed and the error is
// a *ConnectionFailedError. Connecting an already-open or connecting
// manager is a no-op; a single Conn never holds two live sockets.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch state := c.state; state {
	case StateOpen, StateConnecting:
		c.mu.Unlock()
		c.logger.Debug("connect skipped", zap.Stringer("state", state))
		return nil
	case StateClosing:
		c.mu.Unlock()
		return &ConnectionFailedError{URL: c.settings.URL, Err: errors.New("connection is closing")}
	}
	c.state = StateConnecting
	c.mu.Unlock()

	header := http.Header{}
	if c.settings.BearerToken != "" {
		header.Set("Authorization", "Bearer "+c.settings.BearerToken)
	}

	c.logger.Info("dialing", zap.String("url", c.settings.URL))
	ws, resp, err := c.dialer.DialContext(ctx, c.settings.URL, header)
	if err != nil {
		status := ""
		if resp != nil {
			status = resp.Status
		}
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		c.logger.Error("dial failed", zap.Error(err), zap.String("status", status))
		return &ConnectionFailedError{URL: c.settings.URL, Err: err}
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Closed out from under us while the dial was in flight.
		c.mu.Unlock()
		_ = ws.Close()
		return &ConnectionFailedError{URL: c.settings.URL, Err: ErrConnectionClosed}
	}
	c.state = StateOpen
	c.ws = ws
	c.hb = newHeartbeat(c.settings.HeartbeatInterval, c.logger)
	c.readDone = make(chan struct{})
	hb, readDone := c.hb, c.readDone
	c.mu.Unlock()

	ws.SetReadLimit(c.settings.MaxMessageBytes)
	ws.SetPongHandler(func(string) error {
		hb.ack()
		return nil
	})

	go c.readLoop(ws, readDone)
	go hb.run(
		func() error {
			return ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		},
		func() {
			c.fault(&ConnectionError{Err: errors.New("liveness probe unacknowledged")})
		},
	)

	c.logger.Info("connection open")
	return nil
}

// Send transmits cmd and blocks until its reply arrives, its timeout
// fires, or a connection fault settles it. Exactly one of those outcomes
// is delivered per call. A command without its own timeout gets the
// settings default for its verb class.
//
// Replies settle calls in strict FIFO order (see callRegistry); callers
// must let one Send settle before issuing the next.
//
// If ctx expires first, Send returns ctx.Err() but the call itself stays
// registered until reply, timeout, or fault settles it, so an abandoned
// wait cannot shift later replies onto the wrong calls.
func (c *Conn) Send(ctx context.Context, cmd *wire.Command) (*wire.Result, error) {
	data, err := wire.EncodeCommand(cmd)
	if err != nil {
		return nil, err
	}
	timeout := cmd.Timeout
	if timeout <= 0 {
		if cmd.Action == wire.ActionNavigate {
			timeout = c.settings.NavigateTimeout
		} else {
			timeout = c.settings.CommandTimeout
		}
	}

	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	ws := c.ws
	call := c.calls.register(cmd.Action, timeout)
	c.mu.Unlock()

	c.logger.Debug("sending command",
		zap.String("call_id", call.id),
		zap.Uint64("seq", call.seq),
		zap.String("action", string(cmd.Action)),
		zap.Duration("timeout", timeout))

	c.writeMu.Lock()
	werr := ws.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if werr != nil {
		// A failed write means the transport is gone. The fault path
		// settles this call along with every other pending one, so the
		// outcome still arrives exactly once through the call.
		c.fault(&ConnectionError{Err: werr})
	}

	select {
	case out := <-call.done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the connection down. When open, it sends a close frame,
// waits up to CloseGrace for the peer to acknowledge, and forces the
// transport shut if the grace elapses first. Entering closed always
// rejects every remaining pending call with ErrConnectionClosed and
// stops the heartbeat. Closing an already-closed manager is a no-op;
// closing one that was never connected is ErrNotConnected.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateIdle:
		c.mu.Unlock()
		return ErrNotConnected
	case StateClosed, StateClosing:
		c.mu.Unlock()
		c.logger.Debug("close skipped, already closed or closing")
		return nil
	case StateConnecting:
		// The dial in flight will observe this and discard its socket.
		c.state = StateClosed
		c.mu.Unlock()
		c.calls.rejectAll(ErrConnectionClosed)
		c.logger.Info("connection closed during connect")
		return nil
	}
	c.state = StateClosing
	ws, hb, readDone := c.ws, c.hb, c.readDone
	c.mu.Unlock()

	c.logger.Info("closing connection", zap.Duration("grace", c.settings.CloseGrace))
	hb.stop()

	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		c.logger.Debug("close frame write failed", zap.Error(err))
	}

	// The read loop exits when the peer answers with its own close frame
	// or the transport drops; that is the acknowledgment.
	graceful := true
	select {
	case <-readDone:
	case <-time.After(c.settings.CloseGrace):
		graceful = false
	case <-ctx.Done():
		graceful = false
	}

	c.mu.Lock()
	c.state = StateClosed
	c.ws, c.hb, c.readDone = nil, nil, nil
	c.mu.Unlock()

	_ = ws.Close()
	if !graceful {
		c.logger.Warn("close grace elapsed, forcing termination")
	}
	c.calls.rejectAll(ErrConnectionClosed)
	c.logger.Info("connection closed", zap.Bool("graceful", graceful))
	return nil
}

// readLoop is the single reader. Every inbound data frame settles the
// oldest pending call; read errors route to the fault path. Pongs never
// appear here, they go through the pong handler.
func (c *Conn) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		res, derr := wire.DecodeResult(data)
		if derr != nil {
			c.logger.Warn("dropping undecodable frame",
				zap.Error(derr),
				zap.Int("bytes", len(data)))
			continue
		}
		if !c.calls.resolveOldest(res) {
			// Anomalous under the protocol contract, but not fatal.
			c.logger.Warn("reply arrived with no pending call")
		}
	}
}

// handleReadError classifies a read failure. During an orderly close the
// closing path owns teardown and this is just the expected loop exit;
// otherwise a received close frame means the peer hung up and anything
// else is a transport fault. An abnormal-closure code is synthesized
// locally when the transport drops without a close frame, so it belongs
// to the fault branch, not the peer-close one.
func (c *Conn) handleReadError(err error) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state == StateClosing || state == StateClosed {
		c.logger.Debug("read loop ended during shutdown", zap.Error(err))
		return
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
		c.logger.Warn("peer closed connection", zap.Error(err))
		c.fault(ErrConnectionClosed)
		return
	}
	c.logger.Error("transport error", zap.Error(err))
	c.fault(&ConnectionError{Err: err})
}

// fault force-terminates the connection: state goes straight to closed,
// the heartbeat stops, the socket is torn down, and every pending call is
// rejected with err. Calls already settled by replies are untouched, and
// a fault racing an orderly close loses to whichever got there first.
func (c *Conn) fault(err error) {
	c.mu.Lock()
	if c.state == StateClosed || c.state == StateClosing {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	ws, hb := c.ws, c.hb
	c.ws, c.hb, c.readDone = nil, nil, nil
	c.mu.Unlock()

	if hb != nil {
		hb.stop()
	}
	if ws != nil {
		_ = ws.Close()
	}
	c.calls.rejectAll(err)
	c.logger.Info("connection closed on fault", zap.Error(err))
}
