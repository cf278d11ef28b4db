// Package channel implements the single-flight command protocol spoken
// with the worker over a local socket.
//
// The worker drives the exchange: it connects, writes the result of the
// previous command (if any) and closes its write half. The connection
// then waits until a command is available, which is written as
// {"nextCommand": "..."} before the connection is closed. Exactly one
// command is in flight at any time.
package channel

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/lambda-feedback/tether/util/oneshot"
	"go.uber.org/zap"
)

var ErrListening = errors.New("channel is already listening")

// Conn is the write side of a worker connection.
type Conn interface {
	io.Writer
	CloseWrite() error
	Close() error
}

type entry struct {
	command string
	result  *oneshot.Future[Result]
}

// Channel serializes commands into one-at-a-time exchanges with the
// worker.
type Channel struct {
	mu sync.Mutex

	pending  []*entry
	inflight *entry

	// conn is the connection waiting for the next command
	conn Conn

	// reading is the connection whose payload is being read
	reading net.Conn

	listener net.Listener

	// gen is bumped on every Listen and Close, so connections of a
	// previous listener cannot leak into the current one
	gen int

	log *zap.Logger
}

func New(log *zap.Logger) *Channel {
	return &Channel{
		log: log.Named("channel"),
	}
}

// Enqueue appends command to the queue. The returned future resolves
// with the worker's result, or is abandoned if the channel is cleaned
// before the result arrives.
func (c *Channel) Enqueue(command string) *oneshot.Future[Result] {
	e := &entry{
		command: command,
		result:  oneshot.New[Result](),
	}

	c.mu.Lock()
	c.pending = append(c.pending, e)
	c.mu.Unlock()

	c.log.Debug("command queued", zap.String("command", command))

	c.dispatch()

	return e.result
}

// Clean abandons the in-flight and all pending commands without
// delivering results, and drops the waiting connection.
func (c *Channel) Clean() {
	c.mu.Lock()
	dropped := c.pending
	if c.inflight != nil {
		dropped = append([]*entry{c.inflight}, dropped...)
	}
	c.pending = nil
	c.inflight = nil
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	for _, e := range dropped {
		e.result.Abandon()
	}

	if len(dropped) > 0 {
		c.log.Debug("dropped commands", zap.Int("count", len(dropped)))
	}
}

// Requeue puts the in-flight command back at the head of the queue.
// It is used when the peer that received the command is gone without
// reporting a result, so the next connection gets it again.
func (c *Channel) Requeue() {
	c.mu.Lock()
	e := c.inflight
	if e != nil {
		c.inflight = nil
		c.pending = append([]*entry{e}, c.pending...)
	}
	c.mu.Unlock()

	if e != nil {
		c.log.Debug("command requeued", zap.String("command", e.command))
	}
}

// Listen opens a unix socket at endpoint and serves worker connections
// until Close is called. A stale socket file is removed first.
// onConnect is called for every accepted connection, before its
// payload is read.
func (c *Channel) Listen(endpoint string, onConnect func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listener != nil {
		return ErrListening
	}

	if err := removeStaleSocket(endpoint); err != nil {
		return err
	}

	listener, err := net.Listen("unix", endpoint)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", endpoint, err)
	}

	c.gen++
	c.listener = listener

	c.log.Debug("listening", zap.String("endpoint", endpoint))

	go c.serve(c.gen, listener, onConnect)

	return nil
}

// Close stops the listener and closes all connections. Queued commands
// are kept; use Clean to drop them.
func (c *Channel) Close() error {
	c.mu.Lock()
	listener := c.listener
	reading := c.reading
	conn := c.conn
	c.listener = nil
	c.reading = nil
	c.conn = nil
	c.gen++
	c.mu.Unlock()

	if reading != nil {
		reading.Close()
	}

	if conn != nil {
		conn.Close()
	}

	if listener == nil {
		return nil
	}

	if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}

func (c *Channel) serve(gen int, listener net.Listener, onConnect func()) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				c.log.Error("accept failed", zap.Error(err))
			}
			return
		}

		c.log.Debug("worker connected")

		if onConnect != nil {
			onConnect()
		}

		c.serveConn(gen, conn)
	}
}

func (c *Channel) serveConn(gen int, conn net.Conn) {
	wc, ok := conn.(Conn)
	if !ok {
		c.log.Error("connection does not support half-close")
		conn.Close()
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.reading = conn
	c.mu.Unlock()

	// the worker signals the end of its turn by closing its write half
	payload, err := io.ReadAll(conn)

	c.mu.Lock()
	if c.reading == conn {
		c.reading = nil
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("failed to read from worker", zap.Error(err))
		conn.Close()
		return
	}

	c.handle(gen, wc, payload)
}

func (c *Channel) handle(gen int, conn Conn, payload []byte) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		conn.Close()
		return
	}
	previous := c.conn
	c.conn = conn
	c.mu.Unlock()

	// the protocol has a single logical connection
	if previous != nil {
		previous.Close()
	}

	c.ingest(payload)
	c.dispatch()
}

func (c *Channel) ingest(payload []byte) {
	msg := decodeIngress(payload)

	switch {
	case msg.Empty:
		c.log.Debug("worker requests next command")

	case msg.Malformed:
		c.log.Warn("malformed payload from worker", zap.ByteString("payload", payload))
		c.retire(MalformedPayloadResult)

	case msg.Event == EventCommand:
		if msg.Result == nil {
			c.retire(FalseResult)
		} else {
			c.retire(msg.Result)
		}

	default:
		c.log.Warn("dropping unrecognized event", zap.String("event", string(msg.Event)))
	}
}

func (c *Channel) retire(result Result) {
	c.mu.Lock()
	e := c.inflight
	c.inflight = nil
	c.mu.Unlock()

	if e == nil {
		c.log.Warn("received result with no command in flight")
		return
	}

	c.log.Debug("command completed", zap.String("command", e.command))

	e.result.Resolve(result)
}

// dispatch hands the head of the queue to the waiting connection, if
// nothing is in flight.
func (c *Channel) dispatch() {
	c.mu.Lock()
	if c.inflight != nil || c.conn == nil || len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}

	e := c.pending[0]
	c.pending = c.pending[1:]
	c.inflight = e
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if err := writeCommand(conn, e.command); err != nil {
		c.log.Warn("failed to dispatch command", zap.String("command", e.command), zap.Error(err))

		// put the command back, it goes out on the next connection
		c.mu.Lock()
		if c.inflight == e {
			c.inflight = nil
			c.pending = append([]*entry{e}, c.pending...)
		}
		c.mu.Unlock()
		return
	}

	c.log.Debug("command dispatched", zap.String("command", e.command))
}

func writeCommand(conn Conn, command string) error {
	defer conn.Close()

	data, err := encodeDispatch(command)
	if err != nil {
		return err
	}

	if _, err := conn.Write(data); err != nil {
		return err
	}

	return conn.CloseWrite()
}

func removeStaleSocket(endpoint string) error {
	info, err := os.Lstat(endpoint)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat socket: %w", err)
	}

	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("refusing to replace non-socket file %s", endpoint)
	}

	if err := os.Remove(endpoint); err != nil {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	return nil
}
