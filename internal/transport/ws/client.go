// Package ws connects a session to a sync server over WebSocket.
//
// The client owns two goroutines. The reader decodes server frames and
// hands replication events to a Sink, which for a live session is its
// event queue; it never touches session state directly. The writer
// drains outbound call frames. Call never blocks: it reports whether the
// frame was queued, which is the session's notion of transport acceptance.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/netsync/internal/session"
	"github.com/roach88/netsync/internal/wire"
)

const (
	defaultSendBuffer   = 256
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 60 * time.Second
)

// Sink receives inbound events. session.Session satisfies it.
type Sink interface {
	Enqueue(ev session.Event) bool
}

// ResultFunc observes call_result frames.
type ResultFunc func(callID uint64, reducer string, ok bool, msg string)

// Option configures a Client.
type Option func(*Client)

// WithValidator checks every inbound frame against the frame schema
// before decoding it.
func WithValidator(v *wire.Validator) Option {
	return func(c *Client) { c.validator = v }
}

// WithSendBuffer sets how many call frames may wait for the writer.
func WithSendBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.sendBuffer = n
		}
	}
}

// WithReadTimeout sets how long the reader waits for a frame before
// treating the connection as dead.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.readTimeout = d }
}

// WithResultHandler observes call results.
func WithResultHandler(fn ResultFunc) Option {
	return func(c *Client) { c.onResult = fn }
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// Client is a WebSocket transport.
type Client struct {
	conn        *websocket.Conn
	dialer      *websocket.Dialer
	validator   *wire.Validator
	onResult    ResultFunc
	sendBuffer  int
	readTimeout time.Duration

	out    chan []byte
	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]string

	done      chan struct{}
	closeOnce sync.Once
	started   atomic.Bool
	wg        sync.WaitGroup
	errMu     sync.Mutex
	err       error
}

// Dial connects to url and starts the writer. Inbound frames are not
// read until Start is called.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{
		dialer:      websocket.DefaultDialer,
		sendBuffer:  defaultSendBuffer,
		readTimeout: defaultReadTimeout,
		pending:     make(map[uint64]string),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.out = make(chan []byte, c.sendBuffer)

	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c.conn = conn

	c.wg.Add(1)
	go c.writeLoop()
	slog.Info("transport connected", "url", url)
	return c, nil
}

// Start begins delivering inbound events to sink. It may be called once.
func (c *Client) Start(sink Sink) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("transport already started")
	}
	c.wg.Add(1)
	go c.readLoop(sink)
	return nil
}

// Call queues a call frame. It returns false when the client is closed
// or the send buffer is full.
func (c *Client) Call(reducer, argsJSON string) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	id := c.nextID.Add(1)
	data, err := wire.Encode(wire.Call(id, reducer, argsJSON))
	if err != nil {
		slog.Warn("call not encoded", "reducer", reducer, "error", err)
		return false
	}

	c.mu.Lock()
	c.pending[id] = reducer
	c.mu.Unlock()

	select {
	case c.out <- data:
		return true
	default:
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		slog.Warn("call dropped: send buffer full", "reducer", reducer, "buffer", c.sendBuffer)
		return false
	}
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close sends a close frame, shuts the connection and waits for both
// goroutines.
func (c *Client) Close() error {
	c.shutdown(nil)
	c.wg.Wait()
	return nil
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
		if err != nil {
			slog.Warn("transport closed", "error", err)
		}
	})
}

func (c *Client) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.shutdown(fmt.Errorf("write: %w", err))
				return
			}
		}
	}
}

func (c *Client) readLoop(sink Sink) {
	defer c.wg.Done()
	for {
		if c.readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.shutdown(nil)
			} else {
				c.shutdown(fmt.Errorf("read: %w", err))
			}
			return
		}

		if err := c.dispatch(sink, msg); err != nil {
			slog.Warn("frame dropped", "error", err, "bytes", len(msg))
		}
	}
}

func (c *Client) dispatch(sink Sink, msg []byte) error {
	var (
		f   wire.Frame
		err error
	)
	if c.validator != nil {
		f, err = c.validator.DecodeValid(msg)
	} else {
		f, err = wire.Decode(msg)
	}
	if err != nil {
		return err
	}

	if f.Type == wire.TypeCallResult {
		c.result(f)
		return nil
	}

	ev, ok, err := wire.ToEvent(f)
	if err != nil || !ok {
		return err
	}
	if !sink.Enqueue(ev) {
		return fmt.Errorf("session closed; %s frame for object %d discarded", f.Type, f.ObjectID)
	}
	return nil
}

func (c *Client) result(f wire.Frame) {
	c.mu.Lock()
	reducer := c.pending[f.CallID]
	delete(c.pending, f.CallID)
	c.mu.Unlock()

	ok := f.OK != nil && *f.OK
	if !ok {
		slog.Warn("call failed on server", "call_id", f.CallID, "reducer", reducer, "error", f.Error)
	}
	if c.onResult != nil {
		c.onResult(f.CallID, reducer, ok, f.Error)
	}
}
