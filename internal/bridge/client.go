package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultHandshakeTimeout bounds the WebSocket opening handshake.
const DefaultHandshakeTimeout = 45 * time.Second

// Client is a Caller speaking JSON-RPC over one WebSocket connection.
//
// Thread-safety model:
//   - Call, Field, SetField, Release, Shutdown: safe from any goroutine
//   - responses are dispatched by a single reader goroutine
//   - writes are serialized by writeMu
//
// No timeout is applied to calls; callers bound them through ctx.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	nextID  atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan Response

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	err       error // set before done is closed

	metrics *Metrics
	logger  *slog.Logger
}

var _ Caller = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMetrics records call counts and latencies on m.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger used for protocol diagnostics.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Dial connects to a bridge server at url (ws://host:port/path).
func Dial(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bridge %s: %w", url, err)
	}
	return NewClient(conn, opts...), nil
}

// NewClient wraps an established connection and starts its reader.
func NewClient(conn *websocket.Conn, opts ...ClientOption) *Client {
	c := &Client{
		conn:    conn,
		pending: make(map[int64]chan Response),
		done:    make(chan struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c
}

// Call invokes a method on the target.
func (c *Client) Call(ctx context.Context, target Target, method string, args ...Value) (Value, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}
	wargs, err := EncodeAll(args)
	if err != nil {
		return nil, fmt.Errorf("invoke %s on %s: %w", method, target, err)
	}
	raw, err := c.request(ctx, MethodInvoke, InvokeParams{Target: target, Method: method, Args: wargs})
	if err != nil {
		return nil, fmt.Errorf("invoke %s on %s: %w", method, target, err)
	}
	return decodeResult(raw)
}

// Field reads a field of the target.
func (c *Client) Field(ctx context.Context, target Target, name string) (Value, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}
	raw, err := c.request(ctx, MethodFieldGet, FieldParams{Target: target, Name: name})
	if err != nil {
		return nil, fmt.Errorf("get field %s on %s: %w", name, target, err)
	}
	return decodeResult(raw)
}

// SetField writes a field of the target.
func (c *Client) SetField(ctx context.Context, target Target, name string, value Value) error {
	if err := target.validate(); err != nil {
		return err
	}
	w, err := Encode(value)
	if err != nil {
		return fmt.Errorf("set field %s on %s: %w", name, target, err)
	}
	if _, err := c.request(ctx, MethodFieldSet, FieldParams{Target: target, Name: name, Value: &w}); err != nil {
		return fmt.Errorf("set field %s on %s: %w", name, target, err)
	}
	return nil
}

// Release drops one server-side reference to id.
func (c *Client) Release(ctx context.Context, id string) error {
	if _, err := c.request(ctx, MethodRelease, ReleaseParams{Ref: id}); err != nil {
		return fmt.Errorf("release %s: %w", id, err)
	}
	return nil
}

// Shutdown asks the bridge server to terminate its JVM.
func (c *Client) Shutdown(ctx context.Context) error {
	if _, err := c.request(ctx, MethodShutdown, nil); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Done is closed once the connection is no longer usable.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection stopped, or nil while it is open.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close sends a close frame and tears down the connection.
// Safe to call multiple times.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		<-c.done
		return nil
	}

	c.writeMu.Lock()
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	c.finish(ErrClosed)
	<-c.done
	return nil
}

func (c *Client) request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	start := time.Now()
	result, err := c.roundTrip(ctx, method, params)
	c.metrics.observe(method, time.Since(start), err)
	return result, err
}

func (c *Client) roundTrip(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	var raw json.RawMessage
	if params != nil {
		var err error
		raw, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
	}

	id := c.nextID.Add(1)
	respCh := make(chan Response, 1)

	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(Request{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  raw,
	})
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respCh:
		return resultOf(resp)
	case <-c.done:
		// The response may have arrived just before the connection dropped.
		select {
		case resp := <-respCh:
			return resultOf(resp)
		default:
		}
		return nil, c.err
	}
}

// readLoop dispatches responses until the connection fails.
func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.finish(ErrClosed)
			} else {
				c.finish(fmt.Errorf("%w: %v", ErrClosed, err))
			}
			return
		}

		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Warn("bridge: discarding malformed frame", "error", err)
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		c.pendingMu.Unlock()
		if !ok {
			c.logger.Debug("bridge: response for unknown request", "id", resp.ID)
			continue
		}
		select {
		case ch <- resp:
		default:
		}
	}
}

// finish records why the connection ended and releases all waiters.
func (c *Client) finish(err error) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.err = err
		_ = c.conn.Close()
		close(c.done)
	})
}

func resultOf(resp Response) (json.RawMessage, error) {
	if resp.Error != nil {
		return nil, resp.Error.toRemoteError()
	}
	return resp.Result, nil
}

func decodeResult(raw json.RawMessage) (Value, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Null{}, nil
	}
	var w WireValue
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return Decode(w)
}

// isClosed reports whether err means the bridge connection is gone.
func isClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
