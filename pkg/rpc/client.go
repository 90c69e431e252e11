package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anna-project/annad/pkg/models"
)

// retryBackoffStart/Max/MaxAttempts mirror §5's client-side retry policy:
// exponential backoff starting at 50ms, doubling to <=800ms, up to 3
// attempts, for transient I/O errors on read-only methods.
const (
	retryBackoffStart = 50 * time.Millisecond
	retryBackoffMax    = 800 * time.Millisecond
	retryMaxAttempts   = 3
)

// readOnlyMethods lists the methods safe to retry/auto-reconnect on, per
// §4.11's "idempotent retry on any method whose contract says read-only".
var readOnlyMethods = map[string]bool{
	"ping": true, "health": true,
	"telemetry_snapshot": true, "telemetry_history": true, "telemetry_trend": true,
	"persona_scores": true, "get_scheduler_config": true,
	"rollback_list": true, "get_sentinel_state": true, "get_conscience_state": true,
	"recommendations": true, "check_update": true,
}

// Client is a reusable connection to the RPC Server (§4.11's client
// resilience requirements: connection reuse, single auto-reconnect on
// broken pipe, client-side retry with backoff).
type Client struct {
	path string

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Scanner
	nextID atomic.Int64
}

// Dial connects to the Unix socket at path.
func Dial(path string) (*Client, error) {
	c := &Client{path: path}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := net.Dial("unix", c.path)
	if err != nil {
		return newHandlerError(models.ErrDaemonUnavailable, err.Error())
	}
	c.conn = conn
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	c.reader = scanner
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Call performs one request/response round trip, retrying on transient I/O
// errors (read-only methods only) with the §5 backoff schedule and a
// single auto-reconnect on a detected broken pipe.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	var lastErr error
	backoff := retryBackoffStart

	for attempt := 0; attempt < retryMaxAttempts; attempt++ {
		resp, err := c.roundTrip(ctx, method, params)
		if err == nil {
			if resp.Error != nil {
				return nil, &handlerError{kind: models.ErrorKind(resp.Error.Kind), message: resp.Error.Message}
			}
			return resp.Result, nil
		}
		lastErr = err
		if !readOnlyMethods[method] {
			break
		}
		if reconnectErr := c.reconnectOnce(); reconnectErr != nil {
			lastErr = reconnectErr
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > retryBackoffMax {
			backoff = retryBackoffMax
		}
	}
	return nil, lastErr
}

// roundTrip sends one request frame and reads back one response frame,
// discarding any intermediate streaming frames (callers needing those use
// CallStream).
func (c *Client) roundTrip(ctx context.Context, method string, params any) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, newHandlerError(models.ErrConnectionFailed, "not connected")
	}

	id := c.nextID.Add(1)
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, newHandlerError(models.ErrValidationFailed, err.Error())
	}
	req := Request{ID: id, Method: method, Params: raw}

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	}

	encoder := json.NewEncoder(c.conn)
	if err := encoder.Encode(req); err != nil {
		return nil, newHandlerError(models.ErrConnectionFailed, err.Error())
	}

	for c.reader.Scan() {
		var resp Response
		if err := json.Unmarshal(c.reader.Bytes(), &resp); err != nil {
			return nil, newHandlerError(models.ErrInternal, err.Error())
		}
		if resp.ID != id {
			continue
		}
		if resp.StreamEnd {
			return &resp, nil
		}
		// Caller used Call on a streaming method; surface the first frame
		// rather than blocking forever for one that never arrives.
		return &resp, nil
	}
	if err := c.reader.Err(); err != nil {
		return nil, newHandlerError(models.ErrConnectionFailed, err.Error())
	}
	return nil, newHandlerError(models.ErrConnectionFailed, "connection closed")
}

// CallStream performs one streaming round trip, invoking onFrame for every
// frame (intermediate and final) until StreamEnd is set.
func (c *Client) CallStream(ctx context.Context, method string, params any, onFrame func(Response)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return newHandlerError(models.ErrConnectionFailed, "not connected")
	}

	id := c.nextID.Add(1)
	raw, err := json.Marshal(params)
	if err != nil {
		return newHandlerError(models.ErrValidationFailed, err.Error())
	}
	req := Request{ID: id, Method: method, Params: raw}

	encoder := json.NewEncoder(c.conn)
	if err := encoder.Encode(req); err != nil {
		return newHandlerError(models.ErrConnectionFailed, err.Error())
	}

	for c.reader.Scan() {
		var resp Response
		if err := json.Unmarshal(c.reader.Bytes(), &resp); err != nil {
			return newHandlerError(models.ErrInternal, err.Error())
		}
		if resp.ID != id {
			continue
		}
		onFrame(resp)
		if resp.StreamEnd {
			return nil
		}
	}
	if err := c.reader.Err(); err != nil {
		return newHandlerError(models.ErrConnectionFailed, err.Error())
	}
	return newHandlerError(models.ErrConnectionFailed, "connection closed before stream end")
}

// reconnectOnce implements §4.11's "single auto-reconnect on detected
// broken pipe" for read-only methods.
func (c *Client) reconnectOnce() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	return c.connect()
}
