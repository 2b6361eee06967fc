// Package client implements a thin client library: dial a server, run the
// same frame codec used on the server side, and provide typed convenience
// methods that multiplex many concurrent calls over one connection by
// request id.
package client

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roadrunner-server/errors"

	"github.com/rcache/rcache/internal/errkind"
	"github.com/rcache/rcache/pkg/frame"
	"github.com/rcache/rcache/pkg/message"
)

// Client drives one TCP connection to an rcache server, multiplexing many
// concurrent requests over it by request id.
type Client struct {
	conn net.Conn
	seq  atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan message.Message

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
	readErr   error
}

// Dial connects to addr and starts the client's background reader.
func Dial(ctx context.Context, addr string) (*Client, error) {
	const op = errors.Op("client.Dial")

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.E(op, err)
	}

	c := &Client{
		conn:    conn,
		pending: make(map[uint64]chan message.Message),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close closes the underlying connection and unblocks any in-flight call.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
		close(c.closed)
	})
	return err
}

func (c *Client) nextID() uint64 {
	// atomic.Uint64 is monotonically increasing and never reused while
	// the connection is alive, so in-flight request ids never collide.
	return c.seq.Add(1)
}

func (c *Client) readLoop() {
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 64*1024)

	for {
		n, err := c.conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			for {
				reqID, msg, consumed, derr := frame.Decode(buf)
				if derr == frame.ErrShortBuffer {
					break
				}
				if derr != nil {
					c.fail(derr)
					return
				}
				buf = buf[consumed:]
				c.deliver(reqID, msg)
			}
		}
		if err != nil {
			c.fail(err)
			return
		}
	}
}

func (c *Client) deliver(reqID uint64, msg message.Message) {
	c.mu.Lock()
	ch, ok := c.pending[reqID]
	if ok {
		delete(c.pending, reqID)
	}
	c.mu.Unlock()

	if ok {
		ch <- msg
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	c.readErr = err
	pending := c.pending
	c.pending = make(map[uint64]chan message.Message)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
}

// call sends req and waits for the response carrying the same request id.
func (c *Client) call(ctx context.Context, req message.Message) (message.Message, error) {
	const op = errors.Op("client.call")

	reqID := c.nextID()
	ch := make(chan message.Message, 1)

	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return message.Message{}, errors.E(op, err)
	}
	c.pending[reqID] = ch
	c.mu.Unlock()

	encoded, err := frame.Encode(reqID, req)
	if err != nil {
		return message.Message{}, errors.E(op, err)
	}

	c.writeMu.Lock()
	_, err = c.conn.Write(encoded)
	c.writeMu.Unlock()
	if err != nil {
		return message.Message{}, errors.E(op, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return message.Message{}, errors.E(op, errkind.Wrap(errkind.Other, "connection closed while awaiting response"))
		}
		return resp, nil
	case <-ctx.Done():
		return message.Message{}, errors.E(op, ctx.Err())
	case <-c.closed:
		return message.Message{}, errors.E(op, errkind.Wrap(errkind.Other, "client closed"))
	}
}

// Get issues a GET for key and returns the stored payload on a hit, or
// (nil, false) on a miss.
func (c *Client) Get(ctx context.Context, key []byte) (*message.Payload, bool, error) {
	const op = errors.Op("client.Get")

	resp, err := c.call(ctx, message.NewGet(key))
	if err != nil {
		return nil, false, errors.E(op, err)
	}
	switch resp.Code {
	case message.Hit:
		return resp.Payload, true, nil
	case message.Miss:
		return nil, false, nil
	case message.Error:
		return nil, false, errors.E(op, errkind.Wrap(errkind.Other, errorText(resp)))
	default:
		return nil, false, errors.E(op, errkind.Wrap(errkind.BadMessage, "unexpected response code for GET"))
	}
}

// Set stores payload under key.
func (c *Client) Set(ctx context.Context, key []byte, payload message.Payload) error {
	const op = errors.Op("client.Set")

	resp, err := c.call(ctx, message.NewSet(key, payload))
	if err != nil {
		return errors.E(op, err)
	}
	if resp.Code == message.Error {
		return errors.E(op, errkind.Wrap(errkind.Other, errorText(resp)))
	}
	return nil
}

// Del issues a DEL for key. DEL is a no-op that always returns OK; it never
// actually removes anything from the store.
func (c *Client) Del(ctx context.Context, key []byte) error {
	const op = errors.Op("client.Del")
	_, err := c.call(ctx, message.NewDel(key))
	if err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Stats returns the server's formatted stats report.
func (c *Client) Stats(ctx context.Context) (string, error) {
	const op = errors.Op("client.Stats")

	resp, err := c.call(ctx, message.NewStats())
	if err != nil {
		return "", errors.E(op, err)
	}
	if resp.Payload == nil {
		return "", errors.E(op, errkind.Wrap(errkind.BadMessage, "STATS response carried no payload"))
	}
	return string(resp.Payload.Data), nil
}

func errorText(resp message.Message) string {
	if resp.Payload == nil {
		return "unknown error"
	}
	return string(resp.Payload.Data)
}

// WithTimeout is a small convenience around context.WithTimeout for CLI
// callers that don't otherwise carry a context.
func WithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
