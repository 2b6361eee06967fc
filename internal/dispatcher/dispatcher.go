// Package dispatcher implements the per-connection framed reader/writer: it
// decodes a stream of (request_id, request) pairs, hands each to the
// service stack concurrently, and re-pairs each response with its
// originating request_id before writing it back, keeping many requests in
// flight at once on a single connection.
package dispatcher

import (
	"context"
	"errors"
	"io"
	"net"

	rrerrors "github.com/roadrunner-server/errors"
	"go.uber.org/zap"

	"github.com/rcache/rcache/internal/errkind"
	"github.com/rcache/rcache/internal/service"
	"github.com/rcache/rcache/pkg/frame"
	"github.com/rcache/rcache/pkg/message"
)

// maxInflight bounds the number of requests being serviced concurrently on
// one connection. Once saturated, the read loop blocks acquiring a slot:
// a slow writer (or a slow cache worker) throttles that connection's
// reader without affecting any other connection.
const maxInflight = 1024

// outgoingBuffer bounds how many encoded responses can be queued for the
// writer goroutine before a sender blocks.
const outgoingBuffer = 256

type reply struct {
	id  uint64
	msg message.Message
}

// Connection drives one accepted TCP connection through the service stack.
type Connection struct {
	conn net.Conn
	svc  service.Service
	log  *zap.SugaredLogger

	outgoing chan reply
	inflight chan struct{}
}

// New wraps conn for serving through svc. log should already be tagged with
// a connection identifier by the caller.
func New(conn net.Conn, svc service.Service, log *zap.SugaredLogger) *Connection {
	return &Connection{
		conn:     conn,
		svc:      svc,
		log:      log,
		outgoing: make(chan reply, outgoingBuffer),
		inflight: make(chan struct{}, maxInflight),
	}
}

// Serve runs the connection to completion: it returns when the peer closes
// the connection, an I/O error occurs, or ctx is canceled. It never panics
// the caller's goroutine on a single malformed request — only a codec-level
// framing error closes the connection.
func (c *Connection) Serve(ctx context.Context) error {
	const op = rrerrors.Op("dispatcher.Serve")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ctx)
	}()

	// conn.Read has no notion of ctx; closing the connection is what
	// unblocks it when the server shuts down or the caller cancels ctx.
	go func() {
		<-ctx.Done()
		_ = c.conn.Close()
	}()

	err := c.readLoop(ctx)

	_ = c.conn.Close()
	cancel()
	<-writerDone

	if err != nil && !errors.Is(err, io.EOF) {
		return rrerrors.E(op, err)
	}
	return nil
}

func (c *Connection) readLoop(ctx context.Context) error {
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 64*1024)

	for {
		n, err := c.conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			buf, err = c.drainFrames(ctx, buf)
			if err != nil {
				return err
			}
		}
		if err != nil {
			return err
		}
	}
}

// drainFrames decodes as many complete frames as buf currently holds and
// dispatches each one. It returns the remaining, possibly-partial tail.
func (c *Connection) drainFrames(ctx context.Context, buf []byte) ([]byte, error) {
	const op = rrerrors.Op("dispatcher.drainFrames")

	for {
		reqID, msg, consumed, err := frame.Decode(buf)
		if errors.Is(err, frame.ErrShortBuffer) {
			return compact(buf), nil
		}
		if err != nil {
			return nil, rrerrors.E(op, errkind.Wrap(errkind.InvalidData, err.Error()))
		}

		buf = buf[consumed:]
		c.dispatch(ctx, reqID, msg)
	}
}

// compact copies any remaining partial frame to the front of a fresh slice
// so the backing array doesn't grow without bound across many reads.
func compact(buf []byte) []byte {
	if len(buf) == 0 {
		return buf[:0]
	}
	out := make([]byte, len(buf), max(len(buf), 4096))
	copy(out, buf)
	return out
}

// dispatch hands one decoded request to the service stack on its own
// goroutine so slow requests don't block later ones on the same
// connection. A frame that isn't actually a request (its status byte isn't
// Req) is never handed to the service stack at all — it's rejected with an
// error response on the spot.
func (c *Connection) dispatch(ctx context.Context, reqID uint64, msg message.Message) {
	if !msg.IsRequest() {
		c.log.Debugw("rejected non-request frame", "request_id", reqID, "code", msg.Code)
		c.sendError(ctx, reqID, errkind.Wrap(errkind.BadMessage, "frame does not carry a request"))
		return
	}

	select {
	case c.inflight <- struct{}{}:
	case <-ctx.Done():
		return
	}

	go func() {
		defer func() { <-c.inflight }()

		resp, err := c.svc.Call(ctx, msg)
		if err != nil {
			c.log.Debugw("request failed", "request_id", reqID, "error", err)
			payload := message.Payload{TypeID: 0, Data: []byte(err.Error())}
			resp = message.Response(message.OpGet, message.Error, &payload)
		}

		select {
		case c.outgoing <- reply{id: reqID, msg: resp}:
		case <-ctx.Done():
		}
	}()
}

// sendError enqueues an error response for reqID without going through the
// service stack.
func (c *Connection) sendError(ctx context.Context, reqID uint64, err error) {
	payload := message.Payload{TypeID: 0, Data: []byte(err.Error())}
	resp := message.Response(message.OpGet, message.Error, &payload)
	select {
	case c.outgoing <- reply{id: reqID, msg: resp}:
	case <-ctx.Done():
	}
}

// writeLoop is the connection's only writer, serializing frames so no two
// responses are ever interleaved on the wire. It exits when ctx is
// canceled, which Serve does once the read side has stopped.
func (c *Connection) writeLoop(ctx context.Context) {
	for {
		select {
		case r := <-c.outgoing:
			encoded, err := frame.Encode(r.id, r.msg)
			if err != nil {
				c.log.Errorw("failed to encode response", "request_id", r.id, "error", err)
				continue
			}
			if _, err := c.conn.Write(encoded); err != nil {
				c.log.Debugw("failed to write response", "request_id", r.id, "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
