// Package cache implements a capacity-bounded, single-writer LRU store. All
// mutations — including the touch-on-read that LRU promotion requires —
// are serialized through one worker goroutine that drains a work queue of
// (request, reply channel) pairs, so the store itself never needs locking.
package cache

import (
	"container/list"
	"context"

	"github.com/roadrunner-server/errors"

	"github.com/rcache/rcache/internal/errkind"
	"github.com/rcache/rcache/pkg/message"
)

// Request pairs a decoded Message with the channel its response must be
// delivered to. Exactly one Response is sent on Reply; if the caller has
// abandoned it (e.g. the connection that submitted it dropped), the value is
// simply left unread.
type Request struct {
	Msg   message.Message
	Reply chan<- message.Message
}

type entry struct {
	key     string
	payload message.Payload
}

// Engine is the LRU store plus its single worker. Callers only ever reach
// the store through Submit; the store itself is never touched by any other
// goroutine.
type Engine struct {
	capacity int
	queue    chan Request
	done     chan struct{}

	elements map[string]*list.Element
	order    *list.List // front = most recently used
}

// New creates a cache of the given maximum entry count and starts its
// worker. capacity must be at least 1.
func New(capacity int) *Engine {
	if capacity < 1 {
		capacity = 1
	}
	e := &Engine{
		capacity: capacity,
		queue:    make(chan Request, 256),
		done:     make(chan struct{}),
		elements: make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
	go e.run()
	return e
}

// Submit enqueues req for processing by the worker. It never blocks the
// caller on the result; the response arrives asynchronously on req.Reply.
// Submit itself may block briefly if the queue is full, which is the
// back-pressure mechanism that throttles a fast producer against a
// saturated worker.
func (e *Engine) Submit(ctx context.Context, req Request) error {
	const op = errors.Op("cache.Submit")
	select {
	case e.queue <- req:
		return nil
	case <-e.done:
		return errors.E(op, errkind.Wrap(errkind.Other, "cache engine is closed"))
	case <-ctx.Done():
		return errors.E(op, ctx.Err())
	}
}

// Close stops the worker. Pending requests already in the queue are still
// processed; Close does not wait for them.
func (e *Engine) Close() {
	close(e.done)
}

// run is the single worker that owns the store. Request.Reply must be
// buffered with capacity at least 1 (service.CacheService allocates it that
// way) so this send never blocks regardless of whether
// the original caller is still waiting on it — an abandoned connection
// simply leaves the value unread.
func (e *Engine) run() {
	for {
		select {
		case req := <-e.queue:
			req.Reply <- e.handle(req.Msg)
		case <-e.done:
			for {
				select {
				case req := <-e.queue:
					req.Reply <- e.handle(req.Msg)
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) handle(m message.Message) message.Message {
	switch m.Op {
	case message.OpSet:
		return e.handleSet(m)
	case message.OpGet:
		return e.handleGet(m)
	case message.OpDel:
		return message.Response(message.OpDel, message.OK, nil)
	case message.OpStats:
		return e.handleStats()
	default:
		return errorResponse("unknown operation")
	}
}

func (e *Engine) handleSet(m message.Message) message.Message {
	if m.Payload == nil {
		return errorResponse("SET requires a payload")
	}

	key := string(m.Key)
	payload := m.Payload.Clone()

	if el, ok := e.elements[key]; ok {
		el.Value.(*entry).payload = payload
		e.order.MoveToFront(el)
		return message.Response(message.OpSet, message.OK, nil)
	}

	if e.order.Len() >= e.capacity {
		e.evictOldest()
	}

	el := e.order.PushFront(&entry{key: key, payload: payload})
	e.elements[key] = el
	return message.Response(message.OpSet, message.OK, nil)
}

func (e *Engine) handleGet(m message.Message) message.Message {
	key := string(m.Key)
	el, ok := e.elements[key]
	if !ok {
		return message.Response(message.OpGet, message.Miss, nil)
	}
	e.order.MoveToFront(el)
	payload := el.Value.(*entry).payload.Clone()
	return message.Response(message.OpGet, message.Hit, &payload)
}

func (e *Engine) handleStats() message.Message {
	payload := message.Payload{TypeID: uint32(e.order.Len())} //nolint:gosec
	return message.Response(message.OpStats, message.OK, &payload)
}

func (e *Engine) evictOldest() {
	oldest := e.order.Back()
	if oldest == nil {
		return
	}
	e.order.Remove(oldest)
	delete(e.elements, oldest.Value.(*entry).key)
}

func errorResponse(msg string) message.Message {
	payload := message.Payload{TypeID: 0, Data: []byte(msg)}
	return message.Response(message.OpGet, message.Error, &payload)
}
