// Package message defines the tagged request/response value that flows
// between the wire codec, the dispatcher and the cache engine.
package message

import (
	"github.com/roadrunner-server/errors"
)

// Op identifies the cache operation carried by a Message.
type Op byte

const (
	OpSet Op = iota
	OpGet
	OpDel
	OpStats
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "SET"
	case OpGet:
		return "GET"
	case OpDel:
		return "DEL"
	case OpStats:
		return "STATS"
	default:
		return "UNKNOWN"
	}
}

// ValidOp reports whether b is one of the fixed operation assignments.
func ValidOp(b byte) bool {
	return b <= byte(OpStats)
}

// Code is the response status; Req is the sentinel carried by requests.
type Code byte

const (
	Req Code = iota
	OK
	Miss
	Error
	Hit
)

func (c Code) String() string {
	switch c {
	case Req:
		return "REQ"
	case OK:
		return "OK"
	case Miss:
		return "MISS"
	case Error:
		return "ERROR"
	case Hit:
		return "HIT"
	default:
		return "UNKNOWN"
	}
}

// ValidCode reports whether b is one of the fixed status assignments.
func ValidCode(b byte) bool {
	return b <= byte(Hit)
}

// TypeText is the reserved type_id convention meaning "data is UTF-8 text".
const TypeText uint32 = 1

// Payload is an opaque, type-tagged byte blob. TypeID is never interpreted
// by the cache engine; it is stored and returned verbatim.
type Payload struct {
	TypeID uint32
	Data   []byte
}

// Clone returns a deep copy so a stored entry can be handed to a caller
// without aliasing the store's own buffer.
func (p Payload) Clone() Payload {
	if p.Data == nil {
		return Payload{TypeID: p.TypeID}
	}
	cp := make([]byte, len(p.Data))
	copy(cp, p.Data)
	return Payload{TypeID: p.TypeID, Data: cp}
}

// Message is a tagged union: exactly one of Request or Response semantics
// applies, selected by Code == Req on the wire.
type Message struct {
	Op      Op
	Code    Code // Req for requests, one of OK/Miss/Error/Hit for responses
	Key     []byte
	Payload *Payload // nil when absent
}

// IsRequest reports whether m represents a request (Code == Req).
func (m Message) IsRequest() bool {
	return m.Code == Req
}

// NewSet builds a SET request carrying payload under key.
func NewSet(key []byte, payload Payload) Message {
	return Message{Op: OpSet, Code: Req, Key: key, Payload: &payload}
}

// NewGet builds a GET request for key.
func NewGet(key []byte) Message {
	return Message{Op: OpGet, Code: Req, Key: key}
}

// NewDel builds a DEL request for key.
func NewDel(key []byte) Message {
	return Message{Op: OpDel, Code: Req, Key: key}
}

// NewStats builds a STATS request (key is empty and ignored).
func NewStats() Message {
	return Message{Op: OpStats, Code: Req}
}

// Response builds a response Message of op/code, optionally carrying payload.
func Response(op Op, code Code, payload *Payload) Message {
	if code == Req {
		panic("message: response code must not be Req")
	}
	return Message{Op: op, Code: code, Payload: payload}
}

// Validate enforces the request-shape invariants for each op: only SET
// carries a payload, and key is non-empty except for STATS.
func Validate(m Message) error {
	const op = errors.Op("message.Validate")

	if !m.IsRequest() {
		return nil
	}

	switch m.Op {
	case OpStats:
		if len(m.Key) != 0 {
			return errors.E(op, errors.Str("STATS requests must not carry a key"))
		}
		if m.Payload != nil {
			return errors.E(op, errors.Str("STATS requests must not carry a payload"))
		}
	case OpSet:
		if len(m.Key) == 0 {
			return errors.E(op, errors.Str("SET requires a non-empty key"))
		}
		if m.Payload == nil {
			return errors.E(op, errors.Str("SET requires a payload"))
		}
	case OpGet, OpDel:
		if len(m.Key) == 0 {
			return errors.E(op, errors.Str("GET/DEL require a non-empty key"))
		}
		if m.Payload != nil {
			return errors.E(op, errors.Str("GET/DEL must not carry a payload"))
		}
	default:
		return errors.E(op, errors.Str("unknown operation"))
	}
	return nil
}
