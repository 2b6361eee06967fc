// Package frame implements the length-prefixed binary wire format: a fixed
// 22-byte header (request id, status, op, payload length, key length)
// followed by the key, and — when payload_data_len is greater than zero —
// a 4-byte type id and the payload bytes.
//
// The codec is a stateless transformer between a byte buffer and
// (request_id, message.Message) pairs.
package frame

import (
	"encoding/binary"

	"github.com/roadrunner-server/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/rcache/rcache/internal/errkind"
	"github.com/rcache/rcache/pkg/message"
)

// HeaderLen is the fixed size of the frame header in bytes.
const HeaderLen = 22

const typeIDLen = 4

// ErrShortBuffer signals that the buffer does not yet hold a complete
// frame; the caller should read more bytes and retry. The buffer passed to
// Decode is left untouched when this error is returned.
var ErrShortBuffer = errors.Str("frame: need more input")

var bufPool bytebufferpool.Pool

// payloadLength returns the payload_data_len field value for m: zero when m
// carries no payload or an empty one, matching the "present iff
// payload_data_len > 0" contract Decode enforces on the read side.
func payloadLength(m message.Message) uint64 {
	if m.Payload == nil {
		return 0
	}
	return uint64(len(m.Payload.Data))
}

// Size returns the total encoded length of m, including the header.
func Size(m message.Message) int {
	n := HeaderLen + len(m.Key)
	if payloadLength(m) > 0 {
		n += typeIDLen + len(m.Payload.Data)
	}
	return n
}

// Encode appends the framed encoding of (reqID, m) to the pooled buffer and
// returns the full frame bytes. The frame is built in one contiguous buffer
// before any write happens — callers write the returned slice in a single
// call so no partial frame is ever interleaved with another goroutine's
// write on the same connection.
func Encode(reqID uint64, m message.Message) ([]byte, error) {
	const op = errors.Op("frame.Encode")

	if err := message.Validate(m); err != nil {
		return nil, errors.E(op, err)
	}

	buf := bufPool.Get()
	defer bufPool.Put(buf)
	buf.Reset()

	plen := payloadLength(m)

	var hdr [HeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], reqID)
	hdr[8] = byte(m.Code)
	hdr[9] = byte(m.Op)
	binary.BigEndian.PutUint64(hdr[10:18], plen)
	binary.BigEndian.PutUint32(hdr[18:22], uint32(len(m.Key))) //nolint:gosec

	if _, err := buf.Write(hdr[:]); err != nil {
		return nil, errors.E(op, err)
	}
	if _, err := buf.Write(m.Key); err != nil {
		return nil, errors.E(op, err)
	}
	if plen > 0 {
		var tid [typeIDLen]byte
		binary.BigEndian.PutUint32(tid[:], m.Payload.TypeID)
		if _, err := buf.Write(tid[:]); err != nil {
			return nil, errors.E(op, err)
		}
		if _, err := buf.Write(m.Payload.Data); err != nil {
			return nil, errors.E(op, err)
		}
	}

	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out, nil
}

// Decode attempts to parse one (request_id, Message) frame from the front
// of buf. It returns the number of bytes consumed. When buf holds fewer
// bytes than the frame requires it returns ErrShortBuffer and consumed == 0;
// buf must be left untouched by the caller in that case so a future call
// with more appended bytes can retry.
func Decode(buf []byte) (reqID uint64, m message.Message, consumed int, err error) {
	const op = errors.Op("frame.Decode")

	if len(buf) < HeaderLen {
		return 0, message.Message{}, 0, ErrShortBuffer
	}

	codeByte := buf[8]
	opByte := buf[9]
	if !message.ValidOp(opByte) {
		return 0, message.Message{}, 0, errors.E(op, errkind.Wrap(errkind.UnknownOp, "unknown operation byte"))
	}
	if !message.ValidCode(codeByte) {
		return 0, message.Message{}, 0, errors.E(op, errkind.Wrap(errkind.InvalidData, "unknown status byte"))
	}

	payloadLen := binary.BigEndian.Uint64(buf[10:18])
	keyLen := binary.BigEndian.Uint32(buf[18:22])

	total := uint64(HeaderLen) + uint64(keyLen)
	if payloadLen > 0 {
		total += uint64(typeIDLen) + payloadLen
	}
	if total > uint64(^uint(0)>>1) {
		return 0, message.Message{}, 0, errors.E(op, errkind.Wrap(errkind.InvalidData, "frame too large"))
	}
	if uint64(len(buf)) < total {
		return 0, message.Message{}, 0, ErrShortBuffer
	}

	reqID = binary.BigEndian.Uint64(buf[0:8])

	off := HeaderLen
	var key []byte
	if keyLen > 0 {
		key = make([]byte, keyLen)
		copy(key, buf[off:off+int(keyLen)])
	}
	off += int(keyLen)

	var payload *message.Payload
	if payloadLen > 0 {
		tid := binary.BigEndian.Uint32(buf[off : off+typeIDLen])
		off += typeIDLen
		data := make([]byte, payloadLen)
		copy(data, buf[off:off+int(payloadLen)])
		off += int(payloadLen)
		payload = &message.Payload{TypeID: tid, Data: data}
	}

	// Decode only enforces wire-level validity (known op/code bytes,
	// consistent lengths). Whether a request is semantically well-formed
	// for its op — e.g. a SET with no payload — is a service-layer concern:
	// such requests decode successfully and are answered with an error
	// response rather than closing the connection.
	m = message.Message{Op: message.Op(opByte), Code: message.Code(codeByte), Key: key, Payload: payload}
	return reqID, m, off, nil
}
