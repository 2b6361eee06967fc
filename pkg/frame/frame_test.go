package frame

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rcache/rcache/pkg/message"
)

func TestRoundTrip_SetRequest(t *testing.T) {
	m := message.NewSet([]byte("foo"), message.Payload{TypeID: message.TypeText, Data: []byte("bar")})

	encoded, err := Encode(42, m)
	require.NoError(t, err)

	reqID, decoded, consumed, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, uint64(42), reqID)
	require.Equal(t, len(encoded), consumed)
	require.Equal(t, m.Op, decoded.Op)
	require.Equal(t, m.Key, decoded.Key)
	require.Equal(t, m.Payload.TypeID, decoded.Payload.TypeID)
	require.Equal(t, m.Payload.Data, decoded.Payload.Data)
}

func TestRoundTrip_SetRequestWithEmptyPayload(t *testing.T) {
	m := message.NewSet([]byte("foo"), message.Payload{TypeID: message.TypeText, Data: nil})

	encoded, err := Encode(1, m)
	require.NoError(t, err)
	require.Len(t, encoded, HeaderLen+len("foo"), "an empty payload must not widen the frame")

	reqID, decoded, consumed, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, uint64(1), reqID)
	require.Equal(t, len(encoded), consumed)
	require.Nil(t, decoded.Payload, "payload_data_len == 0 means no payload on the wire")

	// a following frame must decode cleanly — no stray bytes left behind
	next, err := Encode(2, message.NewGet([]byte("bar")))
	require.NoError(t, err)
	buf := append(append([]byte(nil), encoded...), next...)
	buf = buf[consumed:]
	reqID2, decoded2, _, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(2), reqID2)
	require.Equal(t, "bar", string(decoded2.Key))
}

func TestRoundTrip_GetRequestNoPayload(t *testing.T) {
	m := message.NewGet([]byte("missing"))

	encoded, err := Encode(7, m)
	require.NoError(t, err)

	reqID, decoded, _, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, uint64(7), reqID)
	require.Nil(t, decoded.Payload)
	require.True(t, decoded.IsRequest())
}

func TestRoundTrip_StatsResponse(t *testing.T) {
	payload := message.Payload{TypeID: message.TypeText, Data: []byte("total_requests: 0")}
	resp := message.Response(message.OpStats, message.OK, &payload)

	encoded, err := Encode(1, resp)
	require.NoError(t, err)

	_, decoded, _, err := Decode(encoded)
	require.NoError(t, err)
	require.False(t, decoded.IsRequest())
	require.Equal(t, message.OK, decoded.Code)
	require.Equal(t, "total_requests: 0", string(decoded.Payload.Data))
}

func TestDecode_ShortBufferLeavesInputUntouched(t *testing.T) {
	m := message.NewSet([]byte("k"), message.Payload{TypeID: 1, Data: []byte("value")})
	encoded, err := Encode(1, m)
	require.NoError(t, err)

	for n := 0; n < len(encoded); n++ {
		prefix := make([]byte, n)
		copy(prefix, encoded[:n])
		before := append([]byte(nil), prefix...)

		_, _, consumed, err := Decode(prefix)
		require.ErrorIs(t, err, ErrShortBuffer)
		require.Zero(t, consumed)
		require.Equal(t, before, prefix, "Decode must not mutate a partial buffer")
	}
}

func TestDecode_UnknownOpByteFails(t *testing.T) {
	m := message.NewGet([]byte("k"))
	encoded, err := Encode(1, m)
	require.NoError(t, err)
	encoded[9] = 0xFF

	_, _, _, err = Decode(encoded)
	require.Error(t, err)
}

func TestDecode_UnknownCodeByteFails(t *testing.T) {
	m := message.NewGet([]byte("k"))
	encoded, err := Encode(1, m)
	require.NoError(t, err)
	encoded[8] = 0xFF

	_, _, _, err = Decode(encoded)
	require.Error(t, err)
}

func TestDecode_MultipleFramesBackToBack(t *testing.T) {
	first, err := Encode(1, message.NewGet([]byte("a")))
	require.NoError(t, err)
	second, err := Encode(2, message.NewGet([]byte("bb")))
	require.NoError(t, err)

	buf := append(append([]byte(nil), first...), second...)

	id1, _, consumed1, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id1)

	buf = buf[consumed1:]
	id2, _, consumed2, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(2), id2)
	require.Equal(t, len(buf), consumed2)
}
