package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rcache/rcache/pkg/message"
)

func submit(t *testing.T, e *Engine, m message.Message) message.Message {
	t.Helper()
	reply := make(chan message.Message, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.Submit(ctx, Request{Msg: m, Reply: reply}))

	select {
	case resp := <-reply:
		return resp
	case <-ctx.Done():
		t.Fatal("timed out waiting for response")
		return message.Message{}
	}
}

func TestSetThenGetHit(t *testing.T) {
	e := New(10)
	defer e.Close()

	resp := submit(t, e, message.NewSet([]byte("foo"), message.Payload{TypeID: message.TypeText, Data: []byte("bar")}))
	require.Equal(t, message.OpSet, resp.Op)
	require.Equal(t, message.OK, resp.Code)
	require.Nil(t, resp.Payload)

	resp = submit(t, e, message.NewGet([]byte("foo")))
	require.Equal(t, message.OpGet, resp.Op)
	require.Equal(t, message.Hit, resp.Code)
	require.Equal(t, "bar", string(resp.Payload.Data))
}

func TestGetMissOnEmptyCache(t *testing.T) {
	e := New(10)
	defer e.Close()

	resp := submit(t, e, message.NewGet([]byte("missing")))
	require.Equal(t, message.OpGet, resp.Op)
	require.Equal(t, message.Miss, resp.Code)
	require.Nil(t, resp.Payload)
}

// Capacity-2 eviction with an intervening GET.
func TestLRUEvictionWithIntermediateTouch(t *testing.T) {
	e := New(2)
	defer e.Close()

	submit(t, e, message.NewSet([]byte("a"), message.Payload{TypeID: 1, Data: []byte("A")}))
	submit(t, e, message.NewSet([]byte("b"), message.Payload{TypeID: 1, Data: []byte("B")}))

	resp := submit(t, e, message.NewGet([]byte("a")))
	require.Equal(t, message.Hit, resp.Code)
	require.Equal(t, "A", string(resp.Payload.Data))

	submit(t, e, message.NewSet([]byte("c"), message.Payload{TypeID: 1, Data: []byte("C")}))

	resp = submit(t, e, message.NewGet([]byte("b")))
	require.Equal(t, message.Miss, resp.Code)

	resp = submit(t, e, message.NewGet([]byte("a")))
	require.Equal(t, message.Hit, resp.Code)
	require.Equal(t, "A", string(resp.Payload.Data))

	resp = submit(t, e, message.NewGet([]byte("c")))
	require.Equal(t, message.Hit, resp.Code)
	require.Equal(t, "C", string(resp.Payload.Data))
}

// N+1 distinct SETs with no intervening GETs evict exactly the first-SET key.
func TestLRUEvictsFirstInsertedWhenNoTouches(t *testing.T) {
	const capacity = 5
	e := New(capacity)
	defer e.Close()

	for i := 0; i < capacity+1; i++ {
		key := []byte{byte('a' + i)}
		submit(t, e, message.NewSet(key, message.Payload{TypeID: 1, Data: key}))
	}

	resp := submit(t, e, message.NewGet([]byte("a")))
	require.Equal(t, message.Miss, resp.Code, "first-inserted key should have been evicted")

	for i := 1; i < capacity+1; i++ {
		key := []byte{byte('a' + i)}
		resp := submit(t, e, message.NewGet(key))
		require.Equal(t, message.Hit, resp.Code, "key %s should still be present", key)
	}
}

// Touching the oldest key right before the (N+1)th SET spares it from eviction.
func TestTouchBeforeInsertSparesKeyFromEviction(t *testing.T) {
	const capacity = 3
	e := New(capacity)
	defer e.Close()

	submit(t, e, message.NewSet([]byte("a"), message.Payload{TypeID: 1, Data: []byte("A")}))
	submit(t, e, message.NewSet([]byte("b"), message.Payload{TypeID: 1, Data: []byte("B")}))
	submit(t, e, message.NewSet([]byte("c"), message.Payload{TypeID: 1, Data: []byte("C")}))

	submit(t, e, message.NewGet([]byte("a")))

	submit(t, e, message.NewSet([]byte("d"), message.Payload{TypeID: 1, Data: []byte("D")}))

	resp := submit(t, e, message.NewGet([]byte("b")))
	require.Equal(t, message.Miss, resp.Code, "b was the least recently used and should be evicted")

	resp = submit(t, e, message.NewGet([]byte("a")))
	require.Equal(t, message.Hit, resp.Code, "a was touched and must survive")
}

func TestSetOverwriteCountsAsUse(t *testing.T) {
	e := New(2)
	defer e.Close()

	submit(t, e, message.NewSet([]byte("a"), message.Payload{TypeID: 1, Data: []byte("A1")}))
	submit(t, e, message.NewSet([]byte("b"), message.Payload{TypeID: 1, Data: []byte("B")}))
	submit(t, e, message.NewSet([]byte("a"), message.Payload{TypeID: 1, Data: []byte("A2")}))
	submit(t, e, message.NewSet([]byte("c"), message.Payload{TypeID: 1, Data: []byte("C")}))

	resp := submit(t, e, message.NewGet([]byte("b")))
	require.Equal(t, message.Miss, resp.Code)

	resp = submit(t, e, message.NewGet([]byte("a")))
	require.Equal(t, message.Hit, resp.Code)
	require.Equal(t, "A2", string(resp.Payload.Data))
}

func TestDel_IsNoOpReturningOK(t *testing.T) {
	e := New(2)
	defer e.Close()

	submit(t, e, message.NewSet([]byte("a"), message.Payload{TypeID: 1, Data: []byte("A")}))
	resp := submit(t, e, message.NewDel([]byte("a")))
	require.Equal(t, message.OpDel, resp.Op)
	require.Equal(t, message.OK, resp.Code)

	resp = submit(t, e, message.NewGet([]byte("a")))
	require.Equal(t, message.Hit, resp.Code, "DEL must not evict")
}

func TestStats_ReportsEntryCount(t *testing.T) {
	e := New(10)
	defer e.Close()

	submit(t, e, message.NewSet([]byte("a"), message.Payload{TypeID: 1, Data: []byte("A")}))
	submit(t, e, message.NewSet([]byte("b"), message.Payload{TypeID: 1, Data: []byte("B")}))

	resp := submit(t, e, message.NewStats())
	require.Equal(t, message.OpStats, resp.Op)
	require.Equal(t, message.OK, resp.Code)
	require.Equal(t, uint32(2), resp.Payload.TypeID)
}

func TestMalformedSet_ProducesGetErrorResponse(t *testing.T) {
	e := New(10)
	defer e.Close()

	// Fabricate a malformed request (no payload) the way a corrupted
	// frame could produce, bypassing message.Validate at the codec layer.
	malformed := message.Message{Op: message.OpSet, Code: message.Req, Key: []byte("k")}
	resp := submit(t, e, malformed)

	require.Equal(t, message.OpGet, resp.Op, "error responses report op=GET regardless of the original op")
	require.Equal(t, message.Error, resp.Code)
	require.Equal(t, uint32(0), resp.Payload.TypeID)
}

// At-most-one SET visibility under concurrency.
func TestConcurrentSetsResolveDeterministically(t *testing.T) {
	e := New(10)
	defer e.Close()

	done := make(chan struct{})
	go func() {
		submit(t, e, message.NewSet([]byte("k"), message.Payload{TypeID: 1, Data: []byte("first")}))
		close(done)
	}()
	submit(t, e, message.NewSet([]byte("k"), message.Payload{TypeID: 1, Data: []byte("second")}))
	<-done

	resp := submit(t, e, message.NewGet([]byte("k")))
	require.Equal(t, message.Hit, resp.Code)
	require.Contains(t, []string{"first", "second"}, string(resp.Payload.Data))

	resp2 := submit(t, e, message.NewGet([]byte("k")))
	require.Equal(t, string(resp.Payload.Data), string(resp2.Payload.Data), "subsequent GETs must be deterministic")
}
