package service

import (
	"context"
	"time"

	"github.com/rcache/rcache/internal/stats"
	"github.com/rcache/rcache/pkg/message"
)

// StatsMiddleware wraps an inner Service. It short-circuits STATS requests
// with a formatted report and, for every other op, times the inner call and
// records it. This is the authoritative STATS path for the shipped server
// stack.
type StatsMiddleware struct {
	inner Service
	stats *stats.Stats
}

// NewStatsMiddleware wraps inner with stats instrumentation.
func NewStatsMiddleware(inner Service, s *stats.Stats) *StatsMiddleware {
	return &StatsMiddleware{inner: inner, stats: s}
}

// Call implements Service.
func (m *StatsMiddleware) Call(ctx context.Context, req message.Message) (message.Message, error) {
	if req.Op == message.OpStats {
		report := m.stats.Get().Report()
		payload := message.Payload{TypeID: message.TypeText, Data: []byte(report)}
		return message.Response(message.OpStats, message.OK, &payload), nil
	}

	start := time.Now()
	resp, err := m.inner.Call(ctx, req)
	if err != nil {
		return resp, err
	}

	m.stats.Record(uint64(time.Since(start).Microseconds())) //nolint:gosec
	return resp, nil
}
