package service

import (
	"context"

	"github.com/roadrunner-server/errors"

	"github.com/rcache/rcache/internal/cache"
	"github.com/rcache/rcache/pkg/message"
)

// CacheService is the terminal service: it forwards every request to the
// cache engine's worker queue and waits for the matching reply.
type CacheService struct {
	engine *cache.Engine
}

// NewCacheService wraps engine as a terminal Service.
func NewCacheService(engine *cache.Engine) *CacheService {
	return &CacheService{engine: engine}
}

// Call implements Service.
func (s *CacheService) Call(ctx context.Context, req message.Message) (message.Message, error) {
	const op = errors.Op("service.CacheService.Call")

	reply := make(chan message.Message, 1)
	if err := s.engine.Submit(ctx, cache.Request{Msg: req, Reply: reply}); err != nil {
		return message.Message{}, errors.E(op, err)
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return message.Message{}, errors.E(op, ctx.Err())
	}
}
