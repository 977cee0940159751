package cache

import (
	"context"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/resilience"
)

const defaultOpTimeout = 100 * time.Millisecond

// Guarded bounds every backend call with a short deadline and stops calling
// the backend while its breaker is open, so a stalled Redis only costs
// searches a cache miss.
type Guarded struct {
	backend   Backend
	breaker   *resilience.CircuitBreaker
	opTimeout time.Duration
}

func NewGuarded(backend Backend, breaker *resilience.CircuitBreaker, opTimeout time.Duration) *Guarded {
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &Guarded{backend: backend, breaker: breaker, opTimeout: opTimeout}
}

func (g *Guarded) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := g.breaker.Execute(func() error {
		opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
		defer cancel()
		var err error
		data, err = g.backend.Get(opCtx, key)
		return err
	}, pkgredis.IsNilError)
	return data, err
}

func (g *Guarded) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.breaker.Execute(func() error {
		opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
		defer cancel()
		return g.backend.Set(opCtx, key, value, ttl)
	}, nil)
}

// FlushByPattern may be skipped while the breaker is open. Keys carry the
// index generation, so entries it would have removed are unreachable anyway
// and expire with their TTL.
func (g *Guarded) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var n int64
	err := g.breaker.Execute(func() error {
		var err error
		n, err = g.backend.FlushByPattern(ctx, pattern)
		return err
	}, nil)
	return n, err
}
