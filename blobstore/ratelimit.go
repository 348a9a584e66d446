package blobstore

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedStore wraps a Store and throttles read and write throughput to
// a byte budget per second, so background snapshot traffic cannot starve
// serving IO.
type RateLimitedStore struct {
	inner   Store
	limiter *rate.Limiter
}

// NewRateLimitedStore creates a RateLimitedStore capped at bytesPerSec.
// A non-positive budget disables throttling.
func NewRateLimitedStore(inner Store, bytesPerSec int) *RateLimitedStore {
	var limiter *rate.Limiter
	if bytesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
	}
	return &RateLimitedStore{inner: inner, limiter: limiter}
}

// Open wraps the blob so reads are charged against the byte budget.
func (s *RateLimitedStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &rateLimitedBlob{inner: b, store: s}, nil
}

// Put charges the byte budget before writing through.
func (s *RateLimitedStore) Put(ctx context.Context, name string, data []byte) error {
	if err := s.waitBytes(ctx, len(data)); err != nil {
		return err
	}
	return s.inner.Put(ctx, name, data)
}

// Delete passes through.
func (s *RateLimitedStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List passes through.
func (s *RateLimitedStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// waitBytes blocks until n bytes of budget are available. Requests larger
// than the burst are charged in burst-sized installments.
func (s *RateLimitedStore) waitBytes(ctx context.Context, n int) error {
	if s.limiter == nil || n <= 0 {
		return nil
	}
	burst := s.limiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := s.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

type rateLimitedBlob struct {
	inner Blob
	store *RateLimitedStore
}

func (b *rateLimitedBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := b.store.waitBytes(ctx, len(p)); err != nil {
		return 0, err
	}
	return b.inner.ReadAt(ctx, p, off)
}

func (b *rateLimitedBlob) Size() int64 {
	return b.inner.Size()
}

func (b *rateLimitedBlob) Close() error {
	return b.inner.Close()
}
