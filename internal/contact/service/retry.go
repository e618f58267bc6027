package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"linkage/pkg/platform/sentinel"
	"linkage/pkg/requestcontext"
)

// withRetry replays fn while the store reports a serialization failure. Each
// attempt runs a fresh transaction, so nothing from a failed attempt survives.
func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, sentinel.ErrRetryable) {
			return err
		}
		if attempt == s.maxAttempts {
			break
		}
		s.metrics.IncrementTxRetries()
		s.logger.DebugContext(ctx, "retrying reconciliation after serialization failure",
			"request_id", requestcontext.RequestID(ctx),
			"attempt", attempt,
		)
		if waitErr := sleep(ctx, s.backoff(attempt)); waitErr != nil {
			return waitErr
		}
	}
	return fmt.Errorf("transaction retries exhausted after %d attempts: %w", s.maxAttempts, err)
}

func (s *Service) backoff(attempt int) time.Duration {
	if s.retryDelay <= 0 {
		return 0
	}
	base := s.retryDelay * time.Duration(attempt)
	return base + rand.N(s.retryDelay)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
