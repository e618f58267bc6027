package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"linkage/internal/contact/models"
	"linkage/pkg/platform/circuit"
)

const defaultCooldown = 30 * time.Second

// ErrCircuitOpen is returned while the broker is considered down and no trial delivery is due.
var ErrCircuitOpen = errors.New("event publisher circuit open")

type eventPublisher interface {
	Publish(ctx context.Context, events []models.LinkEvent) error
}

// Guarded skips delivery while the wrapped publisher keeps failing, letting
// one trial delivery through per cooldown until the breaker closes again.
type Guarded struct {
	next     eventPublisher
	breaker  *circuit.Breaker
	cooldown time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	openedAt time.Time
}

type GuardOption func(*Guarded)

func WithCooldown(d time.Duration) GuardOption {
	return func(g *Guarded) {
		if d > 0 {
			g.cooldown = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) GuardOption {
	return func(g *Guarded) {
		if b != nil {
			g.breaker = b
		}
	}
}

func NewGuarded(next eventPublisher, logger *slog.Logger, opts ...GuardOption) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guarded{
		next:     next,
		breaker:  circuit.New("event-publisher"),
		cooldown: defaultCooldown,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guarded) Publish(ctx context.Context, events []models.LinkEvent) error {
	if len(events) == 0 {
		return nil
	}
	if !g.allow() {
		return ErrCircuitOpen
	}

	if err := g.next.Publish(ctx, events); err != nil {
		_, change := g.breaker.RecordFailure()
		g.markFailure()
		if change.Opened {
			g.logger.WarnContext(ctx, "event publisher circuit opened",
				"breaker", g.breaker.Name(),
				"cooldown", g.cooldown,
			)
		}
		return err
	}

	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "event publisher circuit closed", "breaker", g.breaker.Name())
	}
	return nil
}

func (g *Guarded) allow() bool {
	if !g.breaker.IsOpen() {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.now().Sub(g.openedAt) < g.cooldown {
		return false
	}
	// Trial delivery; push the window forward so concurrent callers keep skipping.
	g.openedAt = g.now()
	return true
}

func (g *Guarded) markFailure() {
	if !g.breaker.IsOpen() {
		return
	}
	g.mu.Lock()
	g.openedAt = g.now()
	g.mu.Unlock()
}
