package lock

import (
	"context"
	"fmt"
	"hash/fnv"
	"slices"
	"sync"
)

const numShards = 128

// Local is an in-process identifier lock. Keys hash onto a fixed set of
// shards; a request holds every shard its keys map to, taken in ascending
// shard order.
type Local struct {
	shards [numShards]chan struct{}
}

// NewLocal constructs a Local locker.
func NewLocal() *Local {
	l := &Local{}
	for i := range l.shards {
		l.shards[i] = make(chan struct{}, 1)
	}
	return l
}

func (l *Local) Lock(ctx context.Context, keys []string) (func(), error) {
	shards := make([]int, 0, len(keys))
	for _, key := range normalizeKeys(keys) {
		shards = append(shards, int(hashKey(key)%numShards))
	}
	slices.Sort(shards)
	shards = slices.Compact(shards)

	held := make([]int, 0, len(shards))
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-l.shards[held[i]]
		}
	}
	for _, shard := range shards {
		select {
		case l.shards[shard] <- struct{}{}:
			held = append(held, shard)
		case <-ctx.Done():
			unlock()
			return nil, fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
		}
	}

	var once sync.Once
	return func() { once.Do(unlock) }, nil
}

func hashKey(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
