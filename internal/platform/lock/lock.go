// Package lock serializes reconciliations that touch the same identifiers
// before they reach the store. Both lockers take every key of a request in
// sorted order so two requests sharing several identifiers cannot deadlock.
package lock

import (
	"errors"
	"slices"
)

// ErrLockNotAcquired is returned when a lock could not be taken before the wait expired.
var ErrLockNotAcquired = errors.New("lock not acquired")

func normalizeKeys(keys []string) []string {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}
