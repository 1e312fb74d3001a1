package common

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WaitForDurationContext waits for the given duration or until ctx is cancelled
func WaitForDurationContext(ctx context.Context, duration time.Duration) {
	t := time.NewTimer(duration)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// GetRunID generates a short unique run identifier
func GetRunID() string {
	return strings.Split(uuid.New().String(), "-")[0]
}

// RandomInterval draws a random duration in [min, max]
func RandomInterval(r *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(r.Int63n(int64(max-min)))
}

// RandomSubset draws size distinct indices out of [0, n)
func RandomSubset(r *rand.Rand, n, size int) []int {
	if size > n {
		size = n
	}
	subset := r.Perm(n)[:size]
	return subset
}

// Contains reports whether idx is a member of subset
func Contains(subset []int, idx int) bool {
	for _, s := range subset {
		if s == idx {
			return true
		}
	}
	return false
}

// Minimum returns the smaller of two ints
func Minimum(a, b int) int {
	if a < b {
		return a
	}
	return b
}
