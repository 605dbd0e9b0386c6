package history

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// BackoffPolicy configures HistoryConflict retry, in the manner of the
// kernel's deterministic backoff policy: exponential base delay capped
// at MaxMs, plus jitter derived from a stable hash rather than
// wall-clock randomness, so a retry sequence is reproducible from its
// inputs.
type BackoffPolicy struct {
	BaseMs      int64
	MaxMs       int64
	MaxJitterMs int64
	MaxAttempts int
}

// DefaultBackoffPolicy returns the retry policy used for HistoryConflict
// recovery (§7): retry up to N times with backoff.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{BaseMs: 50, MaxMs: 2000, MaxJitterMs: 100, MaxAttempts: 5}
}

// computeBackoff returns the delay before attemptIndex (0-based) for a
// given dataset/policy pair.
func computeBackoff(dataset string, attemptIndex int, policy BackoffPolicy) time.Duration {
	base := policy.BaseMs * (1 << attemptIndex)
	if base > policy.MaxMs {
		base = policy.MaxMs
	}
	jitter := deterministicJitter(dataset, attemptIndex, policy.MaxJitterMs)
	return time.Duration(base+jitter) * time.Millisecond
}

func deterministicJitter(dataset string, attemptIndex int, maxJitterMs int64) int64 {
	if maxJitterMs <= 0 {
		return 0
	}
	seed := fmt.Sprintf("%s:%d", dataset, attemptIndex)
	sum := sha256.Sum256([]byte(seed))
	basis := binary.BigEndian.Uint64(sum[:8])
	return int64(basis % uint64(maxJitterMs))
}
