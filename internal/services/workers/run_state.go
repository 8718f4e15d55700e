package workers

import "sync/atomic"

// runState carries the mutable flags of a single run. It is created per
// run and passed through the batch/episode call chain, never stored
// globally, so overlapping runs in one process (tests, manual triggers)
// cannot interfere. Episodes within a batch run on goroutines, so both
// fields are atomic.
type runState struct {
	maxFallbacks     int
	fallbackAttempts atomic.Int32
	quotaExhausted   atomic.Bool
}

func newRunState(maxFallbacks int) *runState {
	return &runState{maxFallbacks: maxFallbacks}
}

// reserveFallback claims one slot of the per-run fallback budget. The
// increment happens on reservation: cost is incurred on attempt, not just
// success. Returns false once the budget is spent.
func (s *runState) reserveFallback() bool {
	for {
		current := s.fallbackAttempts.Load()
		if int(current) >= s.maxFallbacks {
			return false
		}
		if s.fallbackAttempts.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// attempts returns the number of fallback slots claimed so far
func (s *runState) attempts() int {
	return int(s.fallbackAttempts.Load())
}

// tripQuota marks the provider quota as exhausted for the rest of the run
func (s *runState) tripQuota() {
	s.quotaExhausted.Store(true)
}

// quotaTripped reports whether the quota breaker has fired
func (s *runState) quotaTripped() bool {
	return s.quotaExhausted.Load()
}
