package auth

import (
	"time"
)

// FixedDelay flattens response latency on negative authentication outcomes.
// Without it an attacker can tell "login does not exist" from "login exists
// but password is wrong" by timing the response, so the delay is applied on
// the not-found branch too.
type FixedDelay struct {
	duration       time.Duration
	delayOnSuccess bool
}

// NewFixedDelay creates a FixedDelay with the given target duration.
func NewFixedDelay(duration time.Duration) *FixedDelay {
	return &FixedDelay{duration: duration}
}

// Wait sleeps for the full delay on failure. The sleep deliberately ignores
// request cancellation: it is a fixed wait, not best-effort.
func (fd *FixedDelay) Wait(success bool) {
	if success && !fd.delayOnSuccess {
		return
	}
	time.Sleep(fd.duration)
}

// WaitFrom sleeps only for the remainder of the target delay measured from
// start, so slow hash comparisons do not stack on top of the fixed wait and
// every failure path converges on the same total latency.
func (fd *FixedDelay) WaitFrom(start time.Time, success bool) {
	if success && !fd.delayOnSuccess {
		return
	}

	elapsed := time.Since(start)
	if elapsed < fd.duration {
		time.Sleep(fd.duration - elapsed)
	}
}
