package syncer

import (
	"time"

	"feltsync/internal/config"
)

// Backoff computes the reschedule delay for failed queue entries. The delay
// grows linearly with the attempt count and never exceeds Cap.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// NewBackoff builds the retry policy from configuration.
func NewBackoff(cfg *config.Config) Backoff {
	return Backoff{
		Base: time.Duration(cfg.Sync.RetryBackoff) * time.Second,
		Cap:  time.Duration(cfg.Sync.RetryBackoffCap) * time.Second,
	}
}

// Delay returns the wait before the given attempt number. Attempt 1 is the
// first retry.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(attempt) * b.Base
	if b.Cap > 0 && delay > b.Cap {
		return b.Cap
	}
	return delay
}
