package services

import (
	"context"
	"fmt"
	"time"

	"github.com/lborres/bantay/core"
)

// AttemptThrottle counts failed logins per key and blocks a key for
// BlockDuration once MaxFailures is reached.
//
// Blocks lift lazily: nothing happens when BlockedUntil passes, the next
// request simply finds the entry no longer blocked. The failure count is not
// reset at that point, so the first failure after a block re-blocks the key.
//
// Get, modify and Put are separate store calls without a lock across them.
// Concurrent failures for one key can lose an increment.
type AttemptThrottle struct {
	store  core.ThrottleStore
	config core.ThrottleConfig
	now    func() time.Time
}

func NewAttemptThrottle(store core.ThrottleStore, config core.ThrottleConfig) *AttemptThrottle {
	def := core.DefaultThrottleConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = def.MaxFailures
	}
	if config.BlockDuration <= 0 {
		config.BlockDuration = def.BlockDuration
	}
	return &AttemptThrottle{store: store, config: config, now: time.Now}
}

func (t *AttemptThrottle) IsBlocked(ctx context.Context, key string) (bool, error) {
	entry, err := t.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read throttle entry: %w", err)
	}
	return entry.Blocked(t.now()), nil
}

// RecordFailure adds one failure for key and returns the resulting entry.
func (t *AttemptThrottle) RecordFailure(ctx context.Context, key string) (*core.ThrottleEntry, error) {
	entry, err := t.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read throttle entry: %w", err)
	}
	if entry == nil {
		entry = &core.ThrottleEntry{}
	}

	entry.FailureCount++
	if entry.FailureCount >= t.config.MaxFailures {
		entry.BlockedUntil = t.now().Add(t.config.BlockDuration)
	}

	if err := t.store.Put(ctx, key, *entry); err != nil {
		return nil, fmt.Errorf("failed to write throttle entry: %w", err)
	}
	return entry, nil
}

func (t *AttemptThrottle) Clear(ctx context.Context, key string) error {
	if err := t.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to clear throttle entry: %w", err)
	}
	return nil
}

func (t *AttemptThrottle) Config() core.ThrottleConfig {
	return t.config
}
