// Package ledger records when each distinct provider call was last made, so that
// repeated identical calls inside a provider's max-age window are skipped.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"refcache-api/internal/model"
)

// Ledger decides whether a (provider, fingerprint) call is due.
type Ledger struct {
	calls model.ApiCallsModel
	now   func() time.Time
}

type Option func(*Ledger)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func New(calls model.ApiCallsModel, opts ...Option) *Ledger {
	l := &Ledger{calls: calls, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecentlyCalled reports whether the call was recorded within maxAge.
// A non-positive maxAge disables deduplication and always reports false.
func (l *Ledger) RecentlyCalled(ctx context.Context, provider, fingerprint string, maxAge time.Duration) (bool, error) {
	if maxAge <= 0 {
		return false, nil
	}
	row, err := l.calls.FindOne(ctx, provider, fingerprint)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: find %s/%s: %w", provider, fingerprint, err)
	}
	return l.recent(row, maxAge), nil
}

// RecordCall marks the call as made now. Later records never move the time backwards.
func (l *Ledger) RecordCall(ctx context.Context, provider, fingerprint string) error {
	if err := l.calls.Touch(ctx, provider, fingerprint, l.now()); err != nil {
		return fmt.Errorf("ledger: record %s/%s: %w", provider, fingerprint, err)
	}
	return nil
}

// Do runs fn unless the call was made within maxAge, holding the ledger row's lock
// across the check, fn and the record. The call is recorded only when fn succeeds,
// so concurrent callers with the same fingerprint trigger fn at most once per window.
func (l *Ledger) Do(ctx context.Context, provider, fingerprint string, maxAge time.Duration, fn func(context.Context) error) (executed bool, err error) {
	err = l.calls.WithRowLock(ctx, provider, fingerprint, func(ctx context.Context, row *model.ApiCalls) (time.Time, error) {
		if l.recent(row, maxAge) {
			return time.Time{}, nil
		}
		if err := fn(ctx); err != nil {
			return time.Time{}, err
		}
		executed = true
		return l.now(), nil
	})
	if err != nil {
		return false, err
	}
	return executed, nil
}

func (l *Ledger) recent(row *model.ApiCalls, maxAge time.Duration) bool {
	if maxAge <= 0 || row == nil || !row.CalledAt.Valid {
		return false
	}
	return !row.CalledAt.Time.Before(l.now().Add(-maxAge))
}
