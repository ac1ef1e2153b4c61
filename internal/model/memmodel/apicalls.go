package memmodel

import (
	"context"
	"sync"
	"time"

	"refcache-api/internal/model"
)

type apiCallsModel struct {
	s *Store
}

func (m *apiCallsModel) FindOne(_ context.Context, api, digest string) (*model.ApiCalls, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	row, ok := m.s.calls[callKey{api, digest}]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *apiCallsModel) Touch(_ context.Context, api, digest string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.touchLocked(m.ensureLocked(callKey{api, digest}), at)
	return nil
}

func (m *apiCallsModel) WithRowLock(ctx context.Context, api, digest string, fn model.RowLockFunc) error {
	key := callKey{api, digest}
	m.lockRow(key)
	defer m.unlockRow(key)
	if err := ctx.Err(); err != nil {
		return err
	}

	m.s.mu.Lock()
	snapshot := *m.ensureLocked(key)
	m.s.mu.Unlock()

	at, err := fn(ctx, &snapshot)
	if err != nil || at.IsZero() {
		return err
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.touchLocked(m.s.calls[key], at)
	return nil
}

// rowLock serialises WithRowLock callers on one key. refs counts holders and
// waiters so the entry is dropped once nobody needs it.
type rowLock struct {
	mu   sync.Mutex
	refs int
}

func (m *apiCallsModel) lockRow(key callKey) {
	m.s.lockMu.Lock()
	lock, ok := m.s.callLocks[key]
	if !ok {
		lock = &rowLock{}
		m.s.callLocks[key] = lock
	}
	lock.refs++
	m.s.lockMu.Unlock()

	lock.mu.Lock()
}

func (m *apiCallsModel) unlockRow(key callKey) {
	m.s.lockMu.Lock()
	defer m.s.lockMu.Unlock()
	lock := m.s.callLocks[key]
	lock.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(m.s.callLocks, key)
	}
}

func (m *apiCallsModel) ensureLocked(key callKey) *model.ApiCalls {
	row, ok := m.s.calls[key]
	if !ok {
		now := m.s.now()
		row = &model.ApiCalls{Id: m.s.id(), Api: key.api, CallDigest: key.digest, CreatedAt: now, UpdatedAt: now}
		m.s.calls[key] = row
	}
	return row
}

func (m *apiCallsModel) touchLocked(row *model.ApiCalls, at time.Time) {
	if !row.CalledAt.Valid || at.After(row.CalledAt.Time) {
		row.CalledAt.Time, row.CalledAt.Valid = at, true
	}
	row.UpdatedAt = m.s.now()
}
