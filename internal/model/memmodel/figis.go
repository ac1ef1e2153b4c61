package memmodel

import (
	"context"
	"sort"
	"time"

	"refcache-api/internal/model"
)

type figisModel struct {
	s *Store
}

func (m *figisModel) OldestByIsin(_ context.Context, isins []string) (map[string]time.Time, error) {
	want := make(map[string]struct{}, len(isins))
	for _, isin := range isins {
		want[isin] = struct{}{}
	}
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	out := make(map[string]time.Time, len(isins))
	for _, f := range m.s.figis {
		if _, ok := want[f.Isin]; !ok {
			continue
		}
		if oldest, ok := out[f.Isin]; !ok || f.UpdatedAt.Before(oldest) {
			out[f.Isin] = f.UpdatedAt
		}
	}
	return out, nil
}

func (m *figisModel) ReplaceGroup(_ context.Context, isin string, figis []*model.Figis, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for key, f := range m.s.figis {
		if f.Isin == isin {
			delete(m.s.figis, key)
		}
	}
	for _, f := range figis {
		cp := *f
		cp.Isin = isin
		cp.UpdatedAt = at
		if existing, ok := m.s.figis[f.Figi]; ok {
			cp.Id, cp.CreatedAt = existing.Id, existing.CreatedAt
		} else {
			cp.Id, cp.CreatedAt = m.s.id(), at
		}
		m.s.figis[f.Figi] = &cp
	}
	return nil
}

func (m *figisModel) FindByIsins(_ context.Context, isins []string) ([]*model.Figis, error) {
	want := make(map[string]struct{}, len(isins))
	for _, isin := range isins {
		want[isin] = struct{}{}
	}
	m.s.mu.RLock()
	var out []*model.Figis
	for _, f := range m.s.figis {
		if _, ok := want[f.Isin]; ok {
			cp := *f
			out = append(out, &cp)
		}
	}
	m.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Isin != out[j].Isin {
			return out[i].Isin < out[j].Isin
		}
		return out[i].Figi < out[j].Figi
	})
	return out, nil
}

func (m *figisModel) DeleteByIsins(_ context.Context, isins []string) (int64, error) {
	want := make(map[string]struct{}, len(isins))
	for _, isin := range isins {
		want[isin] = struct{}{}
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for key, f := range m.s.figis {
		if _, ok := want[f.Isin]; ok {
			delete(m.s.figis, key)
			n++
		}
	}
	return n, nil
}

func (m *figisModel) DeleteAll(_ context.Context) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n := int64(len(m.s.figis))
	m.s.figis = make(map[string]*model.Figis)
	return n, nil
}
