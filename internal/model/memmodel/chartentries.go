package memmodel

import (
	"context"
	"sort"
	"time"

	"refcache-api/internal/model"
)

type chartEntriesModel struct {
	s *Store
}

func (m *chartEntriesModel) InsertIgnore(_ context.Context, entries []*model.ChartEntries) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var inserted int64
	for _, e := range entries {
		bySymbol, ok := m.s.chart[e.Symbol]
		if !ok {
			bySymbol = make(map[string]*model.ChartEntries)
			m.s.chart[e.Symbol] = bySymbol
		}
		key := e.Date.Format(time.DateOnly)
		if _, exists := bySymbol[key]; exists {
			continue
		}
		cp := *e
		cp.Id, cp.CreatedAt = m.s.id(), m.s.now()
		bySymbol[key] = &cp
		inserted++
	}
	return inserted, nil
}

func (m *chartEntriesModel) FindRange(_ context.Context, symbol string, from time.Time) ([]*model.ChartEntries, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var out []*model.ChartEntries
	for _, e := range m.s.chart[symbol] {
		if e.Date.Before(from) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
