package memmodel

import (
	"context"
	"sort"
	"strings"

	"refcache-api/internal/model"
)

type symbolsModel struct {
	s *Store
}

func (m *symbolsModel) Upsert(_ context.Context, data *model.Symbols) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	now := m.s.now()
	cp := *data
	if existing, ok := m.s.symbols[data.IexId]; ok {
		cp.Id, cp.CreatedAt = existing.Id, existing.CreatedAt
	} else {
		cp.Id, cp.CreatedAt = m.s.id(), now
	}
	cp.UpdatedAt = now
	m.s.symbols[data.IexId] = &cp
	return nil
}

func (m *symbolsModel) FindOneBySymbol(_ context.Context, symbol string) (*model.Symbols, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var found *model.Symbols
	for _, row := range m.s.symbols {
		if row.Symbol == symbol && (found == nil || row.Id < found.Id) {
			found = row
		}
	}
	if found == nil {
		return nil, model.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *symbolsModel) FindOneByIexId(_ context.Context, iexID string) (*model.Symbols, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	row, ok := m.s.symbols[iexID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *symbolsModel) FindByIsin(_ context.Context, isin string) ([]*model.Symbols, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var out []*model.Symbols
	for _, mapping := range m.s.mappings[isin] {
		if !mapping.IexId.Valid {
			continue
		}
		if row, ok := m.s.symbols[mapping.IexId.String]; ok {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].IexId < out[j].IexId
	})
	return out, nil
}

func (m *symbolsModel) Search(_ context.Context, term string, limit int) ([]*model.Symbols, error) {
	term = strings.TrimSpace(term)
	if term == "" || limit <= 0 {
		return nil, nil
	}
	needle := strings.ToLower(term)

	m.s.mu.RLock()
	var out []*model.Symbols
	for _, row := range m.s.symbols {
		if strings.HasPrefix(strings.ToLower(row.Symbol), needle) || strings.Contains(strings.ToLower(row.Name), needle) {
			cp := *row
			out = append(out, &cp)
		}
	}
	m.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ei, ej := strings.EqualFold(out[i].Symbol, term), strings.EqualFold(out[j].Symbol, term)
		if ei != ej {
			return ei
		}
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].IexId < out[j].IexId
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *symbolsModel) DeleteAll(_ context.Context) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n := int64(len(m.s.symbols))
	m.s.symbols = make(map[string]*model.Symbols)
	return n, nil
}
