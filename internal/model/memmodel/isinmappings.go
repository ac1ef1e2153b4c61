package memmodel

import (
	"context"
	"database/sql"
	"time"

	"refcache-api/internal/model"
)

type isinMappingsModel struct {
	s *Store
}

func (m *isinMappingsModel) OldestRefresh(_ context.Context, isin string) (time.Time, bool, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	group := m.s.mappings[isin]
	if len(group) == 0 {
		return time.Time{}, false, nil
	}
	oldest := group[0].UpdatedAt
	for _, row := range group[1:] {
		if row.UpdatedAt.Before(oldest) {
			oldest = row.UpdatedAt
		}
	}
	return oldest, true, nil
}

func (m *isinMappingsModel) ReplaceGroup(_ context.Context, isin string, iexIDs []string, at time.Time) error {
	ids := model.DistinctNonEmpty(iexIDs)
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	group := make([]*model.IsinMappings, 0, len(ids)+1)
	if len(ids) == 0 {
		group = append(group, &model.IsinMappings{Id: m.s.id(), Isin: isin, CreatedAt: at, UpdatedAt: at})
	}
	for _, id := range ids {
		group = append(group, &model.IsinMappings{
			Id:        m.s.id(),
			Isin:      isin,
			IexId:     sql.NullString{String: id, Valid: true},
			CreatedAt: at,
			UpdatedAt: at,
		})
	}
	m.s.mappings[isin] = group
	return nil
}

func (m *isinMappingsModel) FindByIsin(_ context.Context, isin string) ([]*model.IsinMappings, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	out := make([]*model.IsinMappings, 0, len(m.s.mappings[isin]))
	for _, row := range m.s.mappings[isin] {
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}
