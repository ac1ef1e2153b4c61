package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ IsinMappingsModel = (*defaultIsinMappingsModel)(nil)

const isinMappingsRows = "id,isin,iex_id,created_at,updated_at"

type (
	// IsinMappingsModel stores the ISIN -> provider symbol id groups. A group whose
	// single row has a NULL iex_id is a tombstone: the ISIN was looked up and has no match.
	IsinMappingsModel interface {
		// OldestRefresh returns the oldest updated_at of the ISIN's group; ok is false when no group exists.
		OldestRefresh(ctx context.Context, isin string) (oldest time.Time, ok bool, err error)
		// ReplaceGroup atomically swaps the group for isin. An empty iexIDs stores a tombstone.
		ReplaceGroup(ctx context.Context, isin string, iexIDs []string, at time.Time) error
		FindByIsin(ctx context.Context, isin string) ([]*IsinMappings, error)
	}

	defaultIsinMappingsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	IsinMappings struct {
		Id        int64          `db:"id"`
		Isin      string         `db:"isin"`
		IexId     sql.NullString `db:"iex_id"`
		CreatedAt time.Time      `db:"created_at"`
		UpdatedAt time.Time      `db:"updated_at"`
	}
)

// NewIsinMappingsModel returns a model for the iex_isin_mappings table.
func NewIsinMappingsModel(conn sqlx.SqlConn) IsinMappingsModel {
	return &defaultIsinMappingsModel{conn: conn, table: `"public"."iex_isin_mappings"`}
}

// IsTombstone reports whether the row records a lookup with no match.
func (m *IsinMappings) IsTombstone() bool {
	return !m.IexId.Valid
}

func (m *defaultIsinMappingsModel) OldestRefresh(ctx context.Context, isin string) (time.Time, bool, error) {
	query := fmt.Sprintf("SELECT MIN(updated_at) AS oldest FROM %s WHERE isin = $1", m.table)
	var row struct {
		Oldest sql.NullTime `db:"oldest"`
	}
	if err := m.conn.QueryRowCtx(ctx, &row, query, isin); err != nil {
		return time.Time{}, false, err
	}
	if !row.Oldest.Valid {
		return time.Time{}, false, nil
	}
	return row.Oldest.Time, true, nil
}

func (m *defaultIsinMappingsModel) ReplaceGroup(ctx context.Context, isin string, iexIDs []string, at time.Time) error {
	ids := DistinctNonEmpty(iexIDs)
	return m.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		del := fmt.Sprintf("DELETE FROM %s WHERE isin = $1", m.table)
		if _, err := session.ExecCtx(ctx, del, isin); err != nil {
			return fmt.Errorf("delete isin group: %w", err)
		}

		insert := fmt.Sprintf("INSERT INTO %s (isin, iex_id, created_at, updated_at) VALUES ($1, $2, $3, $3)", m.table)
		if len(ids) == 0 {
			if _, err := session.ExecCtx(ctx, insert, isin, nil, at.UTC()); err != nil {
				return fmt.Errorf("insert isin tombstone: %w", err)
			}
			return nil
		}
		for _, id := range ids {
			if _, err := session.ExecCtx(ctx, insert, isin, id, at.UTC()); err != nil {
				return fmt.Errorf("insert isin mapping %s: %w", id, err)
			}
		}
		return nil
	})
}

func (m *defaultIsinMappingsModel) FindByIsin(ctx context.Context, isin string) ([]*IsinMappings, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE isin = $1 ORDER BY id", isinMappingsRows, m.table)
	var resp []*IsinMappings
	if err := m.conn.QueryRowsCtx(ctx, &resp, query, isin); err != nil {
		return nil, err
	}
	return resp, nil
}
