package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ FigisModel = (*defaultFigisModel)(nil)

const figisRows = "id,figi,isin,name,ticker,unique_id,exch_code,created_at,updated_at"

type (
	// FigisModel stores the ISIN -> FIGI cross-reference, grouped by ISIN.
	FigisModel interface {
		// OldestByIsin returns the oldest updated_at per ISIN; ISINs without rows are absent.
		OldestByIsin(ctx context.Context, isins []string) (map[string]time.Time, error)
		// ReplaceGroup atomically swaps the ISIN's group for figis.
		ReplaceGroup(ctx context.Context, isin string, figis []*Figis, at time.Time) error
		FindByIsins(ctx context.Context, isins []string) ([]*Figis, error)
		DeleteByIsins(ctx context.Context, isins []string) (int64, error)
		DeleteAll(ctx context.Context) (int64, error)
	}

	defaultFigisModel struct {
		conn  sqlx.SqlConn
		table string
	}

	Figis struct {
		Id        int64          `db:"id"`
		Figi      string         `db:"figi"`
		Isin      string         `db:"isin"`
		Name      string         `db:"name"`
		Ticker    string         `db:"ticker"`
		UniqueId  string         `db:"unique_id"`
		ExchCode  sql.NullString `db:"exch_code"`
		CreatedAt time.Time      `db:"created_at"`
		UpdatedAt time.Time      `db:"updated_at"`
	}
)

// NewFigisModel returns a model for the figis table.
func NewFigisModel(conn sqlx.SqlConn) FigisModel {
	return &defaultFigisModel{conn: conn, table: `"public"."figis"`}
}

func (m *defaultFigisModel) OldestByIsin(ctx context.Context, isins []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(isins))
	if len(isins) == 0 {
		return out, nil
	}
	query := fmt.Sprintf("SELECT isin, MIN(updated_at) AS oldest FROM %s WHERE isin = ANY($1) GROUP BY isin", m.table)
	var rows []struct {
		Isin   string    `db:"isin"`
		Oldest time.Time `db:"oldest"`
	}
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, pq.Array(isins)); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.Isin] = row.Oldest
	}
	return out, nil
}

func (m *defaultFigisModel) ReplaceGroup(ctx context.Context, isin string, figis []*Figis, at time.Time) error {
	return m.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		del := fmt.Sprintf("DELETE FROM %s WHERE isin = $1", m.table)
		if _, err := session.ExecCtx(ctx, del, isin); err != nil {
			return fmt.Errorf("delete figi group: %w", err)
		}
		// A FIGI that moved between ISINs is re-pointed at this group.
		stmt := fmt.Sprintf(`
INSERT INTO %s (figi, isin, name, ticker, unique_id, exch_code, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (figi) DO UPDATE SET
    isin = EXCLUDED.isin,
    name = EXCLUDED.name,
    ticker = EXCLUDED.ticker,
    unique_id = EXCLUDED.unique_id,
    exch_code = EXCLUDED.exch_code,
    updated_at = EXCLUDED.updated_at`, m.table)
		for _, f := range figis {
			if _, err := session.ExecCtx(ctx, stmt, f.Figi, isin, f.Name, f.Ticker, f.UniqueId, f.ExchCode, at.UTC()); err != nil {
				return fmt.Errorf("upsert figi %s: %w", f.Figi, err)
			}
		}
		return nil
	})
}

func (m *defaultFigisModel) FindByIsins(ctx context.Context, isins []string) ([]*Figis, error) {
	if len(isins) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE isin = ANY($1) ORDER BY isin, figi", figisRows, m.table)
	var resp []*Figis
	if err := m.conn.QueryRowsCtx(ctx, &resp, query, pq.Array(isins)); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *defaultFigisModel) DeleteByIsins(ctx context.Context, isins []string) (int64, error) {
	if len(isins) == 0 {
		return 0, nil
	}
	res, err := m.conn.ExecCtx(ctx, fmt.Sprintf("DELETE FROM %s WHERE isin = ANY($1)", m.table), pq.Array(isins))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (m *defaultFigisModel) DeleteAll(ctx context.Context) (int64, error) {
	res, err := m.conn.ExecCtx(ctx, fmt.Sprintf("DELETE FROM %s", m.table))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
