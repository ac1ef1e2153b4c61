package model

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ ChartEntriesModel = (*defaultChartEntriesModel)(nil)

const chartEntriesRows = "id,symbol,date,close,volume,change,change_percent,change_over_time,created_at"

type (
	// ChartEntriesModel stores daily points, unique per (symbol, date).
	ChartEntriesModel interface {
		// InsertIgnore stores new points and silently skips dates already present.
		// It returns the number of rows actually inserted.
		InsertIgnore(ctx context.Context, entries []*ChartEntries) (int64, error)
		// FindRange returns the symbol's points dated on or after from, ascending.
		FindRange(ctx context.Context, symbol string, from time.Time) ([]*ChartEntries, error)
	}

	defaultChartEntriesModel struct {
		conn  sqlx.SqlConn
		table string
	}

	ChartEntries struct {
		Id             int64           `db:"id"`
		Symbol         string          `db:"symbol"`
		Date           time.Time       `db:"date"`
		Close          decimal.Decimal `db:"close"`
		Volume         decimal.Decimal `db:"volume"`
		Change         decimal.Decimal `db:"change"`
		ChangePercent  decimal.Decimal `db:"change_percent"`
		ChangeOverTime decimal.Decimal `db:"change_over_time"`
		CreatedAt      time.Time       `db:"created_at"`
	}
)

// NewChartEntriesModel returns a model for the iex_chart_entries table.
func NewChartEntriesModel(conn sqlx.SqlConn) ChartEntriesModel {
	return &defaultChartEntriesModel{conn: conn, table: `"public"."iex_chart_entries"`}
}

func (m *defaultChartEntriesModel) InsertIgnore(ctx context.Context, entries []*ChartEntries) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	stmt := fmt.Sprintf(`
INSERT INTO %s (symbol, date, close, volume, change, change_percent, change_over_time, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (symbol, date) DO NOTHING`, m.table)

	var inserted int64
	err := m.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		for _, e := range entries {
			res, err := session.ExecCtx(ctx, stmt,
				e.Symbol, e.Date, e.Close, e.Volume, e.Change, e.ChangePercent, e.ChangeOverTime)
			if err != nil {
				return fmt.Errorf("insert chart entry %s %s: %w", e.Symbol, e.Date.Format(time.DateOnly), err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (m *defaultChartEntriesModel) FindRange(ctx context.Context, symbol string, from time.Time) ([]*ChartEntries, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE symbol = $1 AND date >= $2 ORDER BY date ASC", chartEntriesRows, m.table)
	var resp []*ChartEntries
	if err := m.conn.QueryRowsCtx(ctx, &resp, query, symbol, from); err != nil {
		return nil, err
	}
	return resp, nil
}
