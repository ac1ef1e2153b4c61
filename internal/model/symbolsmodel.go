package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ SymbolsModel = (*defaultSymbolsModel)(nil)

const symbolsRows = "id,iex_id,symbol,exchange,name,date,type,region,currency,created_at,updated_at"

type (
	// SymbolsModel is the local symbol catalog keyed by the provider's stable iex_id.
	SymbolsModel interface {
		// Upsert inserts or refreshes a symbol; iex_id never changes once stored.
		Upsert(ctx context.Context, data *Symbols) error
		FindOneBySymbol(ctx context.Context, symbol string) (*Symbols, error)
		FindOneByIexId(ctx context.Context, iexID string) (*Symbols, error)
		// FindByIsin joins the ISIN's mapping group with the catalog. Tombstones and
		// ids missing from the catalog yield nothing.
		FindByIsin(ctx context.Context, isin string) ([]*Symbols, error)
		// Search matches a symbol prefix or a name substring, case-insensitively.
		Search(ctx context.Context, term string, limit int) ([]*Symbols, error)
		DeleteAll(ctx context.Context) (int64, error)
	}

	defaultSymbolsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	Symbols struct {
		Id        int64          `db:"id"`
		IexId     string         `db:"iex_id"`
		Symbol    string         `db:"symbol"`
		Exchange  sql.NullString `db:"exchange"`
		Name      string         `db:"name"`
		Date      time.Time      `db:"date"`
		Type      string         `db:"type"`
		Region    string         `db:"region"`
		Currency  string         `db:"currency"`
		CreatedAt time.Time      `db:"created_at"`
		UpdatedAt time.Time      `db:"updated_at"`
	}
)

// NewSymbolsModel returns a model for the iex_symbols table.
func NewSymbolsModel(conn sqlx.SqlConn) SymbolsModel {
	return &defaultSymbolsModel{conn: conn, table: `"public"."iex_symbols"`}
}

func (m *defaultSymbolsModel) Upsert(ctx context.Context, data *Symbols) error {
	stmt := fmt.Sprintf(`
INSERT INTO %s (iex_id, symbol, exchange, name, date, type, region, currency, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
ON CONFLICT (iex_id) DO UPDATE SET
    symbol = EXCLUDED.symbol,
    exchange = EXCLUDED.exchange,
    name = EXCLUDED.name,
    date = EXCLUDED.date,
    type = EXCLUDED.type,
    region = EXCLUDED.region,
    currency = EXCLUDED.currency,
    updated_at = NOW()`, m.table)
	_, err := m.conn.ExecCtx(ctx, stmt,
		data.IexId, data.Symbol, data.Exchange, data.Name, data.Date,
		data.Type, data.Region, data.Currency)
	return err
}

func (m *defaultSymbolsModel) FindOneBySymbol(ctx context.Context, symbol string) (*Symbols, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE symbol = $1 ORDER BY id LIMIT 1", symbolsRows, m.table)
	return m.findOne(ctx, query, symbol)
}

func (m *defaultSymbolsModel) FindOneByIexId(ctx context.Context, iexID string) (*Symbols, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE iex_id = $1 LIMIT 1", symbolsRows, m.table)
	return m.findOne(ctx, query, iexID)
}

func (m *defaultSymbolsModel) findOne(ctx context.Context, query string, arg any) (*Symbols, error) {
	var resp Symbols
	switch err := m.conn.QueryRowCtx(ctx, &resp, query, arg); err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultSymbolsModel) FindByIsin(ctx context.Context, isin string) ([]*Symbols, error) {
	query := fmt.Sprintf(`
SELECT %s FROM %s s
JOIN "public"."iex_isin_mappings" m ON m.iex_id = s.iex_id
WHERE m.isin = $1
ORDER BY s.symbol, s.iex_id`, prefixed("s", symbolsRows), m.table)
	var resp []*Symbols
	if err := m.conn.QueryRowsCtx(ctx, &resp, query, isin); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *defaultSymbolsModel) Search(ctx context.Context, term string, limit int) ([]*Symbols, error) {
	term = strings.TrimSpace(term)
	if term == "" || limit <= 0 {
		return nil, nil
	}
	pattern := EscapeLike(term)
	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE symbol ILIKE ($1 || '%%') ESCAPE '\' OR name ILIKE ('%%' || $1 || '%%') ESCAPE '\'
ORDER BY (UPPER(symbol) = UPPER($2)) DESC, symbol, iex_id
LIMIT $3`, symbolsRows, m.table)
	var resp []*Symbols
	if err := m.conn.QueryRowsCtx(ctx, &resp, query, pattern, term, limit); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *defaultSymbolsModel) DeleteAll(ctx context.Context) (int64, error) {
	res, err := m.conn.ExecCtx(ctx, fmt.Sprintf("DELETE FROM %s", m.table))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EscapeLike escapes LIKE metacharacters so user input matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
