package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ ApiCallsModel = (*defaultApiCallsModel)(nil)

const apiCallsRows = "id,api,call_digest,called_at,created_at,updated_at"

type (
	// RowLockFunc runs while the ledger row is exclusively locked. A non-zero
	// return time is recorded as the row's called_at; an error aborts without recording.
	RowLockFunc func(ctx context.Context, row *ApiCalls) (time.Time, error)

	// ApiCallsModel persists the call ledger: one row per (api, call_digest).
	ApiCallsModel interface {
		FindOne(ctx context.Context, api, digest string) (*ApiCalls, error)
		// Touch records a call at the given time, creating the row if needed.
		// called_at never moves backwards.
		Touch(ctx context.Context, api, digest string, at time.Time) error
		// WithRowLock creates the row if absent and runs fn holding an exclusive lock on it.
		WithRowLock(ctx context.Context, api, digest string, fn RowLockFunc) error
	}

	defaultApiCallsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	ApiCalls struct {
		Id         int64        `db:"id"`
		Api        string       `db:"api"`
		CallDigest string       `db:"call_digest"`
		CalledAt   sql.NullTime `db:"called_at"`
		CreatedAt  time.Time    `db:"created_at"`
		UpdatedAt  time.Time    `db:"updated_at"`
	}
)

// NewApiCallsModel returns a model for the api_calls table.
func NewApiCallsModel(conn sqlx.SqlConn) ApiCallsModel {
	return &defaultApiCallsModel{conn: conn, table: `"public"."api_calls"`}
}

func (m *defaultApiCallsModel) FindOne(ctx context.Context, api, digest string) (*ApiCalls, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE api = $1 AND call_digest = $2 LIMIT 1", apiCallsRows, m.table)
	var resp ApiCalls
	switch err := m.conn.QueryRowCtx(ctx, &resp, query, api, digest); err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultApiCallsModel) Touch(ctx context.Context, api, digest string, at time.Time) error {
	stmt := fmt.Sprintf(`
INSERT INTO %s AS c (api, call_digest, called_at, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
ON CONFLICT (api, call_digest) DO UPDATE SET
    called_at = GREATEST(c.called_at, EXCLUDED.called_at),
    updated_at = NOW()`, m.table)
	_, err := m.conn.ExecCtx(ctx, stmt, api, digest, at.UTC())
	return err
}

func (m *defaultApiCallsModel) WithRowLock(ctx context.Context, api, digest string, fn RowLockFunc) error {
	return m.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		insert := fmt.Sprintf(`
INSERT INTO %s (api, call_digest, created_at, updated_at)
VALUES ($1, $2, NOW(), NOW())
ON CONFLICT (api, call_digest) DO NOTHING`, m.table)
		if _, err := session.ExecCtx(ctx, insert, api, digest); err != nil {
			return fmt.Errorf("insert api call: %w", err)
		}

		var row ApiCalls
		lock := fmt.Sprintf("SELECT %s FROM %s WHERE api = $1 AND call_digest = $2 FOR UPDATE", apiCallsRows, m.table)
		if err := session.QueryRowCtx(ctx, &row, lock, api, digest); err != nil {
			return fmt.Errorf("lock api call: %w", err)
		}

		at, err := fn(ctx, &row)
		if err != nil {
			return err
		}
		if at.IsZero() {
			return nil
		}

		update := fmt.Sprintf(`
UPDATE %s SET called_at = GREATEST(COALESCE(called_at, $1), $1), updated_at = NOW()
WHERE id = $2`, m.table)
		if _, err := session.ExecCtx(ctx, update, at.UTC(), row.Id); err != nil {
			return fmt.Errorf("record api call: %w", err)
		}
		return nil
	})
}
