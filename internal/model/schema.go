package model

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

//go:embed schema.sql
var schemaSQL string

// SchemaStatements splits the embedded schema into individual statements.
func SchemaStatements() []string {
	var stmts []string
	for _, part := range strings.Split(schemaSQL, ";") {
		if s := strings.TrimSpace(part); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, conn sqlx.SqlConn) error {
	for _, stmt := range SchemaStatements() {
		if _, err := conn.ExecCtx(ctx, stmt); err != nil {
			return fmt.Errorf("model: apply schema: %w", err)
		}
	}
	logx.WithContext(ctx).Infof("model: schema ensured (%d statements)", len(SchemaStatements()))
	return nil
}
