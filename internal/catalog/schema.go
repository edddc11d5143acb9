package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
)

//go:embed sql/schema.sql
var schemaSQL string

// SchemaStatements renders the DDL for the given vector width.
func SchemaStatements(dimensions int) []string {
	rendered := strings.ReplaceAll(schemaSQL, "{{dimensions}}", strconv.Itoa(dimensions))
	var stmts []string
	for _, stmt := range strings.Split(rendered, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// EnsureSchema creates the extension, tables and indexes if missing.
func EnsureSchema(ctx context.Context, db *sql.DB, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("invalid embedding dimensions: %d", dimensions)
	}
	for _, stmt := range SchemaStatements(dimensions) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
