package storage

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// ApplySchema executes schema.sql's CREATE TABLE IF NOT EXISTS statements
// against g's connection. Called once by the bootstrap harness at startup
// so the schema text travels with the gateway that depends on it.
func (g *ClickHouseGateway) ApplySchema(ctx context.Context) error {
	for _, stmt := range splitStatements(schemaSQL) {
		if stmt == "" {
			continue
		}
		if err := g.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("storage: apply schema: %w", err)
		}
	}
	return nil
}

func splitStatements(sql string) []string {
	// Drop whole-line comments first: they may contain ';' and they precede
	// the first statement, so splitting before removing them would either
	// break a statement or skip it along with its leading comment.
	var lines []string
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	var out []string
	for _, part := range strings.Split(strings.Join(lines, "\n"), ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
