package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	chstore "voltammetry-lab/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the database named in dsn if needed, applies
// the embedded sample schema and returns a connection to that database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	files, err := load(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}
	var stmts [][2]string // file, statement
	for _, m := range files {
		if err := checkSplittable(m.sql); err != nil {
			return nil, fmt.Errorf("migration %s: %w", m.name, err)
		}
		for _, s := range splitStatements(m.sql) {
			stmts = append(stmts, [2]string{m.name, s})
		}
	}

	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	err = admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName))
	_ = admin.Close()
	if err != nil {
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	// the driver has no multi-statement Exec
	for _, s := range stmts {
		if err := conn.Exec(ctx, s[1]); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("apply migration %s: %w", s[0], err)
		}
	}
	return conn, nil
}

// splitStatements drops blank and "--" comment lines and splits on ';'.
// It does not understand quoting; checkSplittable rejects input it would break.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if s := strings.TrimSpace(part); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// checkSplittable rejects a ';' inside a single-quoted literal.
func checkSplittable(sql string) error {
	quoted := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if quoted && i+1 < len(sql) && sql[i+1] == '\'' {
				i++ // '' escape
				continue
			}
			quoted = !quoted
		case ';':
			if quoted {
				return fmt.Errorf("semicolon inside string literal at byte %d", i)
			}
		}
	}
	return nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
