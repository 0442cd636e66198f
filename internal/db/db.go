// Package db owns the sqlite connection and schema-migration bookkeeping for
// the metadata store. The Connect/Migrate shape mirrors a typical
// postgres-backed db package, with the driver swapped to a pure-Go sqlite
// implementation to keep the archive a single-file database.
package db

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
)

// Connect opens the sqlite database at path and applies pragmas suited to a
// single-writer embedded workload.
func Connect(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, lucerr.New("db.Connect", lucerr.KindConnectState, err)
	}
	// sqlite has one writer; keep the pool small to avoid "database is locked".
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	if err := conn.Ping(); err != nil {
		return nil, lucerr.New("db.Connect", lucerr.KindConnectState, err)
	}
	return conn, nil
}

// Migrate applies every "<N>_name.up.sql" file in migrationsFS, in
// ascending numeric order, that has not already been recorded in
// schema_migrations. An appended migration never rewrites an applied one.
func Migrate(conn *sql.DB, migrationsFS fs.FS, log zerolog.Logger) error {
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, name TEXT NOT NULL)`); err != nil {
		return lucerr.New("db.Migrate", lucerr.KindConnectState, err)
	}

	applied := make(map[int]bool)
	rows, err := conn.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return lucerr.New("db.Migrate", lucerr.KindConnectState, err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return lucerr.New("db.Migrate", lucerr.KindConnectState, err)
		}
		applied[v] = true
	}
	rows.Close()

	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return lucerr.New("db.Migrate", lucerr.KindConnectState, err)
	}
	type migration struct {
		version int
		name    string
	}
	var migrations []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			continue
		}
		v, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		migrations = append(migrations, migration{version: v, name: e.Name()})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		sqlBytes, err := fs.ReadFile(migrationsFS, m.name)
		if err != nil {
			return lucerr.New("db.Migrate", lucerr.KindConnectState, err)
		}
		log.Info().Int("version", m.version).Str("name", m.name).Msg("applying migration")
		tx, err := conn.Begin()
		if err != nil {
			return lucerr.New("db.Migrate", lucerr.KindConnectState, err)
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			tx.Rollback()
			return lucerr.New("db.Migrate: "+m.name, lucerr.KindConnectState, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, filepath.Base(m.name)); err != nil {
			tx.Rollback()
			return lucerr.New("db.Migrate", lucerr.KindConnectState, err)
		}
		if err := tx.Commit(); err != nil {
			return lucerr.New("db.Migrate", lucerr.KindConnectState, err)
		}
	}
	return nil
}
