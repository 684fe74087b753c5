// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package scancache provides a SQLite-backed [sideband.Cache].
package scancache

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	jsonv2 "github.com/go-json-experiment/json"
	"zb.256lights.llc/sideband/sideband"
	"zombiezen.com/go/log"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitemigration"
	"zombiezen.com/go/sqlite/sqlitex"
)

// DB is a cache of verified sideband log contents
// keyed by the logs' envelope identity.
// It is safe to use from multiple goroutines concurrently.
type DB struct {
	pool *sqlitemigration.Pool
	now  func() time.Time
}

var _ sideband.Cache = (*DB)(nil)

// Open opens the cache database at the given path,
// creating it if it does not exist.
// The schema is migrated lazily on first use.
func Open(path string) *DB {
	return &DB{
		pool: sqlitemigration.NewPool(path, loadSchema(), sqlitemigration.Options{
			Flags:       sqlite.OpenCreate | sqlite.OpenReadWrite,
			PrepareConn: prepareConn,
			OnStartMigrate: func() {
				log.Debugf(context.Background(), "Migrating scan cache...")
			},
			OnReady: func() {
				log.Debugf(context.Background(), "Scan cache ready")
			},
			OnError: func(err error) {
				log.Errorf(context.Background(), "Scan cache migration: %v", err)
			},
		}),
		now: time.Now,
	}
}

// Close releases any resources associated with the database.
func (db *DB) Close() error {
	return db.pool.Close()
}

// Get returns the paths stored for the given key
// and marks the entry as recently used.
func (db *DB) Get(ctx context.Context, key sideband.CacheKey) (paths []string, found bool, err error) {
	conn, err := db.pool.Get(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("get %v from scan cache: %v", key.ID, err)
	}
	defer db.pool.Put(conn)

	paths, found, err = get(conn, key, db.now())
	if err != nil {
		return nil, false, fmt.Errorf("get %v from scan cache: %v", key.ID, err)
	}
	return paths, found, nil
}

func get(conn *sqlite.Conn, key sideband.CacheKey, now time.Time) (paths []string, found bool, err error) {
	defer sqlitex.Save(conn)(&err)

	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "get.sql", &sqlitex.ExecOptions{
		Named: keyArgs(key),
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			if err := jsonv2.Unmarshal([]byte(stmt.GetText("paths")), &paths); err != nil {
				return fmt.Errorf("paths: %v", err)
			}
			return nil
		},
	})
	if err != nil || !found {
		return nil, false, err
	}
	if paths == nil {
		paths = []string{}
	}

	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "touch.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":envelope_id": key.ID.String(),
			":now":         now.UnixMilli(),
		},
	})
	if err != nil {
		return nil, false, err
	}
	return paths, true, nil
}

// Put stores the paths for the given key,
// replacing any previous entry for the same envelope ID.
func (db *DB) Put(ctx context.Context, key sideband.CacheKey, paths []string) error {
	if paths == nil {
		paths = []string{}
	}
	pathsJSON, err := jsonv2.Marshal(paths)
	if err != nil {
		return fmt.Errorf("put %v in scan cache: %v", key.ID, err)
	}

	conn, err := db.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("put %v in scan cache: %v", key.ID, err)
	}
	defer db.pool.Put(conn)

	args := keyArgs(key)
	args[":paths"] = string(pathsJSON)
	args[":now"] = db.now().UnixMilli()
	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "put.sql", &sqlitex.ExecOptions{
		Named: args,
	})
	if err != nil {
		return fmt.Errorf("put %v in scan cache: %v", key.ID, err)
	}
	return nil
}

// Prune deletes entries that have not been used since the given time
// and returns the number of entries deleted.
func (db *DB) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	conn, err := db.pool.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("prune scan cache: %v", err)
	}
	defer db.pool.Put(conn)

	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "prune.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":cutoff": cutoff.UnixMilli(),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("prune scan cache: %v", err)
	}
	return int64(conn.Changes()), nil
}

// Len returns the number of entries in the cache.
func (db *DB) Len(ctx context.Context) (int64, error) {
	conn, err := db.pool.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("count scan cache entries: %v", err)
	}
	defer db.pool.Put(conn)

	var n int64
	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "count.sql", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.GetInt64("n")
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("count scan cache entries: %v", err)
	}
	return n, nil
}

// keyArgs returns the named parameters for a key.
// SQLite integers are signed,
// so the unsigned header fields are stored with the same bit pattern.
func keyArgs(key sideband.CacheKey) map[string]any {
	return map[string]any{
		":envelope_id": key.ID.String(),
		":checksum":    int64(key.Checksum),
		":length":      int64(key.Length),
	}
}

func prepareConn(conn *sqlite.Conn) error {
	return sqlitex.ExecuteTransient(conn, "PRAGMA journal_mode = wal;", nil)
}

//go:embed sql/*.sql
//go:embed sql/schema/*.sql
var rawSQLFiles embed.FS

func sqlFiles() fs.FS {
	sub, err := fs.Sub(rawSQLFiles, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

var schemaState struct {
	init   sync.Once
	schema sqlitemigration.Schema
	err    error
}

func loadSchema() sqlitemigration.Schema {
	schemaState.init.Do(func() {
		for i := 1; ; i++ {
			migration, err := fs.ReadFile(sqlFiles(), fmt.Sprintf("schema/%02d.sql", i))
			if errors.Is(err, fs.ErrNotExist) {
				break
			}
			if err != nil {
				schemaState.err = err
				return
			}
			schemaState.schema.Migrations = append(schemaState.schema.Migrations, string(migration))
		}
	})

	if schemaState.err != nil {
		panic(schemaState.err)
	}
	return schemaState.schema
}
