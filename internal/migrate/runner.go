// Package migrate 按版本号顺序执行 SQL 迁移（仅向上）
package migrate

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var embedded embed.FS

const versionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// DB *pgxpool.Pool 的能力子集
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Migration 一个向上迁移文件
type Migration struct {
	Version int64
	Path    string
}

// Runner 迁移执行器；Dir 为空或不存在时使用内置迁移
type Runner struct {
	Dir    string
	Logger *zap.Logger
}

func (r Runner) source() (fs.FS, error) {
	if r.Dir != "" {
		if st, err := os.Stat(r.Dir); err == nil && st.IsDir() {
			return os.DirFS(r.Dir), nil
		}
	}
	return fs.Sub(embedded, "sql")
}

// Pending 返回尚未应用的迁移（按版本升序）
func (r Runner) Pending(ctx context.Context, db DB) ([]Migration, error) {
	src, err := r.source()
	if err != nil {
		return nil, err
	}
	all, err := discover(src)
	if err != nil {
		return nil, err
	}
	done, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}
	return pending(all, done), nil
}

// Up 逐个执行未应用的迁移，每个版本一个事务
func (r Runner) Up(ctx context.Context, db DB) error {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	src, err := r.source()
	if err != nil {
		return err
	}
	todo, err := r.Pending(ctx, db)
	if err != nil {
		return err
	}
	for _, m := range todo {
		body, err := fs.ReadFile(src, m.Path)
		if err != nil {
			return err
		}
		if err := apply(ctx, db, m, string(body)); err != nil {
			return err
		}
		logger.Info("migration applied", zap.Int64("version", m.Version), zap.String("file", m.Path))
	}
	return nil
}

func apply(ctx context.Context, db DB, m Migration, body string) error {
	return pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, body); err != nil {
			return fmt.Errorf("migration %s: %w", m.Path, err)
		}
		_, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES($1)`, m.Version)
		return err
	})
}

func appliedVersions(ctx context.Context, db DB) (map[int64]bool, error) {
	if _, err := db.Exec(ctx, versionTable); err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	done := make(map[int64]bool, len(versions))
	for _, v := range versions {
		done[v] = true
	}
	return done, nil
}

func pending(all []Migration, done map[int64]bool) []Migration {
	var out []Migration
	for _, m := range all {
		if !done[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

// discover 扫描 <version>_<name>_up.sql 按版本排序；版本重复视为错误
func discover(src fs.FS) ([]Migration, error) {
	var files []Migration
	seen := make(map[int64]string)
	err := fs.WalkDir(src, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		name := path.Base(p)
		if !strings.HasSuffix(name, "_up.sql") {
			return nil
		}
		prefix, _, _ := strings.Cut(name, "_")
		ver, perr := strconv.ParseInt(prefix, 10, 64)
		if perr != nil {
			return nil
		}
		if prev, dup := seen[ver]; dup {
			return fmt.Errorf("duplicate migration version %d: %s, %s", ver, prev, p)
		}
		seen[ver] = p
		files = append(files, Migration{Version: ver, Path: p})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}
