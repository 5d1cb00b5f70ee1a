package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/manifest"
	"github.com/depreview/depreview/pkg/registry"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS packages (
		registry     TEXT NOT NULL,
		name         TEXT NOT NULL,
		orig_name    TEXT NOT NULL,
		author       TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT '',
		repository   TEXT NOT NULL DEFAULT '',
		last_refresh TIMESTAMPTZ NULL,
		PRIMARY KEY (registry, name)
	)`,
	`CREATE TABLE IF NOT EXISTS package_versions (
		registry     TEXT NOT NULL,
		name         TEXT NOT NULL,
		version      TEXT NOT NULL,
		release_date TIMESTAMPTZ NULL,
		yanked       BOOLEAN NOT NULL,
		PRIMARY KEY (registry, name, version),
		FOREIGN KEY (registry, name) REFERENCES packages (registry, name)
	)`,
	`CREATE TABLE IF NOT EXISTS lists (
		id         BIGSERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		registry   TEXT NOT NULL,
		format     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS list_entries (
		list_id    BIGINT NOT NULL REFERENCES lists (id),
		position   INTEGER NOT NULL,
		name       TEXT NOT NULL,
		required   TEXT NOT NULL,
		depends_on JSONB NULL,
		direct     BOOLEAN NULL,
		dep_group  TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (list_id, position)
	)`,
}

// SQLStore persists to PostgreSQL through database/sql and the pgx driver.
type SQLStore struct {
	db *sql.DB
}

// OpenSQL connects to dsn and creates the schema if needed.
func OpenSQL(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "open database")
	}
	s := NewSQLStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) CreateList(ctx context.Context, reg string, format manifest.Format, entries []manifest.Entry) (*List, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	l := &List{
		CreatedAt: time.Now().UTC(),
		Registry:  reg,
		Format:    format,
		Entries:   append([]manifest.Entry(nil), entries...),
	}
	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO lists (created_at, registry, format) VALUES ($1, $2, $3) RETURNING id`,
		l.CreatedAt, reg, string(format),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert list: %w", err)
	}
	l.ID = uint64(id)

	for i, e := range entries {
		deps, err := depsColumn(e.DependsOn)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO list_entries (list_id, position, name, required, depends_on, direct, dep_group)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, i, e.Name, e.Constraint, deps, directColumn(e.Direct), e.Group,
		)
		if err != nil {
			return nil, fmt.Errorf("insert list entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *SQLStore) GetList(ctx context.Context, id uint64) (*List, error) {
	l := &List{ID: id}
	var format string
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, registry, format FROM lists WHERE id = $1`, int64(id),
	).Scan(&l.CreatedAt, &l.Registry, &format)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, listNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("select list: %w", err)
	}
	l.Format = manifest.Format(format)

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, required, depends_on, direct, dep_group
		 FROM list_entries WHERE list_id = $1 ORDER BY position`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("select list entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e      manifest.Entry
			deps   sql.NullString
			direct sql.NullBool
		)
		if err := rows.Scan(&e.Name, &e.Constraint, &deps, &direct, &e.Group); err != nil {
			return nil, err
		}
		if deps.Valid {
			if err := json.Unmarshal([]byte(deps.String), &e.DependsOn); err != nil {
				return nil, fmt.Errorf("decode depends_on of %s: %w", e.Name, err)
			}
		}
		if direct.Valid {
			e.Direct = manifest.DirectOf(direct.Bool)
		}
		l.Entries = append(l.Entries, e)
	}
	return l, rows.Err()
}

func (s *SQLStore) GetPackage(ctx context.Context, id registry.Identity) (*Package, error) {
	p := &Package{Identity: id, Versions: make(map[string]registry.Version)}
	var refresh sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT orig_name, author, description, repository, last_refresh
		 FROM packages WHERE registry = $1 AND name = $2`, id.Registry, id.Name,
	).Scan(&p.OrigName, &p.Author, &p.Description, &p.Repository, &refresh)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, packageNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("select package: %w", err)
	}
	if refresh.Valid {
		p.LastRefresh = refresh.Time.UTC()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT version, release_date, yanked FROM package_versions
		 WHERE registry = $1 AND name = $2`, id.Registry, id.Name)
	if err != nil {
		return nil, fmt.Errorf("select versions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v    registry.Version
			date sql.NullTime
		)
		if err := rows.Scan(&v.Version, &date, &v.Yanked); err != nil {
			return nil, err
		}
		if date.Valid {
			t := date.Time.UTC()
			v.ReleaseDate = &t
		}
		p.Versions[v.Version] = v
	}
	return p, rows.Err()
}

// PutPackage upserts in one transaction. Existing versions only ever have
// their yanked flag raised.
func (s *SQLStore) PutPackage(ctx context.Context, p *Package) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var refresh sql.NullTime
	if !p.LastRefresh.IsZero() {
		refresh = sql.NullTime{Time: p.LastRefresh, Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO packages (registry, name, orig_name, author, description, repository, last_refresh)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (registry, name) DO UPDATE SET
			orig_name = EXCLUDED.orig_name,
			author = EXCLUDED.author,
			description = EXCLUDED.description,
			repository = EXCLUDED.repository,
			last_refresh = EXCLUDED.last_refresh`,
		p.Registry, p.Name, p.OrigName, p.Author, p.Description, p.Repository, refresh,
	)
	if err != nil {
		return fmt.Errorf("upsert package: %w", err)
	}

	for _, v := range p.Versions {
		var date sql.NullTime
		if v.ReleaseDate != nil {
			date = sql.NullTime{Time: *v.ReleaseDate, Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO package_versions (registry, name, version, release_date, yanked)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (registry, name, version) DO UPDATE SET
				yanked = package_versions.yanked OR EXCLUDED.yanked,
				release_date = COALESCE(package_versions.release_date, EXCLUDED.release_date)`,
			p.Registry, p.Name, v.Version, date, v.Yanked,
		)
		if err != nil {
			return fmt.Errorf("upsert version %s: %w", v.Version, err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Close() error { return s.db.Close() }

func depsColumn(d manifest.Deps) (sql.NullString, error) {
	if !d.Known() {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func directColumn(d manifest.Direct) sql.NullBool {
	if !d.Known() {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: d == manifest.DirectYes, Valid: true}
}

var _ Store = (*SQLStore)(nil)
