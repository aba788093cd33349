// Package sqlitestore is the wallet's default storage backend: a single
// sqlite database file accessed through database/sql, storing only
// already-encrypted bytes. It evaluates rewritten query predicates in Go
// against each candidate row's tag map rather than pushing pattern
// matching into SQL, since it never needs to decrypt anything to do so.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/keichiri/go-wallet/conf"
	"github.com/keichiri/go-wallet/internal/walletquery"
	"github.com/keichiri/go-wallet/internal/walletrecord"
	"github.com/keichiri/go-wallet/internal/wallettags"
	"github.com/keichiri/go-wallet/internal/walletstore"
	werrors "github.com/keichiri/go-wallet/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	class BLOB NOT NULL,
	name  BLOB NOT NULL,
	value_data BLOB,
	value_key  BLOB,
	PRIMARY KEY (class, name)
);

CREATE TABLE IF NOT EXISTS tags (
	class BLOB NOT NULL,
	name  BLOB NOT NULL,
	tag_key BLOB NOT NULL,
	kind    INTEGER NOT NULL,
	value   BLOB NOT NULL,
	PRIMARY KEY (class, name, tag_key)
);

CREATE INDEX IF NOT EXISTS idx_tags_item ON tags (class, name);
`

const (
	kindEncrypted = 0
	kindPlain     = 1
)

// Store is the default sqlite-backed implementation of walletstore.Store.
type Store struct {
	db *sql.DB
}

var _ walletstore.Store = (*Store)(nil)

// Open opens (creating if necessary) the sqlite database described by cfg.
func Open(cfg conf.StorageConfig) (*Store, error) {
	dsn := cfg.Path
	if cfg.JournalMode != "" || cfg.BusyTimeoutMS > 0 {
		dsn = fmt.Sprintf("%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(%d)",
			cfg.Path, journalModeOrDefault(cfg.JournalMode), busyTimeoutOrDefault(cfg.BusyTimeoutMS))
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, werrors.StorageError(err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, werrors.StorageError(err)
	}

	return &Store{db: db}, nil
}

func journalModeOrDefault(mode string) string {
	if mode == "" {
		return "WAL"
	}
	return mode
}

func busyTimeoutOrDefault(ms int) int {
	if ms <= 0 {
		return 5000
	}
	return ms
}

// Close releases the underlying database handle. Safe to call more than once.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return werrors.StorageError(err)
	}
	return nil
}

// Get implements walletstore.Reader.
func (s *Store) Get(ctx context.Context, class, name []byte, opts walletstore.FetchOptions) (*walletrecord.StorageEntity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value_data, value_key FROM items WHERE class = ? AND name = ?`, class, name)

	var valueData, valueKey []byte
	if err := row.Scan(&valueData, &valueKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, werrors.NotFoundError("no such record")
		}
		return nil, werrors.StorageError(err)
	}

	entity := &walletrecord.StorageEntity{Name: name}

	if opts.RetrieveType {
		entity.Class = class
	}
	if opts.RetrieveValue && valueData != nil {
		entity.Value = &walletrecord.StorageValue{Data: valueData, WrappedKey: valueKey}
	}
	if opts.RetrieveTags {
		tags, err := s.loadTags(ctx, class, name)
		if err != nil {
			return nil, err
		}
		entity.Tags = tags
	}

	return entity, nil
}

func (s *Store) loadTags(ctx context.Context, class, name []byte) (map[string]wallettags.TagValue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag_key, kind, value FROM tags WHERE class = ? AND name = ?`, class, name)
	if err != nil {
		return nil, werrors.StorageError(err)
	}
	defer rows.Close()

	tags := make(map[string]wallettags.TagValue)
	for rows.Next() {
		var key, value []byte
		var kind int
		if err := rows.Scan(&key, &kind, &value); err != nil {
			return nil, werrors.StorageError(err)
		}
		if kind == kindPlain {
			tags[string(key)] = wallettags.PlainTagValue(value)
		} else {
			tags[string(key)] = wallettags.EncryptedTagValue(value)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, werrors.StorageError(err)
	}
	return tags, nil
}

// Add implements walletstore.Writer.
func (s *Store) Add(ctx context.Context, class, name []byte, value *walletrecord.StorageValue, tags map[string]wallettags.TagValue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return werrors.StorageError(err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE class = ? AND name = ?`, class, name).Scan(&existing); err != nil {
		return werrors.StorageError(err)
	}
	if existing > 0 {
		return werrors.AlreadyExistsError("duplicate record")
	}

	var data, key []byte
	if value != nil {
		data, key = value.Data, value.WrappedKey
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO items (class, name, value_data, value_key) VALUES (?, ?, ?, ?)`,
		class, name, data, key); err != nil {
		return werrors.StorageError(err)
	}

	if err := insertTags(ctx, tx, class, name, tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return werrors.StorageError(err)
	}
	return nil
}

func insertTags(ctx context.Context, tx *sql.Tx, class, name []byte, tags map[string]wallettags.TagValue) error {
	for key, v := range tags {
		kind, value := tagKindAndBytes(v)
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO tags (class, name, tag_key, kind, value) VALUES (?, ?, ?, ?, ?)`,
			class, name, []byte(key), kind, value); err != nil {
			return werrors.StorageError(err)
		}
	}
	return nil
}

func tagKindAndBytes(v wallettags.TagValue) (int, []byte) {
	switch tv := v.(type) {
	case wallettags.PlainTagValue:
		return kindPlain, []byte(tv)
	case wallettags.EncryptedTagValue:
		return kindEncrypted, []byte(tv)
	default:
		return kindEncrypted, nil
	}
}

// Update implements walletstore.Writer.
func (s *Store) Update(ctx context.Context, class, name []byte, value *walletrecord.StorageValue) error {
	var data, key []byte
	if value != nil {
		data, key = value.Data, value.WrappedKey
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET value_data = ?, value_key = ? WHERE class = ? AND name = ?`,
		data, key, class, name)
	if err != nil {
		return werrors.StorageError(err)
	}
	return requireAffected(res)
}

// AddTags implements walletstore.Writer.
func (s *Store) AddTags(ctx context.Context, class, name []byte, tags map[string]wallettags.TagValue) error {
	if err := s.requireExists(ctx, class, name); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return werrors.StorageError(err)
	}
	defer tx.Rollback()
	if err := insertTags(ctx, tx, class, name, tags); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return werrors.StorageError(err)
	}
	return nil
}

// UpdateTags implements walletstore.Writer. INSERT OR REPLACE already
// gives add-or-overwrite-by-key semantics, matching update_tags leaving
// other tags on the row untouched.
func (s *Store) UpdateTags(ctx context.Context, class, name []byte, tags map[string]wallettags.TagValue) error {
	return s.AddTags(ctx, class, name, tags)
}

// DeleteTags implements walletstore.Writer.
func (s *Store) DeleteTags(ctx context.Context, class, name []byte, tagKeys [][]byte) error {
	if err := s.requireExists(ctx, class, name); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return werrors.StorageError(err)
	}
	defer tx.Rollback()
	for _, key := range tagKeys {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tags WHERE class = ? AND name = ? AND tag_key = ?`, class, name, key); err != nil {
			return werrors.StorageError(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return werrors.StorageError(err)
	}
	return nil
}

// Delete implements walletstore.Writer.
func (s *Store) Delete(ctx context.Context, class, name []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return werrors.StorageError(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE class = ? AND name = ?`, class, name)
	if err != nil {
		return werrors.StorageError(err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE class = ? AND name = ?`, class, name); err != nil {
		return werrors.StorageError(err)
	}
	if err := tx.Commit(); err != nil {
		return werrors.StorageError(err)
	}
	return nil
}

// Clear implements walletstore.Writer.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tags`); err != nil {
		return werrors.StorageError(err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return werrors.StorageError(err)
	}
	return nil
}

func (s *Store) requireExists(ctx context.Context, class, name []byte) error {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE class = ? AND name = ?`, class, name).Scan(&count); err != nil {
		return werrors.StorageError(err)
	}
	if count == 0 {
		return werrors.NotFoundError("no such record")
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return werrors.StorageError(err)
	}
	if n == 0 {
		return werrors.NotFoundError("no such record")
	}
	return nil
}

// GetAll implements walletstore.Reader.
func (s *Store) GetAll(ctx context.Context, class []byte) (walletstore.Rows, error) {
	rows, _, err := s.Search(ctx, class, nil, walletstore.SearchOptions{
		FetchOptions:    walletstore.FetchOptions{RetrieveType: true, RetrieveValue: true, RetrieveTags: true},
		RetrieveRecords: true,
	})
	return rows, err
}

// Search implements walletstore.Reader. It fetches every row in class,
// then filters in Go against the rewritten predicate tree as each row is
// pulled, since the predicate may reference cleartext plain-tag values
// that only Go-side evaluation needs to see.
func (s *Store) Search(ctx context.Context, class []byte, query *walletquery.Operator, opts walletstore.SearchOptions) (walletstore.Rows, int, error) {
	names, err := s.listNames(ctx, class)
	if err != nil {
		return nil, 0, err
	}

	rows := &sqlRows{store: s, ctx: ctx, class: class, names: names, pos: -1, opts: opts, query: query}

	totalCount := 0
	if opts.RetrieveTotalCount {
		for _, name := range names {
			tags, err := s.loadTags(ctx, class, name)
			if err != nil {
				return nil, 0, err
			}
			ok, err := walletquery.Eval(query, tags)
			if err != nil {
				return nil, 0, err
			}
			if ok {
				totalCount++
			}
		}
	}

	if !opts.RetrieveRecords {
		return nil, totalCount, nil
	}

	return rows, totalCount, nil
}

func (s *Store) listNames(ctx context.Context, class []byte) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM items WHERE class = ?`, class)
	if err != nil {
		return nil, werrors.StorageError(err)
	}
	defer rows.Close()

	var names [][]byte
	for rows.Next() {
		var name []byte
		if err := rows.Scan(&name); err != nil {
			return nil, werrors.StorageError(err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, werrors.StorageError(err)
	}
	return names, nil
}

// sqlRows implements walletstore.Rows (walletiter.RawSource), streaming
// candidate rows and skipping those that fail the predicate.
type sqlRows struct {
	store *Store
	ctx   context.Context
	class []byte
	names [][]byte
	pos   int
	opts  walletstore.SearchOptions
	query *walletquery.Operator

	current *walletrecord.StorageEntity
	err     error
	closed  bool
}

func (r *sqlRows) Next() bool {
	for {
		r.pos++
		if r.pos >= len(r.names) {
			return false
		}
		name := r.names[r.pos]

		tags, err := r.store.loadTags(r.ctx, r.class, name)
		if err != nil {
			r.err = err
			return false
		}

		ok, err := walletquery.Eval(r.query, tags)
		if err != nil {
			r.err = err
			return false
		}
		if !ok {
			continue
		}

		entity, err := r.store.Get(r.ctx, r.class, name, r.opts.FetchOptions)
		if err != nil {
			r.err = err
			return false
		}
		if r.opts.RetrieveTags {
			entity.Tags = tags
		}
		r.current = entity
		return true
	}
}

func (r *sqlRows) Entity() (*walletrecord.StorageEntity, error) {
	return r.current, nil
}

func (r *sqlRows) Err() error {
	return r.err
}

func (r *sqlRows) Close() error {
	r.closed = true
	return nil
}
