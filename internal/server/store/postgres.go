package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pulsekeeper/internal/dbx"
	"github.com/dmitrijs2005/pulsekeeper/internal/keylock"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresStore keeps every record as one row of the documents table,
// keyed by (collection, key). Exclusive creation relies on the primary key.
type PostgresStore struct {
	db    dbx.DBTX
	locks *keylock.Locker
}

var _ DocumentStore = (*PostgresStore)(nil)

func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db, locks: keylock.New()}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// OpenPostgres connects with the pgx driver, checks the connection and
// migrates the schema. The caller owns the returned *sql.DB.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("db migration error: %w", err)
	}
	return NewPostgresStore(db), db, nil
}

func (s *PostgresStore) Create(ctx context.Context, collection, key string, v any) error {
	if err := validateAddress(collection, key); err != nil {
		return err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return storageFailure("encode", collection, key, err)
	}

	unlock := s.locks.Lock(collection, key)
	defer unlock()

	query :=
		`INSERT INTO documents (collection, key, body)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (collection, key) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query, collection, key, body)
	if err != nil {
		return storageFailure("insert", collection, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageFailure("insert", collection, key, err)
	}
	if n == 0 {
		return alreadyExists(collection, key)
	}
	return nil
}

func (s *PostgresStore) Read(ctx context.Context, collection, key string, v any) error {
	if err := validateAddress(collection, key); err != nil {
		return err
	}

	unlock := s.locks.Lock(collection, key)
	defer unlock()

	query :=
		`SELECT body FROM documents
		 WHERE collection = $1 AND key = $2`

	var body []byte
	if err := s.db.QueryRowContext(ctx, query, collection, key).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(collection, key)
		}
		return storageFailure("select", collection, key, err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return corrupt(collection, key, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, key string, v any) error {
	if err := validateAddress(collection, key); err != nil {
		return err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return storageFailure("encode", collection, key, err)
	}

	unlock := s.locks.Lock(collection, key)
	defer unlock()

	query :=
		`UPDATE documents SET body = $3, updated_at = now()
		 WHERE collection = $1 AND key = $2`

	return s.execOne(ctx, "update", collection, key, query, collection, key, body)
}

func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	if err := validateAddress(collection, key); err != nil {
		return err
	}

	unlock := s.locks.Lock(collection, key)
	defer unlock()

	query :=
		`DELETE FROM documents
		 WHERE collection = $1 AND key = $2`

	return s.execOne(ctx, "delete", collection, key, query, collection, key)
}

func (s *PostgresStore) Keys(ctx context.Context, collection string) ([]string, error) {
	if err := validateName("collection", collection); err != nil {
		return nil, err
	}

	query :=
		`SELECT key FROM documents
		 WHERE collection = $1
		 ORDER BY key`

	rows, err := s.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, storageFailure("list", collection, "", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, storageFailure("list", collection, "", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, storageFailure("list", collection, "", err)
	}
	return keys, nil
}

// execOne runs a statement that must touch exactly one row; zero rows means
// the record does not exist.
func (s *PostgresStore) execOne(ctx context.Context, op, collection, key, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return storageFailure(op, collection, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageFailure(op, collection, key, err)
	}
	if n == 0 {
		return notFound(collection, key)
	}
	return nil
}
