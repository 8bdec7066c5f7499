package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	auth "github.com/goliatone/go-auth-client"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var _ auth.TokenStore = (*SQL)(nil)

// Entry is a persisted key/value row
type Entry struct {
	bun.BaseModel `bun:"table:client_kv,alias:kv"`
	Name          string    `bun:"name,pk" json:"name"`
	Value         string    `bun:"value,notnull" json:"value"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// SQL keeps values in the client_kv table
type SQL struct {
	db  *bun.DB
	now func() time.Time
}

// NewSQL wraps an existing bun database. Call Init to create the table.
func NewSQL(db *bun.DB) *SQL {
	return &SQL{db: db, now: time.Now}
}

// OpenSQLite opens dsn with the sqlite shim driver and creates the table
func OpenSQLite(ctx context.Context, dsn string) (*SQL, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps in-memory databases shared
	sqldb.SetMaxOpenConns(1)

	s := NewSQL(bun.NewDB(sqldb, sqlitedialect.New()))
	if err := s.Init(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the client_kv table if needed
func (s *SQL) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*Entry)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create client_kv: %w", err)
	}
	return nil
}

// DB returns the underlying bun database
func (s *SQL) DB() *bun.DB {
	return s.db
}

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	entry := new(Entry)
	err := s.db.NewSelect().
		Model(entry).
		Where("name = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return entry.Value, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	entry := &Entry{
		Name:      key,
		Value:     value,
		UpdatedAt: s.now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(entry).
		On("CONFLICT (name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*Entry)(nil)).
		Where("name = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close closes the database
func (s *SQL) Close() error {
	return s.db.Close()
}
