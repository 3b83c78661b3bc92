package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

type DB interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	Close() error
	DriverName() string
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	PingContext(ctx context.Context) error
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	Rebind(query string) string
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	SetConnMaxLifetime(d time.Duration)
	SetMaxIdleConns(n int)
	SetMaxOpenConns(n int)
	Stats() sql.DBStats
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error)
	Dialect() Dialect
	Flavor() sqlbuilder.Flavor
	TableExists(ctx context.Context, table string) (bool, error)
	SQLX() *sqlx.DB
}

// Querier is the subset of DB and Tx the repositories run statements through.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Conn returns the transaction carried by ctx, falling back to db. SQLite runs
// on a single connection, so statements issued inside a transaction must use it.
func Conn(ctx context.Context, db DB) Querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return db
}

type Config struct {
	Dialect         Dialect
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ReadRetries     int
	ReadRetryDelay  time.Duration
}

type DatabaseInstance struct {
	*sqlx.DB
	logger  ectologger.Logger
	dialect Dialect
	retry   RetryConfig
}

func NewDatabaseInstance(db *sqlx.DB, dialect Dialect, logger ectologger.Logger, retry RetryConfig) DB {
	return &DatabaseInstance{
		DB:      db,
		logger:  logger,
		dialect: dialect,
		retry:   retry,
	}
}

// Open connects to the configured store. SQLite databases are pinned to a
// single connection and get the embedded schema applied; Postgres schemas
// are owned by the migrations.
func Open(ctx context.Context, cfg Config, logger ectologger.Logger) (DB, error) {
	db, err := sqlx.Open(cfg.Dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Dialect, err)
	}

	switch cfg.Dialect {
	case DialectSQLite:
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	default:
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach %s database: %w", cfg.Dialect, err)
	}

	if cfg.Dialect == DialectSQLite {
		if err := ApplySQLiteSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	logger.WithFields(map[string]any{
		"dialect":        cfg.Dialect,
		"max_open_conns": db.Stats().MaxOpenConnections,
	}).Info("Connected to registry database")

	return NewDatabaseInstance(db, cfg.Dialect, logger, RetryConfig{
		Attempts: cfg.ReadRetries,
		Delay:    cfg.ReadRetryDelay,
	}), nil
}

func (db *DatabaseInstance) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error) {
	return GetTx(ctx, db.logger, db, opts)
}

func (db *DatabaseInstance) Dialect() Dialect {
	return db.dialect
}

func (db *DatabaseInstance) Flavor() sqlbuilder.Flavor {
	return db.dialect.Flavor()
}

func (db *DatabaseInstance) SQLX() *sqlx.DB {
	return db.DB
}

// TableExists reports whether the named table is present in the store.
func (db *DatabaseInstance) TableExists(ctx context.Context, table string) (bool, error) {
	sb := db.Flavor().NewSelectBuilder()
	sb.Select("COUNT(*)")
	switch db.dialect {
	case DialectSQLite:
		sb.From("sqlite_master")
		sb.Where(sb.Equal("type", "table"), sb.Equal("name", table))
	default:
		sb.From("information_schema.tables")
		sb.Where(sb.Equal("table_name", table))
	}

	query, args := sb.Build()

	var count int
	if err := db.GetContext(ctx, &count, query, args...); err != nil {
		return false, err
	}
	return count > 0, nil
}
