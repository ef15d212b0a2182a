package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"document-assistant/internal/config"
	"document-assistant/internal/models"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Filename      string    `bun:"filename,notnull" json:"filename"`
	TotalChunks   int       `bun:"total_chunks,notnull" json:"total_chunks"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

type Chunk struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	DocID         int64  `bun:"doc_id,notnull,unique:chunk_position" json:"doc_id"`
	ChunkIndex    int    `bun:"chunk_index,notnull,unique:chunk_position" json:"chunk_index"`
	Text          string `bun:"text,notnull" json:"text"`
	VectorID      string `bun:"vector_id,notnull" json:"vector_id"`
}

// Booking rows are unique on (email, phone_number, date, time).
type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:b"`
	ID            int64                `bun:"id,pk,autoincrement" json:"id"`
	Name          string               `bun:"name,notnull" json:"name"`
	Email         string               `bun:"email,notnull,unique:booking_slot" json:"email"`
	PhoneNumber   string               `bun:"phone_number,notnull,unique:booking_slot" json:"phone_number"`
	Date          string               `bun:"date,notnull,unique:booking_slot" json:"date"`
	Time          string               `bun:"time,notnull,unique:booking_slot" json:"time"`
	Status        models.BookingStatus `bun:"status,notnull" json:"status"`
	CreatedAt     time.Time            `bun:"created_at,notnull" json:"created_at"`
}

// NewDB wraps sqldb with bun, logging every query when debug is set.
func NewDB(sqldb *sql.DB, dialect schema.Dialect, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, dialect)
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database selected by cfg.Driver.
func ConnectDB(cfg *config.DatabaseConfig) (*bun.DB, error) {
	switch cfg.Driver {
	case config.DriverPG:
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return NewDB(sql.OpenDB(pgdriver.NewConnector(opts...)), pgdialect.New(), cfg.Debug), nil
	case config.DriverPostgres:
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return NewDB(sqldb, pgdialect.New(), cfg.Debug), nil
	case config.DriverSQLite:
		return OpenSQLite(cfg.DSN, cfg.Debug)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// OpenSQLite opens a single-connection SQLite database with foreign keys on.
func OpenSQLite(dsn string, debug bool) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	if _, err := sqldb.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return NewDB(sqldb, sqlitedialect.New(), debug), nil
}

// InitDB creates the tables if they do not exist.
func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	_, err := db.NewCreateTable().
		Model((*Chunk)(nil)).
		IfNotExists().
		ForeignKey(`("doc_id") REFERENCES "documents" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Booking)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create bookings table: %w", err)
	}
	return nil
}

// DropTables removes every table created by InitDB.
func DropTables(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{(*Chunk)(nil), (*Document)(nil), (*Booking)(nil)} {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// IsUniqueViolation recognises unique-constraint errors from every supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
	}
	return false
}
