package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound              = errors.New("record not found")
	ErrInsufficientQuantity  = errors.New("insufficient available quantity")
	ErrQuantityExceedsTotal  = errors.New("available quantity exceeds total quantity")
	ErrQuantityBelowReserved = errors.New("total quantity below reserved units")
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrEquipmentInUse        = errors.New("equipment has open rentals")
	ErrDeliveryExists        = errors.New("delivery already exists for rental")
)

const memoryPath = ":memory:"

type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// NewDB opens (and creates when missing) the sqlite database at path.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dsn := memoryPath
	if path != memoryPath {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// immediate: writers take the lock at BEGIN and wait on busy_timeout instead of failing on upgrade
		dsn = path + "?_txlock=immediate&_busy_timeout=5000"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == memoryPath {
		// each connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
	}

	db, err := Wrap(sqlDB, logger)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	if err := db.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	db.logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

// Wrap builds a DB over an already opened handle without touching the schema.
func Wrap(sqlDB *sql.DB, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{DB: sqlDB, logger: logger}, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE COLLATE NOCASE,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'user',
            phone TEXT NOT NULL DEFAULT '',
            address TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS equipment (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            category TEXT NOT NULL,
            custom_category TEXT NOT NULL DEFAULT '',
            description TEXT NOT NULL DEFAULT '',
            total_quantity INTEGER NOT NULL CHECK (total_quantity >= 0),
            available_quantity INTEGER NOT NULL CHECK (available_quantity >= 0),
            daily_rate REAL NOT NULL CHECK (daily_rate >= 0),
            status TEXT NOT NULL DEFAULT 'available',
            approved BOOLEAN NOT NULL DEFAULT 0,
            approved_by INTEGER,
            approval_notes TEXT NOT NULL DEFAULT '',
            created_by INTEGER,
            image TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS rentals (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            equipment_id INTEGER NOT NULL,
            user_id INTEGER NOT NULL,
            status TEXT NOT NULL,
            start_date DATETIME NOT NULL,
            end_date DATETIME NOT NULL,
            quantity INTEGER NOT NULL CHECK (quantity >= 1),
            total_cost REAL NOT NULL,
            notes TEXT NOT NULL DEFAULT '',
            returned_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS deliveries (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            rental_id INTEGER NOT NULL UNIQUE,
            delivery_person_id INTEGER,
            status TEXT NOT NULL DEFAULT 'assigned',
            address TEXT NOT NULL DEFAULT '',
            notes TEXT NOT NULL DEFAULT '',
            delivered_at DATETIME,
            returned_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS payments (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            rental_id INTEGER NOT NULL,
            user_id INTEGER NOT NULL,
            amount REAL NOT NULL CHECK (amount >= 0),
            method TEXT NOT NULL,
            status TEXT NOT NULL,
            transaction_id TEXT NOT NULL DEFAULT '',
            notes TEXT NOT NULL DEFAULT '',
            processed_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS activity_logs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER,
            action TEXT NOT NULL,
            details TEXT NOT NULL DEFAULT '',
            ip_address TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,
		`CREATE INDEX IF NOT EXISTS idx_equipment_category ON equipment(category)`,
		`CREATE INDEX IF NOT EXISTS idx_equipment_status ON equipment(status, approved)`,
		`CREATE INDEX IF NOT EXISTS idx_rentals_user_id ON rentals(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rentals_equipment_id ON rentals(equipment_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rentals_status_end ON rentals(status, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_rentals_created_at ON rentals(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_person ON deliveries(delivery_person_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_created_at ON payments(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_logs_created_at ON activity_logs(created_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction and commits when fn returns nil.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// dbTime normalizes timestamps so that stored values compare lexically.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func now() time.Time {
	return dbTime(time.Now())
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return dbTime(*t)
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// rowsAffectedOrNotFound maps a zero-row write to ErrNotFound.
func rowsAffectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
