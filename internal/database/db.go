package database

import (
	"database/sql"
	"fmt"
	"time"

	"comanda/internal/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // PostgreSQL dialect, registers lib/pq
	_ "github.com/mattn/go-sqlite3"              // SQLite driver
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Open connects to the configured database and sizes the pool for the driver.
// SQLite allows a single writer, so its pool is pinned to one connection and
// every transaction is serialized by database/sql itself.
func Open(driver, dsn string, logMode bool) (*gorm.DB, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.LogMode(logMode)

	if driver == DriverSQLite {
		db.DB().SetMaxOpenConns(1)
		db.DB().SetMaxIdleConns(1)
		// An in-memory database lives only as long as its connection
		db.DB().SetConnMaxLifetime(0)
	} else {
		db.DB().SetMaxIdleConns(10)
		db.DB().SetMaxOpenConns(100)
		db.DB().SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

// OpenMemory opens a private in-memory SQLite database with the schema applied.
func OpenMemory() (*gorm.DB, error) {
	db, err := Open(DriverSQLite, ":memory:", false)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the kitchen needs
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Ingredient{},
		&models.Menu{},
		&models.RecipeLine{},
		&models.Customer{},
		&models.Order{},
		&models.OrderLine{},
	).Error
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Transact runs fn inside a transaction. When db is already bound to a
// transaction fn joins it, so composed operations commit or roll back together.
func Transact(db *gorm.DB, fn func(tx *gorm.DB) error) (err error) {
	if InTransaction(db) {
		return fn(db)
	}

	tx := db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// InTransaction reports whether db is bound to an open transaction
func InTransaction(db *gorm.DB) bool {
	_, ok := db.CommonDB().(*sql.Tx)
	return ok
}

// ForUpdate adds a row lock to the next query on dialects that support it.
// SQLite serializes writers through its single connection instead.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialect().GetName() == DriverPostgres {
		return tx.Set("gorm:query_option", "FOR UPDATE")
	}
	return tx
}
