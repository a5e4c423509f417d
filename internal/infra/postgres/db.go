// Package postgres is the Postgres store backend, built on gorm.
package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"

	"go.uber.org/zap"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig holds database connection pool configuration.
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPool is used by Open.
var DefaultPool = PoolConfig{
	MaxIdleConns:    10,
	MaxOpenConns:    50,
	ConnMaxLifetime: time.Hour,
	ConnMaxIdleTime: 30 * time.Minute,
}

// Open connects to dsn, migrates the schema and installs the ledger guard.
func Open(dsn string, zl *zap.Logger) (*gorm.DB, error) {
	gl := logger.New(
		zap.NewStdLog(zl.Named("gorm")),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{Logger: gl})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(DefaultPool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(DefaultPool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(DefaultPool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(DefaultPool.ConnMaxIdleTime)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables and makes the ledger append-only.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&merchantProfileModel{}, &boletoModel{}, &ledgerModel{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	stmts := []string{
		`CREATE OR REPLACE FUNCTION pix_generation_ledger_append_only() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION 'pix_generation_ledger is append-only';
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS pix_generation_ledger_no_mutation ON pix_generation_ledger`,
		`CREATE TRIGGER pix_generation_ledger_no_mutation
			BEFORE UPDATE OR DELETE ON pix_generation_ledger
			FOR EACH ROW EXECUTE FUNCTION pix_generation_ledger_append_only()`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ledger guard: %w", err)
		}
	}
	return nil
}

// Store implements the boleto, merchant and ledger ports over gorm.
type Store struct {
	db  *gorm.DB
	loc *time.Location
}

// NewStore wraps db. loc is used to present due dates.
func NewStore(db *gorm.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return &domain.ErrTransientIO{Operation: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
