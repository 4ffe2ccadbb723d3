package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
)

//go:embed schema.sql
var schema string

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Postgres owns the connection pool and hands out repositories bound to it,
// or to a transaction.
type Postgres struct {
	db     *sql.DB
	logger *logging.Logger
}

// Ensure Postgres implements TxRunner
var _ TxRunner = (*Postgres)(nil)

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		db:     db,
		logger: logging.New("postgres"),
	}
}

func (p *Postgres) Products() *PostgresProductRepository {
	return &PostgresProductRepository{q: p.db, logger: p.logger}
}

func (p *Postgres) Orders() *PostgresOrderRepository {
	return &PostgresOrderRepository{q: p.db, logger: p.logger}
}

func (p *Postgres) Categories() *PostgresCategoryRepository {
	return &PostgresCategoryRepository{q: p.db, logger: p.logger}
}

// Migrate creates the schema when it does not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	p.logger.Info("Database schema applied")
	return nil
}

// Ping checks connectivity for readiness probes.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// WithinTx runs fn in a transaction with transaction-bound repositories.
func (p *Postgres) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	tx := Tx{
		Products: &PostgresProductRepository{q: sqlTx, logger: p.logger},
		Orders:   &PostgresOrderRepository{q: sqlTx, logger: p.logger},
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			p.logger.Error("Failed to roll back transaction", logging.Fields{"error": rbErr.Error()})
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
