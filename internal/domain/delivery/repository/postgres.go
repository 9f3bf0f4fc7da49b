// Package repository persists the delivery ledger ("DeliveryDetails") and the
// EDI forecast ledger ("EDIGlobal") in PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery"
)

// ErrBucketNotFound is returned when a bucket disappeared between lookup and update.
var ErrBucketNotFound = errors.New("in-transit bucket not found")

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PostgresRepository implements LedgerStore and ForecastStore.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository creates a repository over a pool.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// WithinTx runs fn in a transaction.
func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &ledgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ============================================================================
// Delivery ledger
// ============================================================================

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ledgerTx struct {
	tx querier
}

func (t *ledgerTx) LatestInTransit(ctx context.Context, site, materialCode string) (*delivery.Bucket, error) {
	query := `
		SELECT "ID", "DeliveryNo", "Quantity", "Date"
		FROM "DeliveryDetails"
		WHERE "Site" = $1
		  AND COALESCE("AVOMaterialNo", '') = $2
		  AND "Status" = 'InTransit'
		ORDER BY "Date" DESC, "ID" DESC
		LIMIT 1
	`

	var b delivery.Bucket
	err := t.tx.QueryRow(ctx, query, site, materialCode).Scan(&b.ID, &b.DeliveryNo, &b.Quantity, &b.Date)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up in-transit bucket: %w", err)
	}
	return &b, nil
}

func (t *ledgerTx) InsertRow(ctx context.Context, row delivery.LedgerRow) (int64, error) {
	query := `
		INSERT INTO "DeliveryDetails" ("Site", "AVOMaterialNo", "DeliveryNo", "Quantity", "Date", "Status")
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING "ID"
	`

	var id int64
	err := t.tx.QueryRow(ctx, query,
		row.Site, row.MaterialCode, row.DeliveryNo, row.Quantity, row.Date, string(row.Status),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s row: %w", row.Status, err)
	}
	return id, nil
}

func (t *ledgerTx) UpdateBucket(ctx context.Context, id int64, quantity int64, date time.Time, deliveryNo string) error {
	query := `
		UPDATE "DeliveryDetails"
		SET "Quantity" = $1, "Date" = $2, "DeliveryNo" = $3
		WHERE "ID" = $4 AND "Status" = 'InTransit'
	`

	tag, err := t.tx.Exec(ctx, query, quantity, date, deliveryNo, id)
	if err != nil {
		return fmt.Errorf("failed to update in-transit bucket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bucket %d: %w", id, ErrBucketNotFound)
	}
	return nil
}

func (t *ledgerTx) SumUpsert(ctx context.Context, row delivery.LedgerRow) (bool, error) {
	update := `
		UPDATE "DeliveryDetails"
		SET "Quantity" = "Quantity" + $1
		WHERE "Site" = $2
		  AND "AVOMaterialNo" = $3
		  AND "DeliveryNo" = $4
		  AND "Date" = $5
		  AND "Status" = $6
		RETURNING 1
	`

	var one int
	err := t.tx.QueryRow(ctx, update,
		row.Quantity, row.Site, row.MaterialCode, row.DeliveryNo, row.Date, string(row.Status),
	).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return false, fmt.Errorf("failed to add to existing row: %w", err)
	}

	if _, err := t.InsertRow(ctx, row); err != nil {
		return false, err
	}
	return false, nil
}

// ============================================================================
// EDI forecast ledger
// ============================================================================

var forecastColumns = []string{
	"Site", "ClientCode", "ClientMaterialNo", "AVOMaterialNo",
	"DateFrom", "DateUntil", "Quantity", "ForecastDate",
	"LastDeliveryDate", "LastDeliveredQuantity",
	"CumulatedQuantity", "EDIStatus", "ProductName", "LastDeliveryNo",
}

// AppendForecasts copies rows into EDIGlobal in a single statement.
func (r *PostgresRepository) AppendForecasts(ctx context.Context, rows []delivery.Forecast) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"EDIGlobal"}, forecastColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			f := rows[i]
			return []any{
				f.Site, f.ClientCode, f.ClientMaterialNo, f.MaterialCode,
				f.DateFrom, f.DateUntil, f.Quantity, f.ForecastDate,
				f.LastDeliveryDate, f.LastDeliveredQuantity,
				f.CumulatedQuantity, f.EDIStatus, f.ProductName, f.LastDeliveryNo,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append forecasts: %w", err)
	}
	return int(n), nil
}
