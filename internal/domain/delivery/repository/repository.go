package repository

import (
	"context"
	"time"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery"
)

// LedgerTx is the set of delivery ledger operations available inside one transaction.
type LedgerTx interface {
	// LatestInTransit returns the bucket of a (site, material) pair, or nil when there is none.
	LatestInTransit(ctx context.Context, site, materialCode string) (*delivery.Bucket, error)
	// InsertRow appends a row and returns its ID.
	InsertRow(ctx context.Context, row delivery.LedgerRow) (int64, error)
	// UpdateBucket overwrites the quantity, date and delivery number of a bucket.
	UpdateBucket(ctx context.Context, id int64, quantity int64, date time.Time, deliveryNo string) error
	// SumUpsert adds row.Quantity to the row with the exact same identity key,
	// inserting the row when none exists. It reports whether an existing row was updated.
	SumUpsert(ctx context.Context, row delivery.LedgerRow) (bool, error)
}

// LedgerStore runs work against the delivery ledger atomically.
type LedgerStore interface {
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// ForecastStore appends EDI forecast rows.
type ForecastStore interface {
	AppendForecasts(ctx context.Context, rows []delivery.Forecast) (int, error)
}
