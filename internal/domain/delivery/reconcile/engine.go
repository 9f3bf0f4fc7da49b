package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/repository"
	"github.com/FACorreiaa/delivery-ledger/pkg/metrics"
)

var tracer = otel.Tracer("github.com/FACorreiaa/delivery-ledger/reconcile")

// Mode selects how a batch is written.
type Mode string

const (
	// ModeReconcile runs every event through the bucket state machine.
	ModeReconcile Mode = "reconcile"
	// ModeMerge sum-upserts every event on its identity key.
	ModeMerge Mode = "merge"
)

// ParseMode maps a flag value onto a Mode; empty means ModeReconcile.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeReconcile:
		return ModeReconcile, nil
	case ModeMerge:
		return ModeMerge, nil
	}
	return "", fmt.Errorf("unknown commit mode %q", s)
}

// Report summarizes one applied batch.
type Report struct {
	Applied        int
	Skipped        int
	Inserted       int
	Merged         int
	BucketsCreated int
	BucketsUpdated int
	// Writes counts inserted rows per status.
	Writes map[delivery.Status]int
}

// Engine applies event batches to a ledger store. Each batch is one
// transaction: either every write lands or none does.
type Engine struct {
	store   repository.LedgerStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewEngine creates an engine over an explicitly constructed store.
func NewEngine(store repository.LedgerStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: store, logger: logger}
}

// WithMetrics records ledger writes and batch timings.
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// Apply writes events in the given order using mode. Events missing a site,
// delivery number, date or status are skipped.
func (e *Engine) Apply(ctx context.Context, events []delivery.Event, mode Mode) (Report, error) {
	ctx, span := tracer.Start(ctx, "reconcile.Apply", trace.WithAttributes(
		attribute.String("reconcile.mode", string(mode)),
		attribute.Int("reconcile.events", len(events)),
	))
	defer span.End()

	start := time.Now()
	var report Report
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		report = Report{Writes: make(map[delivery.Status]int)}
		for _, ev := range events {
			if !ev.Reconcilable() {
				report.Skipped++
				continue
			}

			var err error
			if mode == ModeMerge {
				err = merge(ctx, tx, ev, &report)
			} else {
				err = reconcile(ctx, tx, ev, &report)
			}
			if err != nil {
				return fmt.Errorf("event %s/%s/%s: %w", ev.Site, ev.MaterialCode, ev.DeliveryNo, err)
			}
			report.Applied++
		}
		return nil
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	e.metrics.ObserveBatch(string(mode), outcome, time.Since(start))
	if err != nil {
		e.logger.Error("batch rolled back",
			slog.String("mode", string(mode)),
			slog.Int("events", len(events)),
			slog.Any("error", err),
		)
		return Report{}, err
	}

	e.record(report)
	span.SetAttributes(
		attribute.Int("reconcile.applied", report.Applied),
		attribute.Int("reconcile.skipped", report.Skipped),
	)
	e.logger.Info("batch applied",
		slog.String("mode", string(mode)),
		slog.Int("applied", report.Applied),
		slog.Int("skipped", report.Skipped),
		slog.Int("inserted", report.Inserted),
		slog.Int("merged", report.Merged),
		slog.Int("buckets_created", report.BucketsCreated),
		slog.Int("buckets_updated", report.BucketsUpdated),
	)
	return report, nil
}

func reconcile(ctx context.Context, tx repository.LedgerTx, ev delivery.Event, report *Report) error {
	bucket, err := tx.LatestInTransit(ctx, ev.Site, ev.MaterialCode)
	if err != nil {
		return err
	}

	plan := Transition(bucket, ev)
	if bw := plan.Bucket; bw != nil {
		if bw.Create {
			if _, err := tx.InsertRow(ctx, bw.Row); err != nil {
				return err
			}
			report.BucketsCreated++
		} else {
			if err := tx.UpdateBucket(ctx, bw.ID, bw.Row.Quantity, bw.Row.Date, bw.Row.DeliveryNo); err != nil {
				return err
			}
			report.BucketsUpdated++
		}
	}

	for _, row := range plan.Inserts {
		if _, err := tx.InsertRow(ctx, row); err != nil {
			return err
		}
		report.Inserted++
		report.Writes[row.Status]++
	}
	return nil
}

func merge(ctx context.Context, tx repository.LedgerTx, ev delivery.Event, report *Report) error {
	row := delivery.RowFromEvent(ev, ev.Status)
	merged, err := tx.SumUpsert(ctx, row)
	if err != nil {
		return err
	}
	if merged {
		report.Merged++
		return nil
	}
	report.Inserted++
	report.Writes[row.Status]++
	return nil
}

func (e *Engine) record(r Report) {
	for status, n := range r.Writes {
		e.metrics.ObserveLedgerWrites(string(status), n)
	}
	e.metrics.ObserveBuckets("created", r.BucketsCreated)
	e.metrics.ObserveBuckets("updated", r.BucketsUpdated)
}
