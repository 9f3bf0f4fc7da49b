package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/repository"
	"github.com/FACorreiaa/delivery-ledger/pkg/metrics"
)

// memStore is an in-memory ledger with all-or-nothing transactions.
type memStore struct {
	rows   []delivery.LedgerRow
	nextID int64
	failOn delivery.Status
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.LedgerTx) error) error {
	work := &memTx{store: &memStore{
		rows:   append([]delivery.LedgerRow(nil), s.rows...),
		nextID: s.nextID,
		failOn: s.failOn,
	}}
	if err := fn(ctx, work); err != nil {
		return err
	}
	s.rows, s.nextID = work.store.rows, work.store.nextID
	return nil
}

func (s *memStore) byStatus(status delivery.Status) []delivery.LedgerRow {
	var out []delivery.LedgerRow
	for _, r := range s.rows {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

type memTx struct {
	store *memStore
}

func (t *memTx) LatestInTransit(ctx context.Context, site, material string) (*delivery.Bucket, error) {
	var best *delivery.LedgerRow
	for i := range t.store.rows {
		r := &t.store.rows[i]
		if r.Site != site || r.MaterialCode != material || r.Status != delivery.StatusInTransit {
			continue
		}
		if best == nil || r.Date.After(best.Date) || (r.Date.Equal(best.Date) && r.ID > best.ID) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	return &delivery.Bucket{ID: best.ID, DeliveryNo: best.DeliveryNo, Quantity: best.Quantity, Date: best.Date}, nil
}

func (t *memTx) InsertRow(ctx context.Context, row delivery.LedgerRow) (int64, error) {
	if t.store.failOn != "" && row.Status == t.store.failOn {
		return 0, errors.New("constraint violation")
	}
	t.store.nextID++
	row.ID = t.store.nextID
	t.store.rows = append(t.store.rows, row)
	return row.ID, nil
}

func (t *memTx) UpdateBucket(ctx context.Context, id int64, quantity int64, date time.Time, deliveryNo string) error {
	for i := range t.store.rows {
		if t.store.rows[i].ID == id {
			t.store.rows[i].Quantity = quantity
			t.store.rows[i].Date = date
			t.store.rows[i].DeliveryNo = deliveryNo
			return nil
		}
	}
	return repository.ErrBucketNotFound
}

func (t *memTx) SumUpsert(ctx context.Context, row delivery.LedgerRow) (bool, error) {
	for i := range t.store.rows {
		r := &t.store.rows[i]
		if r.Site == row.Site && r.MaterialCode == row.MaterialCode && r.DeliveryNo == row.DeliveryNo &&
			r.Date.Equal(row.Date) && r.Status == row.Status {
			r.Quantity += row.Quantity
			return true, nil
		}
	}
	_, err := t.InsertRow(ctx, row)
	return false, err
}

func TestEngine_Apply_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	m := metrics.New(prometheus.NewRegistry())
	engine := NewEngine(store, nil).WithMetrics(m)

	report, err := engine.Apply(ctx, []delivery.Event{ev(delivery.StatusDispatched, 30, "D2", d2)}, ModeReconcile)
	require.NoError(t, err)
	assert.Equal(t, 1, report.BucketsCreated)

	buckets := store.byStatus(delivery.StatusInTransit)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(30), buckets[0].Quantity)
	assert.Equal(t, "D2_T", buckets[0].DeliveryNo)
	assert.Len(t, store.byStatus(delivery.StatusDispatched), 1)

	// later events in one batch see the bucket written by earlier ones
	report, err = engine.Apply(ctx, []delivery.Event{
		ev(delivery.StatusDispatched, 70, "D3", d3),
		ev(delivery.StatusDelivered, 60, "D4", d3),
	}, ModeReconcile)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Applied)
	assert.Equal(t, 2, report.BucketsUpdated)

	buckets = store.byStatus(delivery.StatusInTransit)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(40), buckets[0].Quantity)
	assert.Equal(t, "D4", buckets[0].DeliveryNo)
	assert.Len(t, store.byStatus(delivery.StatusDispatched), 2)
	assert.Len(t, store.byStatus(delivery.StatusDelivered), 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LedgerWrites.WithLabelValues("Dispatched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BucketChanges.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BucketChanges.WithLabelValues("updated")))
}

func TestEngine_Apply_LatestBucketWins(t *testing.T) {
	store := &memStore{rows: []delivery.LedgerRow{
		{ID: 1, Site: "S", MaterialCode: "M", DeliveryNo: "OLD", Quantity: 5, Date: d1, Status: delivery.StatusInTransit},
		{ID: 2, Site: "S", MaterialCode: "M", DeliveryNo: "NEW", Quantity: 100, Date: d2, Status: delivery.StatusInTransit},
	}, nextID: 2}

	_, err := NewEngine(store, nil).Apply(context.Background(),
		[]delivery.Event{ev(delivery.StatusDelivered, 200, "D3", d3)}, ModeReconcile)
	require.NoError(t, err)

	assert.Equal(t, int64(5), store.rows[0].Quantity)
	assert.Equal(t, int64(0), store.rows[1].Quantity)
	assert.Equal(t, "D3", store.rows[1].DeliveryNo)
}

func TestEngine_Apply_SkipsIncompleteEvents(t *testing.T) {
	store := &memStore{}

	noSite := ev(delivery.StatusInTransit, 1, "D1", d1)
	noSite.Site = ""
	noDate := ev(delivery.StatusInTransit, 1, "D1", time.Time{})
	noStatus := ev("", 1, "D1", d1)
	noNumber := ev(delivery.StatusInTransit, 1, "", d1)
	noMaterial := ev(delivery.StatusInTransit, 1, "D1", d1)
	noMaterial.MaterialCode = ""

	report, err := NewEngine(store, nil).Apply(context.Background(),
		[]delivery.Event{noSite, noDate, noStatus, noNumber, noMaterial}, ModeReconcile)

	require.NoError(t, err)
	assert.Equal(t, 4, report.Skipped)
	assert.Equal(t, 1, report.Applied)
	assert.Len(t, store.rows, 1)
}

func TestEngine_Apply_RollsBackWholeBatch(t *testing.T) {
	store := &memStore{failOn: delivery.StatusDelivered}

	_, err := NewEngine(store, nil).Apply(context.Background(), []delivery.Event{
		ev(delivery.StatusDispatched, 30, "D2", d2),
		ev(delivery.StatusDelivered, 10, "D3", d3),
	}, ModeReconcile)

	assert.ErrorContains(t, err, "constraint violation")
	assert.Empty(t, store.rows)
}

func TestEngine_Apply_Merge(t *testing.T) {
	store := &memStore{}
	engine := NewEngine(store, nil)
	batch := []delivery.Event{ev(delivery.StatusDelivered, 10, "D1", d1)}

	report, err := engine.Apply(context.Background(), batch, ModeMerge)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)

	report, err = engine.Apply(context.Background(), batch, ModeMerge)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)

	require.Len(t, store.rows, 1)
	assert.Equal(t, int64(20), store.rows[0].Quantity)
	assert.Empty(t, store.byStatus(delivery.StatusInTransit))
}

func TestEngine_Apply_Postgres(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM "DeliveryDetails"`).
		WithArgs("S", "M").
		WillReturnRows(pgxmock.NewRows([]string{"ID", "DeliveryNo", "Quantity", "Date"}).
			AddRow(int64(4), "D1_T", int64(100), d1))
	mock.ExpectExec(`UPDATE "DeliveryDetails"`).
		WithArgs(int64(130), d2, "D2", int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO "DeliveryDetails"`).
		WithArgs("S", "M", "D2", int64(30), d2, "Dispatched").
		WillReturnRows(pgxmock.NewRows([]string{"ID"}).AddRow(int64(5)))
	mock.ExpectCommit()

	engine := NewEngine(repository.NewPostgresRepository(mock), nil)
	report, err := engine.Apply(context.Background(),
		[]delivery.Event{ev(delivery.StatusDispatched, 30, "D2", d2)}, ModeReconcile)

	require.NoError(t, err)
	assert.Equal(t, 1, report.BucketsUpdated)
	assert.Equal(t, 1, report.Writes[delivery.StatusDispatched])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeReconcile, m)

	m, err = ParseMode("merge")
	require.NoError(t, err)
	assert.Equal(t, ModeMerge, m)

	_, err = ParseMode("replace")
	assert.Error(t, err)
}
