// Package reconcile applies delivery events to the ledger.
//
// Each (site, material) pair has at most one active in-transit bucket: its
// latest InTransit row. Dispatches grow the bucket and deliveries shrink it
// (never below zero), re-keying it to the incoming event each time. Every
// event is also recorded as its own status row, so a dispatched quantity is
// counted both in the bucket and in the Dispatched row.
package reconcile

import (
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery"
)

// BucketWrite describes the resulting state of a bucket.
type BucketWrite struct {
	// Create is set when no bucket existed and one must be inserted.
	Create bool
	// ID is the bucket to update when Create is false.
	ID  int64
	Row delivery.LedgerRow
}

// Plan is the set of writes one event produces. The bucket write, when
// present, is applied before the inserts.
type Plan struct {
	Bucket  *BucketWrite
	Inserts []delivery.LedgerRow
}

// Transition computes the writes for ev given the pair's current bucket,
// which may be nil.
func Transition(bucket *delivery.Bucket, ev delivery.Event) Plan {
	switch ev.Status {
	case delivery.StatusDispatched:
		plan := Plan{Inserts: []delivery.LedgerRow{delivery.RowFromEvent(ev, delivery.StatusDispatched)}}
		if bucket == nil {
			row := delivery.RowFromEvent(ev, delivery.StatusInTransit)
			row.DeliveryNo = delivery.TransitNo(ev.DeliveryNo)
			plan.Bucket = &BucketWrite{Create: true, Row: row}
			return plan
		}
		plan.Bucket = rekey(bucket, ev, bucket.Quantity+ev.Quantity)
		return plan

	case delivery.StatusDelivered:
		plan := Plan{Inserts: []delivery.LedgerRow{delivery.RowFromEvent(ev, delivery.StatusDelivered)}}
		if bucket != nil {
			plan.Bucket = rekey(bucket, ev, max(0, bucket.Quantity-ev.Quantity))
		}
		return plan

	default:
		return Plan{Inserts: []delivery.LedgerRow{delivery.RowFromEvent(ev, ev.Status)}}
	}
}

func rekey(bucket *delivery.Bucket, ev delivery.Event, quantity int64) *BucketWrite {
	row := delivery.RowFromEvent(ev, delivery.StatusInTransit)
	row.ID = bucket.ID
	row.Quantity = quantity
	return &BucketWrite{ID: bucket.ID, Row: row}
}
