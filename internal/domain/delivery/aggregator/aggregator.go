// Package aggregator collapses duplicate delivery events before they reach the ledger.
package aggregator

import (
	"sort"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery"
)

// Result is an aggregated batch plus the number of input lines it came from.
type Result struct {
	Events      []delivery.Event
	SourceLines int
}

// Aggregate groups events by identity key and sums their quantities. Groups
// summing to exactly zero are dropped. Output is sorted by key, so the same
// multiset of events always yields the same batch.
func Aggregate(events []delivery.Event) Result {
	sums := make(map[delivery.Key]int64, len(events))
	first := make(map[delivery.Key]delivery.Event, len(events))

	for _, ev := range events {
		k := ev.Key()
		if _, ok := first[k]; !ok {
			first[k] = ev
		}
		sums[k] += ev.Quantity
	}

	keys := make([]delivery.Key, 0, len(sums))
	for k, qty := range sums {
		if qty != 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	out := make([]delivery.Event, 0, len(keys))
	for _, k := range keys {
		ev := first[k]
		ev.Date = delivery.Day(ev.Date)
		ev.Quantity = sums[k]
		out = append(out, ev)
	}
	return Result{Events: out, SourceLines: len(events)}
}
