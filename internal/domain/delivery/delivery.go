// Package delivery holds the canonical delivery ledger types shared by the
// extraction, normalization, aggregation and reconciliation packages.
package delivery

import (
	"strings"
	"time"
)

// Status is a ledger status. The canonical values are the constants below;
// any other non-empty value is an accepted pass-through status.
type Status string

const (
	StatusInTransit  Status = "InTransit"
	StatusDispatched Status = "Dispatched"
	StatusDelivered  Status = "Delivered"
)

// DateLayout is the ISO calendar date layout used on the wire and in keys.
const DateLayout = "2006-01-02"

// UnknownDeliveryNo is stamped on extracted rows whose document number could not be resolved.
const UnknownDeliveryNo = "UNKNOWN"

// TransitNoMaxLen bounds the synthetic in-transit delivery number.
const TransitNoMaxLen = 30

// FileType identifies what a file feeds: the delivery ledger or the EDI forecast ledger.
type FileType string

const (
	FileTypeDelivery FileType = "delivery"
	FileTypeEDI      FileType = "edi"
)

// ParseFileType accepts the canonical names plus the historical form labels.
func ParseFileType(s string) (FileType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "delivery", "deliveries", "livraison":
		return FileTypeDelivery, true
	case "edi", "forecast":
		return FileTypeEDI, true
	}
	return "", false
}

// Event is a canonical delivery row.
type Event struct {
	Site         string
	MaterialCode string
	DeliveryNo   string
	Date         time.Time
	Quantity     int64
	Status       Status
}

// Key is the identity key of an event.
type Key struct {
	Site         string
	MaterialCode string
	DeliveryNo   string
	Date         string
	Status       Status
}

// Key returns the identity key. Dates are keyed by calendar day.
func (e Event) Key() Key {
	return Key{
		Site:         e.Site,
		MaterialCode: e.MaterialCode,
		DeliveryNo:   e.DeliveryNo,
		Date:         FormatDate(e.Date),
		Status:       e.Status,
	}
}

// Less orders keys lexicographically field by field.
func (k Key) Less(o Key) bool {
	if k.Site != o.Site {
		return k.Site < o.Site
	}
	if k.MaterialCode != o.MaterialCode {
		return k.MaterialCode < o.MaterialCode
	}
	if k.DeliveryNo != o.DeliveryNo {
		return k.DeliveryNo < o.DeliveryNo
	}
	if k.Date != o.Date {
		return k.Date < o.Date
	}
	return k.Status < o.Status
}

// Reconcilable reports whether the event carries every field the reconciliation
// engine needs. Material code may legitimately be empty.
func (e Event) Reconcilable() bool {
	return e.Site != "" && e.DeliveryNo != "" && !e.Date.IsZero() && e.Status != ""
}

// LedgerRow is a persisted DeliveryDetails row.
type LedgerRow struct {
	ID           int64
	Site         string
	MaterialCode string
	DeliveryNo   string
	Quantity     int64
	Date         time.Time
	Status       Status
}

// RowFromEvent builds the ledger row an event writes with the given status.
func RowFromEvent(e Event, status Status) LedgerRow {
	return LedgerRow{
		Site:         e.Site,
		MaterialCode: e.MaterialCode,
		DeliveryNo:   e.DeliveryNo,
		Quantity:     e.Quantity,
		Date:         e.Date,
		Status:       status,
	}
}

// Bucket is the latest InTransit row of a (site, material) pair.
type Bucket struct {
	ID         int64
	DeliveryNo string
	Quantity   int64
	Date       time.Time
}

// TransitNo derives the synthetic delivery number of a bucket opened by a dispatch.
func TransitNo(deliveryNo string) string {
	n := deliveryNo + "_T"
	if len(n) > TransitNoMaxLen {
		n = n[:TransitNoMaxLen]
	}
	return n
}

// Forecast is one EDIGlobal row. The EDI path is append-only.
type Forecast struct {
	Site                  string
	ClientCode            string
	ClientMaterialNo      string
	MaterialCode          string
	DateFrom              string
	DateUntil             string
	Quantity              int64
	ForecastDate          string
	LastDeliveryDate      string
	LastDeliveredQuantity int64
	CumulatedQuantity     int64
	EDIStatus             string
	ProductName           string
	LastDeliveryNo        string
}

// FormatDate renders a date as ISO, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
