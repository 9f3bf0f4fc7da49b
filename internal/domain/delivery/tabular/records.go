package tabular

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/normalizer"
)

// DeliveryRecord is one raw delivery row, bound by canonical header name.
type DeliveryRecord struct {
	Site       string `csv:"site"`
	MaterialNo string `csv:"avomaterialno"`
	DeliveryNo string `csv:"deliveryno"`
	Quantity   string `csv:"quantity"`
	Date       string `csv:"date"`
	Status     string `csv:"status"`
}

// ForecastRecord is one raw EDI forecast row.
type ForecastRecord struct {
	Site                  string `csv:"site"`
	ClientCode            string `csv:"clientcode"`
	ClientMaterialNo      string `csv:"clientmaterialno"`
	MaterialNo            string `csv:"avomaterialno"`
	DateFrom              string `csv:"datefrom"`
	DateUntil             string `csv:"dateuntil"`
	Quantity              string `csv:"quantity"`
	ForecastDate          string `csv:"forecastdate"`
	LastDeliveryDate      string `csv:"lastdeliverydate"`
	LastDeliveredQuantity string `csv:"lastdeliveredquantity"`
	CumulatedQuantity     string `csv:"cumulatedquantity"`
	EDIStatus             string `csv:"edistatus"`
	ProductName           string `csv:"productname"`
	LastDeliveryNo        string `csv:"lastdeliveryno"`
}

// Deliveries binds the table to delivery records. Missing columns are empty.
func (t *Table) Deliveries() ([]DeliveryRecord, error) {
	var out []DeliveryRecord
	if err := t.bind(&out, "site", "avomaterialno", "deliveryno", "quantity"); err != nil {
		return nil, err
	}
	return out, nil
}

// Forecasts binds the table to EDI forecast records.
func (t *Table) Forecasts() ([]ForecastRecord, error) {
	var out []ForecastRecord
	if err := t.bind(&out, "clientcode", "clientmaterialno", "avomaterialno", "quantity"); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Table) bind(out any, anyOf ...string) error {
	if !t.hasAny(anyOf) {
		return fmt.Errorf("%w: expected one of %s", ErrNoHeadersFound, strings.Join(anyOf, ", "))
	}
	rows := make([][]string, 0, len(t.Rows)+1)
	rows = append(rows, t.Headers)
	rows = append(rows, t.Rows...)
	if err := gocsv.UnmarshalCSV(&tableReader{rows: rows}, out); err != nil {
		return fmt.Errorf("failed to bind rows: %w", err)
	}
	return nil
}

func (t *Table) hasAny(names []string) bool {
	for _, h := range t.Headers {
		for _, n := range names {
			if h == n {
				return true
			}
		}
	}
	return false
}

// tableReader feeds already-split rows to gocsv.
type tableReader struct {
	rows [][]string
	pos  int
}

func (r *tableReader) Read() ([]string, error) {
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}

func (r *tableReader) ReadAll() ([][]string, error) {
	rest := r.rows[r.pos:]
	r.pos = len(r.rows)
	return rest, nil
}

// Event normalizes the record into a delivery event.
func (r DeliveryRecord) Event(refs *normalizer.ReferenceNormalizer) delivery.Event {
	return delivery.Event{
		Site:         normalizer.SafeString(r.Site),
		MaterialCode: refs.Normalize(normalizer.SafeString(r.MaterialNo), ""),
		DeliveryNo:   normalizer.SafeString(r.DeliveryNo),
		Date:         ParseDate(r.Date),
		Quantity:     normalizer.Quantity(r.Quantity),
		Status:       normalizer.Status(r.Status),
	}
}

// Forecast converts the record into an EDIGlobal row. Only quantities are
// normalized; every other field is stored as trimmed text.
func (r ForecastRecord) Forecast() delivery.Forecast {
	return delivery.Forecast{
		Site:                  normalizer.SafeString(r.Site),
		ClientCode:            normalizer.SafeString(r.ClientCode),
		ClientMaterialNo:      normalizer.SafeString(r.ClientMaterialNo),
		MaterialCode:          normalizer.SafeString(r.MaterialNo),
		DateFrom:              normalizer.SafeString(r.DateFrom),
		DateUntil:             normalizer.SafeString(r.DateUntil),
		Quantity:              normalizer.Quantity(r.Quantity),
		ForecastDate:          normalizer.SafeString(r.ForecastDate),
		LastDeliveryDate:      normalizer.SafeString(r.LastDeliveryDate),
		LastDeliveredQuantity: normalizer.Quantity(r.LastDeliveredQuantity),
		CumulatedQuantity:     normalizer.Quantity(r.CumulatedQuantity),
		EDIStatus:             normalizer.SafeString(r.EDIStatus),
		ProductName:           normalizer.SafeString(r.ProductName),
		LastDeliveryNo:        normalizer.SafeString(r.LastDeliveryNo),
	}
}

var dateLayouts = []string{
	delivery.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2/1/2006",
	"2/1/2006 15:04",
	"2-1-2006",
	"2.1.2006",
}

// maxExcelSerial is 9999-12-31 in the 1900 date system.
const maxExcelSerial = 2958465

// ParseDate reads ISO dates first, then day-first forms, then spreadsheet
// serial numbers. Unparseable input gives the zero time.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return delivery.Day(t)
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial <= maxExcelSerial {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return delivery.Day(t)
		}
	}
	return time.Time{}
}
