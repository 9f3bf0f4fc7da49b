package service

import (
	"time"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery"
)

// stagedDelivery is the canonical CSV layout of a staged delivery batch.
type stagedDelivery struct {
	Site       string `csv:"Site"`
	MaterialNo string `csv:"AVOMaterialNo"`
	DeliveryNo string `csv:"DeliveryNo"`
	Quantity   int64  `csv:"Quantity"`
	Date       string `csv:"Date"`
	Status     string `csv:"Status"`
}

func stageDeliveries(events []delivery.Event) []stagedDelivery {
	out := make([]stagedDelivery, len(events))
	for i, e := range events {
		out[i] = stagedDelivery{
			Site:       e.Site,
			MaterialNo: e.MaterialCode,
			DeliveryNo: e.DeliveryNo,
			Quantity:   e.Quantity,
			Date:       delivery.FormatDate(e.Date),
			Status:     string(e.Status),
		}
	}
	return out
}

func (r stagedDelivery) event() delivery.Event {
	var date time.Time
	if r.Date != "" {
		date, _ = time.Parse(delivery.DateLayout, r.Date)
	}
	return delivery.Event{
		Site:         r.Site,
		MaterialCode: r.MaterialNo,
		DeliveryNo:   r.DeliveryNo,
		Date:         date,
		Quantity:     r.Quantity,
		Status:       delivery.Status(r.Status),
	}
}

// stagedForecast is the canonical CSV layout of a staged EDI batch. Its
// fields mirror delivery.Forecast so the two convert directly.
type stagedForecast struct {
	Site                  string `csv:"Site"`
	ClientCode            string `csv:"ClientCode"`
	ClientMaterialNo      string `csv:"ClientMaterialNo"`
	MaterialCode          string `csv:"AVOMaterialNo"`
	DateFrom              string `csv:"DateFrom"`
	DateUntil             string `csv:"DateUntil"`
	Quantity              int64  `csv:"Quantity"`
	ForecastDate          string `csv:"ForecastDate"`
	LastDeliveryDate      string `csv:"LastDeliveryDate"`
	LastDeliveredQuantity int64  `csv:"LastDeliveredQuantity"`
	CumulatedQuantity     int64  `csv:"CumulatedQuantity"`
	EDIStatus             string `csv:"EDIStatus"`
	ProductName           string `csv:"ProductName"`
	LastDeliveryNo        string `csv:"LastDeliveryNo"`
}

func stageForecasts(rows []delivery.Forecast) []stagedForecast {
	out := make([]stagedForecast, len(rows))
	for i, f := range rows {
		out[i] = stagedForecast(f)
	}
	return out
}

func (r stagedForecast) forecast() delivery.Forecast {
	return delivery.Forecast(r)
}
