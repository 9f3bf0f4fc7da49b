package normalizer

import (
	"fmt"
	"math"
	"strings"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery"
)

// SafeString returns v as trimmed text. Absent values and NaN become "".
func SafeString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case *string:
		if s == nil {
			return ""
		}
		return strings.TrimSpace(*s)
	case float64:
		if math.IsNaN(s) {
			return ""
		}
	case float32:
		if math.IsNaN(float64(s)) {
			return ""
		}
	case fmt.Stringer:
		return strings.TrimSpace(s.String())
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Status maps status synonyms onto the canonical ledger statuses.
// Unrecognized values pass through trimmed.
func Status(v any) delivery.Status {
	s := SafeString(v)
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	switch {
	case lower == "sent", lower == "dispatched":
		return delivery.StatusDispatched
	case lower == "delivered":
		return delivery.StatusDelivered
	}

	switch strings.ReplaceAll(lower, " ", "") {
	case "intransit", "in-transit":
		return delivery.StatusInTransit
	}
	return delivery.Status(s)
}
