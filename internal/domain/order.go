package domain

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// OrderStatusPending is the default lifecycle status for new orders.
// The status set is open-ended; callers may introduce further states
// (e.g. "Shipped", "Delivered", "Cancelled") without schema changes.
const OrderStatusPending = "Pending"

// Order represents a purchase record owned by a user.
type Order struct {
	// ID is the unique identifier assigned by the store on creation.
	ID int64 `json:"id"`

	// UserID references the owning user. This is a foreign reference,
	// not an ownership relation: many orders per user.
	UserID int64 `json:"userId"`

	// OrderNumber is the human-facing, globally unique order label,
	// distinct from the internal identifier.
	OrderNumber string `json:"orderNumber"`

	// OrderDate is when the order was placed.
	OrderDate time.Time `json:"orderDate"`

	// Status is the lifecycle status, default "Pending".
	Status string `json:"status"`

	// Total is the order total, normalized to a number at ingestion.
	Total float64 `json:"total"`

	// Items carries the order payload (line items, shipping details)
	// opaque to the store.
	Items json.RawMessage `json:"items,omitempty"`

	// CreatedAt is the timestamp when the order was created.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the timestamp of the last status change, if any.
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// GenerateOrderNumber derives a human-facing order number from the current
// time plus a random suffix: ORD-<millisecond timestamp>-<3-digit zero-padded
// random>. Two orders placed in the same millisecond are disambiguated by
// the suffix.
func GenerateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%03d", now.UnixMilli(), rand.Intn(1000))
}

// ParseTotal coerces an order total into a number. Numeric values pass
// through; string-typed currency values (e.g. "$1,299.99") have all
// non-numeric characters stripped before parsing. Unparseable values
// coerce to zero, matching the tolerant aggregation contract.
func ParseTotal(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		var b strings.Builder
		for _, r := range t {
			if (r >= '0' && r <= '9') || r == '.' {
				b.WriteRune(r)
			}
		}
		f, err := strconv.ParseFloat(b.String(), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
