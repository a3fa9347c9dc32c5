package domain

import "time"

type CartSnapshotItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"` // minor units of CartSnapshot.Currency
}

// CartSnapshot represents the full cart state at checkout time
type CartSnapshot struct {
	Items      []CartSnapshotItem `json:"items"`
	Currency   string             `json:"currency"`
	CapturedAt time.Time          `json:"captured_at"`
}

// NewCartSnapshot freezes items into a snapshot that shares no memory with the caller's slice.
func NewCartSnapshot(items []CartSnapshotItem, currency string, capturedAt time.Time) CartSnapshot {
	frozen := make([]CartSnapshotItem, len(items))
	copy(frozen, items)
	return CartSnapshot{Items: frozen, Currency: currency, CapturedAt: capturedAt}
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// Clone returns a deep copy.
func (s CartSnapshot) Clone() CartSnapshot {
	return NewCartSnapshot(s.Items, s.Currency, s.CapturedAt)
}
