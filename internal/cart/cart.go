package cart

import (
	"time"

	"github.com/fjod/go_cart/settlement-service/domain"
)

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Currency  string     `bson:"currency" json:"currency"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// CartItem carries the price captured when the product was added, in minor units.
type CartItem struct {
	ProductID   string    `bson:"product_id" json:"product_id"`
	ProductName string    `bson:"product_name" json:"product_name"`
	Quantity    int32     `bson:"quantity" json:"quantity"`
	UnitPrice   int64     `bson:"unit_price" json:"unit_price"`
	AddedAt     time.Time `bson:"added_at" json:"added_at"`
}

// Freeze copies the live cart into a checkout snapshot.
func (c *Cart) Freeze(capturedAt time.Time, defaultCurrency string) domain.CartSnapshot {
	items := make([]domain.CartSnapshotItem, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, domain.CartSnapshotItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	currency := c.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	return domain.NewCartSnapshot(items, currency, capturedAt)
}
