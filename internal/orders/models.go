package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	CategoryID  *int64          `json:"categoryId"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Order struct {
	ID           int64           `json:"id"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Notes        *string         `json:"notes,omitempty"`
	Status       Status          `json:"status"`
	CancelReason *string         `json:"cancelReason,omitempty"`
	CanceledAt   *time.Time      `json:"canceledAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	Items        []OrderItem     `json:"items"`
}

type OrderItem struct {
	ID        int64            `json:"id"`
	OrderID   int64            `json:"orderId"`
	ProductID int64            `json:"productId"`
	Quantity  int              `json:"quantity"`
	Product   *Product         `json:"product,omitempty"` // resolved at read time; nil if the product was removed
	Options   []SelectedOption `json:"selectedOptions"`
}

// SelectedOption is a snapshot taken at order time. Price is the delta added to
// the base product price and is never re-derived from the live catalog.
type SelectedOption struct {
	ID          int64           `json:"id"`
	OrderItemID int64           `json:"orderItemId"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
}

type StatusHistoryEntry struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"orderId"`
	FromStatus *Status   `json:"fromStatus"` // nil only for the intake entry
	ToStatus   Status    `json:"toStatus"`
	Reason     *string   `json:"reason,omitempty"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
