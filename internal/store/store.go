// Package store holds behaviour shared by the payment store implementations:
// status-transition stats and the notifications a save may queue.
package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/payimport/internal/core"
)

// NotificationKind is the kind of message a completed sale queues.
type NotificationKind string

const (
	NotifyReceipt    NotificationKind = "purchase_receipt"
	NotifySaleNotice NotificationKind = "admin_sale_notice"
)

// Notification is a queued message about a payment. Stores queue them only
// when a save does not suppress side effects.
type Notification struct {
	PaymentID int64            `json:"paymentId"`
	Kind      NotificationKind `json:"kind"`
	Email     string           `json:"email,omitempty"`
	QueuedAt  time.Time        `json:"queuedAt"`
}

// ProductStats are the sales counters of one catalog item.
type ProductStats struct {
	ProductID int64           `json:"productId"`
	Sales     int64           `json:"sales"`
	Earnings  decimal.Decimal `json:"earnings"`
}

// EntersCompleted reports whether a save moves a payment from prev into a
// completed status. A new payment has prev == "".
func EntersCompleted(prev, next string) bool {
	return core.IsCompletedStatus(next) && !core.IsCompletedStatus(prev)
}

// SaleIncrements returns the per-product stats a completed payment adds.
// Each line item counts as one sale of its product at its unit price.
func SaleIncrements(p *core.Payment) []ProductStats {
	byID := make(map[int64]int)
	var out []ProductStats
	for _, item := range p.LineItems {
		if item.ProductID <= 0 {
			continue
		}
		i, ok := byID[item.ProductID]
		if !ok {
			i = len(out)
			byID[item.ProductID] = i
			out = append(out, ProductStats{ProductID: item.ProductID, Earnings: decimal.Zero})
		}
		out[i].Sales++
		out[i].Earnings = out[i].Earnings.Add(item.UnitPrice)
	}
	return out
}

// SaleNotifications returns the messages a completed sale queues.
func SaleNotifications(p *core.Payment, now time.Time) []Notification {
	return []Notification{
		{PaymentID: p.ID, Kind: NotifyReceipt, Email: p.Email, QueuedAt: now},
		{PaymentID: p.ID, Kind: NotifySaleNotice, QueuedAt: now},
	}
}
