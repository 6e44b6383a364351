// Package core provides the business logic for payment import operations.
// This package has no UI or storage dependencies and can be used by any frontend.
package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Payment statuses the importer itself assigns or recognises.
const (
	StatusPending   = "pending"
	StatusPublish   = "publish"
	StatusComplete  = "complete"
	StatusCompleted = "completed"
)

// Run modes.
const (
	ModeTest = "test"
	ModeLive = "live"
)

// Address holds the billing address sub-fields of a payment.
// Every field defaults to the empty string.
type Address struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// LineItem is one purchased catalog entry. It is owned by its Payment.
type LineItem struct {
	ProductID    int64           `json:"productId"`
	ProductTitle string          `json:"productTitle"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Tax          decimal.Decimal `json:"tax"`
}

// Payment is the record reconstructed from one import row.
type Payment struct {
	ID              int64           `json:"id"`
	Number          string          `json:"number,omitempty"`
	Status          string          `json:"status"`
	Mode            string          `json:"mode,omitempty"`
	Gateway         string          `json:"gateway,omitempty"`
	Total           decimal.Decimal `json:"total"`
	Tax             decimal.Decimal `json:"tax"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Currency        string          `json:"currency,omitempty"`
	Date            time.Time       `json:"date"`
	Email           string          `json:"email,omitempty"`
	FirstName       string          `json:"firstName,omitempty"`
	LastName        string          `json:"lastName,omitempty"`
	CustomerID      int64           `json:"customerId,omitempty"`
	UserID          int64           `json:"userId,omitempty"`
	Discounts       string          `json:"discounts,omitempty"`
	TransactionID   string          `json:"transactionId,omitempty"`
	IP              string          `json:"ip,omitempty"`
	ParentPaymentID int64           `json:"parentPaymentId,omitempty"`
	LineItems       []LineItem      `json:"lineItems"`
	Address         Address         `json:"address"`

	// Whether each amount came from the row rather than being derived from
	// line items on save.
	totalSupplied    bool
	taxSupplied      bool
	subtotalSupplied bool
}

// NewPayment returns a payment in the pending state.
func NewPayment() *Payment {
	return &Payment{Status: StatusPending}
}

// AddLineItem appends a line item to the payment.
func (p *Payment) AddLineItem(item LineItem) {
	p.LineItems = append(p.LineItems, item)
}

// Recalculate derives the amounts the source row did not supply from the
// line items. It does nothing when the row supplied the total.
func (p *Payment) Recalculate() {
	if p.totalSupplied || len(p.LineItems) == 0 {
		return
	}
	subtotal := decimal.Zero
	tax := decimal.Zero
	for _, item := range p.LineItems {
		subtotal = subtotal.Add(item.UnitPrice)
		tax = tax.Add(item.Tax)
	}
	if !p.subtotalSupplied {
		p.Subtotal = subtotal
	}
	if !p.taxSupplied {
		p.Tax = tax
	}
	p.Total = p.Subtotal.Add(p.Tax)
}

// IsCompleted reports whether the payment status counts as a completed sale.
func (p *Payment) IsCompleted() bool {
	return IsCompletedStatus(p.Status)
}

// IsCompletedStatus reports whether status counts as a completed sale.
func IsCompletedStatus(status string) bool {
	switch status {
	case StatusPublish, StatusComplete, StatusCompleted:
		return true
	}
	return false
}

// CatalogItem is a catalog entry (a downloadable product).
type CatalogItem struct {
	ID       int64           `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	AuthorID int64           `json:"authorId"`
}

// Operator is the identity performing an import.
type Operator struct {
	ID        int64
	Name      string
	CanImport bool
}

// SaveOptions controls store-side behaviour of a payment save.
type SaveOptions struct {
	// SuppressSideEffects stops the store from queueing purchase receipts and
	// admin sale notices. Status-transition stats still run.
	SuppressSideEffects bool
}

// PaymentStore persists payments. SavePayment inserts when p.ID is zero and
// assigns the new ID, otherwise it updates the existing record.
type PaymentStore interface {
	SavePayment(ctx context.Context, p *Payment, opts SaveOptions) error
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	MetaStore
}

// MetaStore holds key/value metadata attached to payments.
type MetaStore interface {
	AddMeta(ctx context.Context, paymentID int64, key, value string, unique bool) (bool, error)
	UpdateMeta(ctx context.Context, paymentID int64, key, value string) (bool, error)
	GetMeta(ctx context.Context, paymentID int64, key string) (string, bool, error)
	DeleteMeta(ctx context.Context, paymentID int64, key string) (bool, error)
}

// Catalog looks up and creates catalog entries. CreateItem must return an
// error wrapping ErrDuplicateTitle when an entry with the title already exists.
type Catalog interface {
	FindByTitle(ctx context.Context, title string) (CatalogItem, bool, error)
	CreateItem(ctx context.Context, title string, authorID int64) (CatalogItem, error)
}

// CustomerDirectory answers whether a customer exists.
type CustomerDirectory interface {
	CustomerExists(ctx context.Context, id int64) (bool, error)
}

// UserDirectory resolves users by ID, e-mail address or login name.
// Each lookup returns the user ID and whether a user was found.
type UserDirectory interface {
	UserByID(ctx context.Context, id int64) (int64, bool, error)
	UserByEmail(ctx context.Context, email string) (int64, bool, error)
	UserByLogin(ctx context.Context, login string) (int64, bool, error)
}

// Store bundles every collaborator the importer consumes.
type Store interface {
	PaymentStore
	Catalog
	CustomerDirectory
	UserDirectory
}

// Clock returns the current time.
type Clock func() time.Time

// timeNow is the clock used when none is configured.
var timeNow Clock = time.Now
