package core

// builder.go reconstructs one payment from one mapped import row.
//
// A row is applied field by field onto a pending payment. Unmapped fields and
// absent cells leave the field at its zero value; cells that cannot be coerced
// are reported as RowIssues and never abort the row. The payment is saved once
// to establish identity and derived totals, then again after the status is
// applied so status-transition effects in the store run.

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Meta keys written on every imported payment.
const (
	MetaImportJobID = "_import_job_id"
	MetaImportRow   = "_import_row"
)

// BuilderConfig holds the ambient settings of an import run.
type BuilderConfig struct {
	Format              AmountFormat
	TestMode            bool
	SuppressSideEffects bool
	Clock               Clock
}

// Builder turns mapped rows into saved payments.
type Builder struct {
	store    Store
	gateways *GatewayRegistry
	resolver *Resolver
	cfg      BuilderConfig
}

// NewBuilder creates a builder. A nil gateways registry falls back to the
// default gateways and a nil resolver resolves directly against store.
func NewBuilder(store Store, gateways *GatewayRegistry, resolver *Resolver, cfg BuilderConfig) *Builder {
	if gateways == nil {
		gateways = NewDefaultGatewayRegistry()
	}
	if resolver == nil {
		resolver = NewResolver(store, 0)
	}
	if cfg.Format == (AmountFormat{}) {
		cfg.Format = DefaultAmountFormat
	}
	if cfg.Clock == nil {
		cfg.Clock = timeNow
	}
	return &Builder{store: store, gateways: gateways, resolver: resolver, cfg: cfg}
}

// RowInput is one row handed to the builder.
type RowInput struct {
	JobID    string
	Index    int
	Row      RawRow
	Mapping  FieldMapping
	Operator Operator
}

// rowBuild carries the state of one Build call.
type rowBuild struct {
	in      RowInput
	payment *Payment
	issues  []RowIssue
}

func (rb *rowBuild) value(f Field) (string, bool) {
	return rb.in.Mapping.Value(rb.in.Row, f)
}

func (rb *rowBuild) issue(f Field, kind IssueKind, value string, err error) {
	is := RowIssue{Row: rb.in.Index, Field: f, Kind: kind, Value: value}
	if err != nil {
		is.Err = err.Error()
	}
	rb.issues = append(rb.issues, is)
}

func (rb *rowBuild) text(f Field, dst *string) {
	if v, ok := rb.value(f); ok {
		*dst = SanitizeText(v)
	}
}

// Build reconstructs, saves and returns the payment for one row together
// with every recovered issue. The error is non-nil only when a save failed
// or ctx was cancelled; the returned payment then holds whatever was built.
func (b *Builder) Build(ctx context.Context, in RowInput) (*Payment, []RowIssue, error) {
	rb := &rowBuild{in: in, payment: NewPayment()}
	p := rb.payment

	b.applyAmounts(rb)

	rb.text(FieldNumber, &p.Number)
	if v, ok := rb.value(FieldMode); ok {
		p.Mode = ParseMode(v, b.cfg.TestMode)
	}
	if v, ok := rb.value(FieldDate); ok {
		if t, parsed := parseDate(v, b.cfg.Clock()); parsed {
			p.Date = t
		} else {
			p.Date = b.cfg.Clock()
			rb.issue(FieldDate, RowFieldInvalid, v, fmt.Errorf("invalid date, using current time"))
		}
	}
	rb.text(FieldEmail, &p.Email)

	if err := b.applyCustomer(ctx, rb); err != nil {
		return p, rb.issues, err
	}

	rb.text(FieldFirstName, &p.FirstName)
	rb.text(FieldLastName, &p.LastName)

	if err := b.applyUser(ctx, rb); err != nil {
		return p, rb.issues, err
	}

	rb.text(FieldDiscounts, &p.Discounts)
	rb.text(FieldTransactionID, &p.TransactionID)
	rb.text(FieldIP, &p.IP)

	if v, ok := rb.value(FieldGateway); ok {
		p.Gateway, _ = b.gateways.Resolve(v)
	}
	if v, ok := rb.value(FieldCurrency); ok {
		if code, valid := ParseCurrencyCode(v); valid {
			p.Currency = code
		} else {
			rb.issue(FieldCurrency, RowFieldInvalid, v, fmt.Errorf("not an ISO 4217 currency code"))
		}
	}
	if v, ok := rb.value(FieldParentPaymentID); ok {
		if id, valid := ParseAbsInt(v); valid {
			p.ParentPaymentID = id
		} else {
			rb.issue(FieldParentPaymentID, RowFieldInvalid, v, nil)
		}
	}

	if err := b.applyLineItems(ctx, rb); err != nil {
		return p, rb.issues, err
	}

	p.Address = Address{}
	rb.text(FieldLine1, &p.Address.Line1)
	rb.text(FieldLine2, &p.Address.Line2)
	rb.text(FieldCity, &p.Address.City)
	rb.text(FieldState, &p.Address.State)
	rb.text(FieldZip, &p.Address.Zip)
	rb.text(FieldCountry, &p.Address.Country)

	opts := SaveOptions{SuppressSideEffects: b.cfg.SuppressSideEffects}

	p.Recalculate()
	if err := b.store.SavePayment(ctx, p, opts); err != nil {
		return p, rb.issues, fmt.Errorf("save payment: %w", err)
	}

	b.tag(ctx, rb)

	// Status goes on after creation so the store sees a transition.
	if v, ok := rb.value(FieldStatus); ok {
		if status := strings.ToLower(SanitizeText(v)); status != "" {
			p.Status = status
			if err := b.store.SavePayment(ctx, p, opts); err != nil {
				return p, rb.issues, fmt.Errorf("save payment status: %w", err)
			}
		}
	}

	return p, rb.issues, nil
}

func (b *Builder) applyAmounts(rb *rowBuild) {
	p := rb.payment

	if v, ok := rb.value(FieldTotal); ok {
		if d, valid := ParseAmount(v, b.cfg.Format); valid {
			p.Total = d
			p.totalSupplied = true
		} else {
			rb.issue(FieldTotal, RowFieldInvalid, v, fmt.Errorf("invalid number"))
		}
	}
	if v, ok := rb.value(FieldTax); ok {
		if d, valid := ParseAmount(v, b.cfg.Format); valid {
			p.Tax = d
			p.taxSupplied = true
		} else {
			rb.issue(FieldTax, RowFieldInvalid, v, fmt.Errorf("invalid number"))
		}
	}

	p.Subtotal = p.Total.Sub(p.Tax)
	if v, ok := rb.value(FieldSubtotal); ok {
		if d, valid := ParseAmount(v, b.cfg.Format); valid {
			p.Subtotal = d
			p.subtotalSupplied = true
		} else {
			rb.issue(FieldSubtotal, RowFieldInvalid, v, fmt.Errorf("invalid number, using total minus tax"))
		}
	}
}

func (b *Builder) applyCustomer(ctx context.Context, rb *rowBuild) error {
	v, ok := rb.value(FieldCustomerID)
	if !ok {
		return nil
	}
	id, valid := ParseAbsInt(v)
	if !valid {
		rb.issue(FieldCustomerID, RowFieldInvalid, v, nil)
		return nil
	}

	exists, err := b.store.CustomerExists(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rb.issue(FieldCustomerID, ReferenceNotFound, v, err)
		return nil
	}
	if !exists {
		rb.issue(FieldCustomerID, ReferenceNotFound, v, nil)
		return nil
	}
	rb.payment.CustomerID = id
	return nil
}

// applyUser resolves the user cell by ID when numeric, otherwise by e-mail
// address when it looks like one and then by login.
func (b *Builder) applyUser(ctx context.Context, rb *rowBuild) error {
	v, ok := rb.value(FieldUserID)
	if !ok {
		return nil
	}
	text := SanitizeText(v)

	var lookups []func() (int64, bool, error)
	if IsNumeric(text) {
		id, _ := ParseAbsInt(text)
		lookups = append(lookups, func() (int64, bool, error) { return b.store.UserByID(ctx, id) })
	} else {
		if IsEmail(text) {
			lookups = append(lookups, func() (int64, bool, error) { return b.store.UserByEmail(ctx, text) })
		}
		lookups = append(lookups, func() (int64, bool, error) { return b.store.UserByLogin(ctx, text) })
	}

	for _, lookup := range lookups {
		id, found, err := lookup()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rb.issue(FieldUserID, ReferenceNotFound, v, err)
			return nil
		}
		if found {
			rb.payment.UserID = id
			return nil
		}
	}

	rb.issue(FieldUserID, ReferenceNotFound, v, nil)
	return nil
}

// applyLineItems resolves each listed product and adds a line item. The
// row's tax goes on the item only when exactly one name was listed.
func (b *Builder) applyLineItems(ctx context.Context, rb *rowBuild) error {
	v, ok := rb.value(FieldDownloads)
	if !ok {
		return nil
	}
	names := SplitList(v)

	itemTax := decimal.Zero
	if len(names) == 1 {
		itemTax = rb.payment.Tax
	}

	for _, name := range names {
		item, err := b.resolver.ResolveIn(ctx, rb.in.JobID, name, rb.in.Operator)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rb.issue(FieldDownloads, CatalogCreateFailed, name, err)
			continue
		}
		rb.payment.AddLineItem(LineItem{
			ProductID:    item.ID,
			ProductTitle: item.Title,
			UnitPrice:    item.Price,
			Tax:          itemTax,
		})
	}
	return nil
}

// tag records which job and row produced the payment.
func (b *Builder) tag(ctx context.Context, rb *rowBuild) {
	id := rb.payment.ID
	if rb.in.JobID != "" {
		if _, err := b.store.AddMeta(ctx, id, MetaImportJobID, rb.in.JobID, true); err != nil {
			rb.issue("", MetaWriteFailed, MetaImportJobID, err)
		}
	}
	if _, err := b.store.AddMeta(ctx, id, MetaImportRow, strconv.Itoa(rb.in.Index), true); err != nil {
		rb.issue("", MetaWriteFailed, MetaImportRow, err)
	}
}
