package core

import "strings"

// Field is a canonical payment field that a source column can be mapped to.
type Field string

const (
	FieldTotal           Field = "total"
	FieldSubtotal        Field = "subtotal"
	FieldTax             Field = "tax"
	FieldNumber          Field = "number"
	FieldMode            Field = "mode"
	FieldGateway         Field = "gateway"
	FieldDate            Field = "date"
	FieldStatus          Field = "status"
	FieldEmail           Field = "email"
	FieldFirstName       Field = "first_name"
	FieldLastName        Field = "last_name"
	FieldCustomerID      Field = "customer_id"
	FieldUserID          Field = "user_id"
	FieldDiscounts       Field = "discounts"
	FieldTransactionID   Field = "transaction_id"
	FieldIP              Field = "ip"
	FieldCurrency        Field = "currency"
	FieldParentPaymentID Field = "parent_payment_id"
	FieldDownloads       Field = "downloads"
	FieldLine1           Field = "line1"
	FieldLine2           Field = "line2"
	FieldCity            Field = "city"
	FieldState           Field = "state"
	FieldZip             Field = "zip"
	FieldCountry         Field = "country"
)

// FieldInfo describes a canonical field for mapping UIs.
type FieldInfo struct {
	Field   Field    `json:"field"`
	Label   string   `json:"label"`
	Aliases []string `json:"aliases,omitempty"` // Header spellings recognised by AutoMap
}

// Fields lists every canonical field in import order.
var Fields = []FieldInfo{
	{Field: FieldTotal, Label: "Total", Aliases: []string{"amount", "payment total", "order total"}},
	{Field: FieldSubtotal, Label: "Subtotal", Aliases: []string{"sub total"}},
	{Field: FieldTax, Label: "Tax", Aliases: []string{"tax amount", "vat"}},
	{Field: FieldNumber, Label: "Payment Number", Aliases: []string{"number", "order number", "payment number"}},
	{Field: FieldMode, Label: "Mode", Aliases: []string{"payment mode"}},
	{Field: FieldGateway, Label: "Gateway", Aliases: []string{"payment method", "payment gateway"}},
	{Field: FieldDate, Label: "Date", Aliases: []string{"purchase date", "payment date", "order date"}},
	{Field: FieldStatus, Label: "Status", Aliases: []string{"payment status", "order status"}},
	{Field: FieldEmail, Label: "Email", Aliases: []string{"e-mail", "email address", "customer email"}},
	{Field: FieldFirstName, Label: "First Name", Aliases: []string{"first", "given name"}},
	{Field: FieldLastName, Label: "Last Name", Aliases: []string{"last", "surname", "family name"}},
	{Field: FieldCustomerID, Label: "Customer ID", Aliases: []string{"customer"}},
	{Field: FieldUserID, Label: "User", Aliases: []string{"user id", "user login", "username"}},
	{Field: FieldDiscounts, Label: "Discount Codes", Aliases: []string{"discounts", "discount", "coupon"}},
	{Field: FieldTransactionID, Label: "Transaction ID", Aliases: []string{"transaction", "txn id"}},
	{Field: FieldIP, Label: "IP Address", Aliases: []string{"ip", "ip address"}},
	{Field: FieldCurrency, Label: "Currency", Aliases: []string{"currency code"}},
	{Field: FieldParentPaymentID, Label: "Parent Payment ID", Aliases: []string{"parent payment", "parent id"}},
	{Field: FieldDownloads, Label: "Downloads", Aliases: []string{"products", "items", "product names"}},
	{Field: FieldLine1, Label: "Address Line 1", Aliases: []string{"address", "address 1", "street"}},
	{Field: FieldLine2, Label: "Address Line 2", Aliases: []string{"address 2"}},
	{Field: FieldCity, Label: "City", Aliases: []string{"town"}},
	{Field: FieldState, Label: "State / Province", Aliases: []string{"state", "province", "region"}},
	{Field: FieldZip, Label: "Zip / Postal Code", Aliases: []string{"zip", "postal code", "postcode"}},
	{Field: FieldCountry, Label: "Country", Aliases: []string{"country code"}},
}

// IsField reports whether name is a canonical field.
func IsField(name string) bool {
	for _, info := range Fields {
		if string(info.Field) == name {
			return true
		}
	}
	return false
}

// FieldMapping maps canonical fields to source column names.
// An empty column name is the same as no entry at all.
type FieldMapping map[Field]string

// Column returns the source column mapped to f, or false when f is unmapped.
func (m FieldMapping) Column(f Field) (string, bool) {
	col := strings.TrimSpace(m[f])
	if col == "" {
		return "", false
	}
	return col, true
}

// Value returns the raw cell for f in row. It returns false when f is
// unmapped or the mapped cell is absent.
func (m FieldMapping) Value(row RawRow, f Field) (string, bool) {
	col, ok := m.Column(f)
	if !ok {
		return "", false
	}
	return row.Get(col)
}

// Mapped returns the canonical fields that have a column, in Fields order.
func (m FieldMapping) Mapped() []Field {
	var out []Field
	for _, info := range Fields {
		if _, ok := m.Column(info.Field); ok {
			out = append(out, info.Field)
		}
	}
	return out
}

// RawRow maps column names to the raw cell text of one input row.
type RawRow map[string]string

// Get returns the cell for column. A missing cell and a whitespace-only cell
// are the same absent state and both return false.
func (r RawRow) Get(column string) (string, bool) {
	v, ok := r[column]
	if !ok {
		return "", false
	}
	if strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
