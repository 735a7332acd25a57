package sales

import "strings"

// Field names of the partner sales file schema. The input header must carry
// exactly these names, in this order.
const (
	FieldPartnerName          = "partner_name"
	FieldCustomerEmail        = "customer_email"
	FieldProductName          = "product_name"
	FieldWarrantyCode         = "warranty_code"
	FieldWarrantyLabel        = "warranty_label"
	FieldWarrantyStartDate    = "warranty_start_date"
	FieldWarrantyEndDate      = "warranty_end_date"
	FieldProductPurchasePrice = "product_purchase_price"
	FieldWarrantyPurchaseDate = "warranty_purchase_date"
	FieldInvoiceNumber        = "invoice_number"
	FieldPurchaseDate         = "purchase_date"
	FieldAddressStreet        = "customer_address_street"
	FieldAddressCity          = "customer_address_city"
	FieldAddressZipcode       = "customer_address_zipcode"
	FieldAddressCountry       = "customer_address_country"
)

// fieldNames holds the schema columns in file order.
var fieldNames = []string{
	FieldPartnerName,
	FieldCustomerEmail,
	FieldProductName,
	FieldWarrantyCode,
	FieldWarrantyLabel,
	FieldWarrantyStartDate,
	FieldWarrantyEndDate,
	FieldProductPurchasePrice,
	FieldWarrantyPurchaseDate,
	FieldInvoiceNumber,
	FieldPurchaseDate,
	FieldAddressStreet,
	FieldAddressCity,
	FieldAddressZipcode,
	FieldAddressCountry,
}

// FieldNames returns a copy of the schema column names in file order.
// Callers may not rely on mutating the returned slice affecting the schema.
func FieldNames() []string {
	names := make([]string, len(fieldNames))
	copy(names, fieldNames)
	return names
}

// FieldCount is the fixed number of columns in the partner file schema.
func FieldCount() int {
	return len(fieldNames)
}

// RawRecord is one parsed input row keyed by schema field name. It exists
// only between parsing and validation; values are carried verbatim from the
// file, untrimmed.
type RawRecord map[string]string

// Get returns the value for a schema field, or "" when absent.
func (r RawRecord) Get(field string) string {
	return r[field]
}

// IsBlank reports whether every field of the row is empty after trimming.
func (r RawRecord) IsBlank() bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Record is a row that has passed validation. Unlike RawRecord it is a fixed
// shape: every field is known present and format-checked, so later stages
// never re-validate.
type Record struct {
	PartnerName          string
	CustomerEmail        string
	ProductName          string
	WarrantyCode         string
	WarrantyLabel        string
	WarrantyStartDate    string
	WarrantyEndDate      string
	ProductPurchasePrice string
	WarrantyPurchaseDate string
	InvoiceNumber        string
	PurchaseDate         string
	AddressStreet        string
	AddressCity          string
	AddressZipcode       string
	AddressCountry       string
}

// RecordFromRaw builds a Record from a raw row. The caller is responsible for
// having validated the row first; missing fields map to empty strings.
func RecordFromRaw(raw RawRecord) Record {
	return Record{
		PartnerName:          raw.Get(FieldPartnerName),
		CustomerEmail:        raw.Get(FieldCustomerEmail),
		ProductName:          raw.Get(FieldProductName),
		WarrantyCode:         raw.Get(FieldWarrantyCode),
		WarrantyLabel:        raw.Get(FieldWarrantyLabel),
		WarrantyStartDate:    raw.Get(FieldWarrantyStartDate),
		WarrantyEndDate:      raw.Get(FieldWarrantyEndDate),
		ProductPurchasePrice: raw.Get(FieldProductPurchasePrice),
		WarrantyPurchaseDate: raw.Get(FieldWarrantyPurchaseDate),
		InvoiceNumber:        raw.Get(FieldInvoiceNumber),
		PurchaseDate:         raw.Get(FieldPurchaseDate),
		AddressStreet:        raw.Get(FieldAddressStreet),
		AddressCity:          raw.Get(FieldAddressCity),
		AddressZipcode:       raw.Get(FieldAddressZipcode),
		AddressCountry:       raw.Get(FieldAddressCountry),
	}
}

// RejectedRecord pairs an input row with the reasons it failed validation.
// The original field values are retained so error reports can reproduce the
// row verbatim.
type RejectedRecord struct {
	Raw     RawRecord
	Reasons []string
}

// ReasonSeparator joins independent rejection reasons in reports and logs.
const ReasonSeparator = "; "

// Reason returns the joined, human-readable rejection reason string.
func (r RejectedRecord) Reason() string {
	return strings.Join(r.Reasons, ReasonSeparator)
}

// EnrichedRecord is a validated record annotated with the Salesforce account
// identifier resolved from its partner name. AccountID is empty when the
// partner was not found; that is a degraded enrichment, not an error.
// EnrichedRecord values are immutable once built by the reconciler.
type EnrichedRecord struct {
	Record
	AccountID string
}
