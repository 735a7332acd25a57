// Package validate partitions raw partner sales rows into valid records and
// rejected records with human-readable reasons.
package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sales-import/internal/logging"
	"sales-import/internal/sales"
)

const dateLayout = "2006-01-02"

var (
	dateRegex         = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	warrantyCodeRegex = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// dateFields lists the date-format-checked fields in reason order.
var dateFields = []string{
	sales.FieldWarrantyStartDate,
	sales.FieldWarrantyEndDate,
	sales.FieldWarrantyPurchaseDate,
	sales.FieldPurchaseDate,
}

// rule is one validation step. Rules run in declaration order; a rule with
// shortCircuit set stops evaluation when it produces reasons, and a rule
// with requiresClean set runs only when no earlier rule produced any.
type rule struct {
	name          string
	shortCircuit  bool
	requiresClean bool
	check         func(sales.RawRecord) []string
}

// rules is the ordered validation rule list. The presence rule is the
// short-circuit marker: a row missing required fields reports only the
// missing fields. All format rules after it are independent and always all
// evaluated; the date-ordering rule assumes parseable dates and therefore
// only runs on rows with no format failures.
var rules = []rule{
	{name: "presence", shortCircuit: true, check: checkRequiredFields},
	{name: "date format", check: checkDateFormats},
	{name: "email", check: checkEmail},
	{name: "price", check: checkPrice},
	{name: "warranty code", check: checkWarrantyCode},
	{name: "date ordering", requiresClean: true, check: checkDateOrdering},
}

// Validate partitions rows into valid records and rejected records. Every
// input row lands in exactly one of the two outputs; order is preserved
// within each.
func Validate(rows []sales.RawRecord) ([]sales.Record, []sales.RejectedRecord) {
	logging.Logf(logging.Info, "Starting data validation (total_lines=%d)", len(rows))
	start := time.Now()

	valid := make([]sales.Record, 0, len(rows))
	rejected := make([]sales.RejectedRecord, 0)

	for _, row := range rows {
		reasons := checkRow(row)
		if len(reasons) == 0 {
			valid = append(valid, sales.RecordFromRaw(row))
		} else {
			rejected = append(rejected, sales.RejectedRecord{Raw: row, Reasons: reasons})
		}
	}

	logging.Logf(logging.Info, "Data validation completed (valid_lines=%d error_lines=%d duration=%s)",
		len(valid), len(rejected), time.Since(start).Round(time.Millisecond))
	return valid, rejected
}

// checkRow runs the rule list over one row and returns its rejection reasons.
func checkRow(row sales.RawRecord) []string {
	var reasons []string
	for _, r := range rules {
		if r.requiresClean && len(reasons) > 0 {
			continue
		}
		found := r.check(row)
		if len(found) == 0 {
			continue
		}
		reasons = append(reasons, found...)
		if r.shortCircuit {
			return reasons
		}
	}
	return reasons
}

// checkRequiredFields reports every schema field that is absent or blank
// after trimming.
func checkRequiredFields(row sales.RawRecord) []string {
	var reasons []string
	for _, field := range sales.FieldNames() {
		if strings.TrimSpace(row.Get(field)) == "" {
			reasons = append(reasons, fmt.Sprintf("Missing or empty field: %s", field))
		}
	}
	return reasons
}

// checkDateFormats verifies each date field matches the exact YYYY-MM-DD
// shape. The regex admits only the 10-character ISO date, no time component.
func checkDateFormats(row sales.RawRecord) []string {
	var reasons []string
	for _, field := range dateFields {
		value := row.Get(field)
		if !dateRegex.MatchString(value) {
			reasons = append(reasons, fmt.Sprintf("Invalid date format for %s (expected YYYY-MM-DD): %s", field, value))
		}
	}
	return reasons
}

// checkEmail applies a standard mailbox-syntax check to the customer email.
func checkEmail(row sales.RawRecord) []string {
	value := row.Get(sales.FieldCustomerEmail)
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return []string{fmt.Sprintf("Invalid email format: %s", value)}
	}
	return nil
}

// checkPrice verifies the purchase price is numeric and strictly positive,
// and that its literal decimal text carries at most two fractional digits.
// The decimal count is deliberately lexical: "1.100" is rejected even though
// it parses to 1.1.
func checkPrice(row sales.RawRecord) []string {
	value := row.Get(sales.FieldProductPurchasePrice)
	price, err := strconv.ParseFloat(value, 64)
	if err != nil || price <= 0 {
		return []string{fmt.Sprintf("Invalid price (must be > 0): %s", value)}
	}
	if _, frac, found := strings.Cut(value, "."); found && len(frac) > 2 {
		return []string{fmt.Sprintf("Price has too many decimals (max 2): %s", value)}
	}
	return nil
}

// checkWarrantyCode applies the alphanumeric and length checks independently;
// a value can fail one or both.
func checkWarrantyCode(row sales.RawRecord) []string {
	value := row.Get(sales.FieldWarrantyCode)
	var reasons []string
	if !warrantyCodeRegex.MatchString(value) {
		reasons = append(reasons, fmt.Sprintf("Warranty code must be alphanumeric: %s", value))
	}
	if len(value) > 50 {
		reasons = append(reasons, fmt.Sprintf("Warranty code too long (max 50 chars): %s", value))
	}
	return reasons
}

// checkDateOrdering applies the three temporal invariants. It only runs after
// all format checks passed, so the date fields are guaranteed parseable.
func checkDateOrdering(row sales.RawRecord) []string {
	purchase := mustParseDate(row.Get(sales.FieldPurchaseDate))
	warrantyPurchase := mustParseDate(row.Get(sales.FieldWarrantyPurchaseDate))
	warrantyStart := mustParseDate(row.Get(sales.FieldWarrantyStartDate))
	warrantyEnd := mustParseDate(row.Get(sales.FieldWarrantyEndDate))

	var reasons []string
	if purchase.After(warrantyPurchase) {
		reasons = append(reasons, fmt.Sprintf("purchase_date (%s) must be <= warranty_purchase_date (%s)",
			row.Get(sales.FieldPurchaseDate), row.Get(sales.FieldWarrantyPurchaseDate)))
	}
	if warrantyPurchase.After(warrantyStart) {
		reasons = append(reasons, fmt.Sprintf("warranty_purchase_date (%s) must be <= warranty_start_date (%s)",
			row.Get(sales.FieldWarrantyPurchaseDate), row.Get(sales.FieldWarrantyStartDate)))
	}
	if !warrantyStart.Before(warrantyEnd) {
		reasons = append(reasons, fmt.Sprintf("warranty_start_date (%s) must be < warranty_end_date (%s)",
			row.Get(sales.FieldWarrantyStartDate), row.Get(sales.FieldWarrantyEndDate)))
	}
	return reasons
}

// mustParseDate parses a date field that already passed the format check.
// A zero time results for the impossible parse-failure case (e.g. 2024-13-45
// matches the regex but is not a real date); zero times still order
// deterministically, so the ordering checks stay total.
func mustParseDate(value string) time.Time {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
