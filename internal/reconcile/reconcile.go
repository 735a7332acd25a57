// Package reconcile resolves free-text partner names to Salesforce account
// identifiers and annotates validated sales records with them.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"sales-import/internal/logging"
	"sales-import/internal/sales"
)

// AccountLookup resolves a set of partner names to account identifiers.
// Names the remote registry does not recognize are simply absent from the
// returned map.
type AccountLookup interface {
	FindAccountsByNames(ctx context.Context, names []string) (map[string]string, error)
}

// Reconciler enriches validated records with account identifiers.
type Reconciler struct {
	lookup AccountLookup
}

// NewReconciler creates a Reconciler backed by the given lookup collaborator.
func NewReconciler(lookup AccountLookup) *Reconciler {
	return &Reconciler{lookup: lookup}
}

// Result carries the enriched records plus the enrichment counters the
// caller reports on.
type Result struct {
	Enriched  []sales.EnrichedRecord
	Matched   int // records that received a non-empty account id
	Unmatched int // records whose partner name was not found
}

// Reconcile annotates each record with its partner's account identifier.
// The lookup collaborator is invoked exactly once with the distinct partner
// names, so cost is bounded by distinct partners, not records. Unmatched
// partners yield empty identifiers; output order equals input order.
func (r *Reconciler) Reconcile(ctx context.Context, records []sales.Record) (Result, error) {
	start := time.Now()
	logging.Logf(logging.Info, "Starting partner reconciliation (sales_count=%d)", len(records))

	names := distinctPartnerNames(records)
	logging.Logf(logging.Info, "Found unique partners (partner_count=%d partners=%v)", len(names), names)

	mapping, err := r.lookup.FindAccountsByNames(ctx, names)
	if err != nil {
		return Result{}, fmt.Errorf("failed to reconcile partners: %w", err)
	}
	logging.Logf(logging.Info, "Account mapping retrieved (mapped_partners=%d)", len(mapping))

	unmapped := make([]string, 0)
	for _, name := range names {
		if mapping[name] == "" {
			unmapped = append(unmapped, name)
		}
	}
	if len(unmapped) > 0 {
		logging.Logf(logging.Warning, "Some partners not found in Salesforce (unmapped_count=%d unmapped_partners=%v)", len(unmapped), unmapped)
	}

	result := Result{Enriched: make([]sales.EnrichedRecord, 0, len(records))}
	for _, rec := range records {
		accountID := mapping[rec.PartnerName]
		if accountID == "" {
			result.Unmatched++
			logging.Logf(logging.Debug, "Sale without account id (partner_name=%s invoice_number=%s)", rec.PartnerName, rec.InvoiceNumber)
		} else {
			result.Matched++
		}
		result.Enriched = append(result.Enriched, sales.EnrichedRecord{Record: rec, AccountID: accountID})
	}

	logging.Logf(logging.Info, "Partner reconciliation completed (enriched_sales=%d with_account_id=%d without_account_id=%d duration=%s)",
		len(result.Enriched), result.Matched, result.Unmatched, time.Since(start).Round(time.Millisecond))
	return result, nil
}

// distinctPartnerNames returns the distinct partner names in first-seen
// order. Matching is exact and case-sensitive.
func distinctPartnerNames(records []sales.Record) []string {
	seen := make(map[string]struct{}, len(records))
	names := make([]string, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.PartnerName]; ok {
			continue
		}
		seen[rec.PartnerName] = struct{}{}
		names = append(names, rec.PartnerName)
	}
	return names
}
