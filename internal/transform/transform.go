// Package transform maps enriched sales records to the Salesforce
// Opportunity bulk-ingest wire format.
package transform

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"sales-import/internal/logging"
	"sales-import/internal/sales"
)

// Fixed Opportunity field values for warranty sales.
const (
	StageName       = "Closed Won"
	OpportunityType = "Warranty Extension"
)

// header is the Salesforce Opportunity column list, in wire order.
var header = []string{
	"AccountId",
	"Name",
	"StageName",
	"Type",
	"CloseDate",
	"Amount",
	"Customer_Email__c",
	"Product_Name__c",
	"Warranty_Code__c",
	"Warranty_Start_Date__c",
	"Warranty_End_Date__c",
	"Product_Purchase_Price__c",
	"Invoice_Number__c",
	"Purchase_Date__c",
	"Shipping_Address__c",
}

// Header returns a copy of the Salesforce column list in wire order.
func Header() []string {
	h := make([]string, len(header))
	copy(h, header)
	return h
}

// ToCSV serializes enriched records into the Bulk API 2.0 CSV payload:
// one fixed header row plus one row per record, RFC 4180 quoting, LF line
// endings. The LF requirement is part of the bulk endpoint's wire contract
// (jobs are created with lineEnding=LF), not a style choice. An empty input
// yields a header-only payload.
func ToCSV(enriched []sales.EnrichedRecord) ([]byte, error) {
	start := time.Now()
	logging.Logf(logging.Info, "Starting data transformation to Salesforce format (record_count=%d)", len(enriched))

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	// encoding/csv emits "\n" terminators unless UseCRLF is set, which
	// satisfies the LF contract on every platform.

	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write Salesforce CSV header: %w", err)
	}
	for i, rec := range enriched {
		if err := writer.Write(Row(rec)); err != nil {
			return nil, fmt.Errorf("failed to write Salesforce CSV row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush Salesforce CSV payload: %w", err)
	}

	payload := buf.Bytes()
	logging.Logf(logging.Info, "Data transformation completed (csv_size_bytes=%d duration=%s)",
		len(payload), time.Since(start).Round(time.Millisecond))
	return payload, nil
}

// Row maps one enriched record to its Salesforce column values. The mapping
// is a pure function of the record: composed Name and Shipping_Address__c,
// two fixed constants, and verbatim copies for the rest. Amount carries the
// original price text unparsed.
func Row(rec sales.EnrichedRecord) []string {
	return []string{
		rec.AccountID,
		fmt.Sprintf("%s - %s - %s", rec.WarrantyLabel, rec.CustomerEmail, rec.InvoiceNumber),
		StageName,
		OpportunityType,
		rec.WarrantyPurchaseDate,
		rec.ProductPurchasePrice,
		rec.CustomerEmail,
		rec.ProductName,
		rec.WarrantyCode,
		rec.WarrantyStartDate,
		rec.WarrantyEndDate,
		rec.ProductPurchasePrice,
		rec.InvoiceNumber,
		rec.PurchaseDate,
		fmt.Sprintf("%s, %s %s, %s", rec.AddressStreet, rec.AddressZipcode, rec.AddressCity, rec.AddressCountry),
	}
}
