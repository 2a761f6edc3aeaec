// Package ingest loads sales history exports into the transactions table.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/reorder-ai/internal/domain"
)

const (
	transactionSale = "SALE"
	paymentPaid     = "PAID"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var requiredColumns = []string{"item_id", "quantity", "timestamp"}

// SalesBatch holds the sale events parsed from one export.
type SalesBatch struct {
	Events  []domain.SaleEvent
	Rows    int
	Skipped int // non-sale rows
}

// ParseSalesCSV reads a sales export. Rows whose transaction_type is not SALE
// are skipped; a malformed row fails the whole batch with its line number.
func ParseSalesCSV(r io.Reader) (*SalesBatch, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty sales file")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colMap := make(map[string]int)
	for i, col := range header {
		col = strings.TrimPrefix(col, "\ufeff")
		colMap[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colMap[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	batch := &SalesBatch{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		line, _ := reader.FieldPos(0)
		batch.Rows++

		getValue := func(colName string) string {
			if idx, ok := colMap[colName]; ok && idx < len(record) {
				return strings.TrimSpace(record[idx])
			}
			return ""
		}

		txType := strings.ToUpper(getValue("transaction_type"))
		if txType == "" {
			txType = transactionSale
		}
		if txType != transactionSale {
			batch.Skipped++
			continue
		}

		event, err := parseSaleRow(getValue)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		batch.Events = append(batch.Events, event)
	}

	return batch, nil
}

func parseSaleRow(getValue func(string) string) (domain.SaleEvent, error) {
	itemID, err := strconv.ParseInt(getValue("item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		return domain.SaleEvent{}, fmt.Errorf("invalid item_id %q", getValue("item_id"))
	}

	// exports sometimes carry "3.0"
	qty, err := strconv.ParseFloat(getValue("quantity"), 64)
	if err != nil || qty <= 0 || qty != float64(int(qty)) {
		return domain.SaleEvent{}, fmt.Errorf("invalid quantity %q", getValue("quantity"))
	}

	ts, err := parseTimestamp(getValue("timestamp"))
	if err != nil {
		return domain.SaleEvent{}, err
	}

	status := strings.ToUpper(getValue("payment_status"))
	if status == "" {
		status = paymentPaid
	}

	return domain.SaleEvent{
		ItemID:           itemID,
		Quantity:         int(qty),
		Timestamp:        ts,
		PaymentConfirmed: status == paymentPaid,
	}, nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}
