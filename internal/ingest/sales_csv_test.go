package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSalesCSV(t *testing.T) {
	input := strings.Join([]string{
		"Item_ID, quantity ,timestamp,transaction_type,payment_status",
		"1,3,2026-10-01T08:30:00+07:00,SALE,PAID",
		"1,2.0,2026-10-02 14:00:00,,",
		"2,5,2026-10-03,RESTOCK,PAID",
		"2,1,2026-10-03,sale,pending",
	}, "\n")

	batch, err := ParseSalesCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 4, batch.Rows)
	assert.Equal(t, 1, batch.Skipped)
	require.Len(t, batch.Events, 3)

	first := batch.Events[0]
	assert.Equal(t, int64(1), first.ItemID)
	assert.Equal(t, 3, first.Quantity)
	assert.Equal(t, time.Date(2026, 10, 1, 1, 30, 0, 0, time.UTC), first.Timestamp)
	assert.True(t, first.PaymentConfirmed)

	assert.Equal(t, 2, batch.Events[1].Quantity)
	assert.True(t, batch.Events[1].PaymentConfirmed, "blank status defaults to paid")
	assert.False(t, batch.Events[2].PaymentConfirmed)
}

func TestParseSalesCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "empty sales file"},
		{"missing column", "item_id,quantity\n1,2", "missing required column: timestamp"},
		{"bad quantity", "item_id,quantity,timestamp\n1,2,2026-10-01\n1,0,2026-10-02", "line 3: invalid quantity"},
		{"fractional quantity", "item_id,quantity,timestamp\n1,1.5,2026-10-01", "line 2: invalid quantity"},
		{"bad item", "item_id,quantity,timestamp\nabc,1,2026-10-01", "line 2: invalid item_id"},
		{"bad timestamp", "item_id,quantity,timestamp\n1,1,01/10/2026", "line 2: invalid timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSalesCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseSalesCSV_ByteOrderMark(t *testing.T) {
	batch, err := ParseSalesCSV(strings.NewReader("\ufeffitem_id,quantity,timestamp\n4,1,2026-10-01\n"))
	require.NoError(t, err)
	require.Len(t, batch.Events, 1)
	assert.Equal(t, int64(4), batch.Events[0].ItemID)
}
