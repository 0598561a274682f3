package features

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestEncode_FullTransaction(t *testing.T) {
	txn := map[string]any{
		"transaction_id":                     "txn_001",
		"transaction_amount":                 1500.75,
		"transaction_channel":                "mobile",
		"transaction_payment_mode_anonymous": 3,
		"payment_gateway_bank_anonymous":     7,
		"payer_browser_anonymous":            2,
		"transaction_hour":                   14,
		"transaction_day":                    9,
		"transaction_month":                  6,
	}

	got := Encode(txn)
	want := []float64{1500.75, 1, 3, 7, 2, 14, 9, 6}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Encode = %v, want %v", got, want)
	}
}

func TestEncode_MissingFieldsDefaultToZero(t *testing.T) {
	got := Encode(map[string]any{"transaction_channel": "online"})
	want := []float64{0, 0, 0, 0, 0, 0, 0, 0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Encode = %v, want %v", got, want)
	}
}

func TestEncode_VectorLengthMatchesContract(t *testing.T) {
	if got := len(Encode(map[string]any{})); got != VectorSize {
		t.Errorf("vector length = %d, want %d", got, VectorSize)
	}
	if VectorSize != len(FieldNames) {
		t.Errorf("VectorSize %d disagrees with FieldNames %d", VectorSize, len(FieldNames))
	}
}

func TestChannelCode(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{"online", 0},
		{"mobile", 1},
		{"pos", 2},
		{"carrier_pigeon", -1},
		{"", -1},
		{nil, -1},
		{float64(2), 2}, // already encoded upstream
	}
	for _, tt := range tests {
		if got := ChannelCode(tt.in); got != tt.want {
			t.Errorf("ChannelCode(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEncode_ValueCoercion(t *testing.T) {
	// JSON decoding hands us float64s; clients occasionally send numbers as
	// strings; json.Number shows up when decoders use UseNumber.
	txn := map[string]any{
		"transaction_amount": "250.50",
		"transaction_hour":   json.Number("23"),
		"transaction_day":    int64(12),
		"transaction_month":  "not a number",
	}
	got := Encode(txn)
	if got[0] != 250.50 {
		t.Errorf("string amount = %v, want 250.50", got[0])
	}
	if got[5] != 23 {
		t.Errorf("json.Number hour = %v, want 23", got[5])
	}
	if got[6] != 12 {
		t.Errorf("int64 day = %v, want 12", got[6])
	}
	if got[7] != 0 {
		t.Errorf("garbage month = %v, want 0", got[7])
	}
}
