// Package features encodes raw transactions into the fixed-order numeric
// vector the fraud classifier was fitted on.
//
// The field order below is a versioned contract shared with the offline
// training job: changing the order or the channel vocabulary requires
// shipping a new model artifact alongside (the artifact records the list it
// was trained with, and model.Load refuses a mismatch).
package features

import (
	"encoding/json"
	"strconv"
)

// FieldNames lists the encoded transaction fields in vector order.
var FieldNames = []string{
	"transaction_amount",
	"transaction_channel",
	"transaction_payment_mode_anonymous",
	"payment_gateway_bank_anonymous",
	"payer_browser_anonymous",
	"transaction_hour",
	"transaction_day",
	"transaction_month",
}

// VectorSize is the length of every encoded feature vector.
var VectorSize = len(FieldNames)

// channelCodes is the closed channel vocabulary used at training time.
// Unknown channels encode as -1.
var channelCodes = map[string]float64{
	"online": 0,
	"mobile": 1,
	"pos":    2,
}

// UnknownChannel is the sentinel code for channels outside the vocabulary.
const UnknownChannel = -1

// Encode maps a transaction's fields into the classifier's feature vector:
// [amount, channel_code, payment_mode, gateway, browser, hour, day, month].
// Missing or non-numeric fields encode as 0; the remaining categorical codes
// arrive already anonymized as integers and pass through unchanged.
func Encode(txn map[string]any) []float64 {
	v := make([]float64, 0, VectorSize)
	v = append(v, numeric(txn["transaction_amount"]))
	v = append(v, ChannelCode(txn["transaction_channel"]))
	v = append(v, numeric(txn["transaction_payment_mode_anonymous"]))
	v = append(v, numeric(txn["payment_gateway_bank_anonymous"]))
	v = append(v, numeric(txn["payer_browser_anonymous"]))
	v = append(v, numeric(txn["transaction_hour"]))
	v = append(v, numeric(txn["transaction_day"]))
	v = append(v, numeric(txn["transaction_month"]))
	return v
}

// Amount returns the transaction amount as a float, 0 when absent.
func Amount(txn map[string]any) float64 {
	return numeric(txn["transaction_amount"])
}

// ChannelCode maps a channel value through the training vocabulary. Numeric
// values are assumed pre-encoded and pass through.
func ChannelCode(v any) float64 {
	switch x := v.(type) {
	case string:
		if code, ok := channelCodes[x]; ok {
			return code
		}
		return UnknownChannel
	case nil:
		return UnknownChannel
	default:
		return numeric(v)
	}
}

// numeric coerces the value types a JSON transaction map can carry into a
// float64, defaulting to 0.
func numeric(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint64:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
}
