package mpesa

import (
	"fmt"
	"strconv"

	"mpesa-gateway/internal/status"

	"github.com/shopspring/decimal"
)

// Daraja delivers the asynchronous STK result as a nested envelope:
//
//	{"Body":{"stkCallback":{"ResultCode":0,"CheckoutRequestID":"...",
//	  "CallbackMetadata":{"Item":[{"Name":"Amount","Value":500},...]}}}}
type (
	CallbackEnvelope struct {
		Body CallbackBody `json:"Body"`
	}

	CallbackBody struct {
		STKCallback STKCallback `json:"stkCallback"`
	}

	STKCallback struct {
		MerchantRequestID string           `json:"MerchantRequestID"`
		CheckoutRequestID string           `json:"CheckoutRequestID"`
		ResultCode        int              `json:"ResultCode"`
		ResultDesc        string           `json:"ResultDesc"`
		CallbackMetadata  CallbackMetadata `json:"CallbackMetadata"`
	}

	CallbackMetadata struct {
		Item []MetadataItem `json:"Item"`
	}

	MetadataItem struct {
		Name  string `json:"Name"`
		Value any    `json:"Value"`
	}
)

// PaymentResult is the typed view of a successful callback's metadata.
type PaymentResult struct {
	Amount        decimal.Decimal
	ReceiptNumber string
	PhoneNumber   string
}

// PaymentResult maps the Name/Value metadata items into a fixed struct.
// Every required name must be present with a usable value; a partial item
// list fails instead of producing a half-filled result.
func (c *STKCallback) PaymentResult() (*PaymentResult, error) {
	items := make(map[string]any, len(c.CallbackMetadata.Item))
	for _, item := range c.CallbackMetadata.Item {
		items[item.Name] = item.Value
	}

	amount, err := metadataDecimal(items, "Amount")
	if err != nil {
		return nil, err
	}
	receipt, err := metadataString(items, "MpesaReceiptNumber")
	if err != nil {
		return nil, err
	}
	phone, err := metadataString(items, "PhoneNumber")
	if err != nil {
		return nil, err
	}

	return &PaymentResult{
		Amount:        amount,
		ReceiptNumber: receipt,
		PhoneNumber:   phone,
	}, nil
}

func metadataDecimal(items map[string]any, name string) (decimal.Decimal, error) {
	v, ok := items[name]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: missing %s", status.ErrMalformedCallback, name)
	}

	switch v := v.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s: %v", status.ErrMalformedCallback, name, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %s has unusable type %T", status.ErrMalformedCallback, name, v)
	}
}

func metadataString(items map[string]any, name string) (string, error) {
	v, ok := items[name]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", status.ErrMalformedCallback, name)
	}

	switch v := v.(type) {
	case string:
		return v, nil
	case float64:
		// Phone numbers arrive as JSON numbers.
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: %s has unusable type %T", status.ErrMalformedCallback, name, v)
	}
}
