package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusPending TransactionStatus = "PENDING"
	StatusSuccess TransactionStatus = "SUCCESS"
	StatusFailed  TransactionStatus = "FAILED"
)

// Transaction is one STK push attempt. The checkout id is issued by the
// provider at push time and correlates the later callback to this row.
type Transaction struct {
	ID                 int64             `db:"id" json:"id"`
	Amount             decimal.Decimal   `db:"amount" json:"amount"`
	CheckoutID         string            `db:"checkout_id" json:"checkout_id"`
	MpesaReceiptNumber *string           `db:"mpesa_receipt_number" json:"mpesa_receipt_number"`
	PhoneNumber        string            `db:"phone_number" json:"phone_number"`
	Status             TransactionStatus `db:"status" json:"status"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updated_at"`
}

func (t *Transaction) TableName() string {
	return "transactions"
}

// IsFinal reports whether the transaction has reached a terminal state.
// A terminal row must never transition again, even if the provider
// redelivers its callback.
func (t *Transaction) IsFinal() bool {
	return t.Status == StatusSuccess || t.Status == StatusFailed
}
