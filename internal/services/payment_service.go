package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mpesa-gateway/internal/services/mpesa"
	"mpesa-gateway/internal/status"
	"mpesa-gateway/models"
	"mpesa-gateway/monitoring"

	"github.com/shopspring/decimal"
)

// TransactionRepository is the persistence surface the payment flow needs.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	FindByCheckoutID(ctx context.Context, checkoutID string) (*models.Transaction, error)
	Update(ctx context.Context, tx *models.Transaction) error
}

type PaymentService struct {
	repo   TransactionRepository
	daraja mpesa.Client
}

func NewPaymentService(repo TransactionRepository, daraja mpesa.Client) *PaymentService {
	return &PaymentService{
		repo:   repo,
		daraja: daraja,
	}
}

type InitiatePaymentRequest struct {
	PhoneNumber string
	Amount      decimal.Decimal
}

type InitiatePaymentResponse struct {
	Status            string `json:"status"`
	CheckoutRequestID string `json:"checkout_request_id"`
	Message           string `json:"message"`
}

var minAmount = decimal.NewFromInt(1)

// InitiatePayment validates the request, triggers the STK push and records
// the attempt as PENDING. A duplicate checkout id (the provider answered a
// retried client call with the same id) resolves to the existing row's
// status instead of an error, which is what makes client retries safe.
func (s *PaymentService) InitiatePayment(ctx context.Context, req InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	phone, err := models.NormalizePhoneNumber(req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if req.Amount.LessThan(minAmount) {
		return nil, status.ErrInvalidAmount
	}

	push, err := s.daraja.InitiateSTKPush(ctx, phone, req.Amount)
	if err != nil {
		monitoring.RecordInitiation("provider_error")
		return nil, err
	}
	if !push.Accepted() {
		monitoring.RecordInitiation("rejected")
		msg := push.ResponseDescription
		if msg == "" {
			msg = "Failed to send STK push"
		}
		return nil, fmt.Errorf("%w: %s", status.ErrProvider, msg)
	}

	tx := &models.Transaction{
		Amount:      req.Amount,
		CheckoutID:  push.CheckoutRequestID,
		PhoneNumber: phone,
		Status:      models.StatusPending,
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		if errors.Is(err, status.ErrDuplicateCheckoutID) {
			existing, ferr := s.repo.FindByCheckoutID(ctx, push.CheckoutRequestID)
			if ferr != nil {
				return nil, ferr
			}
			monitoring.RecordInitiation("duplicate")
			return &InitiatePaymentResponse{
				Status:            strings.ToLower(string(existing.Status)),
				CheckoutRequestID: existing.CheckoutID,
				Message:           "Transaction already recorded",
			}, nil
		}
		return nil, err
	}

	monitoring.RecordInitiation("pending")
	slog.Info("stk push initiated", "checkout_request_id", tx.CheckoutID, "phone_number", phone)

	return &InitiatePaymentResponse{
		Status:            "pending",
		CheckoutRequestID: tx.CheckoutID,
		Message:           "STK push initiated successfully",
	}, nil
}

// CallbackAck is the result payload returned to the provider. Daraja
// stops redelivering once it receives a well-formed acknowledgment.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// HandleCallback applies the provider's asynchronous result to the
// matching transaction. Unknown checkout ids are acknowledged but never
// create a row: rows only originate from the initiation path. Redelivered
// callbacks for a terminal row are a no-op.
func (s *PaymentService) HandleCallback(ctx context.Context, cb *mpesa.STKCallback) (*CallbackAck, error) {
	tx, err := s.repo.FindByCheckoutID(ctx, cb.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, status.ErrTransactionNotFound) {
			monitoring.RecordCallback("not_found")
			slog.Warn("callback for unknown transaction", "checkout_request_id", cb.CheckoutRequestID)
			return &CallbackAck{ResultCode: 1, ResultDesc: "Transaction not found"}, nil
		}
		return nil, err
	}

	if tx.IsFinal() {
		monitoring.RecordCallback("redelivered")
		slog.Info("callback redelivered for settled transaction",
			"checkout_request_id", tx.CheckoutID, "status", tx.Status)
		return &CallbackAck{ResultCode: 0, ResultDesc: "Callback already processed"}, nil
	}

	if cb.ResultCode != 0 {
		tx.Status = models.StatusFailed
		if err := s.repo.Update(ctx, tx); err != nil {
			return nil, err
		}
		monitoring.RecordCallback("failed")
		slog.Info("payment failed", "checkout_request_id", tx.CheckoutID,
			"result_code", cb.ResultCode, "result_desc", cb.ResultDesc)
		return &CallbackAck{ResultCode: cb.ResultCode, ResultDesc: "Payment failed"}, nil
	}

	result, err := cb.PaymentResult()
	if err != nil {
		return nil, err
	}

	tx.Amount = result.Amount
	tx.MpesaReceiptNumber = &result.ReceiptNumber
	tx.PhoneNumber = result.PhoneNumber
	tx.Status = models.StatusSuccess
	if err := s.repo.Update(ctx, tx); err != nil {
		return nil, err
	}

	monitoring.RecordCallback("success")
	slog.Info("payment successful", "checkout_request_id", tx.CheckoutID,
		"mpesa_receipt_number", result.ReceiptNumber)

	return &CallbackAck{ResultCode: 0, ResultDesc: "Payment successful"}, nil
}

// QueryStatus re-queries the provider live for the state of a push. The
// stored record is deliberately not consulted: the caller wants the
// provider's view, including pushes that never produced a callback.
func (s *PaymentService) QueryStatus(ctx context.Context, checkoutRequestID string) (map[string]any, error) {
	if checkoutRequestID == "" {
		return nil, status.ErrMissingCheckoutID
	}
	return s.daraja.QueryStatus(ctx, checkoutRequestID)
}
