package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mpesa-gateway/internal/status"
	"mpesa-gateway/models"

	"github.com/pocketbase/dbx"
)

// TransactionRepository is the sole writer of the transactions table.
// Both mutations are single statements, so the create-or-detect-duplicate
// sequence on the initiation path is atomic under concurrent retries.
type TransactionRepository struct {
	db *dbx.DB
}

func NewTransactionRepository(db *dbx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a new transaction and fills in its id and timestamps.
// An existing row with the same checkout id surfaces as
// status.ErrDuplicateCheckoutID via the unique index.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.Status == "" {
		tx.Status = models.StatusPending
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	res, err := r.db.Insert(tx.TableName(), dbx.Params{
		"amount":               tx.Amount,
		"checkout_id":          tx.CheckoutID,
		"mpesa_receipt_number": tx.MpesaReceiptNumber,
		"phone_number":         tx.PhoneNumber,
		"status":               string(tx.Status),
		"created_at":           tx.CreatedAt,
		"updated_at":           tx.UpdatedAt,
	}).WithContext(ctx).Execute()
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", status.ErrDuplicateCheckoutID, tx.CheckoutID)
		}
		return fmt.Errorf("create transaction: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		tx.ID = id
	}
	return nil
}

// FindByCheckoutID looks up the transaction correlated with a provider
// checkout id.
func (r *TransactionRepository) FindByCheckoutID(ctx context.Context, checkoutID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.Select().
		From(tx.TableName()).
		Where(dbx.HashExp{"checkout_id": checkoutID}).
		WithContext(ctx).
		One(&tx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", status.ErrTransactionNotFound, checkoutID)
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return &tx, nil
}

// Update writes the mutable fields back by checkout id and refreshes
// updated_at.
func (r *TransactionRepository) Update(ctx context.Context, tx *models.Transaction) error {
	tx.UpdatedAt = time.Now().UTC()

	_, err := r.db.Update(tx.TableName(), dbx.Params{
		"amount":               tx.Amount,
		"mpesa_receipt_number": tx.MpesaReceiptNumber,
		"phone_number":         tx.PhoneNumber,
		"status":               string(tx.Status),
		"updated_at":           tx.UpdatedAt,
	}, dbx.HashExp{"checkout_id": tx.CheckoutID}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
