package status

import "errors"

var (
	ErrInvalidPhoneNumber = errors.New("payment: invalid phone number format, use 07... or 254...")
	ErrInvalidAmount      = errors.New("payment: amount must be at least 1")
	ErrMissingCheckoutID  = errors.New("payment: missing checkout_request_id")

	ErrDuplicateCheckoutID = errors.New("transaction: checkout id already exists")
	ErrTransactionNotFound = errors.New("transaction: transaction not found")

	ErrMalformedCallback  = errors.New("callback: malformed callback payload")
	ErrProvider           = errors.New("mpesa: provider request failed")
	ErrMissingAccessToken = errors.New("mpesa: access token missing in response")
)
