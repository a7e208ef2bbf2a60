package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mpesa-gateway/internal/services"
	"mpesa-gateway/internal/services/mpesa"
	"mpesa-gateway/internal/status"
	"mpesa-gateway/models"

	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, tx *models.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *mockRepository) FindByCheckoutID(ctx context.Context, checkoutID string) (*models.Transaction, error) {
	args := m.Called(ctx, checkoutID)
	if tx, ok := args.Get(0).(*models.Transaction); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepository) Update(ctx context.Context, tx *models.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

type mockDaraja struct {
	mock.Mock
}

func (m *mockDaraja) AccessToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockDaraja) InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal) (*mpesa.STKPushResponse, error) {
	args := m.Called(ctx, phone, amount)
	if resp, ok := args.Get(0).(*mpesa.STKPushResponse); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDaraja) QueryStatus(ctx context.Context, checkoutRequestID string) (map[string]any, error) {
	args := m.Called(ctx, checkoutRequestID)
	if payload, ok := args.Get(0).(map[string]any); ok {
		return payload, args.Error(1)
	}
	return nil, args.Error(1)
}

func setupTestHandler() (*PaymentHandler, *mockRepository, *mockDaraja) {
	repo := &mockRepository{}
	daraja := &mockDaraja{}
	return NewPaymentHandler(services.NewPaymentService(repo, daraja)), repo, daraja
}

func newJSONContext(method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e := echo.New()
	return e.NewContext(req, rec), rec
}

func TestPaymentHandler_InitiatePayment_InvalidBody(t *testing.T) {
	handler, _, _ := setupTestHandler()

	c, rec := newJSONContext(http.MethodPost, "/payment", "not json")

	require.NoError(t, handler.InitiatePayment(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentHandler_InitiatePayment_InvalidPhone(t *testing.T) {
	handler, _, daraja := setupTestHandler()

	c, rec := newJSONContext(http.MethodPost, "/payment", `{"phone_number":"12345","amount":100}`)

	require.NoError(t, handler.InitiatePayment(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	daraja.AssertNumberOfCalls(t, "InitiateSTKPush", 0)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
}

func TestPaymentHandler_InitiatePayment_Success(t *testing.T) {
	handler, repo, daraja := setupTestHandler()

	daraja.On("InitiateSTKPush", mock.Anything, "254712345678", mock.Anything).Return(&mpesa.STKPushResponse{
		CheckoutRequestID: "ws_CO_123",
		ResponseCode:      "0",
	}, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	c, rec := newJSONContext(http.MethodPost, "/payment", `{"phone_number":"0712345678","amount":100}`)

	require.NoError(t, handler.InitiatePayment(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body services.InitiatePaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pending", body.Status)
	assert.Equal(t, "ws_CO_123", body.CheckoutRequestID)
}

func TestPaymentHandler_InitiatePayment_UnexpectedErrorIsGeneric(t *testing.T) {
	handler, repo, daraja := setupTestHandler()

	daraja.On("InitiateSTKPush", mock.Anything, "254712345678", mock.Anything).Return(&mpesa.STKPushResponse{
		CheckoutRequestID: "ws_CO_123",
		ResponseCode:      "0",
	}, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(fmt.Errorf("disk I/O error"))

	c, rec := newJSONContext(http.MethodPost, "/payment", `{"phone_number":"0712345678","amount":100}`)

	require.NoError(t, handler.InitiatePayment(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// The underlying cause must not leak to the client.
	assert.NotContains(t, rec.Body.String(), "disk I/O error")
}

func TestPaymentHandler_Callback_MalformedJSON(t *testing.T) {
	handler, repo, _ := setupTestHandler()

	c, rec := newJSONContext(http.MethodPost, "/callback", "{broken")

	require.NoError(t, handler.Callback(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNumberOfCalls(t, "Update", 0)
}

func TestPaymentHandler_Callback_MissingCheckoutID(t *testing.T) {
	handler, _, _ := setupTestHandler()

	c, rec := newJSONContext(http.MethodPost, "/callback", `{"Body":{"stkCallback":{"ResultCode":0}}}`)

	require.NoError(t, handler.Callback(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentHandler_Callback_UnknownTransaction(t *testing.T) {
	handler, repo, _ := setupTestHandler()

	repo.On("FindByCheckoutID", mock.Anything, "ws_CO_missing").
		Return(nil, fmt.Errorf("%w: ws_CO_missing", status.ErrTransactionNotFound))

	c, rec := newJSONContext(http.MethodPost, "/callback",
		`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_missing","ResultCode":0}}}`)

	require.NoError(t, handler.Callback(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var ack services.CallbackAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, 1, ack.ResultCode)
	assert.Equal(t, "Transaction not found", ack.ResultDesc)
	repo.AssertNumberOfCalls(t, "Create", 0)
}

func TestPaymentHandler_Callback_InternalErrorStillAcks(t *testing.T) {
	handler, repo, _ := setupTestHandler()

	repo.On("FindByCheckoutID", mock.Anything, "ws_CO_123").
		Return(nil, fmt.Errorf("database is locked"))

	c, rec := newJSONContext(http.MethodPost, "/callback",
		`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_123","ResultCode":0}}}`)

	require.NoError(t, handler.Callback(c))
	// A transport error would make the provider redeliver, so internal
	// failures are acknowledged with a result payload instead.
	assert.Equal(t, http.StatusOK, rec.Code)

	var ack services.CallbackAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, 1, ack.ResultCode)
}

func TestPaymentHandler_Status_MissingID(t *testing.T) {
	handler, _, daraja := setupTestHandler()

	c, rec := newJSONContext(http.MethodPost, "/status", `{}`)

	require.NoError(t, handler.Status(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	daraja.AssertNumberOfCalls(t, "QueryStatus", 0)
}

func TestPaymentHandler_Status_Success(t *testing.T) {
	handler, _, daraja := setupTestHandler()

	daraja.On("QueryStatus", mock.Anything, "ws_CO_123").Return(map[string]any{
		"ResultCode": "0",
	}, nil)

	c, rec := newJSONContext(http.MethodPost, "/status", `{"checkout_request_id":"ws_CO_123"}`)

	require.NoError(t, handler.Status(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ws_CO_123", body["checkout_request_id"])
}

func TestPaymentHandler_Status_ProviderErrorIsClientError(t *testing.T) {
	handler, _, daraja := setupTestHandler()

	daraja.On("QueryStatus", mock.Anything, "ws_CO_stale").
		Return(nil, fmt.Errorf("%w: the transaction is being processed", status.ErrProvider))

	c, rec := newJSONContext(http.MethodPost, "/status", `{"checkout_request_id":"ws_CO_stale"}`)

	require.NoError(t, handler.Status(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
