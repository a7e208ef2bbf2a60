package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"mpesa-gateway/internal/services"
	"mpesa-gateway/internal/services/mpesa"
	"mpesa-gateway/internal/status"

	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// InitiatePayment - POST /payment
func (h *PaymentHandler) InitiatePayment(c echo.Context) error {
	var req struct {
		PhoneNumber string      `json:"phone_number"`
		Amount      json.Number `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": "Invalid request body",
		})
	}

	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": "Invalid amount",
		})
	}

	resp, err := h.payments.InitiatePayment(c.Request().Context(), services.InitiatePaymentRequest{
		PhoneNumber: req.PhoneNumber,
		Amount:      amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, status.ErrInvalidPhoneNumber), errors.Is(err, status.ErrInvalidAmount):
			return c.JSON(http.StatusBadRequest, map[string]any{
				"status":  "error",
				"message": err.Error(),
			})
		case errors.Is(err, status.ErrProvider), errors.Is(err, status.ErrMissingAccessToken):
			return c.JSON(http.StatusBadRequest, map[string]any{
				"status":  "error",
				"message": err.Error(),
			})
		default:
			// Log the cause, return a generic message. Internals stay inside.
			slog.Error("initiate payment failed", "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]any{
				"status":  "error",
				"message": "Internal server error",
			})
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// Callback - POST /callback, provider-originated. The response is always
// a result payload: a transport error would make Daraja deliver again.
func (h *PaymentHandler) Callback(c echo.Context) error {
	var env mpesa.CallbackEnvelope
	if err := c.Bind(&env); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Invalid request data",
		})
	}

	cb := env.Body.STKCallback
	if cb.CheckoutRequestID == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Invalid request data: missing CheckoutRequestID",
		})
	}

	ack, err := h.payments.HandleCallback(c.Request().Context(), &cb)
	if err != nil {
		if errors.Is(err, status.ErrMalformedCallback) {
			return c.JSON(http.StatusBadRequest, map[string]any{
				"error": err.Error(),
			})
		}
		slog.Error("callback processing failed", "checkout_request_id", cb.CheckoutRequestID, "error", err)
		return c.JSON(http.StatusOK, services.CallbackAck{
			ResultCode: 1,
			ResultDesc: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, ack)
}

// Status - POST /status, live provider query for the client poll loop.
func (h *PaymentHandler) Status(c echo.Context) error {
	var req struct {
		CheckoutRequestID string `json:"checkout_request_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Invalid JSON body",
		})
	}

	payload, err := h.payments.QueryStatus(c.Request().Context(), req.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, status.ErrMissingCheckoutID) {
			return c.JSON(http.StatusBadRequest, map[string]any{
				"error": err.Error(),
			})
		}
		// Provider-side failures are usually a stale or unknown id, so
		// they surface as a client error with the provider's message.
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":              payload,
		"checkout_request_id": req.CheckoutRequestID,
	})
}
