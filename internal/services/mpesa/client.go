package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mpesa-gateway/internal/status"
	"mpesa-gateway/monitoring"

	"github.com/shopspring/decimal"
)

// AccessToken fetches a fresh OAuth token from Daraja. Tokens are not
// cached: every provider call pays the extra round trip.
func (d *Daraja) AccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("accessToken: http.NewRequestWithContext: %w", err)
	}
	req.SetBasicAuth(d.consumerKey, d.consumerSecret)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.hc.Do(req)
	monitoring.ObserveProviderRequest("access_token", start)
	if err != nil {
		return "", fmt.Errorf("accessToken: hc.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rbody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: accessToken: status %d: %s", status.ErrProvider, resp.StatusCode, rbody)
	}

	var reply struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("accessToken: json.Decode: %w", err)
	}
	if reply.AccessToken == "" {
		return "", status.ErrMissingAccessToken
	}

	return reply.AccessToken, nil
}

type stkPushRequest struct {
	BusinessShortCode string      `json:"BusinessShortCode"`
	Password          string      `json:"Password"`
	Timestamp         string      `json:"Timestamp"`
	TransactionType   string      `json:"TransactionType"`
	Amount            json.Number `json:"Amount"`
	PartyA            string      `json:"PartyA"`
	PartyB            string      `json:"PartyB"`
	PhoneNumber       string      `json:"PhoneNumber"`
	CallBackURL       string      `json:"CallBackURL"`
	AccountReference  string      `json:"AccountReference"`
	TransactionDesc   string      `json:"TransactionDesc"`
}

// InitiateSTKPush asks Daraja to raise a PIN prompt on the subscriber's
// device. A nil error only means the request was accepted; the outcome
// arrives later on the callback URL.
func (d *Daraja) InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal) (*STKPushResponse, error) {
	password, timestamp := d.stkPassword(d.now())

	body := stkPushRequest{
		BusinessShortCode: d.shortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            json.Number(amount.String()),
		PartyA:            phone,
		PartyB:            d.shortCode,
		PhoneNumber:       phone,
		CallBackURL:       d.callbackURL,
		AccountReference:  "PAYMENT",
		TransactionDesc:   "Payment for services",
	}

	var reply STKPushResponse
	start := time.Now()
	err := d.postJSON(ctx, "stkPush", "/mpesa/stkpush/v1/processrequest", body, &reply)
	monitoring.ObserveProviderRequest("stk_push", start)
	if err != nil {
		return nil, err
	}

	return &reply, nil
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// QueryStatus asks Daraja for the current state of a push identified by
// its checkout request id and returns the raw provider payload.
func (d *Daraja) QueryStatus(ctx context.Context, checkoutRequestID string) (map[string]any, error) {
	password, timestamp := d.stkPassword(d.now())

	body := stkQueryRequest{
		BusinessShortCode: d.shortCode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	var reply map[string]any
	start := time.Now()
	err := d.postJSON(ctx, "queryStatus", "/mpesa/stkpushquery/v1/query", body, &reply)
	monitoring.ObserveProviderRequest("stk_query", start)
	if err != nil {
		return nil, err
	}

	return reply, nil
}

// stkPassword derives the Lipa na M-Pesa password for the given time:
// base64(shortcode + passkey + timestamp) with a YYYYMMDDHHMMSS timestamp.
func (d *Daraja) stkPassword(t time.Time) (password, timestamp string) {
	timestamp = t.Format("20060102150405")
	password = base64.StdEncoding.EncodeToString([]byte(d.shortCode + d.passkey + timestamp))
	return password, timestamp
}

// postJSON performs an authenticated POST against Daraja and decodes the
// 2xx response into out.
func (d *Daraja) postJSON(ctx context.Context, op, path string, payload, out any) error {
	token, err := d.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: json.Marshal: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%s: http.NewRequestWithContext: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: hc.Do: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rbody, _ := io.ReadAll(resp.Body)
		if msg := providerErrorMessage(rbody); msg != "" {
			return fmt.Errorf("%w: %s", status.ErrProvider, msg)
		}
		return fmt.Errorf("%w: %s: status %d: %s", status.ErrProvider, op, resp.StatusCode, rbody)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: json.Decode: %v", status.ErrProvider, op, err)
	}

	return nil
}

// providerErrorMessage pulls the errorMessage field out of a Daraja error
// body, if the body is JSON at all.
func providerErrorMessage(body []byte) string {
	var reply struct {
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return ""
	}
	return reply.ErrorMessage
}
