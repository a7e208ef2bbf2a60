package mpesa

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

var _ Client = (*Daraja)(nil)

type (
	Config struct {
		BaseURL string `json:"base_url" mapstructure:"base_url"`

		ConsumerKey    string `json:"consumer_key" mapstructure:"consumer_key"`
		ConsumerSecret string `json:"consumer_secret" mapstructure:"consumer_secret"`

		// ShortCode and Passkey feed the Lipa na M-Pesa password.
		ShortCode string `json:"short_code" mapstructure:"short_code"`
		Passkey   string `json:"passkey" mapstructure:"passkey"`

		// CallbackURL is where Daraja delivers the asynchronous STK result.
		CallbackURL string `json:"callback_url" mapstructure:"callback_url"`

		Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	}

	Daraja struct {
		baseURL string

		consumerKey    string
		consumerSecret string

		shortCode string
		passkey   string

		callbackURL string

		// hc is the http client, bounded by the configured timeout.
		hc *http.Client

		// now is swapped out in tests to pin the password timestamp.
		now func() time.Time
	}
)

type Client interface {
	AccessToken(ctx context.Context) (string, error)
	InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal) (*STKPushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (map[string]any, error)
}

// STKPushResponse is Daraja's synchronous answer to a push request. The
// asynchronous outcome arrives later on the callback URL.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// Accepted reports whether the provider accepted the push request.
func (r *STKPushResponse) Accepted() bool {
	return r.ResponseCode == "0"
}

// New creates a new Daraja client.
func New(cfg *Config) *Daraja {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Daraja{
		baseURL:        cfg.BaseURL,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		shortCode:      cfg.ShortCode,
		passkey:        cfg.Passkey,
		callbackURL:    cfg.CallbackURL,
		hc:             &http.Client{Timeout: timeout},
		now:            time.Now,
	}
}
