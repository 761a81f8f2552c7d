// Package payment is a poll-only client for the crypto invoice provider.
// Invoices are created with the provider fee already added, and status is
// read by polling; the provider never calls back into us.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avdeenkov/cryptoshop/internal/pricing"
)

// InvoiceStatus is the provider-side view of an invoice. It is advisory:
// order state only ever changes on PAID, everything else leaves the order
// where it was.
type InvoiceStatus string

const (
	InvoiceActive  InvoiceStatus = "ACTIVE"
	InvoicePaid    InvoiceStatus = "PAID"
	InvoiceExpired InvoiceStatus = "EXPIRED"
	// InvoiceUnknown covers transport failures, malformed responses and
	// invoices the provider no longer reports.
	InvoiceUnknown InvoiceStatus = "UNKNOWN"
)

// InvoiceTTL is how long the provider keeps an invoice payable.
const InvoiceTTL = 900 * time.Second

const asset = "USDT"

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

type Invoice struct {
	ProviderID    string
	PayURL        string
	AmountWithFee float64
	ExpiresAt     time.Time
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL, token string, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

type apiResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  struct {
		Code int    `json:"code"`
		Name string `json:"name"`
	} `json:"error"`
}

type apiInvoice struct {
	InvoiceID     int64  `json:"invoice_id"`
	Status        string `json:"status"`
	PayURL        string `json:"pay_url"`
	BotInvoiceURL string `json:"bot_invoice_url"`
}

// CreateInvoice adds the provider fee to baseAmount and opens an invoice for
// the fee-inclusive total. The caller's order is not yet persisted when this
// runs, so any failure here aborts the purchase cleanly.
func (c *Client) CreateInvoice(ctx context.Context, baseAmount float64, description string) (*Invoice, error) {
	total := pricing.AddFee(baseAmount)

	form := url.Values{}
	form.Set("asset", asset)
	form.Set("amount", fmt.Sprintf("%.2f", total))
	form.Set("description", description)
	form.Set("expires_in", fmt.Sprintf("%d", int(InvoiceTTL.Seconds())))

	var inv apiInvoice
	if err := c.call(ctx, "createInvoice", form, &inv); err != nil {
		return nil, err
	}

	payURL := inv.BotInvoiceURL
	if payURL == "" {
		payURL = inv.PayURL
	}
	return &Invoice{
		ProviderID:    fmt.Sprintf("%d", inv.InvoiceID),
		PayURL:        payURL,
		AmountWithFee: total,
		ExpiresAt:     time.Now().UTC().Add(InvoiceTTL),
	}, nil
}

// CheckStatus polls the provider for a single invoice. It never returns an
// error: anything that prevents a trustworthy answer maps to UNKNOWN so the
// caller treats it like an unpaid poll.
func (c *Client) CheckStatus(ctx context.Context, providerID string) InvoiceStatus {
	form := url.Values{}
	form.Set("invoice_ids", providerID)

	var res struct {
		Items []apiInvoice `json:"items"`
	}
	if err := c.call(ctx, "getInvoices", form, &res); err != nil {
		c.log.Warn("invoice status check failed",
			zap.String("provider_invoice_id", providerID), zap.Error(err))
		return InvoiceUnknown
	}
	if len(res.Items) == 0 {
		return InvoiceUnknown
	}

	switch res.Items[0].Status {
	case "active":
		return InvoiceActive
	case "paid":
		return InvoicePaid
	case "expired":
		return InvoiceExpired
	}
	return InvoiceUnknown
}

func (c *Client) call(ctx context.Context, method string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Crypto-Pay-API-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrGatewayUnavailable, method, err)
	}
	if !body.OK {
		return fmt.Errorf("%w: %s: %s (%d)", ErrGatewayUnavailable, method, body.Error.Name, body.Error.Code)
	}
	if err := json.Unmarshal(body.Result, out); err != nil {
		return fmt.Errorf("%w: decode %s result: %v", ErrGatewayUnavailable, method, err)
	}
	return nil
}
