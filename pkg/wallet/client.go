package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zapstreak/zapstreak-sdk-go/pkg/model"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/nwc"
	"go.uber.org/zap"
)

// RPC method names understood by wallet services.
const (
	MethodGetInfo          = "get_info"
	MethodMakeInvoice      = "make_invoice"
	MethodPayInvoice       = "pay_invoice"
	MethodLookupInvoice    = "lookup_invoice"
	MethodListTransactions = "list_transactions"
)

// ErrLookupUnsupported is returned by LookupInvoice when the wallet's answer
// carries no settlement field. It means "the wallet cannot answer", which
// callers must not read as "not settled".
var ErrLookupUnsupported = errors.New("wallet: lookup_invoice not supported")

// Requester performs one encrypted request/response exchange. Satisfied by
// *nwc.Transport; tests substitute fakes.
type Requester interface {
	SendRequest(ctx context.Context, d *nwc.ConnectionDescriptor, payload []byte) ([]byte, error)
}

// Client is the typed RPC dispatcher bound to one wallet connection.
type Client struct {
	desc          *nwc.ConnectionDescriptor
	transport     Requester
	fetcher       InvoiceFetcher
	verifyTimeout time.Duration
	now           func() time.Time
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithTransport substitutes the transport implementation.
func WithTransport(r Requester) ClientOption {
	return func(c *Client) {
		if r != nil {
			c.transport = r
		}
	}
}

// WithInvoiceFetcher substitutes the lnurl-pay invoice fetcher used when
// paying address-form destinations.
func WithInvoiceFetcher(f InvoiceFetcher) ClientOption {
	return func(c *Client) {
		if f != nil {
			c.fetcher = f
		}
	}
}

// WithVerifyTimeout bounds each opportunistic status probe made by
// VerifyPayment. Default 10s, shorter than the transport's request timeout so
// verification stays responsive.
func WithVerifyTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.verifyTimeout = d
		}
	}
}

// WithClock sets the time source used for scan-window checks.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds a dispatcher for the given connection descriptor.
func NewClient(desc *nwc.ConnectionDescriptor, opts ...ClientOption) *Client {
	c := &Client{
		desc:          desc,
		transport:     nwc.NewTransport(),
		fetcher:       NewLnurlFetcher(nil),
		verifyTimeout: 10 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Descriptor returns the connection descriptor the client is bound to.
func (c *Client) Descriptor() *nwc.ConnectionDescriptor {
	return c.desc
}

type rpcRequest struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

type rpcResponse struct {
	ResultType string           `json:"result_type"`
	Result     json.RawMessage  `json:"result"`
	Error      *nwc.RemoteError `json:"error"`
}

// call performs one RPC exchange and decodes the result into out. A non-nil
// error body surfaces as *nwc.RemoteError; transport failures pass through
// unchanged (nwc.ErrTimeout, nwc.ErrDecrypt). Nothing is retried here.
func (c *Client) call(ctx context.Context, method string, params, out interface{}) error {
	body, err := json.Marshal(rpcRequest{Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("wallet: encode %s request: %w", method, err)
	}

	plaintext, err := c.transport.SendRequest(ctx, c.desc, body)
	if err != nil {
		return err
	}

	var resp rpcResponse
	if err := json.Unmarshal(plaintext, &resp); err != nil {
		return fmt.Errorf("wallet: decode %s response: %w", method, err)
	}
	if resp.Error != nil && resp.Error.Code != "" {
		return resp.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("wallet: decode %s result: %w", method, err)
	}
	return nil
}

// GetInfo fetches the wallet's balance, alias, and supported method list.
// Used both for balance display and as the reachability probe of the
// verification chain.
func (c *Client) GetInfo(ctx context.Context) (*model.WalletInfo, error) {
	var info model.WalletInfo
	if err := c.call(ctx, MethodGetInfo, struct{}{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

type makeInvoiceParams struct {
	AmountMsat int64  `json:"amount"`
	Memo       string `json:"description,omitempty"`
}

// MakeInvoice asks the wallet to issue an invoice for amountMsat. The amount
// must be positive; wallet-specific minimums are not validated here and
// surface as remote errors.
func (c *Client) MakeInvoice(ctx context.Context, amountMsat int64, memo string) (*model.Invoice, error) {
	if amountMsat <= 0 {
		return nil, fmt.Errorf("wallet: invoice amount must be positive, got %d", amountMsat)
	}
	var inv model.Invoice
	if err := c.call(ctx, MethodMakeInvoice, makeInvoiceParams{AmountMsat: amountMsat, Memo: memo}, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

type payInvoiceParams struct {
	Invoice string `json:"invoice"`
}

type payInvoiceResult struct {
	Preimage string `json:"preimage"`
}

// PayInvoice pays the given invoice and returns the settlement preimage when
// the wallet provides one. An empty preimage is not an error; many wallets
// confirm payment without returning it.
func (c *Client) PayInvoice(ctx context.Context, invoice string) (string, error) {
	var res payInvoiceResult
	if err := c.call(ctx, MethodPayInvoice, payInvoiceParams{Invoice: invoice}, &res); err != nil {
		return "", err
	}
	if res.Preimage == "" {
		zap.L().Debug("wallet: pay_invoice succeeded without preimage")
	}
	return res.Preimage, nil
}

type lookupInvoiceParams struct {
	PaymentHash string `json:"payment_hash"`
}

type lookupInvoiceResult struct {
	// Settled is a pointer so that a missing field is distinguishable from
	// an explicit false.
	Settled *bool `json:"settled"`
}

// LookupInvoice asks the wallet whether the invoice with the given payment
// hash has settled. Wallets are not required to implement this; when the
// response carries no settlement field the call fails with
// ErrLookupUnsupported rather than reporting the invoice unpaid.
func (c *Client) LookupInvoice(ctx context.Context, paymentHash string) (bool, error) {
	var res lookupInvoiceResult
	if err := c.call(ctx, MethodLookupInvoice, lookupInvoiceParams{PaymentHash: paymentHash}, &res); err != nil {
		return false, err
	}
	if res.Settled == nil {
		return false, ErrLookupUnsupported
	}
	return *res.Settled, nil
}

type listTransactionsParams struct {
	Limit int    `json:"limit,omitempty"`
	Type  string `json:"type,omitempty"`
}

type listTransactionsResult struct {
	Transactions []model.Transaction `json:"transactions"`
}

// ListTransactions returns up to limit recent transactions, optionally
// restricted to incoming ones.
func (c *Client) ListTransactions(ctx context.Context, limit int, incomingOnly bool) ([]model.Transaction, error) {
	params := listTransactionsParams{Limit: limit}
	if incomingOnly {
		params.Type = "incoming"
	}
	var res listTransactionsResult
	if err := c.call(ctx, MethodListTransactions, params, &res); err != nil {
		return nil, err
	}
	return res.Transactions, nil
}
