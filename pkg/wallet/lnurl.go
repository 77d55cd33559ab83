package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/zapstreak/zapstreak-sdk-go/pkg/model"
	"go.uber.org/zap"
)

// InvoiceFetcher obtains a bolt11 invoice for a destination that is not
// itself an invoice (a Lightning address or an lnurl string).
type InvoiceFetcher interface {
	FetchInvoice(ctx context.Context, destination string, amountMsat int64, comment string) (string, error)
}

// LnurlFetcher implements InvoiceFetcher over the lnurl-pay HTTP flow: fetch
// the pay-request parameters, then request an invoice for the amount from the
// callback URL.
type LnurlFetcher struct {
	http *http.Client
}

// NewLnurlFetcher builds a fetcher using the given HTTP client, or
// http.DefaultClient when nil.
func NewLnurlFetcher(hc *http.Client) *LnurlFetcher {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &LnurlFetcher{http: hc}
}

type payRequestParams struct {
	Callback    string `json:"callback"`
	MinSendable int64  `json:"minSendable"`
	MaxSendable int64  `json:"maxSendable"`
	Tag         string `json:"tag"`
	// CommentAllowed is the maximum comment length the service accepts.
	CommentAllowed int `json:"commentAllowed"`
}

type payRequestInvoice struct {
	PR     string `json:"pr"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// FetchInvoice resolves destination to a pay-request endpoint, validates the
// advertised sendable bounds, and returns a freshly issued invoice for
// amountMsat.
func (f *LnurlFetcher) FetchInvoice(ctx context.Context, destination string, amountMsat int64, comment string) (string, error) {
	endpoint, err := payEndpoint(destination)
	if err != nil {
		return "", err
	}

	var params payRequestParams
	if err := f.getJSON(ctx, endpoint, &params); err != nil {
		return "", fmt.Errorf("wallet: fetch pay request %s: %w", destination, err)
	}
	if params.Tag != "payRequest" {
		return "", fmt.Errorf("wallet: %s is not a pay endpoint (tag %q)", destination, params.Tag)
	}
	if params.MinSendable > 0 && amountMsat < params.MinSendable {
		return "", fmt.Errorf("wallet: amount %d below minimum %d for %s", amountMsat, params.MinSendable, destination)
	}
	if params.MaxSendable > 0 && amountMsat > params.MaxSendable {
		return "", fmt.Errorf("wallet: amount %d above maximum %d for %s", amountMsat, params.MaxSendable, destination)
	}

	cb, err := url.Parse(params.Callback)
	if err != nil {
		return "", fmt.Errorf("wallet: bad callback for %s: %w", destination, err)
	}
	q := cb.Query()
	q.Set("amount", fmt.Sprintf("%d", amountMsat))
	if comment != "" && params.CommentAllowed > 0 {
		if len(comment) > params.CommentAllowed {
			comment = comment[:params.CommentAllowed]
		}
		q.Set("comment", comment)
	}
	cb.RawQuery = q.Encode()

	var inv payRequestInvoice
	if err := f.getJSON(ctx, cb.String(), &inv); err != nil {
		return "", fmt.Errorf("wallet: fetch invoice from %s: %w", destination, err)
	}
	if strings.EqualFold(inv.Status, "ERROR") {
		return "", fmt.Errorf("wallet: pay endpoint %s refused: %s", destination, inv.Reason)
	}
	if inv.PR == "" {
		return "", fmt.Errorf("wallet: pay endpoint %s returned no invoice", destination)
	}

	zap.L().Debug("wallet: fetched invoice", zap.String("destination", destination), zap.Int64("amount_msat", amountMsat))
	return inv.PR, nil
}

func (f *LnurlFetcher) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// payEndpoint maps a destination to its lnurl-pay parameters URL. Lightning
// addresses use the well-known path on the address domain; lnurl strings are
// bech32-decoded to the embedded URL.
func payEndpoint(destination string) (string, error) {
	switch {
	case model.IsLightningAddress(destination):
		at := strings.Index(destination, "@")
		return fmt.Sprintf("https://%s/.well-known/lnurlp/%s", destination[at+1:], destination[:at]), nil
	case model.IsLnurl(destination):
		decoded, err := decodeLnurl(destination)
		if err != nil {
			return "", fmt.Errorf("wallet: decode lnurl: %w", err)
		}
		return decoded, nil
	}
	return "", fmt.Errorf("wallet: destination %q has no pay endpoint", destination)
}

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// decodeLnurl extracts the URL embedded in a bech32 lnurl string. The decoder
// is local because lnurl strings routinely exceed the 90-character limit that
// BIP-173 decoders enforce.
func decodeLnurl(s string) (string, error) {
	s = strings.ToLower(s)
	sep := strings.LastIndex(s, "1")
	if sep < 1 || sep+7 > len(s) {
		return "", fmt.Errorf("malformed bech32 string")
	}
	data := make([]byte, 0, len(s)-sep-1)
	for _, r := range s[sep+1:] {
		idx := strings.IndexRune(bech32Charset, r)
		if idx < 0 {
			return "", fmt.Errorf("invalid bech32 character %q", r)
		}
		data = append(data, byte(idx))
	}
	// Drop the 6-character checksum and regroup 5-bit words into bytes.
	data = data[:len(data)-6]
	var (
		acc  uint
		bits uint
		out  []byte
	)
	for _, v := range data {
		acc = acc<<5 | uint(v)
		bits += 5
		for bits >= 8 {
			bits -= 8
			out = append(out, byte(acc>>bits&0xff))
		}
	}
	u := string(out)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return "", fmt.Errorf("lnurl payload is not a URL")
	}
	return u, nil
}
