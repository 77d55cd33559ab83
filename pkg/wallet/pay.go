package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zapstreak/zapstreak-sdk-go/pkg/model"
)

// PaymentReceipt describes one completed outbound payment.
type PaymentReceipt struct {
	Destination string
	Invoice     string
	// PaymentHash is derived from the preimage when the wallet returned
	// one; empty otherwise.
	PaymentHash string
	Preimage    string
}

// PayToDestination pays amountMsat to a destination in any supported form: a
// bolt11 invoice is paid directly, while Lightning addresses and lnurl
// strings go through a make-invoice-then-pay exchange against the
// destination's pay endpoint.
func (c *Client) PayToDestination(ctx context.Context, destination string, amountMsat int64, memo string) (*PaymentReceipt, error) {
	norm := strings.TrimPrefix(strings.TrimSpace(destination), "lightning:")

	var invoice string
	switch {
	case model.IsBolt11(norm):
		invoice = norm
	case model.IsLightningAddress(norm) || model.IsLnurl(norm):
		fetched, err := c.fetcher.FetchInvoice(ctx, norm, amountMsat, memo)
		if err != nil {
			return nil, err
		}
		invoice = fetched
	default:
		return nil, fmt.Errorf("wallet: destination %q is not payable", destination)
	}

	preimage, err := c.PayInvoice(ctx, invoice)
	if err != nil {
		return nil, err
	}

	receipt := &PaymentReceipt{
		Destination: destination,
		Invoice:     invoice,
		Preimage:    preimage,
	}
	if raw, err := hex.DecodeString(preimage); err == nil && len(raw) > 0 {
		sum := sha256.Sum256(raw)
		receipt.PaymentHash = hex.EncodeToString(sum[:])
	}
	return receipt, nil
}
