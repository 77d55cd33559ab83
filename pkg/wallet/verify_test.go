package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/zapstreak/zapstreak-sdk-go/pkg/nwc"
)

// scriptedWallet answers each RPC method with a canned response. Methods with
// no entry fail the exchange, simulating an unreachable wallet for that call.
type scriptedWallet map[string]interface{}

func (s scriptedWallet) SendRequest(ctx context.Context, d *nwc.ConnectionDescriptor, payload []byte) ([]byte, error) {
	var req rpcRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	result, ok := s[req.Method]
	if !ok {
		return nil, nwc.ErrTimeout
	}
	return json.Marshal(map[string]interface{}{"result_type": req.Method, "result": result})
}

var testPending = PendingInvoice{
	Invoice:     "lnbc10n1fake",
	PaymentHash: "deadbeef",
	IssuedAt:    time.Now(),
}

func TestVerifyPayment_DirectLookup(t *testing.T) {
	c := NewClient(nil, WithTransport(scriptedWallet{
		MethodLookupInvoice: map[string]bool{"settled": true},
	}))

	out, err := c.VerifyPayment(context.Background(), testPending)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !out.Paid || out.Tier != TierDirect {
		t.Errorf("outcome = %+v, want paid via direct lookup", out)
	}
}

func TestVerifyPayment_DirectLookupUnpaid(t *testing.T) {
	c := NewClient(nil, WithTransport(scriptedWallet{
		MethodLookupInvoice: map[string]bool{"settled": false},
	}))

	out, err := c.VerifyPayment(context.Background(), testPending)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Paid || out.Tier != TierDirect {
		t.Errorf("outcome = %+v, want authoritative unpaid", out)
	}
}

func TestVerifyPayment_FallsBackToScan(t *testing.T) {
	c := NewClient(nil, WithTransport(scriptedWallet{
		// No settled field: lookup is unsupported.
		MethodLookupInvoice: map[string]string{},
		MethodListTransactions: map[string]interface{}{
			"transactions": []map[string]interface{}{
				{
					"type":         "incoming",
					"payment_hash": testPending.PaymentHash,
					"settled":      true,
					"settled_at":   testPending.IssuedAt.Add(time.Minute).Unix(),
				},
			},
		},
	}))

	out, err := c.VerifyPayment(context.Background(), testPending)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !out.Paid || out.Tier != TierScanned {
		t.Errorf("outcome = %+v, want paid via scan", out)
	}
}

func TestVerifyPayment_ScanIgnoresOutOfWindowMatch(t *testing.T) {
	c := NewClient(nil, WithTransport(scriptedWallet{
		MethodLookupInvoice: map[string]string{},
		MethodListTransactions: map[string]interface{}{
			"transactions": []map[string]interface{}{
				{
					"type":         "incoming",
					"payment_hash": testPending.PaymentHash,
					"settled":      true,
					"settled_at":   testPending.IssuedAt.Add(-2 * time.Hour).Unix(),
				},
			},
		},
		MethodGetInfo: map[string]interface{}{"balance": 1},
	}))

	out, err := c.VerifyPayment(context.Background(), testPending)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Tier != TierOptimistic {
		t.Errorf("tier = %v, want fall through to optimistic", out.Tier)
	}
}

func TestVerifyPayment_OptimisticWhenReachable(t *testing.T) {
	c := NewClient(nil, WithTransport(scriptedWallet{
		MethodGetInfo: map[string]interface{}{"balance": 1},
	}), WithVerifyTimeout(200*time.Millisecond))

	out, err := c.VerifyPayment(context.Background(), testPending)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !out.Paid || out.Tier != TierOptimistic {
		t.Errorf("outcome = %+v, want optimistic paid", out)
	}
}

func TestVerifyPayment_Unreachable(t *testing.T) {
	c := NewClient(nil, WithTransport(scriptedWallet{}), WithVerifyTimeout(200*time.Millisecond))

	_, err := c.VerifyPayment(context.Background(), testPending)
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("got %v, want ErrUnreachable", err)
	}
}

func TestVerifyTierString(t *testing.T) {
	for tier, want := range map[VerifyTier]string{
		TierDirect:     "direct",
		TierScanned:    "scanned",
		TierOptimistic: "optimistic",
		VerifyTier(0):  "unknown",
	} {
		if got := tier.String(); got != want {
			t.Errorf("tier %d = %q, want %q", tier, got, want)
		}
	}
}
