package nwc

import (
	"errors"
	"strings"
	"testing"
)

const (
	testSecret = "67dea2ed018072d675f5415ecfaed7d2597555e202d85b3d65ea4e58d2d92ffa"
	testWallet = "b889ff5b1513b641e2bcd5d40fd9dab090f67f9752774725ef9e9ac7882a5039"
)

func TestParseConnectionURI(t *testing.T) {
	uri := "nostr+walletconnect://" + testWallet + "?relay=wss://relay.example.com&secret=" + testSecret

	d, err := ParseConnectionURI(uri)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.RelayURL != "wss://relay.example.com" {
		t.Errorf("relay = %q", d.RelayURL)
	}
	if d.WalletPubKey != testWallet {
		t.Errorf("wallet key = %q", d.WalletPubKey)
	}
	if len(d.ClientPubKey()) != 64 {
		t.Errorf("client pubkey = %q", d.ClientPubKey())
	}
}

func TestParseConnectionURI_DefaultRelay(t *testing.T) {
	d, err := ParseConnectionURI("nostr+walletconnect://" + testWallet + "?secret=" + testSecret)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.RelayURL != DefaultRelayURL {
		t.Errorf("relay = %q, want fallback %q", d.RelayURL, DefaultRelayURL)
	}
}

func TestParseConnectionURI_WalletKeyInPath(t *testing.T) {
	d, err := ParseConnectionURI("walletconnect:///" + testWallet + "?secret=" + testSecret)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.WalletPubKey != testWallet {
		t.Errorf("wallet key = %q", d.WalletPubKey)
	}
}

func TestParseConnectionURI_Errors(t *testing.T) {
	cases := map[string]string{
		"bad scheme":     "https://" + testWallet + "?secret=" + testSecret,
		"missing secret": "nostr+walletconnect://" + testWallet + "?relay=wss://r.example",
		"missing wallet": "nostr+walletconnect://?secret=" + testSecret,
		"short wallet":   "nostr+walletconnect://abcd?secret=" + testSecret,
		"bad secret":     "nostr+walletconnect://" + testWallet + "?secret=nothex",
	}
	for name, uri := range cases {
		if _, err := ParseConnectionURI(uri); !errors.Is(err, ErrInvalidURI) {
			t.Errorf("%s: got %v, want ErrInvalidURI", name, err)
		}
	}
}

func TestConnectionURIRoundTrip(t *testing.T) {
	uri := "nostr+walletconnect://" + testWallet + "?relay=wss://relay.example.com&secret=" + testSecret

	d, err := ParseConnectionURI(uri)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	d2, err := ParseConnectionURI(d.String())
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if d2.RelayURL != d.RelayURL || d2.WalletPubKey != d.WalletPubKey || d2.ClientPubKey() != d.ClientPubKey() {
		t.Errorf("round trip mismatch: %q vs %q", d.String(), d2.String())
	}
	if !strings.Contains(d.String(), "secret="+testSecret) {
		t.Errorf("serialized uri lost the secret: %q", d.String())
	}
}
