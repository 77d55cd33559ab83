package nwc

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultRelayURL is the well-known fallback relay used when a connection URI
// omits the relay parameter.
const DefaultRelayURL = "wss://relay.getalby.com/v1"

// Recognized URI schemes for wallet connections.
const (
	SchemeWalletConnect      = "nostr+walletconnect"
	SchemeWalletConnectShort = "walletconnect"
)

// ConnectionDescriptor identifies one logical wallet connection: where to
// reach the relay, which service key to encrypt to, and the client-held
// secret used for encryption and envelope signatures. Descriptors are
// immutable once constructed.
type ConnectionDescriptor struct {
	// RelayURL is the websocket address of the relay.
	RelayURL string
	// WalletPubKey is the wallet service's public key as 64 hex characters
	// (x coordinate only).
	WalletPubKey string

	walletKey *ecdsa.PublicKey
	secret    *ecdsa.PrivateKey
	clientPub string
}

// ParseConnectionURI parses a wallet-connect URI into a ConnectionDescriptor.
//
// The wallet key may appear as the host segment or, when the host is empty,
// as the opaque/path segment. The relay comes from the "relay" query
// parameter and defaults to DefaultRelayURL when absent. The "secret" query
// parameter is required. Any missing or malformed wallet key or secret fails
// the whole parse; no partial descriptor is ever returned.
func ParseConnectionURI(raw string) (*ConnectionDescriptor, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}

	switch u.Scheme {
	case SchemeWalletConnect, SchemeWalletConnectShort:
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, u.Scheme)
	}

	walletHex := u.Host
	if walletHex == "" {
		walletHex = u.Opaque
	}
	if walletHex == "" {
		walletHex = strings.Trim(u.Path, "/")
	}
	walletKey, err := parseXOnlyPubKey(walletHex)
	if err != nil {
		return nil, fmt.Errorf("%w: wallet key: %v", ErrInvalidURI, err)
	}

	q := u.Query()

	secretHex := q.Get("secret")
	if secretHex == "" {
		return nil, fmt.Errorf("%w: missing secret", ErrInvalidURI)
	}
	secret, err := crypto.HexToECDSA(secretHex)
	if err != nil {
		return nil, fmt.Errorf("%w: secret: %v", ErrInvalidURI, err)
	}

	relay := q.Get("relay")
	if relay == "" {
		relay = DefaultRelayURL
	}

	return &ConnectionDescriptor{
		RelayURL:     relay,
		WalletPubKey: strings.ToLower(walletHex),
		walletKey:    walletKey,
		secret:       secret,
		clientPub:    xOnlyHex(&secret.PublicKey),
	}, nil
}

// String re-serializes the descriptor as a wallet-connect URI. The result
// parses back to an equivalent descriptor.
func (d *ConnectionDescriptor) String() string {
	q := url.Values{}
	q.Set("relay", d.RelayURL)
	q.Set("secret", hex.EncodeToString(crypto.FromECDSA(d.secret)))
	return fmt.Sprintf("%s://%s?%s", SchemeWalletConnect, d.WalletPubKey, q.Encode())
}

// ClientPubKey returns the client's public key as 64 hex characters. This is
// the pubkey stamped on outgoing request envelopes.
func (d *ConnectionDescriptor) ClientPubKey() string {
	return d.clientPub
}

// parseXOnlyPubKey decodes a 64-hex x-only public key into a full curve
// point, trying the even-Y parity first.
func parseXOnlyPubKey(h string) (*ecdsa.PublicKey, error) {
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	compressed := append([]byte{0x02}, b...)
	pub, err := crypto.DecompressPubkey(compressed)
	if err != nil {
		compressed[0] = 0x03
		pub, err = crypto.DecompressPubkey(compressed)
	}
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// xOnlyHex renders a public key as its 64-hex x coordinate.
func xOnlyHex(pub *ecdsa.PublicKey) string {
	x := make([]byte, 32)
	pub.X.FillBytes(x)
	return hex.EncodeToString(x)
}
