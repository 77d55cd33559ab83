package nwc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// Envelope kinds used by the wallet-control protocol.
const (
	// KindRequest tags an encrypted RPC request envelope.
	KindRequest = 23194
	// KindResponse tags an encrypted RPC response envelope.
	KindResponse = 23195
	// KindInfo tags the wallet service's capability announcement.
	KindInfo = 13194
)

// Event is a signed relay envelope. ID is the hex sha256 of the canonical
// serialization; Sig is the client's signature over the raw ID bytes.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// newRequestEvent builds, encrypts, and signs a request envelope carrying
// payload, addressed to the descriptor's wallet via a "p" tag.
func newRequestEvent(d *ConnectionDescriptor, payload []byte, now time.Time) (*Event, error) {
	content, err := encryptPayload(d, payload)
	if err != nil {
		return nil, fmt.Errorf("nwc: encrypt request: %w", err)
	}

	ev := &Event{
		PubKey:    d.ClientPubKey(),
		CreatedAt: now.Unix(),
		Kind:      KindRequest,
		Tags:      [][]string{{"p", d.WalletPubKey}},
		Content:   content,
	}
	if err := ev.sign(d); err != nil {
		return nil, err
	}
	return ev, nil
}

// sign computes the envelope ID and signs it with the descriptor's secret.
func (ev *Event) sign(d *ConnectionDescriptor) error {
	id, err := ev.computeID()
	if err != nil {
		return err
	}
	ev.ID = hex.EncodeToString(id)

	sig, err := crypto.Sign(id, d.secret)
	if err != nil {
		return fmt.Errorf("nwc: sign envelope: %w", err)
	}
	ev.Sig = hex.EncodeToString(sig)
	return nil
}

// computeID hashes the canonical form [0, pubkey, created_at, kind, tags,
// content].
func (ev *Event) computeID() ([]byte, error) {
	canonical, err := json.Marshal([]interface{}{
		0, ev.PubKey, ev.CreatedAt, ev.Kind, ev.Tags, ev.Content,
	})
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(canonical)
	return sum[:], nil
}

// references reports whether the event carries an "e" tag pointing at the
// given envelope ID. Response envelopes reference their request this way.
func (ev *Event) references(id string) bool {
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == "e" && tag[1] == id {
			return true
		}
	}
	return false
}

// filter is the subscription filter shape understood by relays.
type filter struct {
	Kinds   []int    `json:"kinds,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Refs    []string `json:"#e,omitempty"`
}
