package nwc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds one full request/response exchange when the
// caller's context carries no earlier deadline.
const DefaultRequestTimeout = 30 * time.Second

// Transport performs one-shot encrypted request/response exchanges against a
// relay. It is stateless between calls: each request dials the relay, opens
// one subscription, and tears both down before returning.
type Transport struct {
	dialer  *websocket.Dialer
	timeout time.Duration
	now     func() time.Time
}

// TransportOption customises a Transport.
type TransportOption func(*Transport)

// WithRequestTimeout overrides the default per-request deadline.
func WithRequestTimeout(d time.Duration) TransportOption {
	return func(t *Transport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithDialer supplies a custom websocket dialer (TLS settings, proxies).
func WithDialer(d *websocket.Dialer) TransportOption {
	return func(t *Transport) {
		if d != nil {
			t.dialer = d
		}
	}
}

// WithClock sets the function used for envelope timestamps.
func WithClock(now func() time.Time) TransportOption {
	return func(t *Transport) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTransport constructs a Transport with default dialer and timeout.
func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{
		dialer:  websocket.DefaultDialer,
		timeout: DefaultRequestTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SendRequest encrypts payload to the descriptor's wallet, publishes it as a
// request envelope, and waits for the correlated response envelope.
//
// Exactly one response is expected. If several arrive, the first that
// decrypts successfully wins and the rest are ignored. When the deadline
// expires the call fails with ErrTimeout, or with ErrDecrypt if a correlated
// response did arrive but could not be decrypted. The subscription and the
// relay connection are closed on every outcome.
func (t *Transport) SendRequest(ctx context.Context, d *ConnectionDescriptor, payload []byte) ([]byte, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
		deadline, _ = ctx.Deadline()
	}

	conn, _, err := t.dialer.DialContext(ctx, d.RelayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("nwc: dial relay %s: %w", d.RelayURL, err)
	}
	defer conn.Close()

	ev, err := newRequestEvent(d, payload, t.now())
	if err != nil {
		return nil, err
	}

	if err := writeFrame(conn, deadline, "EVENT", ev); err != nil {
		return nil, fmt.Errorf("nwc: publish request: %w", err)
	}

	subID := uuid.NewString()
	sub := filter{
		Kinds:   []int{KindResponse},
		Authors: []string{d.WalletPubKey},
		Refs:    []string{ev.ID},
	}
	if err := writeFrame(conn, deadline, "REQ", subID, sub); err != nil {
		return nil, fmt.Errorf("nwc: open subscription: %w", err)
	}
	defer func() {
		// Best-effort unsubscribe before the connection drops.
		_ = writeFrame(conn, t.now().Add(time.Second), "CLOSE", subID)
	}()

	plaintext, err := t.awaitResponse(conn, d, ev.ID, subID, deadline)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// awaitResponse reads relay frames until a correlated response decrypts, the
// deadline passes, or the connection fails.
func (t *Transport) awaitResponse(conn *websocket.Conn, d *ConnectionDescriptor, requestID, subID string, deadline time.Time) ([]byte, error) {
	sawDecryptFailure := false

	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				if sawDecryptFailure {
					return nil, ErrDecrypt
				}
				return nil, ErrTimeout
			}
			return nil, fmt.Errorf("nwc: read relay frame: %w", err)
		}

		var frame []json.RawMessage
		if err := json.Unmarshal(raw, &frame); err != nil || len(frame) == 0 {
			zap.L().Debug("nwc: discarding malformed relay frame")
			continue
		}
		var label string
		if err := json.Unmarshal(frame[0], &label); err != nil {
			continue
		}

		switch label {
		case "EVENT":
			if len(frame) < 3 {
				continue
			}
			var sid string
			if err := json.Unmarshal(frame[1], &sid); err != nil || sid != subID {
				continue
			}
			var ev Event
			if err := json.Unmarshal(frame[2], &ev); err != nil {
				continue
			}
			if ev.Kind != KindResponse || !ev.references(requestID) {
				continue
			}
			plaintext, err := decryptPayload(d, ev.Content)
			if err != nil {
				zap.L().Warn("nwc: response decrypt failed", zap.String("event", ev.ID), zap.Error(err))
				sawDecryptFailure = true
				continue
			}
			return plaintext, nil
		case "OK", "EOSE", "NOTICE":
			// Publish acks and end-of-stored-events markers carry no
			// response payload.
			continue
		default:
			continue
		}
	}
}

// writeFrame serializes the given elements as a JSON array frame and writes
// it with the supplied deadline.
func writeFrame(conn *websocket.Conn, deadline time.Time, elems ...interface{}) error {
	b, err := json.Marshal(elems)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}
