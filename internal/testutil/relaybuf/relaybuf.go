// Package relaybuf provides an in-process relay-plus-wallet used by transport
// and dispatcher tests. It upgrades HTTP connections to websockets, decrypts
// incoming request envelopes with the wallet-side shared secret, dispatches
// them to a test handler, and publishes encrypted response envelopes on the
// matching subscription.
package relaybuf

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/nwc"
)

// Handler answers one decrypted RPC request on the wallet side.
type Handler func(method string, params json.RawMessage) (interface{}, *nwc.RemoteError)

// Relay is the running fake. Close the embedded server when done.
type Relay struct {
	Server *httptest.Server

	handler      Handler
	silent       bool
	garbageFirst bool
	garbageOnly  bool

	serviceKey *ecdsa.PrivateKey
	clientKey  *ecdsa.PrivateKey
}

// Option customises relay behavior for failure-path tests.
type Option func(*Relay)

// Silent makes the relay accept requests but never respond.
func Silent() Option {
	return func(r *Relay) { r.silent = true }
}

// GarbageOnly makes every response envelope undecryptable.
func GarbageOnly() Option {
	return func(r *Relay) { r.garbageOnly = true }
}

// GarbageFirst publishes one undecryptable envelope before the real response.
func GarbageFirst() Option {
	return func(r *Relay) { r.garbageFirst = true }
}

// Start spins up the fake relay with the given handler.
func Start(handler Handler, opts ...Option) (*Relay, error) {
	serviceKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	clientKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	r := &Relay{
		handler:    handler,
		serviceKey: serviceKey,
		clientKey:  clientKey,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Server = httptest.NewServer(http.HandlerFunc(r.serve))
	return r, nil
}

// Close shuts the relay down.
func (r *Relay) Close() {
	r.Server.Close()
}

// ConnectionURI returns a wallet-connect URI pointing at the fake relay.
func (r *Relay) ConnectionURI() string {
	relayURL := "ws" + strings.TrimPrefix(r.Server.URL, "http")
	return fmt.Sprintf("%s://%s?relay=%s&secret=%s",
		nwc.SchemeWalletConnect,
		xOnly(&r.serviceKey.PublicKey),
		relayURL,
		hex.EncodeToString(crypto.FromECDSA(r.clientKey)),
	)
}

var upgrader = websocket.Upgrader{}

func (r *Relay) serve(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// One request event and one subscription per connection is all the
	// transport ever opens.
	var pending *nwc.Event

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame []json.RawMessage
		if err := json.Unmarshal(raw, &frame); err != nil || len(frame) == 0 {
			continue
		}
		var label string
		if err := json.Unmarshal(frame[0], &label); err != nil {
			continue
		}

		switch label {
		case "EVENT":
			var ev nwc.Event
			if err := json.Unmarshal(frame[1], &ev); err != nil {
				continue
			}
			pending = &ev
			_ = writeFrame(conn, "OK", ev.ID, true, "")
		case "REQ":
			if pending == nil || r.silent {
				continue
			}
			var subID string
			if err := json.Unmarshal(frame[1], &subID); err != nil {
				continue
			}
			if r.garbageFirst || r.garbageOnly {
				bad := r.responseEvent(pending, "bm90LXZhbGlk?iv=bm90LXZhbGlk")
				_ = writeFrame(conn, "EVENT", subID, bad)
				if r.garbageOnly {
					_ = writeFrame(conn, "EOSE", subID)
					continue
				}
			}
			resp, err := r.answer(pending)
			if err != nil {
				continue
			}
			_ = writeFrame(conn, "EVENT", subID, resp)
			_ = writeFrame(conn, "EOSE", subID)
		case "CLOSE":
			// Subscription teardown; nothing to release in the fake.
		}
	}
}

// answer decrypts the request, runs the handler, and builds the encrypted
// response envelope.
func (r *Relay) answer(req *nwc.Event) (*nwc.Event, error) {
	secret, err := r.shared(req.PubKey)
	if err != nil {
		return nil, err
	}
	plaintext, err := decryptCBC(secret, req.Content)
	if err != nil {
		return nil, err
	}

	var rpc struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(plaintext, &rpc); err != nil {
		return nil, err
	}

	result, remoteErr := r.handler(rpc.Method, rpc.Params)
	body := map[string]interface{}{"result_type": rpc.Method}
	if remoteErr != nil {
		body["error"] = remoteErr
	} else {
		body["result"] = result
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	content, err := encryptCBC(secret, encoded)
	if err != nil {
		return nil, err
	}
	return r.responseEvent(req, content), nil
}

// responseEvent wraps content in a signed response envelope referencing req.
func (r *Relay) responseEvent(req *nwc.Event, content string) *nwc.Event {
	ev := &nwc.Event{
		PubKey:    xOnly(&r.serviceKey.PublicKey),
		CreatedAt: time.Now().Unix(),
		Kind:      nwc.KindResponse,
		Tags:      [][]string{{"e", req.ID}, {"p", req.PubKey}},
		Content:   content,
	}
	canonical, _ := json.Marshal([]interface{}{0, ev.PubKey, ev.CreatedAt, ev.Kind, ev.Tags, ev.Content})
	sum := sha256.Sum256(canonical)
	ev.ID = hex.EncodeToString(sum[:])
	if sig, err := crypto.Sign(sum[:], r.serviceKey); err == nil {
		ev.Sig = hex.EncodeToString(sig)
	}
	return ev
}

// shared derives the wallet-side ECDH secret with the client's x-only pubkey.
func (r *Relay) shared(clientHex string) ([]byte, error) {
	b, err := hex.DecodeString(clientHex)
	if err != nil || len(b) != 32 {
		return nil, fmt.Errorf("bad client pubkey %q", clientHex)
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
	x, _ := crypto.S256().ScalarMult(pub.X, pub.Y, r.serviceKey.D.Bytes())
	key := make([]byte, 32)
	x.FillBytes(key)
	return key, nil
}

func xOnly(pub *ecdsa.PublicKey) string {
	x := make([]byte, 32)
	pub.X.FillBytes(x)
	return hex.EncodeToString(x)
}

func writeFrame(conn *websocket.Conn, elems ...interface{}) error {
	b, err := json.Marshal(elems)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

func encryptCBC(key, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := append(append([]byte{}, plaintext...), make([]byte, pad)...)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)
	return base64.StdEncoding.EncodeToString(ct) + "?iv=" + base64.StdEncoding.EncodeToString(iv), nil
}

func decryptCBC(key []byte, content string) ([]byte, error) {
	parts := strings.Split(content, "?iv=")
	if len(parts) != 2 {
		return nil, fmt.Errorf("missing iv")
	}
	ct, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, err
	}
	iv, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, err
	}
	if len(iv) != aes.BlockSize || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("bad block sizes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)
	pad := int(pt[len(pt)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(pt) {
		return nil, fmt.Errorf("bad padding")
	}
	return pt[:len(pt)-pad], nil
}
