package nwc_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/zapstreak/zapstreak-sdk-go/internal/testutil/relaybuf"
	"github.com/zapstreak/zapstreak-sdk-go/pkg/nwc"
)

func echoHandler(method string, params json.RawMessage) (interface{}, *nwc.RemoteError) {
	return map[string]interface{}{"method": method}, nil
}

func dialFake(t *testing.T, relay *relaybuf.Relay) *nwc.ConnectionDescriptor {
	t.Helper()
	d, err := nwc.ParseConnectionURI(relay.ConnectionURI())
	if err != nil {
		t.Fatalf("parse fake uri: %v", err)
	}
	return d
}

func TestSendRequest(t *testing.T) {
	relay, err := relaybuf.Start(echoHandler)
	if err != nil {
		t.Fatalf("start relay: %v", err)
	}
	defer relay.Close()

	tr := nwc.NewTransport(nwc.WithRequestTimeout(5 * time.Second))
	plaintext, err := tr.SendRequest(context.Background(), dialFake(t, relay), []byte(`{"method":"get_info","params":{}}`))
	if err != nil {
		t.Fatalf("send request: %v", err)
	}

	var resp struct {
		Result struct {
			Method string `json:"method"`
		} `json:"result"`
	}
	if err := json.Unmarshal(plaintext, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Result.Method != "get_info" {
		t.Errorf("echoed method = %q", resp.Result.Method)
	}
}

func TestSendRequest_Timeout(t *testing.T) {
	relay, err := relaybuf.Start(echoHandler, relaybuf.Silent())
	if err != nil {
		t.Fatalf("start relay: %v", err)
	}
	defer relay.Close()

	tr := nwc.NewTransport(nwc.WithRequestTimeout(300 * time.Millisecond))
	_, err = tr.SendRequest(context.Background(), dialFake(t, relay), []byte(`{"method":"get_info"}`))
	if !errors.Is(err, nwc.ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestSendRequest_DecryptFailure(t *testing.T) {
	relay, err := relaybuf.Start(echoHandler, relaybuf.GarbageOnly())
	if err != nil {
		t.Fatalf("start relay: %v", err)
	}
	defer relay.Close()

	tr := nwc.NewTransport(nwc.WithRequestTimeout(500 * time.Millisecond))
	_, err = tr.SendRequest(context.Background(), dialFake(t, relay), []byte(`{"method":"get_info"}`))
	if !errors.Is(err, nwc.ErrDecrypt) {
		t.Fatalf("got %v, want ErrDecrypt", err)
	}
}

func TestSendRequest_FirstValidDecryptWins(t *testing.T) {
	relay, err := relaybuf.Start(echoHandler, relaybuf.GarbageFirst())
	if err != nil {
		t.Fatalf("start relay: %v", err)
	}
	defer relay.Close()

	tr := nwc.NewTransport(nwc.WithRequestTimeout(5 * time.Second))
	plaintext, err := tr.SendRequest(context.Background(), dialFake(t, relay), []byte(`{"method":"get_info"}`))
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	if len(plaintext) == 0 {
		t.Fatal("empty response after garbage envelope")
	}
}
