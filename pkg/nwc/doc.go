// Package nwc implements the client side of the wallet-control protocol: a
// request/response RPC exchanged as encrypted, signed envelopes over a
// publish/subscribe relay.
//
// # Connection descriptors
//
// A wallet connection is described by a single URI:
//
//	nostr+walletconnect://<wallet-pubkey>?relay=<relay-url>&secret=<hex-secret>
//
// ParseConnectionURI validates the URI and produces an immutable
// ConnectionDescriptor holding the relay address, the wallet service's public
// key, and the client's secret key. A missing relay falls back to
// DefaultRelayURL; a missing secret or wallet key is a hard parse error.
//
// # Envelopes
//
// Requests and responses travel as kind-tagged signed events. The request
// body is encrypted to the wallet's key using an ECDH-derived AES-256-CBC
// scheme; responses are encrypted back to the client with the same shared
// secret and reference the request envelope's identifier, which is how the
// transport correlates them.
//
// # Transport
//
// Transport.SendRequest publishes one request envelope, subscribes to
// response envelopes referencing it, and returns the first plaintext that
// decrypts successfully. Every exit path, including timeout and decrypt
// failure, closes the subscription and the relay connection.
package nwc
