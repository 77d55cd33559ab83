// Package wallet exposes the typed RPC surface of a remote wallet reached
// over the nwc transport, plus the payment verification state machine built
// on top of it.
//
// # Dispatcher
//
// Client offers one method per supported wallet operation: GetInfo,
// MakeInvoice, PayInvoice, LookupInvoice, and ListTransactions. Each call
// serializes its parameters, performs one transport exchange, and decodes the
// method's result shape. No method retries internally; retry policy belongs
// to higher layers.
//
// # Verification
//
// VerifyPayment decides whether a previously issued invoice was paid using an
// ordered fallback chain:
//
//  1. lookup_invoice, conclusive when the wallet supports it;
//  2. a bounded list_transactions scan matching the payment hash within a
//     recent settlement window, where presence means paid but absence proves
//     nothing;
//  3. an optimistic "assume paid" answer when the wallet is reachable at all.
//
// The three paid outcomes stay distinguishable so that optimistic
// confirmations can be audited separately from verified ones. When even
// get_info fails, the result is ErrUnreachable, never a paid answer.
package wallet
