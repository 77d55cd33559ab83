// Package sdk exposes the high-level SDK entry points. It wires together the
// encrypted relay transport, the typed wallet dispatcher, local persistence,
// the destination resolver, and the reward payout engine.
//
// Construct a Core with NewSDK and a validated config. Two external
// collaborators are injected by the application: the profile lookup that maps
// identities to payment destinations, and the subscription-tier lookup that
// prices rewards. The SDK never retries wallet RPCs itself; all
// retry authority lives in the reward engine, which only ever moves on to the
// next destination candidate.
package sdk
