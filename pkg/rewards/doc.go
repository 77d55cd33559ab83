// Package rewards implements the streak reward accrual and payout engine.
//
// # Pipeline
//
// Engine.AccrueAndPay is the single idempotent entry point, safe to call
// arbitrarily often for the same identity (a direct activity event and a
// periodic reconciliation pass may both drive it). One invocation walks five
// steps:
//
//  1. Accrual: fold the activity's UTC calendar day into the streak record
//     and persist it.
//  2. Eligibility: owed days = min(streak, cap) minus the last rewarded day.
//  3. Amount: price the owed days from the identity's subscription tier.
//  4. Payout: try each resolved destination sequentially, stopping at the
//     first success; every attempt lands in the pending payment's attempt log.
//  5. Finalization: only a successful payment advances the last rewarded day,
//     which is the sole mutation that makes a reward non-repeatable.
//
// Failed payouts leave the reward owed-but-unpaid and invalidate the
// resolver's cache for the identity, so the next triggering event retries
// against freshly resolved destinations.
//
// Concurrent calls for the same identity are serialized on a per-identity
// lock; distinct identities proceed independently.
package rewards
