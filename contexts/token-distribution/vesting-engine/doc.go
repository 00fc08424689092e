// Package vestingengine implements the claim eligibility and release
// calculation engine for the Tranche token distribution platform.
//
// The module owns vesting schedules and per-recipient claim records and
// exposes HTTP command/query handlers plus the outbox relay worker
// entrypoint. Eligibility is gated by Merkle membership proofs against a
// per-schedule commitment root rather than an enumerable recipient list.
package vestingengine
