// Package treasuryservice holds the token pool the vesting engine pays
// releases from. It tracks account balances, spender allowances, and the
// payout audit trail built from vesting.released events.
package treasuryservice
