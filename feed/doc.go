/*
Package feed implements the offchain worker half of the faucet.

It periodically downloads a comment feed over HTTP, parses it into
candidate claims, verifies that each author proved knowledge of the raw
bytes behind the claimed address and drops records the chain would
reject anyway (already processed, older than the watermark or still in
cooldown). Whatever survives is submitted as a single disbursement
transaction.

Everything in this package is advisory. The deliver time handler in
x/faucet repeats every check against the authoritative state, so a
stale or even malicious filter result can waste a transaction but never
mint an extra payout.
*/
package feed
