/*
Package faucet implements a testnet token faucet driven by an external
comment feed.

An offchain worker (see the feed package) polls the feed, validates that
each comment author proves knowledge of the raw bytes behind the claimed
address and submits the qualifying records as a DisburseMsg transaction.
This package holds the consensus critical half: the deliver time state
transition re-checks record ordering against the persisted watermark,
moves a fixed amount of tokens to each recipient and throttles repeated
payouts to the same account with a per recipient block height cooldown.

A pull style ClaimMsg is supported as well, paying out from a registered
or configured pool account subject only to the cooldown.
*/
package faucet
