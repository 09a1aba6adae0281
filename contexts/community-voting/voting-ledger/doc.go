// Package votingledger implements the voting ledger inside the
// community-voting context.
//
// The module owns entity registration, one-vote-per-voter bookkeeping,
// removal by the ledger admin, and the ranked reads derived from persisted
// counters. Every mutation commits its state slots and its outbox event as a
// single unit, and workers relay those events to the bus and keep the
// scoreboard projection current.
package votingledger
