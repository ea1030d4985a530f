// Package governance implements a three-stage approval pipeline for
// pre-committed actions.
//
// A Registry freezes a proposal's action hash, voting-power snapshot
// reference and weight-commitment root in a write-once record. A Tally
// independently verifies signed ballots against the weight root and
// accumulates weighted support until a threshold is crossed. An Executor
// releases the committed action only once the designated relay has attested
// to passage and the presented payload hashes to the original commitment.
//
// The three components hold independent copies of the weight root and
// action hash and never communicate synchronously; agreement between them
// is enforced bit-for-bit at read time, by the executor's two registry
// cross-checks. Proposal authoring, ballot verification and action
// execution are therefore separate trust boundaries: forged signatures,
// replayed ballots, tampered payloads and misdirected relay attestations
// are each caught by the stage that owns the corresponding check.
package governance
