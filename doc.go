// Package ratify lets a population of weighted participants approve or
// reject an action whose effects are committed in advance, verify that
// approval off the main execution path, and apply the action only upon
// cryptographic proof of approval.
//
// The core lives in the governance package: a write-once commitment
// registry, a ballot-verifying tally engine and an attestation-gated
// executor. The relay package carries tally outcomes to the executor over
// the network package's gossip abstraction, with a libp2p implementation in
// p2p. The pkg/weight package is the off-chain side of the weight
// commitment: it builds the snapshot tree whose root proposals commit to,
// bit-compatible with the tally engine's verification rule.
package ratify
