package governance

import (
	"time"

	"github.com/covenantlabs/ratify/pkg/merkle"
	"github.com/covenantlabs/ratify/pkg/sign"
)

// Event is emitted by the pipeline components as state transitions commit.
// External observers, including the off-chain relay and indexers, depend on
// these to follow the pipeline without polling.
type Event interface {
	event()
}

// CommitmentPublished carries every field of a new commitment. Observers use
// SnapshotRef and ExchangeRate to independently recompute the weight set.
type CommitmentPublished struct {
	ID           uint64
	Proposer     sign.Identity
	ActionHash   merkle.Digest
	SnapshotRef  uint64
	ExchangeRate uint64
	WeightRoot   merkle.Digest
	Metadata     []byte
	CreatedAt    time.Time
}

// BallotCounted is emitted once per ballot that is credited to the tally.
type BallotCounted struct {
	ID      uint64
	Signer  sign.Identity
	Support uint8
	Weight  uint64
}

// ProposalPassed is emitted when the affirmative accumulator reaches the
// threshold. AffirmativeWeight is the final counted affirmative total.
type ProposalPassed struct {
	ID                uint64
	ActionHash        merkle.Digest
	AffirmativeWeight uint64
}

// Attested is emitted when the relay's attestation is accepted.
type Attested struct {
	ID         uint64
	ActionHash merkle.Digest
}

// Executed carries the raw bytes returned by the action target.
type Executed struct {
	ID       uint64
	Returned []byte
}

// AdminOverride records a privileged bypass of the normal state machine.
type AdminOverride struct {
	Component string
	ID        uint64
	Flag      string
}

func (CommitmentPublished) event() {}
func (BallotCounted) event()       {}
func (ProposalPassed) event()      {}
func (Attested) event()            {}
func (Executed) event()            {}
func (AdminOverride) event()       {}

// NopEmitter discards all events. It is the default when no observer is
// configured.
type NopEmitter struct{}

func (NopEmitter) Emit(Event) {}

// ChannelEmitter buffers events on a channel for an observer to drain.
// Events are dropped once the buffer is full; observers that cannot afford
// to miss an event must size the buffer for their consumption rate.
type ChannelEmitter struct {
	ch chan Event
}

func NewChannelEmitter(size int) *ChannelEmitter {
	return &ChannelEmitter{ch: make(chan Event, size)}
}

func (e *ChannelEmitter) Emit(ev Event) {
	select {
	case e.ch <- ev:
	default:
	}
}

// Events returns the channel the observer should drain.
func (e *ChannelEmitter) Events() <-chan Event {
	return e.ch
}
