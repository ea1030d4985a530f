package governance

import (
	"sync"
	"time"

	"github.com/covenantlabs/ratify/pkg/merkle"
	"github.com/covenantlabs/ratify/pkg/sign"
	"github.com/rs/zerolog"
)

// Commitment freezes a proposal's parameters at publication time. Once
// published, every field except Metadata is immutable; records are never
// deleted or revoked.
type Commitment struct {
	ID       uint64
	Proposer sign.Identity

	// ActionHash commits to the action payload that execution must later
	// present bit-for-bit.
	ActionHash merkle.Digest

	// SnapshotRef is an opaque pointer to the external state the weight
	// set was computed from. The registry only checks that it does not
	// point beyond the caller's current observable state.
	SnapshotRef uint64

	// ExchangeRate is the vault's fixed-point exchange rate at the
	// snapshot point. Informational; observers use it to recompute
	// weights independently.
	ExchangeRate uint64

	// WeightRoot commits to the (identity, weight, nonce) set ballots
	// are verified against.
	WeightRoot merkle.Digest

	// Metadata is the only mutable field, updatable by the proposer.
	Metadata []byte

	CreatedAt time.Time
}

// Registry is the write-once commitment store. Any caller may publish,
// subject only to the non-zero field checks; there is no delete.
type Registry struct {
	mtx         sync.Mutex
	commitments map[uint64]*Commitment

	// heightFn bounds snapshot references to the observable state. A nil
	// source disables the check.
	heightFn func() uint64
	now      func() time.Time
	emitter  Emitter
	logger   zerolog.Logger
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		commitments: make(map[uint64]*Commitment),
		now:         time.Now,
		emitter:     NopEmitter{},
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Publish creates the commitment for id, recording the caller as proposer.
// It fails if id is zero, either digest is zero, the snapshot reference is
// beyond the current observable state, or a commitment already exists.
func (r *Registry) Publish(
	caller sign.Identity,
	id uint64,
	actionHash merkle.Digest,
	snapshotRef uint64,
	exchangeRate uint64,
	weightRoot merkle.Digest,
	metadata []byte,
) error {
	if id == 0 {
		return ErrZeroProposalID
	}
	if actionHash.IsZero() {
		return ErrZeroActionHash
	}
	if weightRoot.IsZero() {
		return ErrZeroWeightRoot
	}
	if r.heightFn != nil && snapshotRef > r.heightFn() {
		return ErrFutureSnapshot
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.commitments[id]; ok {
		return ErrDuplicateCommitment
	}

	c := &Commitment{
		ID:           id,
		Proposer:     caller,
		ActionHash:   actionHash,
		SnapshotRef:  snapshotRef,
		ExchangeRate: exchangeRate,
		WeightRoot:   weightRoot,
		Metadata:     append([]byte(nil), metadata...),
		CreatedAt:    r.now(),
	}
	r.commitments[id] = c

	r.logger.Info().
		Uint64("id", id).
		Str("proposer", caller.String()).
		Str("action_hash", actionHash.String()).
		Str("weight_root", weightRoot.String()).
		Msg("commitment published")

	r.emitter.Emit(CommitmentPublished{
		ID:           c.ID,
		Proposer:     c.Proposer,
		ActionHash:   c.ActionHash,
		SnapshotRef:  c.SnapshotRef,
		ExchangeRate: c.ExchangeRate,
		WeightRoot:   c.WeightRoot,
		Metadata:     append([]byte(nil), c.Metadata...),
		CreatedAt:    c.CreatedAt,
	})
	return nil
}

// UpdateMetadata replaces the metadata of an existing commitment. Only the
// original proposer may call it; no other field can be altered.
func (r *Registry) UpdateMetadata(caller sign.Identity, id uint64, metadata []byte) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	c, ok := r.commitments[id]
	if !ok {
		return ErrNotPublished
	}
	if c.Proposer != caller {
		return ErrNotProposer
	}
	c.Metadata = append([]byte(nil), metadata...)
	return nil
}

// Read returns a copy of the published commitment for id.
func (r *Registry) Read(id uint64) (*Commitment, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	c, ok := r.commitments[id]
	if !ok {
		return nil, ErrNotPublished
	}
	out := *c
	out.Metadata = append([]byte(nil), c.Metadata...)
	return &out, nil
}
