// Package relay implements the designated relay: the single trusted actor
// that observes tally passage off the main execution path and confirms it
// to the executor. The relay identity is a manually configured capability,
// not an elected role; its authenticity is checked by signature recovery on
// the executor side, and the action-hash cross-checks in the executor bound
// the damage a misbehaving relay can do.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/covenantlabs/ratify/governance"
	"github.com/covenantlabs/ratify/network"
	"github.com/covenantlabs/ratify/pkg/sign"
	"github.com/rs/zerolog"
)

// Relay drains pipeline events, re-checks the tally on every passage event
// and broadcasts a signed attestation. It runs until the context is
// cancelled or the event stream closes.
type Relay struct {
	signer sign.Signer
	tally  *governance.Tally
	gossip network.Gossip
	events <-chan governance.Event

	status atomic.Bool
	logger zerolog.Logger
}

type Option func(*Relay)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Relay) {
		r.logger = l
	}
}

func New(
	signer sign.Signer,
	tally *governance.Tally,
	gossip network.Gossip,
	events <-chan governance.Event,
	opts ...Option,
) *Relay {
	r := &Relay{
		signer: signer,
		tally:  tally,
		gossip: gossip,
		events: events,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run is the relay's main loop. Events arrive serialized on a single
// channel; only passage events produce an attestation.
func (r *Relay) Run(ctx context.Context) error {
	if !r.status.CompareAndSwap(false, true) {
		return errors.New("relay already running")
	}
	defer r.status.CompareAndSwap(true, false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-r.events:
			if !ok {
				return nil
			}
			passed, isPassage := ev.(governance.ProposalPassed)
			if !isPassage {
				continue
			}
			if err := r.attest(ctx, passed); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("attesting proposal %d: %w", passed.ID, err)
			}
		}
	}
}

func (r *Relay) IsRunning() bool {
	return r.status.Load()
}

func (r *Relay) attest(ctx context.Context, passed governance.ProposalPassed) error {
	// the event stream is advisory; the tally is the source of truth
	if !r.tally.IsPassed(passed.ID) {
		return fmt.Errorf("passage event for proposal %d but tally does not report it passed", passed.ID)
	}

	attestation := &network.Attestation{
		ProposalID: passed.ID,
		ActionHash: passed.ActionHash,
	}
	signature, err := r.signer.Sign(attestation.SignBytes())
	if err != nil {
		return fmt.Errorf("signing attestation: %w", err)
	}
	attestation.Signature = signature

	if err := r.gossip.BroadcastAttestation(ctx, attestation); err != nil {
		return fmt.Errorf("broadcasting attestation: %w", err)
	}

	r.logger.Info().
		Uint64("id", passed.ID).
		Str("action_hash", passed.ActionHash.String()).
		Msg("attestation broadcast")
	return nil
}

var _ network.Notifiee = (*Listener)(nil)

// Listener sits on the executor host's side of the gossip layer. It
// verifies each attestation's form, recovers the signer and feeds it to the
// executor, which decides whether the signer is the configured relay.
type Listener struct {
	executor *governance.Executor
	logger   zerolog.Logger
}

func NewListener(executor *governance.Executor, logger zerolog.Logger) *Listener {
	return &Listener{
		executor: executor,
		logger:   logger,
	}
}

func (l *Listener) OnAttestation(ctx context.Context, attestation *network.Attestation) error {
	if err := attestation.ValidateForm(); err != nil {
		return err
	}

	signer, err := sign.Recover(attestation.SignBytes(), attestation.Signature)
	if err != nil {
		return err
	}

	err = l.executor.MarkPassed(signer, attestation.ProposalID, attestation.ActionHash)
	if err != nil {
		// gossip can deliver the same attestation more than once
		if errors.Is(err, governance.ErrAlreadyAttested) {
			return nil
		}
		l.logger.Info().
			Err(err).
			Uint64("id", attestation.ProposalID).
			Msg("rejected attestation")
		return err
	}

	l.logger.Info().
		Uint64("id", attestation.ProposalID).
		Msg("attestation accepted")
	return nil
}
