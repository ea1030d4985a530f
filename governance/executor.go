package governance

import (
	"fmt"
	"sync"

	"github.com/covenantlabs/ratify/pkg/merkle"
	"github.com/covenantlabs/ratify/pkg/sign"
	"github.com/rs/zerolog"
)

// executionRecord tracks one proposal's progress through the executor's
// state machine: Unattested, Attested, Executed. Both transitions are
// terminal; there is no reverse path and no re-entry.
type executionRecord struct {
	attested bool
	executed bool
}

// Executor releases a committed action only after the configured relay has
// attested that the tally passed, and only for the payload whose hash
// matches the registry's commitment. The registry is re-read at each check
// point rather than cached, so both checks see the record as stored.
type Executor struct {
	mtx sync.Mutex

	relay sign.Identity
	admin sign.Identity

	registry   CommitmentReader
	dispatcher Dispatcher

	records map[uint64]*executionRecord

	emitter Emitter
	logger  zerolog.Logger
}

// NewExecutor creates an executor. The relay identity is a manually
// configured capability held by exactly one actor; it is not discovered or
// elected. The admin identity gates the force escape hatches only.
func NewExecutor(
	relay, admin sign.Identity,
	registry CommitmentReader,
	dispatcher Dispatcher,
	opts ...ExecutorOption,
) *Executor {
	e := &Executor{
		relay:      relay,
		admin:      admin,
		registry:   registry,
		dispatcher: dispatcher,
		records:    make(map[uint64]*executionRecord),
		emitter:    NopEmitter{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) record(id uint64) *executionRecord {
	rec, ok := e.records[id]
	if !ok {
		rec = &executionRecord{}
		e.records[id] = rec
	}
	return rec
}

// MarkPassed records the relay's attestation that the tally for id reached
// its threshold. The claimed action hash is cross-checked against the
// registry commitment so a confused or malicious relay cannot attest to the
// wrong proposal. A mismatch is a non-retryable integrity failure.
func (e *Executor) MarkPassed(caller sign.Identity, id uint64, claimedActionHash merkle.Digest) error {
	if caller != e.relay {
		return ErrNotRelay
	}

	e.mtx.Lock()
	defer e.mtx.Unlock()

	rec := e.record(id)
	if rec.attested {
		return ErrAlreadyAttested
	}

	c, err := e.registry.Read(id)
	if err != nil {
		return fmt.Errorf("reading commitment: %w", err)
	}
	if c.ActionHash != claimedActionHash {
		return fmt.Errorf("%w (stored %s, claimed %s)", ErrAttestHashMismatch, c.ActionHash, claimedActionHash)
	}

	rec.attested = true

	e.logger.Info().
		Uint64("id", id).
		Str("action_hash", claimedActionHash.String()).
		Msg("passage attested")
	e.emitter.Emit(Attested{ID: id, ActionHash: claimedActionHash})
	return nil
}

// Execute releases the committed action. The registry is read a second
// time, and the supplied payload must hash to the stored commitment: this
// is the binding check that prevents a relay-approved proposal from being
// executed with a substituted payload. The decoded call is unrestricted;
// the two hash-equality checks are the executor's entire safety boundary.
// Targets must not call back into the executor.
func (e *Executor) Execute(id uint64, actionPayload []byte) ([]byte, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	rec := e.record(id)
	if !rec.attested {
		return nil, ErrNotAttested
	}
	if rec.executed {
		return nil, ErrAlreadyExecuted
	}

	c, err := e.registry.Read(id)
	if err != nil {
		return nil, fmt.Errorf("reading commitment: %w", err)
	}
	if HashAction(actionPayload) != c.ActionHash {
		return nil, ErrPayloadMismatch
	}

	target, data, err := DecodeAction(actionPayload)
	if err != nil {
		return nil, err
	}

	ret, err := e.dispatcher.Call(target, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCallFailed, err)
	}

	rec.executed = true

	e.logger.Info().
		Uint64("id", id).
		Str("target", target.String()).
		Int("returned_bytes", len(ret)).
		Msg("action executed")
	e.emitter.Emit(Executed{ID: id, Returned: ret})
	return ret, nil
}

// IsAttested reports whether the proposal has been attested. Defaults to
// false for unknown ids.
func (e *Executor) IsAttested(id uint64) bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	rec, ok := e.records[id]
	return ok && rec.attested
}

// IsExecuted reports whether the proposal's action has been executed.
func (e *Executor) IsExecuted(id uint64) bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	rec, ok := e.records[id]
	return ok && rec.executed
}

// ForceAttested sets the attested flag directly, bypassing the relay and
// the registry cross-check. Privileged to the admin identity and loudly
// logged.
func (e *Executor) ForceAttested(caller sign.Identity, id uint64) error {
	if caller != e.admin {
		return ErrNotAdmin
	}

	e.mtx.Lock()
	defer e.mtx.Unlock()

	rec := e.record(id)
	if rec.attested {
		return ErrAlreadyAttested
	}
	rec.attested = true

	e.logger.Warn().
		Uint64("id", id).
		Str("admin", caller.String()).
		Msg("attested flag forced, bypassing relay attestation")
	e.emitter.Emit(AdminOverride{Component: "executor", ID: id, Flag: "attested"})
	return nil
}

// ForceExecuted sets the executed flag directly without dispatching any
// call. It permanently disarms the proposal's action.
func (e *Executor) ForceExecuted(caller sign.Identity, id uint64) error {
	if caller != e.admin {
		return ErrNotAdmin
	}

	e.mtx.Lock()
	defer e.mtx.Unlock()

	rec := e.record(id)
	if rec.executed {
		return ErrAlreadyExecuted
	}
	rec.executed = true

	e.logger.Warn().
		Uint64("id", id).
		Str("admin", caller.String()).
		Msg("executed flag forced, action disarmed")
	e.emitter.Emit(AdminOverride{Component: "executor", ID: id, Flag: "executed"})
	return nil
}
