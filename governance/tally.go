package governance

import (
	"fmt"
	"sync"
	"time"

	"github.com/covenantlabs/ratify/pkg/merkle"
	"github.com/covenantlabs/ratify/pkg/sign"
	"github.com/covenantlabs/ratify/pkg/weight"
	"github.com/rs/zerolog"
)

// Record is the tally engine's own copy of a proposal's parameters. It is
// populated by Register, a second write in a separate trust domain from the
// registry: whoever submits both is trusted to submit matching values, and
// agreement is only verified downstream at attestation and execution.
type Record struct {
	WeightRoot merkle.Digest
	ActionHash merkle.Digest
	Threshold  uint64

	// Passed is monotonic and terminal. Once true, no further state
	// mutation for the proposal is permitted.
	Passed bool
}

// Totals are the accumulated weights for the three named support
// categories. Weights tallied into out-of-range buckets are not reported
// here.
type Totals struct {
	Against     uint64
	Affirmative uint64
	Abstain     uint64
}

// Tally verifies signed ballots against per-proposal weight roots and
// accumulates weighted support until a threshold is crossed.
//
// Each SubmitBallots call is one atomic unit: either the whole batch's
// visible effects commit (including the early-termination short circuit on
// passage), or the call is rejected and no tally state from it is retained.
type Tally struct {
	mtx sync.Mutex

	admin  sign.Identity
	domain Domain

	records map[uint64]*Record
	// accumulated weight per (proposal, support category). Indexed by the
	// raw submitted category byte, monotonically non-decreasing.
	weights map[uint64]map[uint8]uint64
	// at most one counted ballot per identity per proposal
	seen map[uint64]map[sign.Identity]bool

	now     func() time.Time
	emitter Emitter
	logger  zerolog.Logger
}

// NewTally creates a tally engine. The admin identity gates Register and
// the ForcePass escape hatch. The domain must match what ballot signers
// sign under, or no ballot will verify.
func NewTally(admin sign.Identity, domain Domain, opts ...TallyOption) *Tally {
	t := &Tally{
		admin:   admin,
		domain:  domain,
		records: make(map[uint64]*Record),
		weights: make(map[uint64]map[uint8]uint64),
		seen:    make(map[uint64]map[sign.Identity]bool),
		now:     time.Now,
		emitter: NopEmitter{},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Domain returns the signing domain ballots for this engine must be signed
// under.
func (t *Tally) Domain() Domain {
	return t.domain
}

// Register creates the tally record for a proposal. It is privileged to the
// admin identity and fails if a record already exists: exists is set exactly
// once, there is no re-registration.
func (t *Tally) Register(caller sign.Identity, id uint64, weightRoot, actionHash merkle.Digest, threshold uint64) error {
	if caller != t.admin {
		return ErrNotAdmin
	}
	if id == 0 {
		return ErrZeroProposalID
	}
	if weightRoot.IsZero() {
		return ErrZeroWeightRoot
	}
	if actionHash.IsZero() {
		return ErrZeroActionHash
	}

	t.mtx.Lock()
	defer t.mtx.Unlock()

	if _, ok := t.records[id]; ok {
		return ErrDuplicateRegistration
	}
	t.records[id] = &Record{
		WeightRoot: weightRoot,
		ActionHash: actionHash,
		Threshold:  threshold,
	}

	t.logger.Info().
		Uint64("id", id).
		Str("weight_root", weightRoot.String()).
		Uint64("threshold", threshold).
		Msg("proposal registered for tallying")
	return nil
}

// ballotOutcome is the tagged result of counting a single valid ballot. The
// short circuit on passage is a designed branch of the loop, not an error.
type ballotOutcome uint8

const (
	countNext ballotOutcome = iota
	stopPassed
)

// batch stages the effects of one SubmitBallots call. Nothing in it touches
// committed state until the whole batch has been accepted.
type batch struct {
	seen    map[sign.Identity]bool
	weights map[uint8]uint64
	events  []Event
	passed  bool
}

func newBatch() *batch {
	return &batch{
		seen:    make(map[sign.Identity]bool),
		weights: make(map[uint8]uint64),
	}
}

// SubmitBallots verifies and counts a batch of ballots for a proposal, in
// array order, sequentially. Any expired, malformed, unprovable or replayed
// ballot poisons the entire batch. If the affirmative accumulator reaches
// the threshold mid-batch, the proposal passes and the remaining ballots are
// silently skipped: they are not failures and are not counted, and a later
// resubmission will fail on the passed guard.
func (t *Tally) SubmitBallots(id uint64, ballots []Ballot) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	rec, ok := t.records[id]
	if !ok {
		return ErrUnregistered
	}
	if rec.Passed {
		return ErrAlreadyPassed
	}

	staged := newBatch()
	for i, b := range ballots {
		outcome, err := t.countBallot(id, rec, staged, i, b)
		if err != nil {
			return err
		}
		if outcome == stopPassed {
			break
		}
	}
	t.commitBatch(id, rec, staged)
	return nil
}

// countBallot verifies one ballot against committed and staged state and
// stages its effects. All verification happens against the record's weight
// root; the declared weight and nonce are attacker-supplied and are only
// bound indirectly, through the recovered signer's leaf.
func (t *Tally) countBallot(id uint64, rec *Record, staged *batch, index int, b Ballot) (ballotOutcome, error) {
	if err := b.ValidateForm(); err != nil {
		return countNext, fmt.Errorf("ballot %d: %w: %s", index, ErrBadSignature, err)
	}

	if uint64(t.now().Unix()) > b.Deadline {
		return countNext, fmt.Errorf("ballot %d: %w", index, ErrBallotExpired)
	}

	digest := b.SignBytes(t.domain, id)
	signer, err := sign.Recover(digest, b.Signature)
	if err != nil || signer.IsNull() {
		return countNext, fmt.Errorf("ballot %d: %w", index, ErrBadSignature)
	}

	leaf := weight.LeafHash(signer, b.Weight, b.Nonce)
	if !b.Proof.Verify(leaf, rec.WeightRoot) {
		return countNext, fmt.Errorf("ballot %d: %w", index, ErrBadProof)
	}

	if t.seen[id][signer] || staged.seen[signer] {
		return countNext, fmt.Errorf("ballot %d: %w (signer %s)", index, ErrDoubleVote, signer)
	}

	staged.seen[signer] = true
	staged.weights[b.Support] += b.Weight
	staged.events = append(staged.events, BallotCounted{
		ID:      id,
		Signer:  signer,
		Support: b.Support,
		Weight:  b.Weight,
	})

	affirmative := t.weights[id][Affirmative] + staged.weights[Affirmative]
	if affirmative >= rec.Threshold {
		staged.passed = true
		staged.events = append(staged.events, ProposalPassed{
			ID:                id,
			ActionHash:        rec.ActionHash,
			AffirmativeWeight: affirmative,
		})
		return stopPassed, nil
	}
	return countNext, nil
}

// commitBatch merges an accepted batch into committed state and emits its
// events. Called with the lock held.
func (t *Tally) commitBatch(id uint64, rec *Record, staged *batch) {
	if len(staged.seen) > 0 {
		if t.seen[id] == nil {
			t.seen[id] = make(map[sign.Identity]bool)
		}
		if t.weights[id] == nil {
			t.weights[id] = make(map[uint8]uint64)
		}
	}
	for signer := range staged.seen {
		t.seen[id][signer] = true
	}
	for category, w := range staged.weights {
		t.weights[id][category] += w
	}
	if staged.passed {
		rec.Passed = true
		t.logger.Info().
			Uint64("id", id).
			Uint64("affirmative", t.weights[id][Affirmative]).
			Msg("proposal passed")
	}
	for _, ev := range staged.events {
		t.emitter.Emit(ev)
	}
}

// Totals returns the accumulated weights for the three named categories.
func (t *Tally) Totals(id uint64) (Totals, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if _, ok := t.records[id]; !ok {
		return Totals{}, ErrUnregistered
	}
	w := t.weights[id]
	return Totals{
		Against:     w[Against],
		Affirmative: w[Affirmative],
		Abstain:     w[Abstain],
	}, nil
}

// Weight returns the accumulated weight for an arbitrary category bucket,
// including out-of-range ones.
func (t *Tally) Weight(id uint64, category uint8) uint64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.weights[id][category]
}

// IsPassed never fails: it defaults to false for unregistered ids. Callers
// that need to distinguish unregistered from open must check Registered.
func (t *Tally) IsPassed(id uint64) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	rec, ok := t.records[id]
	return ok && rec.Passed
}

func (t *Tally) Registered(id uint64) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	_, ok := t.records[id]
	return ok
}

// ForcePass is the administrative escape hatch: it sets the passed flag
// directly, bypassing ballot verification entirely. Privileged to the admin
// identity and loudly logged.
func (t *Tally) ForcePass(caller sign.Identity, id uint64) error {
	if caller != t.admin {
		return ErrNotAdmin
	}

	t.mtx.Lock()
	defer t.mtx.Unlock()

	rec, ok := t.records[id]
	if !ok {
		return ErrUnregistered
	}
	if rec.Passed {
		return ErrAlreadyPassed
	}
	rec.Passed = true

	t.logger.Warn().
		Uint64("id", id).
		Str("admin", caller.String()).
		Msg("proposal force-passed, bypassing ballot verification")
	t.emitter.Emit(AdminOverride{Component: "tally", ID: id, Flag: "passed"})
	return nil
}
