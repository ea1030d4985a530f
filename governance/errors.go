package governance

import "errors"

// Commitment errors. All reject the call with no partial effect.
var (
	ErrZeroProposalID      = errors.New("proposal id is zero")
	ErrZeroActionHash      = errors.New("action hash is the zero digest")
	ErrZeroWeightRoot      = errors.New("weight root is the zero digest")
	ErrFutureSnapshot      = errors.New("snapshot reference is beyond the current observable state")
	ErrDuplicateCommitment = errors.New("commitment already exists for proposal id")
	ErrNotPublished        = errors.New("no published commitment for proposal id")
	ErrNotProposer         = errors.New("caller is not the original proposer")
)

// Ballot verification errors. Any of these poisons the entire containing
// batch: the call is rejected and no tally state from it is retained.
// Callers must pre-filter and resubmit a corrected batch.
var (
	ErrBallotExpired = errors.New("ballot deadline has passed")
	ErrBadSignature  = errors.New("ballot signature does not recover a signer")
	ErrBadProof      = errors.New("membership proof does not verify under the weight root")
	ErrDoubleVote    = errors.New("signer has already been counted for this proposal")
)

// Tally state errors.
var (
	ErrDuplicateRegistration = errors.New("tally record already exists for proposal id")
	ErrUnregistered          = errors.New("no tally record for proposal id")
	ErrAlreadyPassed         = errors.New("proposal has already passed")
)

// Attestation errors. A hash mismatch is a non-retryable integrity failure:
// the relay and the registry disagree and manual investigation is required.
var (
	ErrNotRelay           = errors.New("caller is not the configured relay")
	ErrAlreadyAttested    = errors.New("proposal is already attested")
	ErrAttestHashMismatch = errors.New("claimed action hash does not match the registry commitment")
)

// Execution errors. A callee failure is propagated opaquely, wrapping any
// diagnostic the callee provided.
var (
	ErrNotAttested     = errors.New("proposal is not attested")
	ErrAlreadyExecuted = errors.New("proposal is already executed")
	ErrPayloadMismatch = errors.New("payload hash does not match the registry commitment")
	ErrShortPayload    = errors.New("action payload is too short to carry a target")
	ErrNullTarget      = errors.New("action target is the null identity")
	ErrUnknownTarget   = errors.New("no handler registered for target")
	ErrCallFailed      = errors.New("target call failed")
)

// ErrNotAdmin gates the register operation and the administrative escape
// hatches on the tally engine and executor.
var ErrNotAdmin = errors.New("caller is not the administrative identity")
