package governance

import (
	"errors"
	"fmt"

	"github.com/covenantlabs/ratify/pkg/merkle"
	"github.com/covenantlabs/ratify/pkg/sign"
)

// Support categories. The tally accumulator is indexed by the raw submitted
// byte with no range validation: values outside the three named categories
// are accepted and land in otherwise-unused buckets.
const (
	Against uint8 = iota
	Affirmative
	Abstain
)

// Ballot is a signed statement of support for a proposal. It carries no
// independent identity: the signer is resolved by signature recovery during
// verification, and the declared weight and nonce are only trusted insofar
// as the recovered signer's leaf verifies under the proposal's weight root.
// A ballot is consumed exactly once by verification.
type Ballot struct {
	Support  uint8
	Nonce    uint64
	Deadline uint64
	Weight   uint64

	// Signature is a 65 byte compact recoverable signature over the
	// ballot's typed digest.
	Signature []byte

	// Proof is the membership proof for the signer's weight leaf.
	Proof merkle.Proof
}

func (b Ballot) ValidateForm() error {
	if len(b.Signature) == 0 {
		return errors.New("ballot does not contain any signature")
	}
	return nil
}

// SignBytes returns the digest the ballot's signature must be made over.
func (b Ballot) SignBytes(domain Domain, id uint64) merkle.Digest {
	return BallotDigest(domain, id, b.Support, b.Nonce, b.Deadline)
}

// SignBallot fills in the ballot's signature using the given signer. It is
// used by the off-chain ballot tooling and by tests.
func SignBallot(signer sign.Signer, domain Domain, id uint64, b *Ballot) error {
	sig, err := signer.Sign(b.SignBytes(domain, id))
	if err != nil {
		return fmt.Errorf("signing ballot: %w", err)
	}
	b.Signature = sig
	return nil
}

func (b Ballot) String() string {
	return fmt.Sprintf("Ballot{support=%d weight=%d nonce=%d deadline=%d}",
		b.Support, b.Weight, b.Nonce, b.Deadline)
}
