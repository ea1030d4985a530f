package network

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/covenantlabs/ratify/pkg/merkle"
)

// attestDomain prefixes attestation sign bytes so a relay signature can
// never be confused with a ballot signature.
const attestDomain = "ratify-attest"

// Attestation is the relay's signed, on-record claim that the tally for a
// proposal concluded in approval. The executor side recovers the signer
// from the signature and lets the executor's configured relay identity
// decide whether to honor it.
type Attestation struct {
	ProposalID uint64
	ActionHash merkle.Digest
	Signature  []byte
}

// SignBytes returns the digest the relay signs.
//
// The format is:
// domain string, null terminated
// 8 bytes proposal id
// 32 bytes action hash
func (a *Attestation) SignBytes() merkle.Digest {
	buf := make([]byte, 0, len(attestDomain)+1+8+32)
	buf = append(buf, attestDomain...)
	buf = append(buf, 0)
	id := make([]byte, 8)
	binary.BigEndian.PutUint64(id, a.ProposalID)
	buf = append(buf, id...)
	buf = append(buf, a.ActionHash[:]...)
	return merkle.Sum(buf)
}

func (a *Attestation) ValidateForm() error {
	if a.ProposalID == 0 {
		return errors.New("attestation proposal id is zero")
	}
	if a.ActionHash.IsZero() {
		return errors.New("attestation action hash is zero")
	}
	if len(a.Signature) == 0 {
		return errors.New("attestation does not contain any signature")
	}
	return nil
}

func (a *Attestation) String() string {
	return fmt.Sprintf("Attestation{%d for %s}", a.ProposalID, a.ActionHash)
}
