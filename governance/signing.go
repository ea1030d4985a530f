package governance

import (
	"bytes"
	"encoding/binary"

	"github.com/covenantlabs/ratify/pkg/merkle"
	"github.com/covenantlabs/ratify/pkg/sign"
)

const (
	// ProtocolName and ProtocolVersion are folded into every ballot's
	// domain separator. Bumping the version invalidates all outstanding
	// ballot signatures.
	ProtocolName    = "ratify"
	ProtocolVersion = "1"
)

// Domain binds ballot signatures to one tally engine instance. Two engines
// that differ in any field produce disjoint signing digests, so a ballot
// signed for one engine or chain can never be replayed on another.
type Domain struct {
	Name    string
	Version string
	ChainID uint64
	Engine  sign.Identity
}

// Separator hashes the domain into its 32 byte separator.
//
// The format is:
// name, null terminated
// version, null terminated
// 8 bytes chain id
// 20 bytes engine identity
func (d Domain) Separator() merkle.Digest {
	buf := bytes.NewBuffer(nil)
	buf.WriteString(d.Name)
	buf.WriteByte(0)
	buf.WriteString(d.Version)
	buf.WriteByte(0)
	chainID := make([]byte, 8)
	binary.BigEndian.PutUint64(chainID, d.ChainID)
	buf.Write(chainID)
	buf.Write(d.Engine[:])
	return merkle.Sum(buf.Bytes())
}

// BallotDigest computes the digest a ballot signature must be made over. It
// is the hash of the domain separator concatenated with the struct digest
// over the ballot fields:
//
// 8 bytes proposal id
// 1 byte support category
// 8 bytes nonce
// 8 bytes deadline
//
// All integers are big-endian. The signature is over the combined digest,
// not the struct digest alone.
func BallotDigest(domain Domain, id uint64, support uint8, nonce, deadline uint64) merkle.Digest {
	buf := make([]byte, 25)
	binary.BigEndian.PutUint64(buf[0:8], id)
	buf[8] = support
	binary.BigEndian.PutUint64(buf[9:17], nonce)
	binary.BigEndian.PutUint64(buf[17:25], deadline)
	structDigest := merkle.Sum(buf)

	separator := domain.Separator()
	combined := make([]byte, 0, 64)
	combined = append(combined, separator[:]...)
	combined = append(combined, structDigest[:]...)
	return merkle.Sum(combined)
}
