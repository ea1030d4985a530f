package weight

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/covenantlabs/ratify/pkg/merkle"
	"github.com/covenantlabs/ratify/pkg/sign"
)

// Member is one entry in a voting power snapshot: an identity, the weight it
// held at the snapshot point, and the nonce assigned by the snapshot tooling.
type Member struct {
	ID     sign.Identity
	Weight uint64
	Nonce  uint64
}

// LeafHash encodes a member into its weight tree leaf. The encoding is
// packed with no length prefixes: identity (20 bytes), weight (8 bytes
// big-endian), nonce (8 bytes big-endian). The tally engine recomputes this
// exact encoding when verifying ballots, so any change here is breaking.
func LeafHash(id sign.Identity, weight, nonce uint64) merkle.Digest {
	buf := make([]byte, 36)
	copy(buf[:20], id[:])
	binary.BigEndian.PutUint64(buf[20:28], weight)
	binary.BigEndian.PutUint64(buf[28:36], nonce)
	return merkle.Sum(buf)
}

// Snapshot is the off-chain commitment to a set of weighted members. Its
// root is what a proposal's weight root must be for the members' ballots to
// verify on the tally engine.
type Snapshot struct {
	members []Member
	indices map[sign.Identity]int
	tree    *merkle.Tree
}

// NewSnapshot builds a snapshot over the given members. Member order is
// preserved and determines leaf positions. Every member must have a non-zero
// weight and a unique identity.
func NewSnapshot(members []Member) (*Snapshot, error) {
	if len(members) == 0 {
		return nil, errors.New("snapshot must have at least one member")
	}

	leaves := make([]merkle.Digest, len(members))
	indices := make(map[sign.Identity]int, len(members))
	for i, m := range members {
		if m.Weight == 0 {
			return nil, fmt.Errorf("member %d has zero weight", i)
		}
		if m.ID.IsNull() {
			return nil, fmt.Errorf("member %d has the null identity", i)
		}
		if _, ok := indices[m.ID]; ok {
			return nil, fmt.Errorf("duplicate member %s", m.ID)
		}
		indices[m.ID] = i
		leaves[i] = LeafHash(m.ID, m.Weight, m.Nonce)
	}

	tree, err := merkle.NewTree(leaves)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		members: members,
		indices: indices,
		tree:    tree,
	}, nil
}

// Root returns the weight root committing to the snapshot.
func (s *Snapshot) Root() merkle.Digest {
	return s.tree.Root()
}

func (s *Snapshot) Size() int {
	return len(s.members)
}

// Member returns the member at the given leaf index.
func (s *Snapshot) Member(index int) Member {
	return s.members[index]
}

// TotalWeight returns the sum of all member weights.
func (s *Snapshot) TotalWeight() uint64 {
	var total uint64
	for _, m := range s.members {
		total += m.Weight
	}
	return total
}

// Proof generates the membership proof for the leaf at the given index.
func (s *Snapshot) Proof(index int) (merkle.Proof, error) {
	return s.tree.Proof(index)
}

// ProofByID looks up a member by identity and returns it together with its
// membership proof.
func (s *Snapshot) ProofByID(id sign.Identity) (Member, merkle.Proof, error) {
	index, ok := s.indices[id]
	if !ok {
		return Member{}, nil, fmt.Errorf("identity %s not in snapshot", id)
	}
	proof, err := s.tree.Proof(index)
	if err != nil {
		return Member{}, nil, err
	}
	return s.members[index], proof, nil
}
