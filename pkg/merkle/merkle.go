package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Digest is a 32 byte SHA-256 output. The zero value is treated as unset
// throughout the pipeline and is never a valid commitment.
type Digest [32]byte

var ZeroDigest = Digest{}

// Sum hashes data and returns the digest.
func Sum(data []byte) Digest {
	return sha256.Sum256(data)
}

func (d Digest) IsZero() bool {
	return d == ZeroDigest
}

func (d Digest) Bytes() []byte {
	return d[:]
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// HashPair combines two sibling digests into their parent node. The pair is
// ordered lexicographically before hashing so that a proof does not need to
// carry left/right position bits. Equal siblings hash to H(value || value).
func HashPair(a, b Digest) Digest {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return Sum(append(a[:], b[:]...))
	}
	return Sum(append(b[:], a[:]...))
}

// Tree commits to an ordered list of leaf digests. Layers with an odd number
// of nodes duplicate the last node rather than promoting it unpaired, so the
// stored layers are always of even length (except a single-node layer).
type Tree struct {
	size   int
	layers [][]Digest
}

// NewTree builds a tree over the given leaves. The leaf ordering is
// preserved; proofs are generated against the original indices.
func NewTree(leaves []Digest) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, errors.New("tree must have at least one leaf")
	}

	layer := make([]Digest, len(leaves))
	copy(layer, leaves)

	t := &Tree{size: len(leaves)}
	for {
		if len(layer) > 1 && len(layer)%2 != 0 {
			layer = append(layer, layer[len(layer)-1])
		}
		t.layers = append(t.layers, layer)
		if len(layer) == 1 {
			return t, nil
		}
		next := make([]Digest, len(layer)/2)
		for i := 0; i < len(layer); i += 2 {
			next[i/2] = HashPair(layer[i], layer[i+1])
		}
		layer = next
	}
}

// Root returns the digest committing to the whole leaf set. A single leaf
// tree's root is the leaf itself.
func (t *Tree) Root() Digest {
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// Size returns the number of leaves the tree was built over. Padding
// duplicates are not counted.
func (t *Tree) Size() int {
	return t.size
}

// Proof generates the membership proof for the leaf at the given index.
func (t *Tree) Proof(index int) (Proof, error) {
	if index < 0 || index >= t.Size() {
		return nil, fmt.Errorf("leaf index %d out of range [0,%d)", index, t.Size())
	}

	proof := make(Proof, 0, len(t.layers)-1)
	for _, layer := range t.layers[:len(t.layers)-1] {
		proof = append(proof, layer[index^1])
		index /= 2
	}
	return proof, nil
}

// Proof is the ordered list of sibling digests proving a leaf's inclusion
// under a root, from the leaf's layer upwards.
type Proof []Digest

// Verify folds the proof over the leaf and reports whether the result equals
// the root. An empty proof verifies only the single-leaf tree where the leaf
// is the root.
func (p Proof) Verify(leaf, root Digest) bool {
	node := leaf
	for _, sibling := range p {
		node = HashPair(node, sibling)
	}
	return node == root
}
