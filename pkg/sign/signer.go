package sign

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Identity is a 20 byte fingerprint of a secp256k1 public key: the trailing
// 20 bytes of the SHA-256 of the compressed key. The zero value is the null
// identity and is never assigned to a real key.
type Identity [20]byte

var NullIdentity = Identity{}

func (id Identity) IsNull() bool {
	return id == NullIdentity
}

func (id Identity) Bytes() []byte {
	return id[:]
}

func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

// IdentityFromPubKey derives the identity of a public key.
func IdentityFromPubKey(pub *secp256k1.PublicKey) Identity {
	sum := sha256.Sum256(pub.SerializeCompressed())
	var id Identity
	copy(id[:], sum[12:])
	return id
}

// Signer produces compact recoverable signatures over 32 byte digests. The
// signature commits to the signer: Recover on the same digest yields the
// signer's identity.
//
// The signer should ensure the key is kept secure. Production deployments
// would place the key behind a remote signing service; the pipeline only
// depends on this interface.
type Signer interface {
	// ID returns the identity that Recover resolves this signer's
	// signatures to. It must always return the same value.
	ID() Identity

	Sign(digest [32]byte) ([]byte, error)
}

// Recover resolves the identity that produced the signature over the digest.
// A malformed signature returns an error; callers treat that as the null
// identity.
func Recover(digest [32]byte, signature []byte) (Identity, error) {
	pub, _, err := ecdsa.RecoverCompact(signature, digest[:])
	if err != nil {
		return NullIdentity, fmt.Errorf("recovering signer: %w", err)
	}
	return IdentityFromPubKey(pub), nil
}

var _ Signer = (*KeySigner)(nil)

// KeySigner signs with a secp256k1 private key held in memory.
type KeySigner struct {
	priv *secp256k1.PrivateKey
	id   Identity
}

func NewKeySigner() (*KeySigner, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return &KeySigner{
		priv: priv,
		id:   IdentityFromPubKey(priv.PubKey()),
	}, nil
}

func (s *KeySigner) ID() Identity {
	return s.id
}

func (s *KeySigner) Sign(digest [32]byte) ([]byte, error) {
	return ecdsa.SignCompact(s.priv, digest[:], true), nil
}

func (s *KeySigner) PublicKey() *secp256k1.PublicKey {
	return s.priv.PubKey()
}
