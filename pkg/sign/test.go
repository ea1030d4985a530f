package sign

// NewTestSigner returns a fresh in-memory signer for use in tests, panicking
// on key generation failure.
func NewTestSigner() *KeySigner {
	s, err := NewKeySigner()
	if err != nil {
		panic(err)
	}
	return s
}
