package governance

import "github.com/covenantlabs/ratify/pkg/sign"

type (
	// CommitmentReader is the registry read interface consumed by the
	// executor. The executor re-reads the registry at each check point
	// (attestation and execution) rather than caching, so both checks see
	// the record as stored.
	CommitmentReader interface {
		Read(id uint64) (*Commitment, error)
	}

	// Dispatcher performs the generic call an approved action decodes to.
	// The call is intentionally unrestricted: any target, any data. The
	// executor's safety rests entirely on the two hash-equality checks
	// made before dispatch.
	Dispatcher interface {
		Call(target sign.Identity, data []byte) ([]byte, error)
	}

	// Emitter receives events as pipeline state transitions commit.
	Emitter interface {
		Emit(Event)
	}
)
