package governance

import (
	"fmt"
	"sync"

	"github.com/covenantlabs/ratify/pkg/merkle"
	"github.com/covenantlabs/ratify/pkg/sign"
)

// An action payload packs the call target and its calldata with no length
// prefixes: target identity (20 bytes) followed by the opaque calldata. The
// payload's hash is the sole authorization token checked at both attestation
// and execution.

// EncodeAction packs a target and calldata into an action payload.
func EncodeAction(target sign.Identity, data []byte) []byte {
	payload := make([]byte, 0, len(target)+len(data))
	payload = append(payload, target[:]...)
	payload = append(payload, data...)
	return payload
}

// DecodeAction splits a payload into its target and calldata. It fails on
// payloads too short to carry a target and on the null target.
func DecodeAction(payload []byte) (sign.Identity, []byte, error) {
	if len(payload) < len(sign.Identity{}) {
		return sign.NullIdentity, nil, ErrShortPayload
	}
	var target sign.Identity
	copy(target[:], payload[:len(target)])
	if target.IsNull() {
		return sign.NullIdentity, nil, ErrNullTarget
	}
	return target, payload[len(target):], nil
}

// HashAction computes the action hash committing to a payload.
func HashAction(payload []byte) merkle.Digest {
	return merkle.Sum(payload)
}

// HandlerFunc executes an action's calldata on behalf of a target. An error
// return is a callee failure and is propagated opaquely to the executor's
// caller.
type HandlerFunc func(data []byte) ([]byte, error)

var _ Dispatcher = (*Router)(nil)

// Router is an in-process Dispatcher mapping target identities to handlers.
type Router struct {
	mtx      sync.Mutex
	handlers map[sign.Identity]HandlerFunc
}

func NewRouter() *Router {
	return &Router{handlers: make(map[sign.Identity]HandlerFunc)}
}

// Handle registers the handler for a target, replacing any previous one.
func (r *Router) Handle(target sign.Identity, fn HandlerFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.handlers[target] = fn
}

func (r *Router) Call(target sign.Identity, data []byte) ([]byte, error) {
	r.mtx.Lock()
	fn, ok := r.handlers[target]
	r.mtx.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	return fn(data)
}
