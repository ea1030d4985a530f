package governance_test

import (
	"errors"
	"testing"

	"github.com/covenantlabs/ratify/governance"
	"github.com/covenantlabs/ratify/pkg/merkle"
	"github.com/covenantlabs/ratify/pkg/sign"
	"github.com/stretchr/testify/require"
)

// execFixture publishes a commitment for an action calling a recording
// handler, and wires an executor against the registry.
type execFixture struct {
	executor *governance.Executor
	registry *governance.Registry
	router   *governance.Router
	emitter  *governance.ChannelEmitter
	relay    sign.Identity
	admin    sign.Identity
	payload  []byte
	calls    [][]byte
}

func newExecFixture(t *testing.T) *execFixture {
	t.Helper()

	f := &execFixture{
		registry: governance.NewRegistry(),
		router:   governance.NewRouter(),
		emitter:  governance.NewChannelEmitter(16),
		relay:    sign.NewTestSigner().ID(),
		admin:    sign.NewTestSigner().ID(),
	}

	target := sign.NewTestSigner().ID()
	f.router.Handle(target, func(data []byte) ([]byte, error) {
		f.calls = append(f.calls, data)
		return []byte("ok"), nil
	})
	f.payload = governance.EncodeAction(target, []byte("calldata"))

	proposer := sign.NewTestSigner().ID()
	err := f.registry.Publish(proposer, 1, governance.HashAction(f.payload), 0, 0, testWeightRoot, nil)
	require.NoError(t, err)

	f.executor = governance.NewExecutor(f.relay, f.admin, f.registry, f.router,
		governance.WithExecutorEmitter(f.emitter))
	return f
}

func (f *execFixture) actionHash() merkle.Digest {
	return governance.HashAction(f.payload)
}

func TestMarkPassedAuthorization(t *testing.T) {
	f := newExecFixture(t)

	err := f.executor.MarkPassed(sign.NewTestSigner().ID(), 1, f.actionHash())
	require.ErrorIs(t, err, governance.ErrNotRelay)
	require.False(t, f.executor.IsAttested(1))

	require.NoError(t, f.executor.MarkPassed(f.relay, 1, f.actionHash()))
	require.True(t, f.executor.IsAttested(1))

	err = f.executor.MarkPassed(f.relay, 1, f.actionHash())
	require.ErrorIs(t, err, governance.ErrAlreadyAttested)
}

func TestMarkPassedHashMismatch(t *testing.T) {
	f := newExecFixture(t)

	// relay attesting to the wrong proposal's hash is rejected
	err := f.executor.MarkPassed(f.relay, 1, merkle.Sum([]byte("other action")))
	require.ErrorIs(t, err, governance.ErrAttestHashMismatch)
	require.False(t, f.executor.IsAttested(1))
}

func TestMarkPassedUnpublished(t *testing.T) {
	f := newExecFixture(t)
	err := f.executor.MarkPassed(f.relay, 42, f.actionHash())
	require.ErrorIs(t, err, governance.ErrNotPublished)
}

func TestExecuteRequiresAttestation(t *testing.T) {
	f := newExecFixture(t)

	_, err := f.executor.Execute(1, f.payload)
	require.ErrorIs(t, err, governance.ErrNotAttested)
	require.Empty(t, f.calls)
}

func TestExecuteBindsPayloadToCommitment(t *testing.T) {
	f := newExecFixture(t)
	require.NoError(t, f.executor.MarkPassed(f.relay, 1, f.actionHash()))

	// an attested proposal still cannot run a substituted payload
	substituted := governance.EncodeAction(sign.NewTestSigner().ID(), []byte("drain"))
	_, err := f.executor.Execute(1, substituted)
	require.ErrorIs(t, err, governance.ErrPayloadMismatch)
	require.Empty(t, f.calls)
	require.False(t, f.executor.IsExecuted(1))

	// even a single flipped byte of calldata is caught
	tampered := append([]byte(nil), f.payload...)
	tampered[len(tampered)-1] ^= 0x01
	_, err = f.executor.Execute(1, tampered)
	require.ErrorIs(t, err, governance.ErrPayloadMismatch)
}

func TestExecuteSuccess(t *testing.T) {
	f := newExecFixture(t)
	require.NoError(t, f.executor.MarkPassed(f.relay, 1, f.actionHash()))

	ret, err := f.executor.Execute(1, f.payload)
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), ret)
	require.True(t, f.executor.IsExecuted(1))
	require.Equal(t, [][]byte{[]byte("calldata")}, f.calls)

	// terminal: no re-entry
	_, err = f.executor.Execute(1, f.payload)
	require.ErrorIs(t, err, governance.ErrAlreadyExecuted)
	require.Len(t, f.calls, 1)

	// attestation and execution events were emitted in order
	events := drain(f.emitter)
	require.Len(t, events, 2)
	_, ok := events[0].(governance.Attested)
	require.True(t, ok)
	executed, ok := events[1].(governance.Executed)
	require.True(t, ok)
	require.Equal(t, []byte("ok"), executed.Returned)
}

func TestExecuteCalleeFailurePropagates(t *testing.T) {
	registry := governance.NewRegistry()
	router := governance.NewRouter()
	relay := sign.NewTestSigner().ID()
	admin := sign.NewTestSigner().ID()

	target := sign.NewTestSigner().ID()
	calleeErr := errors.New("vault: rate limit exceeded")
	router.Handle(target, func(data []byte) ([]byte, error) {
		return nil, calleeErr
	})
	payload := governance.EncodeAction(target, []byte("x"))

	require.NoError(t, registry.Publish(admin, 1, governance.HashAction(payload), 0, 0, testWeightRoot, nil))
	executor := governance.NewExecutor(relay, admin, registry, router)
	require.NoError(t, executor.MarkPassed(relay, 1, governance.HashAction(payload)))

	_, err := executor.Execute(1, payload)
	require.ErrorIs(t, err, governance.ErrCallFailed)
	// the callee's diagnostic is propagated opaquely
	require.ErrorContains(t, err, "rate limit exceeded")
	// the failed call does not consume the execution
	require.False(t, executor.IsExecuted(1))

	// unknown targets surface as callee failures too
	other := governance.EncodeAction(sign.NewTestSigner().ID(), nil)
	require.NoError(t, registry.Publish(admin, 2, governance.HashAction(other), 0, 0, testWeightRoot, nil))
	require.NoError(t, executor.MarkPassed(relay, 2, governance.HashAction(other)))
	_, err = executor.Execute(2, other)
	require.ErrorIs(t, err, governance.ErrCallFailed)
}

func TestForceFlags(t *testing.T) {
	f := newExecFixture(t)

	err := f.executor.ForceAttested(f.relay, 1)
	require.ErrorIs(t, err, governance.ErrNotAdmin)

	require.NoError(t, f.executor.ForceAttested(f.admin, 1))
	require.True(t, f.executor.IsAttested(1))
	err = f.executor.ForceAttested(f.admin, 1)
	require.ErrorIs(t, err, governance.ErrAlreadyAttested)

	// force-executed disarms the action without dispatching
	require.NoError(t, f.executor.ForceExecuted(f.admin, 1))
	require.True(t, f.executor.IsExecuted(1))
	require.Empty(t, f.calls)
	_, err = f.executor.Execute(1, f.payload)
	require.ErrorIs(t, err, governance.ErrAlreadyExecuted)
}

func drain(emitter *governance.ChannelEmitter) []governance.Event {
	var events []governance.Event
	for {
		select {
		case ev := <-emitter.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}
