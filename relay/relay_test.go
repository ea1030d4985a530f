package relay_test

import (
	"context"
	"testing"
	"time"

	"github.com/covenantlabs/ratify/governance"
	"github.com/covenantlabs/ratify/network"
	"github.com/covenantlabs/ratify/pkg/sign"
	"github.com/covenantlabs/ratify/pkg/weight"
	"github.com/covenantlabs/ratify/relay"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// harness wires registry, tally, executor and a relay over a local gossip
// topic: the full off-path confirmation loop minus the real network.
type harness struct {
	registry    *governance.Registry
	tally       *governance.Tally
	executor    *governance.Executor
	relay       *relay.Relay
	emitter     *governance.ChannelEmitter
	relaySigner *sign.KeySigner
	voter       *sign.KeySigner
	snapshot    *weight.Snapshot
	payload     []byte
	domain      governance.Domain
	admin       sign.Identity
}

func setup(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		relaySigner: sign.NewTestSigner(),
		voter:       sign.NewTestSigner(),
		admin:       sign.NewTestSigner().ID(),
		emitter:     governance.NewChannelEmitter(16),
	}
	h.domain = governance.Domain{
		Name:    governance.ProtocolName,
		Version: governance.ProtocolVersion,
		ChainID: 1,
		Engine:  sign.NewTestSigner().ID(),
	}

	snapshot, err := weight.NewSnapshot([]weight.Member{
		{ID: h.voter.ID(), Weight: 10, Nonce: 0},
	})
	require.NoError(t, err)
	h.snapshot = snapshot

	h.registry = governance.NewRegistry()
	h.tally = governance.NewTally(h.admin, h.domain, governance.WithTallyEmitter(h.emitter))

	router := governance.NewRouter()
	target := sign.NewTestSigner().ID()
	router.Handle(target, func(data []byte) ([]byte, error) { return data, nil })
	h.payload = governance.EncodeAction(target, []byte("set"))

	h.executor = governance.NewExecutor(h.relaySigner.ID(), h.admin, h.registry, router)

	actionHash := governance.HashAction(h.payload)
	require.NoError(t, h.registry.Publish(h.admin, 1, actionHash, 0, 0, snapshot.Root(), nil))
	require.NoError(t, h.tally.Register(h.admin, 1, snapshot.Root(), actionHash, 10))

	local := network.NewLocalNetwork()
	gossip, err := local.Gossip([]byte("ratify/attestations"))
	require.NoError(t, err)
	gossip.Notify(relay.NewListener(h.executor, zerolog.Nop()))

	h.relay = relay.New(h.relaySigner, h.tally, gossip, h.emitter.Events())
	return h
}

func (h *harness) passingBallot(t *testing.T) governance.Ballot {
	t.Helper()
	member, proof, err := h.snapshot.ProofByID(h.voter.ID())
	require.NoError(t, err)
	b := governance.Ballot{
		Support:  governance.Affirmative,
		Nonce:    member.Nonce,
		Deadline: uint64(time.Now().Add(time.Hour).Unix()),
		Weight:   member.Weight,
		Proof:    proof,
	}
	require.NoError(t, governance.SignBallot(h.voter, h.domain, 1, &b))
	return b
}

func TestRelayAttestsOnPassage(t *testing.T) {
	h := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.relay.Run(ctx)
	}()

	require.NoError(t, h.tally.SubmitBallots(1, []governance.Ballot{h.passingBallot(t)}))
	require.True(t, h.tally.IsPassed(1))

	require.Eventually(t, func() bool {
		return h.executor.IsAttested(1)
	}, 5*time.Second, 10*time.Millisecond)

	// the attested action can now be released
	ret, err := h.executor.Execute(1, h.payload)
	require.NoError(t, err)
	require.Equal(t, []byte("set"), ret)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRelayStopsWhenEventsClose(t *testing.T) {
	h := setup(t)
	events := make(chan governance.Event)
	r := relay.New(h.relaySigner, h.tally, network.NewNopGossip(), events)

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run(context.Background())
	}()
	close(events)
	require.NoError(t, <-errCh)
	require.False(t, r.IsRunning())
}

func TestListenerRejectsForeignSigner(t *testing.T) {
	h := setup(t)
	listener := relay.NewListener(h.executor, zerolog.Nop())

	attestation := &network.Attestation{
		ProposalID: 1,
		ActionHash: governance.HashAction(h.payload),
	}
	imposter := sign.NewTestSigner()
	sig, err := imposter.Sign(attestation.SignBytes())
	require.NoError(t, err)
	attestation.Signature = sig

	err = listener.OnAttestation(context.Background(), attestation)
	require.ErrorIs(t, err, governance.ErrNotRelay)
	require.False(t, h.executor.IsAttested(1))
}

func TestListenerToleratesDuplicateDelivery(t *testing.T) {
	h := setup(t)
	listener := relay.NewListener(h.executor, zerolog.Nop())

	attestation := &network.Attestation{
		ProposalID: 1,
		ActionHash: governance.HashAction(h.payload),
	}
	sig, err := h.relaySigner.Sign(attestation.SignBytes())
	require.NoError(t, err)
	attestation.Signature = sig

	require.NoError(t, listener.OnAttestation(context.Background(), attestation))
	require.True(t, h.executor.IsAttested(1))
	// gossip redelivery of the same attestation is not an error
	require.NoError(t, listener.OnAttestation(context.Background(), attestation))
}

func TestListenerRejectsMalformedAttestation(t *testing.T) {
	h := setup(t)
	listener := relay.NewListener(h.executor, zerolog.Nop())

	err := listener.OnAttestation(context.Background(), &network.Attestation{})
	require.Error(t, err)
}
