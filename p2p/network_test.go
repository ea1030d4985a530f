package p2p_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/covenantlabs/ratify/network"
	"github.com/covenantlabs/ratify/p2p"
	"github.com/covenantlabs/ratify/pkg/merkle"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNamespace = []byte("ratify-test")

func TestP2PNetwork(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	t.Cleanup(cancel)

	nets := setupP2PNetworks(ctx, t, 2)
	n0, n1 := nets[0], nets[1]

	g0, err := n0.Gossip(testNamespace)
	require.NoError(t, err)
	g1, err := n1.Gossip(testNamespace)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, g0.Close())
		require.NoError(t, g1.Close())
	})

	nt0, nt1 := makeNotifiee(), makeNotifiee()
	g0.Notify(nt0)
	g1.Notify(nt1)

	attIn := randAttestation()
	err = g0.BroadcastAttestation(ctx, attIn)
	require.NoError(t, err)

	attOut, err := nt0.Rcv(ctx) // ensures we receive msg from ourselves
	require.NoError(t, err)
	require.NotNil(t, attOut)
	assert.EqualValues(t, attIn, attOut)
	attOut, err = nt1.Rcv(ctx)
	require.NoError(t, err)
	require.NotNil(t, attOut)
	assert.EqualValues(t, attIn, attOut)

	// a notifiee rejecting the attestation surfaces as a broadcast error
	invalid := randAttestation()
	nt0.validate = func(a *network.Attestation) error {
		if a.ProposalID == invalid.ProposalID {
			return errors.New("invalid proposal id")
		}
		return nil
	}
	err = g0.BroadcastAttestation(ctx, invalid)
	assert.Error(t, err)
}

func setupP2PNetworks(ctx context.Context, t *testing.T, count int) []network.Network {
	t.Helper()
	mn, err := mocknet.FullMeshConnected(count)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mn.Close())
	})

	nets := make([]network.Network, count)
	for i, host := range mn.Hosts() {
		ps, err := pubsub.NewFloodSub(ctx, host)
		require.NoError(t, err)
		nets[i] = p2p.NewNetwork(ps)
	}
	return nets
}

type notifiee struct {
	attCh    chan *network.Attestation
	validate func(*network.Attestation) error
}

func makeNotifiee() *notifiee {
	return &notifiee{
		attCh: make(chan *network.Attestation, 8),
	}
}

func (n *notifiee) OnAttestation(ctx context.Context, attestation *network.Attestation) error {
	if n.validate != nil {
		if err := n.validate(attestation); err != nil {
			return err
		}
	}
	select {
	case n.attCh <- attestation:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (n *notifiee) Rcv(ctx context.Context) (*network.Attestation, error) {
	select {
	case attestation := <-n.attCh:
		return attestation, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func randAttestation() *network.Attestation {
	payload := make([]byte, 32)
	rand.Read(payload)
	signature := make([]byte, 65)
	rand.Read(signature)
	return &network.Attestation{
		ProposalID: uint64(rand.Int63n(1<<32) + 1),
		ActionHash: merkle.Sum(payload),
		Signature:  signature,
	}
}
