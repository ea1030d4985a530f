package network

import (
	"context"
	"sync"
)

// LocalNetwork is an in-process Network for tests and single-process
// deployments. Gossips that join the same namespace share a topic;
// broadcasts are delivered synchronously to every registered notifiee.
type LocalNetwork struct {
	mtx    sync.Mutex
	topics map[string]*localTopic
}

func NewLocalNetwork() *LocalNetwork {
	return &LocalNetwork{
		topics: make(map[string]*localTopic),
	}
}

func (n *LocalNetwork) Gossip(namespace []byte) (Gossip, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	topic, ok := n.topics[string(namespace)]
	if !ok {
		topic = &localTopic{}
		n.topics[string(namespace)] = topic
	}
	return &LocalGossip{topic: topic}, nil
}

type localTopic struct {
	mtx       sync.Mutex
	notifiees []Notifiee
}

type LocalGossip struct {
	topic *localTopic
}

// BroadcastAttestation delivers to every notifiee on the topic. As with the
// pubsub implementation, a notifiee rejecting the message surfaces as a
// broadcast error.
func (g *LocalGossip) BroadcastAttestation(ctx context.Context, attestation *Attestation) error {
	g.topic.mtx.Lock()
	notifiees := append([]Notifiee(nil), g.topic.notifiees...)
	g.topic.mtx.Unlock()

	for _, n := range notifiees {
		if err := n.OnAttestation(ctx, attestation); err != nil {
			return err
		}
	}
	return nil
}

func (g *LocalGossip) Notify(notifiee Notifiee) {
	g.topic.mtx.Lock()
	defer g.topic.mtx.Unlock()
	g.topic.notifiees = append(g.topic.notifiees, notifiee)
}

func (g *LocalGossip) Close() error {
	return nil
}

// NopGossip discards broadcasts and never delivers. Useful as a placeholder
// in tests.
type NopGossip struct{}

func NewNopGossip() NopGossip {
	return NopGossip{}
}

func (NopGossip) BroadcastAttestation(context.Context, *Attestation) error {
	return nil
}

func (NopGossip) Notify(Notifiee) {}

func (NopGossip) Close() error {
	return nil
}
