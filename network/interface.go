package network

import (
	"context"
	"io"
)

type Network interface {
	Gossip(namespace []byte) (Gossip, error)
}

// Gossip is an interface which allows the relay to broadcast attestations
// and executor hosts to eventually receive them. It must eventually
// propagate messages to all non-faulty nodes within the network; how, i.e.
// simply flooding or some form of content addressing protocol, is left to
// the implementer.
type Gossip interface {
	io.Closer
	Broadcaster
	Notifier
}

type Broadcaster interface {
	BroadcastAttestation(context.Context, *Attestation) error
}

type Notifier interface {
	// Notify registers a Notifiee wishing to receive attestations. Any
	// non-nil error returned from OnAttestation rejects the message as
	// invalid.
	Notify(Notifiee)
}

type Notifiee interface {
	OnAttestation(context.Context, *Attestation) error
}
