package ratify

import (
	"time"

	"github.com/covenantlabs/ratify/governance"
	"github.com/covenantlabs/ratify/pkg/merkle"
	"github.com/covenantlabs/ratify/pkg/sign"
	"github.com/rs/zerolog"
)

// Config carries the parameters of one pipeline instance.
type Config struct {
	// ChainID and Engine are folded into the ballot signing domain. Two
	// pipelines differing in either cannot replay each other's ballots.
	ChainID uint64
	Engine  sign.Identity

	// Admin gates tally registration and the force escape hatches.
	Admin sign.Identity

	// Relay is the single identity whose attestations the executor
	// honors.
	Relay sign.Identity

	// Emitter receives pipeline events. Optional; defaults to discard.
	Emitter governance.Emitter

	// HeightSource bounds commitment snapshot references. Optional.
	HeightSource func() uint64

	// Now is the time source ballot deadlines are checked against.
	// Optional; defaults to the wall clock.
	Now func() time.Time

	Logger zerolog.Logger
}

// Pipeline wires the three components over a shared dispatcher and event
// emitter. The components remain independently addressable: nothing in the
// pipeline shortcuts the cross-checks they perform against each other.
type Pipeline struct {
	admin    sign.Identity
	registry *governance.Registry
	tally    *governance.Tally
	executor *governance.Executor
	router   *governance.Router
}

// New assembles a pipeline from the config.
func New(cfg Config) *Pipeline {
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = governance.NopEmitter{}
	}

	registryOpts := []governance.RegistryOption{
		governance.WithRegistryEmitter(emitter),
		governance.WithRegistryLogger(cfg.Logger),
	}
	if cfg.HeightSource != nil {
		registryOpts = append(registryOpts, governance.WithHeightSource(cfg.HeightSource))
	}
	if cfg.Now != nil {
		registryOpts = append(registryOpts, governance.WithRegistryClock(cfg.Now))
	}
	registry := governance.NewRegistry(registryOpts...)

	domain := governance.Domain{
		Name:    governance.ProtocolName,
		Version: governance.ProtocolVersion,
		ChainID: cfg.ChainID,
		Engine:  cfg.Engine,
	}
	tallyOpts := []governance.TallyOption{
		governance.WithTallyEmitter(emitter),
		governance.WithTallyLogger(cfg.Logger),
	}
	if cfg.Now != nil {
		tallyOpts = append(tallyOpts, governance.WithTallyClock(cfg.Now))
	}
	tally := governance.NewTally(cfg.Admin, domain, tallyOpts...)

	router := governance.NewRouter()
	executor := governance.NewExecutor(cfg.Relay, cfg.Admin, registry, router,
		governance.WithExecutorEmitter(emitter),
		governance.WithExecutorLogger(cfg.Logger),
	)

	return &Pipeline{
		admin:    cfg.Admin,
		registry: registry,
		tally:    tally,
		executor: executor,
		router:   router,
	}
}

// Propose publishes the commitment and registers the matching tally record.
// These are two writes into two trust domains; the pipeline performs them
// with the same values, which is exactly the protocol-level agreement the
// executor's cross-checks later verify.
func (p *Pipeline) Propose(
	proposer sign.Identity,
	id uint64,
	actionPayload []byte,
	snapshotRef uint64,
	exchangeRate uint64,
	weightRoot merkle.Digest,
	threshold uint64,
	metadata []byte,
) error {
	actionHash := governance.HashAction(actionPayload)
	if err := p.registry.Publish(proposer, id, actionHash, snapshotRef, exchangeRate, weightRoot, metadata); err != nil {
		return err
	}
	return p.tally.Register(p.admin, id, weightRoot, actionHash, threshold)
}

func (p *Pipeline) Registry() *governance.Registry {
	return p.registry
}

func (p *Pipeline) Tally() *governance.Tally {
	return p.tally
}

func (p *Pipeline) Executor() *governance.Executor {
	return p.executor
}

// Router is the pipeline's dispatcher. Action targets register their
// handlers here.
func (p *Pipeline) Router() *governance.Router {
	return p.router
}

// Domain returns the ballot signing domain of the pipeline's tally engine.
func (p *Pipeline) Domain() governance.Domain {
	return p.tally.Domain()
}
