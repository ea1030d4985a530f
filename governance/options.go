package governance

import (
	"time"

	"github.com/rs/zerolog"
)

// Options for each component. If left unset, components default to a nop
// logger, a nop emitter and the wall clock.

type RegistryOption func(*Registry)

// WithHeightSource bounds snapshot references to the caller's current
// observable state. Without it, any snapshot reference is accepted.
func WithHeightSource(fn func() uint64) RegistryOption {
	return func(r *Registry) {
		r.heightFn = fn
	}
}

func WithRegistryClock(fn func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = fn
	}
}

func WithRegistryEmitter(e Emitter) RegistryOption {
	return func(r *Registry) {
		r.emitter = e
	}
}

func WithRegistryLogger(l zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

type TallyOption func(*Tally)

// WithTallyClock sets the time source ballot deadlines are checked against.
func WithTallyClock(fn func() time.Time) TallyOption {
	return func(t *Tally) {
		t.now = fn
	}
}

func WithTallyEmitter(e Emitter) TallyOption {
	return func(t *Tally) {
		t.emitter = e
	}
}

func WithTallyLogger(l zerolog.Logger) TallyOption {
	return func(t *Tally) {
		t.logger = l
	}
}

type ExecutorOption func(*Executor)

func WithExecutorEmitter(e Emitter) ExecutorOption {
	return func(ex *Executor) {
		ex.emitter = e
	}
}

func WithExecutorLogger(l zerolog.Logger) ExecutorOption {
	return func(ex *Executor) {
		ex.logger = l
	}
}
