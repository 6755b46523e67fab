package kie

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/roach88/kiebridge/internal/bridge"
)

// Base is a compiled knowledge base. It is immutable; sessions created from
// it share its rules and declared fact types.
type Base struct {
	caller bridge.Caller
	obj    bridge.Object
	opts   options
}

func newBase(caller bridge.Caller, obj bridge.Object, opts options) *Base {
	kb := &Base{caller: caller, obj: obj, opts: opts}
	bridge.AutoRelease(kb, obj)
	return kb
}

// Remote returns the handle of the remote base.
func (kb *Base) Remote() bridge.Object {
	return kb.obj
}

// NewSession creates a stateful session. Options given here override the
// ones the base inherited from its builder.
func (kb *Base) NewSession(ctx context.Context, opts ...Option) (*Session, error) {
	o := kb.opts.apply(opts)

	obj, err := kb.obj.InvokeObject(ctx, "newKieSession")
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	id := o.ids.Generate()
	logger := o.logger.With(slog.String("session", id))

	s := &Session{
		id:       id,
		base:     kb,
		obj:      obj,
		disposer: &disposer{obj: obj, logger: logger},
		logger:   logger,
		packages: make(map[string]*Package),
		types:    make(map[typeKey]*FactType),
	}
	if o.autoDispose {
		cleanup := runtime.AddCleanup(s, func(d *disposer) {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), bridge.ReleaseTimeout)
				defer cancel()
				_ = d.dispose(ctx)
			}()
		}, s.disposer)
		s.cleanup = &cleanup
	}

	logger.Debug("session created")
	return s, nil
}

// lookupFactType fetches a fact type descriptor without caching.
func (kb *Base) lookupFactType(ctx context.Context, pkg, name string) (bridge.Object, error) {
	v, err := kb.obj.Invoke(ctx, "getFactType", pkg, name)
	if err != nil {
		return bridge.Object{}, fmt.Errorf("look up fact type %s.%s: %w", pkg, name, err)
	}
	if bridge.IsNull(v) {
		return bridge.Object{}, &UnknownFactTypeError{Package: pkg, Name: name}
	}
	obj, err := bridge.ObjectOf(kb.caller, v)
	if err != nil {
		return bridge.Object{}, fmt.Errorf("look up fact type %s.%s: %w", pkg, name, err)
	}
	return obj, nil
}
