package kie

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/roach88/kiebridge/internal/bridge"
	"github.com/roach88/kiebridge/internal/gateway"
)

// Session is a stateful working-memory session.
//
// A Session is meant for one caller at a time; only its fact type cache is
// guarded against concurrent use.
type Session struct {
	id       string
	base     *Base
	obj      bridge.Object
	disposer *disposer
	cleanup  *runtime.Cleanup
	logger   *slog.Logger

	// gateway is set when the session owns the JVM (see FromAssets).
	gateway *gateway.Gateway

	mu       sync.Mutex
	packages map[string]*Package
	types    map[typeKey]*FactType
}

type typeKey struct {
	pkg  string
	name string
}

// disposer disposes the remote session exactly once. It is the argument
// of the session's runtime cleanup and must not reference the Session.
type disposer struct {
	obj    bridge.Object
	once   sync.Once
	logger *slog.Logger
}

// dispose runs on the first call only; later calls return nil.
func (d *disposer) dispose(ctx context.Context) (err error) {
	d.once.Do(func() {
		if _, err = d.obj.Invoke(ctx, "dispose"); err != nil {
			err = fmt.Errorf("dispose session: %w", err)
		}
		_ = d.obj.Release(ctx)
		d.logger.Debug("session disposed")
	})
	return err
}

// FromAssets starts a JVM, compiles assets and opens a session on the
// result. The session owns the JVM: Close disposes the session and stops
// it. On any failure the JVM is stopped before returning.
func FromAssets(ctx context.Context, cfg gateway.Config, assets []Asset, opts ...Option) (*Session, error) {
	g, err := gateway.Start(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s, err := openSession(ctx, g.Caller(), assets, opts)
	if err != nil {
		_ = g.Stop(ctx)
		return nil, err
	}
	s.gateway = g
	return s, nil
}

// Open compiles assets over an existing bridge and opens a session.
func Open(ctx context.Context, caller bridge.Caller, assets []Asset, opts ...Option) (*Session, error) {
	return openSession(ctx, caller, assets, opts)
}

func openSession(ctx context.Context, caller bridge.Caller, assets []Asset, opts []Option) (*Session, error) {
	b, err := NewBuilder(ctx, caller, opts...)
	if err != nil {
		return nil, err
	}
	if err := b.AddAll(ctx, assets); err != nil {
		return nil, err
	}
	kb, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	return kb.NewSession(ctx)
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// Base returns the knowledge base the session was created from.
func (s *Session) Base() *Base {
	return s.base
}

// Remote returns the handle of the remote session for calls not covered here.
func (s *Session) Remote() bridge.Object {
	return s.obj
}

// Gateway returns the JVM owned by the session, or nil.
func (s *Session) Gateway() *gateway.Gateway {
	return s.gateway
}

// Package returns the fact type namespace for a rule package.
func (s *Session) Package(name string) *Package {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.packages[name]
	if !ok {
		p = &Package{session: s, name: name}
		s.packages[name] = p
	}
	return p
}

// factType returns the cached descriptor for (pkg, name), looking it up on
// first use.
func (s *Session) factType(ctx context.Context, pkg, name string) (*FactType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := typeKey{pkg: pkg, name: name}
	if ft, ok := s.types[key]; ok {
		return ft, nil
	}

	obj, err := s.base.lookupFactType(ctx, pkg, name)
	if err != nil {
		return nil, err
	}
	ft, err := newFactType(ctx, s, obj, pkg, name)
	if err != nil {
		_ = obj.Release(ctx)
		return nil, err
	}
	s.types[key] = ft
	s.logger.Debug("fact type resolved", slog.String("type", ft.QualifiedName()), slog.Any("fields", ft.fields))
	return ft, nil
}

// Insert adds v to working memory. A *Fact is inserted as the remote
// instance it wraps; other values are converted with bridge.ValueOf.
// The result is the remote fact handle.
func (s *Session) Insert(ctx context.Context, v any) (bridge.Value, error) {
	h, err := s.obj.Invoke(ctx, "insert", v)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	return h, nil
}

// FireAllRules fires every activated rule and returns how many fired.
func (s *Session) FireAllRules(ctx context.Context) (int64, error) {
	v, err := s.obj.Invoke(ctx, "fireAllRules")
	if err != nil {
		return 0, fmt.Errorf("fire rules: %w", err)
	}
	n, ok := bridge.AsInt(v)
	if !ok {
		return 0, fmt.Errorf("fire rules: expected int, got %T", v)
	}
	s.logger.Debug("rules fired", slog.Int64("count", n))
	return n, nil
}

// Wrap turns a reference read from a field or a method result back into a
// *Fact, resolving its class name to a declared fact type. Null yields
// (nil, nil).
func (s *Session) Wrap(ctx context.Context, v bridge.Value) (*Fact, error) {
	if bridge.IsNull(v) {
		return nil, nil
	}
	obj, err := bridge.ObjectOf(s.obj.Caller(), v)
	if err != nil {
		return nil, fmt.Errorf("wrap: %w", err)
	}

	pkg, name := splitClass(obj.Class())
	ft, err := s.Package(pkg).Type(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("wrap %s: %w", obj.Class(), err)
	}
	return newFact(ft, obj), nil
}

// splitClass splits a fully qualified class name into package and simple name.
func splitClass(class string) (pkg, name string) {
	i := strings.LastIndex(class, ".")
	if i < 0 {
		return DefaultPackage, class
	}
	return class[:i], class[i+1:]
}

// Dispose releases the remote working memory. Safe to call more than once;
// only the first call does work.
func (s *Session) Dispose(ctx context.Context) error {
	if s.cleanup != nil {
		s.cleanup.Stop()
	}
	return s.disposer.dispose(ctx)
}

// Close disposes the session and stops the JVM if the session owns it.
func (s *Session) Close(ctx context.Context) error {
	err := s.Dispose(ctx)
	if s.gateway != nil {
		err = errors.Join(err, s.gateway.Stop(ctx))
	}
	return err
}

// Package resolves fact types declared in one rule package.
type Package struct {
	session *Session
	name    string
}

// Name returns the package name.
func (p *Package) Name() string {
	return p.name
}

// Type returns the fact type declared as name in this package. Lookups are
// cached per session. Returns *UnknownFactTypeError if the base does not
// declare it.
func (p *Package) Type(ctx context.Context, name string) (*FactType, error) {
	return p.session.factType(ctx, p.name, name)
}
