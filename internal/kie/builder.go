package kie

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/kiebridge/internal/bridge"
)

// Builder accumulates rule sources and compiles them into a Base.
//
// A Builder is not safe for concurrent use. Once Build succeeds the builder
// is consumed: further Add and Build calls return ErrBuilderConsumed.
type Builder struct {
	caller bridge.Caller
	obj    bridge.Object
	drl    bridge.Value
	built  bool
	opts   options
	logger *slog.Logger
}

// NewBuilder creates a remote knowledge builder.
func NewBuilder(ctx context.Context, caller bridge.Caller, opts ...Option) (*Builder, error) {
	o := defaultOptions().apply(opts)

	obj, err := bridge.NewClass(caller, ClassKnowledgeBuilderFactory).CallObject(ctx, "newKnowledgeBuilder")
	if err != nil {
		return nil, fmt.Errorf("create knowledge builder: %w", err)
	}

	b := &Builder{
		caller: caller,
		obj:    obj,
		opts:   o,
		logger: o.logger,
	}
	bridge.AutoRelease(b, obj)
	return b, nil
}

// Remote returns the handle of the remote builder for calls not covered here.
func (b *Builder) Remote() bridge.Object {
	return b.obj
}

// Add registers one asset as a DRL resource.
func (b *Builder) Add(ctx context.Context, asset Asset) error {
	if b.built {
		return ErrBuilderConsumed
	}

	content, err := asset.Content()
	if err != nil {
		return fmt.Errorf("add %s: %w", asset.Name(), err)
	}

	drl, err := b.resourceType(ctx)
	if err != nil {
		return fmt.Errorf("add %s: %w", asset.Name(), err)
	}

	resource, err := bridge.NewClass(b.caller, ClassResourceFactory).CallObject(ctx, "newByteArrayResource", content)
	if err != nil {
		return fmt.Errorf("add %s: %w", asset.Name(), err)
	}
	defer func() { _ = resource.Release(ctx) }()

	if _, err := b.obj.Invoke(ctx, "add", resource, drl); err != nil {
		return fmt.Errorf("add %s: %w", asset.Name(), err)
	}

	b.logger.Debug("rule source added",
		slog.String("asset", asset.Name()),
		slog.Int("bytes", len(content)),
	)
	return nil
}

// AddAll registers each asset in order, stopping at the first failure.
func (b *Builder) AddAll(ctx context.Context, assets []Asset) error {
	for _, a := range assets {
		if err := b.Add(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// resourceType returns ResourceType.DRL, fetched once.
func (b *Builder) resourceType(ctx context.Context) (bridge.Value, error) {
	if b.drl != nil {
		return b.drl, nil
	}
	v, err := bridge.NewClass(b.caller, ClassResourceType).Field(ctx, "DRL")
	if err != nil {
		return nil, fmt.Errorf("resolve resource type: %w", err)
	}
	b.drl = v
	return v, nil
}

// Errors returns the builder's compilation errors in reported order.
// An empty result means the sources added so far compile.
func (b *Builder) Errors(ctx context.Context) ([]string, error) {
	has, err := b.obj.Invoke(ctx, "hasErrors")
	if err != nil {
		return nil, fmt.Errorf("check errors: %w", err)
	}
	hasErrors, ok := bridge.AsBool(has)
	if !ok {
		return nil, fmt.Errorf("check errors: expected bool, got %T", has)
	}
	if !hasErrors {
		return nil, nil
	}

	coll, err := b.obj.InvokeObject(ctx, "getErrors")
	if err != nil {
		return nil, fmt.Errorf("get errors: %w", err)
	}
	defer func() { _ = coll.Release(ctx) }()

	items, err := coll.Invoke(ctx, "toArray")
	if err != nil {
		return nil, fmt.Errorf("get errors: %w", err)
	}
	list, ok := items.(bridge.List)
	if !ok {
		return nil, fmt.Errorf("get errors: expected list, got %T", items)
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		msg, err := b.describe(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("get errors: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// describe stringifies one builder error.
func (b *Builder) describe(ctx context.Context, v bridge.Value) (string, error) {
	if s, ok := bridge.AsString(v); ok {
		return s, nil
	}
	obj, err := bridge.ObjectOf(b.caller, v)
	if err != nil {
		return "", err
	}
	defer func() { _ = obj.Release(ctx) }()

	s, err := obj.Invoke(ctx, "toString")
	if err != nil {
		return "", err
	}
	msg, ok := bridge.AsString(s)
	if !ok {
		return "", fmt.Errorf("toString returned %T", s)
	}
	return msg, nil
}

// Build compiles the added sources into a new Base.
//
// Compilation errors are logged one by one and returned together as a
// *RuleCompilationError.
func (b *Builder) Build(ctx context.Context) (*Base, error) {
	if b.built {
		return nil, ErrBuilderConsumed
	}

	errs, err := b.Errors(ctx)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		for _, e := range errs {
			b.logger.Error("rule compilation error", slog.String("error", e))
		}
		return nil, &RuleCompilationError{Errors: errs}
	}

	pkgs, err := b.obj.InvokeObject(ctx, "getKnowledgePackages")
	if err != nil {
		return nil, fmt.Errorf("get knowledge packages: %w", err)
	}
	defer func() { _ = pkgs.Release(ctx) }()

	obj, err := bridge.NewClass(b.caller, ClassKnowledgeBaseFactory).CallObject(ctx, "newKnowledgeBase")
	if err != nil {
		return nil, fmt.Errorf("create knowledge base: %w", err)
	}
	if _, err := obj.Invoke(ctx, "addPackages", pkgs); err != nil {
		_ = obj.Release(ctx)
		return nil, fmt.Errorf("add packages: %w", err)
	}

	b.built = true
	b.logger.Debug("knowledge base built", slog.String("base", obj.ID()))
	return newBase(b.caller, obj, b.opts), nil
}
