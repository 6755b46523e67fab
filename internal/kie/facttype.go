package kie

import (
	"context"
	"fmt"
	"maps"

	"github.com/roach88/kiebridge/internal/bridge"
)

// FactType is a declared fact type of a compiled base. Its field order is
// read once when the type is first resolved.
type FactType struct {
	session *Session
	obj     bridge.Object
	pkg     string
	name    string
	fields  []string
	known   map[string]bool
}

func newFactType(ctx context.Context, s *Session, obj bridge.Object, pkg, name string) (*FactType, error) {
	fields, err := fieldNames(ctx, obj)
	if err != nil {
		return nil, fmt.Errorf("read fields of %s.%s: %w", pkg, name, err)
	}

	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f] = true
	}

	ft := &FactType{
		session: s,
		obj:     obj,
		pkg:     pkg,
		name:    name,
		fields:  fields,
		known:   known,
	}
	bridge.AutoRelease(ft, obj)
	return ft, nil
}

// fieldNames returns the declared field names in declaration order.
func fieldNames(ctx context.Context, obj bridge.Object) ([]string, error) {
	v, err := obj.Invoke(ctx, "getFields")
	if err != nil {
		return nil, err
	}
	list, ok := v.(bridge.List)
	if !ok {
		return nil, fmt.Errorf("expected list, got %T", v)
	}

	names := make([]string, 0, len(list))
	for _, item := range list {
		field, err := bridge.ObjectOf(obj.Caller(), item)
		if err != nil {
			return nil, err
		}
		n, err := field.Invoke(ctx, "getName")
		_ = field.Release(ctx)
		if err != nil {
			return nil, err
		}
		s, ok := bridge.AsString(n)
		if !ok {
			return nil, fmt.Errorf("field name: expected string, got %T", n)
		}
		names = append(names, s)
	}
	return names, nil
}

// Name returns the simple type name.
func (ft *FactType) Name() string {
	return ft.name
}

// Package returns the rule package declaring the type.
func (ft *FactType) Package() string {
	return ft.pkg
}

// QualifiedName returns package.Name.
func (ft *FactType) QualifiedName() string {
	return ft.pkg + "." + ft.name
}

// Fields returns the declared field names in declaration order.
func (ft *FactType) Fields() []string {
	return append([]string(nil), ft.fields...)
}

// HasField reports whether name is a declared field.
func (ft *FactType) HasField(name string) bool {
	return ft.known[name]
}

// Remote returns the handle of the remote type descriptor.
func (ft *FactType) Remote() bridge.Object {
	return ft.obj
}

// New creates an instance. Positional values fill the declared fields in
// order; named values are applied on top and win on conflict. All values
// are set with a single remote call.
func (ft *FactType) New(ctx context.Context, positional []any, named map[string]any) (*Fact, error) {
	if len(positional) > len(ft.fields) {
		return nil, fmt.Errorf("new %s: %w: %d fields, got %d", ft.name, ErrTooManyValues, len(ft.fields), len(positional))
	}

	values := make(map[string]any, len(positional)+len(named))
	for i, v := range positional {
		values[ft.fields[i]] = v
	}
	for k := range named {
		if !ft.known[k] {
			return nil, fmt.Errorf("new %s: %w %q", ft.name, ErrUnknownField, k)
		}
	}
	maps.Copy(values, named)

	m, err := bridge.ValueOf(values)
	if err != nil {
		return nil, fmt.Errorf("new %s: %w", ft.name, err)
	}

	obj, err := ft.obj.InvokeObject(ctx, "newInstance")
	if err != nil {
		return nil, fmt.Errorf("new %s: %w", ft.name, err)
	}
	if _, err := ft.obj.Invoke(ctx, "setFromMap", obj, m); err != nil {
		_ = obj.Release(ctx)
		return nil, fmt.Errorf("new %s: %w", ft.name, err)
	}
	return newFact(ft, obj), nil
}

// NewNamed creates an instance from named values only.
func (ft *FactType) NewNamed(ctx context.Context, named map[string]any) (*Fact, error) {
	return ft.New(ctx, nil, named)
}
