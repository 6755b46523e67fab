package kie

import (
	"context"
	"fmt"

	"github.com/roach88/kiebridge/internal/bridge"
)

// Fact is a handle to one remote fact instance. Field values are never
// cached locally: every Get and Set is a round-trip.
//
// Two Facts are Equal when they wrap the same remote instance, regardless
// of field values.
type Fact struct {
	typ *FactType
	obj bridge.Object
}

var _ bridge.Referencer = (*Fact)(nil)

func newFact(ft *FactType, obj bridge.Object) *Fact {
	f := &Fact{typ: ft, obj: obj}
	bridge.AutoRelease(f, obj)
	return f
}

// Type returns the fact's declared type.
func (f *Fact) Type() *FactType {
	return f.typ
}

// Remote returns the handle of the wrapped instance.
func (f *Fact) Remote() bridge.Object {
	return f.obj
}

// Ref implements bridge.Referencer, so a Fact can be passed wherever a
// remote value is expected.
func (f *Fact) Ref() bridge.Ref {
	return f.obj.Ref()
}

// Key returns the remote identity of the wrapped instance, usable as a map key.
func (f *Fact) Key() string {
	return f.obj.ID()
}

// Equal reports whether f and other wrap the same remote instance.
func (f *Fact) Equal(other *Fact) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.obj.ID() == other.obj.ID()
}

// Get reads a field. Declared fields go through the type descriptor; other
// names are read as public fields of the instance.
func (f *Fact) Get(ctx context.Context, name string) (bridge.Value, error) {
	if f.typ.HasField(name) {
		v, err := f.typ.obj.Invoke(ctx, "get", f.obj, name)
		if err != nil {
			return nil, fmt.Errorf("get %s.%s: %w", f.typ.name, name, err)
		}
		return v, nil
	}
	v, err := f.obj.Field(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get %s.%s: %w", f.typ.name, name, err)
	}
	return v, nil
}

// GetFact reads a field holding another fact and wraps it. A null field
// yields (nil, nil).
func (f *Fact) GetFact(ctx context.Context, name string) (*Fact, error) {
	v, err := f.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return f.typ.session.Wrap(ctx, v)
}

// Set writes a field. Declared fields go through the type descriptor;
// other names are written as public fields of the instance.
func (f *Fact) Set(ctx context.Context, name string, value any) error {
	if !f.typ.HasField(name) {
		if err := f.obj.SetField(ctx, name, value); err != nil {
			return fmt.Errorf("set %s.%s: %w", f.typ.name, name, err)
		}
		return nil
	}
	v, err := bridge.ValueOf(value)
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", f.typ.name, name, err)
	}
	if _, err := f.typ.obj.Invoke(ctx, "set", f.obj, name, v); err != nil {
		return fmt.Errorf("set %s.%s: %w", f.typ.name, name, err)
	}
	return nil
}

// Invoke calls any method of the wrapped instance.
func (f *Fact) Invoke(ctx context.Context, method string, args ...any) (bridge.Value, error) {
	return f.obj.Invoke(ctx, method, args...)
}

// String returns the type and remote identity, without a round-trip.
func (f *Fact) String() string {
	return fmt.Sprintf("%s@%s", f.typ.QualifiedName(), f.obj.ID())
}
