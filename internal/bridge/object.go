package bridge

import (
	"context"
	"fmt"
)

// ConstructorMethod is the method name that allocates a new instance when
// invoked on a class target.
const ConstructorMethod = "<init>"

// Target addresses either a remote object (by ref id) or a class (for
// static members and constructors). Exactly one of Ref and Class is set.
type Target struct {
	Ref   string `json:"ref,omitempty"`
	Class string `json:"class,omitempty"`
}

// ObjectTarget returns a Target addressing the remote object with the given id.
func ObjectTarget(id string) Target {
	return Target{Ref: id}
}

// ClassTarget returns a Target addressing the static side of a Java class.
func ClassTarget(name string) Target {
	return Target{Class: name}
}

// String renders the target for logs and errors.
func (t Target) String() string {
	if t.Ref != "" {
		return "ref:" + t.Ref
	}
	return "class:" + t.Class
}

func (t Target) validate() error {
	if (t.Ref == "") == (t.Class == "") {
		return fmt.Errorf("%w: exactly one of ref and class must be set", ErrInvalidTarget)
	}
	return nil
}

// Caller is the capability every remote-backed wrapper composes.
//
// Results are returned exactly as the bridge marshals them; the bridge is
// responsible for converting between Java and wire values.
type Caller interface {
	// Call invokes a method on the target and returns its result.
	Call(ctx context.Context, target Target, method string, args ...Value) (Value, error)

	// Field reads a field of the target.
	Field(ctx context.Context, target Target, name string) (Value, error)

	// SetField writes a field of the target.
	SetField(ctx context.Context, target Target, name string, value Value) error

	// Release drops one server-side reference to the object with the given id.
	Release(ctx context.Context, id string) error
}

// Object is a handle to one remote instance.
// Object values are cheap to copy; copies refer to the same remote instance.
type Object struct {
	caller Caller
	ref    Ref
}

// NewObject binds a reference to the caller that produced it.
func NewObject(c Caller, ref Ref) Object {
	return Object{caller: c, ref: ref}
}

// ObjectOf converts a call result into an Object.
// Returns ErrNullResult for null and ErrNotObject for any other non-ref value.
func ObjectOf(c Caller, v Value) (Object, error) {
	if IsNull(v) {
		return Object{}, ErrNullResult
	}
	ref, ok := v.(Ref)
	if !ok {
		return Object{}, fmt.Errorf("%w: got %T", ErrNotObject, v)
	}
	return NewObject(c, ref), nil
}

// Ref returns the object reference. It lets an Object be passed as an
// argument to another remote call.
func (o Object) Ref() Ref {
	return o.ref
}

// ID returns the remote identity of the object.
func (o Object) ID() string {
	return o.ref.ID
}

// Class returns the Java class name reported by the bridge, if any.
func (o Object) Class() string {
	return o.ref.Class
}

// Caller returns the capability the object is bound to.
func (o Object) Caller() Caller {
	return o.caller
}

// IsZero reports whether the handle is unbound.
func (o Object) IsZero() bool {
	return o.caller == nil || o.ref.ID == ""
}

// Invoke calls a method on the remote instance. Arguments are converted
// with ValueOf.
func (o Object) Invoke(ctx context.Context, method string, args ...any) (Value, error) {
	if o.IsZero() {
		return nil, ErrZeroObject
	}
	vals, err := ValuesOf(args...)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", method, err)
	}
	return o.caller.Call(ctx, ObjectTarget(o.ref.ID), method, vals...)
}

// InvokeObject calls a method whose result must be a remote object.
func (o Object) InvokeObject(ctx context.Context, method string, args ...any) (Object, error) {
	v, err := o.Invoke(ctx, method, args...)
	if err != nil {
		return Object{}, err
	}
	obj, err := ObjectOf(o.caller, v)
	if err != nil {
		return Object{}, fmt.Errorf("invoke %s: %w", method, err)
	}
	return obj, nil
}

// Field reads a field of the remote instance.
func (o Object) Field(ctx context.Context, name string) (Value, error) {
	if o.IsZero() {
		return nil, ErrZeroObject
	}
	return o.caller.Field(ctx, ObjectTarget(o.ref.ID), name)
}

// SetField writes a field of the remote instance.
func (o Object) SetField(ctx context.Context, name string, value any) error {
	if o.IsZero() {
		return ErrZeroObject
	}
	v, err := ValueOf(value)
	if err != nil {
		return fmt.Errorf("set field %s: %w", name, err)
	}
	return o.caller.SetField(ctx, ObjectTarget(o.ref.ID), name, v)
}

// Release drops this handle's server-side reference.
func (o Object) Release(ctx context.Context) error {
	if o.IsZero() {
		return nil
	}
	return o.caller.Release(ctx, o.ref.ID)
}

// Class is a handle to the static side of a Java class.
type Class struct {
	caller Caller
	name   string
}

// NewClass returns a handle for the fully qualified class name.
func NewClass(c Caller, name string) Class {
	return Class{caller: c, name: name}
}

// Name returns the fully qualified class name.
func (c Class) Name() string {
	return c.name
}

// New constructs an instance of the class.
func (c Class) New(ctx context.Context, args ...any) (Object, error) {
	return c.CallObject(ctx, ConstructorMethod, args...)
}

// Call invokes a static method.
func (c Class) Call(ctx context.Context, method string, args ...any) (Value, error) {
	vals, err := ValuesOf(args...)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", c.name, method, err)
	}
	return c.caller.Call(ctx, ClassTarget(c.name), method, vals...)
}

// CallObject invokes a static method whose result must be a remote object.
func (c Class) CallObject(ctx context.Context, method string, args ...any) (Object, error) {
	v, err := c.Call(ctx, method, args...)
	if err != nil {
		return Object{}, err
	}
	obj, err := ObjectOf(c.caller, v)
	if err != nil {
		return Object{}, fmt.Errorf("call %s.%s: %w", c.name, method, err)
	}
	return obj, nil
}

// Field reads a static field.
func (c Class) Field(ctx context.Context, name string) (Value, error) {
	return c.caller.Field(ctx, ClassTarget(c.name), name)
}
