package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/roach88/kiebridge/internal/bridge"
)

// Remote classes the fake answers static calls for.
const (
	classKnowledgeBuilderFactory = "org.kie.internal.builder.KnowledgeBuilderFactory"
	classResourceFactory         = "org.kie.internal.io.ResourceFactory"
	classResourceType            = "org.kie.api.io.ResourceType"
	classKnowledgeBaseFactory    = "org.drools.core.impl.KnowledgeBaseFactory"
	classHashMap                 = "java.util.HashMap"
)

// Rule is a rule body run by fireAllRules. It returns how many times it fired.
type Rule func(wm *WorkingMemory) int

// FakeJVM is an in-process bridge.Caller emulating the slice of the KIE API
// the kie package drives: knowledge builders, bases, sessions, declared fact
// types and their instances. Rule conditions are Go functions registered
// with AddRule; DRL rule blocks are accepted but not evaluated.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeJVM struct {
	mu       sync.Mutex
	next     int
	ids      map[any]string
	objects  map[string]any
	refs     map[string]int
	released map[string]int
	calls    []string
	rules    []Rule
	disposed int
	drl      *fakeEnum

	shutdownOnce sync.Once
	shutdownHook func()
	shutdown     bool
}

var _ bridge.Caller = (*FakeJVM)(nil)

// NewFakeJVM creates an empty fake runtime.
func NewFakeJVM() *FakeJVM {
	return &FakeJVM{
		ids:      make(map[any]string),
		objects:  make(map[string]any),
		refs:     make(map[string]int),
		released: make(map[string]int),
		drl:      &fakeEnum{class: classResourceType, name: "DRL"},
	}
}

// AddRule registers a rule evaluated by every session's fireAllRules.
func (j *FakeJVM) AddRule(r Rule) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rules = append(j.rules, r)
}

// OnShutdown registers a hook run once after the shutdown RPC is answered.
func (j *FakeJVM) OnShutdown(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.shutdownHook = fn
}

// Calls returns every call seen so far as "target.method".
func (j *FakeJVM) Calls() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

// CallCount returns how many recorded calls end with ".method".
func (j *FakeJVM) CallCount(method string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, c := range j.calls {
		if strings.HasSuffix(c, "."+method) {
			n++
		}
	}
	return n
}

// Released returns how many times id was released.
func (j *FakeJVM) Released(id string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.released[id]
}

// Disposed returns how many session dispose calls were served.
func (j *FakeJVM) Disposed() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.disposed
}

// IsShutdown reports whether the shutdown RPC was received.
func (j *FakeJVM) IsShutdown() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.shutdown
}

// Call implements bridge.Caller.
func (j *FakeJVM) Call(ctx context.Context, target bridge.Target, method string, args ...bridge.Value) (bridge.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.calls = append(j.calls, target.String()+"."+method)

	if target.Class != "" {
		return j.callStatic(target.Class, method, args)
	}
	obj, err := j.lookup(target.Ref)
	if err != nil {
		return nil, err
	}
	inv, ok := obj.(invoker)
	if !ok {
		return nil, noSuchMethod(javaClassOf(obj), method)
	}
	return inv.invoke(j, method, args)
}

// Field implements bridge.Caller.
func (j *FakeJVM) Field(ctx context.Context, target bridge.Target, name string) (bridge.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if target.Class != "" {
		if target.Class == classResourceType && name == "DRL" {
			return j.ref(j.drl), nil
		}
		return nil, noSuchField(target.Class, name)
	}
	obj, err := j.lookup(target.Ref)
	if err != nil {
		return nil, err
	}
	inst, ok := obj.(*Instance)
	if !ok || !inst.typ.hasField(name) {
		return nil, noSuchField(javaClassOf(obj), name)
	}
	return j.export(inst.Get(name)), nil
}

// SetField implements bridge.Caller.
func (j *FakeJVM) SetField(ctx context.Context, target bridge.Target, name string, value bridge.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if target.Class != "" {
		return noSuchField(target.Class, name)
	}
	obj, err := j.lookup(target.Ref)
	if err != nil {
		return err
	}
	inst, ok := obj.(*Instance)
	if !ok || !inst.typ.hasField(name) {
		return noSuchField(javaClassOf(obj), name)
	}
	inst.Set(name, value)
	return nil
}

// Release implements bridge.Caller.
func (j *FakeJVM) Release(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.objects[id]; !ok {
		return unknownObject(id)
	}
	j.released[id]++
	j.refs[id]--
	return nil
}

// Shutdown marks the fake as shut down and runs the OnShutdown hook once.
func (j *FakeJVM) Shutdown() {
	j.mu.Lock()
	j.shutdown = true
	hook := j.shutdownHook
	j.mu.Unlock()

	if hook != nil {
		j.shutdownOnce.Do(hook)
	}
}

func (j *FakeJVM) callStatic(class, method string, args []bridge.Value) (bridge.Value, error) {
	switch {
	case class == classKnowledgeBuilderFactory && method == "newKnowledgeBuilder":
		return j.ref(&fakeBuilder{}), nil
	case class == classResourceFactory && method == "newByteArrayResource":
		if len(args) != 1 {
			return nil, illegalArgument("newByteArrayResource expects one argument")
		}
		content, ok := args[0].(bridge.Bytes)
		if !ok {
			return nil, illegalArgument(fmt.Sprintf("newByteArrayResource expects byte[], got %T", args[0]))
		}
		return j.ref(&fakeResource{content: append([]byte(nil), content...)}), nil
	case class == classKnowledgeBaseFactory && method == "newKnowledgeBase":
		return j.ref(&fakeBase{types: make(map[string]*fakeFactType)}), nil
	case class == classHashMap && method == bridge.ConstructorMethod:
		return j.ref(&fakeMap{entries: make(map[string]bridge.Value)}), nil
	default:
		return nil, noSuchMethod(class, method)
	}
}

// ref exports obj, reusing its id if it was exported before. Caller holds mu.
func (j *FakeJVM) ref(obj any) bridge.Ref {
	id, ok := j.ids[obj]
	if !ok {
		j.next++
		id = fmt.Sprintf("o%d", j.next)
		j.ids[obj] = id
		j.objects[id] = obj
	}
	j.refs[id]++
	return bridge.Ref{ID: id, Class: javaClassOf(obj)}
}

// export turns a stored value into a wire value, counting refs handed out.
func (j *FakeJVM) export(v bridge.Value) bridge.Value {
	if r, ok := v.(bridge.Ref); ok {
		if obj, exists := j.objects[r.ID]; exists {
			return j.ref(obj)
		}
	}
	if v == nil {
		return bridge.Null{}
	}
	return v
}

func (j *FakeJVM) lookup(id string) (any, error) {
	obj, ok := j.objects[id]
	if !ok {
		return nil, unknownObject(id)
	}
	return obj, nil
}

func (j *FakeJVM) resolve(v bridge.Value) (any, error) {
	if r, ok := v.(bridge.Ref); ok {
		return j.lookup(r.ID)
	}
	return v, nil
}

// invoker is implemented by fake objects that answer method calls.
type invoker interface {
	invoke(j *FakeJVM, method string, args []bridge.Value) (bridge.Value, error)
}

// classNamer is implemented by fake objects that report a Java class.
type classNamer interface {
	javaClass() string
}

func javaClassOf(obj any) string {
	if c, ok := obj.(classNamer); ok {
		return c.javaClass()
	}
	return "java.lang.Object"
}

// WorkingMemory is the view of a session handed to rules.
type WorkingMemory struct {
	jvm   *FakeJVM
	facts []any
}

// Facts returns inserted fact instances of the given simple type name, in
// insertion order. An empty name returns all instances.
func (wm *WorkingMemory) Facts(typeName string) []*Instance {
	var out []*Instance
	for _, f := range wm.facts {
		inst, ok := f.(*Instance)
		if !ok {
			continue
		}
		if typeName == "" || inst.typ.name == typeName {
			out = append(out, inst)
		}
	}
	return out
}

// Ref returns a reference to inst suitable for storing in another fact.
func (wm *WorkingMemory) Ref(inst *Instance) bridge.Ref {
	id, ok := wm.jvm.ids[inst]
	if !ok {
		return wm.jvm.ref(inst)
	}
	return bridge.Ref{ID: id, Class: inst.javaClass()}
}

// Deref resolves a stored reference back to an instance.
func (wm *WorkingMemory) Deref(v bridge.Value) *Instance {
	r, ok := v.(bridge.Ref)
	if !ok {
		return nil
	}
	inst, _ := wm.jvm.objects[r.ID].(*Instance)
	return inst
}

// Instance is an instance of a declared fact type.
type Instance struct {
	typ    *fakeFactType
	values map[string]bridge.Value
}

// TypeName returns the simple name of the instance's type.
func (i *Instance) TypeName() string {
	return i.typ.name
}

// Get returns a field value, or Null when unset.
func (i *Instance) Get(field string) bridge.Value {
	if v, ok := i.values[field]; ok {
		return v
	}
	return bridge.Null{}
}

// Set stores a field value.
func (i *Instance) Set(field string, v bridge.Value) {
	i.values[field] = v
}

func (i *Instance) javaClass() string {
	return i.typ.qualifiedName()
}

func (i *Instance) invoke(j *FakeJVM, method string, args []bridge.Value) (bridge.Value, error) {
	switch {
	case method == "toString":
		return bridge.String(i.String()), nil
	case method == "hashCode":
		id := j.ids[i]
		return bridge.Int(len(id)), nil
	case method == "equals" && len(args) == 1:
		other, _ := j.resolve(args[0])
		return bridge.Bool(other == any(i)), nil
	case method == "getClass":
		return j.ref(i.typ.classObject()), nil
	case strings.HasPrefix(method, "get") && len(args) == 0:
		field := beanField(method[3:])
		if !i.typ.hasField(field) {
			break
		}
		return j.export(i.Get(field)), nil
	case strings.HasPrefix(method, "set") && len(args) == 1:
		field := beanField(method[3:])
		if !i.typ.hasField(field) {
			break
		}
		i.Set(field, args[0])
		return bridge.Null{}, nil
	}
	return nil, noSuchMethod(i.javaClass(), method)
}

// String renders the instance the way Drools-generated toString does.
func (i *Instance) String() string {
	parts := make([]string, 0, len(i.typ.fields))
	for _, f := range i.typ.fields {
		parts = append(parts, fmt.Sprintf("%s=%v", f, i.Get(f)))
	}
	return i.typ.name + "( " + strings.Join(parts, ", ") + " )"
}

func beanField(suffix string) string {
	if suffix == "" {
		return ""
	}
	r := []rune(suffix)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

type fakeBuilder struct {
	types  []*fakeFactType
	errors []*fakeBuildError
}

func (b *fakeBuilder) javaClass() string {
	return "org.drools.compiler.builder.impl.KnowledgeBuilderImpl"
}

func (b *fakeBuilder) invoke(j *FakeJVM, method string, args []bridge.Value) (bridge.Value, error) {
	switch method {
	case "add":
		if len(args) != 2 {
			return nil, illegalArgument("add expects (Resource, ResourceType)")
		}
		res, err := j.resolve(args[0])
		if err != nil {
			return nil, err
		}
		resource, ok := res.(*fakeResource)
		if !ok {
			return nil, illegalArgument("add expects a Resource")
		}
		typ, err := j.resolve(args[1])
		if err != nil {
			return nil, err
		}
		if typ != any(j.drl) {
			return nil, illegalArgument("only DRL resources are supported")
		}
		decls, errs := parseDRL(string(resource.content))
		for _, d := range decls {
			b.types = append(b.types, &fakeFactType{pkg: d.pkg, name: d.name, fields: d.fields})
		}
		for _, e := range errs {
			b.errors = append(b.errors, &fakeBuildError{msg: e})
		}
		return bridge.Null{}, nil
	case "hasErrors":
		return bridge.Bool(len(b.errors) > 0), nil
	case "getErrors":
		items := make([]any, len(b.errors))
		for i, e := range b.errors {
			items[i] = e
		}
		return j.ref(&fakeCollection{items: items}), nil
	case "getKnowledgePackages":
		items := make([]any, len(b.types))
		for i, t := range b.types {
			items[i] = t
		}
		return j.ref(&fakeCollection{items: items}), nil
	}
	return nil, noSuchMethod(b.javaClass(), method)
}

type fakeBuildError struct {
	msg string
}

func (e *fakeBuildError) javaClass() string {
	return "org.drools.compiler.compiler.DroolsError"
}

func (e *fakeBuildError) invoke(j *FakeJVM, method string, args []bridge.Value) (bridge.Value, error) {
	if method == "toString" || method == "getMessage" {
		return bridge.String(e.msg), nil
	}
	return nil, noSuchMethod(e.javaClass(), method)
}

type fakeResource struct {
	content []byte
}

func (r *fakeResource) javaClass() string {
	return "org.drools.core.io.impl.ByteArrayResource"
}

type fakeEnum struct {
	class string
	name  string
}

func (e *fakeEnum) javaClass() string {
	return e.class
}

type fakeCollection struct {
	items []any
}

func (c *fakeCollection) javaClass() string {
	return "java.util.ArrayList"
}

func (c *fakeCollection) invoke(j *FakeJVM, method string, args []bridge.Value) (bridge.Value, error) {
	switch method {
	case "toArray":
		out := make(bridge.List, len(c.items))
		for i, item := range c.items {
			out[i] = j.ref(item)
		}
		return out, nil
	case "size":
		return bridge.Int(len(c.items)), nil
	}
	return nil, noSuchMethod(c.javaClass(), method)
}

type fakeMap struct {
	entries map[string]bridge.Value
}

func (m *fakeMap) javaClass() string {
	return classHashMap
}

func (m *fakeMap) invoke(j *FakeJVM, method string, args []bridge.Value) (bridge.Value, error) {
	switch method {
	case "put":
		if len(args) != 2 {
			return nil, illegalArgument("put expects (key, value)")
		}
		key, ok := bridge.AsString(args[0])
		if !ok {
			return nil, illegalArgument("fake map keys must be strings")
		}
		prev, had := m.entries[key]
		m.entries[key] = args[1]
		if !had {
			return bridge.Null{}, nil
		}
		return j.export(prev), nil
	case "get":
		if len(args) != 1 {
			return nil, illegalArgument("get expects (key)")
		}
		key, _ := bridge.AsString(args[0])
		return j.export(m.entries[key]), nil
	case "size":
		return bridge.Int(len(m.entries)), nil
	}
	return nil, noSuchMethod(m.javaClass(), method)
}

type fakeBase struct {
	types map[string]*fakeFactType
}

func (kb *fakeBase) javaClass() string {
	return "org.drools.kiesession.rulebase.SessionsAwareKnowledgeBase"
}

func (kb *fakeBase) invoke(j *FakeJVM, method string, args []bridge.Value) (bridge.Value, error) {
	switch method {
	case "addPackages":
		if len(args) != 1 {
			return nil, illegalArgument("addPackages expects a collection")
		}
		obj, err := j.resolve(args[0])
		if err != nil {
			return nil, err
		}
		coll, ok := obj.(*fakeCollection)
		if !ok {
			return nil, illegalArgument("addPackages expects a collection")
		}
		for _, item := range coll.items {
			if t, ok := item.(*fakeFactType); ok {
				kb.types[t.qualifiedName()] = t
			}
		}
		return bridge.Null{}, nil
	case "getFactType":
		if len(args) != 2 {
			return nil, illegalArgument("getFactType expects (package, name)")
		}
		pkg, _ := bridge.AsString(args[0])
		name, _ := bridge.AsString(args[1])
		t, ok := kb.types[pkg+"."+name]
		if !ok {
			return bridge.Null{}, nil
		}
		return j.ref(t), nil
	case "newKieSession":
		return j.ref(&fakeSession{}), nil
	}
	return nil, noSuchMethod(kb.javaClass(), method)
}

type fakeFactType struct {
	pkg    string
	name   string
	fields []string
	class  *fakeClass
	field  map[string]*fakeFactField
}

func (t *fakeFactType) javaClass() string {
	return "org.drools.core.factmodel.FactTypeImpl"
}

func (t *fakeFactType) qualifiedName() string {
	return t.pkg + "." + t.name
}

func (t *fakeFactType) hasField(name string) bool {
	for _, f := range t.fields {
		if f == name {
			return true
		}
	}
	return false
}

func (t *fakeFactType) classObject() *fakeClass {
	if t.class == nil {
		t.class = &fakeClass{name: t.qualifiedName()}
	}
	return t.class
}

func (t *fakeFactType) fieldObject(name string) *fakeFactField {
	if t.field == nil {
		t.field = make(map[string]*fakeFactField)
	}
	f, ok := t.field[name]
	if !ok {
		f = &fakeFactField{name: name}
		t.field[name] = f
	}
	return f
}

func (t *fakeFactType) instance(j *FakeJVM, v bridge.Value) (*Instance, error) {
	obj, err := j.resolve(v)
	if err != nil {
		return nil, err
	}
	inst, ok := obj.(*Instance)
	if !ok || inst.typ != t {
		return nil, illegalArgument(fmt.Sprintf("object is not an instance of %s", t.qualifiedName()))
	}
	return inst, nil
}

func (t *fakeFactType) invoke(j *FakeJVM, method string, args []bridge.Value) (bridge.Value, error) {
	switch method {
	case "getName":
		return bridge.String(t.qualifiedName()), nil
	case "getSimpleName":
		return bridge.String(t.name), nil
	case "getPackageName":
		return bridge.String(t.pkg), nil
	case "getFields":
		out := make(bridge.List, len(t.fields))
		for i, f := range t.fields {
			out[i] = j.ref(t.fieldObject(f))
		}
		return out, nil
	case "newInstance":
		return j.ref(&Instance{typ: t, values: make(map[string]bridge.Value)}), nil
	case "setFromMap":
		if len(args) != 2 {
			return nil, illegalArgument("setFromMap expects (Object, Map)")
		}
		inst, err := t.instance(j, args[0])
		if err != nil {
			return nil, err
		}
		values, ok := args[1].(bridge.Map)
		if !ok {
			return nil, illegalArgument("setFromMap expects a map")
		}
		for k, v := range values {
			if !t.hasField(k) {
				return nil, nullPointer(fmt.Sprintf("no field %s on %s", k, t.qualifiedName()))
			}
			inst.Set(k, v)
		}
		return bridge.Null{}, nil
	case "get":
		if len(args) != 2 {
			return nil, illegalArgument("get expects (Object, String)")
		}
		inst, err := t.instance(j, args[0])
		if err != nil {
			return nil, err
		}
		field, _ := bridge.AsString(args[1])
		if !t.hasField(field) {
			return nil, nullPointer(fmt.Sprintf("no field %s on %s", field, t.qualifiedName()))
		}
		return j.export(inst.Get(field)), nil
	case "set":
		if len(args) != 3 {
			return nil, illegalArgument("set expects (Object, String, Object)")
		}
		inst, err := t.instance(j, args[0])
		if err != nil {
			return nil, err
		}
		field, _ := bridge.AsString(args[1])
		if !t.hasField(field) {
			return nil, nullPointer(fmt.Sprintf("no field %s on %s", field, t.qualifiedName()))
		}
		inst.Set(field, args[2])
		return bridge.Null{}, nil
	}
	return nil, noSuchMethod(t.javaClass(), method)
}

type fakeFactField struct {
	name string
}

func (f *fakeFactField) javaClass() string {
	return "org.drools.core.factmodel.FieldDefinition"
}

func (f *fakeFactField) invoke(j *FakeJVM, method string, args []bridge.Value) (bridge.Value, error) {
	if method == "getName" {
		return bridge.String(f.name), nil
	}
	return nil, noSuchMethod(f.javaClass(), method)
}

type fakeClass struct {
	name string
}

func (c *fakeClass) javaClass() string {
	return "java.lang.Class"
}

func (c *fakeClass) invoke(j *FakeJVM, method string, args []bridge.Value) (bridge.Value, error) {
	switch method {
	case "getName":
		return bridge.String(c.name), nil
	case "getSimpleName":
		return bridge.String(c.name[strings.LastIndex(c.name, ".")+1:]), nil
	}
	return nil, noSuchMethod(c.javaClass(), method)
}

type fakeSession struct {
	facts    []any
	disposed bool
}

func (s *fakeSession) javaClass() string {
	return "org.drools.kiesession.session.StatefulKnowledgeSessionImpl"
}

func (s *fakeSession) invoke(j *FakeJVM, method string, args []bridge.Value) (bridge.Value, error) {
	if s.disposed {
		return nil, &bridge.RemoteError{
			Code:      bridge.CodeJavaException,
			Message:   "Illegal method call. This session was previously disposed.",
			JavaClass: "java.lang.IllegalStateException",
		}
	}
	switch method {
	case "insert":
		if len(args) != 1 {
			return nil, illegalArgument("insert expects one fact")
		}
		obj, err := j.resolve(args[0])
		if err != nil {
			return nil, err
		}
		s.facts = append(s.facts, obj)
		return j.ref(&fakeHandle{fact: obj}), nil
	case "fireAllRules":
		wm := &WorkingMemory{jvm: j, facts: s.facts}
		fired := 0
		for _, r := range j.rules {
			fired += r(wm)
		}
		return bridge.Int(fired), nil
	case "getFactCount":
		return bridge.Int(len(s.facts)), nil
	case "dispose":
		s.disposed = true
		j.disposed++
		return bridge.Null{}, nil
	}
	return nil, noSuchMethod(s.javaClass(), method)
}

type fakeHandle struct {
	fact any
}

func (h *fakeHandle) javaClass() string {
	return "org.drools.core.common.DefaultFactHandle"
}

func noSuchMethod(class, method string) error {
	return &bridge.RemoteError{
		Code:      bridge.CodeJavaException,
		Message:   class + "." + method,
		JavaClass: "java.lang.NoSuchMethodException",
	}
}

func noSuchField(class, field string) error {
	return &bridge.RemoteError{
		Code:      bridge.CodeJavaException,
		Message:   class + "." + field,
		JavaClass: "java.lang.NoSuchFieldException",
	}
}

func illegalArgument(msg string) error {
	return &bridge.RemoteError{
		Code:      bridge.CodeJavaException,
		Message:   msg,
		JavaClass: "java.lang.IllegalArgumentException",
	}
}

func nullPointer(msg string) error {
	return &bridge.RemoteError{
		Code:      bridge.CodeJavaException,
		Message:   msg,
		JavaClass: "java.lang.NullPointerException",
	}
}

func unknownObject(id string) error {
	return &bridge.RemoteError{
		Code:    bridge.CodeUnknownObject,
		Message: "unknown object " + id,
	}
}
