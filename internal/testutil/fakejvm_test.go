package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiebridge/internal/bridge"
)

const lectureDRL = `package foo.model;

declare Lecture
    name : String
end

declare Student
    name : String
    lecture : Lecture
end
`

// buildBase drives the fake through the same calls a knowledge builder makes.
func buildBase(t *testing.T, jvm *FakeJVM, drl string) bridge.Object {
	t.Helper()
	ctx := context.Background()

	builder, err := bridge.NewClass(jvm, classKnowledgeBuilderFactory).CallObject(ctx, "newKnowledgeBuilder")
	require.NoError(t, err)
	resource, err := bridge.NewClass(jvm, classResourceFactory).CallObject(ctx, "newByteArrayResource", []byte(drl))
	require.NoError(t, err)
	drlType, err := bridge.NewClass(jvm, classResourceType).Field(ctx, "DRL")
	require.NoError(t, err)

	_, err = builder.Invoke(ctx, "add", resource, drlType)
	require.NoError(t, err)

	hasErrors, err := builder.Invoke(ctx, "hasErrors")
	require.NoError(t, err)
	require.Equal(t, bridge.Bool(false), hasErrors)

	pkgs, err := builder.InvokeObject(ctx, "getKnowledgePackages")
	require.NoError(t, err)
	base, err := bridge.NewClass(jvm, classKnowledgeBaseFactory).CallObject(ctx, "newKnowledgeBase")
	require.NoError(t, err)
	_, err = base.Invoke(ctx, "addPackages", pkgs)
	require.NoError(t, err)
	return base
}

func TestFakeJVM_FactTypeRoundTrip(t *testing.T) {
	ctx := context.Background()
	jvm := NewFakeJVM()
	base := buildBase(t, jvm, lectureDRL)

	ft, err := base.InvokeObject(ctx, "getFactType", "foo.model", "Lecture")
	require.NoError(t, err)

	fields, err := ft.Invoke(ctx, "getFields")
	require.NoError(t, err)
	require.Len(t, fields, 1)

	inst, err := ft.InvokeObject(ctx, "newInstance")
	require.NoError(t, err)
	assert.Equal(t, "foo.model.Lecture", inst.Class())

	_, err = ft.Invoke(ctx, "setFromMap", inst, map[string]any{"name": "Math"})
	require.NoError(t, err)

	got, err := ft.Invoke(ctx, "get", inst, "name")
	require.NoError(t, err)
	assert.Equal(t, bridge.String("Math"), got)

	getter, err := inst.Invoke(ctx, "getName")
	require.NoError(t, err)
	assert.Equal(t, bridge.String("Math"), getter)
}

func TestFakeJVM_UnknownFactTypeIsNull(t *testing.T) {
	jvm := NewFakeJVM()
	base := buildBase(t, jvm, lectureDRL)

	got, err := base.Invoke(context.Background(), "getFactType", "foo.model", "Missing")
	require.NoError(t, err)
	assert.True(t, bridge.IsNull(got))
}

func TestFakeJVM_IdentityMap(t *testing.T) {
	ctx := context.Background()
	jvm := NewFakeJVM()
	base := buildBase(t, jvm, lectureDRL)

	a, err := base.InvokeObject(ctx, "getFactType", "foo.model", "Lecture")
	require.NoError(t, err)
	b, err := base.InvokeObject(ctx, "getFactType", "foo.model", "Lecture")
	require.NoError(t, err)
	assert.Equal(t, a.ID(), b.ID())

	require.NoError(t, a.Release(ctx))
	assert.Equal(t, 1, jvm.Released(a.ID()))
}

func TestFakeJVM_CompileErrors(t *testing.T) {
	ctx := context.Background()
	jvm := NewFakeJVM()

	builder, err := bridge.NewClass(jvm, classKnowledgeBuilderFactory).CallObject(ctx, "newKnowledgeBuilder")
	require.NoError(t, err)
	resource, err := bridge.NewClass(jvm, classResourceFactory).CallObject(ctx, "newByteArrayResource", []byte("nonsense"))
	require.NoError(t, err)
	drlType, err := bridge.NewClass(jvm, classResourceType).Field(ctx, "DRL")
	require.NoError(t, err)
	_, err = builder.Invoke(ctx, "add", resource, drlType)
	require.NoError(t, err)

	hasErrors, err := builder.Invoke(ctx, "hasErrors")
	require.NoError(t, err)
	assert.Equal(t, bridge.Bool(true), hasErrors)

	errs, err := builder.InvokeObject(ctx, "getErrors")
	require.NoError(t, err)
	arr, err := errs.Invoke(ctx, "toArray")
	require.NoError(t, err)
	require.Len(t, arr, 1)

	first, err := bridge.ObjectOf(jvm, arr.(bridge.List)[0])
	require.NoError(t, err)
	msg, err := first.Invoke(ctx, "toString")
	require.NoError(t, err)
	assert.Equal(t, bridge.String(`[1,0]: unable to parse "nonsense"`), msg)
}

func TestFakeJVM_SessionRules(t *testing.T) {
	ctx := context.Background()
	jvm := NewFakeJVM()
	jvm.AddRule(func(wm *WorkingMemory) int {
		fired := 0
		for _, s := range wm.Facts("Student") {
			s.Set("name", bridge.String("seen"))
			fired++
		}
		return fired
	})
	base := buildBase(t, jvm, lectureDRL)

	ft, err := base.InvokeObject(ctx, "getFactType", "foo.model", "Student")
	require.NoError(t, err)
	inst, err := ft.InvokeObject(ctx, "newInstance")
	require.NoError(t, err)

	session, err := base.InvokeObject(ctx, "newKieSession")
	require.NoError(t, err)
	_, err = session.Invoke(ctx, "insert", inst)
	require.NoError(t, err)

	fired, err := session.Invoke(ctx, "fireAllRules")
	require.NoError(t, err)
	assert.Equal(t, bridge.Int(1), fired)

	name, err := inst.Field(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, bridge.String("seen"), name)

	_, err = session.Invoke(ctx, "dispose")
	require.NoError(t, err)
	assert.Equal(t, 1, jvm.Disposed())

	_, err = session.Invoke(ctx, "fireAllRules")
	assert.True(t, bridge.IsJavaException(err, "java.lang.IllegalStateException"))
}

func TestFakeJVM_UnknownStatic(t *testing.T) {
	_, err := NewFakeJVM().Call(context.Background(), bridge.ClassTarget("com.example.Nope"), "go")
	assert.True(t, bridge.IsJavaException(err, "java.lang.NoSuchMethodException"))
}
