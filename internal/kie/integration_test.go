package kie

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiebridge/internal/gateway"
)

// TestIntegration_RealEngine runs against a real JVM. It needs the engine
// and bridge jars in KIEBRIDGE_LIB_DIR.
func TestIntegration_RealEngine(t *testing.T) {
	lib := os.Getenv("KIEBRIDGE_LIB_DIR")
	if lib == "" {
		t.Skip("KIEBRIDGE_LIB_DIR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg := gateway.Config{LibDir: lib, JavaHome: os.Getenv("JAVA_HOME")}
	s, err := FromAssets(ctx, cfg, []Asset{Text(lectureDRL)}, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Close(ctx)) }()
	require.NotNil(t, s.Gateway())

	pkg := s.Package("foo.model")
	lectureType, err := pkg.Type(ctx, "Lecture")
	require.NoError(t, err)
	studentType, err := pkg.Type(ctx, "Student")
	require.NoError(t, err)

	lecture, err := lectureType.New(ctx, []any{"Math"}, nil)
	require.NoError(t, err)
	student, err := studentType.NewNamed(ctx, map[string]any{"name": "Ana"})
	require.NoError(t, err)

	_, err = s.Insert(ctx, lecture)
	require.NoError(t, err)
	_, err = s.Insert(ctx, student)
	require.NoError(t, err)

	_, err = s.FireAllRules(ctx)
	require.NoError(t, err)

	enrolled, err := student.GetFact(ctx, "lecture")
	require.NoError(t, err)
	require.NotNil(t, enrolled)
	assert.True(t, enrolled.Equal(lecture))

	_, err = FromAssets(ctx, cfg, []Asset{Text("rule broken")}, WithLogger(quietLogger()))
	assert.True(t, IsRuleCompilationError(err))
}
