package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiebridge/internal/bridge"
	"github.com/roach88/kiebridge/internal/gateway"
	"github.com/roach88/kiebridge/internal/testutil"
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

const brokenDRL = `package foo.model;

declare Broken
    ???
end
`

// fakeEngine connects commands to an in-process fake JVM and records
// whether the command stopped it.
type fakeEngine struct {
	jvm     *testutil.FakeJVM
	stopped bool
	err     error
}

func (e *fakeEngine) connect(ctx context.Context, opts *RootOptions, logger *slog.Logger) (bridge.Caller, StopFunc, error) {
	if e.err != nil {
		return nil, nil, e.err
	}
	return e.jvm, func(context.Context) error {
		e.stopped = true
		return nil
	}, nil
}

func newFakeEngine() *fakeEngine {
	jvm := testutil.NewFakeJVM()
	jvm.AddRule(func(wm *testutil.WorkingMemory) int {
		lectures := wm.Facts("Lecture")
		if len(lectures) == 0 {
			return 0
		}
		fired := 0
		for _, s := range wm.Facts("Student") {
			if bridge.IsNull(s.Get("lecture")) {
				s.Set("lecture", wm.Ref(lectures[0]))
				fired++
			}
		}
		return fired
	})
	return &fakeEngine{jvm: jvm}
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, engine *fakeEngine, args ...string) (string, error) {
	t.Helper()
	opts := &RootOptions{}
	if engine != nil {
		opts.Connector = engine.connect
	}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCheck_Valid(t *testing.T) {
	engine := newFakeEngine()
	path := writeFile(t, t.TempDir(), "lecture.drl", lectureDRL)

	out, err := execute(t, engine, "check", path)
	require.NoError(t, err)
	assert.Equal(t, "✓ 1 asset(s) compiled\n", out)
	assert.True(t, engine.stopped)
}

func TestCheck_CompilationErrors(t *testing.T) {
	engine := newFakeEngine()
	dir := t.TempDir()
	good := writeFile(t, dir, "lecture.drl", lectureDRL)
	bad := writeFile(t, dir, "broken.drl", brokenDRL)

	out, err := execute(t, engine, "check", good, bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `[4,0]: invalid field declaration "???" in Broken`)
	assert.Contains(t, out, "Error [E004]: 1 compilation error(s)")
	assert.True(t, engine.stopped)
}

func TestCheck_CompilationErrorsJSON(t *testing.T) {
	engine := newFakeEngine()
	bad := writeFile(t, t.TempDir(), "broken.drl", brokenDRL)

	out, err := execute(t, engine, "--format", "json", "check", bad)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCompile, resp.Error.Code)
	details, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Len(t, details["errors"], 1)
}

func TestCheck_MissingAsset(t *testing.T) {
	engine := newFakeEngine()

	out, err := execute(t, engine, "check", filepath.Join(t.TempDir(), "missing.drl"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
	assert.False(t, engine.stopped, "no engine is started for missing files")
}

func TestCheck_StartupFailure(t *testing.T) {
	engine := newFakeEngine()
	engine.err = &gateway.StartupError{Reason: "JVM exited before announcing its port", ExitCode: 1}
	path := writeFile(t, t.TempDir(), "lecture.drl", lectureDRL)

	out, err := execute(t, engine, "check", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]: JVM startup failed")
}

func TestCheck_ConfigFailure(t *testing.T) {
	t.Setenv("KIEBRIDGE_LIB_DIR", "")
	t.Chdir(t.TempDir())
	path := writeFile(t, t.TempDir(), "lecture.drl", lectureDRL)

	out, err := execute(t, nil, "check", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]: lib_dir is not set")
}

const enrollScenario = `
name: enroll
assets: [lecture.drl]
package: foo.model
facts:
  - {id: physics, type: Lecture, args: [Physics]}
  - {id: alice, type: Student, fields: {name: Alice}}
fire: true
expect:
  fired: 1
  facts:
    - {fact: alice, field: lecture, ref: physics}
`

func TestRun_Pass(t *testing.T) {
	engine := newFakeEngine()
	dir := t.TempDir()
	writeFile(t, dir, "lecture.drl", lectureDRL)
	path := writeFile(t, dir, "enroll.yaml", enrollScenario)

	out, err := execute(t, engine, "run", path)
	require.NoError(t, err)
	assert.Equal(t, "PASS enroll (fired 1)\n1 passed, 0 failed\n", out)
	assert.True(t, engine.stopped)
	assert.Equal(t, 1, engine.jvm.Disposed())
}

func TestRun_FailJSON(t *testing.T) {
	engine := newFakeEngine()
	dir := t.TempDir()
	writeFile(t, dir, "lecture.drl", lectureDRL)
	pass := writeFile(t, dir, "enroll.yaml", enrollScenario)
	fail := writeFile(t, dir, "wrong.yaml", strings.Replace(
		strings.Replace(enrollScenario, "name: enroll", "name: wrong", 1),
		"fired: 1", "fired: 3", 1))

	out, err := execute(t, engine, "--format", "json", "run", pass, fail)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenario, resp.Error.Code)
	assert.Equal(t, "1 of 2 scenario(s) failed", resp.Error.Message)
	assert.Equal(t, 2, engine.jvm.Disposed())
}

func TestRun_CompilationError(t *testing.T) {
	engine := newFakeEngine()
	dir := t.TempDir()
	writeFile(t, dir, "lecture.drl", brokenDRL)
	path := writeFile(t, dir, "enroll.yaml", enrollScenario)

	out, err := execute(t, engine, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]: scenario enroll: 1 compilation error(s)")
}

func TestRun_InvalidScenario(t *testing.T) {
	engine := newFakeEngine()
	path := writeFile(t, t.TempDir(), "bad.yaml", "name: x\nfacts: []\n")

	out, err := execute(t, engine, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "assets or rules are required")
	assert.False(t, engine.stopped)
}

const schoolSchema = `
CREATE TABLE lecture (name VARCHAR(64) PRIMARY KEY, room INTEGER, photo BLOB);
CREATE TABLE student (name TEXT PRIMARY KEY, lecture_name VARCHAR(64) REFERENCES lecture(name));
`

func createDB(t *testing.T, schema string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "school.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return path
}

func TestSchema_SQLiteGolden(t *testing.T) {
	db := createDB(t, schoolSchema)

	out, err := execute(t, nil, "schema", "--sqlite", db, "--package", "school",
		"--reverse", "--reverse-collection", "set", "--import", "java.util.Set")
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "schema_sqlite", []byte(out))
}

func TestSchema_WritesOutputFile(t *testing.T) {
	db := createDB(t, schoolSchema)
	dest := filepath.Join(t.TempDir(), "types.drl")

	out, err := execute(t, nil, "schema", "--sqlite", db, "--package", "school", "-o", dest)
	require.NoError(t, err)
	assert.Equal(t, "✓ Wrote 2 declaration(s) to "+dest+"\n", out)

	drl, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(drl), "declare Student\n    name : String\n    lecture_name : String\n    lecture : Lecture\nend")
}

func TestSchema_ModelJSON(t *testing.T) {
	model := writeFile(t, t.TempDir(), "model.cue", `
package_name: "foo.model"
classes: Lecture: name: type: "varchar"
`)

	out, err := execute(t, nil, "--format", "json", "schema", "--model", model, "--package", "override")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, "override", data["package"])
	assert.Equal(t, float64(1), data["classes"])
	assert.Equal(t, "package override;\n\ndeclare Lecture\n    name : String\nend\n", data["drl"])
}

func TestSchema_UnmappableField(t *testing.T) {
	db := createDB(t, "CREATE TABLE shape (id INTEGER PRIMARY KEY, geom GEOMETRY);")

	out, err := execute(t, nil, "schema", "--sqlite", db, "--package", "p")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `Error [E008]: cannot map type "GEOMETRY" for field Shape.geom`)

	out, err = execute(t, nil, "schema", "--sqlite", db, "--package", "p", "--ignore", "Shape.geom")
	require.NoError(t, err)
	assert.Equal(t, "package p;\n\ndeclare Shape\n    id : Integer\nend\n", out)
}

func TestSchema_UsageErrors(t *testing.T) {
	db := createDB(t, schoolSchema)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no source", []string{"schema"}, "exactly one of --sqlite or --model"},
		{"two sources", []string{"schema", "--sqlite", db, "--model", "m.cue"}, "exactly one of --sqlite or --model"},
		{"sqlite without package", []string{"schema", "--sqlite", db}, "--package is required"},
		{"bad ignore", []string{"schema", "--sqlite", db, "--package", "p", "--ignore", "nodot"}, `invalid --ignore "nodot"`},
		{"missing database", []string{"schema", "--sqlite", "/nonexistent/x.db", "--package", "p"}, "Error [E005]"},
		{"bad collection", []string{"schema", "--sqlite", db, "--package", "p", "--reverse-collection", "bag"}, "invalid --reverse-collection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, nil, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestConnectFailure_Generic(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	err := connectFailure(f, errors.New("dial refused"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E001]: connect: dial refused")
}
