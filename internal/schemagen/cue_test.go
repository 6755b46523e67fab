package schemagen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lectureModel = `
package_name: "foo.model"
imports: ["java.util.Date"]

classes: Lecture: {
	name: type: "varchar"
	students: {one_to_many: "Student", ignore: true}
}

classes: Student: {
	name:     type: "varchar"
	lecture:  many_to_one: "Lecture"
	enrolled: type: "datetime"
	badge:    type: "blob"
}
`

func writeModel(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadModel_Golden(t *testing.T) {
	m, err := LoadModel(writeModel(t, lectureModel))
	require.NoError(t, err)
	assert.Equal(t, "foo.model", m.Package)
	require.Len(t, m.Classes, 2)
	assert.Equal(t, "Lecture", m.Classes[0].Name)

	students, ok := m.Classes[0].Attribute("students")
	require.True(t, ok)
	assert.True(t, students.Ignore)
	assert.Equal(t, OneToMany, students.Relation)

	b, err := m.Builder()
	require.NoError(t, err)
	out, err := b.Build()
	require.NoError(t, err)
	newGoldie(t).Assert(t, "cue_model", []byte(out))
}

func TestLoadModel_SetCollection(t *testing.T) {
	m, err := ParseModel("inline.cue", []byte(`
package_name: "p"
classes: Team: members: {one_to_many: "Person", collection: "set"}
`))
	require.NoError(t, err)

	b, err := m.Builder()
	require.NoError(t, err)
	out, err := b.Build()
	require.NoError(t, err)
	assert.Contains(t, out, "members : java.util.Set<Person>")
}

func TestLoadModel_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", `package_name: "p`, "compile"},
		{"missing package", `classes: {}`, "validate"},
		{"unknown attribute key", `
package_name: "p"
classes: A: x: {kind: "varchar"}
`, "validate"},
		{"bad collection", `
package_name: "p"
classes: A: x: {one_to_many: "B", collection: "bag"}
`, "validate"},
		{"no type", `
package_name: "p"
classes: A: x: {}
`, "needs type"},
		{"two relations", `
package_name: "p"
classes: A: x: {many_to_one: "B", one_to_many: "C"}
`, "exclusive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModel("bad.cue", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadModel_MissingFile(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "nope.cue"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
