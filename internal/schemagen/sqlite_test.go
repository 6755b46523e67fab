package schemagen

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schoolSchema = `
CREATE TABLE lecture (name VARCHAR(64) PRIMARY KEY, room INTEGER, photo BLOB);
CREATE TABLE student (name TEXT PRIMARY KEY, lecture_name VARCHAR(64) REFERENCES lecture(name));
CREATE TABLE teacher (id INTEGER PRIMARY KEY, name NVARCHAR(80));
CREATE TABLE course_section (id INTEGER PRIMARY KEY, teacher_id INTEGER REFERENCES teacher(id));
`

// createSchool writes the school schema to a fresh database file.
func createSchool(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "school.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(schoolSchema)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return path
}

func openSchool(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenSQLite(createSchool(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIntrospect_Classes(t *testing.T) {
	classes, err := Introspect(context.Background(), openSchool(t), IntrospectOptions{})
	require.NoError(t, err)
	require.Len(t, classes, 4)

	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Lecture", "Student", "Teacher", "CourseSection"}, names)

	lecture, ok := classes[1].Attribute("lecture")
	require.True(t, ok)
	assert.Equal(t, ManyToOne, lecture.Relation)
	assert.Equal(t, "Lecture", lecture.Target)

	col, ok := classes[1].Attribute("lecture_name")
	require.True(t, ok)
	assert.Equal(t, "VARCHAR(64)", col.Type)

	_, ok = classes[0].Attribute("students")
	assert.False(t, ok, "reverse relations are opt-in")
}

func TestIntrospect_ReverseGolden(t *testing.T) {
	classes, err := Introspect(context.Background(), openSchool(t), IntrospectOptions{Reverse: true})
	require.NoError(t, err)

	b := NewBuilder("school")
	for _, c := range classes {
		require.NoError(t, b.AddClass(c))
	}
	out, err := b.Build()
	require.NoError(t, err)
	newGoldie(t).Assert(t, "sqlite_reverse", []byte(out))
}

func TestIntrospect_TableFilter(t *testing.T) {
	ctx := context.Background()
	db := openSchool(t)

	classes, err := Introspect(ctx, db, IntrospectOptions{Tables: []string{"student", "lecture"}, Reverse: true})
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "Lecture", classes[0].Name)

	students, ok := classes[0].Attribute("students")
	require.True(t, ok)
	assert.Equal(t, "Student", students.Target)

	_, err = Introspect(ctx, db, IntrospectOptions{Tables: []string{"nope"}})
	assert.ErrorContains(t, err, `table "nope" not found`)
}

func TestIntrospect_CompositeForeignKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "composite.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
CREATE TABLE slot (day INTEGER, hour INTEGER, PRIMARY KEY (day, hour));
CREATE TABLE booking (id INTEGER PRIMARY KEY, day INTEGER, hour INTEGER,
	FOREIGN KEY (day, hour) REFERENCES slot(day, hour));
`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	ro, err := OpenSQLite(path)
	require.NoError(t, err)
	defer ro.Close()

	classes, err := Introspect(context.Background(), ro, IntrospectOptions{})
	require.NoError(t, err)

	b := NewBuilder("p")
	require.NoError(t, b.AddClass(classes[1]))
	_, err = b.Build()
	assert.True(t, IsUnmappableFieldError(err))

	b = NewBuilder("p")
	require.NoError(t, b.AddClass(classes[1], "day_hour_slot"))
	_, err = b.Build()
	assert.NoError(t, err)
}

func TestOpenSQLite_MissingFile(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestClassName(t *testing.T) {
	assert.Equal(t, "Lecture", ClassName("lecture"))
	assert.Equal(t, "CourseSection", ClassName("course_section"))
	assert.Equal(t, "OrderLine2", ClassName("order-line 2"))
}

func TestRelationName(t *testing.T) {
	assert.Equal(t, "lecture", relationName("lecture_name", "name", "lecture"))
	assert.Equal(t, "teacher", relationName("teacher_id", "id", "teacher"))
	assert.Equal(t, "mentor", relationName("mentor_id", "name", "person"))
	assert.Equal(t, "person", relationName("owner", "id", "person"))
	assert.Equal(t, "person_ref", relationName("person", "id", "person"))
}
