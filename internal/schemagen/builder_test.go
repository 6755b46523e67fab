package schemagen

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func lectureClasses() (Class, Class) {
	lecture := Class{Name: "Lecture", Attributes: []Attribute{
		{Name: "name", Type: "String"},
		{Name: "students", Relation: OneToMany, Target: "Student", Ignore: true},
	}}
	student := Class{Name: "Student", Attributes: []Attribute{
		{Name: "name", Type: "String"},
		{Name: "lecture_name", Type: "String"},
		{Name: "lecture", Relation: ManyToOne, Target: "Lecture"},
	}}
	return lecture, student
}

func TestBuilder_LectureStudent(t *testing.T) {
	lecture, student := lectureClasses()

	b := NewBuilder("foo.model")
	require.NoError(t, b.AddClass(lecture))
	require.NoError(t, b.AddClass(student))

	out, err := b.Build()
	require.NoError(t, err)
	newGoldie(t).Assert(t, "lecture_student", []byte(out))
}

func TestBuilder_AllTypes(t *testing.T) {
	c := Class{Name: "Everything", Attributes: []Attribute{
		{Name: "title", Type: "VARCHAR(255)"},
		{Name: "body", Type: "text"},
		{Name: "code", Type: "nchar"},
		{Name: "views", Type: "BIGINT"},
		{Name: "rank", Type: "integer"},
		{Name: "active", Type: "Boolean"},
		{Name: "born", Type: "date"},
		{Name: "seen", Type: "timestamp"},
		{Name: "opens", Type: "time"},
		{Name: "price", Type: "DECIMAL(10, 2)"},
		{Name: "ratio", Type: "float"},
		{Name: "score", Type: "real"},
		{Name: "avatar", Type: "blob"},
		{Name: "flags", Type: "ARRAY"},
		{Name: "mood", Type: "enum"},
		{Name: "owner", Relation: ManyToOne, Target: "Person"},
		{Name: "tags", Relation: OneToMany, Target: "Tag"},
		{Name: "groups", Relation: OneToMany, Target: "Group", Collection: SetCollection},
	}}

	b := NewBuilder("com.example.types")
	b.AddImport("java.util.Date")
	b.AddImport("java.math.BigDecimal")
	require.NoError(t, b.AddClass(c))

	out, err := b.Build()
	require.NoError(t, err)
	newGoldie(t).Assert(t, "all_types", []byte(out))
}

func TestBuilder_EmptyPackage(t *testing.T) {
	out, err := NewBuilder("empty").Build()
	require.NoError(t, err)
	assert.Equal(t, "package empty;\n", out)
}

func TestBuilder_IgnoreList(t *testing.T) {
	_, student := lectureClasses()

	b := NewBuilder("foo.model")
	require.NoError(t, b.AddClass(student, "lecture_name"))

	out, err := b.Build()
	require.NoError(t, err)
	assert.Contains(t, out, "    lecture : Lecture\n")
	assert.NotContains(t, out, "lecture_name")
}

func TestBuilder_UnmappableField(t *testing.T) {
	tests := []struct {
		name string
		attr Attribute
		typ  string
	}{
		{"unknown column type", Attribute{Name: "shape", Type: "geometry"}, "geometry"},
		{"empty column type", Attribute{Name: "shape"}, ""},
		{"composite", Attribute{Name: "pos", Type: "integer", Composite: true}, "integer"},
		{"other collection", Attribute{Name: "kids", Relation: OneToMany, Target: "Kid", Collection: OtherCollection}, ""},
		{"relation without target", Attribute{Name: "parent", Relation: ManyToOne}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("p")
			require.NoError(t, b.AddClass(Class{Name: "Thing", Attributes: []Attribute{tt.attr}}))

			_, err := b.Build()
			require.Error(t, err)

			var ufe *UnmappableFieldError
			require.ErrorAs(t, err, &ufe)
			assert.Equal(t, "Thing", ufe.Class)
			assert.Equal(t, tt.attr.Name, ufe.Field)
			assert.Equal(t, tt.typ, ufe.Type)
			assert.True(t, IsUnmappableFieldError(err))
		})
	}
}

func TestBuilder_UnmappableFieldCanBeIgnored(t *testing.T) {
	c := Class{Name: "Thing", Attributes: []Attribute{
		{Name: "id", Type: "integer"},
		{Name: "shape", Type: "geometry"},
		{Name: "pos", Composite: true, Ignore: true},
	}}

	b := NewBuilder("p")
	require.NoError(t, b.AddClass(c, "shape"))

	out, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "package p;\n\ndeclare Thing\n    id : Integer\nend\n", out)
}

func TestBuilder_RejectsEmptyClassName(t *testing.T) {
	assert.ErrorIs(t, NewBuilder("p").AddClass(Class{Name: "  "}), ErrEmptyClassName)
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, "varchar", NormalizeType("VARCHAR(255)"))
	assert.Equal(t, "decimal", NormalizeType(" Decimal (10,2) "))
	assert.Equal(t, "integer", NormalizeType("INTEGER"))
}
