package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDRL_Declarations(t *testing.T) {
	src := `package foo.model;

import java.util.List;

declare Lecture
    name : String
end

// a comment
declare Student
    @role(fact)
    name : String
    lecture : Lecture
    grades : java.util.List<Integer>;
end

rule "pass"
when
    $s : Student()
then
    System.out.println($s);
end
`
	decls, errs := parseDRL(src)
	require.Empty(t, errs)
	require.Len(t, decls, 2)

	assert.Equal(t, "foo.model", decls[0].pkg)
	assert.Equal(t, "Lecture", decls[0].name)
	assert.Equal(t, []string{"name"}, decls[0].fields)

	assert.Equal(t, "Student", decls[1].name)
	assert.Equal(t, []string{"name", "lecture", "grades"}, decls[1].fields)
	assert.Equal(t, []string{"String", "Lecture", "java.util.List<Integer>"}, decls[1].types)
}

func TestParseDRL_DefaultPackage(t *testing.T) {
	decls, errs := parseDRL("declare A\n  x : int\nend\n")
	require.Empty(t, errs)
	require.Len(t, decls, 1)
	assert.Equal(t, DefaultPackage, decls[0].pkg)
}

func TestParseDRL_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"garbage", "this is not drl", `[1,0]: unable to parse "this is not drl"`},
		{"bad field", "declare A\n  ???\nend", `[2,0]: invalid field declaration "???" in A`},
		{"unterminated declare", "declare A\n  x : int\n", "[1,0]: declaration A is missing 'end'"},
		{"unterminated rule", "rule \"r\"\nwhen\n", "[1,0]: rule is missing 'end'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := parseDRL(tt.src)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.want, errs[0])
		})
	}
}
