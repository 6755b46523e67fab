package scenario

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// assertGolden compares a result's JSON form with testdata/golden/<name>.golden.
// Regenerate with: go test ./internal/scenario -update
func assertGolden(t *testing.T, name string, result *Result) {
	t.Helper()
	data, err := json.MarshalIndent(result, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, append(data, '\n'))
}

func TestRun_GoldenResults(t *testing.T) {
	tests := []struct {
		name string
		sc   *Scenario
	}{
		{
			name: "enroll_pass",
			sc: &Scenario{
				Name:    "enroll",
				Rules:   lectureDRL,
				Package: "foo.model",
				Facts: []FactStep{
					{ID: "physics", Type: "Lecture", Args: []any{"Physics"}},
					{ID: "alice", Type: "Student", Fields: map[string]any{"name": "Alice"}},
				},
				Fire: true,
				Expect: Expect{
					Fired: ptr(int64(1)),
					Facts: []FieldCheck{{Fact: "alice", Field: "lecture", Ref: "physics"}},
				},
			},
		},
		{
			name: "enroll_fail",
			sc: &Scenario{
				Name:    "enroll",
				Rules:   lectureDRL,
				Package: "foo.model",
				Facts: []FactStep{
					{ID: "alice", Type: "Student", Fields: map[string]any{"name": "Alice"}},
				},
				Fire: true,
				Expect: Expect{
					Fired:     ptr(int64(1)),
					FactCount: ptr(int64(2)),
					Facts: []FieldCheck{
						{Fact: "alice", Field: "name", Equals: "Bob"},
						{Fact: "alice", Field: "lecture", Null: true},
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.sc.validate())
			result, err := Run(context.Background(), openSession(t, tt.sc), tt.sc)
			require.NoError(t, err)
			assertGolden(t, tt.name, result)
		})
	}
}
