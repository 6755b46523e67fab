package scenario

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/roach88/kiebridge/internal/bridge"
	"github.com/roach88/kiebridge/internal/kie"
)

// Result is the outcome of running a scenario.
type Result struct {
	Name string `json:"name"`

	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	// Fired is the number of rule firings, zero when the scenario does
	// not fire.
	Fired int64 `json:"fired"`

	// Failures describes each expectation that did not hold.
	Failures []string `json:"failures,omitempty"`
}

func (r *Result) fail(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
	r.Pass = false
}

// String renders the result for text output.
func (r *Result) String() string {
	var sb strings.Builder
	status := "PASS"
	if !r.Pass {
		status = "FAIL"
	}
	fmt.Fprintf(&sb, "%s %s (fired %d)", status, r.Name, r.Fired)
	for _, f := range r.Failures {
		fmt.Fprintf(&sb, "\n  - %s", f)
	}
	return sb.String()
}

// Run executes sc against a session compiled from sc.AssetList().
//
// Unmet expectations are reported in the Result. Errors are returned for
// problems that stop the scenario: an undeclared fact type, a bad
// constructor argument, or a failing bridge.
func Run(ctx context.Context, s *kie.Session, sc *Scenario) (*Result, error) {
	result := &Result{Name: sc.Name, Pass: true}
	pkg := s.Package(sc.pkg())
	facts := make(map[string]*kie.Fact, len(sc.Facts))

	for i, step := range sc.Facts {
		ft, err := pkg.Type(ctx, step.Type)
		if err != nil {
			return nil, fmt.Errorf("facts[%d]: %w", i, err)
		}

		args := make([]any, len(step.Args))
		for j, a := range step.Args {
			args[j] = resolve(a, facts)
		}
		var fields map[string]any
		if step.Fields != nil {
			fields = make(map[string]any, len(step.Fields))
			for k, v := range step.Fields {
				fields[k] = resolve(v, facts)
			}
		}

		f, err := ft.New(ctx, args, fields)
		if err != nil {
			return nil, fmt.Errorf("facts[%d] %s: %w", i, step.ID, err)
		}
		facts[step.ID] = f

		if step.inserted() {
			if _, err := s.Insert(ctx, f); err != nil {
				return nil, fmt.Errorf("facts[%d] %s: %w", i, step.ID, err)
			}
		}
		slog.Debug("scenario fact created",
			slog.String("scenario", sc.Name),
			slog.String("id", step.ID),
			slog.String("type", ft.QualifiedName()),
			slog.Bool("inserted", step.inserted()),
		)
	}

	if sc.Fire {
		n, err := s.FireAllRules(ctx)
		if err != nil {
			return nil, err
		}
		result.Fired = n
	}

	if err := check(ctx, s, sc, facts, result); err != nil {
		return nil, err
	}
	return result, nil
}

func check(ctx context.Context, s *kie.Session, sc *Scenario, facts map[string]*kie.Fact, result *Result) error {
	exp := sc.Expect

	if exp.Fired != nil && *exp.Fired != result.Fired {
		result.fail("fired: expected %d, got %d", *exp.Fired, result.Fired)
	}

	if exp.FactCount != nil {
		v, err := s.Remote().Invoke(ctx, "getFactCount")
		if err != nil {
			return fmt.Errorf("fact count: %w", err)
		}
		n, ok := bridge.AsInt(v)
		if !ok {
			return fmt.Errorf("fact count: expected int, got %T", v)
		}
		if n != *exp.FactCount {
			result.fail("fact_count: expected %d, got %d", *exp.FactCount, n)
		}
	}

	for _, c := range exp.Facts {
		name := c.Fact + "." + c.Field
		got, err := facts[c.Fact].Get(ctx, c.Field)
		if bridge.IsJavaException(err, "") {
			result.fail("%s: %v", name, err)
			continue
		}
		if err != nil {
			return err
		}

		switch {
		case c.Null:
			if !bridge.IsNull(got) {
				result.fail("%s: expected null, got %s", name, show(got))
			}
		case c.Ref != "":
			want := facts[c.Ref].Ref()
			ref, ok := bridge.AsRef(got)
			if !ok || ref.ID != want.ID {
				result.fail("%s: expected fact %s, got %s", name, c.Ref, show(got))
			}
		default:
			want, err := bridge.ValueOf(c.Equals)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if !valueEqual(got, want) {
				result.fail("%s: expected %s, got %s", name, show(want), show(got))
			}
		}
	}
	return nil
}

// resolve replaces {ref: alias} values with the facts they name.
func resolve(v any, facts map[string]*kie.Fact) any {
	if alias, ok := refAlias(v); ok {
		return facts[alias]
	}
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = resolve(e, facts)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = resolve(e, facts)
		}
		return out
	}
	return v
}

// valueEqual compares bridge values. Ints and floats compare numerically
// and refs compare by id.
func valueEqual(a, b bridge.Value) bool {
	switch x := a.(type) {
	case bridge.Int:
		switch y := b.(type) {
		case bridge.Int:
			return x == y
		case bridge.Float:
			return float64(x) == float64(y)
		}
		return false
	case bridge.Float:
		switch y := b.(type) {
		case bridge.Int:
			return float64(x) == float64(y)
		case bridge.Float:
			return x == y
		}
		return false
	case bridge.Bytes:
		y, ok := b.(bridge.Bytes)
		return ok && bytes.Equal(x, y)
	case bridge.Ref:
		y, ok := b.(bridge.Ref)
		return ok && x.ID == y.ID
	case bridge.List:
		y, ok := b.(bridge.List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valueEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case bridge.Map:
		y, ok := b.(bridge.Map)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !valueEqual(xv, yv) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// show formats a value for failure messages.
func show(v bridge.Value) string {
	switch x := v.(type) {
	case bridge.Null:
		return "null"
	case bridge.String:
		return strconv.Quote(string(x))
	case bridge.Ref:
		return x.Class + "@" + x.ID
	}
	return fmt.Sprintf("%v", v)
}
