package testutil

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPackage is the package of declarations that omit a package line.
const DefaultPackage = "defaultpkg"

var (
	packageLine = regexp.MustCompile(`^package\s+([\w.]+)\s*;?$`)
	importLine  = regexp.MustCompile(`^import\s+[\w.*]+\s*;?$`)
	declareLine = regexp.MustCompile(`^declare\s+(\w+)$`)
	fieldLine   = regexp.MustCompile(`^(\w+)\s*:\s*([\w.<>, ]+?)\s*;?$`)
	ruleLine    = regexp.MustCompile(`^rule\s+\S`)
)

// declaration is one parsed "declare ... end" block.
type declaration struct {
	pkg    string
	name   string
	fields []string
	types  []string
}

// parseDRL reads the subset of DRL the fake understands: package and import
// lines, type declarations, and rule blocks (whose bodies are skipped).
// Anything else is reported the way a builder reports compilation errors.
func parseDRL(src string) ([]declaration, []string) {
	const (
		top = iota
		inDeclare
		inRule
	)

	var (
		decls   []declaration
		errs    []string
		pkg     = DefaultPackage
		state   = top
		current *declaration
		opened  int
	)

	for i, raw := range strings.Split(src, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}

		switch state {
		case top:
			switch {
			case packageLine.MatchString(line):
				pkg = packageLine.FindStringSubmatch(line)[1]
			case importLine.MatchString(line):
			case declareLine.MatchString(line):
				current = &declaration{pkg: pkg, name: declareLine.FindStringSubmatch(line)[1]}
				state = inDeclare
				opened = lineNo
			case ruleLine.MatchString(line):
				state = inRule
				opened = lineNo
			default:
				errs = append(errs, fmt.Sprintf("[%d,0]: unable to parse %q", lineNo, line))
			}
		case inDeclare:
			switch {
			case line == "end":
				decls = append(decls, *current)
				current = nil
				state = top
			case strings.HasPrefix(line, "@"):
			case fieldLine.MatchString(line):
				m := fieldLine.FindStringSubmatch(line)
				current.fields = append(current.fields, m[1])
				current.types = append(current.types, m[2])
			default:
				errs = append(errs, fmt.Sprintf("[%d,0]: invalid field declaration %q in %s", lineNo, line, current.name))
			}
		case inRule:
			if line == "end" {
				state = top
			}
		}
	}

	switch state {
	case inDeclare:
		errs = append(errs, fmt.Sprintf("[%d,0]: declaration %s is missing 'end'", opened, current.name))
	case inRule:
		errs = append(errs, fmt.Sprintf("[%d,0]: rule is missing 'end'", opened))
	}

	return decls, errs
}
