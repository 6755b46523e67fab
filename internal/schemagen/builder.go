package schemagen

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed fact_types.tpl.drl
var factTypesTemplate string

var tpl = template.Must(template.New("fact_types").Parse(factTypesTemplate))

// Builder renders DRL type declarations for a set of classes.
//
// Classes are declared in the order they were added; fields follow each
// class's attribute order.
type Builder struct {
	pkg     string
	imports []string
	classes []entry
}

type entry struct {
	class  Class
	ignore map[string]bool
}

type templateData struct {
	Package string
	Imports []string
	Classes []templateClass
}

type templateClass struct {
	Name   string
	Fields []templateField
}

type templateField struct {
	Name string
	Type string
}

// NewBuilder creates a builder for the named DRL package.
func NewBuilder(pkg string) *Builder {
	return &Builder{pkg: pkg}
}

// Package returns the DRL package name.
func (b *Builder) Package() string {
	return b.pkg
}

// AddImport adds an import statement.
func (b *Builder) AddImport(imp string) {
	b.imports = append(b.imports, imp)
}

// AddClass adds a class. Attributes named in ignore are left out.
func (b *Builder) AddClass(c Class, ignore ...string) error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyClassName
	}
	skip := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		skip[name] = true
	}
	b.classes = append(b.classes, entry{class: c, ignore: skip})
	return nil
}

// Build renders the declarations. It fails with *UnmappableFieldError on
// the first attribute that can be neither mapped nor dropped.
func (b *Builder) Build() (string, error) {
	data := templateData{Package: b.pkg, Imports: b.imports}

	for _, e := range b.classes {
		tc := templateClass{Name: e.class.Name}
		for _, a := range e.class.Attributes {
			if e.ignore[a.Name] {
				continue
			}
			typ, m := mapAttribute(a)
			switch m {
			case dropped:
				continue
			case unmappable:
				return "", &UnmappableFieldError{Class: e.class.Name, Field: a.Name, Type: a.Type}
			}
			tc.Fields = append(tc.Fields, templateField{Name: a.Name, Type: typ})
		}
		data.Classes = append(data.Classes, tc)
	}

	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render declarations: %w", err)
	}
	return sb.String(), nil
}
