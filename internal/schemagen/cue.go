package schemagen

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed model.cue
var modelSchema string

// Model is a schema description loaded from a CUE file.
type Model struct {
	Package string
	Imports []string
	Classes []Class
}

// Builder returns a Builder holding the model's package, imports and classes.
func (m *Model) Builder() (*Builder, error) {
	b := NewBuilder(m.Package)
	for _, imp := range m.Imports {
		b.AddImport(imp)
	}
	for _, c := range m.Classes {
		if err := b.AddClass(c); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// LoadModel reads a CUE model file:
//
//	package_name: "foo.model"
//	classes: Lecture: {
//		name: type: "varchar"
//		students: {one_to_many: "Student", ignore: true}
//	}
//	classes: Student: {
//		name:    type: "varchar"
//		lecture: many_to_one: "Lecture"
//	}
//
// Classes and attributes keep their declaration order.
func LoadModel(path string) (*Model, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return ParseModel(path, src)
}

// ParseModel parses CUE model source; filename is used in error positions.
func ParseModel(filename string, src []byte) (*Model, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(modelSchema, cue.Filename("model.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile model schema: %w", err)
	}

	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", filename, err)
	}

	v := schema.LookupPath(cue.ParsePath("#Model")).Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate %s: %w", filename, err)
	}

	pkg, err := v.LookupPath(cue.ParsePath("package_name")).String()
	if err != nil {
		return nil, fmt.Errorf("package_name: %w", err)
	}
	m := &Model{Package: pkg}

	if importsVal := v.LookupPath(cue.ParsePath("imports")); importsVal.Exists() {
		if err := importsVal.Decode(&m.Imports); err != nil {
			return nil, fmt.Errorf("imports: %w", err)
		}
	}

	classIter, err := v.LookupPath(cue.ParsePath("classes")).Fields()
	if err != nil {
		return nil, fmt.Errorf("classes: %w", err)
	}
	for classIter.Next() {
		c := Class{Name: classIter.Label()}
		attrIter, err := classIter.Value().Fields()
		if err != nil {
			return nil, fmt.Errorf("classes.%s: %w", c.Name, err)
		}
		for attrIter.Next() {
			a, err := parseAttribute(attrIter.Label(), attrIter.Value())
			if err != nil {
				return nil, fmt.Errorf("classes.%s.%s: %w", c.Name, attrIter.Label(), err)
			}
			c.Attributes = append(c.Attributes, a)
		}
		m.Classes = append(m.Classes, c)
	}

	return m, nil
}

func parseAttribute(name string, v cue.Value) (Attribute, error) {
	a := Attribute{Name: name}

	str := func(field string) (string, bool, error) {
		fv := v.LookupPath(cue.ParsePath(field))
		if !fv.Exists() {
			return "", false, nil
		}
		s, err := fv.String()
		return s, true, err
	}
	flag := func(field string) (bool, error) {
		fv := v.LookupPath(cue.ParsePath(field))
		if !fv.Exists() {
			return false, nil
		}
		return fv.Bool()
	}

	var err error
	if a.Type, _, err = str("type"); err != nil {
		return a, err
	}
	if a.Ignore, err = flag("ignore"); err != nil {
		return a, err
	}
	if a.Composite, err = flag("composite"); err != nil {
		return a, err
	}

	target, manyToOne, err := str("many_to_one")
	if err != nil {
		return a, err
	}
	if manyToOne {
		a.Relation, a.Target = ManyToOne, target
	}

	target, oneToMany, err := str("one_to_many")
	if err != nil {
		return a, err
	}
	if oneToMany {
		if manyToOne {
			return a, fmt.Errorf("many_to_one and one_to_many are exclusive")
		}
		a.Relation, a.Target = OneToMany, target
	}

	coll, _, err := str("collection")
	if err != nil {
		return a, err
	}
	switch coll {
	case "", "list":
		a.Collection = ListCollection
	case "set":
		a.Collection = SetCollection
	default:
		a.Collection = OtherCollection
	}

	if a.Type == "" && a.Relation == NoRelation && !a.Composite && !a.Ignore {
		return a, fmt.Errorf("needs type, many_to_one or one_to_many")
	}
	return a, nil
}
