package schemagen

// Relation is the kind of association an attribute represents.
type Relation int

const (
	// NoRelation marks a plain column.
	NoRelation Relation = iota

	// ManyToOne references a single instance of Target.
	ManyToOne

	// OneToMany holds a collection of Target instances.
	OneToMany
)

// Collection is the container type of a one-to-many attribute.
type Collection int

const (
	// ListCollection maps to java.util.List.
	ListCollection Collection = iota

	// SetCollection maps to java.util.Set.
	SetCollection

	// OtherCollection has no rule-engine equivalent.
	OtherCollection
)

// Attribute is one mapped property of a Class.
type Attribute struct {
	// Name is the field name emitted in the declaration.
	Name string

	// Type is the column type (e.g. "varchar", "INTEGER", "DECIMAL(10,2)")
	// for plain columns.
	Type string

	// Relation and Target describe associations; Target is the related
	// class name.
	Relation   Relation
	Target     string
	Collection Collection

	// Composite marks a property spanning several columns. Such properties
	// cannot be mapped automatically.
	Composite bool

	// Ignore drops the attribute from the declaration.
	Ignore bool
}

// Class is a mapped entity that becomes one fact type declaration.
type Class struct {
	Name       string
	Attributes []Attribute
}

// Attribute returns the attribute named name, if present.
func (c Class) Attribute(name string) (Attribute, bool) {
	for _, a := range c.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}
