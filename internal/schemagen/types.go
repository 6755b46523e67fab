package schemagen

import (
	"regexp"
	"strings"
)

// Column types mapped to String.
var stringTypes = map[string]bool{
	"char":       true,
	"clob":       true,
	"nchar":      true,
	"nvarchar":   true,
	"stringtype": true,
	"text":       true,
	"string":     true,
	"unicode":    true,
	"varchar":    true,
}

// Column types dropped from declarations.
var droppedTypes = map[string]bool{
	"blob":      true,
	"binary":    true,
	"array":     true,
	"enum":      true,
	"varbinary": true,
}

var scalarTypes = map[string]string{
	"bigint":     "Long",
	"biginteger": "Long",
	"int":        "Integer",
	"integer":    "Integer",
	"boolean":    "Boolean",
	"date":       "java.util.Date",
	"datetime":   "java.util.Date",
	"timestamp":  "java.util.Date",
	"time":       "java.time.LocalTime",
	"decimal":    "java.math.BigDecimal",
	"float":      "Float",
	"real":       "Double",
}

var sizeSuffix = regexp.MustCompile(`\s*\(.*\)\s*$`)

// NormalizeType lowercases a column type and strips any size or
// precision suffix: "VARCHAR(255)" becomes "varchar".
func NormalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(sizeSuffix.ReplaceAllString(t, "")))
}

// mapping is the outcome of mapping one attribute.
type mapping int

const (
	mapped mapping = iota
	dropped
	unmappable
)

// mapAttribute returns the declared type for a, or reports that the
// attribute is dropped or cannot be mapped.
func mapAttribute(a Attribute) (string, mapping) {
	if a.Ignore {
		return "", dropped
	}
	switch a.Relation {
	case ManyToOne:
		if a.Target == "" {
			return "", unmappable
		}
		return a.Target, mapped
	case OneToMany:
		if a.Target == "" {
			return "", unmappable
		}
		switch a.Collection {
		case ListCollection:
			return "java.util.List<" + a.Target + ">", mapped
		case SetCollection:
			return "java.util.Set<" + a.Target + ">", mapped
		default:
			return "", unmappable
		}
	}
	if a.Composite {
		return "", unmappable
	}
	return mapColumn(a.Type)
}

func mapColumn(columnType string) (string, mapping) {
	t := NormalizeType(columnType)
	switch {
	case stringTypes[t]:
		return "String", mapped
	case scalarTypes[t] != "":
		return scalarTypes[t], mapped
	case droppedTypes[t]:
		return "", dropped
	default:
		return "", unmappable
	}
}
