package schemagen

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"unicode"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// IntrospectOptions controls how a database schema becomes classes.
type IntrospectOptions struct {
	// Tables restricts introspection to the named tables. Empty means all.
	Tables []string

	// Reverse adds a one-to-many attribute on the referenced class for
	// every foreign key.
	Reverse bool

	// ReverseCollection is the container type of reverse attributes.
	ReverseCollection Collection
}

// OpenSQLite opens a SQLite database read-only.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

type foreignKey struct {
	id    int
	table string
	from  []string
	to    []string
}

// Introspect reads the tables of a SQLite database as classes.
//
// Tables are returned in creation order. Each column becomes an attribute
// typed by its declared column type. Each single-column foreign key also
// becomes a many-to-one attribute named after the column without its
// "_id" or "_<referenced column>" suffix; multi-column keys become
// composite attributes that must be ignored.
func Introspect(ctx context.Context, db *sql.DB, opts IntrospectOptions) ([]Class, error) {
	tables, err := listTables(ctx, db)
	if err != nil {
		return nil, err
	}
	if len(opts.Tables) > 0 {
		for _, want := range opts.Tables {
			if !slices.Contains(tables, want) {
				return nil, fmt.Errorf("table %q not found", want)
			}
		}
		tables = slices.DeleteFunc(tables, func(t string) bool {
			return !slices.Contains(opts.Tables, t)
		})
	}

	classes := make([]Class, 0, len(tables))
	index := make(map[string]int, len(tables))
	fks := make(map[string][]foreignKey, len(tables))

	for _, table := range tables {
		attrs, err := tableColumns(ctx, db, table)
		if err != nil {
			return nil, err
		}
		keys, err := foreignKeys(ctx, db, table)
		if err != nil {
			return nil, err
		}
		for _, fk := range keys {
			attrs = append(attrs, relationAttribute(fk))
		}
		fks[table] = keys
		index[table] = len(classes)
		classes = append(classes, Class{Name: ClassName(table), Attributes: attrs})
	}

	if opts.Reverse {
		for _, table := range tables {
			for _, fk := range fks[table] {
				i, ok := index[fk.table]
				if !ok || len(fk.from) != 1 {
					continue
				}
				classes[i].Attributes = append(classes[i].Attributes, Attribute{
					Name:       pluralize(table),
					Relation:   OneToMany,
					Target:     ClassName(table),
					Collection: opts.ReverseCollection,
				})
			}
		}
	}

	return classes, nil
}

func listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func tableColumns(ctx context.Context, db *sql.DB, table string) ([]Attribute, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	defer rows.Close()

	var attrs []Attribute
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("columns of %s: %w", table, err)
		}
		attrs = append(attrs, Attribute{Name: name, Type: typ})
	}
	return attrs, rows.Err()
}

func foreignKeys(ctx context.Context, db *sql.DB, table string) ([]foreignKey, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA foreign_key_list("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	byID := make(map[int]*foreignKey)
	for rows.Next() {
		var (
			id, seq                   int
			target, from              string
			to                        sql.NullString
			onUpdate, onDelete, match string
		)
		if err := rows.Scan(&id, &seq, &target, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("foreign keys of %s: %w", table, err)
		}
		fk, ok := byID[id]
		if !ok {
			fk = &foreignKey{id: id, table: target}
			byID[id] = fk
		}
		fk.from = append(fk.from, from)
		fk.to = append(fk.to, to.String)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	keys := make([]foreignKey, 0, len(byID))
	for _, fk := range byID {
		keys = append(keys, *fk)
	}
	slices.SortFunc(keys, func(a, b foreignKey) int { return a.id - b.id })
	return keys, nil
}

func relationAttribute(fk foreignKey) Attribute {
	if len(fk.from) != 1 {
		return Attribute{
			Name:      strings.Join(fk.from, "_") + "_" + fk.table,
			Target:    ClassName(fk.table),
			Composite: true,
		}
	}
	return Attribute{
		Name:     relationName(fk.from[0], fk.to[0], fk.table),
		Relation: ManyToOne,
		Target:   ClassName(fk.table),
	}
}

// relationName derives the attribute name of a many-to-one relation from
// its column: lecture_name -> lecture, teacher_id -> teacher. Columns
// without such a suffix use the referenced table name.
func relationName(column, referenced, table string) string {
	name := table
	for _, suffix := range []string{"_" + referenced, "_id"} {
		if suffix != "_" && strings.HasSuffix(column, suffix) && len(column) > len(suffix) {
			name = strings.TrimSuffix(column, suffix)
			break
		}
	}
	if name == column {
		return name + "_ref"
	}
	return name
}

func pluralize(name string) string {
	if strings.HasSuffix(name, "s") {
		return name + "_list"
	}
	return name + "s"
}

// ClassName converts a table name to a class name: course_section -> CourseSection.
func ClassName(table string) string {
	parts := strings.FieldsFunc(table, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	title := cases.Title(language.Und)
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(title.String(p))
	}
	return sb.String()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
