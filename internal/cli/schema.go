package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kiebridge/internal/schemagen"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	SQLite            string
	Model             string
	Package           string
	Imports           []string
	Ignore            []string
	Tables            []string
	Reverse           bool
	ReverseCollection string
	Output            string
}

// SchemaResult is the JSON payload of the schema command.
type SchemaResult struct {
	Package string `json:"package"`
	Classes int    `json:"classes"`
	DRL     string `json:"drl,omitempty"`
	Output  string `json:"output,omitempty"`
}

func (r SchemaResult) String() string {
	return fmt.Sprintf("✓ Wrote %d declaration(s) to %s", r.Classes, r.Output)
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Generate DRL fact type declarations",
		Long: `Generate DRL "declare" blocks from a SQLite database schema or a CUE model.

Columns and relations map to rule types; binary, array and enum columns are
dropped. Fields without a rule type must be excluded with --ignore.

Example:
  kiebridge schema --sqlite ./school.db --package school --reverse
  kiebridge schema --model ./model.cue -o rules/types.drl
  kiebridge schema --sqlite ./app.db --package app --ignore Shape.geom`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SQLite, "sqlite", "", "SQLite database to introspect")
	cmd.Flags().StringVar(&opts.Model, "model", "", "CUE model file")
	cmd.Flags().StringVar(&opts.Package, "package", "", "DRL package (overrides the model's package_name)")
	cmd.Flags().StringArrayVar(&opts.Imports, "import", nil, "import statement to add (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Ignore, "ignore", nil, "Class.field to leave out (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Tables, "table", nil, "tables to introspect (default all)")
	cmd.Flags().BoolVar(&opts.Reverse, "reverse", false, "add one-to-many attributes for foreign keys")
	cmd.Flags().StringVar(&opts.ReverseCollection, "reverse-collection", "list", "collection of reverse attributes (list|set)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the declarations to a file instead of stdout")

	return cmd
}

func runSchema(opts *SchemaOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if (opts.SQLite == "") == (opts.Model == "") {
		return f.Fail(ExitCommandError, ErrCodeUsage, "exactly one of --sqlite or --model is required", nil, nil)
	}
	ignore, err := parseIgnore(opts.Ignore)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeUsage, err.Error(), nil, nil)
	}

	var (
		pkg     = opts.Package
		imports []string
		classes []schemagen.Class
	)
	if opts.Model != "" {
		m, err := schemagen.LoadModel(opts.Model)
		if err != nil {
			return sourceFailure(f, opts.Model, err)
		}
		if pkg == "" {
			pkg = m.Package
		}
		imports, classes = m.Imports, m.Classes
	} else {
		if pkg == "" {
			return f.Fail(ExitCommandError, ErrCodeUsage, "--package is required with --sqlite", nil, nil)
		}
		classes, err = introspect(cmd, opts)
		if err != nil {
			return sourceFailure(f, opts.SQLite, err)
		}
	}
	f.VerboseLog("Loaded %d class(es)", len(classes))

	b := schemagen.NewBuilder(pkg)
	for _, imp := range append(imports, opts.Imports...) {
		b.AddImport(imp)
	}
	for _, c := range classes {
		if err := b.AddClass(c, ignore[c.Name]...); err != nil {
			return f.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil, err)
		}
	}

	drl, err := b.Build()
	if err != nil {
		var ufe *schemagen.UnmappableFieldError
		if errors.As(err, &ufe) {
			return f.Fail(ExitFailure, ErrCodeUnmappable, err.Error(), map[string]string{
				"class": ufe.Class,
				"field": ufe.Field,
				"type":  ufe.Type,
				"hint":  "exclude it with --ignore " + ufe.Class + "." + ufe.Field,
			}, err)
		}
		return f.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil, err)
	}

	result := SchemaResult{Package: pkg, Classes: len(classes)}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(drl), 0o644); err != nil {
			return f.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("write %s: %v", opts.Output, err), nil, err)
		}
		result.Output = opts.Output
		return f.Success(result)
	}

	if f.Format == "json" {
		result.DRL = drl
		return f.Success(result)
	}
	_, err = fmt.Fprint(f.Writer, drl)
	return err
}

func introspect(cmd *cobra.Command, opts *SchemaOptions) ([]schemagen.Class, error) {
	if _, err := os.Stat(opts.SQLite); err != nil {
		return nil, err
	}

	var coll schemagen.Collection
	switch opts.ReverseCollection {
	case "list":
		coll = schemagen.ListCollection
	case "set":
		coll = schemagen.SetCollection
	default:
		return nil, fmt.Errorf("invalid --reverse-collection %q: must be list or set", opts.ReverseCollection)
	}

	db, err := schemagen.OpenSQLite(opts.SQLite)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return schemagen.Introspect(cmd.Context(), db, schemagen.IntrospectOptions{
		Tables:            opts.Tables,
		Reverse:           opts.Reverse,
		ReverseCollection: coll,
	})
}

func sourceFailure(f *OutputFormatter, path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, "not found: "+path, nil, err)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil, err)
}

// parseIgnore groups Class.field flags by class.
func parseIgnore(flags []string) (map[string][]string, error) {
	out := make(map[string][]string, len(flags))
	for _, flag := range flags {
		class, field, ok := strings.Cut(flag, ".")
		if !ok || class == "" || field == "" {
			return nil, fmt.Errorf("invalid --ignore %q: want Class.field", flag)
		}
		out[class] = append(out[class], field)
	}
	return out, nil
}
