package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/kiebridge/internal/kie"
)

// CheckResult is the payload of the check command.
type CheckResult struct {
	Valid  bool     `json:"valid"`
	Assets []string `json:"assets"`
	Errors []string `json:"errors,omitempty"`
}

func (r CheckResult) String() string {
	return fmt.Sprintf("✓ %d asset(s) compiled", len(r.Assets))
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <asset>...",
		Short: "Compile rule assets and report errors",
		Long: `Start the rules engine, compile the given DRL files into one knowledge
builder and report the compilation errors, if any.

Exits 1 when the rules do not compile and 2 when the engine cannot be reached.

Example:
  kiebridge check rules/types.drl rules/enroll.drl
  kiebridge check --format json rules/*.drl`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args, cmd)
		},
	}
}

func runCheck(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return sourceFailure(f, p, err)
		}
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	caller, stop, err := opts.connect(ctx, logger)
	if err != nil {
		return connectFailure(f, err)
	}
	defer func() { _ = stop(context.Background()) }()

	b, err := kie.NewBuilder(ctx, caller, kie.WithLogger(logger))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil, err)
	}
	if err := b.AddAll(ctx, kie.Files(paths...)); err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil, err)
	}
	f.VerboseLog("Added %d asset(s)", len(paths))

	errs, err := b.Errors(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil, err)
	}
	if len(errs) > 0 {
		if f.Format != "json" {
			for _, e := range errs {
				fmt.Fprintln(f.Writer, e)
			}
		}
		return f.Fail(ExitFailure, ErrCodeCompile,
			fmt.Sprintf("%d compilation error(s)", len(errs)),
			CheckResult{Assets: paths, Errors: errs}, nil)
	}

	return f.Success(CheckResult{Valid: true, Assets: paths})
}
