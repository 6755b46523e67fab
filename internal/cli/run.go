package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kiebridge/internal/bridge"
	"github.com/roach88/kiebridge/internal/kie"
	"github.com/roach88/kiebridge/internal/scenario"
)

// RunReport is the payload of the run command.
type RunReport struct {
	Scenarios []*scenario.Result `json:"scenarios"`
	Passed    int                `json:"passed"`
	Failed    int                `json:"failed"`
}

func (r *RunReport) String() string {
	var sb strings.Builder
	for _, res := range r.Scenarios {
		sb.WriteString(res.String())
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "%d passed, %d failed", r.Passed, r.Failed)
	return sb.String()
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run rule scenarios",
		Long: `Start the rules engine once and run each YAML scenario in its own session:
compile the scenario's assets, insert its facts, fire the rules and check
the expected field values.

Example:
  kiebridge run scenarios/enroll.yaml
  kiebridge run --format json scenarios/*.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(rootOpts, args, cmd)
		},
	}
}

func runScenarios(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	scenarios := make([]*scenario.Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := scenario.Load(p)
		if err != nil {
			return sourceFailure(f, p, err)
		}
		scenarios = append(scenarios, sc)
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	caller, stop, err := opts.connect(ctx, logger)
	if err != nil {
		return connectFailure(f, err)
	}
	defer func() { _ = stop(context.Background()) }()

	report := &RunReport{}
	for _, sc := range scenarios {
		f.VerboseLog("Running scenario %s", sc.Name)
		res, err := runOne(ctx, caller, sc, logger)
		if err != nil {
			var rce *kie.RuleCompilationError
			if errors.As(err, &rce) {
				return f.Fail(ExitFailure, ErrCodeCompile,
					fmt.Sprintf("scenario %s: %d compilation error(s)", sc.Name, len(rce.Errors)), rce.Errors, err)
			}
			return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("scenario %s: %v", sc.Name, err), nil, err)
		}
		report.Scenarios = append(report.Scenarios, res)
		if res.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	if report.Failed > 0 {
		if f.Format != "json" {
			fmt.Fprintln(f.Writer, report)
		}
		return f.Fail(ExitFailure, ErrCodeScenario,
			fmt.Sprintf("%d of %d scenario(s) failed", report.Failed, len(report.Scenarios)), report, nil)
	}
	return f.Success(report)
}

func runOne(ctx context.Context, caller bridge.Caller, sc *scenario.Scenario, logger *slog.Logger) (*scenario.Result, error) {
	s, err := kie.Open(ctx, caller, sc.AssetList(), kie.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.Dispose(context.Background()) }()
	return scenario.Run(ctx, s, sc)
}
