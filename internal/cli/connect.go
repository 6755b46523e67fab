package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/kiebridge/internal/bridge"
	"github.com/roach88/kiebridge/internal/config"
	"github.com/roach88/kiebridge/internal/gateway"
)

// StopFunc shuts down whatever a Connector started.
type StopFunc func(ctx context.Context) error

// Connector provides the bridge a command talks to.
type Connector func(ctx context.Context, opts *RootOptions, logger *slog.Logger) (bridge.Caller, StopFunc, error)

// configError marks failures to load or validate the configuration.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func (o *RootOptions) connect(ctx context.Context, logger *slog.Logger) (bridge.Caller, StopFunc, error) {
	if o.Connector != nil {
		return o.Connector(ctx, o, logger)
	}
	return startGateway(ctx, o, logger)
}

// startGateway launches the JVM described by the configuration.
func startGateway(ctx context.Context, opts *RootOptions, logger *slog.Logger) (bridge.Caller, StopFunc, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, &configError{err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, &configError{err: err}
	}

	startCtx := ctx
	if cfg.StartupTimeout > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(ctx, cfg.StartupTimeout)
		defer cancel()
	}

	g, err := gateway.Start(startCtx, cfg.Gateway(logger, nil))
	if err != nil {
		return nil, nil, err
	}
	return g.Caller(), g.Stop, nil
}

// connectFailure reports a failed connect through f.
func connectFailure(f *OutputFormatter, err error) error {
	var ce *configError
	switch {
	case gateway.IsStartupError(err):
		return f.Fail(ExitCommandError, ErrCodeStartup, "JVM startup failed", err.Error(), err)
	case errors.As(err, &ce):
		return f.Fail(ExitCommandError, ErrCodeConfig, ce.Error(), nil, err)
	default:
		return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("connect: %v", err), nil, err)
	}
}

// commandContext returns the command's context, cancelled on SIGINT or
// SIGTERM.
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
