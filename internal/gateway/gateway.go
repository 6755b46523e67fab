package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/kiebridge/internal/bridge"
)

// stdoutDrain bounds how long output is read after the JVM has exited.
// Processes the JVM spawned may inherit its stdout and hold it open.
const stdoutDrain = 2 * time.Second

// Gateway is a running JVM plus the bridge connection to it.
//
// Thread-safety model:
//   - Caller(): safe from any goroutine (the bridge client is)
//   - Stop(): safe from any goroutine; only the first call does work
type Gateway struct {
	id      string
	port    int
	proc    *process
	cleanup runtime.Cleanup
}

// process owns everything Stop tears down. It never references the
// Gateway, so the Gateway can be collected while the process is alive.
type process struct {
	cmd    *exec.Cmd
	client *bridge.Client
	grace  time.Duration
	logger *slog.Logger

	exited  chan struct{}
	waitErr error // set before exited is closed

	stopping atomic.Bool
	stopOnce sync.Once
}

// Start launches the JVM, waits for it to announce its port on stdout and
// connects to its bridge.
//
// ctx bounds only the startup; cancelling it later has no effect on the
// running gateway. On any failure the JVM is killed and a *StartupError is
// returned.
func Start(ctx context.Context, cfg Config) (*Gateway, error) {
	cfg = cfg.withDefaults()
	id := uuid.Must(uuid.NewV7()).String()
	logger := cfg.Logger.With(slog.String("gateway", id))

	name, args := cfg.Command()
	cmd := cfg.Launcher(name, args...)
	cmd.Stdin = nil
	cmd.Stderr = cfg.Stderr

	// The read end is ours rather than exec's so it can be closed when a
	// descendant of the JVM keeps the write end open after the JVM exits.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &StartupError{Reason: "stdout pipe", ExitCode: -1, Err: err}
	}
	cmd.Stdout = stdoutW
	cmd.WaitDelay = stdoutDrain

	logger.Info("Starting JVM", slog.String("command", name), slog.Any("args", args))
	err = cmd.Start()
	_ = stdoutW.Close()
	if err != nil {
		_ = stdout.Close()
		return nil, &StartupError{Reason: "launch " + name, ExitCode: -1, Err: err}
	}

	p := &process{
		cmd:    cmd,
		grace:  cfg.ShutdownGrace,
		logger: logger,
		exited: make(chan struct{}),
	}

	announced := make(chan announcement, 1)
	pumped := make(chan struct{})
	go func() {
		pumpStdout(stdout, logger, announced)
		close(pumped)
	}()
	go p.wait(stdout, pumped)

	port, err := p.awaitPort(ctx, announced)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("ws://127.0.0.1:%d%s", port, cfg.BridgePath)
	client, err := bridge.Dial(ctx, url, bridge.WithMetrics(cfg.Metrics), bridge.WithLogger(logger))
	if err != nil {
		p.kill()
		return nil, &StartupError{Reason: "connect to bridge", ExitCode: -1, Err: err}
	}
	p.client = client
	go p.watch()

	g := &Gateway{id: id, port: port, proc: p}
	g.cleanup = runtime.AddCleanup(g, func(p *process) {
		go func() { _ = p.stop(context.Background()) }()
	}, p)

	logger.Info("JVM ready",
		slog.Int("pid", cmd.Process.Pid),
		slog.Int("port", port),
	)
	return g, nil
}

// awaitPort waits for the port announcement, the JVM's exit, or ctx.
func (p *process) awaitPort(ctx context.Context, announced <-chan announcement) (int, error) {
	select {
	case a := <-announced:
		if a.err != nil {
			p.kill()
			return 0, &StartupError{Reason: "bad port announcement", ExitCode: -1, Err: a.err}
		}
		return a.port, nil
	case <-p.exited:
		// The marker may have been the last line before exit.
		select {
		case a := <-announced:
			if a.err == nil {
				return 0, &StartupError{Reason: "JVM exited after announcing its port", ExitCode: exitCode(p.waitErr)}
			}
		default:
		}
		return 0, &StartupError{Reason: "JVM exited before announcing its port", ExitCode: exitCode(p.waitErr), Err: p.waitErr}
	case <-ctx.Done():
		p.kill()
		return 0, &StartupError{Reason: "startup interrupted", ExitCode: -1, Err: ctx.Err()}
	}
}

// wait reaps the JVM, then gives the stdout pump up to stdoutDrain to reach
// end of stream before closing the pipe under it. exited is closed only
// after the pump returns, so a port marker printed just before exit is seen.
func (p *process) wait(stdout *os.File, pumped <-chan struct{}) {
	err := p.cmd.Wait()
	if errors.Is(err, exec.ErrWaitDelay) {
		// The JVM exited cleanly; only its stderr was held open.
		err = nil
	}

	drain := time.NewTimer(stdoutDrain)
	select {
	case <-pumped:
	case <-drain.C:
		p.logger.Warn("JVM stdout still open after exit, closing it", slog.Duration("waited", stdoutDrain))
		_ = stdout.Close()
		<-pumped
	}
	drain.Stop()
	_ = stdout.Close()

	p.waitErr = err
	close(p.exited)
}

// watch ties the lifetimes of the JVM and the connection together: either
// one ending ends the other.
func (p *process) watch() {
	select {
	case <-p.exited:
		if !p.stopping.Load() {
			p.logger.Warn("JVM exited unexpectedly", slog.Int("exit_code", exitCode(p.waitErr)))
		}
		_ = p.client.Close()
	case <-p.client.Done():
		if p.stopping.Load() {
			return
		}
		p.logger.Warn("bridge connection lost, killing JVM", slog.Any("error", p.client.Err()))
		p.kill()
	}
}

// kill terminates the JVM and waits for it.
func (p *process) kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	<-p.exited
}

// stop shuts the JVM down once. Later calls return immediately.
func (p *process) stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.stopping.Store(true)
		p.shutdown(ctx)
	})
	return nil
}

func (p *process) shutdown(ctx context.Context) {
	select {
	case <-p.exited:
		_ = p.client.Close()
		return
	default:
	}

	p.logger.Info("Stopping JVM", slog.Int("pid", p.cmd.Process.Pid))

	rpcCtx, cancel := context.WithTimeout(ctx, p.grace)
	if err := p.client.Shutdown(rpcCtx); err != nil {
		p.logger.Debug("shutdown request failed", slog.String("error", err.Error()))
	}
	cancel()
	_ = p.client.Close()

	timer := time.NewTimer(p.grace)
	defer timer.Stop()

	select {
	case <-p.exited:
	case <-timer.C:
		p.logger.Warn("JVM did not exit in time, killing it", slog.Duration("grace", p.grace))
		p.kill()
	case <-ctx.Done():
		p.kill()
	}
	p.logger.Info("JVM stopped", slog.Int("exit_code", exitCode(p.waitErr)))
}

// Stop asks the JVM to shut down, waits up to the configured grace period
// and then kills it. Safe to call multiple times and after the JVM exited
// on its own.
func (g *Gateway) Stop(ctx context.Context) error {
	g.cleanup.Stop()
	return g.proc.stop(ctx)
}

// ID returns the gateway's identifier used in log attributes.
func (g *Gateway) ID() string {
	return g.id
}

// Port returns the bridge port the JVM announced.
func (g *Gateway) Port() int {
	return g.port
}

// PID returns the JVM's process id.
func (g *Gateway) PID() int {
	return g.proc.cmd.Process.Pid
}

// Caller returns the bridge capability used by remote handles.
func (g *Gateway) Caller() bridge.Caller {
	return g.proc.client
}

// Client returns the underlying bridge client.
func (g *Gateway) Client() *bridge.Client {
	return g.proc.client
}

// Done is closed once the JVM has exited.
func (g *Gateway) Done() <-chan struct{} {
	return g.proc.exited
}

// ExitCode returns the JVM's exit status, or -1 while it is running.
func (g *Gateway) ExitCode() int {
	select {
	case <-g.proc.exited:
		return exitCode(g.proc.waitErr)
	default:
		return -1
	}
}
