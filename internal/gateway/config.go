package gateway

import (
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/roach88/kiebridge/internal/bridge"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultEntrypoint    = "kiebridge.BridgeEntrypoint"
	DefaultBridgePath    = "/bridge"
	DefaultShutdownGrace = 5 * time.Second
)

// DefaultJVMOptions open the JDK packages the bridge reflects into.
var DefaultJVMOptions = []string{
	"--add-opens=java.base/java.lang=ALL-UNNAMED",
	"--add-opens=java.base/java.util=ALL-UNNAMED",
}

// Launcher builds the command for the JVM. Tests substitute a helper process.
type Launcher func(name string, args ...string) *exec.Cmd

// Config describes how to launch and reach the JVM.
type Config struct {
	// JavaHome selects $JavaHome/bin/java. Empty means "java" on PATH.
	JavaHome string

	// LibDir holds the rules engine and bridge jars; it becomes "-cp LibDir/*".
	LibDir string

	// Entrypoint is the main class of the bridge server.
	Entrypoint string

	// JVMOptions precede the classpath. Nil means DefaultJVMOptions;
	// an empty non-nil slice passes no options.
	JVMOptions []string

	// BridgePath is the WebSocket path served by the entrypoint.
	BridgePath string

	// Stderr receives the JVM's stderr. Nil means os.Stderr.
	Stderr io.Writer

	// ShutdownGrace is how long Stop waits for a voluntary exit before
	// killing the JVM.
	ShutdownGrace time.Duration

	// Metrics, when set, records bridge call metrics.
	Metrics *bridge.Metrics

	// Logger receives supervisor and JVM stdout logs. Nil means slog.Default().
	Logger *slog.Logger

	// Launcher overrides process creation. Nil means exec.Command.
	Launcher Launcher
}

func (c Config) withDefaults() Config {
	if c.Entrypoint == "" {
		c.Entrypoint = DefaultEntrypoint
	}
	if c.JVMOptions == nil {
		c.JVMOptions = DefaultJVMOptions
	}
	if c.BridgePath == "" {
		c.BridgePath = DefaultBridgePath
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Launcher == nil {
		c.Launcher = exec.Command
	}
	return c
}

// JavaBinary returns the java executable the config resolves to.
func (c Config) JavaBinary() string {
	if c.JavaHome == "" {
		return "java"
	}
	return filepath.Join(c.JavaHome, "bin", "java")
}

// Command returns the executable and arguments used to start the JVM.
func (c Config) Command() (string, []string) {
	c = c.withDefaults()

	args := append([]string(nil), c.JVMOptions...)
	if c.LibDir != "" {
		args = append(args, "-cp", filepath.Join(c.LibDir, "*"))
	}
	args = append(args, c.Entrypoint)
	return c.JavaBinary(), args
}
