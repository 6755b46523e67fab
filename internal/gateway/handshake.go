package gateway

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
)

// portLine is the handshake line the bridge entrypoint prints once it listens.
var portLine = regexp.MustCompile(`^PORT:\s*(\d+)\s*$`)

// announcement is the outcome of the port handshake.
type announcement struct {
	port int
	err  error
}

// parsePort reports whether line is the port marker and, if so, the port.
func parsePort(line string) (port int, ok bool, err error) {
	m := portLine.FindStringSubmatch(line)
	if m == nil {
		return 0, false, nil
	}
	port, err = strconv.Atoi(m[1])
	if err != nil || port < 1 || port > 65535 {
		return 0, true, fmt.Errorf("invalid port %q", m[1])
	}
	return port, true, nil
}

// pumpStdout scans the JVM's stdout until EOF. The first port marker is
// sent on announced; every other line is logged. Draining continues after
// the handshake so the JVM never blocks on a full pipe.
func pumpStdout(r io.Reader, logger *slog.Logger, announced chan<- announcement) {
	sent := false
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !sent {
			if port, ok, err := parsePort(line); ok {
				announced <- announcement{port: port, err: err}
				sent = true
				continue
			}
		}
		logger.Info(line, slog.String("source", "jvm"))
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, os.ErrClosed) {
			return
		}
		logger.Warn("jvm stdout unreadable, discarding the rest", slog.String("error", err.Error()))
		_, _ = io.Copy(io.Discard, r)
	}
}
