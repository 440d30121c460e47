// Package process owns the lifecycle of a spawned MCP server child process
// and its stdio pipe ends.
package process

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	// GracefulShutdownTimeout is how long to wait for SIGTERM before SIGKILL.
	GracefulShutdownTimeout = 5 * time.Second

	// maxStderrLines bounds the in-memory stderr log.
	maxStderrLines = 1000
)

// Spec describes the child process to spawn.
type Spec struct {
	Command string
	Args    []string
	Cwd     string
	Env     map[string]string
}

// LineHandler receives one line of the child's stderr at a time.
type LineHandler func(line string)

// Handle owns a spawned child process and its two stream ends. Exactly one
// writer (the frame codec) and one reader (the response listener) take the
// pipe ends; Handle never reads or writes them itself.
type Handle struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	logs   []string
	logsMu sync.RWMutex
	onLine LineHandler

	startedAt time.Time
	done      chan struct{} // closed when the process exits

	stopMu   sync.Mutex
	stopped  bool
	exitCode int
}

// Spawn starts the child process with piped stdin/stdout/stderr. onLine, if
// non-nil, is invoked for every stderr line the child writes.
func Spawn(spec Spec, onLine LineHandler) (*Handle, error) {
	if spec.Command == "" {
		return nil, fmt.Errorf("spawn: empty command")
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	if spec.Cwd != "" {
		cmd.Dir = spec.Cwd
	}
	cmd.Env = buildEnv(spec.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start process: %w", err)
	}

	h := &Handle{
		cmd:       cmd,
		stdin:     stdin,
		stdout:    stdout,
		logs:      make([]string, 0, 64),
		onLine:    onLine,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		exitCode:  -1,
	}

	go h.readStderr(stderr)
	go h.watch()

	return h, nil
}

// Stdin returns the write end of the child's stdin pipe.
func (h *Handle) Stdin() io.WriteCloser { return h.stdin }

// Stdout returns the read end of the child's stdout pipe.
func (h *Handle) Stdout() io.ReadCloser { return h.stdout }

// PID returns the child's process id, or 0 if it never started.
func (h *Handle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// StartedAt returns when the process started.
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Uptime returns how long the process has been running.
func (h *Handle) Uptime() time.Duration { return time.Since(h.startedAt) }

// Done returns a channel closed when the process exits. The session's
// response listener observes the same event as EOF on stdout.
func (h *Handle) Done() <-chan struct{} { return h.done }

// IsRunning reports whether the process is still alive.
func (h *Handle) IsRunning() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// ExitCode returns the child's exit code once it has exited, -1 before.
func (h *Handle) ExitCode() int {
	h.stopMu.Lock()
	defer h.stopMu.Unlock()
	return h.exitCode
}

// StderrLines returns a copy of the captured stderr log.
func (h *Handle) StderrLines() []string {
	h.logsMu.RLock()
	defer h.logsMu.RUnlock()
	out := make([]string, len(h.logs))
	copy(out, h.logs)
	return out
}

// Terminate stops the child: SIGTERM first, SIGKILL after the grace period.
// Idempotent; repeated calls after the process has exited return nil.
func (h *Handle) Terminate() error {
	h.stopMu.Lock()
	if h.stopped {
		h.stopMu.Unlock()
		<-h.done
		return nil
	}
	h.stopped = true
	h.stopMu.Unlock()

	if h.cmd.Process != nil {
		h.cmd.Process.Signal(syscall.SIGTERM)

		select {
		case <-h.done:
		case <-time.After(GracefulShutdownTimeout):
			h.cmd.Process.Signal(syscall.SIGKILL)
			<-h.done
		}
	}
	return nil
}

// readStderr captures stderr lines into the bounded log and forwards them.
func (h *Handle) readStderr(stderr io.ReadCloser) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()

		h.logsMu.Lock()
		h.logs = append(h.logs, line)
		if len(h.logs) > maxStderrLines {
			h.logs = h.logs[len(h.logs)-maxStderrLines:]
		}
		h.logsMu.Unlock()

		if h.onLine != nil {
			h.onLine(line)
		}
	}
}

// watch reaps the process and records its exit status.
func (h *Handle) watch() {
	h.cmd.Wait()

	h.stopMu.Lock()
	h.stopped = true
	if h.cmd.ProcessState != nil {
		h.exitCode = h.cmd.ProcessState.ExitCode()
	}
	h.stopMu.Unlock()

	close(h.done)
}

// buildEnv creates the child environment with PATH augmentation, so servers
// installed via homebrew or npm resolve even when launched outside a shell.
func buildEnv(customEnv map[string]string) []string {
	env := os.Environ()

	pathDirs := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		"/usr/bin",
		"/bin",
	}

	for i, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			currentPath := strings.TrimPrefix(e, "PATH=")
			env[i] = "PATH=" + strings.Join(pathDirs, ":") + ":" + currentPath
			break
		}
	}

	for k, v := range customEnv {
		found := false
		prefix := k + "="
		for i, e := range env {
			if strings.HasPrefix(e, prefix) {
				env[i] = k + "=" + v
				found = true
				break
			}
		}
		if !found {
			env = append(env, k+"="+v)
		}
	}

	return env
}
