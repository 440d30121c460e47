package process

import (
	"bufio"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestSpawn_PipesWired(t *testing.T) {
	// cat echoes stdin to stdout and exits when stdin closes.
	h, err := Spawn(Spec{Command: "cat"}, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Terminate()

	if h.PID() == 0 {
		t.Error("expected non-zero PID")
	}
	if !h.IsRunning() {
		t.Error("expected process to be running")
	}

	go fmt.Fprintln(h.Stdin(), "hello")

	line, err := bufio.NewReader(h.Stdout()).ReadString('\n')
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if line != "hello\n" {
		t.Errorf("expected %q, got %q", "hello\n", line)
	}
}

func TestSpawn_NonexistentCommand(t *testing.T) {
	_, err := Spawn(Spec{Command: "/nonexistent/command/that/does/not/exist"}, nil)
	if err == nil {
		t.Fatal("expected spawn error")
	}
	t.Logf("got expected error: %v", err)
}

func TestSpawn_EmptyCommand(t *testing.T) {
	if _, err := Spawn(Spec{}, nil); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestHandle_DoneClosesOnExit(t *testing.T) {
	h, err := Spawn(Spec{Command: "true"}, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done not closed after process exit")
	}

	if h.IsRunning() {
		t.Error("IsRunning true after exit")
	}
	if code := h.ExitCode(); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestHandle_ExitCodeRecorded(t *testing.T) {
	h, err := Spawn(Spec{Command: "sh", Args: []string{"-c", "exit 3"}}, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	<-h.Done()
	if code := h.ExitCode(); code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
}

func TestHandle_StderrCapture(t *testing.T) {
	var mu sync.Mutex
	var forwarded []string
	h, err := Spawn(Spec{
		Command: "sh",
		Args:    []string{"-c", "echo first >&2; echo second >&2"},
	}, func(line string) {
		mu.Lock()
		forwarded = append(forwarded, line)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	<-h.Done()
	// The stderr reader may still be draining after exit; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(h.StderrLines()) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	lines := h.StderrLines()
	if len(lines) != 2 || lines[0] != "first" || lines[1] != "second" {
		t.Errorf("unexpected stderr log: %v", lines)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(forwarded) != 2 {
		t.Errorf("expected 2 forwarded lines, got %v", forwarded)
	}
}

func TestHandle_TerminateIdempotent(t *testing.T) {
	h, err := Spawn(Spec{Command: "sleep", Args: []string{"30"}}, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if h.IsRunning() {
		t.Error("still running after Terminate")
	}

	// Repeated and concurrent calls are safe.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.Terminate(); err != nil {
				t.Errorf("repeat Terminate: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestHandle_EnvPassedToChild(t *testing.T) {
	h, err := Spawn(Spec{
		Command: "sh",
		Args:    []string{"-c", "printf '%s' \"$PIPEAGENT_TEST_VAR\""},
		Env:     map[string]string{"PIPEAGENT_TEST_VAR": "wired"},
	}, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	buf := make([]byte, 16)
	n, _ := h.Stdout().Read(buf)
	if got := string(buf[:n]); got != "wired" {
		t.Errorf("expected env var to reach child, got %q", got)
	}
	<-h.Done()
}
