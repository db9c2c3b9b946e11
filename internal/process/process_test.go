package process

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcess(command string) *Process {
	p := NewProcess("test", command, testLogger())
	p.gracefulTimeout = 100 * time.Millisecond
	p.killTimeout = 100 * time.Millisecond
	return p
}

func runAsync(ctx context.Context, p *Process) <-chan int {
	done := make(chan int, 1)
	go func() {
		done <- p.Run(ctx)
	}()
	return done
}

func waitForExit(t *testing.T, done <-chan int, timeout time.Duration) int {
	t.Helper()
	select {
	case exitCode := <-done:
		return exitCode
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
		return -1
	}
}

func TestRunToCompletion(t *testing.T) {
	p := newTestProcess("true")
	if code := waitForExit(t, runAsync(context.Background(), p), time.Second); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestRunPropagatesExitCode(t *testing.T) {
	p := newTestProcess(`sh -c "exit 3"`)
	if code := waitForExit(t, runAsync(context.Background(), p), time.Second); code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
}

func TestGracefulCancellation(t *testing.T) {
	p := newTestProcess(`sh -c "trap 'exit 0' INT TERM; while :; do sleep 0.1; done"`)
	p.gracefulTimeout = 500 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p)
	time.Sleep(100 * time.Millisecond)
	cancel()

	if code := waitForExit(t, done, time.Second); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestForceKillOnTimeout(t *testing.T) {
	p := newTestProcess(`sh -c "trap '' INT; sleep 10"`)
	p.gracefulTimeout = 50 * time.Millisecond
	p.killTimeout = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p)
	time.Sleep(50 * time.Millisecond)
	cancel()

	// 128 + 9 for SIGKILL.
	if code := waitForExit(t, done, 500*time.Millisecond); code != 137 {
		t.Errorf("expected exit code 137, got %d", code)
	}
}

type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) HandleLine(source, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func TestOutputHandlerReceivesLines(t *testing.T) {
	c := &lineCollector{}
	p := NewProcessWithOutput("test", `sh -c "echo one; echo two"`, testLogger(), c)

	if code := p.Run(context.Background()); code != 0 {
		t.Fatalf("exit code %d", code)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) != 2 || c.lines[0] != "one" || c.lines[1] != "two" {
		t.Errorf("unexpected lines: %v", c.lines)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		command string
		want    []string
	}{
		{"ffmpeg -i in.mp4 out.mp4", []string{"ffmpeg", "-i", "in.mp4", "out.mp4"}},
		{`sh -c "echo hi"`, []string{"sh", "-c", "echo hi"}},
		{`a 'b c' d`, []string{"a", "b c", "d"}},
		{`a b\ c`, []string{"a", "b c"}},
	}
	for _, tt := range tests {
		got, err := parseCommand(tt.command)
		if err != nil {
			t.Errorf("parseCommand(%q): %v", tt.command, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseCommand(%q) = %v, want %v", tt.command, got, tt.want)
		}
	}
}

func TestParseCommandUnclosedQuote(t *testing.T) {
	if _, err := parseCommand(`sh -c "oops`); err == nil {
		t.Fatal("expected error for unclosed quote")
	}
}
