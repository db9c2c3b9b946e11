// Package process runs one-shot subprocesses (ffmpeg, ffprobe) with
// line-streamed output and graceful cancellation.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/recordnode/internal/logging"
)

// OutputHandler receives output lines from the subprocess.
// Implementations can track progress, collect results, etc.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from process output.
type LogParser func(line string) (level, msg string)

// Process manages one run of a subprocess.
type Process struct {
	id            string
	command       string
	cmd           *exec.Cmd
	logger        logging.Logger
	processLogger logging.Logger // logger for process output (nil = use logger)
	logParser     LogParser      // parses process output for log level (nil = no parsing)
	outputHandler OutputHandler

	gracefulTimeout time.Duration // SIGINT to SIGKILL window
	killTimeout     time.Duration // wait after SIGKILL before giving up
}

// NewProcess creates a process for one command invocation.
func NewProcess(id, command string, logger logging.Logger) *Process {
	return NewProcessWithOutput(id, command, logger, nil)
}

// NewProcessWithOutput creates a process whose stdout/stderr lines are
// fed to the handler.
func NewProcessWithOutput(id, command string, logger logging.Logger, handler OutputHandler) *Process {
	return &Process{
		id:              id,
		command:         command,
		logger:          logger,
		outputHandler:   handler,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
	}
}

// SetLogParser sets a custom logger and log parser for process output.
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// Run starts the subprocess and blocks until it exits or the context is
// cancelled. Cancellation sends SIGINT first so encoders can close their
// output cleanly, then escalates to SIGKILL after the graceful timeout.
// Returns the subprocess exit code.
func (p *Process) Run(ctx context.Context) int {
	args, err := parseCommand(p.command)
	if err != nil {
		p.logger.Error("failed to parse command", "error", err)
		return 1
	}
	if len(args) == 0 {
		p.logger.Error("empty command")
		return 1
	}

	p.cmd = exec.Command(args[0], args[1:]...)
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		p.logger.Error("failed to create stdout pipe", "error", err)
		return 1
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		p.logger.Error("failed to create stderr pipe", "error", err)
		return 1
	}

	if err := p.cmd.Start(); err != nil {
		p.logger.Error("failed to start process", "error", err, "command", p.command)
		return 1
	}
	p.logger.Debug("process started", "id", p.id, "pid", p.cmd.Process.Pid)

	var outputWG sync.WaitGroup
	outputWG.Add(2)
	go func() {
		defer outputWG.Done()
		p.streamOutput(stdout, "stdout")
	}()
	go func() {
		defer outputWG.Done()
		p.streamOutput(stderr, "stderr")
	}()
	defer outputWG.Wait()

	processDone := make(chan error, 1)
	go func() {
		processDone <- p.cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		p.logger.Info("context cancelled, stopping process", "id", p.id)
		p.sendStopSignal()
		return p.waitForExit(processDone)
	case processErr := <-processDone:
		exitCode := exitCodeFromError(processErr)
		if processErr != nil && exitCode == 1 {
			p.logger.Error("process exited with error", "id", p.id, "error", processErr)
		} else {
			p.logger.Debug("process exited", "id", p.id, "exit_code", exitCode)
		}
		return exitCode
	}
}

// exitCodeFromError extracts the exit code from a Wait error. Returns 0
// for nil, the real code for ExitError, 1 otherwise.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// sendStopSignal sends SIGINT without waiting.
func (p *Process) sendStopSignal() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	if err := p.cmd.Process.Signal(syscall.SIGINT); err != nil {
		p.logger.Warn("failed to send SIGINT", "error", err)
	}
}

// waitForExit waits for the process, force-killing after the graceful
// timeout.
func (p *Process) waitForExit(processDone <-chan error) int {
	select {
	case err := <-processDone:
		return exitCodeFromError(err)
	case <-time.After(p.gracefulTimeout):
		p.logger.Warn("graceful shutdown timeout, forcing kill", "timeout", p.gracefulTimeout)
		if p.cmd.Process != nil {
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				p.logger.Error("failed to kill process", "error", err)
			}
		}
		select {
		case <-processDone:
		case <-time.After(p.killTimeout):
			p.logger.Error("process did not exit after kill signal")
		}
		return 137
	}
}

// streamOutput scans one output stream line by line, forwarding to the
// handler and logging at the parsed level.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()

		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "fatal", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("error reading output", "source", source, "error", err)
	}
}

// parseCommand splits a command string into arguments, honoring quotes
// and backslash escapes.
func parseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	command = strings.TrimSpace(command)
	runes := []rune(command)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}
	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}

	return args, nil
}
