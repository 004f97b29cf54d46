package upgrade

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner executes one external command and returns its combined output.
// The workflow depends on this interface so tests can record invocations
// without touching the host.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandError carries the command line and captured output of a failed
// external command, so diagnostics reach the log intact.
type CommandError struct {
	// Command is the full command line that failed.
	Command string
	// Output is the combined stdout and stderr captured from the command.
	Output []byte
	// Err is the underlying execution error.
	Err error
}

// Error renders the failure with captured output when there is any.
func (e *CommandError) Error() string {
	if len(e.Output) == 0 {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}

	return fmt.Sprintf("%s: %v, command output: %s",
		e.Command, e.Err, strings.TrimSpace(string(e.Output)))
}

// Unwrap exposes the underlying execution error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// execRunner runs commands on the host, bounding each invocation with the
// configured timeout when one is set.
type execRunner struct {
	// timeout bounds one command invocation; zero means unbounded.
	timeout time.Duration
}

// Run executes the command and captures combined output.
func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, &CommandError{
			Command: strings.Join(append([]string{name}, args...), " "),
			Output:  output,
			Err:     err,
		}
	}

	return output, nil
}
