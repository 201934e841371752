// Package console executes local CLI commands for console actions.
//
// The engine depends on the Console interface so tests can substitute a
// fake; ShellConsole is the production implementation backed by /bin/sh.
package console

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrExecFailed is returned when a command cannot be started or the shell
// itself fails. A non-zero exit code is reported through Result.Code.
var ErrExecFailed = errors.New("console: execution failed")

// Result is the outcome of a console command.
type Result struct {
	Code   int
	Output string
}

// Console runs local commands.
type Console interface {
	Exec(ctx context.Context, command string) (Result, error)
}

// ShellConsole runs commands through the system shell.
type ShellConsole struct {
	// Shell is the shell binary, default /bin/sh.
	Shell string
}

// NewShellConsole creates a console using /bin/sh.
func NewShellConsole() *ShellConsole {
	return &ShellConsole{Shell: "/bin/sh"}
}

// waitDelay bounds how long a cancelled command may hold the output pipes.
// Killing the shell does not kill its children; without the delay,
// CombinedOutput would wait for the full natural duration of whatever the
// shell spawned, stalling the single executor worker.
const waitDelay = 500 * time.Millisecond

// Exec runs a command and returns its combined output and exit code.
// The command is killed when ctx is cancelled, and the returned error wraps
// ctx.Err() so callers can classify timeouts with errors.Is.
func (c *ShellConsole) Exec(ctx context.Context, command string) (Result, error) {
	shell := c.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.WaitDelay = waitDelay
	out, err := cmd.CombinedOutput()

	res := Result{Output: strings.TrimRight(string(out), "\n")}
	if ctxErr := ctx.Err(); ctxErr != nil {
		// The kill surfaces as a plain exit error; the context tells the
		// real story.
		return res, fmt.Errorf("%w: %w", ErrExecFailed, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.Code = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("%w: %w", ErrExecFailed, err)
	}
	return res, nil
}
