// Package exec provides an abstraction around package os/exec for running the
// short-lived control scripts and notification commands, for easier testing.
package exec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	osexec "os/exec"
	"time"

	"github.com/pkg/errors"
)

// Result is the outcome of a single script run. Output contains both standard
// output and standard error, interleaved in the order they were written.
type Result struct {
	Output   string
	ExitCode int
}

// Success returns true if the process exited with code 0.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner runs a program to completion.
type Runner interface {
	Run(ctx context.Context, path string, args ...string) (Result, error)
}

// LaunchError is returned if the program cannot be found or spawned.
type LaunchError struct {
	Path string
	Err  error
}

func (err *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %q: %v", err.Path, err.Err)
}

func (err *LaunchError) Unwrap() error { return err.Err }

// CommandRunner runs programs on the system. A zero-value CommandRunner runs
// programs in the current directory with the current environment.
//
// CommandRunner does not impose any timeout on its own; the given context is
// the only way to interrupt a running program.
type CommandRunner struct {
	Dir string
	Env []string
}

var _ Runner = CommandRunner{}

// Run starts the program and blocks until it exits. A non-zero exit code is
// not an error: it is reported in the returned Result.
func (r CommandRunner) Run(ctx context.Context, path string, args ...string) (Result, error) {
	var out bytes.Buffer

	cmd := osexec.CommandContext(ctx, path, args...)
	cmd.Dir = r.Dir
	cmd.Env = r.Env
	cmd.Stdout = &out
	cmd.Stderr = &out
	// Don't hang on pipes held open by grandchildren once the context is done.
	cmd.WaitDelay = time.Second
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return Result{}, &LaunchError{Path: path, Err: err}
	}

	err := cmd.Wait()
	result := Result{
		Output:   out.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, errors.Wrapf(ctxErr, "%s interrupted", path)
	}

	if err != nil {
		var exitErr *osexec.ExitError
		if !errors.As(err, &exitErr) {
			return result, errors.Wrapf(err, "failed to wait for %s", path)
		}
	}

	return result, nil
}

// LookPath resolves the given program name like a shell would, returning a
// LaunchError if it cannot be found.
func LookPath(name string) (string, error) {
	path, err := osexec.LookPath(name)
	if err != nil {
		return "", &LaunchError{Path: name, Err: err}
	}
	return path, nil
}

// Environ returns the current environment with the given variables appended.
func Environ(vars ...string) []string {
	return append(os.Environ(), vars...)
}
