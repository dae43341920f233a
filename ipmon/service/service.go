// Package service controls ipmon running as a background service on the host.
//
// All host-specific logic lives in one control script per host kind. The
// script is called with exactly one argument, one of install, uninstall,
// start, stop or status, and must print human-readable text. Its exit code
// tells whether install, uninstall, start or stop succeeded. The exit code of
// status is ignored: status scripts exit with 0 whether or not the service is
// running, so only the printed text is looked at, for a running indicator that
// depends on the host kind.
package service

import (
	"context"
	"fmt"
	"strings"

	"git.unix.lgbt/diamondburned/ipmon/ipmon/exec"
	"github.com/pkg/errors"
)

// Operation is one of the operations a control script knows.
type Operation string

const (
	Install   Operation = "install"
	Uninstall Operation = "uninstall"
	Start     Operation = "start"
	Stop      Operation = "stop"
	Status    Operation = "status"
)

// Operations lists every operation.
var Operations = []Operation{Install, Uninstall, Start, Stop, Status}

// ParseOperation parses the operation name case-insensitively.
func ParseOperation(name string) (Operation, error) {
	op := Operation(strings.ToLower(name))
	for _, known := range Operations {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", name)
}

// Kind is a host kind that needs its own control script.
type Kind uint8

const (
	Windows Kind = iota + 1
	Linux
	Mac
)

func (k Kind) String() string {
	switch k {
	case Windows:
		return "windows"
	case Linux:
		return "linux"
	case Mac:
		return "mac"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Descriptor describes how a host kind is controlled.
type Descriptor struct {
	Kind Kind
	// ServiceName is what the host calls a background process, a Windows
	// Service or a Unix Daemon. It is only used in messages; every script
	// registers ipmon under the name "ipmon".
	ServiceName    string
	ScriptFileName string
	// Interpreter is prepended to the script path, if any.
	Interpreter []string
	// RunningPattern is searched for, case-insensitively, in the output of
	// the status operation.
	RunningPattern string
	// IncludeExitCode is true if reports shown to humans should carry the
	// exit code after the output.
	IncludeExitCode bool
}

// Running returns true if the output of the status operation says the service
// is running.
func (d Descriptor) Running(statusOutput string) bool {
	return strings.Contains(strings.ToLower(statusOutput), strings.ToLower(d.RunningPattern))
}

// ErrUnsupportedPlatform is returned if the host is not a known host kind.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// OperationError is returned when a control script reports a failure through
// its exit code. The raw result is kept for display.
type OperationError struct {
	Service string
	Op      Operation
	Result  exec.Result
}

func (err *OperationError) Error() string {
	return fmt.Sprintf("%s %s failed with exit code %d: %s",
		err.Service, err.Op, err.Result.ExitCode, strings.TrimSpace(err.Result.Output))
}

// Controller controls the background service.
type Controller interface {
	Install(ctx context.Context) (exec.Result, error)
	Uninstall(ctx context.Context) (exec.Result, error)
	Start(ctx context.Context) (exec.Result, error)
	Stop(ctx context.Context) (exec.Result, error)
	// Status never fails because of the exit code.
	Status(ctx context.Context) (exec.Result, error)
	// IsRunning runs Status and looks for the running indicator.
	IsRunning(ctx context.Context) (bool, error)
	// Descriptor returns the host kind's descriptor.
	Descriptor() Descriptor
	// ShouldIncludeExitCode is Descriptor().IncludeExitCode.
	ShouldIncludeExitCode() bool
}

// Do runs the given operation on the controller.
func Do(ctx context.Context, c Controller, op Operation) (exec.Result, error) {
	switch op {
	case Install:
		return c.Install(ctx)
	case Uninstall:
		return c.Uninstall(ctx)
	case Start:
		return c.Start(ctx)
	case Stop:
		return c.Stop(ctx)
	case Status:
		return c.Status(ctx)
	default:
		return exec.Result{}, fmt.Errorf("unknown operation %q", op)
	}
}

// Restart stops then starts the service. Start is not attempted if stopping
// fails.
func Restart(ctx context.Context, c Controller) (exec.Result, error) {
	r, err := c.Stop(ctx)
	if err != nil {
		return r, err
	}

	return c.Start(ctx)
}

// Report formats a result for humans: the trimmed output, followed by the exit
// code if the host kind wants it.
func Report(c Controller, r exec.Result) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(r.Output))

	if c.ShouldIncludeExitCode() {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Exit code: %d", r.ExitCode)
	}

	return b.String()
}
