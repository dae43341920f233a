package service

import (
	"context"
	"path/filepath"

	"git.unix.lgbt/diamondburned/ipmon/ipmon/exec"
)

// scriptController runs a host kind's control script. The per-kind controllers
// embed it and only differ in their Descriptor.
type scriptController struct {
	desc   Descriptor
	dir    string
	runner exec.Runner
}

func (c *scriptController) Descriptor() Descriptor { return c.desc }

func (c *scriptController) ShouldIncludeExitCode() bool { return c.desc.IncludeExitCode }

func (c *scriptController) Install(ctx context.Context) (exec.Result, error) {
	return c.checked(ctx, Install)
}

func (c *scriptController) Uninstall(ctx context.Context) (exec.Result, error) {
	return c.checked(ctx, Uninstall)
}

func (c *scriptController) Start(ctx context.Context) (exec.Result, error) {
	return c.checked(ctx, Start)
}

func (c *scriptController) Stop(ctx context.Context) (exec.Result, error) {
	return c.checked(ctx, Stop)
}

func (c *scriptController) Status(ctx context.Context) (exec.Result, error) {
	return c.run(ctx, Status)
}

func (c *scriptController) IsRunning(ctx context.Context) (bool, error) {
	r, err := c.Status(ctx)
	if err != nil {
		return false, err
	}

	return c.desc.Running(r.Output), nil
}

// checked runs the operation and turns a non-zero exit code into an
// *OperationError. The output is never looked at.
func (c *scriptController) checked(ctx context.Context, op Operation) (exec.Result, error) {
	r, err := c.run(ctx, op)
	if err != nil {
		return r, err
	}

	if !r.Success() {
		return r, &OperationError{Service: c.desc.ServiceName, Op: op, Result: r}
	}

	return r, nil
}

func (c *scriptController) run(ctx context.Context, op Operation) (exec.Result, error) {
	script := filepath.Join(c.dir, c.desc.ScriptFileName)

	argv := make([]string, 0, len(c.desc.Interpreter)+2)
	argv = append(argv, c.desc.Interpreter...)
	argv = append(argv, script, string(op))

	return c.runner.Run(ctx, argv[0], argv[1:]...)
}

// WindowsDescriptor is the descriptor of the Windows service variant. The
// script drives the Windows service manager through sc.exe.
var WindowsDescriptor = Descriptor{
	Kind:            Windows,
	ServiceName:     "Service",
	ScriptFileName:  "ipmon-service.bat",
	Interpreter:     []string{"cmd.exe", "/C"},
	RunningPattern:  "Running: Yes",
	IncludeExitCode: false,
}

// LinuxDescriptor is the descriptor of the Linux daemon variant. The script
// manages a pidfile-based daemon.
var LinuxDescriptor = Descriptor{
	Kind:            Linux,
	ServiceName:     "Daemon",
	ScriptFileName:  "ipmon-daemon.sh",
	Interpreter:     []string{"/bin/sh"},
	RunningPattern:  "is running",
	IncludeExitCode: true,
}

// MacDescriptor is the descriptor of the macOS launchd variant.
var MacDescriptor = Descriptor{
	Kind:            Mac,
	ServiceName:     "Daemon",
	ScriptFileName:  "ipmon-launchd.sh",
	Interpreter:     []string{"/bin/sh"},
	RunningPattern:  "state = running",
	IncludeExitCode: true,
}

// WindowsController controls ipmon as a Windows service.
type WindowsController struct{ scriptController }

// LinuxController controls ipmon as a Linux daemon.
type LinuxController struct{ scriptController }

// MacController controls ipmon as a launchd job.
type MacController struct{ scriptController }

var (
	_ Controller = (*WindowsController)(nil)
	_ Controller = (*LinuxController)(nil)
	_ Controller = (*MacController)(nil)
)

// NewController creates the controller for the given host kind, with its
// script looked up in dir. ErrUnsupportedPlatform is returned for an unknown
// kind.
func NewController(kind Kind, dir string, runner exec.Runner) (Controller, error) {
	switch kind {
	case Windows:
		return &WindowsController{scriptController{WindowsDescriptor, dir, runner}}, nil
	case Linux:
		return &LinuxController{scriptController{LinuxDescriptor, dir, runner}}, nil
	case Mac:
		return &MacController{scriptController{MacDescriptor, dir, runner}}, nil
	default:
		return nil, ErrUnsupportedPlatform
	}
}
