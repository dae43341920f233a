package notify

import (
	"context"
	"net/netip"
	"strings"
	"time"

	"git.unix.lgbt/diamondburned/ipmon/ipmon"
	"git.unix.lgbt/diamondburned/ipmon/ipmon/config"
	"git.unix.lgbt/diamondburned/ipmon/ipmon/exec"
	"github.com/pkg/errors"
)

// Command runs a program for every change. The placeholders {old} and {new}
// in its arguments are replaced with the addresses, which are also passed in
// the IPMON_OLD and IPMON_NEW environment variables.
type Command struct {
	Path string
	Args []string
	// Timeout bounds a single run. Zero means DefaultTimeout.
	Timeout time.Duration
	Runner  exec.Runner
}

var _ ipmon.Notifier = (*Command)(nil)

// NewCommand creates a command notifier from its configuration. A nil runner
// runs the command on the system.
func NewCommand(cfg config.Command, runner exec.Runner) *Command {
	return &Command{
		Path:    cfg.Path,
		Args:    cfg.Args,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		Runner:  runner,
	}
}

// Notify runs the command. A non-zero exit code is a failure.
func (c *Command) Notify(ctx context.Context, old, new netip.Addr) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	replacer := strings.NewReplacer(
		"{old}", addrString(old),
		"{new}", addrString(new),
	)

	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		args[i] = replacer.Replace(arg)
	}

	path := c.Path
	runner := c.Runner

	if runner == nil {
		p, err := exec.LookPath(path)
		if err != nil {
			return &PerformerError{CommandName, err}
		}

		path = p
		runner = exec.CommandRunner{
			Env: exec.Environ("IPMON_OLD="+addrString(old), "IPMON_NEW="+addrString(new)),
		}
	}

	r, err := runner.Run(ctx, path, args...)
	if err != nil {
		return &PerformerError{CommandName, err}
	}

	if !r.Success() {
		return &PerformerError{CommandName, errors.Errorf(
			"%s exited with code %d: %s", c.Path, r.ExitCode, strings.TrimSpace(r.Output),
		)}
	}

	return nil
}

// addrString formats the address, with the zero address as "unknown".
func addrString(addr netip.Addr) string {
	if !addr.IsValid() {
		return "unknown"
	}
	return addr.String()
}
