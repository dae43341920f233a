package service

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"git.unix.lgbt/diamondburned/ipmon/ipmon/exec"
	"github.com/pkg/errors"
)

func newTestController(t *testing.T, kind Kind) (Controller, *exec.ScriptedRunner) {
	t.Helper()

	var runner exec.ScriptedRunner

	c, err := NewController(kind, "/opt/ipmon/scripts", &runner)
	if err != nil {
		t.Fatal("failed to create controller:", err)
	}

	return c, &runner
}

// scriptArgs returns the arguments the runner gets for the given operation,
// which excludes the program itself.
func scriptArgs(desc Descriptor, op Operation) []string {
	argv := append(append([]string(nil), desc.Interpreter...),
		filepath.Join("/opt/ipmon/scripts", desc.ScriptFileName), string(op))
	return argv[1:]
}

func TestControllerArguments(t *testing.T) {
	type test struct {
		kind   Kind
		expect []string
	}

	var tests = []test{
		{Windows, []string{"cmd.exe", "/C", filepath.Join("/opt/ipmon/scripts", "ipmon-service.bat")}},
		{Linux, []string{"/bin/sh", filepath.Join("/opt/ipmon/scripts", "ipmon-daemon.sh")}},
		{Mac, []string{"/bin/sh", filepath.Join("/opt/ipmon/scripts", "ipmon-launchd.sh")}},
	}

	for _, test := range tests {
		t.Run(test.kind.String(), func(t *testing.T) {
			c, runner := newTestController(t, test.kind)

			for _, op := range Operations {
				if _, err := Do(context.Background(), c, op); err != nil {
					t.Fatalf("%s failed: %v", op, err)
				}
			}

			calls := runner.Calls()
			if len(calls) != len(Operations) {
				t.Fatalf("expected %d calls, got %d", len(Operations), len(calls))
			}

			for i, call := range calls {
				argv := append([]string{call.Path}, call.Args...)
				expect := append(append([]string(nil), test.expect...), string(Operations[i]))

				if !reflect.DeepEqual(argv, expect) {
					t.Errorf("call %d: expected %q, got %q", i, expect, argv)
				}
			}
		})
	}
}

func TestControllerExitCode(t *testing.T) {
	c, runner := newTestController(t, Linux)

	// Output text never decides the result of a checked operation.
	runner.Reply(scriptArgs(LinuxDescriptor, Install),
		exec.Result{Output: "installed successfully", ExitCode: 1}, nil)
	runner.Reply(scriptArgs(LinuxDescriptor, Start),
		exec.Result{Output: "error: failed", ExitCode: 0}, nil)

	_, err := c.Install(context.Background())

	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %v", err)
	}
	if opErr.Op != Install || opErr.Result.Output != "installed successfully" {
		t.Errorf("unexpected error contents %#v", opErr)
	}
	if opErr.Service != "Daemon" {
		t.Errorf("unexpected service name %q", opErr.Service)
	}
	if msg := opErr.Error(); !strings.HasPrefix(msg, "Daemon install failed with exit code 1") {
		t.Errorf("unexpected error message %q", msg)
	}

	if _, err := c.Start(context.Background()); err != nil {
		t.Errorf("start with exit code 0 failed: %v", err)
	}
}

func TestControllerStatus(t *testing.T) {
	type test struct {
		name    string
		kind    Kind
		output  string
		code    int
		running bool
	}

	var tests = []test{
		{"windows running exit 1", Windows, "Running: Yes", 1, true},
		{"windows lower case", Windows, "running: yes\r\n", 0, true},
		{"windows stopped", Windows, "Running: No", 0, false},
		{"linux running", Linux, "ipmon is running (pid 123)", 0, true},
		{"linux stopped", Linux, "ipmon is not running", 0, false},
		{"mac running", Mac, "\tstate = running\n", 3, true},
		{"mac stopped", Mac, "state = not running", 0, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c, runner := newTestController(t, test.kind)
			desc := c.Descriptor()

			runner.Reply(scriptArgs(desc, Status),
				exec.Result{Output: test.output, ExitCode: test.code}, nil)

			if _, err := c.Status(context.Background()); err != nil {
				t.Fatalf("status failed: %v", err)
			}

			running, err := c.IsRunning(context.Background())
			if err != nil {
				t.Fatalf("IsRunning failed: %v", err)
			}
			if running != test.running {
				t.Errorf("expected running %v, got %v", test.running, running)
			}
		})
	}
}

func TestControllerLaunchError(t *testing.T) {
	c, runner := newTestController(t, Linux)

	launchErr := &exec.LaunchError{Path: "/bin/sh", Err: errors.New("permission denied")}
	runner.Reply(scriptArgs(LinuxDescriptor, Stop), exec.Result{}, launchErr)

	if _, err := c.Stop(context.Background()); !errors.Is(err, launchErr) {
		t.Errorf("expected launch error, got %v", err)
	}
}

func TestRestart(t *testing.T) {
	c, runner := newTestController(t, Mac)

	runner.Reply(scriptArgs(MacDescriptor, Stop),
		exec.Result{Output: "not loaded", ExitCode: 113}, nil)

	if _, err := Restart(context.Background(), c); err == nil {
		t.Fatal("expected restart to fail when stop fails")
	}

	calls := runner.Calls()
	if len(calls) != 1 {
		t.Errorf("expected start not to be attempted, got %d calls", len(calls))
	}
}

func TestReport(t *testing.T) {
	r := exec.Result{Output: "\n  Service installed.  \n", ExitCode: 0}

	windows, _ := newTestController(t, Windows)
	if report := Report(windows, r); report != "Service installed." {
		t.Errorf("unexpected windows report %q", report)
	}

	linux, _ := newTestController(t, Linux)
	if report := Report(linux, r); report != "Service installed.\n\nExit code: 0" {
		t.Errorf("unexpected linux report %q", report)
	}
}

func TestManager(t *testing.T) {
	t.Run("detect once", func(t *testing.T) {
		var detected int

		m := &Manager{
			Detect: func() (Kind, error) {
				detected++
				return Mac, nil
			},
			Runner: &exec.ScriptedRunner{},
		}

		c1, err := m.Controller()
		if err != nil {
			t.Fatal("unexpected error:", err)
		}
		c2, _ := m.Controller()

		if c1 != c2 {
			t.Error("expected the same controller")
		}
		if detected != 1 {
			t.Errorf("expected 1 detection, got %d", detected)
		}
		if _, ok := c1.(*MacController); !ok {
			t.Errorf("expected a MacController, got %T", c1)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		m := &Manager{
			Detect: func() (Kind, error) { return kindFromSysname("FreeBSD") },
		}

		if _, err := m.Controller(); !errors.Is(err, ErrUnsupportedPlatform) {
			t.Errorf("expected ErrUnsupportedPlatform, got %v", err)
		}
		if _, err := m.Controller(); !errors.Is(err, ErrUnsupportedPlatform) {
			t.Errorf("expected the error to stick, got %v", err)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		if _, err := NewController(Kind(42), "", nil); !errors.Is(err, ErrUnsupportedPlatform) {
			t.Errorf("expected ErrUnsupportedPlatform, got %v", err)
		}
	})
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("Status")
	if err != nil || op != Status {
		t.Errorf("expected status, got %q, %v", op, err)
	}

	if _, err := ParseOperation("restart"); err == nil {
		t.Error("expected error for unknown operation")
	}
}
