package exec

import (
	osexec "os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setSysProcAttr makes the child die when we do. Control scripts are expected
// to be short-lived, so they should never outlive the process asking for them.
func setSysProcAttr(cmd *osexec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: unix.SIGTERM}
}
