//go:build !linux
// +build !linux

package exec

import osexec "os/exec"

func setSysProcAttr(cmd *osexec.Cmd) {}
