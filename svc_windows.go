package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows/svc"
)

// runAsService runs the monitor under the Windows service manager if the
// process was started by it. The flags on the command line the service was
// installed with still apply.
func runAsService() (bool, error) {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return true, errors.Wrap(err, "failed to detect service manager")
	}
	if !isService {
		return false, nil
	}

	if err := parseArgs(os.Args[1:]); err != nil {
		return true, errors.Wrap(err, "invalid service command line")
	}

	if err := svc.Run("ipmon", serviceHandler{}); err != nil {
		return true, errors.Wrap(err, "service failed")
	}

	return true, nil
}

type serviceHandler struct{}

func (serviceHandler) Execute(args []string, reqs <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	status <- svc.Status{State: svc.StartPending}

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	status <- svc.Status{
		State:   svc.Running,
		Accepts: svc.AcceptStop | svc.AcceptShutdown,
	}

	for {
		select {
		case err := <-done:
			if err != nil {
				return false, 1
			}
			return false, 0

		case req := <-reqs:
			switch req.Cmd {
			case svc.Interrogate:
				status <- req.CurrentStatus
			case svc.Stop, svc.Shutdown:
				status <- svc.Status{State: svc.StopPending}
				cancel()
			}
		}
	}
}
