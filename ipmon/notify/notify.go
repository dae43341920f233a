// Package notify contains the notifiers ipmon can tell about an address
// change. Every notifier implements ipmon.Notifier.
package notify

import (
	"fmt"

	"git.unix.lgbt/diamondburned/ipmon/ipmon"
	"git.unix.lgbt/diamondburned/ipmon/ipmon/config"
	"git.unix.lgbt/diamondburned/ipmon/ipmon/exec"
	"github.com/sirupsen/logrus"
)

// PerformerError is returned by a notifier that failed to notify.
type PerformerError struct {
	Performer string
	Err       error
}

func (err *PerformerError) Error() string {
	return fmt.Sprintf("%s notifier: %v", err.Performer, err.Err)
}

func (err *PerformerError) Unwrap() error { return err.Err }

// Names of the notifiers, as registered into the dispatcher.
const (
	CommandName = "command"
	MailName    = "mail"
	LogName     = "log"
)

// Names lists every notifier name.
var Names = []string{CommandName, MailName, LogName}

// Register registers every enabled notifier into the dispatcher and
// unregisters every disabled one. It is meant to be called again whenever the
// configuration changes.
func Register(d *ipmon.Dispatcher, cfg config.Notifiers, runner exec.Runner, log *logrus.Logger) {
	if cfg.Command.Enabled {
		d.Register(CommandName, NewCommand(cfg.Command, runner))
	} else {
		d.Unregister(CommandName)
	}

	if cfg.Mail.Enabled {
		d.Register(MailName, NewMail(cfg.Mail))
	} else {
		d.Unregister(MailName)
	}

	if cfg.Log.Enabled {
		d.Register(LogName, &Log{Logger: log})
	} else {
		d.Unregister(LogName)
	}
}
