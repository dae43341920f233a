package notify

import (
	"context"
	"net/netip"

	"git.unix.lgbt/diamondburned/ipmon/ipmon"
	"github.com/sirupsen/logrus"
)

// Log logs every change.
type Log struct {
	// Logger defaults to logrus' standard logger.
	Logger *logrus.Logger
}

var _ ipmon.Notifier = (*Log)(nil)

// Notify logs the change at the info level.
func (l *Log) Notify(ctx context.Context, old, new netip.Addr) error {
	logger := l.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	logger.WithFields(logrus.Fields{
		"old": addrString(old),
		"new": addrString(new),
	}).Info("public IP address changed")

	return nil
}
