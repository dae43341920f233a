package journal

import (
	"encoding/json"
	"io"

	"git.unix.lgbt/diamondburned/ipmon/ipmon"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// HumanWriter is a journaler that writes events as human-readable log lines.
// It is meant for stderr, not for being read back.
type HumanWriter struct {
	log *logrus.Logger
}

var _ ipmon.Journaler = (*HumanWriter)(nil)

// NewHumanWriter creates a new human-readable journaler writing into w.
func NewHumanWriter(w io.Writer) *HumanWriter {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})

	return &HumanWriter{log}
}

// NewHumanLogger creates a new human-readable journaler from an existing
// logger.
func NewHumanLogger(log *logrus.Logger) *HumanWriter {
	return &HumanWriter{log}
}

// Write logs the event with its fields.
func (h *HumanWriter) Write(ev ipmon.Event) error {
	fields, err := eventFields(ev)
	if err != nil {
		return err
	}

	h.log.WithFields(fields).Log(eventLevel(ev), ev.Type())
	return nil
}

func eventFields(ev ipmon.Event) (logrus.Fields, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event")
	}

	var fields logrus.Fields
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal event fields")
	}

	return fields, nil
}

func eventLevel(ev ipmon.Event) logrus.Level {
	switch ev.(type) {
	case *ipmon.EventNotifyFailed:
		return logrus.ErrorLevel
	case *ipmon.EventWarning, *ipmon.EventFetchFailed:
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}
