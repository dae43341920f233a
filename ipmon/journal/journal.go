// Package journal provides an implementation of ipmon's Journaler interface to
// write to a file. It also provides a file locking abstraction so that only one
// ipmon instance can run with the same journal file.
package journal

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"git.unix.lgbt/diamondburned/ipmon/ipmon"
	"github.com/diamondburned/backwardio"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// multiWriter combines multiple journalers.
type multiWriter struct {
	writers []ipmon.Journaler
}

// MultiWriter creates a journaler that writes to multiple other journalers.
// Every writer is written to even if an earlier one fails; the first error is
// returned.
func MultiWriter(ws ...ipmon.Journaler) ipmon.Journaler {
	return &multiWriter{ws}
}

func (w *multiWriter) Write(event ipmon.Event) error {
	var firstErr error
	for _, writer := range w.writers {
		if err := writer.Write(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

type multiReadWriter struct {
	multiWriter
	ipmon.JournalReader
}

// MultiReadWriter creates a journaler that writes to multiple other journalers
// but reads from a single journaler. The new journaler makes no guarantee that
// the reader will read only once all writers are done, so caller should not
// assume that.
func MultiReadWriter(r ipmon.JournalReadWriter, ws ...ipmon.Journaler) ipmon.JournalReadWriter {
	return &multiReadWriter{
		multiWriter:   multiWriter{append([]ipmon.Journaler{r}, ws...)},
		JournalReader: r,
	}
}

// FileLockJournaler is a journaler that uses a file lock (flock) on a lock
// file next to the journal and writes to the journal. The FileLockJournaler
// instance must be closed by the caller or by the operating system when the
// application exits.
//
// Reading the Journal
//
// The caller does not need to acquire a file lock in order to read the written
// journal, as each Write operation performed on the file is guaranteed to
// always be valid and atomic.
//
// The embedded Reader reads the journal backwards, from the last written event
// to the first one, which is what recovering the previous state needs.
type FileLockJournaler struct {
	*Writer
	*Reader
	f *os.File
	l *flock.Flock
}

var _ ipmon.JournalReadWriter = (*FileLockJournaler)(nil)

// ErrLockedElsewhere is returned if NewFileLockJournaler can't acquire the file
// lock.
var ErrLockedElsewhere = errors.New("file already locked elsewhere")

// NewFileLockJournaler creates a new file journaler if it can acquire a flock
// on the path. It returns an error if it fails to acquire the lock.
func NewFileLockJournaler(path string) (*FileLockJournaler, error) {
	return newFileLockJournaler(nil, path)
}

// NewFileLockJournalerWait creates a new file journaler but waits until the
// lock can be acquired or until the context times out.
func NewFileLockJournalerWait(ctx context.Context, path string) (*FileLockJournaler, error) {
	return newFileLockJournaler(ctx, path)
}

func newFileLockJournaler(ctx context.Context, path string) (*FileLockJournaler, error) {
	// Ensure the directory exists.
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, errors.Wrap(err, "failed to create journal directory")
	}

	l := flock.New(path + ".lock")

	var locked bool
	var err error

	if ctx != nil {
		locked, err = l.TryLockContext(ctx, 25*time.Millisecond)
	} else {
		locked, err = l.TryLock()
	}

	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire lock")
	}

	if !locked {
		return nil, ErrLockedElsewhere
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		l.Unlock()
		return nil, errors.Wrap(err, "failed to open file")
	}

	return &FileLockJournaler{
		Writer: NewWriter(f),
		Reader: &Reader{backwardio.NewScanner(f)},
		f:      f,
		l:      l,
	}, nil
}

// Close closes the file and releases the flock.
func (f *FileLockJournaler) Close() error {
	f.f.Close()
	return f.l.Unlock()
}
