package journal

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"git.unix.lgbt/diamondburned/ipmon/ipmon"
	"github.com/diamondburned/backwardio"
)

// Reader implements a primitive reader that can parse journals written by
// Writer from the bottom to the top.
type Reader struct {
	b *backwardio.Scanner
}

var _ ipmon.JournalReader = (*Reader)(nil)

// NewReader creates a new journal reader.
func NewReader(r io.ReadSeeker) *Reader {
	return &Reader{backwardio.NewScanner(r)}
}

// Read reads a single entry, starting from the bottom of the file. An EOF
// error is returned if the file has been fully consumed. A corrupted entry is
// returned as an *ipmon.DecodeError, and the next Read continues past it.
func (r *Reader) Read() (ipmon.Event, time.Time, error) {
	var line []byte
	var err error

	for {
		line, err = r.b.ReadUntil('\n')
		if err != nil {
			return nil, time.Time{}, err
		}
		if len(line) > 0 {
			break
		}
	}

	var rawEvent struct {
		Time time.Time       `json:"time"`
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(line, &rawEvent); err != nil {
		return nil, time.Time{}, &ipmon.DecodeError{Err: err}
	}

	event := ipmon.NewEvent(rawEvent.Type)
	if event == nil {
		return nil, time.Time{}, &ipmon.DecodeError{
			Err: fmt.Errorf("unknown event %q", rawEvent.Type),
		}
	}

	if err := json.Unmarshal(rawEvent.Data, event); err != nil {
		return nil, time.Time{}, &ipmon.DecodeError{Err: err}
	}

	return event, rawEvent.Time, nil
}

// ReadPreviousStateFromFile reads the PreviousState from the given file path.
// A missing file is an empty state.
func ReadPreviousStateFromFile(path string) (*ipmon.PreviousState, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ipmon.PreviousState{}, nil
		}
		return nil, err
	}
	defer f.Close()

	return ReadPreviousState(f)
}

// ReadPreviousState reads backwards the given reader to return the
// PreviousState.
func ReadPreviousState(r io.ReadSeeker) (*ipmon.PreviousState, error) {
	return ipmon.ReadPreviousState(NewReader(r))
}
