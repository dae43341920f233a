package ipmon

import (
	"io"
	"net/netip"
	"time"

	"github.com/pkg/errors"
)

// Journaler describes an event logger.
type Journaler interface {
	Write(Event) error
}

// JournalReader describes a journal that can be read from the most recent
// event to the oldest one.
type JournalReader interface {
	// Read reads the previous event. io.EOF is returned once there are no
	// more events.
	Read() (Event, time.Time, error)
}

// JournalReadWriter is both a Journaler and a JournalReader.
type JournalReadWriter interface {
	Journaler
	JournalReader
}

type discardJournaler struct{}

// Discard is a Journaler that drops every event.
var Discard Journaler = discardJournaler{}

func (discardJournaler) Write(Event) error { return nil }

// PreviousState is the state recovered from the journal of a previous run.
type PreviousState struct {
	// Address is the last address that was successfully fetched. It is the
	// zero value if none was ever recorded.
	Address netip.Addr
	// Time is the time the address was recorded.
	Time time.Time
}

// ReadPreviousState reads the journal backwards until it finds the last
// recorded address. Events that can't be decoded are skipped over, since a
// corrupted line should not cost us the whole history.
func ReadPreviousState(r JournalReader) (*PreviousState, error) {
	for {
		ev, t, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return &PreviousState{}, nil
			}
			if isDecodeError(err) {
				continue
			}
			return nil, errors.Wrap(err, "failed to read journal")
		}

		switch ev := ev.(type) {
		case *EventAddressChanged:
			return &PreviousState{Address: ev.New, Time: t}, nil
		case *EventAddressFetched:
			return &PreviousState{Address: ev.Address, Time: t}, nil
		}
	}
}

// DecodeError is returned by journal readers when a single entry is corrupted.
type DecodeError struct {
	Err error
}

func (err *DecodeError) Error() string {
	return "failed to decode journal entry: " + err.Err.Error()
}

func (err *DecodeError) Unwrap() error { return err.Err }

func isDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}
