package ipmon

import "net/netip"

// eventType describes an event type.
type eventType = string

const (
	eventWarning         eventType = "warning"
	eventAcquired        eventType = "acquired lock"
	eventMonitorStarted  eventType = "monitor started"
	eventMonitorStopped  eventType = "monitor stopped"
	eventIntervalChanged eventType = "interval changed"
	eventAddressFetched  eventType = "address fetched"
	eventAddressChanged  eventType = "address changed"
	eventFetchFailed     eventType = "fetch failed"
	eventNotifyFailed    eventType = "notify failed"
	eventConfigReloaded  eventType = "config reloaded"
)

// Event is an interface describing known events.
type Event interface {
	Type() string
	event()
}

// NewEvent creates a new event from the given event type. It is used primarily
// for decoding events from its type. Nil is returned if the event type is
// unknown.
func NewEvent(eventType string) Event {
	switch eventType {
	case eventWarning:
		return &EventWarning{}
	case eventAcquired:
		return &EventAcquired{}
	case eventMonitorStarted:
		return &EventMonitorStarted{}
	case eventMonitorStopped:
		return &EventMonitorStopped{}
	case eventIntervalChanged:
		return &EventIntervalChanged{}
	case eventAddressFetched:
		return &EventAddressFetched{}
	case eventAddressChanged:
		return &EventAddressChanged{}
	case eventFetchFailed:
		return &EventFetchFailed{}
	case eventNotifyFailed:
		return &EventNotifyFailed{}
	case eventConfigReloaded:
		return &EventConfigReloaded{}
	default:
		return nil
	}
}

// EventWarning is emitted when a non-fatal error occurs.
type EventWarning struct {
	Component string `json:"component"`
	Error     string `json:"error"`
}

func (ev *EventWarning) Type() string { return eventWarning }
func (ev *EventWarning) event()       {}

// EventAcquired is emitted when the flock (i.e. write lock on the journal) is
// acquired, which is on startup.
type EventAcquired struct {
	PID int `json:"pid"`
}

func (ev *EventAcquired) Type() string { return eventAcquired }
func (ev *EventAcquired) event()       {}

// EventMonitorStarted is emitted when the monitor goes from stopped to running.
type EventMonitorStarted struct {
	IntervalSeconds int64 `json:"interval_seconds"`
}

func (ev *EventMonitorStarted) Type() string { return eventMonitorStarted }
func (ev *EventMonitorStarted) event()       {}

// EventMonitorStopped is emitted when the monitor goes from running to stopped.
type EventMonitorStopped struct{}

func (ev *EventMonitorStopped) Type() string { return eventMonitorStopped }
func (ev *EventMonitorStopped) event()       {}

// EventIntervalChanged is emitted when a new polling interval is accepted.
type EventIntervalChanged struct {
	OldSeconds int64 `json:"old_seconds"`
	NewSeconds int64 `json:"new_seconds"`
}

func (ev *EventIntervalChanged) Type() string { return eventIntervalChanged }
func (ev *EventIntervalChanged) event()       {}

// EventAddressFetched is emitted after a successful fetch that did not change
// the last known address.
type EventAddressFetched struct {
	Address netip.Addr `json:"address"`
}

func (ev *EventAddressFetched) Type() string { return eventAddressFetched }
func (ev *EventAddressFetched) event()       {}

// EventAddressChanged is emitted right before notifiers are called for a new
// address.
type EventAddressChanged struct {
	Old netip.Addr `json:"old"`
	New netip.Addr `json:"new"`
}

func (ev *EventAddressChanged) Type() string { return eventAddressChanged }
func (ev *EventAddressChanged) event()       {}

// EventFetchFailed is emitted when a cycle is abandoned because the address
// could not be fetched.
type EventFetchFailed struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

func (ev *EventFetchFailed) Type() string { return eventFetchFailed }
func (ev *EventFetchFailed) event()       {}

// EventNotifyFailed is emitted when a single notifier fails during a dispatch.
type EventNotifyFailed struct {
	Notifier string `json:"notifier"`
	Error    string `json:"error"`
}

func (ev *EventNotifyFailed) Type() string { return eventNotifyFailed }
func (ev *EventNotifyFailed) event()       {}

// EventConfigReloaded is emitted when a changed configuration file has been
// read and applied.
type EventConfigReloaded struct {
	Path string `json:"path"`
}

func (ev *EventConfigReloaded) Type() string { return eventConfigReloaded }
func (ev *EventConfigReloaded) event()       {}
