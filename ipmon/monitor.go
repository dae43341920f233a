package ipmon

import (
	"context"
	"net/netip"
	"sync"
	"time"
)

// MinInterval is the smallest polling interval a Monitor accepts by default.
var MinInterval = 10 * time.Minute

// DefaultInterval is the polling interval a new Monitor starts with.
var DefaultInterval = time.Hour

// State is the state of a Monitor.
type State uint8

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Monitor periodically fetches the current address and dispatches a change to
// its notifiers. All methods are safe to call from any goroutine.
type Monitor struct {
	// MinInterval is the smallest interval accepted by Configure. It must not
	// be changed once the Monitor is in use.
	MinInterval time.Duration

	j          Journaler
	detector   *Detector
	dispatcher *Dispatcher

	// cycle is held for the whole duration of a cycle, dispatch included, so
	// that cycles never overlap, even across a Stop and Start.
	cycle sync.Mutex

	mutex    sync.Mutex
	interval time.Duration
	last     netip.Addr
	cancel   context.CancelFunc // nil if stopped
	done     chan struct{}      // closed once the latest routine exits
}

// NewMonitor creates a new stopped monitor.
func NewMonitor(detector *Detector, dispatcher *Dispatcher, j Journaler) *Monitor {
	if j == nil {
		j = Discard
	}
	if dispatcher == nil {
		dispatcher = NewDispatcher(j)
	}

	return &Monitor{
		MinInterval: MinInterval,

		j:          j,
		detector:   detector,
		dispatcher: dispatcher,
		interval:   DefaultInterval,
	}
}

// Configure sets the polling interval. The new interval is used starting from
// the next wait; a cycle in progress is not interrupted. An
// *InvalidIntervalError is returned if the interval is below the minimum, in
// which case the previous interval is kept.
func (m *Monitor) Configure(interval time.Duration) error {
	if interval < m.MinInterval {
		return &InvalidIntervalError{
			Interval: interval,
			Minimum:  m.MinInterval,
		}
	}

	m.mutex.Lock()
	old := m.interval
	m.interval = interval
	m.mutex.Unlock()

	if old != interval {
		m.j.Write(&EventIntervalChanged{
			OldSeconds: int64(old / time.Second),
			NewSeconds: int64(interval / time.Second),
		})
	}

	return nil
}

// Interval returns the current polling interval.
func (m *Monitor) Interval() time.Duration {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.interval
}

// LastKnown returns the last successfully fetched address. It is the zero
// value if no address is known yet.
func (m *Monitor) LastKnown() netip.Addr {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.last
}

// Restore sets the last known address, usually to the one recovered from the
// journal of a previous run. It does not dispatch anything.
func (m *Monitor) Restore(addr netip.Addr) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.last = addr.Unmap()
}

// State returns whether the monitor is running.
func (m *Monitor) State() State {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.cancel != nil {
		return Running
	}
	return Stopped
}

// Start starts the background routine, which immediately runs a cycle. It does
// nothing if the monitor is already running.
func (m *Monitor) Start() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.cancel = cancel
	m.done = done

	m.j.Write(&EventMonitorStarted{
		IntervalSeconds: int64(m.interval / time.Second),
	})

	go m.run(ctx, done)
}

// Stop stops the background routine. A cycle that is already in progress is
// allowed to finish, including its dispatch. Stop does not wait for that; use
// Wait. It does nothing if the monitor is already stopped.
func (m *Monitor) Stop() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.cancel == nil {
		return
	}

	m.cancel()
	m.cancel = nil

	m.j.Write(&EventMonitorStopped{})
}

// Wait blocks until the most recently started background routine has exited.
// It returns immediately if the monitor was never started.
func (m *Monitor) Wait() {
	m.mutex.Lock()
	done := m.done
	m.mutex.Unlock()

	if done != nil {
		<-done
	}
}

// CheckNow runs a single cycle synchronously and returns the fetched address.
// It never runs concurrently with a cycle of the background routine.
func (m *Monitor) CheckNow(ctx context.Context) (netip.Addr, error) {
	return m.runCycle(ctx)
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		// The timer and the cancellation may fire together, in which case
		// select picks either, so check again before doing any work.
		if ctx.Err() != nil {
			return
		}

		// Cycles are not bound to ctx: Stop lets a cycle in progress finish.
		m.runCycle(context.Background())

		timer := time.NewTimer(m.Interval())

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (m *Monitor) runCycle(ctx context.Context) (netip.Addr, error) {
	m.cycle.Lock()
	defer m.cycle.Unlock()

	addr, err := m.detector.Fetch(ctx)
	if err != nil {
		ev := &EventFetchFailed{Error: err.Error()}
		if fetchErr, ok := err.(*FetchError); ok {
			ev.Source = fetchErr.Source
			ev.Error = fetchErr.Err.Error()
		}
		m.j.Write(ev)

		return netip.Addr{}, err
	}

	m.mutex.Lock()
	old := m.last
	m.last = addr
	m.mutex.Unlock()

	// Nothing to compare against on the very first fetch.
	if !old.IsValid() || !m.detector.HasChanged(old, addr) {
		m.j.Write(&EventAddressFetched{Address: addr})
		return addr, nil
	}

	m.j.Write(&EventAddressChanged{Old: old, New: addr})
	m.dispatcher.Dispatch(ctx, old, addr)

	return addr, nil
}
