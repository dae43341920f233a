package ipmon

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
)

// Notifier is told about an address change.
type Notifier interface {
	Notify(ctx context.Context, old, new netip.Addr) error
}

// NotifierFunc is a function that implements Notifier.
type NotifierFunc func(ctx context.Context, old, new netip.Addr) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, old, new netip.Addr) error {
	return f(ctx, old, new)
}

// Dispatcher holds a set of named notifiers and calls all of them for every
// change. It is safe to register and unregister notifiers while a dispatch is
// running; the change only affects future dispatches.
type Dispatcher struct {
	j Journaler

	mutex     sync.RWMutex
	names     []string // registration order
	notifiers map[string]Notifier
}

// NewDispatcher creates a new dispatcher that reports notifier failures to the
// given journaler.
func NewDispatcher(j Journaler) *Dispatcher {
	if j == nil {
		j = Discard
	}

	return &Dispatcher{
		j:         j,
		notifiers: make(map[string]Notifier),
	}
}

// Register adds a notifier under the given name. Registering a name that
// already exists replaces its notifier and keeps its position.
func (d *Dispatcher) Register(name string, n Notifier) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, ok := d.notifiers[name]; !ok {
		d.names = append(d.names, name)
	}

	d.notifiers[name] = n
}

// Unregister removes the notifier with the given name. False is returned if
// there was none.
func (d *Dispatcher) Unregister(name string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, ok := d.notifiers[name]; !ok {
		return false
	}

	delete(d.notifiers, name)

	for i, n := range d.names {
		if n == name {
			d.names = append(d.names[:i:i], d.names[i+1:]...)
			break
		}
	}

	return true
}

// Names returns the names of all registered notifiers in registration order.
func (d *Dispatcher) Names() []string {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return append([]string(nil), d.names...)
}

type namedNotifier struct {
	name string
	Notifier
}

func (d *Dispatcher) snapshot() []namedNotifier {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	notifiers := make([]namedNotifier, len(d.names))
	for i, name := range d.names {
		notifiers[i] = namedNotifier{name, d.notifiers[name]}
	}

	return notifiers
}

// Dispatch calls every registered notifier in registration order. A notifier
// that fails or panics is written into the journal and skipped over. The number
// of failed notifiers is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, old, new netip.Addr) int {
	var failed int

	for _, n := range d.snapshot() {
		if err := notify(ctx, n, old, new); err != nil {
			failed++

			d.j.Write(&EventNotifyFailed{
				Notifier: n.name,
				Error:    err.Error(),
			})
		}
	}

	return failed
}

func notify(ctx context.Context, n namedNotifier, old, new netip.Addr) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("notifier %s panicked: %v", n.name, v)
		}
	}()

	return n.Notify(ctx, old, new)
}
