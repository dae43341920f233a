package ipmon

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
)

type fetchResult struct {
	addr string
	err  error
}

// sequenceFetcher returns the given results in order, then fails.
func sequenceFetcher(results ...fetchResult) Fetcher {
	var mutex sync.Mutex

	return FetcherFunc(func(context.Context) (netip.Addr, error) {
		mutex.Lock()
		defer mutex.Unlock()

		if len(results) == 0 {
			return netip.Addr{}, errors.New("out of results")
		}

		r := results[0]
		results = results[1:]

		if r.err != nil {
			return netip.Addr{}, r.err
		}
		return netip.MustParseAddr(r.addr), nil
	})
}

// feedFetcher consumes addresses sent into feed. A fetch with nothing waiting
// to be fed fails right away.
type feedFetcher struct {
	feed  chan string
	calls int32
}

func newFeedFetcher() *feedFetcher {
	return &feedFetcher{feed: make(chan string)}
}

func (f *feedFetcher) Fetch(ctx context.Context) (netip.Addr, error) {
	atomic.AddInt32(&f.calls, 1)

	select {
	case addr := <-f.feed:
		return netip.MustParseAddr(addr), nil
	default:
		return netip.Addr{}, errors.New("nothing fed")
	}
}

func (f *feedFetcher) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

type change struct {
	old, new netip.Addr
}

func changeRecorder(ch chan<- change) Notifier {
	return NotifierFunc(func(ctx context.Context, old, new netip.Addr) error {
		ch <- change{old, new}
		return nil
	})
}

func addr(s string) netip.Addr { return netip.MustParseAddr(s) }

func TestMonitorConfigure(t *testing.T) {
	var j mockJournal
	m := NewMonitor(NewDetector(nil), nil, &j)

	if m.MinInterval != 10*time.Minute {
		t.Fatalf("unexpected default minimum %v", m.MinInterval)
	}

	err := m.Configure(300 * time.Second)

	var intervalErr *InvalidIntervalError
	if !errors.As(err, &intervalErr) {
		t.Fatalf("expected InvalidIntervalError, got %v", err)
	}
	if intervalErr.Minimum != 600*time.Second {
		t.Errorf("unexpected minimum %v", intervalErr.Minimum)
	}
	if m.Interval() != time.Hour {
		t.Errorf("interval changed to %v after a rejected configure", m.Interval())
	}

	if err := m.Configure(600 * time.Second); err != nil {
		t.Fatal("minimum interval rejected:", err)
	}
	if m.Interval() != 600*time.Second {
		t.Errorf("unexpected interval %v", m.Interval())
	}

	// Same interval again is not journaled.
	m.Configure(600 * time.Second)

	j.Verify(t, true, []Event{
		&EventIntervalChanged{OldSeconds: 3600, NewSeconds: 600},
	})

	if m.State() != Stopped {
		t.Errorf("configure changed state to %v", m.State())
	}
}

func TestMonitorCycle(t *testing.T) {
	t.Run("sequence", func(t *testing.T) {
		var j mockJournal
		changes := make(chan change, 10)

		d := NewDispatcher(&j)
		d.Register("recorder", changeRecorder(changes))

		fetcher := sequenceFetcher(
			fetchResult{addr: "1.2.3.4"},
			fetchResult{addr: "1.2.3.4"},
			fetchResult{addr: "1.2.3.5"},
			fetchResult{err: errors.New("boom")},
			fetchResult{addr: "::ffff:1.2.3.5"},
			fetchResult{addr: "1.2.3.4"},
		)

		m := NewMonitor(NewDetector(fetcher), d, &j)

		expectLast := []string{"1.2.3.4", "1.2.3.4", "1.2.3.5", "1.2.3.5", "1.2.3.5", "1.2.3.4"}
		for i, expect := range expectLast {
			m.CheckNow(context.Background())

			if last := m.LastKnown(); last != addr(expect) {
				t.Errorf("cycle %d: expected last known %s, got %v", i, expect, last)
			}
		}

		close(changes)

		var got []change
		for c := range changes {
			got = append(got, c)
		}

		expect := []change{
			{addr("1.2.3.4"), addr("1.2.3.5")},
			{addr("1.2.3.5"), addr("1.2.3.4")},
		}

		if len(got) != len(expect) {
			t.Fatalf("expected %d dispatches, got %d: %v", len(expect), len(got), got)
		}
		for i := range expect {
			if got[i] != expect[i] {
				t.Errorf("dispatch %d: expected %v, got %v", i, expect[i], got[i])
			}
		}

		j.Verify(t, true, []Event{
			&EventAddressFetched{Address: addr("1.2.3.4")},
			&EventAddressFetched{Address: addr("1.2.3.4")},
			&EventAddressChanged{Old: addr("1.2.3.4"), New: addr("1.2.3.5")},
			&EventFetchFailed{Source: "fetcher", Error: "boom"},
			&EventAddressFetched{Address: addr("1.2.3.5")},
			&EventAddressChanged{Old: addr("1.2.3.5"), New: addr("1.2.3.4")},
		})
	})

	t.Run("restored", func(t *testing.T) {
		changes := make(chan change, 10)

		d := NewDispatcher(nil)
		d.Register("recorder", changeRecorder(changes))

		fetcher := sequenceFetcher(
			fetchResult{addr: "1.2.3.4"},
			fetchResult{addr: "1.2.3.5"},
		)

		m := NewMonitor(NewDetector(fetcher), d, nil)
		m.Restore(addr("1.2.3.4"))

		m.CheckNow(context.Background())
		if len(changes) != 0 {
			t.Fatal("unexpected dispatch for an unchanged address")
		}

		m.CheckNow(context.Background())
		select {
		case c := <-changes:
			if c != (change{addr("1.2.3.4"), addr("1.2.3.5")}) {
				t.Errorf("unexpected change %v", c)
			}
		default:
			t.Fatal("expected a dispatch")
		}

		if last := m.LastKnown(); last != addr("1.2.3.5") {
			t.Errorf("expected last known 1.2.3.5, got %v", last)
		}
	})

	t.Run("failing notifier", func(t *testing.T) {
		var j mockJournal
		changes := make(chan change, 10)

		d := NewDispatcher(&j)
		d.Register("first", changeRecorder(changes))
		d.Register("broken", NotifierFunc(func(context.Context, netip.Addr, netip.Addr) error {
			return errors.New("performer failed")
		}))
		d.Register("third", changeRecorder(changes))

		m := NewMonitor(NewDetector(sequenceFetcher(
			fetchResult{addr: "1.2.3.4"},
			fetchResult{addr: "1.2.3.5"},
		)), d, &j)

		m.CheckNow(context.Background())
		if _, err := m.CheckNow(context.Background()); err != nil {
			t.Fatal("notifier failure leaked out of the cycle:", err)
		}

		if len(changes) != 2 {
			t.Errorf("expected 2 notifiers to run, got %d", len(changes))
		}

		if failed := j.Filter(&EventNotifyFailed{}); len(failed) != 1 {
			t.Errorf("expected 1 notify failure, got %d", len(failed))
		}
	})
}

func TestMonitorLoop(t *testing.T) {
	t.Run("runs until stopped", func(t *testing.T) {
		var j mockJournal
		changes := make(chan change, 10)

		d := NewDispatcher(&j)
		d.Register("recorder", changeRecorder(changes))

		fetcher := newFeedFetcher()

		m := NewMonitor(NewDetector(fetcher), d, &j)
		m.MinInterval = time.Millisecond
		if err := m.Configure(2 * time.Millisecond); err != nil {
			t.Fatal("failed to configure:", err)
		}

		m.Start()
		m.Start() // no-op

		if m.State() != Running {
			t.Fatalf("expected running, got %v", m.State())
		}

		// Unfed cycles in between fail, which must not stop the routine.
		fetcher.feed <- "1.2.3.4"
		fetcher.feed <- "1.2.3.5"

		select {
		case c := <-changes:
			if c != (change{addr("1.2.3.4"), addr("1.2.3.5")}) {
				t.Errorf("unexpected change %v", c)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a dispatch")
		}

		m.Stop()
		m.Wait()

		if m.State() != Stopped {
			t.Errorf("expected stopped, got %v", m.State())
		}

		calls := fetcher.Calls()
		time.Sleep(20 * time.Millisecond)

		if after := fetcher.Calls(); after != calls {
			t.Errorf("%d cycles ran after stop", after-calls)
		}

		if started := j.Filter(&EventMonitorStarted{}); len(started) != 1 {
			t.Errorf("expected 1 start event, got %d", len(started))
		}
		if stopped := j.Filter(&EventMonitorStopped{}); len(stopped) != 1 {
			t.Errorf("expected 1 stop event, got %d", len(stopped))
		}
		if last := m.LastKnown(); last != addr("1.2.3.5") {
			t.Errorf("expected last known 1.2.3.5, got %v", last)
		}
	})

	t.Run("stop during cycle", func(t *testing.T) {
		changes := make(chan change, 10)

		d := NewDispatcher(nil)
		d.Register("recorder", changeRecorder(changes))

		entered := make(chan struct{})
		gate := make(chan netip.Addr)
		var calls int32

		fetcher := FetcherFunc(func(ctx context.Context) (netip.Addr, error) {
			atomic.AddInt32(&calls, 1)
			entered <- struct{}{}
			return <-gate, nil
		})

		m := NewMonitor(NewDetector(fetcher), d, nil)
		m.MinInterval = time.Millisecond
		m.Configure(time.Millisecond)
		m.Restore(addr("1.2.3.4"))

		m.Start()
		<-entered

		m.Stop()
		gate <- addr("1.2.3.5")
		m.Wait()

		select {
		case c := <-changes:
			if c.new != addr("1.2.3.5") {
				t.Errorf("unexpected change %v", c)
			}
		default:
			t.Fatal("change decided before stop was not dispatched")
		}

		if n := atomic.LoadInt32(&calls); n != 1 {
			t.Errorf("expected 1 cycle, got %d", n)
		}
	})

	t.Run("restart", func(t *testing.T) {
		fetcher := newFeedFetcher()

		m := NewMonitor(NewDetector(fetcher), nil, nil)
		m.MinInterval = time.Millisecond
		m.Configure(time.Millisecond)

		m.Start()
		fetcher.feed <- "1.2.3.4"
		m.Stop()
		m.Wait()

		m.Start()
		fetcher.feed <- "1.2.3.6"
		m.Stop()
		m.Wait()

		if last := m.LastKnown(); last != addr("1.2.3.6") {
			t.Errorf("expected last known 1.2.3.6, got %v", last)
		}
	})
}

func TestMonitorTiming(t *testing.T) {
	t.Run("interval after cycle end", func(t *testing.T) {
		const delay = 30 * time.Millisecond
		const interval = 20 * time.Millisecond

		var mutex sync.Mutex
		var starts, ends []time.Time
		cycles := make(chan struct{}, 10)

		fetcher := FetcherFunc(func(context.Context) (netip.Addr, error) {
			start := time.Now()
			time.Sleep(delay)

			mutex.Lock()
			starts = append(starts, start)
			ends = append(ends, time.Now())
			mutex.Unlock()

			select {
			case cycles <- struct{}{}:
			default:
			}

			return addr("1.2.3.4"), nil
		})

		m := NewMonitor(NewDetector(fetcher), nil, nil)
		m.MinInterval = time.Millisecond
		m.Configure(interval)

		m.Start()
		for i := 0; i < 3; i++ {
			select {
			case <-cycles:
			case <-time.After(5 * time.Second):
				t.Fatalf("timed out waiting for cycle %d", i)
			}
		}
		m.Stop()
		m.Wait()

		mutex.Lock()
		defer mutex.Unlock()

		for i := 1; i < len(starts); i++ {
			if gap := starts[i].Sub(ends[i-1]); gap < interval {
				t.Errorf("cycle %d started %v after the previous one ended, expected at least %v",
					i, gap, interval)
			}
		}
	})

	t.Run("no overlap across restart", func(t *testing.T) {
		entered := make(chan int, 10)
		gate := make(chan struct{})
		var calls int32

		fetcher := FetcherFunc(func(context.Context) (netip.Addr, error) {
			entered <- int(atomic.AddInt32(&calls, 1))
			<-gate
			return addr("1.2.3.4"), nil
		})

		m := NewMonitor(NewDetector(fetcher), nil, nil)

		m.Start()
		<-entered

		// The first cycle is still blocked in its fetch.
		m.Stop()
		m.Start()

		select {
		case n := <-entered:
			t.Fatalf("cycle %d began while the first one was in flight", n)
		case <-time.After(50 * time.Millisecond):
		}

		close(gate)

		select {
		case n := <-entered:
			if n != 2 {
				t.Errorf("expected cycle 2, got %d", n)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("cycle of the restarted routine never ran")
		}

		m.Stop()
		m.Wait()
	})

	t.Run("configure while running", func(t *testing.T) {
		fetcher := newFeedFetcher()

		m := NewMonitor(NewDetector(fetcher), nil, nil)
		m.MinInterval = time.Millisecond
		m.Configure(2 * time.Millisecond)

		m.Start()

		deadline := time.Now().Add(5 * time.Second)
		for fetcher.Calls() < 3 {
			if time.Now().After(deadline) {
				t.Fatal("timed out waiting for cycles")
			}
			time.Sleep(time.Millisecond)
		}

		before := fetcher.Calls()
		if err := m.Configure(time.Hour); err != nil {
			t.Fatal("failed to configure:", err)
		}

		// The wait in progress may still use the old interval, so at most one
		// more cycle runs before the new interval applies.
		time.Sleep(50 * time.Millisecond)
		settled := fetcher.Calls()
		if settled > before+1 {
			t.Fatalf("%d cycles ran after the interval was raised", settled-before)
		}

		time.Sleep(100 * time.Millisecond)
		if after := fetcher.Calls(); after != settled {
			t.Errorf("%d cycles ran on the old interval", after-settled)
		}

		m.Stop()
		m.Wait()
	})
}
