package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.unix.lgbt/diamondburned/ipmon/ipmon"
	"git.unix.lgbt/diamondburned/ipmon/ipmon/config"
	"git.unix.lgbt/diamondburned/ipmon/ipmon/journal"
	"git.unix.lgbt/diamondburned/ipmon/ipmon/notify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Monitor the public IP address until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return run(ctx)
	},
}

var lockWait time.Duration

func init() {
	runCmd.Flags().DurationVarP(&lockWait, "wait", "w", 0,
		"wait this long for another ipmon to release the journal instead of exiting")
	rootCmd.AddCommand(runCmd)
}

// run monitors until ctx is canceled.
func run(ctx context.Context) error {
	store, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	j, err := acquireJournal(ctx, cfg.JournalFile)
	if err != nil {
		if errors.Is(err, journal.ErrLockedElsewhere) {
			// Non-fatal error.
			logrus.Println("ipmon is already running")
			return nil
		}

		return errors.Wrap(err, "failed to acquire journal lock")
	}
	defer j.Close()

	// Read the state before anything new is written.
	prev, err := ipmon.ReadPreviousState(j)
	if err != nil {
		return errors.Wrap(err, "failed to read previous state")
	}

	journaler := journal.MultiReadWriter(j, journal.NewHumanWriter(os.Stderr))
	journaler.Write(&ipmon.EventAcquired{PID: os.Getpid()})

	fetcher := ipmon.NewHTTPFetcher(cfg.URL)
	detector := ipmon.NewDetector(fetcher)
	dispatcher := ipmon.NewDispatcher(journaler)

	m := ipmon.NewMonitor(detector, dispatcher, journaler)
	m.Restore(prev.Address)

	apply := func(cfg config.Config) error {
		fetcher.SetURL(cfg.URL)
		detector.SetTimeout(cfg.FetchTimeout())
		notify.Register(dispatcher, cfg.Notifiers, nil, logrus.StandardLogger())
		return m.Configure(cfg.Interval())
	}

	if err := apply(cfg); err != nil {
		return errors.Wrap(err, "failed to apply config")
	}

	store.OnApply(apply)

	config.TryWatch(ctx, store, journaler)

	m.Start()
	<-ctx.Done()

	m.Stop()
	m.Wait()

	return nil
}

func acquireJournal(ctx context.Context, path string) (*journal.FileLockJournaler, error) {
	if lockWait <= 0 {
		return journal.NewFileLockJournaler(path)
	}

	ctx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	j, err := journal.NewFileLockJournalerWait(ctx, path)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, journal.ErrLockedElsewhere
	}

	return j, err
}
