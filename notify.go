package main

import (
	"os"

	"git.unix.lgbt/diamondburned/ipmon/ipmon"
	"git.unix.lgbt/diamondburned/ipmon/ipmon/journal"
	"git.unix.lgbt/diamondburned/ipmon/ipmon/notify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Work with the configured notifiers",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test [name...]",
	Short: "Run the enabled notifiers once",
	Long: `test fetches the current address and runs the enabled notifiers once, as if the
address had changed from the last one recorded in the journal. If names are
given, only those notifiers are run.`,
	ValidArgs: notify.Names,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig()
		if err != nil {
			return err
		}

		prev, err := journal.ReadPreviousStateFromFile(cfg.JournalFile)
		if err != nil {
			return errors.Wrap(err, "failed to read journal")
		}

		detector := ipmon.NewDetector(ipmon.NewHTTPFetcher(cfg.URL))
		detector.SetTimeout(cfg.FetchTimeout())

		addr, err := detector.Fetch(cmd.Context())
		if err != nil {
			return err
		}

		// Failures only go to stderr; a test run must not touch the journal
		// the running monitor owns.
		d := ipmon.NewDispatcher(journal.NewHumanWriter(os.Stderr))
		notify.Register(d, cfg.Notifiers, nil, logrus.StandardLogger())

		if len(args) > 0 {
			keep := make(map[string]bool, len(args))
			for _, name := range args {
				keep[name] = true
			}

			for _, name := range d.Names() {
				if !keep[name] {
					d.Unregister(name)
				}
			}

			for _, name := range args {
				if !contains(d.Names(), name) {
					return errors.Errorf("notifier %q is not enabled", name)
				}
			}
		}

		if len(d.Names()) == 0 {
			return errors.New("no notifier is enabled")
		}

		if failed := d.Dispatch(cmd.Context(), prev.Address, addr); failed > 0 {
			return errors.Errorf("%d of %d notifiers failed", failed, len(d.Names()))
		}

		return nil
	},
}

func init() {
	notifyCmd.AddCommand(notifyTestCmd)
	rootCmd.AddCommand(notifyCmd)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
