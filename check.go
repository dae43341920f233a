package main

import (
	"fmt"

	"git.unix.lgbt/diamondburned/ipmon/ipmon"
	"git.unix.lgbt/diamondburned/ipmon/ipmon/journal"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch the public IP address once and print it",
	Long: `check fetches the public IP address once and prints it, along with whether it
differs from the last address recorded in the journal. No notifier is run and
nothing is written to the journal.`,
	Args: cobra.NoArgs,
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

		m := ipmon.NewMonitor(detector, nil, nil)
		m.Restore(prev.Address)

		addr, err := m.CheckNow(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println(addr)

		switch {
		case !prev.Address.IsValid():
			fmt.Println("no previous address recorded")
		case detector.HasChanged(prev.Address, addr):
			fmt.Printf("changed from %s (recorded %s)\n", prev.Address, prev.Time.Format("2006-01-02 15:04:05"))
		default:
			fmt.Println("unchanged")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
