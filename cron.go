package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Print crontab lines that keep ipmon running",
	Long: `cron prints crontab lines for hosts without a service manager. Since only one
ipmon can hold the journal, starting it every minute is harmless.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		crontimes := [...]string{
			"# Start ipmon immediately on startup.",
			"@reboot",
			"# Restart ipmon every minute if it died.",
			"* * * * *",
		}

		flags := []string{"-c", strconv.Quote(configFile)}
		if journalFile != "" {
			flags = append(flags, "-j", strconv.Quote(journalFile))
		}

		for _, crontime := range crontimes {
			if strings.HasPrefix(crontime, "#") {
				fmt.Println(crontime)
				continue
			}

			fmt.Println(crontime, os.Args[0], strings.Join(flags, " "), "run")
		}
	},
}

func init() {
	rootCmd.AddCommand(cronCmd)
}
