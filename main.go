package main

import (
	"context"
	"os"

	"git.unix.lgbt/diamondburned/ipmon/ipmon/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile  = config.DefaultPath()
	journalFile string
	scriptsDir  string
)

var rootCmd = &cobra.Command{
	Use:   "ipmon",
	Short: "Watch the public IP address and notify on changes",
	Long: `ipmon periodically fetches the public IP address of this host and runs the
configured notifiers whenever it changes. It can also install and control
itself as a host service through the scripts in its scripts directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", configFile, "configuration file path")
	flags.StringVarP(&journalFile, "journal", "j", "", "journal file path, overrides the configuration")
	flags.StringVarP(&scriptsDir, "scripts", "s", "", "scripts directory path, overrides the configuration")

	logrus.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
}

func main() {
	if handled, err := runAsService(); handled {
		if err != nil {
			logrus.Fatalln(err)
		}
		return
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logrus.Fatalln(err)
	}
}

// loadConfig opens the configuration store and applies the path overrides
// from the command line onto the returned configuration. The overrides are
// never written back.
func loadConfig() (*config.Store, config.Config, error) {
	if configFile == "" {
		return nil, config.Config{}, errors.New("missing --config path to configuration file")
	}

	store, err := config.Open(configFile)
	if err != nil {
		return nil, config.Config{}, errors.Wrap(err, "failed to load config")
	}

	cfg := store.Current()
	if journalFile != "" {
		cfg.JournalFile = journalFile
	}
	if scriptsDir != "" {
		cfg.ScriptsDir = scriptsDir
	}

	if cfg.ScriptsDir != "" {
		// Ensure that, if the scripts directory exists, that it is an actual
		// directory.
		if stat, err := os.Stat(cfg.ScriptsDir); err == nil && !stat.IsDir() {
			return nil, cfg, errors.Errorf("scripts path %s is not a directory", cfg.ScriptsDir)
		}
	}

	return store, cfg, nil
}

// parseArgs parses the flags of a command line that Execute never sees, such
// as the one the Windows service manager starts ipmon with.
func parseArgs(args []string) error {
	cmd, rest, err := rootCmd.Find(args)
	if err != nil {
		return err
	}

	return cmd.ParseFlags(rest)
}
