package main

import (
	"fmt"
	"os"
	"path/filepath"

	"git.unix.lgbt/diamondburned/ipmon/ipmon/exec"
	"git.unix.lgbt/diamondburned/ipmon/ipmon/service"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var serviceCmd = &cobra.Command{
	Use:   "service install|uninstall|start|stop|status|restart",
	Short: "Control ipmon as a host service",
	Long: `service runs the host's control script from the scripts directory with the
given operation and prints its output. Install, uninstall, start and stop fail
if the script exits with a non-zero code; status never does.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"install", "uninstall", "start", "stop", "status", "restart"},
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if cfg.ScriptsDir != "" {
			service.ScriptsDir = cfg.ScriptsDir
		}

		// Installed services run without our flags or environment, so the
		// scripts record the configuration file they should use.
		if abs, err := filepath.Abs(configFile); err == nil {
			os.Setenv("IPMON_CONFIG", abs)
		}

		ctrl, err := service.GetController()
		if err != nil {
			return err
		}

		var r exec.Result

		if args[0] == "restart" {
			r, err = service.Restart(cmd.Context(), ctrl)
		} else {
			op, perr := service.ParseOperation(args[0])
			if perr != nil {
				return perr
			}

			r, err = service.Do(cmd.Context(), ctrl, op)
		}

		var opErr *service.OperationError
		if err != nil && !errors.As(err, &opErr) {
			return err
		}

		if report := service.Report(ctrl, r); report != "" {
			fmt.Println(report)
		}

		if opErr != nil {
			os.Exit(1)
		}

		if args[0] == string(service.Status) {
			running := "no"
			if ctrl.Descriptor().Running(r.Output) {
				running = "yes"
			}
			fmt.Printf("%s running: %s\n", ctrl.Descriptor().ServiceName, running)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serviceCmd)
}
