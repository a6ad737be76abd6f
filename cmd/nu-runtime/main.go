// Command nu-runtime is the node-local proclet runtime process. It takes
// exactly one argument: the path to its YAML RuntimeConfig file.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nu/internal/config"
	"nu/internal/logging"
	"nu/internal/runtime"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "nu-runtime <cfg_file>",
		Short:   "Node-local proclet runtime",
		Version: version,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := logging.Configure(cfg.LogLevel); err != nil {
				return err
			}

			rt, err := runtime.New(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runErr := rt.Run(ctx)
			if stopErr := rt.Stop(); stopErr != nil && runErr == nil {
				runErr = stopErr
			}
			return runErr
		},
	}
	return cmd
}
