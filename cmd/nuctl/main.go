// Command nuctl is the operator tool for a running nu-runtime process: it
// talks to the admin endpoint over the same RPC path application code
// uses, addressed by a reserved method-name prefix rather than a second
// protocol.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:     "nuctl",
		Short:   "Admin CLI for a nu-runtime node",
		Version: version,
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:7200", "Target node's admin address")

	cmd.AddCommand(heapsCmd(&addr))
	cmd.AddCommand(pressureCmd(&addr))
	cmd.AddCommand(migrateCmd(&addr))
	return cmd
}
