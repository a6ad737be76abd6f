package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nu/cmd/nuctl/ui"
	"nu/pkg/nuclient"
)

func pressureCmd(addr *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pressure",
		Short: "Inspect resource pressure on a node",
	}
	cmd.AddCommand(pressureShowCmd(addr))
	return cmd
}

func pressureShowCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the target node's current pressure reading",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := nuclient.Dial(*addr)
			if err != nil {
				return err
			}
			defer c.Close()

			p, err := c.ShowPressure(cmd.Context())
			if err != nil {
				return err
			}
			if p.None() {
				fmt.Println(ui.SuccessMsg("no pressure"))
				return nil
			}
			if p.CPUPressure {
				fmt.Println(ui.WarnMsg("cpu pressure"))
			}
			if p.MemMBsToRelease > 0 {
				fmt.Println(ui.WarnMsg("memory pressure: %d MB to release", p.MemMBsToRelease))
			}
			return nil
		},
	}
}
