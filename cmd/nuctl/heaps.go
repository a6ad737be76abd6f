package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"nu/cmd/nuctl/ui"
	"nu/pkg/nuclient"
)

func heapsCmd(addr *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heaps",
		Short: "Inspect heaps resident on a node",
	}
	cmd.AddCommand(heapsListCmd(addr))
	return cmd
}

func heapsListCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List heaps resident on the target node",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := nuclient.Dial(*addr)
			if err != nil {
				return err
			}
			defer c.Close()

			heaps, err := c.ListHeaps(cmd.Context())
			if err != nil {
				return err
			}
			if len(heaps) == 0 {
				fmt.Println(ui.Muted("no heaps resident"))
				return nil
			}

			rows := make([][]string, len(heaps))
			for i, h := range heaps {
				rows[i] = []string{
					strconv.FormatUint(uint64(h.ID), 10),
					h.State,
					strconv.FormatUint(uint64(h.MemMBs), 10),
					strconv.FormatInt(h.InFlight, 10),
				}
			}
			fmt.Println(ui.Table([]string{"HEAP ID", "STATE", "MEM MBS", "IN FLIGHT"}, rows))
			return nil
		},
	}
}
