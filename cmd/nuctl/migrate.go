package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"nu/cmd/nuctl/ui"
	"nu/internal/model"
	"nu/pkg/nuclient"
)

func migrateCmd(addr *string) *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "migrate <heap-id> [heap-id...]",
		Short: "Force-migrate one or more heaps to a destination node, bypassing the pressure monitor",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(dest) == "" {
				return fmt.Errorf("--dest is required")
			}
			ids := make([]model.HeapID, len(args))
			for i, a := range args {
				n, err := strconv.ParseUint(a, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid heap id %q: %w", a, err)
				}
				ids[i] = model.HeapID(n)
			}

			c, err := nuclient.Dial(*addr)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.ForceMigrate(cmd.Context(), ids, model.NodeAddr(dest)); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("migrated %d heap(s) to %s", len(ids), dest))
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "dest", "", "Destination node address")
	return cmd
}
