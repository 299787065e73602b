package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-drift/hostbridge/internal/demo"
	"github.com/go-drift/hostbridge/pkg/bridge"
	"github.com/go-drift/hostbridge/pkg/host"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Tick the demo app headlessly and print its node tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ticks, _ := cmd.Flags().GetInt("ticks")
		asJSON, _ := cmd.Flags().GetBool("json")

		rt := bridge.New(bridge.WithLogger(newLogger(cfg)))
		world := host.NewWorld()
		demo.Setup(world)
		if _, err := rt.Mount(world, demo.App); err != nil {
			return err
		}
		for range ticks {
			demo.Step(world)
			if _, err := rt.Tick(world); err != nil {
				return err
			}
		}

		var snap bridge.Snapshot
		if err := rt.Cell().Scope(world, func() error {
			snap = rt.Snapshot()
			return nil
		}); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		for _, root := range snap.Roots {
			fmt.Fprintf(out, "root %s (owner %s)\n", root.Entity, root.Owner)
			fmt.Fprint(out, root.Tree)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.Flags().Int("ticks", 1, "Host ticks to run before printing")
	treeCmd.Flags().Bool("json", false, "Print the snapshot as JSON")
}
