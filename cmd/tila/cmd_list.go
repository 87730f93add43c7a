package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/tila/state"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List tracked instances",
	Long:    `Print one line per tracked instance, in store order.`,
	Example: `  tila list`,
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	// Listing reads local state only; no provider calls.
	store, err := state.Open(cfg.StateFile, log.With().Str("component", "state").Logger())
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	for _, rec := range store.Records() {
		fmt.Printf("%s -> %s (%s)\n", rec.Name, rec.InstanceID, rec.Status)
	}
	return nil
}
