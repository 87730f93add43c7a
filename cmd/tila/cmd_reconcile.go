package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Prune stale records and report drift",
	Long: `Run one reconciliation pass:

1. Remove records whose instance no longer exists on the provider side
2. Report instance type drift for the records that remain

Drift is reported only, never auto-corrected.`,
	Example: `  tila reconcile
  tila reconcile --debug`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	pruned, err := rt.reconciler.Sync(ctx)
	if err != nil {
		return err
	}
	for _, rec := range pruned {
		fmt.Printf("pruned: %s (%s)\n", rec.Name, rec.InstanceID)
	}

	findings, err := rt.reconciler.CheckDrift(ctx)
	if err != nil {
		return err
	}
	printFindings(findings)

	fmt.Printf("reconcile complete: %d pruned, %d drift findings, %d tracked\n",
		len(pruned), len(findings), rt.store.Len())
	return nil
}
