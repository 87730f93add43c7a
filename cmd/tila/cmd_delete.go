package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Terminate and untrack the named instance",
	Long: `Terminate the instance tracked under the logical name, wait for
the provider to confirm termination, then remove the record.
Deleting a name that is not tracked succeeds without touching the
provider.`,
	Example: `  tila delete web-1`,
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name := args[0]

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.reconciler.Sync(ctx); err != nil {
		return err
	}

	if err := rt.manager.Delete(ctx, name); err != nil {
		return err
	}
	fmt.Printf("%s deleted\n", name)
	return nil
}
