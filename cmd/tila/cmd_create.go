package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yairfalse/tila/config"
	"github.com/yairfalse/tila/types"
)

var (
	createName           string
	createAMI            string
	createType           string
	createKey            string
	createSubnet         string
	createSecurityGroups []string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create or adopt the named instance",
	Long: `Create a new instance, or adopt the one already tracked under
the logical name. Stale records are pruned and drift is reported
before the create decision, so repeated invocations with the same
name converge to exactly one live instance.`,
	Example: `  tila create --name web-1 --ami ami-0abc123 --type t3.micro
  tila create --name web-1 --ami ami-0abc123 --type t3.micro \
    --subnet subnet-1 --security-group sg-1 --security-group sg-2`,
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVar(&createName, "name", "", "Logical instance name")
	createCmd.Flags().StringVar(&createAMI, "ami", "", "AMI id")
	createCmd.Flags().StringVar(&createType, "type", "", "Instance type")
	createCmd.Flags().StringVar(&createKey, "key", "", "Key pair name")
	createCmd.Flags().StringVar(&createSubnet, "subnet", "", "Subnet id")
	createCmd.Flags().StringArrayVar(&createSecurityGroups, "security-group", nil, "Security group id (repeatable)")

	_ = createCmd.MarkFlagRequired("name")
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.reconciler.Sync(ctx); err != nil {
		return err
	}
	findings, err := rt.reconciler.CheckDrift(ctx)
	if err != nil {
		return err
	}
	printFindings(findings)

	rec, err := rt.manager.CreateOrAdopt(ctx, buildSpec(cfg.Defaults))
	if err != nil {
		return err
	}

	fmt.Printf("%s -> %s (%s)\n", rec.Name, rec.InstanceID, rec.Status)
	return nil
}

// buildSpec merges create flags over the configured defaults
func buildSpec(defaults config.InstanceDefaults) types.InstanceSpec {
	spec := types.InstanceSpec{
		Name:             createName,
		InstanceType:     createType,
		AMI:              createAMI,
		KeyName:          createKey,
		SubnetID:         createSubnet,
		SecurityGroupIDs: createSecurityGroups,
	}
	if spec.InstanceType == "" {
		spec.InstanceType = defaults.InstanceType
	}
	if spec.AMI == "" {
		spec.AMI = defaults.AMI
	}
	if spec.KeyName == "" {
		spec.KeyName = defaults.KeyName
	}
	if spec.SubnetID == "" {
		spec.SubnetID = defaults.SubnetID
	}
	if len(spec.SecurityGroupIDs) == 0 {
		spec.SecurityGroupIDs = defaults.SecurityGroupIDs
	}
	return spec
}

func printFindings(findings []types.DriftFinding) {
	for _, f := range findings {
		fmt.Printf("drift: %s (%s) desired %s, actual %s\n", f.Name, f.InstanceID, f.Desired, f.Actual)
	}
}
