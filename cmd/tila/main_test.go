package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yairfalse/tila/config"
)

func resetCreateFlags() {
	createName = ""
	createAMI = ""
	createType = ""
	createKey = ""
	createSubnet = ""
	createSecurityGroups = nil
}

func TestBuildSpecFlagsWinOverDefaults(t *testing.T) {
	resetCreateFlags()
	defer resetCreateFlags()

	createName = "web-1"
	createAMI = "ami-flag"
	createType = "t3.small"

	defaults := config.InstanceDefaults{
		InstanceType:     "t3.micro",
		AMI:              "ami-default",
		KeyName:          "deploy",
		SubnetID:         "subnet-default",
		SecurityGroupIDs: []string{"sg-default"},
	}

	spec := buildSpec(defaults)

	assert.Equal(t, "web-1", spec.Name)
	assert.Equal(t, "ami-flag", spec.AMI)
	assert.Equal(t, "t3.small", spec.InstanceType)
	// Unset flags fall back to config defaults.
	assert.Equal(t, "deploy", spec.KeyName)
	assert.Equal(t, "subnet-default", spec.SubnetID)
	assert.Equal(t, []string{"sg-default"}, spec.SecurityGroupIDs)
}

func TestBuildSpecSecurityGroupFlagsReplaceDefaults(t *testing.T) {
	resetCreateFlags()
	defer resetCreateFlags()

	createName = "web-1"
	createSecurityGroups = []string{"sg-1", "sg-2"}

	spec := buildSpec(config.InstanceDefaults{SecurityGroupIDs: []string{"sg-default"}})

	assert.Equal(t, []string{"sg-1", "sg-2"}, spec.SecurityGroupIDs)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"create", "list", "delete", "reconcile", "watch"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
