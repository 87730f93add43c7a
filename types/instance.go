package types

import (
	"errors"
	"fmt"
)

// InstanceStatus is the last observed lifecycle state of an instance
type InstanceStatus string

const (
	StatusPending    InstanceStatus = "pending"
	StatusRunning    InstanceStatus = "running"
	StatusStopped    InstanceStatus = "stopped"
	StatusTerminated InstanceStatus = "terminated"
	StatusUnknown    InstanceStatus = "unknown"
)

// IsRunning reports whether the instance reached the running state
func (s InstanceStatus) IsRunning() bool {
	return s == StatusRunning
}

// IsTerminated reports whether the instance is gone on the provider side
func (s InstanceStatus) IsTerminated() bool {
	return s == StatusTerminated
}

// InstanceRecord is one tracked instance in the state file.
// Desired configuration fields are set at creation time and never
// rewritten; only Status is updated after provider queries.
type InstanceRecord struct {
	Name             string         `json:"Name"`
	InstanceID       string         `json:"InstanceId"`
	Status           InstanceStatus `json:"Status"`
	InstanceType     string         `json:"InstanceType"`
	AMI              string         `json:"AMI_ID"`
	KeyName          string         `json:"KeyName"`
	SubnetID         string         `json:"SubnetId"`
	SecurityGroupIDs []string       `json:"SecurityGroupIds"`
}

// InstanceSpec defines the desired configuration for a new instance
type InstanceSpec struct {
	Name             string   `yaml:"name" json:"name"`
	InstanceType     string   `yaml:"instance_type" json:"instance_type"`
	AMI              string   `yaml:"ami" json:"ami"`
	KeyName          string   `yaml:"key_name,omitempty" json:"key_name,omitempty"`
	SubnetID         string   `yaml:"subnet_id,omitempty" json:"subnet_id,omitempty"`
	SecurityGroupIDs []string `yaml:"security_group_ids,omitempty" json:"security_group_ids,omitempty"`
}

// ErrInvalidSpec marks a spec that fails validation
var ErrInvalidSpec = errors.New("invalid instance spec")

// Validate ensures the spec carries every required parameter
func (s InstanceSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSpec)
	}
	if s.AMI == "" {
		return fmt.Errorf("%w: ami is required", ErrInvalidSpec)
	}
	if s.InstanceType == "" {
		return fmt.Errorf("%w: instance type is required", ErrInvalidSpec)
	}
	return nil
}

// Record converts the spec into a fresh record with the given provider id
func (s InstanceSpec) Record(instanceID string, status InstanceStatus) InstanceRecord {
	return InstanceRecord{
		Name:             s.Name,
		InstanceID:       instanceID,
		Status:           status,
		InstanceType:     s.InstanceType,
		AMI:              s.AMI,
		KeyName:          s.KeyName,
		SubnetID:         s.SubnetID,
		SecurityGroupIDs: append([]string(nil), s.SecurityGroupIDs...),
	}
}

// DriftFinding reports a divergence between a record's desired instance
// type and the type observed on the provider side
type DriftFinding struct {
	Name       string `json:"name"`
	InstanceID string `json:"instance_id"`
	Desired    string `json:"desired"`
	Actual     string `json:"actual"`
}
