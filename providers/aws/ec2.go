// Package aws implements the instance provider on EC2 using AWS SDK v2.
package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/yairfalse/tila/providers"
	"github.com/yairfalse/tila/types"
)

// notFoundCode is what EC2 returns for unknown or long-gone instance ids
const notFoundCode = "InvalidInstanceID.NotFound"

// managedTag marks instances launched by tila
const managedTag = "tila:managed"

func init() {
	providers.Register("aws", NewProviderFactory)
}

// NewProviderFactory creates an AWS provider from registry config
func NewProviderFactory(ctx context.Context, cfg providers.Config) (providers.InstanceAPI, error) {
	return NewProvider(ctx, cfg.Region)
}

// Provider implements providers.InstanceAPI on EC2
type Provider struct {
	client EC2API
	region string
}

// NewProvider loads the default AWS config for the region
func NewProvider(ctx context.Context, region string) (*Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Provider{client: ec2.NewFromConfig(cfg), region: region}, nil
}

// NewProviderWithClient wires an explicit EC2 client, used by tests
func NewProviderWithClient(client EC2API, region string) *Provider {
	return &Provider{client: client, region: region}
}

// Region returns the AWS region
func (p *Provider) Region() string {
	return p.region
}

// CreateInstance launches exactly one instance tagged with the logical name
func (p *Provider) CreateInstance(ctx context.Context, spec types.InstanceSpec) (string, error) {
	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(spec.AMI),
		InstanceType: ec2types.InstanceType(spec.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags: []ec2types.Tag{
				{Key: aws.String("Name"), Value: aws.String(spec.Name)},
				{Key: aws.String(managedTag), Value: aws.String("true")},
			},
		}},
	}
	if spec.KeyName != "" {
		input.KeyName = aws.String(spec.KeyName)
	}
	if spec.SubnetID != "" {
		input.SubnetId = aws.String(spec.SubnetID)
	}
	if len(spec.SecurityGroupIDs) > 0 {
		input.SecurityGroupIds = spec.SecurityGroupIDs
	}

	output, err := p.client.RunInstances(ctx, input)
	if err != nil {
		return "", &providers.ProviderError{Op: "run instances", Err: err}
	}
	if len(output.Instances) == 0 || aws.ToString(output.Instances[0].InstanceId) == "" {
		return "", providers.ErrNoInstanceID
	}
	return aws.ToString(output.Instances[0].InstanceId), nil
}

// DescribeState returns the lifecycle state of one instance. "Not found"
// reads as terminated so reconciliation treats both the same way.
func (p *Provider) DescribeState(ctx context.Context, instanceID string) (types.InstanceStatus, error) {
	instance, err := p.describeInstance(ctx, instanceID)
	if err != nil {
		if isNotFound(err) {
			return types.StatusTerminated, nil
		}
		return types.StatusUnknown, &providers.ProviderError{Op: "describe instance", ID: instanceID, Err: err}
	}
	if instance == nil || instance.State == nil {
		return types.StatusTerminated, nil
	}
	return convertState(instance.State.Name), nil
}

// DescribeType returns the live instance type, or "" when the instance
// no longer exists
func (p *Provider) DescribeType(ctx context.Context, instanceID string) (string, error) {
	instance, err := p.describeInstance(ctx, instanceID)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", &providers.ProviderError{Op: "describe instance", ID: instanceID, Err: err}
	}
	if instance == nil {
		return "", nil
	}
	return string(instance.InstanceType), nil
}

// Terminate requests termination; a "not found" means the instance is
// already gone and counts as success
func (p *Provider) Terminate(ctx context.Context, instanceID string) error {
	_, err := p.client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil && !isNotFound(err) {
		return &providers.ProviderError{Op: "terminate instance", ID: instanceID, Err: err}
	}
	return nil
}

// ListAllIDs returns every non-terminated instance id visible to the
// caller's credentials. Recently terminated instances stay visible to
// DescribeInstances for a while, so they are filtered out here.
func (p *Provider) ListAllIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	var nextToken *string

	for {
		output, err := p.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{NextToken: nextToken})
		if err != nil {
			return nil, &providers.ProviderError{Op: "describe instances", Err: err}
		}

		for _, reservation := range output.Reservations {
			for _, instance := range reservation.Instances {
				if instance.State != nil && instance.State.Name == ec2types.InstanceStateNameTerminated {
					continue
				}
				ids[aws.ToString(instance.InstanceId)] = struct{}{}
			}
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	return ids, nil
}

func (p *Provider) describeInstance(ctx context.Context, instanceID string) (*ec2types.Instance, error) {
	output, err := p.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return nil, err
	}
	for _, reservation := range output.Reservations {
		for _, instance := range reservation.Instances {
			if aws.ToString(instance.InstanceId) == instanceID {
				return &instance, nil
			}
		}
	}
	return nil, nil
}

func convertState(name ec2types.InstanceStateName) types.InstanceStatus {
	switch name {
	case ec2types.InstanceStateNamePending:
		return types.StatusPending
	case ec2types.InstanceStateNameRunning:
		return types.StatusRunning
	case ec2types.InstanceStateNameStopping, ec2types.InstanceStateNameStopped:
		return types.StatusStopped
	case ec2types.InstanceStateNameShuttingDown, ec2types.InstanceStateNameTerminated:
		return types.StatusTerminated
	default:
		return types.StatusUnknown
	}
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == notFoundCode
}
