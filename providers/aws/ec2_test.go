package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/tila/providers"
	"github.com/yairfalse/tila/types"
)

// mockEC2Client implements EC2API for testing.
type mockEC2Client struct {
	runInstancesFunc       func(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	describeInstancesFunc  func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	terminateInstancesFunc func(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

func (m *mockEC2Client) RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	if m.runInstancesFunc != nil {
		return m.runInstancesFunc(ctx, params, optFns...)
	}
	return &ec2.RunInstancesOutput{}, nil
}

func (m *mockEC2Client) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if m.describeInstancesFunc != nil {
		return m.describeInstancesFunc(ctx, params, optFns...)
	}
	return &ec2.DescribeInstancesOutput{}, nil
}

func (m *mockEC2Client) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	if m.terminateInstancesFunc != nil {
		return m.terminateInstancesFunc(ctx, params, optFns...)
	}
	return &ec2.TerminateInstancesOutput{}, nil
}

func notFoundErr() error {
	return &smithy.GenericAPIError{Code: notFoundCode, Message: "does not exist"}
}

func testSpec() types.InstanceSpec {
	return types.InstanceSpec{
		Name:             "web-1",
		InstanceType:     "t3.micro",
		AMI:              "ami-0abc123",
		KeyName:          "deploy",
		SubnetID:         "subnet-1",
		SecurityGroupIDs: []string{"sg-1", "sg-2"},
	}
}

func TestCreateInstance(t *testing.T) {
	var captured *ec2.RunInstancesInput
	mock := &mockEC2Client{
		runInstancesFunc: func(_ context.Context, params *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
			captured = params
			return &ec2.RunInstancesOutput{
				Instances: []ec2types.Instance{{InstanceId: aws.String("i-new")}},
			}, nil
		},
	}

	p := NewProviderWithClient(mock, "us-east-1")
	id, err := p.CreateInstance(context.Background(), testSpec())

	require.NoError(t, err)
	assert.Equal(t, "i-new", id)

	require.NotNil(t, captured)
	assert.Equal(t, "ami-0abc123", aws.ToString(captured.ImageId))
	assert.Equal(t, ec2types.InstanceType("t3.micro"), captured.InstanceType)
	assert.Equal(t, []string{"sg-1", "sg-2"}, captured.SecurityGroupIds)
	assert.Equal(t, int32(1), aws.ToInt32(captured.MinCount))
	assert.Equal(t, int32(1), aws.ToInt32(captured.MaxCount))

	require.Len(t, captured.TagSpecifications, 1)
	tags := map[string]string{}
	for _, tag := range captured.TagSpecifications[0].Tags {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	assert.Equal(t, "web-1", tags["Name"])
	assert.Equal(t, "true", tags[managedTag])
}

func TestCreateInstanceNoID(t *testing.T) {
	mock := &mockEC2Client{
		runInstancesFunc: func(_ context.Context, _ *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
			return &ec2.RunInstancesOutput{}, nil
		},
	}

	p := NewProviderWithClient(mock, "us-east-1")
	_, err := p.CreateInstance(context.Background(), testSpec())

	assert.ErrorIs(t, err, providers.ErrNoInstanceID)
}

func TestCreateInstanceProviderError(t *testing.T) {
	mock := &mockEC2Client{
		runInstancesFunc: func(_ context.Context, _ *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
			return nil, errors.New("UnauthorizedOperation")
		},
	}

	p := NewProviderWithClient(mock, "us-east-1")
	_, err := p.CreateInstance(context.Background(), testSpec())

	var provErr *providers.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "run instances", provErr.Op)
}

func TestDescribeState(t *testing.T) {
	tests := []struct {
		name  string
		state ec2types.InstanceStateName
		want  types.InstanceStatus
	}{
		{"pending", ec2types.InstanceStateNamePending, types.StatusPending},
		{"running", ec2types.InstanceStateNameRunning, types.StatusRunning},
		{"stopped", ec2types.InstanceStateNameStopped, types.StatusStopped},
		{"shutting down", ec2types.InstanceStateNameShuttingDown, types.StatusTerminated},
		{"terminated", ec2types.InstanceStateNameTerminated, types.StatusTerminated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockEC2Client{
				describeInstancesFunc: func(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
					return &ec2.DescribeInstancesOutput{
						Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{{
							InstanceId: aws.String("i-1"),
							State:      &ec2types.InstanceState{Name: tt.state},
						}}}},
					}, nil
				},
			}

			p := NewProviderWithClient(mock, "us-east-1")
			status, err := p.DescribeState(context.Background(), "i-1")

			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestDescribeStateNotFoundIsTerminated(t *testing.T) {
	mock := &mockEC2Client{
		describeInstancesFunc: func(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			return nil, notFoundErr()
		},
	}

	p := NewProviderWithClient(mock, "us-east-1")
	status, err := p.DescribeState(context.Background(), "i-gone")

	require.NoError(t, err)
	assert.Equal(t, types.StatusTerminated, status)
}

func TestDescribeType(t *testing.T) {
	mock := &mockEC2Client{
		describeInstancesFunc: func(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			return &ec2.DescribeInstancesOutput{
				Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{{
					InstanceId:   aws.String("i-1"),
					InstanceType: ec2types.InstanceTypeT3Small,
				}}}},
			}, nil
		},
	}

	p := NewProviderWithClient(mock, "us-east-1")
	liveType, err := p.DescribeType(context.Background(), "i-1")

	require.NoError(t, err)
	assert.Equal(t, "t3.small", liveType)
}

func TestDescribeTypeGoneInstance(t *testing.T) {
	mock := &mockEC2Client{
		describeInstancesFunc: func(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			return nil, notFoundErr()
		},
	}

	p := NewProviderWithClient(mock, "us-east-1")
	liveType, err := p.DescribeType(context.Background(), "i-gone")

	require.NoError(t, err)
	assert.Equal(t, "", liveType)
}

func TestTerminateIdempotent(t *testing.T) {
	calls := 0
	mock := &mockEC2Client{
		terminateInstancesFunc: func(_ context.Context, _ *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
			calls++
			return nil, notFoundErr()
		},
	}

	p := NewProviderWithClient(mock, "us-east-1")
	require.NoError(t, p.Terminate(context.Background(), "i-gone"))
	assert.Equal(t, 1, calls)
}

func TestTerminateProviderError(t *testing.T) {
	mock := &mockEC2Client{
		terminateInstancesFunc: func(_ context.Context, _ *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
			return nil, errors.New("OperationNotPermitted")
		},
	}

	p := NewProviderWithClient(mock, "us-east-1")
	err := p.Terminate(context.Background(), "i-protected")

	var provErr *providers.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "i-protected", provErr.ID)
}

func TestListAllIDs(t *testing.T) {
	pages := []*ec2.DescribeInstancesOutput{
		{
			Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{
				{InstanceId: aws.String("i-1"), State: &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning}},
				{InstanceId: aws.String("i-dead"), State: &ec2types.InstanceState{Name: ec2types.InstanceStateNameTerminated}},
			}}},
			NextToken: aws.String("page2"),
		},
		{
			Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{
				{InstanceId: aws.String("i-2"), State: &ec2types.InstanceState{Name: ec2types.InstanceStateNamePending}},
			}}},
		},
	}

	call := 0
	mock := &mockEC2Client{
		describeInstancesFunc: func(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			if call == 1 {
				require.Equal(t, "page2", aws.ToString(params.NextToken))
			}
			page := pages[call]
			call++
			return page, nil
		},
	}

	p := NewProviderWithClient(mock, "us-east-1")
	ids, err := p.ListAllIDs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"i-1": {}, "i-2": {}}, ids)
}
