// Package sfn fetches Step Functions state machines and their executions
// for one AWS profile and region. Credential resolution is delegated to
// the SDK's shared config chain; callers inject the narrow API interfaces
// below, so tests run against fakes instead of the network.
package sfn

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	tagging "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	awssfn "github.com/aws/aws-sdk-go-v2/service/sfn"
)

// StateMachinesAPI is the slice of the Step Functions client used to list
// state machines.
type StateMachinesAPI interface {
	ListStateMachines(
		ctx context.Context,
		params *awssfn.ListStateMachinesInput,
		optFns ...func(*awssfn.Options),
	) (*awssfn.ListStateMachinesOutput, error)
}

// ExecutionsAPI is the slice of the Step Functions client used to list
// executions of a single state machine.
type ExecutionsAPI interface {
	ListExecutions(
		ctx context.Context,
		params *awssfn.ListExecutionsInput,
		optFns ...func(*awssfn.Options),
	) (*awssfn.ListExecutionsOutput, error)
}

// ResourcesAPI is the slice of the resource groups tagging client used to
// resolve state machines by tag.
type ResourcesAPI interface {
	GetResources(
		ctx context.Context,
		params *tagging.GetResourcesInput,
		optFns ...func(*tagging.Options),
	) (*tagging.GetResourcesOutput, error)
}

// Session bundles the API clients for one (profile, region) pair.
type Session struct {
	Profile string
	Region  string

	Machines   StateMachinesAPI
	Executions ExecutionsAPI
	Resources  ResourcesAPI
}

// NewSession resolves the profile through the SDK's shared config chain
// and builds the service clients. An empty region keeps the profile's
// configured default region.
func NewSession(ctx context.Context, profile, region string) (*Session, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithSharedConfigProfile(profile),
	}

	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for profile %q: %w", profile, err)
	}

	sfnClient := awssfn.NewFromConfig(cfg)

	return &Session{
		Profile:    profile,
		Region:     cfg.Region,
		Machines:   sfnClient,
		Executions: sfnClient,
		Resources:  tagging.NewFromConfig(cfg),
	}, nil
}
