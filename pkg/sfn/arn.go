package sfn

import (
	"fmt"
	"strings"
)

// ARN is a parsed AWS resource name.
type ARN struct {
	Partition    string
	Service      string
	Region       string
	Account      string
	ResourceType string
	Resource     string
}

// ParseARN splits an ARN into its logical pieces, e.g.
// arn:aws:states:eu-west-1:123456789012:stateMachine:orders.
func ParseARN(raw string) (ARN, error) {
	parts := strings.SplitN(raw, ":", 6)
	if len(parts) != 6 || parts[0] != "arn" {
		return ARN{}, fmt.Errorf("invalid ARN %q", raw)
	}

	a := ARN{
		Partition: parts[1],
		Service:   parts[2],
		Region:    parts[3],
		Account:   parts[4],
		Resource:  parts[5],
	}

	if typ, res, ok := strings.Cut(a.Resource, "/"); ok {
		a.ResourceType, a.Resource = typ, res
	} else if typ, res, ok := strings.Cut(a.Resource, ":"); ok {
		a.ResourceType, a.Resource = typ, res
	}

	return a, nil
}

// ConsoleURL returns the AWS console deep link for a state machine ARN.
func ConsoleURL(machineARN, region string) string {
	return fmt.Sprintf(
		"https://console.aws.amazon.com/states/home?region=%s#/statemachines/view/%s",
		region, machineARN,
	)
}
