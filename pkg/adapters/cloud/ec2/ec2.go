package ec2

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"
)

// Client implements CloudProvider against AWS EC2: the network container is
// a VPC, subnets are EC2 subnets bound to an availability zone.
type Client struct {
	ec2    *ec2.Client
	logger *zap.Logger
}

// NewClient creates a new EC2 provisioning client. Credentials come from
// the default AWS chain (environment, shared config, instance role).
func NewClient(ctx context.Context, region string, logger *zap.Logger) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{
		ec2:    ec2.NewFromConfig(cfg),
		logger: logger,
	}, nil
}

// CreateNetwork provisions a VPC (ports.CloudProvider interface)
func (c *Client) CreateNetwork(ctx context.Context, cidr string) (string, error) {
	out, err := c.ec2.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock: aws.String(cidr),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create VPC %s: %w", cidr, err)
	}

	vpcID := aws.ToString(out.Vpc.VpcId)
	c.logger.Debug("VPC created",
		zap.String("vpc_id", vpcID),
		zap.String("cidr", cidr))

	return vpcID, nil
}

// CreateSubnet provisions a subnet inside a VPC (ports.CloudProvider interface)
func (c *Client) CreateSubnet(ctx context.Context, networkID, cidr, az string) (string, error) {
	out, err := c.ec2.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:            aws.String(networkID),
		CidrBlock:        aws.String(cidr),
		AvailabilityZone: aws.String(az),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create subnet %s in %s: %w", cidr, az, err)
	}

	subnetID := aws.ToString(out.Subnet.SubnetId)
	c.logger.Debug("subnet created",
		zap.String("subnet_id", subnetID),
		zap.String("vpc_id", networkID),
		zap.String("cidr", cidr),
		zap.String("az", az))

	return subnetID, nil
}

// TagResources applies tags to resources (ports.CloudProvider interface)
func (c *Client) TagResources(ctx context.Context, ids []string, tags map[string]string) error {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ec2Tags := make([]types.Tag, 0, len(tags))
	for _, k := range keys {
		ec2Tags = append(ec2Tags, types.Tag{
			Key:   aws.String(k),
			Value: aws.String(tags[k]),
		})
	}

	_, err := c.ec2.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: ids,
		Tags:      ec2Tags,
	})
	if err != nil {
		return fmt.Errorf("failed to tag resources %v: %w", ids, err)
	}

	return nil
}

// DescribeNetwork returns the VPC lifecycle state (ports.CloudProvider interface)
func (c *Client) DescribeNetwork(ctx context.Context, networkID string) (string, error) {
	out, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		VpcIds: []string{networkID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe VPC %s: %w", networkID, err)
	}
	if len(out.Vpcs) == 0 {
		return "", fmt.Errorf("VPC not found: %s", networkID)
	}

	return string(out.Vpcs[0].State), nil
}
