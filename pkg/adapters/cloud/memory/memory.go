package memory

import (
	"context"
	"fmt"
	"sync"
)

// CreatedSubnet records one CreateSubnet call the fake has served.
type CreatedSubnet struct {
	SubnetID  string
	NetworkID string
	CIDR      string
	AZ        string
}

// Provider implements CloudProvider in memory. This is for testing purposes
// only: it records every call and can be scripted to fail at chosen points.
type Provider struct {
	mu sync.Mutex

	// Scripted failures. When FailSubnetCIDR matches a CreateSubnet call,
	// SubnetErr is returned.
	NetworkErr     error
	FailSubnetCIDR string
	SubnetErr      error
	TagErr         error
	DescribeErr    error

	// NetworkState is what DescribeNetwork reports. Defaults to available.
	NetworkState string

	networks map[string]string // id -> cidr
	subnets  []CreatedSubnet
	tags     map[string]map[string]string // resource id -> tags

	// Call counters.
	CreateNetworkCalls int
	CreateSubnetCalls  int
	TagCalls           int
	DescribeCalls      int

	nextNetwork int
	nextSubnet  int
}

// NewProvider creates a new in-memory cloud provider
func NewProvider() *Provider {
	return &Provider{
		NetworkState: "available",
		networks:     make(map[string]string),
		tags:         make(map[string]map[string]string),
	}
}

// CreateNetwork provisions a fake network container (ports.CloudProvider interface)
func (p *Provider) CreateNetwork(ctx context.Context, cidr string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.CreateNetworkCalls++
	if p.NetworkErr != nil {
		return "", p.NetworkErr
	}

	p.nextNetwork++
	id := fmt.Sprintf("vpc-%04d", p.nextNetwork)
	p.networks[id] = cidr
	return id, nil
}

// CreateSubnet provisions a fake subnet (ports.CloudProvider interface)
func (p *Provider) CreateSubnet(ctx context.Context, networkID, cidr, az string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.CreateSubnetCalls++
	if p.SubnetErr != nil && (p.FailSubnetCIDR == "" || p.FailSubnetCIDR == cidr) {
		return "", p.SubnetErr
	}
	if _, ok := p.networks[networkID]; !ok {
		return "", fmt.Errorf("network not found: %s", networkID)
	}

	p.nextSubnet++
	id := fmt.Sprintf("subnet-%04d", p.nextSubnet)
	p.subnets = append(p.subnets, CreatedSubnet{
		SubnetID:  id,
		NetworkID: networkID,
		CIDR:      cidr,
		AZ:        az,
	})
	return id, nil
}

// TagResources records tags for resources (ports.CloudProvider interface)
func (p *Provider) TagResources(ctx context.Context, ids []string, tags map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.TagCalls++
	if p.TagErr != nil {
		return p.TagErr
	}

	for _, id := range ids {
		if p.tags[id] == nil {
			p.tags[id] = make(map[string]string)
		}
		for k, v := range tags {
			p.tags[id][k] = v
		}
	}
	return nil
}

// DescribeNetwork reports the scripted network state (ports.CloudProvider interface)
func (p *Provider) DescribeNetwork(ctx context.Context, networkID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.DescribeCalls++
	if p.DescribeErr != nil {
		return "", p.DescribeErr
	}
	if _, ok := p.networks[networkID]; !ok {
		return "", fmt.Errorf("network not found: %s", networkID)
	}
	return p.NetworkState, nil
}

// Networks returns the created network ids and CIDRs. Test helper.
func (p *Provider) Networks() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]string, len(p.networks))
	for k, v := range p.networks {
		out[k] = v
	}
	return out
}

// Subnets returns the created subnets in creation order. Test helper.
func (p *Provider) Subnets() []CreatedSubnet {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]CreatedSubnet(nil), p.subnets...)
}

// Tags returns the tags recorded for a resource. Test helper.
func (p *Provider) Tags(id string) map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]string, len(p.tags[id]))
	for k, v := range p.tags[id] {
		out[k] = v
	}
	return out
}
