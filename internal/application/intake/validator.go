package intake

import (
	"fmt"
	"net/netip"

	"github.com/aescanero/netprov/pkg/domain"
)

// Validator validates provisioning specs for syntactic and structural
// correctness: exact-network CIDRs, subnet containment and non-overlap.
//
// Schema-level checks (required object shape, field types) are enforced at
// the API boundary when the body is bound into domain.ProvisionSpec; the
// validator only sees well-typed specs.
type Validator struct{}

// NewValidator creates a new spec validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a provisioning spec. It stops at the first violation and
// returns a *domain.ValidationError identifying the offending field, index
// and value. Subnets are accepted in input order; each subnet is checked for
// overlap pairwise against the subnets accepted before it.
func (v *Validator) Validate(spec *domain.ProvisionSpec) error {
	if spec == nil {
		return &domain.ValidationError{Field: "request", Message: "missing request body"}
	}

	if spec.VPC.CIDR == "" {
		return &domain.ValidationError{Field: "vpc.cidr", Message: "missing 'vpc.cidr'"}
	}

	vpcNet, err := parseExactNetwork(spec.VPC.CIDR)
	if err != nil {
		return &domain.ValidationError{
			Field:   "vpc.cidr",
			Value:   spec.VPC.CIDR,
			Message: fmt.Sprintf("invalid VPC CIDR '%s': %v", spec.VPC.CIDR, err),
		}
	}

	if len(spec.Subnets) == 0 {
		return &domain.ValidationError{Field: "subnets", Message: "missing 'subnets' array"}
	}
	if len(spec.Subnets) > domain.MaxSubnets {
		return &domain.ValidationError{
			Field:   "subnets",
			Message: fmt.Sprintf("too many subnets: %d (max %d)", len(spec.Subnets), domain.MaxSubnets),
		}
	}

	accepted := make([]netip.Prefix, 0, len(spec.Subnets))
	for i, s := range spec.Subnets {
		if s.CIDR == "" {
			return &domain.ValidationError{
				Field:   fmt.Sprintf("subnets[%d].cidr", i),
				Message: fmt.Sprintf("subnet at index %d missing 'cidr'", i),
			}
		}
		if s.AZ == "" {
			return &domain.ValidationError{
				Field:   fmt.Sprintf("subnets[%d].az", i),
				Message: fmt.Sprintf("subnet at index %d missing 'az'", i),
			}
		}

		subNet, err := parseExactNetwork(s.CIDR)
		if err != nil {
			return &domain.ValidationError{
				Field:   fmt.Sprintf("subnets[%d].cidr", i),
				Value:   s.CIDR,
				Message: fmt.Sprintf("invalid subnet CIDR '%s' at index %d: %v", s.CIDR, i, err),
			}
		}

		if !containsPrefix(vpcNet, subNet) {
			return &domain.ValidationError{
				Field:   fmt.Sprintf("subnets[%d].cidr", i),
				Value:   s.CIDR,
				Message: fmt.Sprintf("subnet CIDR '%s' is not within VPC CIDR '%s'", s.CIDR, spec.VPC.CIDR),
			}
		}

		// Quadratic against the accepted set; fine under MaxSubnets.
		for _, prior := range accepted {
			if subNet.Overlaps(prior) {
				return &domain.ValidationError{
					Field:   fmt.Sprintf("subnets[%d].cidr", i),
					Value:   s.CIDR,
					Message: fmt.Sprintf("subnet CIDR '%s' overlaps with '%s'", s.CIDR, prior),
				}
			}
		}
		accepted = append(accepted, subNet)
	}

	return nil
}

// parseExactNetwork parses a CIDR that must be an exact network address,
// i.e. with no host bits set.
func parseExactNetwork(cidr string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return netip.Prefix{}, err
	}
	if p != p.Masked() {
		return netip.Prefix{}, fmt.Errorf("host bits set")
	}
	return p, nil
}

// containsPrefix reports whether sub is fully contained within network.
// Both prefixes are already masked.
func containsPrefix(network, sub netip.Prefix) bool {
	return sub.Bits() >= network.Bits() && network.Contains(sub.Addr())
}
