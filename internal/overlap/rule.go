package overlap

import (
	"fmt"
	"strconv"
	"strings"

	"peeringmatcher/internal/peering"
)

type ruleMode int

const (
	ruleUnset ruleMode = iota
	ruleExact
	ruleAtLeast
)

// ThresholdRule decides how many requested networks must share a location.
// The zero value is unset and resolves to the per-kind default in Policy.
type ThresholdRule struct {
	mode ruleMode
	min  int
}

// ExactIntersection requires every requested network.
func ExactIntersection() ThresholdRule { return ThresholdRule{mode: ruleExact} }

// AtLeast requires n distinct requested networks. n below 1 is treated as 1.
func AtLeast(n int) ThresholdRule {
	if n < 1 {
		n = 1
	}
	return ThresholdRule{mode: ruleAtLeast, min: n}
}

// ParseRule accepts "all"/"exact", a positive integer, or "" for unset.
func ParseRule(s string) (ThresholdRule, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "":
		return ThresholdRule{}, nil
	case "all", "exact":
		return ExactIntersection(), nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return ThresholdRule{}, fmt.Errorf("threshold rule must be \"all\" or a positive integer (got %q)", s)
	}
	return AtLeast(n), nil
}

func (r ThresholdRule) IsSet() bool { return r.mode != ruleUnset }

// Required is the number of distinct requested networks a location needs.
func (r ThresholdRule) Required(requested int) int {
	switch r.mode {
	case ruleAtLeast:
		return r.min
	default:
		return requested
	}
}

func (r ThresholdRule) Satisfied(present, requested int) bool {
	return present >= r.Required(requested)
}

func (r ThresholdRule) String() string {
	switch r.mode {
	case ruleExact:
		return "all"
	case ruleAtLeast:
		return strconv.Itoa(r.min)
	default:
		return "default"
	}
}

// Policy holds one rule per location kind.
type Policy struct {
	Exchange ThresholdRule
	Facility ThresholdRule
}

// DefaultPolicy requires all requested networks at exchanges and at least
// requestedCount networks at facilities.
func DefaultPolicy(requestedCount int) Policy {
	return Policy{
		Exchange: ExactIntersection(),
		Facility: AtLeast(requestedCount),
	}
}

// RuleFor returns the rule for kind. Unset rules fall back to exact
// intersection for exchanges and AtLeast(requested) for facilities.
func (p Policy) RuleFor(kind peering.LocationKind, requested int) ThresholdRule {
	switch kind {
	case peering.Facility:
		if p.Facility.IsSet() {
			return p.Facility
		}
		return AtLeast(requested)
	default:
		if p.Exchange.IsSet() {
			return p.Exchange
		}
		return ExactIntersection()
	}
}
