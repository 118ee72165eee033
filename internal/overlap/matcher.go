// Package overlap finds the locations a requested set of networks share.
package overlap

import (
	"sort"

	"peeringmatcher/internal/address"
	"peeringmatcher/internal/peering"
	"peeringmatcher/internal/presence"
)

// Match is one qualifying location with the validated addresses of every
// requested network present there.
type Match struct {
	Location  peering.Location
	Addresses map[peering.NetworkID][]string
}

// Result is ordered by location name.
type Result []Match

// Matcher applies a Policy to a presence index.
type Matcher struct {
	Policy Policy
	// OnReject, when set, is called for every non-empty address that fails
	// validation. It never affects qualification.
	OnReject func(loc peering.Location, id peering.NetworkID, raw string)
}

// Match returns the locations meeting the policy threshold. Networks outside
// requested are ignored entirely.
func (m Matcher) Match(idx *presence.Index, requested peering.NetworkSet) Result {
	out := Result{}
	if idx == nil || requested.Len() == 0 {
		return out
	}

	for _, loc := range idx.Locations() {
		rule := m.Policy.RuleFor(loc.Kind, requested.Len())

		present := make([]peering.NetworkID, 0, requested.Len())
		for _, id := range idx.Networks(loc) {
			if requested.Contains(id) {
				present = append(present, id)
			}
		}
		if !rule.Satisfied(len(present), requested.Len()) {
			continue
		}

		match := Match{Location: loc, Addresses: make(map[peering.NetworkID][]string, len(present))}
		for _, id := range present {
			raw, _ := idx.Addresses(loc, id)
			valid := make([]string, 0, len(raw))
			for _, a := range raw {
				norm, ok := address.Normalize(a)
				if !ok {
					if m.OnReject != nil && a != "" {
						m.OnReject(loc, id, a)
					}
					continue
				}
				valid = append(valid, norm)
			}
			match.Addresses[id] = valid
		}
		out = append(out, match)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Location, out[j].Location
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ID < b.ID
	})
	return out
}

// Present reports whether id has membership at the matched location.
func (m Match) Present(id peering.NetworkID) bool {
	_, ok := m.Addresses[id]
	return ok
}
