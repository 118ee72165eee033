// Package presence indexes raw registry rows by location.
package presence

import "peeringmatcher/internal/peering"

type entry struct {
	networks map[peering.NetworkID][]string
	order    []peering.NetworkID
}

// Index maps location -> network -> raw addresses. Locations and networks keep
// first-seen order and addresses keep record order. It is read-only after Build.
type Index struct {
	entries map[peering.Location]*entry
	order   []peering.Location
}

// Build registers every record. A record without an address, or with an
// unparseable one, still counts as presence.
func Build(records []peering.PresenceRecord) *Index {
	idx := &Index{entries: make(map[peering.Location]*entry)}
	for _, r := range records {
		e, ok := idx.entries[r.Location]
		if !ok {
			e = &entry{networks: make(map[peering.NetworkID][]string)}
			idx.entries[r.Location] = e
			idx.order = append(idx.order, r.Location)
		}
		addrs, seen := e.networks[r.Network]
		if !seen {
			e.order = append(e.order, r.Network)
			addrs = []string{}
		}
		if r.HasAddress {
			addrs = append(addrs, r.Address)
		}
		e.networks[r.Network] = addrs
	}
	return idx
}

// Len is the number of distinct locations.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.order)
}

// Locations returns locations in first-seen order.
func (idx *Index) Locations() []peering.Location {
	if idx == nil {
		return nil
	}
	return append([]peering.Location(nil), idx.order...)
}

// Has reports whether any record named loc.
func (idx *Index) Has(loc peering.Location) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.entries[loc]
	return ok
}

// Networks returns the networks present at loc in first-seen order.
func (idx *Index) Networks(loc peering.Location) []peering.NetworkID {
	if idx == nil {
		return nil
	}
	e, ok := idx.entries[loc]
	if !ok {
		return nil
	}
	return append([]peering.NetworkID(nil), e.order...)
}

// Addresses returns the raw addresses recorded for (loc, id), and whether the
// network is present there at all.
func (idx *Index) Addresses(loc peering.Location, id peering.NetworkID) ([]string, bool) {
	if idx == nil {
		return nil, false
	}
	e, ok := idx.entries[loc]
	if !ok {
		return nil, false
	}
	addrs, ok := e.networks[id]
	if !ok {
		return nil, false
	}
	return append([]string(nil), addrs...), true
}
