package peering

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NetworkID is an autonomous system number.
type NetworkID uint32

func (id NetworkID) String() string {
	return "AS" + strconv.FormatUint(uint64(id), 10)
}

// ParseNetworkID accepts "64500" or "AS64500" (any case).
func ParseNetworkID(raw string) (NetworkID, error) {
	s := strings.TrimSpace(raw)
	if len(s) > 2 && strings.EqualFold(s[:2], "as") {
		s = s[2:]
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, &InvalidInputError{Arg: raw}
	}
	return NetworkID(n), nil
}

// ParseNetworkIDs parses every argument or fails on the first invalid one.
func ParseNetworkIDs(args []string) ([]NetworkID, error) {
	out := make([]NetworkID, 0, len(args))
	for _, a := range args {
		id, err := ParseNetworkID(a)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// NetworkInfo is the registry's display data for one network.
type NetworkInfo struct {
	ID   NetworkID
	Name string
}

// Label is the column header used in reports.
func (n NetworkInfo) Label() string {
	return fmt.Sprintf("%s - %s", n.ID, n.Name)
}

// SortInfos orders infos by ascending ASN in place.
func SortInfos(infos []NetworkInfo) {
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
}

type LocationKind int

const (
	Exchange LocationKind = iota
	Facility
)

// Label is the leading column header for a table of this kind.
func (k LocationKind) Label() string {
	switch k {
	case Exchange:
		return "IXP"
	case Facility:
		return "Facility"
	default:
		return "Location"
	}
}

func (k LocationKind) String() string {
	switch k {
	case Exchange:
		return "exchange"
	case Facility:
		return "facility"
	default:
		return "unknown"
	}
}

// Location identifies an exchange or facility. The registry id disambiguates
// equal names; zero means the source had no id.
type Location struct {
	Kind LocationKind
	ID   int64
	Name string
}

// PresenceRecord is one raw registry row: network N is present at location L,
// optionally with an address. Address is kept exactly as the registry sent it.
type PresenceRecord struct {
	Network    NetworkID
	Location   Location
	Address    string
	HasAddress bool
}

// NetworkSet is an unordered set of requested networks.
type NetworkSet map[NetworkID]struct{}

func NewNetworkSet(ids ...NetworkID) NetworkSet {
	s := make(NetworkSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s NetworkSet) Contains(id NetworkID) bool {
	_, ok := s[id]
	return ok
}

func (s NetworkSet) Len() int { return len(s) }

// Sorted returns the members in ascending order.
func (s NetworkSet) Sorted() []NetworkID {
	out := make([]NetworkID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ExpandRequested builds the effective request. A single network that is not
// the default partner gets the default appended so there is something to
// compare against.
func ExpandRequested(ids []NetworkID, defaultID NetworkID) NetworkSet {
	set := NewNetworkSet(ids...)
	if set.Len() == 1 && defaultID != 0 && !set.Contains(defaultID) {
		set[defaultID] = struct{}{}
	}
	return set
}

// JoinIDs formats ids as "AS1, AS2".
func JoinIDs(ids []NetworkID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ", ")
}
