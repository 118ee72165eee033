// Package registry fetches network and presence facts from PeeringDB, either
// over its REST API or from a local mirror database.
package registry

import (
	"context"
	"strconv"
	"strings"

	"peeringmatcher/internal/peering"
)

// Source is the registry boundary. Implementations return every row they
// have for the requested networks; threshold filtering happens in the
// overlap matcher, never here.
type Source interface {
	Name() string
	// ResolveNetworks returns one NetworkInfo per id or an
	// *peering.UnknownNetworkError naming every missing id.
	ResolveNetworks(ctx context.Context, ids []peering.NetworkID) ([]peering.NetworkInfo, error)
	FetchPresence(ctx context.Context, ids []peering.NetworkID, kind peering.LocationKind) ([]peering.PresenceRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// CheckResolved dedupes infos by id, keeps only requested ids, and fails
// with UnknownNetworkError when any requested id is missing.
func CheckResolved(ids []peering.NetworkID, infos []peering.NetworkInfo) ([]peering.NetworkInfo, error) {
	byID := make(map[peering.NetworkID]peering.NetworkInfo, len(infos))
	for _, info := range infos {
		if _, ok := byID[info.ID]; !ok {
			byID[info.ID] = info
		}
	}

	out := make([]peering.NetworkInfo, 0, len(ids))
	seen := make(map[peering.NetworkID]struct{}, len(ids))
	var missing []peering.NetworkID
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		info, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, info)
	}
	if len(missing) > 0 {
		return nil, peering.NewUnknownNetworkError(missing)
	}
	return out, nil
}

// exchangeRecords expands one exchange LAN row into presence records: one per
// non-empty address, or a single address-less record.
func exchangeRecords(asn peering.NetworkID, loc peering.Location, addrs ...*string) []peering.PresenceRecord {
	var out []peering.PresenceRecord
	for _, a := range addrs {
		if a == nil || strings.TrimSpace(*a) == "" {
			continue
		}
		out = append(out, peering.PresenceRecord{Network: asn, Location: loc, Address: *a, HasAddress: true})
	}
	if len(out) == 0 {
		out = append(out, peering.PresenceRecord{Network: asn, Location: loc})
	}
	return out
}

func int64IDs(ids []peering.NetworkID) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}

func joinIDs(ids []peering.NetworkID, sep string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatUint(uint64(id), 10))
	}
	return strings.Join(parts, sep)
}

func unavailable(source string, err error) error {
	if err == nil {
		return nil
	}
	return &peering.DataSourceUnavailableError{Source: source, Err: err}
}
