package registry

import (
	"context"

	"peeringmatcher/internal/db"
	"peeringmatcher/internal/peering"
	"peeringmatcher/internal/sqlcgen"
)

// Queries is the minimal DB interface the Postgres source needs.
//
// NOTE: *sqlcgen.Queries satisfies this.
type Queries interface {
	ListNetworksByASN(ctx context.Context, asns []int64) ([]sqlcgen.Network, error)
	ListExchangePresence(ctx context.Context, asns []int64) ([]sqlcgen.ExchangePresence, error)
	ListFacilityPresence(ctx context.Context, asns []int64) ([]sqlcgen.FacilityPresence, error)
}

// PostgresSource reads a django-peeringdb mirror in PostgreSQL.
type PostgresSource struct {
	pool *db.Pool
	q    Queries
}

func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresSource, error) {
	pool, err := db.Open(ctx, databaseURL)
	if err != nil {
		return nil, unavailable("postgres", err)
	}
	return &PostgresSource{pool: pool, q: pool.Queries()}, nil
}

// NewPostgresSource wraps existing queries; the caller owns the connection.
func NewPostgresSource(q Queries) *PostgresSource {
	return &PostgresSource{q: q}
}

func (s *PostgresSource) Name() string { return "postgres" }

func (s *PostgresSource) ResolveNetworks(ctx context.Context, ids []peering.NetworkID) ([]peering.NetworkInfo, error) {
	rows, err := s.q.ListNetworksByASN(ctx, int64IDs(ids))
	if err != nil {
		return nil, unavailable(s.Name(), err)
	}
	infos := make([]peering.NetworkInfo, 0, len(rows))
	for _, r := range rows {
		infos = append(infos, peering.NetworkInfo{ID: peering.NetworkID(r.ASN), Name: r.Name})
	}
	return CheckResolved(ids, infos)
}

func (s *PostgresSource) FetchPresence(ctx context.Context, ids []peering.NetworkID, kind peering.LocationKind) ([]peering.PresenceRecord, error) {
	switch kind {
	case peering.Facility:
		rows, err := s.q.ListFacilityPresence(ctx, int64IDs(ids))
		if err != nil {
			return nil, unavailable(s.Name(), err)
		}
		out := make([]peering.PresenceRecord, 0, len(rows))
		for _, r := range rows {
			out = append(out, peering.PresenceRecord{
				Network:  peering.NetworkID(r.ASN),
				Location: peering.Location{Kind: peering.Facility, ID: r.FacID, Name: r.FacName},
			})
		}
		return out, nil
	default:
		rows, err := s.q.ListExchangePresence(ctx, int64IDs(ids))
		if err != nil {
			return nil, unavailable(s.Name(), err)
		}
		var out []peering.PresenceRecord
		for _, r := range rows {
			loc := peering.Location{Kind: peering.Exchange, ID: r.IxID, Name: r.IxName}
			out = append(out, exchangeRecords(peering.NetworkID(r.ASN), loc, r.IPAddr4, r.IPAddr6)...)
		}
		return out, nil
	}
}

func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresSource) Close() error {
	s.pool.Close()
	return nil
}
