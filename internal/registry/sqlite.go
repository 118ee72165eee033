package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"peeringmatcher/internal/peering"
)

// SQLiteSource reads the same django-peeringdb schema from the SQLite file
// that `peeringdb sync` produces by default.
type SQLiteSource struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteSource, error) {
	// sqlite creates missing files on open; a missing mirror is a setup error.
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			return nil, unavailable("sqlite", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, unavailable("sqlite", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, unavailable("sqlite", err)
	}
	return &SQLiteSource{db: conn}, nil
}

// NewSQLiteSource wraps an open handle; the caller owns it.
func NewSQLiteSource(conn *sql.DB) *SQLiteSource {
	return &SQLiteSource{db: conn}
}

func (s *SQLiteSource) Name() string { return "sqlite" }

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anyIDs(ids []peering.NetworkID) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}

func (s *SQLiteSource) ResolveNetworks(ctx context.Context, ids []peering.NetworkID) ([]peering.NetworkInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT DISTINCT asn, name FROM peeringdb_network
WHERE asn IN (%s) AND status = 'ok' ORDER BY asn`, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, anyIDs(ids)...)
	if err != nil {
		return nil, unavailable(s.Name(), err)
	}
	defer rows.Close()

	var infos []peering.NetworkInfo
	for rows.Next() {
		var asn int64
		var name string
		if err := rows.Scan(&asn, &name); err != nil {
			return nil, unavailable(s.Name(), err)
		}
		infos = append(infos, peering.NetworkInfo{ID: peering.NetworkID(asn), Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(s.Name(), err)
	}
	return CheckResolved(ids, infos)
}

func (s *SQLiteSource) FetchPresence(ctx context.Context, ids []peering.NetworkID, kind peering.LocationKind) ([]peering.PresenceRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if kind == peering.Facility {
		return s.fetchFacilities(ctx, ids)
	}
	return s.fetchExchanges(ctx, ids)
}

func (s *SQLiteSource) fetchExchanges(ctx context.Context, ids []peering.NetworkID) ([]peering.PresenceRecord, error) {
	query := fmt.Sprintf(`SELECT ix.id, ix.name, n.asn, nixl.ipaddr4, nixl.ipaddr6
FROM peeringdb_network_ixlan nixl
JOIN peeringdb_network n ON n.id = nixl.net_id
JOIN peeringdb_ixlan ixl ON ixl.id = nixl.ixlan_id
JOIN peeringdb_ix ix ON ix.id = ixl.ix_id
WHERE n.asn IN (%s) AND nixl.status = 'ok'
ORDER BY ix.name, n.asn, nixl.id`, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, anyIDs(ids)...)
	if err != nil {
		return nil, unavailable(s.Name(), err)
	}
	defer rows.Close()

	var out []peering.PresenceRecord
	for rows.Next() {
		var ixID, asn int64
		var ixName string
		var v4, v6 sql.NullString
		if err := rows.Scan(&ixID, &ixName, &asn, &v4, &v6); err != nil {
			return nil, unavailable(s.Name(), err)
		}
		loc := peering.Location{Kind: peering.Exchange, ID: ixID, Name: ixName}
		out = append(out, exchangeRecords(peering.NetworkID(asn), loc, nullString(v4), nullString(v6))...)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(s.Name(), err)
	}
	return out, nil
}

func (s *SQLiteSource) fetchFacilities(ctx context.Context, ids []peering.NetworkID) ([]peering.PresenceRecord, error) {
	query := fmt.Sprintf(`SELECT f.id, f.name, n.asn
FROM peeringdb_network_facility nf
JOIN peeringdb_network n ON n.id = nf.net_id
JOIN peeringdb_facility f ON f.id = nf.fac_id
WHERE n.asn IN (%s) AND nf.status = 'ok'
ORDER BY f.name, n.asn, nf.id`, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, anyIDs(ids)...)
	if err != nil {
		return nil, unavailable(s.Name(), err)
	}
	defer rows.Close()

	var out []peering.PresenceRecord
	for rows.Next() {
		var facID, asn int64
		var facName string
		if err := rows.Scan(&facID, &facName, &asn); err != nil {
			return nil, unavailable(s.Name(), err)
		}
		out = append(out, peering.PresenceRecord{
			Network:  peering.NetworkID(asn),
			Location: peering.Location{Kind: peering.Facility, ID: facID, Name: facName},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(s.Name(), err)
	}
	return out, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func (s *SQLiteSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
