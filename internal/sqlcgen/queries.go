package sqlcgen

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const listNetworksByASN = `-- name: ListNetworksByASN :many
SELECT DISTINCT n.asn,
       n.name
FROM peeringdb_network n
WHERE n.asn = ANY($1::bigint[])
  AND n.status = 'ok'
ORDER BY n.asn
`

func (q *Queries) ListNetworksByASN(ctx context.Context, asns []int64) ([]Network, error) {
	rows, err := q.db.Query(ctx, listNetworksByASN, asns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Network
	for rows.Next() {
		var i Network
		if err := rows.Scan(&i.ASN, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listExchangePresence = `-- name: ListExchangePresence :many
SELECT ix.id,
       ix.name,
       n.asn,
       nixl.ipaddr4::text,
       nixl.ipaddr6::text
FROM peeringdb_network_ixlan nixl
JOIN peeringdb_network n ON n.id = nixl.net_id
JOIN peeringdb_ixlan ixl ON ixl.id = nixl.ixlan_id
JOIN peeringdb_ix ix ON ix.id = ixl.ix_id
WHERE n.asn = ANY($1::bigint[])
  AND nixl.status = 'ok'
ORDER BY ix.name, n.asn, nixl.id
`

func (q *Queries) ListExchangePresence(ctx context.Context, asns []int64) ([]ExchangePresence, error) {
	rows, err := q.db.Query(ctx, listExchangePresence, asns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExchangePresence
	for rows.Next() {
		var i ExchangePresence
		if err := rows.Scan(&i.IxID, &i.IxName, &i.ASN, &i.IPAddr4, &i.IPAddr6); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listFacilityPresence = `-- name: ListFacilityPresence :many
SELECT f.id,
       f.name,
       n.asn
FROM peeringdb_network_facility nf
JOIN peeringdb_network n ON n.id = nf.net_id
JOIN peeringdb_facility f ON f.id = nf.fac_id
WHERE n.asn = ANY($1::bigint[])
  AND nf.status = 'ok'
ORDER BY f.name, n.asn, nf.id
`

func (q *Queries) ListFacilityPresence(ctx context.Context, asns []int64) ([]FacilityPresence, error) {
	rows, err := q.db.Query(ctx, listFacilityPresence, asns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FacilityPresence
	for rows.Next() {
		var i FacilityPresence
		if err := rows.Scan(&i.FacID, &i.FacName, &i.ASN); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
