package registry

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"peeringmatcher/internal/peering"
)

const sqliteSchema = `
CREATE TABLE peeringdb_network (id INTEGER PRIMARY KEY, asn INTEGER NOT NULL, name TEXT NOT NULL, status TEXT NOT NULL DEFAULT 'ok');
CREATE TABLE peeringdb_ix (id INTEGER PRIMARY KEY, name TEXT NOT NULL, status TEXT NOT NULL DEFAULT 'ok');
CREATE TABLE peeringdb_ixlan (id INTEGER PRIMARY KEY, ix_id INTEGER NOT NULL, status TEXT NOT NULL DEFAULT 'ok');
CREATE TABLE peeringdb_network_ixlan (id INTEGER PRIMARY KEY, net_id INTEGER NOT NULL, ixlan_id INTEGER NOT NULL, asn INTEGER NOT NULL, ipaddr4 TEXT, ipaddr6 TEXT, status TEXT NOT NULL DEFAULT 'ok');
CREATE TABLE peeringdb_facility (id INTEGER PRIMARY KEY, name TEXT NOT NULL, status TEXT NOT NULL DEFAULT 'ok');
CREATE TABLE peeringdb_network_facility (id INTEGER PRIMARY KEY, net_id INTEGER NOT NULL, fac_id INTEGER NOT NULL, local_asn INTEGER, status TEXT NOT NULL DEFAULT 'ok');

INSERT INTO peeringdb_network (id, asn, name) VALUES (1, 100, 'Example One'), (2, 200, 'Example Two'), (3, 300, 'Example Three');
INSERT INTO peeringdb_network (id, asn, name, status) VALUES (4, 400, 'Gone', 'deleted');
INSERT INTO peeringdb_ix (id, name) VALUES (26, 'AMS-IX'), (31, 'DE-CIX Frankfurt'), (18, 'LINX LON1');
INSERT INTO peeringdb_ixlan (id, ix_id) VALUES (260, 26), (310, 31), (180, 18);
INSERT INTO peeringdb_network_ixlan (id, net_id, ixlan_id, asn, ipaddr4, ipaddr6) VALUES
  (1, 1, 260, 100, '80.249.208.1', '2001:7f8:1::a500:100:1'),
  (2, 2, 260, 200, '80.249.208.2', NULL),
  (3, 1, 310, 100, 'not-an-ip', NULL),
  (4, 2, 310, 200, '80.81.192.1/21', NULL),
  (5, 1, 180, 100, NULL, NULL);
INSERT INTO peeringdb_network_ixlan (id, net_id, ixlan_id, asn, ipaddr4, status) VALUES
  (6, 2, 180, 200, '195.66.224.2', 'deleted');
INSERT INTO peeringdb_facility (id, name) VALUES (18, 'Nikhef Amsterdam'), (62, 'Equinix AM7');
INSERT INTO peeringdb_network_facility (id, net_id, fac_id, local_asn) VALUES (1, 1, 18, 100), (2, 2, 18, 200), (3, 3, 62, 300);
`

func newTestSQLite(t *testing.T) *SQLiteSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peeringdb.sqlite3")

	seed, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open seed db: %v", err)
	}
	if _, err := seed.Exec(sqliteSchema); err != nil {
		_ = seed.Close()
		t.Fatalf("seed schema: %v", err)
	}
	if err := seed.Close(); err != nil {
		t.Fatalf("close seed db: %v", err)
	}

	src, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func TestSQLiteSource_ResolveNetworks(t *testing.T) {
	src := newTestSQLite(t)

	got, err := src.ResolveNetworks(context.Background(), []peering.NetworkID{200, 100})
	if err != nil {
		t.Fatalf("ResolveNetworks: %v", err)
	}
	want := []peering.NetworkInfo{{ID: 200, Name: "Example Two"}, {ID: 100, Name: "Example One"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("infos (-want +got):\n%s", diff)
	}

	_, err = src.ResolveNetworks(context.Background(), []peering.NetworkID{100, 400})
	var unknown *peering.UnknownNetworkError
	if !errors.As(err, &unknown) {
		t.Fatalf("deleted network must be unknown, got %v", err)
	}
}

func TestSQLiteSource_FetchExchanges(t *testing.T) {
	src := newTestSQLite(t)

	got, err := src.FetchPresence(context.Background(), []peering.NetworkID{100, 200}, peering.Exchange)
	if err != nil {
		t.Fatalf("FetchPresence: %v", err)
	}
	ams := peering.Location{Kind: peering.Exchange, ID: 26, Name: "AMS-IX"}
	decix := peering.Location{Kind: peering.Exchange, ID: 31, Name: "DE-CIX Frankfurt"}
	linx := peering.Location{Kind: peering.Exchange, ID: 18, Name: "LINX LON1"}
	want := []peering.PresenceRecord{
		{Network: 100, Location: ams, Address: "80.249.208.1", HasAddress: true},
		{Network: 100, Location: ams, Address: "2001:7f8:1::a500:100:1", HasAddress: true},
		{Network: 200, Location: ams, Address: "80.249.208.2", HasAddress: true},
		{Network: 100, Location: decix, Address: "not-an-ip", HasAddress: true},
		{Network: 200, Location: decix, Address: "80.81.192.1/21", HasAddress: true},
		{Network: 100, Location: linx},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records (-want +got):\n%s", diff)
	}
}

func TestSQLiteSource_FetchFacilities(t *testing.T) {
	src := newTestSQLite(t)

	got, err := src.FetchPresence(context.Background(), []peering.NetworkID{100, 200}, peering.Facility)
	if err != nil {
		t.Fatalf("FetchPresence: %v", err)
	}
	nikhef := peering.Location{Kind: peering.Facility, ID: 18, Name: "Nikhef Amsterdam"}
	want := []peering.PresenceRecord{
		{Network: 100, Location: nikhef},
		{Network: 200, Location: nikhef},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records (-want +got):\n%s", diff)
	}
}

func TestOpenSQLite_MissingFile(t *testing.T) {
	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "missing.sqlite3"))
	var unavailable *peering.DataSourceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected DataSourceUnavailableError, got %v", err)
	}
}
