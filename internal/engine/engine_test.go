package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"peeringmatcher/internal/metrics"
	"peeringmatcher/internal/overlap"
	"peeringmatcher/internal/peering"
	"peeringmatcher/internal/registry"
	"peeringmatcher/internal/report"
)

type fakeSource struct {
	names      map[peering.NetworkID]string
	exchanges  []peering.PresenceRecord
	facilities []peering.PresenceRecord
	fetchErr   error

	resolved [][]peering.NetworkID
	fetched  int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) ResolveNetworks(ctx context.Context, ids []peering.NetworkID) ([]peering.NetworkInfo, error) {
	f.resolved = append(f.resolved, append([]peering.NetworkID(nil), ids...))
	var infos []peering.NetworkInfo
	for _, id := range ids {
		if name, ok := f.names[id]; ok {
			infos = append(infos, peering.NetworkInfo{ID: id, Name: name})
		}
	}
	return registry.CheckResolved(ids, infos)
}

func (f *fakeSource) FetchPresence(ctx context.Context, ids []peering.NetworkID, kind peering.LocationKind) ([]peering.PresenceRecord, error) {
	f.fetched++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if kind == peering.Facility {
		return f.facilities, nil
	}
	return f.exchanges, nil
}

func (f *fakeSource) Ping(context.Context) error { return nil }
func (f *fakeSource) Close() error               { return nil }

var (
	amsix  = peering.Location{Kind: peering.Exchange, ID: 26, Name: "AMS-IX"}
	linx   = peering.Location{Kind: peering.Exchange, ID: 18, Name: "LINX LON1"}
	decix  = peering.Location{Kind: peering.Exchange, ID: 31, Name: "DE-CIX"}
	nikhef = peering.Location{Kind: peering.Facility, ID: 18, Name: "Nikhef Amsterdam"}
)

func rec(asn peering.NetworkID, loc peering.Location, addr string) peering.PresenceRecord {
	return peering.PresenceRecord{Network: asn, Location: loc, Address: addr, HasAddress: addr != ""}
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(src registry.Source, m *metrics.Metrics) *Engine {
	return New(zerolog.Nop(), src, Options{
		Policy:     overlap.Policy{},
		DefaultASN: 8283,
		Now:        func() time.Time { return fixedNow },
	}, m)
}

func TestRun_CommonExchangesAndFacilities(t *testing.T) {
	src := &fakeSource{
		names: map[peering.NetworkID]string{100: "One", 200: "Two"},
		exchanges: []peering.PresenceRecord{
			rec(100, linx, "195.66.224.1"),
			rec(200, decix, "80.81.192.1"),
			rec(100, decix, "not-an-ip"),
			rec(200, amsix, "80.249.208.2"),
			rec(100, amsix, "80.249.208.1/21"),
		},
		facilities: []peering.PresenceRecord{
			{Network: 100, Location: nikhef},
			{Network: 200, Location: nikhef},
		},
	}
	m := metrics.New()

	rep, err := newTestEngine(src, m).Run(context.Background(), []peering.NetworkID{200, 100})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := report.Report{
		GeneratedAt: fixedNow,
		Requested:   []peering.NetworkID{100, 200},
		Networks:    []peering.NetworkInfo{{ID: 100, Name: "One"}, {ID: 200, Name: "Two"}},
		Exchanges: report.Table{
			Kind:   peering.Exchange,
			Header: []string{"IXP", "AS100 - One", "AS200 - Two"},
			Rows: []report.Row{
				{Label: "AMS-IX", Cells: []string{"80.249.208.1", "80.249.208.2"}},
				{Label: "DE-CIX", Cells: []string{"", "80.81.192.1"}},
			},
		},
		Facilities: report.Table{
			Kind:   peering.Facility,
			Header: []string{"Facility", "AS100 - One", "AS200 - Two"},
			Rows:   []report.Row{{Label: "Nikhef Amsterdam", Cells: []string{"", ""}}},
		},
	}
	if diff := cmp.Diff(want, rep); diff != "" {
		t.Fatalf("report (-want +got):\n%s", diff)
	}
	if src.fetched != 2 {
		t.Fatalf("expected one fetch per kind, got %d", src.fetched)
	}
}

func TestRun_SingleNetworkIsPairedWithDefault(t *testing.T) {
	src := &fakeSource{names: map[peering.NetworkID]string{64500: "Doc", 8283: "Coloclue"}}

	rep, err := newTestEngine(src, nil).Run(context.Background(), []peering.NetworkID{64500})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]peering.NetworkID{8283, 64500}, rep.Requested); diff != "" {
		t.Fatalf("requested (-want +got):\n%s", diff)
	}

	src = &fakeSource{names: map[peering.NetworkID]string{8283: "Coloclue"}}
	rep, err = newTestEngine(src, nil).Run(context.Background(), []peering.NetworkID{8283})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]peering.NetworkID{8283}, rep.Requested); diff != "" {
		t.Fatalf("requested (-want +got):\n%s", diff)
	}
}

func TestRun_UnknownNetworkIsFatal(t *testing.T) {
	src := &fakeSource{names: map[peering.NetworkID]string{8283: "Coloclue"}}

	_, err := newTestEngine(src, nil).Run(context.Background(), []peering.NetworkID{999999})
	var unknown *peering.UnknownNetworkError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownNetworkError, got %v", err)
	}
	if diff := cmp.Diff([]peering.NetworkID{999999}, unknown.IDs); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}
	if src.fetched != 0 {
		t.Fatalf("presence must not be fetched after resolution fails")
	}
}

func TestRun_EmptyOverlapIsNotAnError(t *testing.T) {
	src := &fakeSource{
		names: map[peering.NetworkID]string{100: "One", 200: "Two"},
		exchanges: []peering.PresenceRecord{
			rec(100, amsix, "80.249.208.1"),
			rec(200, linx, "195.66.224.2"),
		},
	}
	rep, err := newTestEngine(src, nil).Run(context.Background(), []peering.NetworkID{100, 200})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Exchanges.Empty() || !rep.Facilities.Empty() {
		t.Fatalf("expected empty tables, got %+v", rep)
	}
}

func TestRun_FetchFailureIsFatal(t *testing.T) {
	boom := &peering.DataSourceUnavailableError{Source: "fake", Err: errors.New("timeout")}
	src := &fakeSource{names: map[peering.NetworkID]string{100: "One", 200: "Two"}, fetchErr: boom}

	_, err := newTestEngine(src, nil).Run(context.Background(), []peering.NetworkID{100, 200})
	var unavailable *peering.DataSourceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected DataSourceUnavailableError, got %v", err)
	}
}

func TestRun_ConfiguredFacilityRule(t *testing.T) {
	src := &fakeSource{
		names: map[peering.NetworkID]string{100: "One", 200: "Two", 300: "Three"},
		facilities: []peering.PresenceRecord{
			{Network: 100, Location: nikhef},
			{Network: 300, Location: nikhef},
		},
	}
	e := New(zerolog.Nop(), src, Options{
		Policy:     overlap.Policy{Facility: overlap.AtLeast(2)},
		DefaultASN: 8283,
	}, nil)

	rep, err := e.Run(context.Background(), []peering.NetworkID{100, 200, 300})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Facilities.Rows) != 1 || rep.Facilities.Rows[0].Label != "Nikhef Amsterdam" {
		t.Fatalf("expected Nikhef with AtLeast(2), got %+v", rep.Facilities.Rows)
	}
}

func TestRun_NoNetworks(t *testing.T) {
	_, err := newTestEngine(&fakeSource{}, nil).Run(context.Background(), nil)
	var invalid *peering.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}
