package overlap

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"peeringmatcher/internal/peering"
	"peeringmatcher/internal/presence"
)

var (
	amsix  = peering.Location{Kind: peering.Exchange, ID: 26, Name: "AMS-IX"}
	linx   = peering.Location{Kind: peering.Exchange, ID: 18, Name: "LINX LON1"}
	decix  = peering.Location{Kind: peering.Exchange, ID: 31, Name: "DE-CIX Frankfurt"}
	nikhef = peering.Location{Kind: peering.Facility, ID: 18, Name: "Nikhef Amsterdam"}
	eqam7  = peering.Location{Kind: peering.Facility, ID: 62, Name: "Equinix AM7"}
)

func rec(asn peering.NetworkID, loc peering.Location, addr string) peering.PresenceRecord {
	return peering.PresenceRecord{Network: asn, Location: loc, Address: addr, HasAddress: addr != ""}
}

func names(r Result) []string {
	out := make([]string, 0, len(r))
	for _, m := range r {
		out = append(out, m.Location.Name)
	}
	return out
}

func TestMatch_ExactIntersection(t *testing.T) {
	idx := presence.Build([]peering.PresenceRecord{
		rec(100, linx, "195.66.224.1"),
		rec(100, amsix, "80.249.208.1"),
		rec(200, amsix, "80.249.208.2"),
	})
	m := Matcher{Policy: DefaultPolicy(2)}
	got := m.Match(idx, peering.NewNetworkSet(100, 200))

	if diff := cmp.Diff([]string{"AMS-IX"}, names(got)); diff != "" {
		t.Fatalf("locations (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"80.249.208.2"}, got[0].Addresses[200]); diff != "" {
		t.Fatalf("addresses (-want +got):\n%s", diff)
	}
}

func TestMatch_InvalidAddressKeepsMembership(t *testing.T) {
	idx := presence.Build([]peering.PresenceRecord{
		rec(100, decix, "not-an-ip"),
		rec(200, decix, "80.81.192.1/21"),
	})

	var rejected []string
	m := Matcher{
		Policy: DefaultPolicy(2),
		OnReject: func(loc peering.Location, id peering.NetworkID, raw string) {
			rejected = append(rejected, id.String()+"@"+loc.Name+"="+raw)
		},
	}
	got := m.Match(idx, peering.NewNetworkSet(100, 200))
	if len(got) != 1 {
		t.Fatalf("expected DE-CIX to qualify, got %v", names(got))
	}
	if !got[0].Present(100) {
		t.Fatalf("expected AS100 membership retained")
	}
	if len(got[0].Addresses[100]) != 0 {
		t.Fatalf("expected no displayable address for AS100, got %v", got[0].Addresses[100])
	}
	if diff := cmp.Diff([]string{"80.81.192.1"}, got[0].Addresses[200]); diff != "" {
		t.Fatalf("addresses (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"AS100@DE-CIX Frankfurt=not-an-ip"}, rejected); diff != "" {
		t.Fatalf("rejections (-want +got):\n%s", diff)
	}
}

func TestMatch_IgnoresUnrequestedNetworks(t *testing.T) {
	idx := presence.Build([]peering.PresenceRecord{
		rec(100, amsix, "80.249.208.1"),
		rec(300, amsix, "80.249.208.3"),
		rec(400, amsix, "80.249.208.4"),
	})
	m := Matcher{Policy: Policy{Exchange: AtLeast(2)}}
	got := m.Match(idx, peering.NewNetworkSet(100, 200))
	if len(got) != 0 {
		t.Fatalf("extraneous networks must not count, got %v", names(got))
	}
}

func TestMatch_AtLeastForFacilities(t *testing.T) {
	idx := presence.Build([]peering.PresenceRecord{
		{Network: 100, Location: nikhef},
		{Network: 200, Location: nikhef},
		{Network: 100, Location: eqam7},
		{Network: 200, Location: eqam7},
		{Network: 300, Location: eqam7},
	})
	req := peering.NewNetworkSet(100, 200, 300)

	got := Matcher{Policy: DefaultPolicy(3)}.Match(idx, req)
	if diff := cmp.Diff([]string{"Equinix AM7"}, names(got)); diff != "" {
		t.Fatalf("default facility rule (-want +got):\n%s", diff)
	}

	got = Matcher{Policy: Policy{Facility: AtLeast(2)}}.Match(idx, req)
	if diff := cmp.Diff([]string{"Equinix AM7", "Nikhef Amsterdam"}, names(got)); diff != "" {
		t.Fatalf("loose facility rule (-want +got):\n%s", diff)
	}
	if got[1].Present(300) {
		t.Fatalf("AS300 is not at Nikhef")
	}
}

func TestMatch_SortedAndOrderIndependent(t *testing.T) {
	records := []peering.PresenceRecord{
		rec(200, linx, "195.66.224.2"),
		rec(100, linx, "195.66.224.1"),
		rec(100, amsix, "80.249.208.1"),
		rec(200, amsix, "80.249.208.2"),
		rec(200, decix, "80.81.192.2"),
		rec(100, decix, "80.81.192.1"),
	}
	idx := presence.Build(records)
	m := Matcher{Policy: DefaultPolicy(2)}

	a := m.Match(idx, peering.NewNetworkSet(100, 200))
	b := m.Match(idx, peering.NewNetworkSet(200, 100))
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("result depends on request order (-a +b):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"AMS-IX", "DE-CIX Frankfurt", "LINX LON1"}, names(a)); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
}

func TestMatch_Empty(t *testing.T) {
	idx := presence.Build([]peering.PresenceRecord{
		rec(100, amsix, "80.249.208.1"),
		rec(200, linx, "195.66.224.2"),
	})
	got := Matcher{Policy: DefaultPolicy(2)}.Match(idx, peering.NewNetworkSet(100, 200))
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
}

func TestParseRule(t *testing.T) {
	r, err := ParseRule("ALL")
	if err != nil || r.Required(4) != 4 {
		t.Fatalf("expected exact rule, got %v %v", r, err)
	}
	r, err = ParseRule("2")
	if err != nil || r.Required(4) != 2 {
		t.Fatalf("expected at-least-2 rule, got %v %v", r, err)
	}
	r, err = ParseRule("")
	if err != nil || r.IsSet() {
		t.Fatalf("expected unset rule, got %v %v", r, err)
	}
	for _, bad := range []string{"0", "-1", "most"} {
		if _, err := ParseRule(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
