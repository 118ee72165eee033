package registry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"peeringmatcher/internal/metrics"
	"peeringmatcher/internal/peering"
)

// Instrumented records timing and outcome of every lookup.
type Instrumented struct {
	Source
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewInstrumented(log zerolog.Logger, src Source, m *metrics.Metrics) *Instrumented {
	return &Instrumented{Source: src, log: log, metrics: m}
}

func (s *Instrumented) ResolveNetworks(ctx context.Context, ids []peering.NetworkID) ([]peering.NetworkInfo, error) {
	start := time.Now()
	infos, err := s.Source.ResolveNetworks(ctx, ids)
	s.observe("resolve_networks", len(ids), len(infos), err, time.Since(start))
	return infos, err
}

func (s *Instrumented) FetchPresence(ctx context.Context, ids []peering.NetworkID, kind peering.LocationKind) ([]peering.PresenceRecord, error) {
	start := time.Now()
	recs, err := s.Source.FetchPresence(ctx, ids, kind)
	s.observe("fetch_presence_"+kind.String(), len(ids), len(recs), err, time.Since(start))
	return recs, err
}

func (s *Instrumented) observe(op string, requested, returned int, err error, d time.Duration) {
	s.metrics.ObserveRegistryRequest(s.Name(), op, err, d)
	ev := s.log.Debug()
	if err != nil {
		ev = s.log.Warn().Err(err)
	}
	ev.Str("source", s.Name()).
		Str("op", op).
		Int("requested", requested).
		Int("returned", returned).
		Int64("duration_ms", d.Milliseconds()).
		Msg("registry lookup")
}
