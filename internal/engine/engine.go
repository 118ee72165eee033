// Package engine runs one overlap query end to end: resolve the requested
// networks, fetch presence for both location kinds, match, and assemble.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"peeringmatcher/internal/metrics"
	"peeringmatcher/internal/overlap"
	"peeringmatcher/internal/peering"
	"peeringmatcher/internal/presence"
	"peeringmatcher/internal/registry"
	"peeringmatcher/internal/report"
)

type Options struct {
	Policy     overlap.Policy
	DefaultASN peering.NetworkID
	Now        func() time.Time
}

type Engine struct {
	log        zerolog.Logger
	src        registry.Source
	policy     overlap.Policy
	defaultASN peering.NetworkID
	now        func() time.Time
	metrics    *metrics.Metrics
}

func New(log zerolog.Logger, src registry.Source, opts Options, m *metrics.Metrics) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		log:        log,
		src:        src,
		policy:     opts.Policy,
		defaultASN: opts.DefaultASN,
		now:        now,
		metrics:    m,
	}
}

// Run produces the report for ids. A single id is paired with the default
// partner network. Any resolution or fetch failure aborts the run; an empty
// overlap is a successful run with empty tables.
func (e *Engine) Run(ctx context.Context, ids []peering.NetworkID) (report.Report, error) {
	start := time.Now()
	rep, err := e.run(ctx, ids)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	e.metrics.ObserveRun(outcome, time.Since(start))
	return rep, err
}

func (e *Engine) run(ctx context.Context, ids []peering.NetworkID) (report.Report, error) {
	if len(ids) == 0 {
		return report.Report{}, &peering.InvalidInputError{Arg: ""}
	}

	requested := peering.ExpandRequested(ids, e.defaultASN)
	sorted := requested.Sorted()
	src := registry.NewMemo(e.src)

	infos, err := src.ResolveNetworks(ctx, sorted)
	if err != nil {
		return report.Report{}, err
	}
	// Sources are expected to enforce this, but the tables cannot be built
	// without a name for every column.
	infos, err = registry.CheckResolved(sorted, infos)
	if err != nil {
		return report.Report{}, err
	}
	peering.SortInfos(infos)

	e.log.Debug().Str("networks", peering.JoinIDs(sorted)).Msg("networks resolved")

	var exchanges, facilities []peering.PresenceRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		exchanges, err = src.FetchPresence(gctx, sorted, peering.Exchange)
		return err
	})
	g.Go(func() error {
		var err error
		facilities, err = src.FetchPresence(gctx, sorted, peering.Facility)
		return err
	})
	if err := g.Wait(); err != nil {
		return report.Report{}, err
	}

	matcher := overlap.Matcher{Policy: e.policy, OnReject: e.onReject}

	rep := report.Report{
		GeneratedAt: e.now().UTC(),
		Requested:   sorted,
		Networks:    infos,
	}
	rep.Exchanges = e.assemble(peering.Exchange, matcher, exchanges, requested, infos)
	rep.Facilities = e.assemble(peering.Facility, matcher, facilities, requested, infos)
	return rep, nil
}

func (e *Engine) assemble(kind peering.LocationKind, m overlap.Matcher, records []peering.PresenceRecord, requested peering.NetworkSet, infos []peering.NetworkInfo) report.Table {
	idx := presence.Build(records)
	result := m.Match(idx, requested)

	e.metrics.AddLocationsMatched(kind.String(), len(result))
	e.log.Debug().
		Str("kind", kind.String()).
		Int("records", len(records)).
		Int("locations", idx.Len()).
		Int("matched", len(result)).
		Str("rule", m.Policy.RuleFor(kind, requested.Len()).String()).
		Msg("overlap computed")

	return report.Assemble(kind, result, infos)
}

func (e *Engine) onReject(loc peering.Location, id peering.NetworkID, raw string) {
	e.metrics.IncAddressRejected(loc.Kind.String())
	e.log.Debug().
		Str("location", loc.Name).
		Str("network", id.String()).
		Str("address", raw).
		Msg("ignoring invalid registry address")
}
