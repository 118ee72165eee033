package registry

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"peeringmatcher/internal/config"
	"peeringmatcher/internal/metrics"
)

// Open builds the configured source with instrumentation. Callers wrap it in
// a Memo per run.
func Open(ctx context.Context, log zerolog.Logger, cfg *config.Config, m *metrics.Metrics) (Source, error) {
	var src Source
	switch cfg.Source {
	case config.SourceAPI:
		src = NewAPISource(log, APIOptions{
			BaseURL:     cfg.APIURL,
			APIKey:      cfg.APIKey,
			Timeout:     cfg.Timeout,
			Concurrency: cfg.Concurrency,
			Retries:     cfg.Retries,
		})
	case config.SourcePostgres:
		pg, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		src = pg
	case config.SourceSQLite:
		lite, err := OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		src = lite
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
	return NewInstrumented(log, src, m), nil
}
