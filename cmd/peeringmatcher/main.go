// Command peeringmatcher reports the exchanges and facilities shared by a set
// of networks according to PeeringDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"peeringmatcher/internal/config"
	"peeringmatcher/internal/engine"
	"peeringmatcher/internal/httpapi"
	"peeringmatcher/internal/logging"
	"peeringmatcher/internal/metrics"
	"peeringmatcher/internal/peering"
	"peeringmatcher/internal/registry"
	"peeringmatcher/internal/report"
)

const (
	exitOK      = 0
	exitUsage   = 1
	exitFailure = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], newApp(os.Stdout, os.Stderr))
	stop()
	os.Exit(code)
}

// app holds the process edges so tests can swap them.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	openSource func(ctx context.Context, log zerolog.Logger, cfg *config.Config, m *metrics.Metrics) (registry.Source, error)
	now        func() time.Time
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, openSource: registry.Open, now: time.Now}
}

// usageError marks failures caused by the command line itself.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

type flagValues struct {
	configPath   string
	source       string
	dsn          string
	apiURL       string
	timeout      time.Duration
	defaultASN   uint32
	logLevel     string
	exchangeRule string
	facilityRule string
	metricsFile  string
	addr         string
}

func execute(ctx context.Context, args []string, a *app) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return exitOK
	}
	if cmd == nil {
		cmd = root
	}

	fmt.Fprintf(a.stderr, "Error: %v\n", err)

	var (
		usage   *usageError
		invalid *peering.InvalidInputError
	)
	switch {
	case errors.As(err, &usage), errors.As(err, &invalid):
		fmt.Fprint(a.stderr, cmd.UsageString())
		return exitUsage
	default:
		return exitFailure
	}
}

func newRootCmd(a *app) *cobra.Command {
	fv := &flagValues{}

	root := &cobra.Command{
		Use:   "peeringmatcher ASN [ASN...]",
		Short: "Show the IXPs and facilities a set of networks have in common",
		Long: "Looks up every ASN in PeeringDB and prints the exchanges and facilities\n" +
			"where all of them are present, with each network's addresses there.\n" +
			"A single ASN is compared against the default partner network.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runQuery(cmd, fv, args)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&fv.configPath, "config", "", "path to a YAML config file (default $PEERINGMATCHER_CONFIG)")
	pf.StringVar(&fv.source, "source", config.SourceAPI, "registry source: api, postgres or sqlite")
	pf.StringVar(&fv.dsn, "dsn", "", "database URL (postgres) or file path (sqlite) of a PeeringDB mirror")
	pf.StringVar(&fv.apiURL, "api-url", config.DefaultAPIURL, "PeeringDB API base URL")
	pf.DurationVar(&fv.timeout, "timeout", 30*time.Second, "per-request timeout for the PeeringDB API")
	pf.Uint32Var(&fv.defaultASN, "default-asn", config.DefaultASN, "partner network used when a single ASN is given")
	pf.StringVar(&fv.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error, disabled)")
	pf.StringVar(&fv.exchangeRule, "exchange-rule", "", `exchange threshold: "all" or a minimum network count`)
	pf.StringVar(&fv.facilityRule, "facility-rule", "", `facility threshold: "all" or a minimum network count (default: number of networks)`)
	pf.StringVar(&fv.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")

	root.AddCommand(newServeCmd(a, fv))
	return root
}

func newServeCmd(a *app, fv *flagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve overlap reports over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd, fv)
		},
	}
	cmd.Flags().StringVar(&fv.addr, "addr", ":8080", "listen address")
	return cmd
}

// loadConfig layers flags that were set explicitly over file and environment.
func loadConfig(cmd *cobra.Command, fv *flagValues) (*config.Config, error) {
	cfg, err := config.Load(fv.configPath)
	if err != nil {
		return nil, &usageError{err: err}
	}

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("source") {
		cfg.Source = fv.source
	}
	if changed("dsn") {
		cfg.DSN = fv.dsn
	}
	if changed("api-url") {
		cfg.APIURL = fv.apiURL
	}
	if changed("timeout") {
		cfg.Timeout = fv.timeout
	}
	if changed("default-asn") {
		cfg.DefaultASN = fv.defaultASN
	}
	if changed("log-level") {
		cfg.LogLevel = fv.logLevel
	}
	if changed("exchange-rule") {
		cfg.ExchangeRule = fv.exchangeRule
	}
	if changed("facility-rule") {
		cfg.FacilityRule = fv.facilityRule
	}
	if changed("metrics-file") {
		cfg.MetricsFile = fv.metricsFile
	}
	if changed("addr") {
		cfg.ServeAddr = fv.addr
	}

	if err := cfg.Finalize(); err != nil {
		return nil, &usageError{err: err}
	}
	if cfg.DefaultASN == 0 {
		return nil, &usageError{err: errors.New("default ASN must be positive")}
	}
	return cfg, nil
}

// setup builds everything a run needs from the effective config.
func (a *app) setup(ctx context.Context, cfg *config.Config) (zerolog.Logger, *metrics.Metrics, registry.Source, *engine.Engine, error) {
	log := logging.New(cfg.LogLevel, a.stderr)
	m := metrics.New()

	policy, err := cfg.Policy()
	if err != nil {
		return log, nil, nil, nil, &usageError{err: err}
	}

	src, err := a.openSource(ctx, log, cfg, m)
	if err != nil {
		return log, nil, nil, nil, err
	}

	eng := engine.New(log, src, engine.Options{
		Policy:     policy,
		DefaultASN: peering.NetworkID(cfg.DefaultASN),
		Now:        a.now,
	}, m)
	return log, m, src, eng, nil
}

func (a *app) runQuery(cmd *cobra.Command, fv *flagValues, args []string) error {
	if len(args) == 0 {
		return &usageError{err: errors.New("at least one ASN is required")}
	}
	// Arguments are checked before anything touches the registry.
	ids, err := peering.ParseNetworkIDs(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, fv)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	log, m, src, eng, err := a.setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	rep, runErr := eng.Run(ctx, ids)

	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("failed to write metrics file")
		}
	}
	if runErr != nil {
		return runErr
	}

	return report.RenderReport(cmd.OutOrStdout(), rep)
}

func (a *app) runServe(cmd *cobra.Command, fv *flagValues) error {
	cfg, err := loadConfig(cmd, fv)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	log, m, src, eng, err := a.setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	h := httpapi.NewHandler(log, eng, src, m)
	srv := &http.Server{
		Addr:              cfg.ServeAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ServeAddr).Str("source", src.Name()).Msg("peeringmatcher listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
	return nil
}
