package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"peeringmatcher/internal/peering"
)

type APIOptions struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	Concurrency   int
	Retries       int
	RetryInterval time.Duration
	HTTPClient    *http.Client
}

// APISource talks to the PeeringDB REST API. Presence for each network is
// fetched with its own request; requests run concurrently up to Concurrency.
type APISource struct {
	log           zerolog.Logger
	baseURL       string
	apiKey        string
	client        *http.Client
	concurrency   int
	retries       int
	retryInterval time.Duration
}

func NewAPISource(log zerolog.Logger, opts APIOptions) *APISource {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = "https://www.peeringdb.com/api"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	retryInterval := opts.RetryInterval
	if retryInterval <= 0 {
		retryInterval = 500 * time.Millisecond
	}

	return &APISource{
		log:           log,
		baseURL:       base,
		apiKey:        strings.TrimSpace(opts.APIKey),
		client:        client,
		concurrency:   concurrency,
		retries:       retries,
		retryInterval: retryInterval,
	}
}

func (s *APISource) Name() string { return "peeringdb-api" }

type apiNet struct {
	ID   int64  `json:"id"`
	ASN  int64  `json:"asn"`
	Name string `json:"name"`
}

type apiNetIXLan struct {
	IxID    int64   `json:"ix_id"`
	Name    string  `json:"name"`
	ASN     int64   `json:"asn"`
	IPAddr4 *string `json:"ipaddr4"`
	IPAddr6 *string `json:"ipaddr6"`
}

type apiNetFac struct {
	FacID    int64  `json:"fac_id"`
	Name     string `json:"name"`
	LocalASN int64  `json:"local_asn"`
}

type apiEnvelope[T any] struct {
	Data []T `json:"data"`
}

type httpStatusError struct {
	Status int
	URL    string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Status)
}

func (s *APISource) ResolveNetworks(ctx context.Context, ids []peering.NetworkID) ([]peering.NetworkInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := url.Values{}
	q.Set("asn__in", joinIDs(ids, ","))
	q.Set("status", "ok")

	var env apiEnvelope[apiNet]
	if err := s.get(ctx, "net", q, &env); err != nil {
		return nil, unavailable(s.Name(), err)
	}

	infos := make([]peering.NetworkInfo, 0, len(env.Data))
	for _, n := range env.Data {
		infos = append(infos, peering.NetworkInfo{ID: peering.NetworkID(n.ASN), Name: n.Name})
	}
	return CheckResolved(ids, infos)
}

// FetchPresence issues one request per network and joins them before
// returning. Any failed request fails the whole fetch. Records come back
// grouped by network in the order of ids.
func (s *APISource) FetchPresence(ctx context.Context, ids []peering.NetworkID, kind peering.LocationKind) ([]peering.PresenceRecord, error) {
	perNetwork := make([][]peering.PresenceRecord, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			var (
				recs []peering.PresenceRecord
				err  error
			)
			if kind == peering.Facility {
				recs, err = s.fetchFacilities(gctx, id)
			} else {
				recs, err = s.fetchExchanges(gctx, id)
			}
			if err != nil {
				return fmt.Errorf("%s presence for %s: %w", kind, id, err)
			}
			perNetwork[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, unavailable(s.Name(), err)
	}

	var out []peering.PresenceRecord
	for _, recs := range perNetwork {
		out = append(out, recs...)
	}
	return out, nil
}

func (s *APISource) fetchExchanges(ctx context.Context, id peering.NetworkID) ([]peering.PresenceRecord, error) {
	q := url.Values{}
	q.Set("asn", strconv.FormatUint(uint64(id), 10))
	q.Set("status", "ok")

	var env apiEnvelope[apiNetIXLan]
	if err := s.get(ctx, "netixlan", q, &env); err != nil {
		return nil, err
	}

	var out []peering.PresenceRecord
	for _, row := range env.Data {
		asn := peering.NetworkID(row.ASN)
		if asn == 0 {
			asn = id
		}
		loc := peering.Location{Kind: peering.Exchange, ID: row.IxID, Name: row.Name}
		out = append(out, exchangeRecords(asn, loc, row.IPAddr4, row.IPAddr6)...)
	}
	return out, nil
}

func (s *APISource) fetchFacilities(ctx context.Context, id peering.NetworkID) ([]peering.PresenceRecord, error) {
	q := url.Values{}
	q.Set("local_asn", strconv.FormatUint(uint64(id), 10))
	q.Set("status", "ok")

	var env apiEnvelope[apiNetFac]
	if err := s.get(ctx, "netfac", q, &env); err != nil {
		return nil, err
	}

	out := make([]peering.PresenceRecord, 0, len(env.Data))
	for _, row := range env.Data {
		asn := peering.NetworkID(row.LocalASN)
		if asn == 0 {
			asn = id
		}
		out = append(out, peering.PresenceRecord{
			Network:  asn,
			Location: peering.Location{Kind: peering.Facility, ID: row.FacID, Name: row.Name},
		})
	}
	return out, nil
}

// get retries transport errors, 429 and 5xx with exponential backoff. Other
// statuses and undecodable bodies fail immediately.
func (s *APISource) get(ctx context.Context, object string, q url.Values, dst any) error {
	u := s.baseURL + "/" + object + "?" + q.Encode()

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "peeringmatcher")
		if s.apiKey != "" {
			req.Header.Set("Authorization", "Api-Key "+s.apiKey)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			s.log.Debug().Err(err).Str("url", u).Msg("registry request failed; retrying")
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, resp.Body)
			s.log.Debug().Int("status", resp.StatusCode).Str("url", u).Msg("registry request throttled or failed; retrying")
			return &httpStatusError{Status: resp.StatusCode, URL: u}
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(&httpStatusError{Status: resp.StatusCode, URL: u})
		}
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s response: %w", object, err))
		}
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.retries)), ctx)

	err := backoff.Retry(op, policy)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func (s *APISource) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("limit", "1")
	var env apiEnvelope[apiNet]
	return s.get(ctx, "net", q, &env)
}

func (s *APISource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
