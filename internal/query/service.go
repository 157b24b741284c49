// Package query exposes the caller-facing record queries. Each call checks
// the result cache, then performs at most one upstream fetch.
package query

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/sedn/nbn-facade/internal/cache"
	"github.com/sedn/nbn-facade/internal/cache/keys"
	"github.com/sedn/nbn-facade/internal/core/gateway"
	"github.com/sedn/nbn-facade/internal/core/model"
	"github.com/sedn/nbn-facade/internal/core/normalize"
	"github.com/sedn/nbn-facade/internal/core/observability"
	"github.com/sedn/nbn-facade/internal/core/records"
	"github.com/sedn/nbn-facade/internal/logger"
)

// Interface is what the HTTP layer depends on.
type Interface interface {
	SpeciesListForCounty(ctx context.Context, search string, nameType records.NameType, group string, page int) model.QueryResult
	SingleSpeciesRecordsForCounty(ctx context.Context, name string, page int) model.QueryResult
	SingleOccurrenceRecord(ctx context.Context, uuid string) model.QueryResult
	SiteListForCounty(ctx context.Context, search string) model.QueryResult
	SpeciesListForSite(ctx context.Context, site, group string) model.QueryResult
	SingleSpeciesRecordsForSite(ctx context.Context, site, name string, page int) model.QueryResult
	SpeciesListForSquare(ctx context.Context, square, group string, page int) model.QueryResult
	SingleSpeciesRecordsForSquare(ctx context.Context, square, name string, page int) model.QueryResult
}

// SiteAnnotator attaches a map cell to each site.
type SiteAnnotator interface {
	AnnotateSites(sites map[string]model.SiteLocation, res int) error
}

type Service struct {
	ep      records.Endpoint
	gw      gateway.Interface
	results *cache.Results
	logger  *slog.Logger

	cells   SiteAnnotator
	cellRes int
}

var _ Interface = (*Service)(nil)

type Option func(*Service)

// WithSiteCells enables H3 cells on the site map of species record queries.
func WithSiteCells(a SiteAnnotator, res int) Option {
	return func(s *Service) {
		s.cells = a
		s.cellRes = res
	}
}

func New(ep records.Endpoint, gw gateway.Interface, results *cache.Results, lg *slog.Logger, opts ...Option) *Service {
	if lg == nil {
		lg = slog.Default()
	}
	if results == nil {
		results = cache.NewResults(cache.Nop{}, 0, lg)
	}
	s := &Service{ep: ep, gw: gw, results: results, logger: lg}
	for _, o := range opts {
		o(s)
	}
	return s
}

// run is the cache-aside flow shared by every query. fetch is only called on
// a miss; OK results are stored under key.
func (s *Service) run(ctx context.Context, kind model.Kind, key string, fetch func(ctx context.Context) model.QueryResult) model.QueryResult {
	ctx = logger.WithQueryKind(ctx, string(kind))

	if res, ok := s.results.Get(ctx, kind, key); ok {
		s.logger.DebugContext(logger.WithCacheOutcome(ctx, "hit"), "query served from cache", "key", key)
		observability.ObserveQueryResult(string(kind), string(res.Status))
		return res
	}

	ctx = logger.WithCacheOutcome(ctx, "miss")
	res := fetch(ctx)
	if res.OK() {
		s.results.Put(ctx, key, res)
		s.logger.DebugContext(ctx, "query fetched", "key", key, "url", res.QueryURL)
	} else {
		s.logger.WarnContext(ctx, "query failed",
			"url", res.QueryURL,
			"code", string(res.Code),
			"http_status", res.HTTPStatus,
			"err", res.Message)
	}
	observability.ObserveQueryResult(string(kind), string(res.Status))
	return res
}

// fetchRaw fetches u and returns the compacted JSON body.
func (s *Service) fetchRaw(ctx context.Context, u string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := s.gw.Fetch(ctx, u, &raw); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw, nil
	}
	return buf.Bytes(), nil
}

func clampPage(page int) int {
	if page < 0 {
		return 0
	}
	return page
}

// SpeciesListForCounty lists species whose scientific or common name starts
// with search, one page at a time.
func (s *Service) SpeciesListForCounty(ctx context.Context, search string, nameType records.NameType, group string, page int) model.QueryResult {
	page = clampPage(page)
	if group == "" {
		group = records.GroupBoth
	}
	b, err := s.ep.SpeciesList(search, nameType, group)
	if err != nil {
		return model.QueryResult{Status: model.StatusError, Code: model.CodeQueryError, Message: err.Error()}
	}
	u := b.PageQueryString(page)
	key := keys.Key(string(model.KindSpeciesList), search, string(nameType), group, strconv.Itoa(page))

	return s.run(ctx, model.KindSpeciesList, key, func(ctx context.Context) model.QueryResult {
		raw, err := s.fetchRaw(ctx, u)
		if err != nil {
			return gateway.ErrorResult(err, u)
		}
		return model.QueryResult{
			Records:      raw,
			TotalRecords: arrayLen(raw),
			DownloadLink: b.DownloadQueryString(),
			Status:       model.StatusOK,
			QueryURL:     u,
		}
	})
}

// SingleSpeciesRecordsForCounty returns the records of one taxon, newest
// first, with the first-seen coordinates of every site.
func (s *Service) SingleSpeciesRecordsForCounty(ctx context.Context, name string, page int) model.QueryResult {
	page = clampPage(page)
	b := s.ep.SpeciesRecords(name)
	u := b.PageQueryString(page)
	key := keys.Key(string(model.KindSpeciesRecords), name, strconv.Itoa(page))

	return s.run(ctx, model.KindSpeciesRecords, key, func(ctx context.Context) model.QueryResult {
		var resp normalize.SearchResponse
		if err := s.gw.Fetch(ctx, u, &resp); err != nil {
			return gateway.ErrorResult(err, u)
		}
		recs, sites := normalize.SpeciesRecords(resp)
		if s.cells != nil {
			if err := s.cells.AnnotateSites(sites, s.cellRes); err != nil {
				s.logger.DebugContext(ctx, "site cells skipped", "err", err)
			}
		}
		return model.QueryResult{
			Occurrences:  recs,
			Sites:        sites,
			TotalRecords: resp.TotalRecords,
			DownloadLink: b.DownloadQueryString(),
			Status:       model.StatusOK,
			QueryURL:     u,
		}
	})
}

// SingleOccurrenceRecord returns one record by uuid, passed through as-is.
func (s *Service) SingleOccurrenceRecord(ctx context.Context, uuid string) model.QueryResult {
	b := s.ep.Occurrence(uuid)
	u := b.URL()
	key := keys.Key(string(model.KindOccurrence), uuid)

	return s.run(ctx, model.KindOccurrence, key, func(ctx context.Context) model.QueryResult {
		raw, err := s.fetchRaw(ctx, u)
		if err != nil {
			return gateway.ErrorResult(err, u)
		}
		return model.QueryResult{
			Records:      raw,
			TotalRecords: 1,
			DownloadLink: b.DownloadQueryString(),
			Status:       model.StatusOK,
			QueryURL:     u,
		}
	})
}

// SiteListForCounty returns up to normalize.SiteListLimit site names sorting
// at or after search, with their record counts.
func (s *Service) SiteListForCounty(ctx context.Context, search string) model.QueryResult {
	b := s.ep.SiteList(search)
	u := b.QueryString()
	key := keys.Key(string(model.KindSiteList), search)

	return s.run(ctx, model.KindSiteList, key, func(ctx context.Context) model.QueryResult {
		var resp normalize.FacetResponse
		if err := s.gw.Fetch(ctx, u, &resp); err != nil {
			return gateway.ErrorResult(err, u)
		}
		facets := normalize.SiteList(resp)
		return model.QueryResult{
			Facets:       facets,
			TotalRecords: len(facets),
			Status:       model.StatusOK,
			QueryURL:     u,
		}
	})
}

// SpeciesListForSite lists the species recorded at one site.
func (s *Service) SpeciesListForSite(ctx context.Context, site, group string) model.QueryResult {
	if group == "" {
		group = records.GroupBoth
	}
	b := s.ep.SiteSpeciesList(site, group)
	u := b.QueryString()
	key := keys.Key(string(model.KindSiteSpeciesList), site, group)

	return s.run(ctx, model.KindSiteSpeciesList, key, func(ctx context.Context) model.QueryResult {
		raw, err := s.fetchRaw(ctx, u)
		if err != nil {
			return gateway.ErrorResult(err, u)
		}
		return model.QueryResult{
			Records:      raw,
			TotalRecords: arrayLen(raw),
			DownloadLink: b.DownloadQueryString(),
			Status:       model.StatusOK,
			QueryURL:     u,
		}
	})
}

func (s *Service) SingleSpeciesRecordsForSite(ctx context.Context, _, _ string, _ int) model.QueryResult {
	return s.notImplemented(ctx, model.KindSiteSpeciesRecords, "single species records for site")
}

func (s *Service) SpeciesListForSquare(ctx context.Context, _, _ string, _ int) model.QueryResult {
	return s.notImplemented(ctx, model.KindSquareSpeciesList, "species list for square")
}

func (s *Service) SingleSpeciesRecordsForSquare(ctx context.Context, _, _ string, _ int) model.QueryResult {
	return s.notImplemented(ctx, model.KindSquareSpeciesRecords, "single species records for square")
}

func (s *Service) notImplemented(ctx context.Context, kind model.Kind, op string) model.QueryResult {
	res := model.NotImplemented(op)
	s.logger.DebugContext(logger.WithQueryKind(ctx, string(kind)), "query not implemented")
	observability.ObserveQueryResult(string(kind), string(res.Status))
	return res
}

// arrayLen is the element count of a JSON array, 0 for anything else.
func arrayLen(raw json.RawMessage) int {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0
	}
	return len(items)
}
