// Package router maps the /api/v1 query endpoints onto the query service.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sedn/nbn-facade/internal/core/model"
	"github.com/sedn/nbn-facade/internal/core/records"
	"github.com/sedn/nbn-facade/internal/query"
)

var validate = validator.New()

type API struct {
	logger *slog.Logger
	svc    query.Interface
}

func New(logger *slog.Logger, svc query.Interface) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{logger: logger, svc: svc}
}

// Mount registers the query routes under /api/v1.
func (a *API) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/species", a.speciesList)
		r.Get("/species/{name}/records", a.speciesRecords)
		r.Get("/occurrences/{uuid}", a.occurrence)
		r.Get("/sites", a.siteList)
		r.Get("/sites/{site}/species", a.siteSpecies)
		r.Get("/sites/{site}/species/{name}/records", a.siteSpeciesRecords)
		r.Get("/squares/{square}/species", a.squareSpecies)
		r.Get("/squares/{square}/species/{name}/records", a.squareSpeciesRecords)
	})
}

type speciesListQuery struct {
	Search   string `validate:"max=100"`
	NameType string `validate:"oneof=scientific common"`
	Group    string `validate:"omitempty,max=60,printascii"`
	Page     int    `validate:"gte=0,lte=10000"`
}

type recordsQuery struct {
	Name string `validate:"required,max=200"`
	Page int    `validate:"gte=0,lte=10000"`
}

type occurrenceQuery struct {
	UUID string `validate:"required,uuid"`
}

type siteListQuery struct {
	Search string `validate:"max=100"`
}

type siteSpeciesQuery struct {
	Site  string `validate:"required,max=200"`
	Group string `validate:"omitempty,max=60,printascii"`
}

type siteRecordsQuery struct {
	Site string `validate:"required,max=200"`
	Name string `validate:"required,max=200"`
	Page int    `validate:"gte=0,lte=10000"`
}

type squareSpeciesQuery struct {
	Square string `validate:"required,alphanum,max=12"`
	Group  string `validate:"omitempty,max=60,printascii"`
	Page   int    `validate:"gte=0,lte=10000"`
}

type squareRecordsQuery struct {
	Square string `validate:"required,alphanum,max=12"`
	Name   string `validate:"required,max=200"`
	Page   int    `validate:"gte=0,lte=10000"`
}

func (a *API) speciesList(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	q := speciesListQuery{
		Search:   strings.TrimSpace(r.URL.Query().Get("search")),
		NameType: defaultString(r.URL.Query().Get("nameType"), string(records.NameScientific)),
		Group:    strings.TrimSpace(r.URL.Query().Get("group")),
		Page:     page,
	}
	if err := validate.Struct(q); err != nil {
		badRequest(w, err)
		return
	}
	a.write(w, r, a.svc.SpeciesListForCounty(r.Context(), q.Search, records.NameType(q.NameType), q.Group, q.Page))
}

func (a *API) speciesRecords(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	name, err := pathParam(r, "name")
	if err != nil {
		badRequest(w, err)
		return
	}
	q := recordsQuery{Name: name, Page: page}
	if err := validate.Struct(q); err != nil {
		badRequest(w, err)
		return
	}
	a.write(w, r, a.svc.SingleSpeciesRecordsForCounty(r.Context(), q.Name, q.Page))
}

func (a *API) occurrence(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "uuid")
	if err != nil {
		badRequest(w, err)
		return
	}
	q := occurrenceQuery{UUID: id}
	if err := validate.Struct(q); err != nil {
		badRequest(w, err)
		return
	}
	a.write(w, r, a.svc.SingleOccurrenceRecord(r.Context(), q.UUID))
}

func (a *API) siteList(w http.ResponseWriter, r *http.Request) {
	q := siteListQuery{Search: strings.TrimSpace(r.URL.Query().Get("search"))}
	if err := validate.Struct(q); err != nil {
		badRequest(w, err)
		return
	}
	a.write(w, r, a.svc.SiteListForCounty(r.Context(), q.Search))
}

func (a *API) siteSpecies(w http.ResponseWriter, r *http.Request) {
	site, err := pathParam(r, "site")
	if err != nil {
		badRequest(w, err)
		return
	}
	q := siteSpeciesQuery{Site: site, Group: strings.TrimSpace(r.URL.Query().Get("group"))}
	if err := validate.Struct(q); err != nil {
		badRequest(w, err)
		return
	}
	a.write(w, r, a.svc.SpeciesListForSite(r.Context(), q.Site, q.Group))
}

func (a *API) siteSpeciesRecords(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	site, err := pathParam(r, "site")
	if err != nil {
		badRequest(w, err)
		return
	}
	name, err := pathParam(r, "name")
	if err != nil {
		badRequest(w, err)
		return
	}
	q := siteRecordsQuery{Site: site, Name: name, Page: page}
	if err := validate.Struct(q); err != nil {
		badRequest(w, err)
		return
	}
	a.write(w, r, a.svc.SingleSpeciesRecordsForSite(r.Context(), q.Site, q.Name, q.Page))
}

func (a *API) squareSpecies(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	square, err := pathParam(r, "square")
	if err != nil {
		badRequest(w, err)
		return
	}
	q := squareSpeciesQuery{Square: square, Group: strings.TrimSpace(r.URL.Query().Get("group")), Page: page}
	if err := validate.Struct(q); err != nil {
		badRequest(w, err)
		return
	}
	a.write(w, r, a.svc.SpeciesListForSquare(r.Context(), q.Square, q.Group, q.Page))
}

func (a *API) squareSpeciesRecords(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	square, err := pathParam(r, "square")
	if err != nil {
		badRequest(w, err)
		return
	}
	name, err := pathParam(r, "name")
	if err != nil {
		badRequest(w, err)
		return
	}
	q := squareRecordsQuery{Square: square, Name: name, Page: page}
	if err := validate.Struct(q); err != nil {
		badRequest(w, err)
		return
	}
	a.write(w, r, a.svc.SingleSpeciesRecordsForSquare(r.Context(), q.Square, q.Name, q.Page))
}

// StatusFor maps a result onto the response status.
func StatusFor(res model.QueryResult) int {
	switch {
	case res.OK():
		return http.StatusOK
	case res.Code == model.CodeNotImplemented:
		return http.StatusNotImplemented
	}
	return http.StatusBadGateway
}

func (a *API) write(w http.ResponseWriter, r *http.Request, res model.QueryResult) {
	status := StatusFor(res)
	if status != http.StatusOK {
		a.logger.DebugContext(r.Context(), "query answered with error", "status", status, "code", string(res.Code))
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, err error) {
	msg := err.Error()
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
		msg = "invalid parameters: " + strings.Join(parts, "; ")
	}
	writeJSON(w, http.StatusBadRequest, model.QueryResult{
		Status:  model.StatusError,
		Code:    model.CodeQueryError,
		Message: msg,
	})
}

func pageParam(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("page"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("page: %w", err)
	}
	return n, nil
}

// pathParam returns the decoded path segment. chi matches on RawPath when the
// request has one, so only those segments are still escaped.
func pathParam(r *http.Request, name string) (string, error) {
	v := chi.URLParam(r, name)
	if r.URL.RawPath != "" {
		var err error
		if v, err = url.PathUnescape(v); err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
	}
	return strings.TrimSpace(v), nil
}

func defaultString(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
