// Package model defines core domain types shared across the service.
package model

import (
	"encoding/json"
	"maps"
)

type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// ErrorCode is the structured companion of QueryResult.Message.
type ErrorCode string

const (
	CodeQueryError     ErrorCode = "query_error"
	CodeServerError    ErrorCode = "server_error"
	CodeUnknown        ErrorCode = "unknown"
	CodeNotImplemented ErrorCode = "not_implemented"
)

// Kind names one of the fixed query shapes; it is also the cache key namespace.
type Kind string

const (
	KindSpeciesList          Kind = "get-species-list"
	KindSpeciesRecords       Kind = "get-records"
	KindOccurrence           Kind = "get-occurrence"
	KindSiteList             Kind = "get-sites"
	KindSiteSpeciesList      Kind = "get-site-species"
	KindSiteSpeciesRecords   Kind = "get-site-records"
	KindSquareSpeciesList    Kind = "get-square-species"
	KindSquareSpeciesRecords Kind = "get-square-records"
)

// Kinds lists every query kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindSpeciesList,
		KindSpeciesRecords,
		KindOccurrence,
		KindSiteList,
		KindSiteSpeciesList,
		KindSiteSpeciesRecords,
		KindSquareSpeciesList,
		KindSquareSpeciesRecords,
	}
}

func (k Kind) Valid() bool {
	for _, v := range Kinds() {
		if v == k {
			return true
		}
	}
	return false
}

// OccurrenceRecord is a single sighting as returned by occurrences/search.
// Upstream fields without a typed counterpart are kept in Extra and written
// back out alongside the typed ones.
type OccurrenceRecord struct {
	UUID           string `json:"uuid,omitempty"`
	TaxonName      string `json:"scientificName,omitempty"`
	VernacularName string `json:"vernacularName,omitempty"`
	Year           *int   `json:"year,omitempty"`
	EventDate      int64  `json:"eventDate,omitempty"`
	LocationID     string `json:"locationId"`
	Collector      string `json:"collector"`
	LatLong        string `json:"latLong,omitempty"`
	GridReference  string `json:"gridReference,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var occurrenceFieldNames = []string{
	"uuid", "scientificName", "vernacularName", "year", "eventDate",
	"locationId", "collector", "latLong", "gridReference",
}

// ExtraFields drops the typed occurrence fields from all and returns the
// rest, or nil when nothing is left.
func ExtraFields(all map[string]json.RawMessage) map[string]json.RawMessage {
	for _, k := range occurrenceFieldNames {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil
	}
	return all
}

type occurrenceFields OccurrenceRecord

func (r OccurrenceRecord) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(occurrenceFields(r))
	if err != nil || len(r.Extra) == 0 {
		return known, err
	}
	var typed map[string]json.RawMessage
	if err := json.Unmarshal(known, &typed); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(r.Extra)+len(typed))
	maps.Copy(out, r.Extra)
	maps.Copy(out, typed)
	return json.Marshal(out)
}

func (r *OccurrenceRecord) UnmarshalJSON(b []byte) error {
	var f occurrenceFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	f.Extra = ExtraFields(all)
	*r = OccurrenceRecord(f)
	return nil
}

// SiteLocation marks the first record seen for a locationId.
type SiteLocation struct {
	LocationID  string     `json:"locationId"`
	Coordinates [2]float64 `json:"coordinates"`
	Cell        string     `json:"h3,omitempty"`
}

// FacetEntry is one fieldResult item of a facet-only query.
type FacetEntry struct {
	Label    string `json:"label"`
	Count    int    `json:"count"`
	FQ       string `json:"fq,omitempty"`
	I18nCode string `json:"i18nCode,omitempty"`
}

// QueryResult is what every query operation returns and what the cache stores.
// Records holds the raw upstream node for pass-through queries; Occurrences and
// Facets hold the normalized lists for the queries that reshape the payload.
type QueryResult struct {
	Records      json.RawMessage         `json:"records,omitempty"`
	Occurrences  []OccurrenceRecord      `json:"occurrences,omitempty"`
	Facets       []FacetEntry            `json:"facets,omitempty"`
	Sites        map[string]SiteLocation `json:"sites,omitempty"`
	TotalRecords int                     `json:"totalRecords"`
	DownloadLink string                  `json:"downloadLink,omitempty"`
	Status       Status                  `json:"status"`
	Message      string                  `json:"message,omitempty"`
	Code         ErrorCode               `json:"code,omitempty"`
	HTTPStatus   int                     `json:"httpStatus,omitempty"`
	QueryURL     string                  `json:"queryUrl,omitempty"`
}

func (r QueryResult) OK() bool { return r.Status == StatusOK }

// NotImplemented is the typed result of the declared-but-unbuilt query shapes.
func NotImplemented(op string) QueryResult {
	return QueryResult{
		Status:  StatusError,
		Code:    CodeNotImplemented,
		Message: op + " is not implemented",
	}
}
