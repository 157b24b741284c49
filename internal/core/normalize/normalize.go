// Package normalize reshapes records-ws payloads into query results.
package normalize

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sedn/nbn-facade/internal/core/model"
)

// SiteListLimit is the number of facet entries kept for a site search.
const SiteListLimit = 9

const unknownCollector = "Unknown"

// SearchResponse is the occurrences/search payload.
type SearchResponse struct {
	Occurrences  []Occurrence `json:"occurrences"`
	TotalRecords int          `json:"totalRecords"`
}

// Occurrence is the wire form of a record; pointer fields tell absent from empty.
type Occurrence struct {
	UUID           string  `json:"uuid"`
	ScientificName string  `json:"scientificName"`
	VernacularName string  `json:"vernacularName"`
	Year           *int    `json:"year"`
	EventDate      int64   `json:"eventDate"`
	LocationID     *string `json:"locationId"`
	Collector      *string `json:"collector"`
	LatLong        string  `json:"latLong"`
	GridReference  string  `json:"gridReference"`

	// Extra holds every other upstream field, passed through untouched.
	Extra map[string]json.RawMessage `json:"-"`
}

type occurrenceWire Occurrence

func (o *Occurrence) UnmarshalJSON(b []byte) error {
	var w occurrenceWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	w.Extra = model.ExtraFields(all)
	*o = Occurrence(w)
	return nil
}

// FacetResponse is the payload of a facet-only (pageSize=0) search.
type FacetResponse struct {
	FacetResults []struct {
		FieldName   string             `json:"fieldName"`
		FieldResult []model.FacetEntry `json:"fieldResult"`
	} `json:"facetResults"`
}

// Records applies the field defaults: a missing locationId becomes "" and a
// missing collector becomes "Unknown".
func Records(in []Occurrence) []model.OccurrenceRecord {
	out := make([]model.OccurrenceRecord, 0, len(in))
	for _, o := range in {
		r := model.OccurrenceRecord{
			UUID:           o.UUID,
			TaxonName:      o.ScientificName,
			VernacularName: o.VernacularName,
			Year:           o.Year,
			EventDate:      o.EventDate,
			Collector:      unknownCollector,
			LatLong:        o.LatLong,
			GridReference:  o.GridReference,
			Extra:          o.Extra,
		}
		if o.LocationID != nil {
			r.LocationID = *o.LocationID
		}
		if o.Collector != nil {
			r.Collector = *o.Collector
		}
		out = append(out, r)
	}
	return out
}

func yearOf(r model.OccurrenceRecord) int {
	if r.Year == nil {
		return math.MinInt
	}
	return *r.Year
}

// SortByYearDesc orders records newest first; records without a year go
// last. Records with the same year keep their input order.
func SortByYearDesc(recs []model.OccurrenceRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return yearOf(recs[i]) > yearOf(recs[j])
	})
}

// ParseLatLong splits "lat,long" into two floats. ok is false when the value
// does not hold exactly two parseable halves; unparseable halves read as 0.
func ParseLatLong(s string) (coords [2]float64, ok bool) {
	parts := strings.Split(s, ",")
	ok = len(parts) == 2
	for i := 0; i < len(parts) && i < 2; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			ok = false
			continue
		}
		coords[i] = f
	}
	return coords, ok
}

// Sites returns one SiteLocation per distinct locationId, taken from the
// first record bearing it in the given order.
func Sites(recs []model.OccurrenceRecord) map[string]model.SiteLocation {
	sites := make(map[string]model.SiteLocation)
	for _, r := range recs {
		if _, seen := sites[r.LocationID]; seen {
			continue
		}
		coords, _ := ParseLatLong(r.LatLong)
		sites[r.LocationID] = model.SiteLocation{
			LocationID:  r.LocationID,
			Coordinates: coords,
		}
	}
	return sites
}

// Truncate keeps the first n entries in their input order.
func Truncate[T any](list []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(list) <= n {
		return list
	}
	return list[:n]
}

// SpeciesRecords sorts the search payload and derives the site map.
func SpeciesRecords(resp SearchResponse) ([]model.OccurrenceRecord, map[string]model.SiteLocation) {
	recs := Records(resp.Occurrences)
	SortByYearDesc(recs)
	return recs, Sites(recs)
}

// SiteList returns the first facet's entries truncated to SiteListLimit.
func SiteList(resp FacetResponse) []model.FacetEntry {
	if len(resp.FacetResults) == 0 {
		return []model.FacetEntry{}
	}
	entries := resp.FacetResults[0].FieldResult
	if entries == nil {
		return []model.FacetEntry{}
	}
	return Truncate(entries, SiteListLimit)
}
