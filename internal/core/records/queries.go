package records

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

type NameType string

const (
	NameScientific NameType = "scientific"
	NameCommon     NameType = "common"
)

// GroupBoth selects plants and bryophytes together.
const GroupBoth = "both"

const groupBothValue = "Plants+Bryophytes"

// SpeciesGroup maps a caller's species group onto the value the upstream
// accepts. The upstream is case-sensitive, so single groups are capitalized.
func SpeciesGroup(group string) string {
	g := strings.TrimSpace(group)
	if g == "" || strings.EqualFold(g, GroupBoth) {
		return groupBothValue
	}
	return url.QueryEscape(UpperFirst(g))
}

// UpperFirst capitalizes the first rune. The upstream matches taxon and group
// names case-sensitively.
func UpperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// EscapeSearchValue percent-encodes a prefix search and writes spaces as
// "+%2B"; the upstream only matches multi-word prefixes in this form.
// QueryEscape turns a literal '+' into %2B, so every '+' left is a space.
func EscapeSearchValue(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "+%2B")
}

// SpeciesList builds the alphabetical species list query for the county,
// e.g. explore/group/ALL_SPECIES?...&fq=taxon_name:B*%20AND%20species_group:Plants+Bryophytes
func (e Endpoint) SpeciesList(search string, nameType NameType, group string) (*Builder, error) {
	b := e.New(PathAllSpecies)
	value := EscapeSearchValue(UpperFirst(search)) + "*"
	switch nameType {
	case NameScientific:
		b.Add("taxon_name:" + value)
		b.Sort = "taxon_name"
	case NameCommon:
		b.Add("common_name:" + value)
		b.Sort = "common_name"
	default:
		return nil, fmt.Errorf("unknown name type %q", nameType)
	}
	b.Add("species_group:" + SpeciesGroup(group))
	return b, nil
}

// SpeciesRecords builds the occurrence search for a single taxon. The name is
// quoted so the complete string is matched rather than a prefix.
func (e Endpoint) SpeciesRecords(taxon string) *Builder {
	b := e.New(PathOccurrenceSearch)
	b.Sort = "year"
	b.Dir = "desc"
	b.Add(`taxon_name:"` + RawURLEncode(taxon) + `"`)
	return b
}

// SiteList builds the facet-only site name search starting at search.
func (e Endpoint) SiteList(search string) *Builder {
	b := e.New(PathOccurrenceSearch)
	b.Facets = "location_id"
	b.PageSize = 0
	b.Add("location_id:[" + RawURLEncode(search) + "%20TO%20*]")
	return b
}

// SiteSpeciesList builds the species list for one site.
func (e Endpoint) SiteSpeciesList(site, group string) *Builder {
	b := e.New(PathAllSpecies)
	b.Add("location_id:" + FormEncode(site))
	b.Add("species_group:" + SpeciesGroup(group))
	return b
}

// Occurrence builds the direct lookup of one record by uuid. Its download
// link filters the occurrence index on the same id.
func (e Endpoint) Occurrence(uuid string) *Builder {
	b := e.New(PathOccurrence + RawURLEncode(uuid))
	b.Add("id:" + RawURLEncode(uuid))
	return b
}
