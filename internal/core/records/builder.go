// Package records renders NBN Atlas records-ws query URLs.
//
// Available search fields are listed at https://records-ws.nbnatlas.org/index/fields.
// The query string is assembled by hand instead of url.Values because the
// upstream expects an exact parameter order, empty parameters kept in place and
// filter values that are already escaped.
package records

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultBaseURL         = "https://records-ws.nbnatlas.org/"
	DefaultDataResourceUID = "dr782"
	DefaultPageSize        = 9

	PathOccurrenceSearch = "occurrences/search"
	PathAllSpecies       = "explore/group/ALL_SPECIES"
	PathOccurrence       = "occurrence/"

	// filters are joined with a url-encoded " AND "
	filterSeparator = "%20AND%20"
)

// Endpoint holds the settings shared by every builder.
type Endpoint struct {
	BaseURL         string
	DataResourceUID string
	PageSize        int
}

func DefaultEndpoint() Endpoint {
	return Endpoint{
		BaseURL:         DefaultBaseURL,
		DataResourceUID: DefaultDataResourceUID,
		PageSize:        DefaultPageSize,
	}
}

// Builder accumulates filter clauses and paging/sort options for one path.
// Filters are strictly additive; the option fields are plain last-write-wins.
type Builder struct {
	Path     string
	Facets   string
	Sort     string
	FSort    string
	Dir      string
	PageSize int

	ep      Endpoint
	filters []string
}

func (e Endpoint) New(path string) *Builder {
	if e.BaseURL == "" {
		e.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(e.BaseURL, "/") {
		e.BaseURL += "/"
	}
	if e.DataResourceUID == "" {
		e.DataResourceUID = DefaultDataResourceUID
	}
	pageSize := e.PageSize
	if pageSize < 0 {
		pageSize = DefaultPageSize
	}
	return &Builder{Path: path, PageSize: pageSize, ep: e}
}

// Add appends a filter clause verbatim and returns the builder.
func (b *Builder) Add(filter string) *Builder {
	b.filters = append(b.filters, filter)
	return b
}

func (b *Builder) Filters() []string {
	out := make([]string, len(b.filters))
	copy(out, b.filters)
	return out
}

// URL returns base url and path without a query string.
func (b *Builder) URL() string {
	return b.ep.BaseURL + b.Path
}

// QueryString renders the full request URL without a start offset.
func (b *Builder) QueryString() string {
	return b.render(-1)
}

// PageQueryString renders the full request URL with start=page*pageSize.
func (b *Builder) PageQueryString(page int) string {
	if page < 0 {
		page = 0
	}
	return b.render(page)
}

// DownloadQueryString renders the same filters against the CSV download
// endpoint of the path, without paging.
func (b *Builder) DownloadQueryString() string {
	var sb strings.Builder
	sb.WriteString(b.ep.BaseURL)
	sb.WriteString(downloadPath(b.Path))
	sb.WriteString("?q=data_resource_uid:")
	sb.WriteString(b.ep.DataResourceUID)
	sb.WriteString("&fq=")
	sb.WriteString(strings.Join(b.filters, filterSeparator))
	sb.WriteString("&fileType=csv")
	return sb.String()
}

func (b *Builder) render(page int) string {
	var sb strings.Builder
	sb.WriteString(b.URL())
	sb.WriteString("?q=data_resource_uid:")
	sb.WriteString(b.ep.DataResourceUID)
	sb.WriteString("&fq=")
	sb.WriteString(strings.Join(b.filters, filterSeparator))
	sb.WriteString("&facets=")
	sb.WriteString(b.Facets)
	sb.WriteString("&sort=")
	sb.WriteString(b.Sort)
	sb.WriteString("&fsort=")
	sb.WriteString(b.FSort)
	sb.WriteString("&dir=")
	sb.WriteString(b.Dir)
	sb.WriteString("&pageSize=")
	sb.WriteString(strconv.Itoa(b.PageSize))
	if page >= 0 {
		sb.WriteString("&start=")
		sb.WriteString(strconv.Itoa(page * b.PageSize))
	}
	return sb.String()
}

func downloadPath(path string) string {
	p := strings.TrimRight(path, "/")
	if p == PathOccurrenceSearch || strings.HasPrefix(p, PathOccurrence) {
		return "occurrences/index/download"
	}
	return p + "/download"
}

// RawURLEncode escapes everything except unreserved characters and encodes
// spaces as %20.
func RawURLEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// FormEncode escapes like an html form, spaces become '+'.
func FormEncode(s string) string {
	return url.QueryEscape(s)
}
