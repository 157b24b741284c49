package records

import (
	"net/url"
	"strings"
	"testing"
)

func TestQueryString_NoFiltersKeepsEmptyFQ(t *testing.T) {
	b := DefaultEndpoint().New(PathOccurrenceSearch)
	got := b.QueryString()
	want := "https://records-ws.nbnatlas.org/occurrences/search?q=data_resource_uid:dr782&fq=&facets=&sort=&fsort=&dir=&pageSize=9"
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestQueryString_FiltersJoinedWithEncodedAND(t *testing.T) {
	b := DefaultEndpoint().New(PathAllSpecies)
	b.Add("taxon_name:B*")
	if !strings.Contains(b.QueryString(), "&fq=taxon_name:B*&") {
		t.Fatalf("single filter not rendered verbatim: %s", b.QueryString())
	}

	b.Add("species_group:Plants+Bryophytes")
	if !strings.Contains(b.QueryString(), "&fq=taxon_name:B*%20AND%20species_group:Plants+Bryophytes&") {
		t.Fatalf("filters not joined: %s", b.QueryString())
	}
}

func TestAdd_Chainable(t *testing.T) {
	b := DefaultEndpoint().New(PathAllSpecies)
	if b.Add("a:1").Add("b:2") != b {
		t.Fatal("Add must return the same builder")
	}
	if got := b.Filters(); len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Fatalf("filters=%v", got)
	}
}

func TestPageQueryString_StartIsPageTimesPageSize(t *testing.T) {
	b, err := DefaultEndpoint().SpeciesList("abi", NameScientific, "both")
	if err != nil {
		t.Fatalf("SpeciesList: %v", err)
	}
	u, err := url.Parse(b.PageQueryString(2))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := u.Query().Get("start"); got != "18" {
		t.Fatalf("start=%q want 18", got)
	}
	if got := u.Query().Get("pageSize"); got != "9" {
		t.Fatalf("pageSize=%q want 9", got)
	}
}

func TestQueryString_OmitsStart(t *testing.T) {
	b := DefaultEndpoint().New(PathAllSpecies)
	if strings.Contains(b.QueryString(), "start=") {
		t.Fatalf("unexpected start: %s", b.QueryString())
	}
	if !strings.HasSuffix(b.PageQueryString(-3), "&start=0") {
		t.Fatalf("negative page should clamp to 0: %s", b.PageQueryString(-3))
	}
}

func TestOptions_LastWriteWins(t *testing.T) {
	b := DefaultEndpoint().New(PathOccurrenceSearch)
	b.Sort = "taxon_name"
	b.Sort = "year"
	b.PageSize = 20
	b.PageSize = 0
	got := b.QueryString()
	if !strings.Contains(got, "&sort=year&") || !strings.HasSuffix(got, "&pageSize=0") {
		t.Fatalf("got %s", got)
	}
}

func TestDownloadQueryString(t *testing.T) {
	b := DefaultEndpoint().SpeciesRecords("Abies alba")
	got := b.DownloadQueryString()
	want := `https://records-ws.nbnatlas.org/occurrences/index/download?q=data_resource_uid:dr782&fq=taxon_name:"Abies%20alba"&fileType=csv`
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}

	sp := DefaultEndpoint().SiteSpeciesList("Shrewsbury", "both")
	if !strings.HasPrefix(sp.DownloadQueryString(), "https://records-ws.nbnatlas.org/explore/group/ALL_SPECIES/download?") {
		t.Fatalf("got %s", sp.DownloadQueryString())
	}
	if strings.Contains(sp.DownloadQueryString(), "pageSize") {
		t.Fatalf("download link must not page: %s", sp.DownloadQueryString())
	}
}

func TestEndpoint_BaseURLGetsTrailingSlash(t *testing.T) {
	ep := Endpoint{BaseURL: "http://127.0.0.1:9999", DataResourceUID: "dr1", PageSize: 5}
	got := ep.New(PathAllSpecies).URL()
	if got != "http://127.0.0.1:9999/explore/group/ALL_SPECIES" {
		t.Fatalf("got %s", got)
	}
}
