package keys

import (
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"
)

var hashSuffix = regexp.MustCompile(`-[0-9a-f]{16}$`)

func readable(k string) string { return hashSuffix.ReplaceAllString(k, "") }

func TestKey_LowerCaseAndHyphens(t *testing.T) {
	got := Key("get-records", "Quercus robur")
	if !strings.HasPrefix(got, "get-records-quercus-robur-") || !hashSuffix.MatchString(got) {
		t.Fatalf("got %q", got)
	}
	if readable(got) != "get-records-quercus-robur" {
		t.Fatalf("readable part=%q", readable(got))
	}
}

func TestKey_Deterministic(t *testing.T) {
	k1 := Key("get-species-list", "Quer", "scientific", "both", "2")
	k2 := Key("get-species-list", " quer ", "scientific", "Both", "2")
	if k1 != k2 {
		t.Fatalf("keys differ:\n k1=%s\n k2=%s", k1, k2)
	}
	if readable(k1) != "get-species-list-quer-scientific-both-2" {
		t.Fatalf("got %q", k1)
	}
}

func TestKey_DifferentInputsDiffer(t *testing.T) {
	cases := [][2][]string{
		{{"a", "1"}, {"a", "2"}},
		{{"Ærchis", "0"}, {"Örchis", "0"}},
		{{"a-b", "c"}, {"a", "b-c"}},
		{{"St. Mary's"}, {"St. Mary s"}},
		{{"a/b"}, {"a?b"}},
	}
	for _, c := range cases {
		k1 := Key("get-site-species", c[0]...)
		k2 := Key("get-site-species", c[1]...)
		if k1 == k2 {
			t.Fatalf("%q and %q share key %s", c[0], c[1], k1)
		}
	}
	if Key("get-records", "a") == Key("get-occurrence", "a") {
		t.Fatal("kind must be part of the key")
	}
}

func TestKey_KeepsLettersReplacesPunctuation(t *testing.T) {
	k := readable(Key("get-site-species", `Göteborg "Park" / 雪`))
	if k != "get-site-species-göteborg--park----雪" {
		t.Fatalf("got %q", k)
	}
}

func TestKey_LongKeysBounded(t *testing.T) {
	long := strings.Repeat("abcdefghij", 30)
	k1 := Key("get-records", long+"x")
	k2 := Key("get-records", long+"y")
	if len(k1) != MaxLen {
		t.Fatalf("len=%d want %d", len(k1), MaxLen)
	}
	if k1 == k2 {
		t.Fatal("truncated keys must keep distinct hash suffixes")
	}

	wide := Key("get-records", strings.Repeat("雪", 100))
	if len(wide) > MaxLen || !utf8.ValidString(wide) {
		t.Fatalf("len=%d valid=%v", len(wide), utf8.ValidString(wide))
	}
}

func TestPrefix_MatchesKeys(t *testing.T) {
	p := Prefix("get-species-list", "")
	if p != "get-species-list-" {
		t.Fatalf("prefix=%q", p)
	}
	k := Key("get-records", "Quercus robur", "0")
	if !strings.HasPrefix(k, Prefix("get-records", "Quercus")) {
		t.Fatalf("%q does not start with %q", k, Prefix("get-records", "Quercus"))
	}
	if strings.HasPrefix(k, Prefix("get-records", "Fagus")) {
		t.Fatal("unexpected match")
	}
	if !strings.HasPrefix(Key("get-records", "Örchis"), Prefix("get-records", "örch")) {
		t.Fatal("prefix must match non-ASCII names")
	}

	long := strings.Repeat("q", 400)
	if !strings.HasPrefix(Key("get-records", long), Prefix("get-records", long)) {
		t.Fatal("prefix must still match a truncated key")
	}
	wide := strings.Repeat("雪", 100)
	if !strings.HasPrefix(Key("get-records", wide), Prefix("get-records", wide)) {
		t.Fatal("prefix must match a key truncated on a rune boundary")
	}
}
