package query

import (
	"net/url"
	"testing"

	"github.com/aluiziolira/go-scrape-catalog/config"
)

func TestBuildSearchURL(t *testing.T) {
	inst := config.Institution{Name: "광운인공지능고등학교", ProvCode: "B10", NeisCode: "B100000580"}

	got, err := BuildSearchURL("https://read365.edunet.net/PureScreen/SchoolSearchResult", " 문명 ", inst)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if u.Host != "read365.edunet.net" || u.Path != "/PureScreen/SchoolSearchResult" {
		t.Fatalf("unexpected target %s", got)
	}
	q := u.Query()
	if q.Get("searchKeyword") != "문명" {
		t.Fatalf("searchKeyword=%q", q.Get("searchKeyword"))
	}
	if q.Get("schoolName") != inst.Name || q.Get("provCode") != "B10" || q.Get("neisCode") != "B100000580" {
		t.Fatalf("institution params not encoded: %v", q)
	}
}

func TestBuildSearchURLErrors(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		keyword string
	}{
		{name: "blank keyword", base: "https://example.test/search", keyword: "   "},
		{name: "missing host", base: "/search", keyword: "civilization"},
		{name: "bad url", base: "http://%zz", keyword: "civilization"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildSearchURL(tt.base, tt.keyword, config.Institution{}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
