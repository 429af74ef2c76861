package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"toilet-finder/internal/model"
)

func newTestIndex(t *testing.T, h http.HandlerFunc) *Index {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	x, err := Open(srv.URL, "toilets")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return x
}

func TestFindNearby(t *testing.T) {
	var body string
	x := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/toilets/_search" {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("content-type", "application/json")
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":3,"relation":"eq"},"hits":[
			{"_id":"tokyo_1","_source":{"name":"A","location":{"lat":35.6821,"lon":139.7671},"type":"PUBLIC","accessibility":true},"sort":[100.1]},
			{"_id":"tokyo_2","_source":{"name":"B","location":{"lat":35.6839,"lon":139.7671},"type":"PUBLIC"},"sort":[300.2]},
			{"_id":"tokyo_3","_source":{"name":"far","location":{"lat":35.70,"lon":139.7671},"type":"PUBLIC"},"sort":[2000]}
		]}}`)
	})
	got, err := x.FindNearby(context.Background(), model.Location{Latitude: 35.6812, Longitude: 139.7671}, 500)
	if err != nil {
		t.Fatalf("FindNearby() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "tokyo_1" || got[1].ID != "tokyo_2" {
		t.Fatalf("FindNearby() = %+v; want tokyo_1, tokyo_2", got)
	}
	if !got[0].Accessible || got[0].Latitude != 35.6821 {
		t.Fatalf("FindNearby()[0] = %+v", got[0])
	}
	for _, want := range []string{`"geo_distance"`, `"500m"`, `"_geo_distance"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("search body %s missing %s", body, want)
		}
	}
}

func TestFindByIDMissing(t *testing.T) {
	x := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"_index":"toilets","_id":"x","found":false}`)
	})
	f, err := x.FindByID(context.Background(), "x")
	if f != nil || err != nil {
		t.Fatalf("FindByID() = %v, %v; want nil, nil", f, err)
	}
}

func TestIndexFacilitiesCountsFailures(t *testing.T) {
	var lines int
	x := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/_bulk") {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		lines = strings.Count(string(b), "\n")
		w.Header().Set("content-type", "application/json")
		_, _ = io.WriteString(w, `{"took":1,"errors":true,"items":[
			{"index":{"_index":"toilets","_id":"a","status":201}},
			{"index":{"_index":"toilets","_id":"b","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad"}}}
		]}`)
	})
	n, err := x.IndexFacilities(context.Background(), []model.Facility{
		{ID: "a", Name: "A", Latitude: 1, Longitude: 2},
		{ID: "b", Name: "B", Latitude: 1, Longitude: 2},
	})
	if err != nil {
		t.Fatalf("IndexFacilities() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("IndexFacilities() failed = %d; want 1", n)
	}
	if lines != 4 {
		t.Fatalf("bulk body lines = %d; want 4", lines)
	}
}
