package query

import (
	"context"
	"errors"
	"math"
	"testing"

	"toilet-finder/internal/apperr"
	"toilet-finder/internal/geo"
	"toilet-finder/internal/model"
)

type fakeSource struct {
	fs        []model.Facility
	err       error
	gotRadius float64
}

func (f *fakeSource) FindNearby(_ context.Context, _ model.Location, radius float64) ([]model.Facility, error) {
	f.gotRadius = radius
	return f.fs, f.err
}

var station = model.Location{Latitude: 35.6812, Longitude: 139.7671}

func north(d float64) model.Location {
	return model.Location{Latitude: station.Latitude + d/geo.EarthRadius*180/math.Pi, Longitude: station.Longitude}
}

func at(id string, l model.Location) model.Facility {
	return model.Facility{ID: id, Name: id, Latitude: l.Latitude, Longitude: l.Longitude}
}

func TestFindNearestScenario(t *testing.T) {
	src := &fakeSource{fs: []model.Facility{at("700", north(700)), at("300", north(300)), at("100", north(100))}}
	res, err := NewService(src).FindNearest(context.Background(), station, 500, 5)
	if err != nil {
		t.Fatalf("FindNearest() error = %v", err)
	}
	if res.Total != 2 || len(res.Facilities) != 2 {
		t.Fatalf("FindNearest() total=%d len=%d; want 2, 2", res.Total, len(res.Facilities))
	}
	if res.Facilities[0].ID != "100" || res.Facilities[1].ID != "300" {
		t.Fatalf("FindNearest() order = %s, %s", res.Facilities[0].ID, res.Facilities[1].ID)
	}
	if res.Facilities[0].Distance != 100 || res.Facilities[1].Distance != 300 {
		t.Fatalf("FindNearest() distances = %v, %v; want 100, 300", res.Facilities[0].Distance, res.Facilities[1].Distance)
	}
}

func TestFindNearestLimitAndTotal(t *testing.T) {
	var fs []model.Facility
	for i := 0; i < 15; i++ {
		fs = append(fs, at(string(rune('a'+i)), north(float64(50*(15-i)))))
	}
	res, err := NewService(&fakeSource{fs: fs}).FindNearest(context.Background(), station, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 15 || len(res.Facilities) != DefaultLimit {
		t.Fatalf("FindNearest() total=%d len=%d; want 15, %d", res.Total, len(res.Facilities), DefaultLimit)
	}
	for i := 1; i < len(res.Facilities); i++ {
		if res.Facilities[i-1].Distance > res.Facilities[i].Distance {
			t.Fatalf("FindNearest() not sorted at %d", i)
		}
	}
}

func TestFindNearestStableTies(t *testing.T) {
	p := north(200)
	src := &fakeSource{fs: []model.Facility{at("first", p), at("second", p), at("third", p)}}
	res, err := NewService(src).FindNearest(context.Background(), station, 1000, 10)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if res.Facilities[i].ID != want {
			t.Fatalf("FindNearest()[%d] = %s; want %s", i, res.Facilities[i].ID, want)
		}
	}
}

func TestFindNearestDefaults(t *testing.T) {
	src := &fakeSource{}
	if _, err := NewService(src).FindNearest(context.Background(), station, 0, 0); err != nil {
		t.Fatal(err)
	}
	if src.gotRadius != DefaultRadius {
		t.Fatalf("radius passed = %v; want %v", src.gotRadius, DefaultRadius)
	}
}

func TestFindNearestValidation(t *testing.T) {
	tests := []struct {
		name   string
		loc    model.Location
		radius float64
		limit  int
	}{
		{"lat 91", model.Location{Latitude: 91, Longitude: 0}, 100, 1},
		{"lon 181", model.Location{Latitude: 0, Longitude: 181}, 100, 1},
		{"negative radius", station, -1, 1},
		{"negative limit", station, 100, -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(&fakeSource{}).FindNearest(context.Background(), tt.loc, tt.radius, tt.limit)
			if !apperr.IsValidation(err) {
				t.Fatalf("FindNearest() error = %v; want validation error", err)
			}
		})
	}
}

func TestFindNearestHidesSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("dial tcp 10.0.0.1:5432: connection refused")}
	_, err := NewService(src).FindNearest(context.Background(), station, 100, 1)
	if !errors.Is(err, apperr.ErrSearchFailed) || err.Error() != apperr.ErrSearchFailed.Error() {
		t.Fatalf("FindNearest() error = %v; want bare ErrSearchFailed", err)
	}
}
