package geoip

import (
	"errors"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"

	"toilet-finder/internal/model"
)

type fakeReader map[string]model.Location

func (f fakeReader) City(ip net.IP) (*geoip2.City, error) {
	loc, ok := f[ip.String()]
	if !ok {
		return nil, errors.New("not found")
	}
	c := &geoip2.City{}
	c.Location.Latitude = loc.Latitude
	c.Location.Longitude = loc.Longitude
	return c, nil
}

func (fakeReader) Close() error { return nil }

func TestLocate(t *testing.T) {
	l := &Locator{r: fakeReader{
		"1.1.1.1": {Latitude: 37.5665, Longitude: 126.978},
		"8.8.8.8": {},
	}}
	tests := []struct {
		ip string
		ok bool
	}{
		{"1.1.1.1", true},
		{" 1.1.1.1 ", true},
		{"8.8.8.8", false},
		{"9.9.9.9", false},
		{"127.0.0.1", false},
		{"10.0.0.8", false},
		{"not-an-ip", false},
	}
	for _, tt := range tests {
		loc, ok := l.Locate(tt.ip)
		if ok != tt.ok {
			t.Fatalf("Locate(%q) ok = %v; want %v", tt.ip, ok, tt.ok)
		}
		if ok && loc.Latitude != 37.5665 {
			t.Fatalf("Locate(%q) = %+v", tt.ip, loc)
		}
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open("/nonexistent/GeoLite2-City.mmdb"); err == nil {
		t.Fatal("Open(missing) error = nil")
	}
}
