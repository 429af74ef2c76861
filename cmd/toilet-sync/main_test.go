package main

import (
	"testing"

	"toilet-finder/internal/model"
)

func TestParseArea(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		bbox    model.BBox
		wantErr bool
	}{
		{"seoul:37.4,126.8,37.7,127.2", "seoul", model.BBox{South: 37.4, West: 126.8, North: 37.7, East: 127.2}, false},
		{" 부산 : 35.0, 128.8, 35.3, 129.3", "부산", model.BBox{South: 35.0, West: 128.8, North: 35.3, East: 129.3}, false},
		{"seoul", "", model.BBox{}, true},
		{":1,2,3,4", "", model.BBox{}, true},
		{"x:1,2,3", "", model.BBox{}, true},
		{"x:1,a,3,4", "", model.BBox{}, true},
		{"x:3,2,1,4", "", model.BBox{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, b, err := parseArea(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseArea(%q) err = %v; wantErr %v", tt.in, err, tt.wantErr)
			}
			if name != tt.name || b != tt.bbox {
				t.Fatalf("parseArea(%q) = %q, %+v; want %q, %+v", tt.in, name, b, tt.name, tt.bbox)
			}
		})
	}
}
