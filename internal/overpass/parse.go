package overpass

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"toilet-finder/internal/model"
)

// Element：Overpass JSON 元素。way/relation 的坐标在 center 中
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *Point            `json:"center,omitempty"`
	Tags   map[string]string `json:"tags"`
}

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type response struct {
	Elements []Element `json:"elements"`
	Remark   string    `json:"remark"`
}

const (
	defaultName  = "공공 화장실"
	defaultHours = "영업시간 정보 없음"
	allDayHours  = "24시간"
)

var (
	retailOperator = regexp.MustCompile(`(?i)(마트|상점|백화점|쇼핑|mall|shop|store|market)`)
	retailBuilding = regexp.MustCompile(`(?i)(commercial|retail|shop)`)
	accessTags     = []string{"wheelchair", "wheelchair:access", "disabled", "disabled:access", "barrier_free", "handicapped"}
)

// coords：center 优先；0 视为缺失
func (e Element) coords() (float64, float64, bool) {
	lat, lon := e.Lat, e.Lon
	if e.Center != nil {
		if e.Center.Lat != 0 {
			lat = e.Center.Lat
		}
		if e.Center.Lon != 0 {
			lon = e.Center.Lon
		}
	}
	return lat, lon, lat != 0 && lon != 0
}

// Facility：元素转换为设施记录；无坐标时返回 false
func (e Element) Facility(now time.Time) (model.Facility, bool) {
	lat, lon, ok := e.coords()
	if !ok {
		return model.Facility{}, false
	}
	tags := e.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	return model.Facility{
		ID:             fmt.Sprintf("overpass_%s_%d", e.Type, e.ID),
		Name:           name(tags),
		Latitude:       lat,
		Longitude:      lon,
		Address:        address(tags),
		Category:       category(tags),
		Accessible:     accessible(tags),
		OperatingHours: hours(tags),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, true
}

// Parse：批量转换，跳过无坐标元素
func Parse(elems []Element, now time.Time) []model.Facility {
	out := make([]model.Facility, 0, len(elems))
	for _, e := range elems {
		if f, ok := e.Facility(now); ok {
			out = append(out, f)
		}
	}
	return out
}

func first(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(tags[k]); v != "" {
			return v
		}
	}
	return ""
}

func name(tags map[string]string) string {
	if v := first(tags, "name", "name:ko", "name:en", "operator", "brand", "building"); v != "" {
		return v
	}
	return defaultName
}

func hours(tags map[string]string) string {
	if v := first(tags, "opening_hours", "opening_hours:covid19", "hours"); v != "" {
		return v
	}
	if tags["24/7"] == "yes" {
		return allDayHours
	}
	return defaultHours
}

// address：本地格式 → 国际格式 → 地点/建筑/楼层 → 默认哨兵
func address(tags map[string]string) string {
	groups := [][]string{
		{"addr:city", "addr:district", "addr:street", "addr:housenumber"},
		{"addr:country", "addr:state", "addr:city", "addr:street"},
	}
	for _, keys := range groups {
		var parts []string
		for _, k := range keys {
			if v := strings.TrimSpace(tags[k]); v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	var parts []string
	if v := strings.TrimSpace(tags["place"]); v != "" {
		parts = append(parts, v)
	}
	if v := strings.TrimSpace(tags["building"]); v != "" {
		parts = append(parts, v)
	}
	if v := strings.TrimSpace(tags["level"]); v != "" {
		parts = append(parts, v+"층")
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return model.DefaultAddress
}

// category：收费 → 商业；受限访问 → 私有；零售运营方或建筑 → 商业；其余公共
func category(tags map[string]string) model.Category {
	if tags["fee"] == "yes" || tags["charge"] != "" || tags["payment"] != "" {
		return model.Commercial
	}
	switch tags["access"] {
	case "private", "customers", "permissive":
		return model.Private
	}
	if retailOperator.MatchString(tags["operator"]) || retailBuilding.MatchString(tags["building"]) {
		return model.Commercial
	}
	return model.Public
}

func accessible(tags map[string]string) bool {
	for _, k := range accessTags {
		if tags[k] == "yes" {
			return true
		}
	}
	return false
}
