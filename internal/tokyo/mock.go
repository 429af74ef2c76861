package tokyo

import (
	"strconv"
	"time"

	"toilet-finder/internal/model"
)

type mockRow struct {
	name     string
	lat, lon float64
	address  string
	category model.Category
	access   bool
	hours    string
}

// 内置兜底数据：远端拉取失败或无可用行时使用
var mockRows = []mockRow{
	{"도쿄역 공중화장실", 35.6812, 139.7671, "東京都千代田区丸の内一丁目9番1号", model.Public, true, "24시간"},
	{"신주쿠역 남쪽 출구 화장실", 35.6896, 139.7006, "東京都新宿区新宿三丁目38番1号", model.Public, true, "06:00-23:00"},
	{"시부야 센터가이 화장실", 35.658, 139.7016, "東京都渋谷区道玄坂二丁目3番1号", model.Public, false, "24시간"},
	{"오다이바 해변공원 화장실", 35.6267, 139.773, "東京都港区台場一丁目4番1号", model.Public, true, "24시간"},
	{"긴자 중앙 화장실", 35.6718, 139.7668, "東京都中央区銀座四丁目6番16号", model.Public, true, "08:00-22:00"},
	{"아사쿠사 센소지 화장실", 35.7148, 139.7966, "東京都台東区浅草二丁目3番1号", model.Public, true, "06:00-20:00"},
	{"츠키지 시장 화장실", 35.6654, 139.7707, "東京都中央区築地五丁目2番1号", model.Public, false, "05:00-15:00"},
	{"도쿄 스카이트리 화장실", 35.7101, 139.8107, "東京都墨田区押上一丁目1番13号", model.Public, true, "08:00-22:00"},
	{"우에노공원 화장실", 35.7153, 139.7737, "東京都台東区上野公園5番20号", model.Public, true, "24시간"},
	{"이케부쿠로역 동쪽 출구 화장실", 35.7295, 139.7109, "東京都豊島区南池袋一丁目28番2号", model.Public, true, "06:00-24:00"},
	{"하라주쿠역 다케시타거리 화장실", 35.6706, 139.7026, "東京都渋谷区神宮前一丁目14番30号", model.Public, false, "08:00-20:00"},
	{"아키하바라역 전기거리 화장실", 35.7022, 139.7744, "東京都千代田区外神田一丁目15番16号", model.Public, true, "24시간"},
	{"도쿄돔 시티 화장실", 35.7056, 139.7522, "東京都文京区後楽一丁目3番61号", model.Commercial, true, "08:00-22:00"},
	{"롯폰기힐즈 화장실", 35.6606, 139.7298, "東京都港区六本木六丁目10番1号", model.Commercial, true, "24시간"},
	{"메이지신궁 화장실", 35.6763, 139.6993, "東京都渋谷区代々木神園町1番1号", model.Public, true, "06:00-18:00"},
	{"신바시역 SL광장 화장실", 35.6656, 139.7585, "東京都港区新橋二丁目20番15号", model.Public, false, "24시간"},
	{"시나가와역 항만구청 화장실", 35.6284, 139.7387, "東京都港区港南二丁目16番3号", model.Public, true, "06:00-23:00"},
	{"요요기공원 화장실", 35.6719, 139.6959, "東京都渋谷区代々木神園町2番1号", model.Public, true, "24시간"},
	{"타마치역 동쪽 출구 화장실", 35.6456, 139.747, "東京都港区芝五丁目33番1号", model.Public, true, "06:00-24:00"},
	{"카메이도역 아리오 화장실", 35.6965, 139.8269, "東京都江東区亀戸二丁目19番1号", model.Commercial, true, "10:00-21:00"},
}

// mockFacilities：id 为 tokyo_mock_<n>，从 1 开始
func mockFacilities(now time.Time) []model.Facility {
	out := make([]model.Facility, len(mockRows))
	for i, r := range mockRows {
		out[i] = model.Facility{
			ID:             "tokyo_mock_" + strconv.Itoa(i+1),
			Name:           r.name,
			Latitude:       r.lat,
			Longitude:      r.lon,
			Address:        r.address,
			Category:       r.category,
			Accessible:     r.access,
			OperatingHours: r.hours,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}
	return out
}
