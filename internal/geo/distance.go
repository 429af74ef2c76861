// 包 geo：大圆距离与坐标编码，纯函数，不依赖外部状态
package geo

import (
	"math"

	"toilet-finder/internal/model"
)

// EarthRadius：平均地球半径（米）
const EarthRadius = 6371000.0

func radians(d float64) float64 { return d * math.Pi / 180 }

// Distance：haversine 大圆距离（米），保留完整精度用于排序
func Distance(a, b model.Location) float64 {
	phi1 := radians(a.Latitude)
	phi2 := radians(b.Latitude)
	dPhi := radians(b.Latitude - a.Latitude)
	dLambda := radians(b.Longitude - a.Longitude)
	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// WithinRadius：Distance(center, target) <= radius
func WithinRadius(center, target model.Location, radius float64) bool {
	return Distance(center, target) <= radius
}

// Meters：对外输出时取整到米
func Meters(d float64) float64 { return math.Round(d) }

// 约 1cm 余量，抵消浮点舍入
const boundsPad = 1e-7

// Bounds：以 center 为中心、半径 radius 米的经纬度外接矩形，用于 SQL 预过滤
// 约束：靠近极点或跨越反子午线时经度放开为全范围
func Bounds(center model.Location, radius float64) model.BBox {
	delta := radius / EarthRadius
	dLat := delta*180/math.Pi + boundsPad
	b := model.BBox{
		South: math.Max(-90, center.Latitude-dLat),
		North: math.Min(90, center.Latitude+dLat),
		West:  -180,
		East:  180,
	}
	if b.North >= 90 || b.South <= -90 {
		return b
	}
	x := math.Sin(delta) / math.Cos(radians(center.Latitude))
	if x >= 1 {
		return b
	}
	dLon := math.Asin(x)*180/math.Pi + boundsPad
	if center.Longitude-dLon < -180 || center.Longitude+dLon > 180 {
		return b
	}
	b.West = center.Longitude - dLon
	b.East = center.Longitude + dLon
	return b
}
