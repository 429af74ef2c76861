package overpass

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"toilet-finder/internal/model"
)

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func seconds(d time.Duration) int { return int(math.Ceil(d.Seconds())) }

// PointQuery：半径查询，节点与 way 均取 center
func PointQuery(loc model.Location, radius float64, timeout time.Duration) string {
	around := fmt.Sprintf("(around:%s,%s,%s)", num(radius), num(loc.Latitude), num(loc.Longitude))
	return fmt.Sprintf(`[out:json][timeout:%d];
(
  node["amenity"="toilets"]%s;
  way["amenity"="toilets"]%s;
);
out center;`, seconds(timeout), around, around)
}

// AreaQuery：包围盒批量查询；limit<=0 时不限制输出条数
func AreaQuery(b model.BBox, limit int, timeout time.Duration, maxSize int64) string {
	out := "out center meta tags;"
	if limit > 0 {
		out = fmt.Sprintf("out center meta tags %d;", limit)
	}
	return fmt.Sprintf(`[out:json][timeout:%d][maxsize:%d];
(
  nwr["amenity"="toilets"](%s,%s,%s,%s);
);
%s`, seconds(timeout), maxSize, num(b.South), num(b.West), num(b.North), num(b.East), out)
}
