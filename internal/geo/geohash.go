package geo

// 文档注释：轻量 geohash 编码（base32）
// 背景：作为附近查询缓存键的网格段，精度 7 约 150m 网格，便于按网格扫描与失效。
// 约束：不参与距离判断；同一网格内不同中心点的结果不可互用。
var base32 = []byte("0123456789bcdefghjkmnpqrstuvwxyz")

// Geohash：将经纬度编码为指定长度的 geohash
func Geohash(lat, lon float64, precision int) string {
	if precision <= 0 {
		return ""
	}
	latInt := [2]float64{-90, 90}
	lonInt := [2]float64{-180, 180}
	bits := [5]int{16, 8, 4, 2, 1}
	bit, ch := 0, 0
	even := true
	out := make([]byte, 0, precision)
	for len(out) < precision {
		if even {
			mid := (lonInt[0] + lonInt[1]) / 2
			if lon >= mid {
				ch |= bits[bit]
				lonInt[0] = mid
			} else {
				lonInt[1] = mid
			}
		} else {
			mid := (latInt[0] + latInt[1]) / 2
			if lat >= mid {
				ch |= bits[bit]
				latInt[0] = mid
			} else {
				latInt[1] = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
		} else {
			out = append(out, base32[ch])
			bit, ch = 0, 0
		}
	}
	return string(out)
}
