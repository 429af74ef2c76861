// 包 model：设施（公共厕所）领域模型，供数据源适配器、存储与查询服务共享
package model

import "time"

// Category：设施类别，由来源标签推断
type Category string

const (
	Public     Category = "PUBLIC"
	Private    Category = "PRIVATE"
	Commercial Category = "COMMERCIAL"
)

// Valid：是否为已知类别
func (c Category) Valid() bool {
	switch c {
	case Public, Private, Commercial:
		return true
	}
	return false
}

// 默认地址哨兵：来源未提供任何地址信息时使用
const DefaultAddress = "주소 정보 없음"

// Location：十进制经纬度坐标，值类型
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid：纬度 [-90,90]、经度 [-180,180]
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// Facility：一条厕所记录
// 约束：ID 由外部来源派生（<source>_<nativeType>_<nativeId>），存储层按 ID 去重
type Facility struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Address        string    `json:"address"`
	Category       Category  `json:"type"`
	Accessible     bool      `json:"accessibility"`
	OperatingHours string    `json:"operatingHours,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (f Facility) Location() Location {
	return Location{Latitude: f.Latitude, Longitude: f.Longitude}
}

// WithDistance：附带查询点距离（米）；仅在查询上下文中计算，不落库
type WithDistance struct {
	Facility
	Distance float64 `json:"distance"`
}

// Patch：部分字段更新，nil 表示不修改
type Patch struct {
	Name           *string   `json:"name,omitempty"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	Address        *string   `json:"address,omitempty"`
	Category       *Category `json:"type,omitempty"`
	Accessible     *bool     `json:"accessibility,omitempty"`
	OperatingHours *string   `json:"operatingHours,omitempty"`
}

// Empty：没有任何待修改字段
func (p Patch) Empty() bool {
	return p.Name == nil && p.Latitude == nil && p.Longitude == nil && p.Address == nil &&
		p.Category == nil && p.Accessible == nil && p.OperatingHours == nil
}

// Apply：将补丁应用到副本并返回
func (p Patch) Apply(f Facility) Facility {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Latitude != nil {
		f.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		f.Longitude = *p.Longitude
	}
	if p.Address != nil {
		f.Address = *p.Address
	}
	if p.Category != nil {
		f.Category = *p.Category
	}
	if p.Accessible != nil {
		f.Accessible = *p.Accessible
	}
	if p.OperatingHours != nil {
		f.OperatingHours = *p.OperatingHours
	}
	return f
}

// BBox：经纬度包围盒
type BBox struct {
	South float64 `json:"south" yaml:"south"`
	West  float64 `json:"west" yaml:"west"`
	North float64 `json:"north" yaml:"north"`
	East  float64 `json:"east" yaml:"east"`
}

// Valid：北大于南、东大于西，且均在合法范围
func (b BBox) Valid() bool {
	if b.North <= b.South || b.East <= b.West {
		return false
	}
	return Location{b.South, b.West}.Valid() && Location{b.North, b.East}.Valid()
}

// Contains：闭区间判断
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// City：批量同步的命名区域
type City struct {
	Name    string `json:"name" yaml:"name"`
	Country string `json:"country" yaml:"country"`
	Bounds  BBox   `json:"bounds" yaml:"bounds"`
}
