// 包 geoip：按客户端 IP 估算查询位置（GeoLite2 City mmdb），仅在请求未携带坐标时使用
package geoip

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"toilet-finder/internal/logger"
	"toilet-finder/internal/model"
)

type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// Locator：mmdb 只读查询，可并发使用
type Locator struct {
	r cityReader
}

func Open(path string) (*Locator, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip %s: %w", path, err)
	}
	return &Locator{r: r}, nil
}

func (l *Locator) Close() error { return l.r.Close() }

// Locate：私网、回环与无坐标记录返回 false
func (l *Locator) Locate(ip string) (model.Location, bool) {
	p := net.ParseIP(strings.TrimSpace(ip))
	if p == nil || p.IsLoopback() || p.IsPrivate() || p.IsUnspecified() {
		return model.Location{}, false
	}
	c, err := l.r.City(p)
	if err != nil {
		logger.L().Debug("geoip_lookup_error", "ip", ip, "err", err)
		return model.Location{}, false
	}
	loc := model.Location{Latitude: c.Location.Latitude, Longitude: c.Location.Longitude}
	if loc.Latitude == 0 && loc.Longitude == 0 {
		return model.Location{}, false
	}
	logger.L().Debug("geoip_located", "ip", ip, "city", c.City.Names["en"], "accuracy_km", c.Location.AccuracyRadius)
	return loc, true
}
