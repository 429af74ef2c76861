package tokyo

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"

	"toilet-finder/internal/config"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/model"
)

const (
	defaultAddress = "도쿄도 江東구"
	defaultHours   = "24시간"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decode：去除 BOM；非 UTF-8 输入按 Shift_JIS 解码
func decode(body []byte) ([]byte, error) {
	body = bytes.TrimPrefix(body, utf8BOM)
	if utf8.Valid(body) {
		return body, nil
	}
	out, err := japanese.ShiftJIS.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("decode shift_jis: %w", err)
	}
	return out, nil
}

// parser：表头驱动的列映射，列名别名来自配置
type parser struct {
	cols   config.Columns
	bounds model.BBox
	now    time.Time
}

// parse：逐行转换；坐标缺失、为 0 或不在目标范围内的行被丢弃
func (p parser) parse(body []byte) ([]model.Facility, error) {
	text, err := decode(body)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(text))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.ReplaceAll(h, `"`, ""))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var out []model.Facility
	var dropped int
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.L().Debug("feed_row_error", "err", err)
			continue
		}
		if len(rec) < len(header) {
			continue
		}
		line, _ := r.FieldPos(0)
		row := make(map[string]string, len(header))
		for h, i := range index {
			row[h] = strings.TrimSpace(strings.ReplaceAll(rec[i], `"`, ""))
		}
		f, ok := p.convert(row, line-1)
		if !ok {
			dropped++
			continue
		}
		out = append(out, f)
	}
	logger.L().Debug("feed_parsed", "rows", len(out), "dropped", dropped, "columns", len(header))
	return out, nil
}

func pick(row map[string]string, aliases []string) string {
	for _, a := range aliases {
		if v := row[a]; v != "" {
			return v
		}
	}
	return ""
}

// coord：非数字或 0 视为缺失
func coord(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}

func (p parser) convert(row map[string]string, n int) (model.Facility, bool) {
	lat, ok1 := coord(pick(row, p.cols.Latitude))
	lon, ok2 := coord(pick(row, p.cols.Longitude))
	if !ok1 || !ok2 {
		return model.Facility{}, false
	}
	if !p.bounds.Contains(lat, lon) {
		logger.L().Debug("feed_out_of_bounds", "row", n, "lat", lat, "lon", lon)
		return model.Facility{}, false
	}
	name := pick(row, p.cols.Name)
	if name == "" {
		name = fmt.Sprintf("화장실 %d", n)
	}
	addr := pick(row, p.cols.Address)
	if addr == "" {
		addr = defaultAddress
	}
	hours := pick(row, p.cols.Hours)
	if hours == "" {
		hours = defaultHours
	}
	return model.Facility{
		ID:             fmt.Sprintf("tokyo_%d", n),
		Name:           name,
		Latitude:       lat,
		Longitude:      lon,
		Address:        addr,
		Category:       model.Public,
		Accessible:     accessible(row, p.cols.Accessible),
		OperatingHours: hours,
		CreatedAt:      p.now,
		UpdatedAt:      p.now,
	}, true
}

func accessible(row map[string]string, aliases []string) bool {
	for _, a := range aliases {
		v := row[a]
		if strings.Contains(v, "○") || strings.Contains(v, "有") || strings.Contains(strings.ToLower(v), "yes") {
			return true
		}
	}
	return false
}
