package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"toilet-finder/internal/apperr"
	"toilet-finder/internal/events"
	"toilet-finder/internal/model"
	"toilet-finder/internal/store"
	"toilet-finder/internal/tokyo"
)

var t0 = time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

func fixed() time.Time { return t0 }

type fakeStore struct {
	upserted [][]model.Facility
	result   store.BulkResult
	err      error
	stats    store.Stats
	statsErr error
	cleaned  []string
	cleanN   int64
	cleanErr error
}

func (s *fakeStore) BulkUpsert(_ context.Context, fs []model.Facility) (store.BulkResult, error) {
	s.upserted = append(s.upserted, fs)
	if s.err != nil {
		return store.BulkResult{}, s.err
	}
	if s.result == (store.BulkResult{}) {
		return store.BulkResult{Saved: len(fs)}, nil
	}
	return s.result, nil
}

func (s *fakeStore) StatsBySourcePrefix(_ context.Context, prefix string) (store.Stats, error) {
	return s.stats, s.statsErr
}

func (s *fakeStore) Cleanup(_ context.Context, prefix string, days int) (int64, error) {
	s.cleaned = append(s.cleaned, fmt.Sprintf("%s:%d", prefix, days))
	return s.cleanN, s.cleanErr
}

type fakeArea struct {
	fs      []model.Facility
	err     error
	gotMax  int
	gotName string
	calls   int
}

func (a *fakeArea) FetchCities(context.Context) ([]model.Facility, error) {
	a.calls++
	return a.fs, a.err
}

func (a *fakeArea) FetchArea(_ context.Context, name string, _ model.BBox, max int) ([]model.Facility, error) {
	a.calls++
	a.gotName, a.gotMax = name, max
	return a.fs, a.err
}

func (a *fakeArea) Cities() []model.City {
	return []model.City{{Name: "서울"}, {Name: "도쿄"}}
}

type recHooks struct {
	indexed  int
	archived int
	events   []events.Event
	fail     bool
}

func (h *recHooks) IndexFacilities(_ context.Context, fs []model.Facility) (int, error) {
	h.indexed += len(fs)
	if h.fail {
		return 0, errors.New("es down")
	}
	return 0, nil
}

func (h *recHooks) Archive(_ context.Context, job string, at time.Time, fs []model.Facility) (string, error) {
	h.archived += len(fs)
	if h.fail {
		return "", errors.New("s3 down")
	}
	return "snapshots/" + job + "/x.json", nil
}

func (h *recHooks) Publish(_ context.Context, ev events.Event) error {
	h.events = append(h.events, ev)
	if h.fail {
		return errors.New("kafka down")
	}
	return nil
}

func (h *recHooks) hooks() Hooks { return Hooks{Indexer: h, Archiver: h, Notifier: h} }

func fac(name, addr string, lat, lon float64) model.Facility {
	return model.Facility{ID: "overpass_node_" + name, Name: name, Address: addr, Latitude: lat, Longitude: lon}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		f    model.Facility
		want bool
	}{
		{"named", fac("시청 화장실", model.DefaultAddress, 37.5, 127), true},
		{"generic no address", fac("toilet", model.DefaultAddress, 37.5, 127), false},
		{"generic empty address", fac("toilet", "", 37.5, 127), false},
		{"generic with address", fac("toilet", "서울 중구 세종대로 110", 37.5, 127), true},
		{"generic upper case", fac("WC", model.DefaultAddress, 37.5, 127), false},
		{"generic korean", fac("화장실", model.DefaultAddress, 37.5, 127), false},
		{"lat 91", fac("역 화장실", "서울", 91, 127), false},
		{"lon -181", fac("역 화장실", "서울", 37, -181), false},
		{"zero lat", fac("역 화장실", "서울", 0, 127), false},
		{"blank name", fac("  ", "서울", 37, 127), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.f); got != tt.want {
				t.Fatalf("Valid(%+v) = %v; want %v", tt.f, got, tt.want)
			}
		})
	}
}

func TestExtractCities(t *testing.T) {
	var fs []model.Facility
	fs = append(fs, fac("a", model.DefaultAddress, 1, 1), fac("b", "서울 중구", 1, 1), fac("c", "서울 종로구", 1, 1))
	for i := 0; i < 12; i++ {
		fs = append(fs, fac("x", fmt.Sprintf("city%d street", i), 1, 1))
	}
	got := extractCities(fs)
	if len(got) != 10 || got[0] != "서울" || got[1] != "city0" {
		t.Fatalf("extractCities() = %v", got)
	}
}

func TestSyncAllSuccess(t *testing.T) {
	src := &fakeArea{fs: []model.Facility{
		fac("시청 화장실", "서울 중구", 37.56, 126.97),
		fac("toilet", model.DefaultAddress, 37.56, 126.97),
		fac("Tokyo Station", "東京都 千代田区", 35.68, 139.76),
	}}
	st := &fakeStore{result: store.BulkResult{Saved: 1, Updated: 1}}
	h := &recHooks{}
	r := NewOrchestrator(src, st, h.hooks(), 24*time.Hour).WithClock(fixed).SyncAll(context.Background())
	if !r.Success || r.State != Succeeded {
		t.Fatalf("SyncAll() = %+v; want success", r)
	}
	s := r.Statistics
	if s.Total != 2 || s.Saved != 1 || s.Updated != 1 || s.Failed != 0 {
		t.Fatalf("SyncAll() statistics = %+v", s)
	}
	if strings.Join(s.Cities, ",") != "서울,東京都" {
		t.Fatalf("SyncAll() cities = %v", s.Cities)
	}
	if len(st.upserted) != 1 || len(st.upserted[0]) != 2 {
		t.Fatalf("BulkUpsert calls = %v", st.upserted)
	}
	if h.indexed != 2 || h.archived != 3 || len(h.events) != 1 || r.Snapshot != "snapshots/overpass/x.json" {
		t.Fatalf("hooks indexed=%d archived=%d events=%d snapshot=%q", h.indexed, h.archived, len(h.events), r.Snapshot)
	}
	if ev := h.events[0]; ev.Job != JobOverpass || !ev.Success || ev.Saved != 1 {
		t.Fatalf("event = %+v", ev)
	}
	if !strings.Contains(r.Message, "신규 1개, 업데이트 1개") {
		t.Fatalf("SyncAll() message = %q", r.Message)
	}
}

func TestSyncAllFailures(t *testing.T) {
	tests := []struct {
		name      string
		src       *fakeArea
		store     *fakeStore
		wantError bool
		upserts   int
	}{
		{"no results", &fakeArea{}, &fakeStore{}, false, 0},
		{"fetch error", &fakeArea{err: apperr.ErrSourceUnavailable}, &fakeStore{}, true, 0},
		{"tx error", &fakeArea{fs: []model.Facility{fac("역 화장실", "서울", 37, 127)}},
			&fakeStore{err: &apperr.TxError{Op: "commit", Err: errors.New("conn reset")}}, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recHooks{}
			r := NewOrchestrator(tt.src, tt.store, h.hooks(), time.Hour).WithClock(fixed).SyncAll(context.Background())
			if r.Success || r.State != Failed {
				t.Fatalf("SyncAll() = %+v; want failure", r)
			}
			if (r.Error != "") != tt.wantError {
				t.Fatalf("SyncAll() error = %q; wantError %v", r.Error, tt.wantError)
			}
			if r.Statistics.Total != 0 || r.Statistics.Saved != 0 {
				t.Fatalf("SyncAll() statistics = %+v; want zero", r.Statistics)
			}
			if len(tt.store.upserted) != tt.upserts {
				t.Fatalf("BulkUpsert calls = %d; want %d", len(tt.store.upserted), tt.upserts)
			}
			if h.indexed != 0 || len(h.events) != 0 {
				t.Fatal("hooks ran on a failed sync")
			}
		})
	}
}

func TestSyncHookFailureIgnored(t *testing.T) {
	src := &fakeArea{fs: []model.Facility{fac("역 화장실", "서울", 37, 127)}}
	h := &recHooks{fail: true}
	r := NewOrchestrator(src, &fakeStore{}, h.hooks(), time.Hour).WithClock(fixed).SyncAll(context.Background())
	if !r.Success || r.Snapshot != "" {
		t.Fatalf("SyncAll() = %+v; want success without snapshot", r)
	}
}

func TestSyncArea(t *testing.T) {
	src := &fakeArea{}
	o := NewOrchestrator(src, &fakeStore{}, Hooks{}, time.Hour).WithClock(fixed)
	r := o.SyncArea(context.Background(), "강남", model.BBox{South: 37.4, West: 127, North: 37.5, East: 127.1}, 0)
	if r.Success || src.gotMax != 5000 || src.gotName != "강남" {
		t.Fatalf("SyncArea() = %+v, max=%d", r, src.gotMax)
	}
	if len(r.Statistics.Cities) != 1 || r.Statistics.Cities[0] != "강남" {
		t.Fatalf("SyncArea() cities = %v", r.Statistics.Cities)
	}
	src.fs = []model.Facility{fac("역 화장실", "서울 강남구", 37.45, 127.05)}
	r = o.SyncArea(context.Background(), "강남", model.BBox{}, 100)
	if !r.Success || r.Statistics.Cities[0] != "강남" || src.gotMax != 100 {
		t.Fatalf("SyncArea() = %+v", r)
	}
}

func TestSyncRecoversPanic(t *testing.T) {
	o := NewOrchestrator(&fakeArea{fs: []model.Facility{fac("역 화장실", "서울", 37, 127)}}, nil, Hooks{}, time.Hour).WithClock(fixed)
	r := o.SyncAll(context.Background())
	if r.Success || !strings.Contains(r.Error, "panic") {
		t.Fatalf("SyncAll() with nil store = %+v; want recovered failure", r)
	}
}

func TestScheduledSync(t *testing.T) {
	ago := func(d time.Duration) *time.Time {
		x := t0.Add(-d)
		return &x
	}
	tests := []struct {
		name string
		last *time.Time
		want bool
	}{
		{"never synced", nil, true},
		{"fresh", ago(time.Hour), false},
		{"exactly window", ago(24 * time.Hour), true},
		{"stale", ago(25 * time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeArea{}
			st := &fakeStore{stats: store.Stats{LastUpdated: tt.last}}
			got := NewOrchestrator(src, st, Hooks{}, 24*time.Hour).WithClock(fixed).ScheduledSync(context.Background())
			if got != tt.want || (src.calls > 0) != tt.want {
				t.Fatalf("ScheduledSync() = %v, fetches=%d; want %v", got, src.calls, tt.want)
			}
		})
	}
	st := &fakeStore{statsErr: errors.New("db down")}
	if NewOrchestrator(&fakeArea{}, st, Hooks{}, time.Hour).ScheduledSync(context.Background()) {
		t.Fatal("ScheduledSync() ran although stats failed")
	}
}

func TestCleanup(t *testing.T) {
	st := &fakeStore{cleanN: 4}
	o := NewOrchestrator(&fakeArea{}, st, Hooks{}, time.Hour)
	if _, err := o.Cleanup(context.Background(), 0); !apperr.IsValidation(err) {
		t.Fatalf("Cleanup(0) error = %v; want validation", err)
	}
	n, err := o.Cleanup(context.Background(), 30)
	if err != nil || n != 4 || st.cleaned[0] != "overpass_:30" {
		t.Fatalf("Cleanup(30) = %d, %v; calls %v", n, err, st.cleaned)
	}
	st.cleanErr = errors.New("db down")
	if _, err := o.Cleanup(context.Background(), 30); err == nil {
		t.Fatal("Cleanup() swallowed store error")
	}
	if n := o.ScheduledCleanup(context.Background(), 30); n != 0 {
		t.Fatalf("ScheduledCleanup() = %d; want 0 on error", n)
	}
}

func TestEvaluateHealth(t *testing.T) {
	recent := t0.Add(-time.Hour)
	old := t0.Add(-10 * day)
	tests := []struct {
		name   string
		info   Info
		score  int
		status string
	}{
		{"empty never synced", Info{}, 5, "critical"},
		{"good", Info{LastSync: &recent, Database: store.Stats{Total: 10, Accessible: 5,
			ByCategory: map[model.Category]int{model.Public: 8, model.Private: 2}}}, 100, "healthy"},
		{"stale", Info{LastSync: &old, Database: store.Stats{Total: 10, Accessible: 5,
			ByCategory: map[model.Category]int{model.Public: 10}}}, 80, "healthy"},
		{"stale low access", Info{LastSync: &old, Database: store.Stats{Total: 10, Accessible: 1,
			ByCategory: map[model.Category]int{model.Public: 10}}}, 65, "warning"},
		{"low public", Info{LastSync: &recent, Database: store.Stats{Total: 10, Accessible: 1,
			ByCategory: map[model.Category]int{model.Public: 4, model.Commercial: 6}}}, 75, "warning"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := EvaluateHealth(tt.info, t0)
			if h.Score != tt.score || h.Status != tt.status {
				t.Fatalf("EvaluateHealth() = %d/%s; want %d/%s (%v)", h.Score, h.Status, tt.score, tt.status, h.Issues)
			}
		})
	}
	recs := Recommendations(Info{LastSync: &old, Database: store.Stats{Total: 2000}}, Health{Score: 50}, t0)
	if len(recs) != 3 {
		t.Fatalf("Recommendations() = %v; want 3 entries", recs)
	}
}

func TestInfo(t *testing.T) {
	last := t0
	st := &fakeStore{stats: store.Stats{Total: 3, LastUpdated: &last}}
	info, err := NewOrchestrator(&fakeArea{}, st, Hooks{}, time.Hour).Info(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.LastSync == nil || !info.LastSync.Equal(last) {
		t.Fatalf("Info().LastSync = %v; want %v", info.LastSync, last)
	}
	if strings.Join(info.SupportedCities, ",") != "서울,도쿄" || info.Source != "Overpass API (OpenStreetMap)" {
		t.Fatalf("Info() = %+v", info)
	}
}

type fakeFeed struct {
	snap tokyo.Snapshot
	info tokyo.Info
	err  error
}

func (f *fakeFeed) ForDatabase(context.Context) (tokyo.Snapshot, error) { return f.snap, f.err }
func (f *fakeFeed) Info() tokyo.Info { return f.info }

func TestFeedNeedsSync(t *testing.T) {
	earlier, later := t0.Add(-time.Hour), t0
	tests := []struct {
		name    string
		api, db *time.Time
		want    bool
	}{
		{"feed never loaded", nil, &later, false},
		{"db empty", &later, nil, true},
		{"db older", &later, &earlier, true},
		{"db newer", &earlier, &later, false},
		{"equal", &later, &later, false},
	}
	for _, tt := range tests {
		if got := feedNeedsSync(tt.api, tt.db); got != tt.want {
			t.Fatalf("%s: feedNeedsSync() = %v; want %v", tt.name, got, tt.want)
		}
	}
}

func TestFeedSync(t *testing.T) {
	at := t0
	src := &fakeFeed{
		snap: tokyo.Snapshot{Source: tokyo.SourceMock, Facilities: []model.Facility{
			{ID: "tokyo_mock_1", Name: "豊洲公園 화장실", Address: "도쿄도 江東구", Latitude: 35.65, Longitude: 139.79},
		}},
		info: tokyo.Info{LastUpdate: &at, Source: tokyo.SourceMock},
	}
	st := &fakeStore{}
	f := NewFeedSync(src, st, Hooks{}).WithClock(fixed)
	r := f.Sync(context.Background())
	if !r.Success || r.Statistics.Total != 1 || r.Statistics.Saved != 1 {
		t.Fatalf("Sync() = %+v", r)
	}
	if !f.ScheduledSync(context.Background()) {
		t.Fatal("ScheduledSync() skipped with empty db")
	}
	src.err = errors.New("boom")
	if r := f.Sync(context.Background()); r.Success || r.Error == "" {
		t.Fatalf("Sync() on error = %+v", r)
	}
	if _, err := f.Cleanup(context.Background(), 30); err != nil || st.cleaned[0] != "tokyo_:30" {
		t.Fatalf("Cleanup() = %v; calls %v", err, st.cleaned)
	}
	rep, err := f.Report(context.Background())
	if err != nil || !rep.Info.NeedsSync || rep.Health.Score != 20 || rep.Health.Status != "critical" {
		t.Fatalf("Report() = %+v, %v", rep, err)
	}
}

func TestStateString(t *testing.T) {
	if Persisting.String() != "PERSISTING" || State(42).String() != "State(42)" {
		t.Fatalf("State.String() = %s, %s", Persisting, State(42))
	}
}
