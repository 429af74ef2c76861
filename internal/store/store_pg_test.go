package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"toilet-finder/internal/geo"
	"toilet-finder/internal/migrate"
	"toilet-finder/internal/model"
)

// openTestStore：仅在设置 TOILET_TEST_PG_DSN 时运行；每个测试使用独立 id 前缀
func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dsn := os.Getenv("TOILET_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TOILET_TEST_PG_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	prefix := fmt.Sprintf("itest%d_", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE FROM toilets WHERE id LIKE $1`, likePrefix(prefix))
		_ = db.Close()
	})
	return AttachDB(db), prefix
}

var station = model.Location{Latitude: 35.6812, Longitude: 139.7671}

// north：正北方向 d 米处的点
func north(from model.Location, d float64) model.Location {
	return model.Location{Latitude: from.Latitude + d/geo.EarthRadius*180/math.Pi, Longitude: from.Longitude}
}

func facility(id string, loc model.Location) model.Facility {
	return model.Facility{ID: id, Name: "테스트 " + id, Latitude: loc.Latitude, Longitude: loc.Longitude, Address: "東京都", Category: model.Public}
}

func TestBulkUpsertIdempotent(t *testing.T) {
	s, p := openTestStore(t)
	ctx := context.Background()
	batch := []model.Facility{
		facility(p+"1", north(station, 10)),
		facility(p+"2", north(station, 20)),
		facility(p+"3", north(station, 30)),
	}
	r, err := s.BulkUpsert(ctx, batch)
	if err != nil {
		t.Fatalf("BulkUpsert() error = %v", err)
	}
	if r != (BulkResult{Saved: 3}) {
		t.Fatalf("first BulkUpsert() = %+v; want saved=3", r)
	}
	r, err = s.BulkUpsert(ctx, batch)
	if err != nil {
		t.Fatalf("second BulkUpsert() error = %v", err)
	}
	if r != (BulkResult{Updated: 3}) {
		t.Fatalf("second BulkUpsert() = %+v; want updated=3", r)
	}
}

func TestBulkUpsertIsolatesRecordFailure(t *testing.T) {
	s, p := openTestStore(t)
	ctx := context.Background()
	bad := facility(p+"bad", north(station, 5))
	bad.Name = "nul\x00byte"
	batch := []model.Facility{
		facility(p+"a", north(station, 1)),
		bad,
		{ID: p + "range", Name: "x", Latitude: 91, Longitude: 0},
		facility(p+"b", north(station, 2)),
	}
	r, err := s.BulkUpsert(ctx, batch)
	if err != nil {
		t.Fatalf("BulkUpsert() error = %v", err)
	}
	if r != (BulkResult{Saved: 2, Failed: 2}) {
		t.Fatalf("BulkUpsert() = %+v; want saved=2 failed=2", r)
	}
	if f, _ := s.FindByID(ctx, p+"b"); f == nil {
		t.Fatal("record after the failure was not committed")
	}
}

func TestFindNearbyScenario(t *testing.T) {
	s, p := openTestStore(t)
	ctx := context.Background()
	if _, err := s.BulkUpsert(ctx, []model.Facility{
		facility(p+"700", north(station, 700)),
		facility(p+"100", north(station, 100)),
		facility(p+"300", north(station, 300)),
	}); err != nil {
		t.Fatal(err)
	}
	all, err := s.FindNearby(ctx, station, 500)
	if err != nil {
		t.Fatalf("FindNearby() error = %v", err)
	}
	var got []string
	for _, f := range all {
		if strings.HasPrefix(f.ID, p) {
			got = append(got, strings.TrimPrefix(f.ID, p))
		}
	}
	if strings.Join(got, ",") != "100,300" {
		t.Fatalf("FindNearby() = %v; want [100 300]", got)
	}
}

func TestCRUD(t *testing.T) {
	s, p := openTestStore(t)
	ctx := context.Background()
	saved, err := s.Save(ctx, facility(p+"crud", station))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.CreatedAt.IsZero() || saved.UpdatedAt.IsZero() {
		t.Fatalf("Save() timestamps not set: %+v", saved)
	}
	name := "바뀐 이름"
	got, err := s.Update(ctx, p+"crud", model.Patch{Name: &name})
	if err != nil || got == nil || got.Name != name {
		t.Fatalf("Update() = %+v, %v", got, err)
	}
	if got.UpdatedAt.Before(saved.UpdatedAt) {
		t.Fatalf("Update() updatedAt = %v; before %v", got.UpdatedAt, saved.UpdatedAt)
	}
	if miss, err := s.Update(ctx, p+"none", model.Patch{Name: &name}); miss != nil || err != nil {
		t.Fatalf("Update(missing) = %v, %v; want nil, nil", miss, err)
	}
	ok, err := s.Delete(ctx, p+"crud")
	if err != nil || !ok {
		t.Fatalf("Delete() = %v, %v; want true", ok, err)
	}
	if f, err := s.FindByID(ctx, p+"crud"); f != nil || err != nil {
		t.Fatalf("FindByID(deleted) = %v, %v; want nil, nil", f, err)
	}
	if ok, _ := s.Delete(ctx, p+"crud"); ok {
		t.Fatal("Delete(missing) = true; want false")
	}
}

func TestStatsAndCleanup(t *testing.T) {
	s, p := openTestStore(t)
	ctx := context.Background()
	a := facility(p+"old", station)
	b := facility(p+"edge", station)
	b.Accessible = true
	c := facility(p+"new", station)
	c.Category = model.Commercial
	if _, err := s.BulkUpsert(ctx, []model.Facility{a, b, c}); err != nil {
		t.Fatal(err)
	}
	db := s.DB()
	if _, err := db.Exec(`UPDATE toilets SET updated_at = now() - interval '31 days' WHERE id = $1`, p+"old"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`UPDATE toilets SET updated_at = now() - interval '29 days 23 hours' WHERE id = $1`, p+"edge"); err != nil {
		t.Fatal(err)
	}

	st, err := s.StatsBySourcePrefix(ctx, p)
	if err != nil {
		t.Fatalf("StatsBySourcePrefix() error = %v", err)
	}
	if st.Total != 3 || st.Accessible != 1 || st.ByCategory[model.Public] != 2 || st.ByCategory[model.Commercial] != 1 || st.LastUpdated == nil {
		t.Fatalf("StatsBySourcePrefix() = %+v", st)
	}

	n, err := s.Cleanup(ctx, p, 30)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Cleanup() = %d; want 1", n)
	}
	if f, _ := s.FindByID(ctx, p+"edge"); f == nil {
		t.Fatal("record inside the window was deleted")
	}
}
