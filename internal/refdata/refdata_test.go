package refdata

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"route-pricing/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testPaths(t *testing.T) Paths {
	dir := t.TempDir()
	return Paths{
		PostalRegions: writeFile(t, dir, "regions.json", `{"PL50": {"region_id": 134}, "DE10": {"region_id": 77}}`),
		Crosswalk:     writeFile(t, dir, "crosswalk.json", `{"134": {"timocom_id": 412}}`),
		Coordinates:   writeFile(t, dir, "coords.json", `{"PL50": {"lat": 51.1, "lon": 17.03}, "DE10": {"lat": 52.52, "lon": 13.4}}`),
	}
}

func TestLoadSnapshot(t *testing.T) {
	snap, err := LoadSnapshot(testPaths(t))
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	tests := []struct {
		code   string
		wantID int
		wantOK bool
	}{
		{"PL50", 134, true},
		{"pl 50", 134, true},
		{"PL50123", 134, true},
		{"50-123", 134, true},
		{"DE10115", 77, true},
		{"FR75", 0, false},
	}
	for _, tt := range tests {
		id, ok := snap.RegionID(tt.code)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("RegionID(%q) = (%v, %v), want (%v, %v)", tt.code, id, ok, tt.wantID, tt.wantOK)
		}
	}

	if got := snap.ExchangeAID(134); got != 412 {
		t.Errorf("ExchangeAID(134) = %v, want %v", got, 412)
	}
	if got := snap.ExchangeAID(77); got != 77 {
		t.Errorf("ExchangeAID(77) = %v, want unmapped id unchanged", got)
	}

	coord, ok := snap.Locate("PL5")
	if !ok || coord.Lat != 51.1 {
		t.Errorf("Locate(PL5) = (%v, %v), want prefix match on PL50", coord, ok)
	}

	stats := snap.Stats()
	if stats["postal_regions"] != 2 || stats["region_crosswalk"] != 1 || stats["postal_coordinates"] != 2 {
		t.Errorf("Stats() = %v", stats)
	}
}

func TestLoadSnapshotErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadSnapshot(Paths{PostalRegions: filepath.Join(dir, "missing.json")}); err == nil {
		t.Error("missing region table should fail")
	}

	bad := Paths{
		PostalRegions: writeFile(t, dir, "regions.json", `{"PL50": {"region_id": 1}}`),
		Crosswalk:     writeFile(t, dir, "crosswalk.json", `{"abc": {"timocom_id": 2}}`),
	}
	if _, err := LoadSnapshot(bad); err == nil {
		t.Error("non numeric crosswalk key should fail")
	}

	broken := Paths{PostalRegions: writeFile(t, dir, "broken.json", `{`)}
	if _, err := LoadSnapshot(broken); err == nil {
		t.Error("malformed JSON should fail")
	}

	only := Paths{PostalRegions: writeFile(t, dir, "only.json", `{"PL50": {"region_id": 1}}`)}
	snap, err := LoadSnapshot(only)
	if err != nil {
		t.Fatalf("optional tables should not be required: %v", err)
	}
	if _, ok := snap.Locate("PL50"); ok {
		t.Error("empty coordinate table should not resolve")
	}
}

func TestStoreReloadSwaps(t *testing.T) {
	paths := testPaths(t)
	store, err := NewStore(paths)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	before := store.Current()

	writeFile(t, filepath.Dir(paths.PostalRegions), "regions.json", `{"PL50": {"region_id": 999}}`)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, ok := store.Current().RegionID("PL50")
			if !ok || (id != 134 && id != 999) {
				t.Errorf("RegionID(PL50) = (%v, %v) during reload", id, ok)
			}
		}()
	}
	if _, err := store.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	wg.Wait()

	if id, _ := store.Current().RegionID("PL50"); id != 999 {
		t.Errorf("RegionID(PL50) after reload = %v, want %v", id, 999)
	}
	if id, _ := before.RegionID("PL50"); id != 134 {
		t.Errorf("old snapshot mutated: RegionID(PL50) = %v, want %v", id, 134)
	}

	writeFile(t, filepath.Dir(paths.PostalRegions), "regions.json", `not json`)
	if _, err := store.Reload(); err == nil {
		t.Error("Reload of broken file should fail")
	}
	if id, _ := store.Current().RegionID("PL50"); id != 999 {
		t.Errorf("failed reload replaced snapshot: RegionID(PL50) = %v", id)
	}
}

func TestStaticStore(t *testing.T) {
	snap := NewSnapshot(map[string]int{"PL50": 1}, nil, map[string]models.Coordinate{"PL50": {Lat: 1, Lon: 2}})
	store := NewStaticStore(snap)

	if _, err := store.Reload(); err != nil {
		t.Errorf("Reload() error = %v", err)
	}
	if store.Current() != snap {
		t.Error("static store should keep its snapshot")
	}
	if c, ok := store.Locate("PL50"); !ok || c.Lon != 2 {
		t.Errorf("Locate(PL50) = (%v, %v)", c, ok)
	}
}
