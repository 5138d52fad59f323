// Package refdata holds the read-only lookup tables used to resolve
// postal codes: region ids, the cross-exchange region id crosswalk and
// postal code coordinates.
package refdata

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"route-pricing/internal/geo"
	"route-pricing/internal/models"
)

// Paths locates the JSON tables on disk. Empty crosswalk or coordinate
// paths load as empty tables.
type Paths struct {
	PostalRegions string
	Crosswalk     string
	Coordinates   string
}

// Snapshot is an immutable set of lookup tables
type Snapshot struct {
	regions   map[string]int
	crosswalk map[int]int
	geocoder  *geo.Geocoder
	loadedAt  time.Time
}

type regionRecord struct {
	RegionID int `json:"region_id"`
}

type crosswalkRecord struct {
	ExchangeAID int `json:"timocom_id"`
}

// NewSnapshot builds a snapshot from in-memory tables. Region keys are
// normalized the same way incoming codes are.
func NewSnapshot(regions map[string]int, crosswalk map[int]int, coordinates map[string]models.Coordinate) *Snapshot {
	s := &Snapshot{
		regions:   make(map[string]int, len(regions)),
		crosswalk: make(map[int]int, len(crosswalk)),
		geocoder:  geo.NewGeocoder(coordinates),
		loadedAt:  time.Now(),
	}
	for code, id := range regions {
		s.regions[models.CleanPostalCode(code)] = id
	}
	for from, to := range crosswalk {
		s.crosswalk[from] = to
	}
	return s
}

// LoadSnapshot reads all tables from disk
func LoadSnapshot(paths Paths) (*Snapshot, error) {
	var rawRegions map[string]regionRecord
	if err := readJSON(paths.PostalRegions, &rawRegions); err != nil {
		return nil, fmt.Errorf("load postal regions: %w", err)
	}
	regions := make(map[string]int, len(rawRegions))
	for code, rec := range rawRegions {
		regions[code] = rec.RegionID
	}

	crosswalk := make(map[int]int)
	if paths.Crosswalk != "" {
		var raw map[string]crosswalkRecord
		if err := readJSON(paths.Crosswalk, &raw); err != nil {
			return nil, fmt.Errorf("load region crosswalk: %w", err)
		}
		for key, rec := range raw {
			id, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("load region crosswalk: invalid region id %q", key)
			}
			crosswalk[id] = rec.ExchangeAID
		}
	}

	coordinates := make(map[string]models.Coordinate)
	if paths.Coordinates != "" {
		if err := readJSON(paths.Coordinates, &coordinates); err != nil {
			return nil, fmt.Errorf("load postal coordinates: %w", err)
		}
	}

	return NewSnapshot(regions, crosswalk, coordinates), nil
}

func readJSON(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// RegionID resolves a postal code to its region id, trying the code as
// given before reducing it to region level
func (s *Snapshot) RegionID(code string) (int, bool) {
	if id, ok := s.regions[models.CleanPostalCode(code)]; ok {
		return id, true
	}
	id, ok := s.regions[models.NormalizeRegionCode(code)]
	return id, ok
}

// ExchangeAID translates a region id into exchange A's numbering.
// Unmapped ids are shared by both exchanges.
func (s *Snapshot) ExchangeAID(regionID int) int {
	if id, ok := s.crosswalk[regionID]; ok {
		return id
	}
	return regionID
}

// Locate resolves a postal code to a coordinate
func (s *Snapshot) Locate(code string) (models.Coordinate, bool) {
	return s.geocoder.Locate(code)
}

// Stats reports table sizes, keyed by table name
func (s *Snapshot) Stats() map[string]int {
	return map[string]int{
		"postal_regions":     len(s.regions),
		"region_crosswalk":   len(s.crosswalk),
		"postal_coordinates": s.geocoder.Len(),
	}
}

// LoadedAt returns when the snapshot was built
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Store publishes the current snapshot. Readers never observe a partially
// built table; Reload builds a new snapshot and swaps the pointer.
type Store struct {
	paths   Paths
	current atomic.Pointer[Snapshot]
}

// NewStore loads the tables once
func NewStore(paths Paths) (*Store, error) {
	snap, err := LoadSnapshot(paths)
	if err != nil {
		return nil, err
	}
	s := &Store{paths: paths}
	s.current.Store(snap)
	return s, nil
}

// NewStaticStore wraps a prebuilt snapshot; Reload keeps it in place
func NewStaticStore(snap *Snapshot) *Store {
	s := &Store{}
	s.current.Store(snap)
	return s
}

// Current returns the active snapshot
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Reload rereads the tables from disk. On failure the previous snapshot stays active.
func (s *Store) Reload() (*Snapshot, error) {
	if s.paths.PostalRegions == "" {
		return s.Current(), nil
	}
	snap, err := LoadSnapshot(s.paths)
	if err != nil {
		return s.Current(), err
	}
	s.current.Store(snap)
	return snap, nil
}

// Locate resolves against the active snapshot
func (s *Store) Locate(code string) (models.Coordinate, bool) {
	return s.Current().Locate(code)
}
