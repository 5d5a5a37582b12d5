package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/flood-data-etl/internal/domain"
)

const (
	stationCols = 6
	readingCols = 5
)

// Open connects to the backend named by driver ("postgres" or "sqlite").
func Open(ctx context.Context, driver, url string) (DB, error) {
	switch driver {
	case "postgres", "":
		return OpenPostgres(ctx, url)
	case "sqlite":
		return OpenSQLite(url)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// Store is the storage gateway for ingestion and the read API.
type Store struct {
	db DB
}

// NewStore wraps db. It does not run migrations.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// UpsertStations writes stations in chunked multi-row statements and returns
// the number of stations submitted after dedup, not the driver's affected
// row count. Duplicate ids keep their first occurrence.
func (s *Store) UpsertStations(ctx context.Context, stations []domain.StationUpsert) (int, error) {
	stations = uniqueStations(stations)
	if len(stations) == 0 {
		return 0, nil
	}

	d := s.db.Dialect()
	written := 0
	for _, chunk := range chunks(stations, d.maxParams()/stationCols) {
		args := make([]any, 0, len(chunk)*stationCols)
		for _, st := range chunk {
			args = append(args, st.StationID, st.Name, st.State, st.District, string(st.StationType), st.Source)
		}
		q := `INSERT INTO stations (station_id, name, state, district, station_type, source)
VALUES ` + d.values(len(chunk), stationCols) + `
ON CONFLICT (station_id) DO UPDATE
SET name = excluded.name,
    state = COALESCE(excluded.state, stations.state),
    district = COALESCE(excluded.district, stations.district),
    station_type = excluded.station_type,
    source = excluded.source,
    is_active = TRUE`
		if _, err := s.db.Exec(ctx, q, args...); err != nil {
			return written, fmt.Errorf("upsert stations: %w", err)
		}
		written += len(chunk)
	}
	return written, nil
}

// UpsertReadings writes readings in chunked multi-row statements and returns
// the number of readings submitted after dedup, so a repeated batch reports
// the same count. Existing measurements survive a null in
// the incoming row; source is always replaced.
func (s *Store) UpsertReadings(ctx context.Context, readings []domain.Reading) (int, error) {
	readings = domain.MergeReadings(readings)
	if len(readings) == 0 {
		return 0, nil
	}

	d := s.db.Dialect()
	written := 0
	for _, chunk := range chunks(readings, d.maxParams()/readingCols) {
		args := make([]any, 0, len(chunk)*readingCols)
		for _, r := range chunk {
			args = append(args, r.StationID, d.timeArg(r.RecordedAt), r.RainMm, r.RiverLevelM, r.Source)
		}
		q := `INSERT INTO readings (station_id, recorded_at, rain_mm, river_level_m, source)
VALUES ` + d.values(len(chunk), readingCols) + `
ON CONFLICT (station_id, recorded_at) DO UPDATE
SET rain_mm = COALESCE(excluded.rain_mm, readings.rain_mm),
    river_level_m = COALESCE(excluded.river_level_m, readings.river_level_m),
    source = excluded.source`
		if _, err := s.db.Exec(ctx, q, args...); err != nil {
			return written, fmt.Errorf("upsert readings: %w", err)
		}
		written += len(chunk)
	}
	return written, nil
}

// ActiveStations returns the active stations registered for region.
func (s *Store) ActiveStations(ctx context.Context, region string) ([]domain.Station, error) {
	d := s.db.Dialect()
	q := `SELECT ` + stationColumns + `
FROM stations
WHERE is_active = TRUE AND state = ` + d.Placeholder(1) + `
ORDER BY station_id`
	rows, err := s.db.Query(ctx, q, region)
	if err != nil {
		return nil, fmt.Errorf("query active stations: %w", err)
	}
	return collectStations(rows)
}

// StationFilter narrows ListStations. Page is 1-based.
type StationFilter struct {
	State    string
	District string
	Page     int
	Limit    int
}

const (
	DefaultPage         = 1
	DefaultStationLimit = 50
	DefaultLatestLimit  = 1000
)

// ListStations returns one page of active stations ordered by state,
// district and name.
func (s *Store) ListStations(ctx context.Context, f StationFilter) ([]domain.Station, error) {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultStationLimit
	}

	d := s.db.Dialect()
	var where []string
	var args []any
	where = append(where, "is_active = TRUE")
	if f.State != "" {
		args = append(args, f.State)
		where = append(where, "state = "+d.Placeholder(len(args)))
	}
	if f.District != "" {
		args = append(args, f.District)
		where = append(where, "district = "+d.Placeholder(len(args)))
	}
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	q := `SELECT ` + stationColumns + `
FROM stations
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY state, district, name
LIMIT ` + d.Placeholder(len(args)-1) + ` OFFSET ` + d.Placeholder(len(args))
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	return collectStations(rows)
}

// LatestReadings returns each active station's most recent non-null reading
// of kind, newest first. An empty state means every region.
func (s *Store) LatestReadings(ctx context.Context, kind domain.ReadingKind, state string, limit int) ([]domain.LatestReading, error) {
	col, err := measurementColumn(kind)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = DefaultLatestLimit
	}

	d := s.db.Dialect()
	var args []any
	stateClause := ""
	if state != "" {
		args = append(args, state)
		stateClause = " AND s.state = " + d.Placeholder(len(args))
	}
	args = append(args, limit)

	q := `SELECT s.station_id, s.name, s.state, s.district, s.lat, s.lon, r.recorded_at, r.` + col + `
FROM readings r
JOIN (
    SELECT station_id, MAX(recorded_at) AS recorded_at
    FROM readings
    WHERE ` + col + ` IS NOT NULL
    GROUP BY station_id
) latest ON latest.station_id = r.station_id AND latest.recorded_at = r.recorded_at
JOIN stations s ON s.station_id = r.station_id
WHERE s.is_active = TRUE` + stateClause + `
ORDER BY r.recorded_at DESC, s.station_id
LIMIT ` + d.Placeholder(len(args))

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query latest %s readings: %w", kind, err)
	}
	defer rows.Close()

	out := []domain.LatestReading{}
	for rows.Next() {
		var lr domain.LatestReading
		var at timeValue
		if err := rows.Scan(&lr.StationID, &lr.Name, &lr.State, &lr.District, &lr.Latitude, &lr.Longitude, &at, &lr.Value); err != nil {
			return nil, fmt.Errorf("scan latest reading: %w", err)
		}
		lr.RecordedAt = at.t
		out = append(out, lr)
	}
	return out, rows.Err()
}

// ErrUnknownKind is returned for a reading kind with no measurement column.
var ErrUnknownKind = errors.New("unknown reading kind")

func measurementColumn(kind domain.ReadingKind) (string, error) {
	switch kind {
	case domain.KindRain:
		return "rain_mm", nil
	case domain.KindWaterLevel:
		return "river_level_m", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

const stationColumns = `station_id, name, state, district, lat, lon, station_type, source, is_active`

func collectStations(rows Rows) ([]domain.Station, error) {
	defer rows.Close()
	out := []domain.Station{}
	for rows.Next() {
		var st domain.Station
		var stationType string
		if err := rows.Scan(&st.StationID, &st.Name, &st.State, &st.District, &st.Latitude, &st.Longitude, &stationType, &st.Source, &st.IsActive); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		st.StationType = domain.StationType(stationType)
		out = append(out, st)
	}
	return out, rows.Err()
}

func uniqueStations(in []domain.StationUpsert) []domain.StationUpsert {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.StationUpsert, 0, len(in))
	for _, st := range in {
		if _, ok := seen[st.StationID]; ok {
			continue
		}
		seen[st.StationID] = struct{}{}
		out = append(out, st)
	}
	return out
}

func chunks[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
