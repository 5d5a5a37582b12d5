package domain

import "time"

// SourcePublicInfoBanjir is the provenance tag written on every station and reading.
const SourcePublicInfoBanjir = "publicinfobanjir"

// StationType is the role a station last reported in.
type StationType string

const (
	StationRainfall   StationType = "rainfall"
	StationWaterLevel StationType = "water_level"
)

// Regions lists the portal's region codes in scheduling order.
var Regions = []string{
	"PLS", "KDH", "PNG", "PRK", "SEL", "WLH", "PTJ", "NSN",
	"MLK", "JHR", "PHG", "TRG", "KEL", "SRK", "SAB", "WLP",
}

// Station is a registry entry as read back from storage.
type Station struct {
	StationID   string      `json:"stationId"`
	Name        string      `json:"name"`
	State       *string     `json:"state"`
	District    *string     `json:"district"`
	Latitude    *float64    `json:"lat"`
	Longitude   *float64    `json:"lon"`
	StationType StationType `json:"stationType"`
	Source      string      `json:"source"`
	IsActive    bool        `json:"isActive"`
}

// StationUpsert is the write model for stations. Coordinates are never
// written by ingestion.
type StationUpsert struct {
	StationID   string
	Name        string
	State       *string
	District    *string
	StationType StationType
	Source      string
}

// Reading is one measurement row keyed by (StationID, RecordedAt).
type Reading struct {
	StationID   string    `json:"stationId"`
	RecordedAt  time.Time `json:"recordedAt"`
	RainMm      *float64  `json:"rainMm"`
	RiverLevelM *float64  `json:"riverLevelM"`
	Source      string    `json:"source"`
}

// Key returns the natural key used for merge-before-write.
func (r Reading) Key() ReadingKey {
	return ReadingKey{StationID: r.StationID, RecordedAt: r.RecordedAt.UTC()}
}

// ReadingKey is the composite identity of a reading.
type ReadingKey struct {
	StationID  string
	RecordedAt time.Time
}

// LatestReading is a station's most recent reading of one kind, joined with
// its registry metadata.
type LatestReading struct {
	StationID  string    `json:"stationId"`
	Name       string    `json:"name"`
	State      *string   `json:"state"`
	District   *string   `json:"district"`
	Latitude   *float64  `json:"lat"`
	Longitude  *float64  `json:"lon"`
	RecordedAt time.Time `json:"recordedAt"`
	Value      float64   `json:"value"`
}

// ReadingKind selects the measurement column for latest-reading queries.
type ReadingKind string

const (
	KindRain       ReadingKind = "rain"
	KindWaterLevel ReadingKind = "water_level"
)
