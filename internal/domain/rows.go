package domain

import (
	"fmt"
	"time"
)

// SourceMode records which upstream produced a batch.
type SourceMode string

const (
	ModePrimary  SourceMode = "primary"
	ModeFallback SourceMode = "fallback"
)

// RainTable is the raw extraction of a rainfall page: the date labels found
// in the header and the text cells of every body row.
type RainTable struct {
	DailyDates []string
	Rows       [][]string
}

// DailyTotal is one labelled daily rainfall column.
type DailyTotal struct {
	Date    string   `json:"date"`
	TotalMm *float64 `json:"totalMm"`
}

// RainRow is a typed rainfall table row.
type RainRow struct {
	StationID         string
	Name              string
	District          *string
	LastUpdated       *time.Time
	RainSinceMidnight *float64
	Rain1hMm          *float64
	DailyTotals       []DailyTotal
}

// WaterRow is a typed water-level table row.
type WaterRow struct {
	StationID   string
	Name        string
	District    *string
	MainBasin   *string
	SubBasin    *string
	LastUpdated *time.Time
	LevelM      *float64
	Thresholds  Thresholds
}

// Thresholds are the alarm levels the portal publishes next to each gauge.
type Thresholds struct {
	Normal  *float64
	Alert   *float64
	Warning *float64
	Danger  *float64
}

// FeedRow is one decoded fallback feed record before normalization. All
// fields hold the literal text the feed carried.
type FeedRow struct {
	StationID string
	Name      string
	District  string
	State     string
	Latitude  string
	Longitude string
	Rain      string
	RainAt    string
	Level     string
	LevelAt   string
	TypeFlags string
}

// Type flag letters used by the fallback feed.
const (
	FeedFlagRain  = 'R'
	FeedFlagWater = 'W'
)

// FallbackReading is a normalized feed measurement that still has to be
// matched to a station by name.
type FallbackReading struct {
	Name       string
	District   *string
	Region     string
	RecordedAt time.Time
	Kind       ReadingKind
	Value      float64
}

// Batch is everything one region fetch produced.
type Batch struct {
	Region   string
	Mode     SourceMode
	Rain     []RainRow
	Water    []WaterRow
	Fallback FallbackBatch
	Skipped  SkipCounts
}

// FallbackBatch splits fallback readings by kind so scrape counts stay
// comparable with the primary path.
type FallbackBatch struct {
	Rain  []FallbackReading
	Water []FallbackReading
}

// RainCount is the number of rainfall rows the source yielded.
func (b Batch) RainCount() int {
	if b.Mode == ModeFallback {
		return len(b.Fallback.Rain)
	}
	return len(b.Rain)
}

// WaterCount is the number of water-level rows the source yielded.
func (b Batch) WaterCount() int {
	if b.Mode == ModeFallback {
		return len(b.Fallback.Water)
	}
	return len(b.Water)
}

// SkipReason explains why a row never became a candidate.
type SkipReason string

const (
	SkipTooFewCells   SkipReason = "too_few_cells"
	SkipMissingID     SkipReason = "missing_station_id"
	SkipMissingName   SkipReason = "missing_station_name"
	SkipNoTimestamp   SkipReason = "no_timestamp"
	SkipNoMeasurement SkipReason = "no_measurement"
	SkipNoMatch       SkipReason = "no_station_match"
)

// Skipped is the outcome of a row that failed validation. It is a value, not
// an error: row defects are expected and never abort a task.
type Skipped struct {
	Reason SkipReason
	Detail string
}

func (s *Skipped) Error() string {
	if s.Detail == "" {
		return fmt.Sprintf("row skipped: %s", s.Reason)
	}
	return fmt.Sprintf("row skipped: %s (%s)", s.Reason, s.Detail)
}

// SkipCounts tallies skipped rows per reason.
type SkipCounts map[SkipReason]int

// Add records one skip. A nil Skipped is ignored.
func (c SkipCounts) Add(s *Skipped) {
	if s == nil {
		return
	}
	c[s.Reason]++
}

// Merge folds other into c.
func (c SkipCounts) Merge(other SkipCounts) {
	for reason, n := range other {
		c[reason] += n
	}
}

// Total is the number of skipped rows across reasons.
func (c SkipCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}
