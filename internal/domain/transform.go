package domain

import "strings"

const (
	minRainCells  = 13
	minWaterCells = 12
	dailyColumns  = 6
	firstDailyCol = 5
)

// ParseRainRow types one rainfall body row. dates labels the daily columns
// positionally; a nil dates slice yields no daily totals.
func (n *Normalizer) ParseRainRow(cells []string, dates []string) (RainRow, *Skipped) {
	if len(cells) < minRainCells {
		return RainRow{}, &Skipped{Reason: SkipTooFewCells}
	}
	id, name := strings.TrimSpace(cells[1]), strings.TrimSpace(cells[2])
	if id == "" {
		return RainRow{}, &Skipped{Reason: SkipMissingID}
	}
	if name == "" {
		return RainRow{}, &Skipped{Reason: SkipMissingName, Detail: id}
	}

	if len(dates) > dailyColumns {
		dates = dates[:dailyColumns]
	}
	totals := make([]DailyTotal, 0, len(dates))
	for i, date := range dates {
		totals = append(totals, DailyTotal{
			Date:    date,
			TotalMm: n.ParseNumber(cells[firstDailyCol+i]),
		})
	}

	return RainRow{
		StationID:         id,
		Name:              name,
		District:          optionalText(cells[3]),
		LastUpdated:       n.ParseTimestamp(cells[4]),
		RainSinceMidnight: n.ParseNumber(cells[11]),
		Rain1hMm:          n.ParseNumber(cells[12]),
		DailyTotals:       totals,
	}, nil
}

// ParseWaterRow types one water-level body row.
func (n *Normalizer) ParseWaterRow(cells []string) (WaterRow, *Skipped) {
	if len(cells) < minWaterCells {
		return WaterRow{}, &Skipped{Reason: SkipTooFewCells}
	}
	id, name := strings.TrimSpace(cells[1]), strings.TrimSpace(cells[2])
	if id == "" {
		return WaterRow{}, &Skipped{Reason: SkipMissingID}
	}
	if name == "" {
		return WaterRow{}, &Skipped{Reason: SkipMissingName, Detail: id}
	}

	return WaterRow{
		StationID:   id,
		Name:        name,
		District:    optionalText(cells[3]),
		MainBasin:   optionalText(cells[4]),
		SubBasin:    optionalText(cells[5]),
		LastUpdated: n.ParseTimestamp(cells[6]),
		LevelM:      n.ParseNumber(cells[7]),
		Thresholds: Thresholds{
			Normal:  n.ParseNumber(cells[8]),
			Alert:   n.ParseNumber(cells[9]),
			Warning: n.ParseNumber(cells[10]),
			Danger:  n.ParseNumber(cells[11]),
		},
	}, nil
}

// ParseRainTable types every row of a rainfall extraction.
func (n *Normalizer) ParseRainTable(t RainTable, skipped SkipCounts) []RainRow {
	rows := make([]RainRow, 0, len(t.Rows))
	for _, cells := range t.Rows {
		row, skip := n.ParseRainRow(cells, t.DailyDates)
		if skip != nil {
			skipped.Add(skip)
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// ParseWaterTable types every row of a water-level extraction.
func (n *Normalizer) ParseWaterTable(cells [][]string, skipped SkipCounts) []WaterRow {
	rows := make([]WaterRow, 0, len(cells))
	for _, c := range cells {
		row, skip := n.ParseWaterRow(c)
		if skip != nil {
			skipped.Add(skip)
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// FallbackReadings normalizes feed rows for one region. A row flagged for
// both kinds yields up to two readings; each kind is kept only when its value
// and timestamp both parse.
func (n *Normalizer) FallbackReadings(rows []FeedRow, region string, skipped SkipCounts) FallbackBatch {
	region = strings.ToUpper(strings.TrimSpace(region))
	var out FallbackBatch

	for _, r := range rows {
		// The feed covers every region; rows for other regions are filtered, not skipped.
		if n.CanonicalRegion(r.State) != region {
			continue
		}
		name := TitleCase(r.Name)
		if name == "" {
			skipped.Add(&Skipped{Reason: SkipMissingName})
			continue
		}
		district := optionalText(TitleCase(r.District))
		flags := strings.ToUpper(r.TypeFlags)

		if strings.ContainsRune(flags, FeedFlagRain) {
			if rd, skip := n.fallbackReading(name, district, region, KindRain, r.Rain, r.RainAt); skip != nil {
				skipped.Add(skip)
			} else {
				out.Rain = append(out.Rain, rd)
			}
		}
		if strings.ContainsRune(flags, FeedFlagWater) {
			if rd, skip := n.fallbackReading(name, district, region, KindWaterLevel, r.Level, r.LevelAt); skip != nil {
				skipped.Add(skip)
			} else {
				out.Water = append(out.Water, rd)
			}
		}
	}
	return out
}

func (n *Normalizer) fallbackReading(name string, district *string, region string, kind ReadingKind, value, at string) (FallbackReading, *Skipped) {
	v := n.ParseNumber(value)
	if v == nil {
		return FallbackReading{}, &Skipped{Reason: SkipNoMeasurement, Detail: name}
	}
	ts := n.ParseTimestamp(at)
	if ts == nil {
		return FallbackReading{}, &Skipped{Reason: SkipNoTimestamp, Detail: name}
	}
	return FallbackReading{
		Name:       name,
		District:   district,
		Region:     region,
		RecordedAt: *ts,
		Kind:       kind,
		Value:      *v,
	}, nil
}
