package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDates = []string{"19/12/2025", "20/12/2025", "21/12/2025", "22/12/2025", "23/12/2025", "24/12/2025"}

func rainCells(id, name, district, ts, rain1h string) []string {
	return []string{
		"1", id, name, district, ts,
		"0.0", "1.5", "-9999", "12.0", "3.0", "0.5",
		"4.0", rain1h,
	}
}

func waterCells(id, name, district, ts, level string) []string {
	return []string{
		"1", id, name, district, "Sg. Muda", "Sg. Ara", ts, level,
		"1.0", "2.5", "3.0", "3.5",
	}
}

func TestParseRainRow(t *testing.T) {
	n := newTestNormalizer()

	row, skip := n.ParseRainRow(rainCells("RF001", "Sungai Ara", "Timur Laut", "25/12/2025 12:15:00", "2.0"), testDates)
	require.Nil(t, skip)

	assert.Equal(t, "RF001", row.StationID)
	assert.Equal(t, "Sungai Ara", row.Name)
	require.NotNil(t, row.District)
	assert.Equal(t, "Timur Laut", *row.District)
	require.NotNil(t, row.LastUpdated)
	assert.Equal(t, time.Date(2025, 12, 25, 4, 15, 0, 0, time.UTC), *row.LastUpdated)
	require.NotNil(t, row.Rain1hMm)
	assert.InDelta(t, 2.0, *row.Rain1hMm, 1e-9)
	require.NotNil(t, row.RainSinceMidnight)
	assert.InDelta(t, 4.0, *row.RainSinceMidnight, 1e-9)

	require.Len(t, row.DailyTotals, 6)
	assert.Equal(t, "19/12/2025", row.DailyTotals[0].Date)
	assert.InDelta(t, 0.0, *row.DailyTotals[0].TotalMm, 1e-9)
	assert.Nil(t, row.DailyTotals[2].TotalMm, "sentinel daily total is missing")
	assert.InDelta(t, 0.5, *row.DailyTotals[5].TotalMm, 1e-9)
}

func TestParseRainRow_NoDates(t *testing.T) {
	n := newTestNormalizer()

	row, skip := n.ParseRainRow(rainCells("RF001", "Sungai Ara", "", "25/12/2025 12:15", "2.0"), nil)
	require.Nil(t, skip)
	assert.Empty(t, row.DailyTotals)
	assert.Nil(t, row.District)
}

func TestParseRainRow_ExtraDatesTruncated(t *testing.T) {
	n := newTestNormalizer()
	dates := append(append([]string{}, testDates...), "25/12/2025")

	row, skip := n.ParseRainRow(rainCells("RF001", "Sungai Ara", "", "", ""), dates)
	require.Nil(t, skip)
	assert.Len(t, row.DailyTotals, 6)
}

func TestParseRainRow_MissingValuesAreKept(t *testing.T) {
	n := newTestNormalizer()

	row, skip := n.ParseRainRow(rainCells("RF001", "Sungai Ara", "", "No Data", "-9999"), testDates)
	require.Nil(t, skip)
	assert.Nil(t, row.LastUpdated)
	assert.Nil(t, row.Rain1hMm)
}

func TestParseRainRow_Skips(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name   string
		cells  []string
		reason SkipReason
	}{
		{"too few cells", []string{"1", "RF001", "Sungai Ara"}, SkipTooFewCells},
		{"missing id", rainCells(" ", "Sungai Ara", "", "", ""), SkipMissingID},
		{"missing name", rainCells("RF001", "", "", "", ""), SkipMissingName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, skip := n.ParseRainRow(tt.cells, testDates)
			require.NotNil(t, skip)
			assert.Equal(t, tt.reason, skip.Reason)
		})
	}
}

func TestParseWaterRow(t *testing.T) {
	n := newTestNormalizer()

	row, skip := n.ParseWaterRow(waterCells("WL001", "Sg. Pinang", "Timur Laut", "25/12/2025 12:15", "1.23"))
	require.Nil(t, skip)

	assert.Equal(t, "WL001", row.StationID)
	assert.Equal(t, "Sg. Pinang", row.Name)
	require.NotNil(t, row.MainBasin)
	assert.Equal(t, "Sg. Muda", *row.MainBasin)
	require.NotNil(t, row.SubBasin)
	assert.Equal(t, "Sg. Ara", *row.SubBasin)
	require.NotNil(t, row.LevelM)
	assert.InDelta(t, 1.23, *row.LevelM, 1e-9)
	require.NotNil(t, row.Thresholds.Danger)
	assert.InDelta(t, 3.5, *row.Thresholds.Danger, 1e-9)
	assert.Equal(t, time.Date(2025, 12, 25, 4, 15, 0, 0, time.UTC), *row.LastUpdated)
}

func TestParseWaterRow_Skips(t *testing.T) {
	n := newTestNormalizer()

	_, skip := n.ParseWaterRow(waterCells("WL001", "Sg. Pinang", "", "", "")[:11])
	require.NotNil(t, skip)
	assert.Equal(t, SkipTooFewCells, skip.Reason)

	_, skip = n.ParseWaterRow(waterCells("", "Sg. Pinang", "", "", ""))
	require.NotNil(t, skip)
	assert.Equal(t, SkipMissingID, skip.Reason)
}

func TestParseTables_CountSkips(t *testing.T) {
	n := newTestNormalizer()
	skipped := SkipCounts{}

	rain := n.ParseRainTable(RainTable{
		DailyDates: testDates,
		Rows: [][]string{
			rainCells("RF001", "A", "", "25/12/2025 12:15", "1.0"),
			{"1", "RF002"},
			rainCells("RF003", "", "", "", ""),
		},
	}, skipped)
	water := n.ParseWaterTable([][]string{
		waterCells("WL001", "B", "", "25/12/2025 12:15", "1.0"),
		{},
	}, skipped)

	assert.Len(t, rain, 1)
	assert.Len(t, water, 1)
	assert.Equal(t, SkipCounts{SkipTooFewCells: 2, SkipMissingName: 1}, skipped)
	assert.Equal(t, 3, skipped.Total())
}

func TestFallbackReadings(t *testing.T) {
	n := newTestNormalizer()
	rows := []FeedRow{
		{Name: "SUNGAI ARA", District: "TIMUR LAUT", State: "Penang", Rain: "3.5", RainAt: "25/12/2025 12:15:00", TypeFlags: "R"},
		{Name: "SG. PINANG", District: "TIMUR LAUT", State: "PULAU PINANG", Rain: "1.0", RainAt: "25/12/2025 12:15", Level: "2.1", LevelAt: "25/12/2025 12:00", TypeFlags: "RW"},
		{Name: "KUALA KEDAH", State: "Kedah", Rain: "9.0", RainAt: "25/12/2025 12:15", TypeFlags: "R"},
		{Name: "NO VALUE", State: "Penang", Rain: "-9999", RainAt: "25/12/2025 12:15", TypeFlags: "R"},
		{Name: "NO TIME", State: "Penang", Level: "1.0", LevelAt: "", TypeFlags: "w"},
		{Name: "  ", State: "Penang", Rain: "1.0", RainAt: "25/12/2025 12:15", TypeFlags: "R"},
	}
	skipped := SkipCounts{}

	got := n.FallbackReadings(rows, "png", skipped)

	require.Len(t, got.Rain, 2)
	require.Len(t, got.Water, 1)

	first := got.Rain[0]
	assert.Equal(t, "Sungai Ara", first.Name)
	require.NotNil(t, first.District)
	assert.Equal(t, "Timur Laut", *first.District)
	assert.Equal(t, "PNG", first.Region)
	assert.Equal(t, KindRain, first.Kind)
	assert.InDelta(t, 3.5, first.Value, 1e-9)
	assert.Equal(t, time.Date(2025, 12, 25, 4, 15, 0, 0, time.UTC), first.RecordedAt)

	assert.Equal(t, "Sg. Pinang", got.Water[0].Name)
	assert.Equal(t, KindWaterLevel, got.Water[0].Kind)
	assert.Equal(t, time.Date(2025, 12, 25, 4, 0, 0, 0, time.UTC), got.Water[0].RecordedAt)

	assert.Equal(t, SkipCounts{SkipNoMeasurement: 1, SkipNoTimestamp: 1, SkipMissingName: 1}, skipped)
}

func TestFallbackReadings_FlagsWithoutMatchingKindAreIgnored(t *testing.T) {
	n := newTestNormalizer()
	rows := []FeedRow{
		{Name: "SUNGAI ARA", State: "Penang", Rain: "3.5", RainAt: "25/12/2025 12:15", TypeFlags: ""},
	}
	skipped := SkipCounts{}

	got := n.FallbackReadings(rows, "PNG", skipped)
	assert.Empty(t, got.Rain)
	assert.Empty(t, got.Water)
	assert.Zero(t, skipped.Total())
}
