package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(DefaultTables())
}

func TestParseNumber(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name     string
		input    string
		expected *float64
	}{
		{"plain decimal", "2.0", ptr(2.0)},
		{"integer", "15", ptr(15.0)},
		{"with unit", "2.5 mm", ptr(2.5)},
		{"surrounding space", "  0.5 ", ptr(0.5)},
		{"thousands separator", "1,234.5", ptr(1234.5)},
		{"negative", "-1.25", ptr(-1.25)},
		{"explicit plus", "+3", ptr(3.0)},
		{"just above sentinel", "-9998.9", ptr(-9998.9)},
		{"sentinel", "-9999", nil},
		{"sentinel decimal", "-9999.0", nil},
		{"below sentinel", "-10000", nil},
		{"empty", "", nil},
		{"whitespace", "   ", nil},
		{"no data", "No Data", nil},
		{"dash", "-", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.ParseNumber(tt.input)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.expected, *got, 1e-9)
		})
	}
}

func TestParseNumber_CustomSentinel(t *testing.T) {
	tables := DefaultTables()
	tables.SentinelCutoff = -999
	n := NewNormalizer(tables)

	assert.Nil(t, n.ParseNumber("-999"))
	require.NotNil(t, n.ParseNumber("-998"))
}

func TestParseTimestamp(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{"with seconds", "25/12/2025 12:15:00", time.Date(2025, 12, 25, 4, 15, 0, 0, time.UTC)},
		{"without seconds", "25/12/2025 12:15", time.Date(2025, 12, 25, 4, 15, 0, 0, time.UTC)},
		{"non-zero seconds", "01/03/2024 09:30:45", time.Date(2024, 3, 1, 1, 30, 45, 0, time.UTC)},
		{"crosses midnight", "01/01/2025 03:00", time.Date(2024, 12, 31, 19, 0, 0, 0, time.UTC)},
		{"crosses month", "01/03/2024 07:59:59", time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)},
		{"trimmed", " 10/10/2025 08:00 ", time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.ParseTimestamp(tt.input)
			require.NotNil(t, got)
			assert.True(t, tt.expected.Equal(*got), "want %s got %s", tt.expected, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseTimestamp_EqualsLocalMinusOffset(t *testing.T) {
	n := newTestNormalizer()
	local := time.Date(2025, 6, 30, 23, 45, 10, 0, time.UTC)

	got := n.ParseTimestamp(local.Format("02/01/2006 15:04:05"))
	require.NotNil(t, got)
	assert.Equal(t, local.Add(-8*time.Hour), *got)
}

func TestParseTimestamp_Invalid(t *testing.T) {
	n := newTestNormalizer()

	for _, input := range []string{
		"",
		"No Data",
		"2025-12-25 12:15:00",
		"25/12/25 12:15",
		"25/12/2025",
		"25/12/2025 12:15:0",
		"25/12/2025T12:15:00",
		"5/12/2025 12:15",
	} {
		t.Run(input, func(t *testing.T) {
			assert.Nil(t, n.ParseTimestamp(input))
		})
	}
}

func TestCanonicalRegion(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		input    string
		expected string
	}{
		{"Penang", "PNG"},
		{"PULAU PINANG", "PNG"},
		{" pulau pinang ", "PNG"},
		{"Kuala Lumpur", "WLP"},
		{"LABUAN", "WLP"},
		{"Wilayah Persekutuan", "WLP"},
		{"Putrajaya", "WLH"},
		{"Malacca", "MLK"},
		{"kel", "KEL"},
		{"Atlantis", "ATLANTIS"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.CanonicalRegion(tt.input))
		})
	}
}

func TestNormalizer_TablesAreCopied(t *testing.T) {
	tables := DefaultTables()
	n := NewNormalizer(tables)

	tables.RegionAliases["PENANG"] = "XXX"

	assert.Equal(t, "PNG", n.CanonicalRegion("Penang"))
	assert.Equal(t, "PNG", DefaultTables().RegionAliases["PENANG"])
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"SUNGAI ARA", "Sungai Ara"},
		{"sg. kelantan di jambatan guillemard", "Sg. Kelantan Di Jambatan Guillemard"},
		{"LADANG KUALA (JPS)", "Ladang Kuala (JPS)"},
		{"kampung (kg) baru", "Kampung (KG) Baru"},
		{"  timur laut  ", "Timur Laut"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, TitleCase(tt.input))
		})
	}
}

func TestMatchKey(t *testing.T) {
	assert.Equal(t, "sungai ara", MatchKey("  Sungai   ARA "))
	assert.Equal(t, "timur laut", MatchKey("TIMUR_LAUT"))
	assert.Equal(t, "", MatchKey(""))
}

func TestDailyDates(t *testing.T) {
	t.Run("picks first row with five or more dates", func(t *testing.T) {
		header := [][]string{
			{"No.", "Station ID", "Station", "District", "Last Updated", "Daily Rainfall"},
			{"20/12/2025", "21/12/2025"},
			{"19/12/2025", "20/12/2025", "21/12/2025", "22/12/2025", "23/12/2025", "24/12/2025"},
		}
		assert.Equal(t, []string{"19/12/2025", "20/12/2025", "21/12/2025", "22/12/2025", "23/12/2025", "24/12/2025"}, DailyDates(header))
	})

	t.Run("ignores non-date cells in the qualifying row", func(t *testing.T) {
		header := [][]string{
			{"Total", "01/01/2025", "02/01/2025", "03/01/2025", "04/01/2025", "05/01/2025"},
		}
		assert.Len(t, DailyDates(header), 5)
	})

	t.Run("none qualifies", func(t *testing.T) {
		header := [][]string{{"01/01/2025", "02/01/2025", "03/01/2025", "04/01/2025"}}
		assert.Nil(t, DailyDates(header))
	})
}

func ptr[T any](v T) *T { return &v }
