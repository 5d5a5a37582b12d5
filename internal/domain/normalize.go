package domain

import (
	"maps"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// numberRe finds the first signed decimal in a cell, e.g. "2.0 mm" -> "2.0".
	numberRe = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

	// timestampRe matches portal timestamps "DD/MM/YYYY HH:mm" with optional ":ss".
	timestampRe = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4}) (\d{2}):(\d{2})(?::(\d{2}))?$`)

	// headerDateRe matches a daily-total column label in the rainfall header.
	headerDateRe = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

	// wordRe matches a word start for title casing; the rest of the
	// non-space run is left as is.
	wordRe = regexp.MustCompile(`\b[a-z]\S*`)

	// parenRe matches parenthetical segments, which are forced to upper case.
	parenRe = regexp.MustCompile(`\(([^)]*)\)`)

	spaceRe = regexp.MustCompile(`\s+`)
)

// Tables is the immutable lookup data the Normalizer works from.
type Tables struct {
	// RegionAliases maps upper-cased state names to portal region codes.
	RegionAliases map[string]string
	// SentinelCutoff is the invalid-sensor marker; values at or below it are missing.
	SentinelCutoff float64
	// LocalOffset is the fixed offset of portal timestamps from UTC.
	LocalOffset time.Duration
}

// DefaultTables returns the production lookup data. Each call returns a fresh
// copy, so callers may extend it without affecting others.
func DefaultTables() Tables {
	return Tables{
		RegionAliases: map[string]string{
			"KEDAH":               "KDH",
			"KELANTAN":            "KEL",
			"TERENGGANU":          "TRG",
			"PAHANG":              "PHG",
			"SELANGOR":            "SEL",
			"PERAK":               "PRK",
			"PERLIS":              "PLS",
			"PULAU PINANG":        "PNG",
			"PENANG":              "PNG",
			"WILAYAH PERSEKUTUAN": "WLP",
			"KUALA LUMPUR":        "WLP",
			"PUTRAJAYA":           "WLH",
			"LABUAN":              "WLP",
			"NEGERI SEMBILAN":     "NSN",
			"MELAKA":              "MLK",
			"MALACCA":             "MLK",
			"JOHOR":               "JHR",
			"SABAH":               "SAB",
			"SARAWAK":             "SRK",
		},
		SentinelCutoff: -9999,
		LocalOffset:    8 * time.Hour,
	}
}

// Normalizer converts raw cell text into typed values.
type Normalizer struct {
	aliases  map[string]string
	sentinel float64
	offset   time.Duration
}

// NewNormalizer creates a Normalizer over a private copy of t.
func NewNormalizer(t Tables) *Normalizer {
	return &Normalizer{
		aliases:  maps.Clone(t.RegionAliases),
		sentinel: t.SentinelCutoff,
		offset:   t.LocalOffset,
	}
}

// ParseNumber extracts a decimal from cell text. It returns nil for empty or
// non-numeric text and for sentinel values.
func (n *Normalizer) ParseNumber(s string) *float64 {
	txt := strings.TrimSpace(s)
	if txt == "" {
		return nil
	}
	txt = strings.ReplaceAll(txt, ",", "")

	m := numberRe.FindString(txt)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	if v <= n.sentinel {
		return nil
	}
	return &v
}

// ParseTimestamp converts a portal-local "DD/MM/YYYY HH:mm[:ss]" string into
// a UTC instant by subtracting the local offset from the wall-clock fields.
// Out-of-range fields roll over the way time.Date normalizes them.
func (n *Normalizer) ParseTimestamp(s string) *time.Time {
	m := timestampRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second := 0
	if m[6] != "" {
		second, _ = strconv.Atoi(m[6])
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC).Add(-n.offset)
	return &t
}

// CanonicalRegion maps a free-text state name to a region code. Unknown names
// are returned upper-cased.
func (n *Normalizer) CanonicalRegion(s string) string {
	up := strings.ToUpper(strings.TrimSpace(s))
	if code, ok := n.aliases[up]; ok {
		return code
	}
	return up
}

// DailyDates returns the date labels of the first header row with at least
// five date-like cells, or nil when no row qualifies.
func DailyDates(header [][]string) []string {
	for _, row := range header {
		var dates []string
		for _, cell := range row {
			if headerDateRe.MatchString(cell) {
				dates = append(dates, cell)
			}
		}
		if len(dates) >= 5 {
			return dates
		}
	}
	return nil
}

// TitleCase lower-cases s, capitalizes each word and upper-cases
// parenthetical segments: "SG. ARA (JPS)" -> "Sg. Ara (JPS)".
func TitleCase(s string) string {
	out := wordRe.ReplaceAllStringFunc(strings.ToLower(s), func(w string) string {
		return strings.ToUpper(w[:1]) + w[1:]
	})
	out = parenRe.ReplaceAllStringFunc(out, strings.ToUpper)
	return strings.TrimSpace(out)
}

// MatchKey folds text for station name matching: lower case, underscores as
// spaces, collapsed whitespace.
func MatchKey(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "_", " "))
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
