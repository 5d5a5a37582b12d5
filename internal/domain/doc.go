// Package domain models PublicInfoBanjir rainfall and river-level telemetry.
//
// # Data Source
//
// Readings originate from the Malaysian Department of Irrigation and Drainage
// (JPS) flood portal at https://publicinfobanjir.water.gov.my. Each region
// (state) has a rainfall page and a water-level page; both render a single
// HTML table with id "normaltable1". A JSON feed covering every region is used
// as a fallback when the pages cannot be extracted.
//
// # Portal Conventions
//
// Region codes:
//
//	Three-letter codes select a state on the portal, e.g. "KEL" (Kelantan),
//	"PNG" (Pulau Pinang), "WLP" (Wilayah Persekutuan). See [Regions].
//
// Rainfall table (tbody cells, at least 13):
//
//	0 No. | 1 Station ID | 2 Station | 3 District | 4 Last Updated
//	5..10 daily totals, labelled by the date header row
//	11 rainfall since midnight | 12 total for the last hour (the current value)
//
// Water-level table (tbody cells, at least 12):
//
//	0 No. | 1 Station ID | 2 Station Name | 3 District | 4 Main Basin
//	5 Sub River Basin | 6 Last Updated | 7 Water Level (m)
//	8 Normal | 9 Alert | 10 Warning | 11 Danger thresholds
//
// Time format:
//
//	"DD/MM/YYYY HH:mm:ss" on rainfall pages, "DD/MM/YYYY HH:mm" on water-level
//	pages, both in Malaysia time (UTC+8). Converted to UTC by subtracting the
//	offset from the wall-clock fields. See [Normalizer.ParseTimestamp].
//
// Numeric cells:
//
//	"2.0", "2.0 mm" and "1,234.5" parse to numbers. Empty text and "No Data"
//	are missing values. -9999 and below is the portal's invalid-sensor marker
//	and is treated as missing, never as a measurement.
//
// # Fallback Feed
//
// The feed is a JSON array keyed by short field codes (b name, e district,
// f state name, c/d coordinates, g/h rainfall value and time, i/j water level
// value and time, k type flags). State names are free text ("PULAU PINANG",
// "Penang") and are folded into region codes through [Tables.RegionAliases].
// Feed rows carry no reliable station id, so readings are matched to known
// stations by name, region and district.
//
// # Reconciliation
//
// Station and reading candidates are deduplicated before they reach storage
// because a multi-row upsert must not touch the same key twice in one
// statement. See [Reconciler] and [MergeReadings].
package domain
