package domain

// ScrapeCounts are the raw row counts a source produced before reconciliation.
type ScrapeCounts struct {
	RainRows       int `json:"rainRows"`
	WaterLevelRows int `json:"waterLevelRows"`
}

// IngestResult summarizes one region ingestion for logs, job history and the API.
type IngestResult struct {
	Region           string       `json:"state"`
	Mode             SourceMode   `json:"mode"`
	Scraped          ScrapeCounts `json:"scraped"`
	UpsertedStations int          `json:"upsertedStations"`
	PreparedReadings int          `json:"preparedReadings"`
	MergedReadings   int          `json:"mergedReadings"`
	InsertedReadings int          `json:"insertedReadings"`
	Skipped          SkipCounts   `json:"skipped,omitempty"`
}
