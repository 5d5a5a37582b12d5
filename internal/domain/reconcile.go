package domain

// Reconciler turns one region's typed rows into deduplicated station and
// reading upserts. It holds no state between calls.
type Reconciler struct {
	source string
}

// NewReconciler creates a Reconciler that stamps upserts with source.
func NewReconciler(source string) *Reconciler {
	if source == "" {
		source = SourcePublicInfoBanjir
	}
	return &Reconciler{source: source}
}

// Plan is the write set for one task.
type Plan struct {
	Stations []StationUpsert
	Readings []Reading
	// Prepared is the number of reading candidates before merging.
	Prepared int
	Skipped  SkipCounts
}

// Stations builds one candidate per rain row, then per water row, and keeps
// the first occurrence of each station id. A station present on both pages
// keeps the rainfall role for this batch.
func (r *Reconciler) Stations(region string, rain []RainRow, water []WaterRow) []StationUpsert {
	state := optionalText(region)
	seen := make(map[string]struct{}, len(rain)+len(water))
	out := make([]StationUpsert, 0, len(rain)+len(water))

	add := func(s StationUpsert) {
		if _, ok := seen[s.StationID]; ok {
			return
		}
		seen[s.StationID] = struct{}{}
		out = append(out, s)
	}

	for _, row := range rain {
		add(StationUpsert{
			StationID:   row.StationID,
			Name:        row.Name,
			State:       state,
			District:    row.District,
			StationType: StationRainfall,
			Source:      r.source,
		})
	}
	for _, row := range water {
		add(StationUpsert{
			StationID:   row.StationID,
			Name:        row.Name,
			State:       state,
			District:    row.District,
			StationType: StationWaterLevel,
			Source:      r.source,
		})
	}
	return out
}

// PrimaryReadings emits one candidate per row that has both a timestamp and
// its measurement.
func (r *Reconciler) PrimaryReadings(rain []RainRow, water []WaterRow, skipped SkipCounts) []Reading {
	out := make([]Reading, 0, len(rain)+len(water))
	for _, row := range rain {
		if skip := candidateSkip(row.Rain1hMm != nil, row.LastUpdated != nil, row.StationID); skip != nil {
			skipped.Add(skip)
			continue
		}
		out = append(out, Reading{
			StationID:  row.StationID,
			RecordedAt: *row.LastUpdated,
			RainMm:     row.Rain1hMm,
			Source:     r.source,
		})
	}
	for _, row := range water {
		if skip := candidateSkip(row.LevelM != nil, row.LastUpdated != nil, row.StationID); skip != nil {
			skipped.Add(skip)
			continue
		}
		out = append(out, Reading{
			StationID:   row.StationID,
			RecordedAt:  *row.LastUpdated,
			RiverLevelM: row.LevelM,
			Source:      r.source,
		})
	}
	return out
}

func candidateSkip(hasValue, hasTime bool, id string) *Skipped {
	switch {
	case !hasValue:
		return &Skipped{Reason: SkipNoMeasurement, Detail: id}
	case !hasTime:
		return &Skipped{Reason: SkipNoTimestamp, Detail: id}
	default:
		return nil
	}
}

// StationIndex resolves fallback readings to known station ids.
type StationIndex struct {
	byFull map[string]string
	byName map[string]string
}

// NewStationIndex indexes stations by (name, region, district) and by
// (name, region). Later stations overwrite earlier ones on key collisions.
func NewStationIndex(stations []Station) *StationIndex {
	idx := &StationIndex{
		byFull: make(map[string]string, len(stations)),
		byName: make(map[string]string, len(stations)),
	}
	for _, s := range stations {
		state, district := deref(s.State), deref(s.District)
		idx.byFull[fullKey(s.Name, state, district)] = s.StationID
		idx.byName[nameKey(s.Name, state)] = s.StationID
	}
	return idx
}

// Lookup tries the district-qualified key first, then name and region alone.
func (i *StationIndex) Lookup(name, region string, district *string) (string, bool) {
	if id, ok := i.byFull[fullKey(name, region, deref(district))]; ok {
		return id, true
	}
	id, ok := i.byName[nameKey(name, region)]
	return id, ok
}

func fullKey(name, region, district string) string {
	return MatchKey(name) + "|" + MatchKey(region) + "|" + MatchKey(district)
}

func nameKey(name, region string) string {
	return MatchKey(name) + "|" + MatchKey(region)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// FallbackReadings matches feed readings to stations. Unmatched readings are
// dropped and counted.
func (r *Reconciler) FallbackReadings(batch FallbackBatch, idx *StationIndex, skipped SkipCounts) []Reading {
	out := make([]Reading, 0, len(batch.Rain)+len(batch.Water))
	for _, group := range [][]FallbackReading{batch.Rain, batch.Water} {
		for _, fr := range group {
			id, ok := idx.Lookup(fr.Name, fr.Region, fr.District)
			if !ok {
				skipped.Add(&Skipped{Reason: SkipNoMatch, Detail: fr.Name})
				continue
			}
			v := fr.Value
			rd := Reading{StationID: id, RecordedAt: fr.RecordedAt, Source: r.source}
			if fr.Kind == KindRain {
				rd.RainMm = &v
			} else {
				rd.RiverLevelM = &v
			}
			out = append(out, rd)
		}
	}
	return out
}

// Plan reconciles a fetched batch. known is the region's active station list
// and is only consulted for fallback batches.
func (r *Reconciler) Plan(b Batch, known []Station) Plan {
	skipped := SkipCounts{}
	skipped.Merge(b.Skipped)

	var stations []StationUpsert
	var candidates []Reading
	if b.Mode == ModeFallback {
		candidates = r.FallbackReadings(b.Fallback, NewStationIndex(known), skipped)
	} else {
		stations = r.Stations(b.Region, b.Rain, b.Water)
		candidates = r.PrimaryReadings(b.Rain, b.Water, skipped)
	}

	return Plan{
		Stations: stations,
		Readings: MergeReadings(candidates),
		Prepared: len(candidates),
		Skipped:  skipped,
	}
}

// MergeReadings collapses readings sharing (StationID, RecordedAt) into one
// record per key, keeping first-seen key order. For each measurement the
// first non-nil value wins; Source takes the later record's value.
func MergeReadings(items []Reading) []Reading {
	index := make(map[ReadingKey]int, len(items))
	out := make([]Reading, 0, len(items))

	for _, item := range items {
		key := item.Key()
		i, ok := index[key]
		if !ok {
			item.RecordedAt = key.RecordedAt
			index[key] = len(out)
			out = append(out, item)
			continue
		}
		merged := &out[i]
		if merged.RainMm == nil {
			merged.RainMm = item.RainMm
		}
		if merged.RiverLevelM == nil {
			merged.RiverLevelM = item.RiverLevelM
		}
		if item.Source != "" {
			merged.Source = item.Source
		}
	}
	return out
}
