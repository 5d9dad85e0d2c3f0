package services

import (
	"strings"

	"roadtrip-server/models"
	"roadtrip-server/utils/geo"
)

// DefaultDedupMeters is the distance under which two same-named POIs are
// treated as one place.
const DefaultDedupMeters = 100.0

// MergeCandidates concatenates lists and collapses duplicates: POIs whose
// names match case-insensitively and that lie within thresholdMeters of each
// other. Order of first appearance is kept. When a duplicate pair spans
// sources the REMOTE record wins, with gaps filled from the LOCAL one.
func MergeCandidates(thresholdMeters float64, lists ...[]models.POI) []models.POI {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultDedupMeters
	}

	total := 0
	for _, l := range lists {
		total += len(l)
	}
	merged := make([]models.POI, 0, total)
	byName := make(map[string][]int, total)

	for _, list := range lists {
		for _, candidate := range list {
			key := dedupKey(candidate.Name)
			duplicate := -1
			for _, idx := range byName[key] {
				existing := merged[idx]
				d := geo.Haversine(existing.Location.Latitude, existing.Location.Longitude,
					candidate.Location.Latitude, candidate.Location.Longitude)
				if d < thresholdMeters {
					duplicate = idx
					break
				}
			}
			if duplicate >= 0 {
				merged[duplicate] = mergePair(merged[duplicate], candidate)
				continue
			}
			byName[key] = append(byName[key], len(merged))
			merged = append(merged, candidate)
		}
	}
	return merged
}

func dedupKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// mergePair keeps the more authoritative record and backfills its empty
// descriptive fields from the other.
func mergePair(existing, incoming models.POI) models.POI {
	primary, secondary := existing, incoming
	if existing.Source != models.SourceRemote && incoming.Source == models.SourceRemote {
		primary, secondary = incoming, existing
	}

	if primary.Description == "" {
		primary.Description = secondary.Description
	}
	if primary.ReviewSummary == "" {
		primary.ReviewSummary = secondary.ReviewSummary
	}
	if len(primary.Photos) == 0 && len(secondary.Photos) > 0 {
		primary.Photos = append([]string(nil), secondary.Photos...)
	}
	if primary.Address == "" {
		primary.Address = secondary.Address
	}
	if primary.Phone == "" {
		primary.Phone = secondary.Phone
	}
	if primary.Website == "" {
		primary.Website = secondary.Website
	}
	if primary.PriceLevel == nil && secondary.PriceLevel != nil {
		level := *secondary.PriceLevel
		primary.PriceLevel = &level
	}
	return primary
}
