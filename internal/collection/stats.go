package collection

import (
	"fmt"
	"sort"
	"time"
)

// Stats holds the derived aggregates for one collection snapshot.
//
// Everything here is recomputed from the release list; nothing is
// authoritative. Counts bucket by normalized artist string, genre, primary
// format, and decade of the best known year.
type Stats struct {
	Genres        []string       `json:"genres"`
	Styles        []string       `json:"styles"`
	Formats       []string       `json:"formats"`
	GenreCounts   map[string]int `json:"genre_counts"`
	FormatCounts  map[string]int `json:"format_counts"`
	DecadeCounts  map[string]int `json:"decade_counts"`
	ArtistCounts  map[string]int `json:"artist_counts"`
	UniqueArtists int            `json:"unique_artists"`
	EarliestYear  int            `json:"earliest_year,omitempty"`
	LatestYear    int            `json:"latest_year,omitempty"`
	LastAddedAt   time.Time      `json:"last_added_at"`
}

// ComputeStats derives [Stats] from a release list in a single pass.
//
// Master-enriched fields take precedence where present: genre buckets use
// MasterGenres over Genres, and year aggregates prefer OriginalYear.
func ComputeStats(releases []Release) Stats {
	stats := Stats{
		GenreCounts:  make(map[string]int),
		FormatCounts: make(map[string]int),
		DecadeCounts: make(map[string]int),
		ArtistCounts: make(map[string]int),
	}

	genres := make(map[string]bool)
	styles := make(map[string]bool)
	formats := make(map[string]bool)

	for i := range releases {
		r := &releases[i]

		for _, g := range r.BestGenres() {
			genres[g] = true
			stats.GenreCounts[g]++
		}
		for _, s := range r.BestStyles() {
			styles[s] = true
		}

		if r.PrimaryFormat != "" {
			formats[r.PrimaryFormat] = true
			stats.FormatCounts[r.PrimaryFormat]++
		}

		if r.Artist != "" {
			stats.ArtistCounts[r.Artist]++
		}

		if year := r.KnownYear(); year != 0 {
			if stats.EarliestYear == 0 || year < stats.EarliestYear {
				stats.EarliestYear = year
			}
			if year > stats.LatestYear {
				stats.LatestYear = year
			}
			stats.DecadeCounts[decadeKey(year)]++
		}

		if r.DateAdded.After(stats.LastAddedAt) {
			stats.LastAddedAt = r.DateAdded
		}
	}

	stats.Genres = sortedKeys(genres)
	stats.Styles = sortedKeys(styles)
	stats.Formats = sortedKeys(formats)
	stats.UniqueArtists = len(stats.ArtistCounts)

	return stats
}

// decadeKey buckets a year into a label like "1970s".
func decadeKey(year int) string {
	return fmt.Sprintf("%ds", year/10*10)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
