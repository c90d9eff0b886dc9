// package formatter provides functions to export collection snapshots to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/thirtythreehz/crates/internal/collection"
	"github.com/thirtythreehz/crates/internal/shared"
)

// ExportToCSV converts a snapshot to CSV format with columns: ID, Artist, Title, Year, Original Year, Format, Label, Catalog Number, Genres, Styles, Rating, Date Added
func ExportToCSV(snapshot *collection.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Artist", "Title", "Year", "Original Year", "Format", "Label", "Catalog Number", "Genres", "Styles", "Rating", "Date Added"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i := range snapshot.Releases {
		r := &snapshot.Releases[i]
		record := []string{
			strconv.FormatInt(r.ID, 10),
			r.Artist,
			r.Title,
			yearField(r.Year),
			yearField(r.OriginalYear),
			r.PrimaryFormat,
			r.Label,
			r.CatalogNumber,
			strings.Join(r.BestGenres(), "; "),
			strings.Join(r.BestStyles(), "; "),
			ratingField(r.Rating),
			dateField(r),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a snapshot to Markdown format with a stats summary header
func ExportToMarkdown(snapshot *collection.Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s's Collection\n\n", ownerLabel(snapshot)))

	if !snapshot.SyncedAt.IsZero() {
		buf.WriteString(fmt.Sprintf("**Synced**: %s\n", snapshot.SyncedAt.Format("2006-01-02 15:04")))
	}
	buf.WriteString(fmt.Sprintf("**Releases**: %d\n", len(snapshot.Releases)))
	if snapshot.Stats.UniqueArtists > 0 {
		buf.WriteString(fmt.Sprintf("**Artists**: %d\n", snapshot.Stats.UniqueArtists))
	}
	if snapshot.Stats.EarliestYear != 0 {
		buf.WriteString(fmt.Sprintf("**Years**: %d to %d\n", snapshot.Stats.EarliestYear, snapshot.Stats.LatestYear))
	}
	buf.WriteString("\n## Releases\n\n")

	for i := range snapshot.Releases {
		r := &snapshot.Releases[i]
		yearPart := ""
		if year := r.KnownYear(); year != 0 {
			yearPart = fmt.Sprintf(" (%d)", year)
		}
		formatPart := ""
		if r.PrimaryFormat != "" {
			formatPart = fmt.Sprintf(" [%s]", r.PrimaryFormat)
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s%s\n", i+1, r.Artist, r.Title, yearPart, formatPart))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a snapshot to plain text format
func ExportToText(snapshot *collection.Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Collection: %s\n", ownerLabel(snapshot)))
	buf.WriteString(fmt.Sprintf("Releases: %d\n\n", len(snapshot.Releases)))

	for i := range snapshot.Releases {
		r := &snapshot.Releases[i]
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, r.Artist, r.Title))
	}

	return buf.Bytes(), nil
}

// ToStatsJSON generates a JSON representation of collection stats (without releases)
func ToStatsJSON(snapshot *collection.Snapshot) ([]byte, error) {
	return shared.MarshalJSON(snapshot.Stats, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	ReleasesFile string
	StatsFile    string
}

// WriteCSVExport exports a snapshot to CSV format with an accompanying stats JSON file.
//
// Defaults to the snapshot owner as the base filename & creates {base}_releases.csv and {base}_stats.json
func WriteCSVExport(snapshot *collection.Snapshot, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = ownerLabel(snapshot)
	}

	csvData, err := ExportToCSV(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	releasesFile := baseFilepath + "_releases.csv"
	if err := os.WriteFile(releasesFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	statsJSON, err := ToStatsJSON(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to generate stats JSON: %w", err)
	}

	statsFile := baseFilepath + "_stats.json"
	if err := os.WriteFile(statsFile, statsJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write stats file: %w", err)
	}

	return &CSVExportResult{
		ReleasesFile: releasesFile,
		StatsFile:    statsFile,
	}, nil
}

// WriteMarkdownExport exports a snapshot to Markdown format.
//
// Defaults to {owner}.md as the filename.
func WriteMarkdownExport(snapshot *collection.Snapshot, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s.md", ownerLabel(snapshot))
	}

	mdData, err := ExportToMarkdown(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	if err := os.WriteFile(filepath, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return filepath, nil
}

// WriteTextExport exports a snapshot to plain text format.
//
// Defaults to {owner}_releases.txt as the filename.
func WriteTextExport(snapshot *collection.Snapshot, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s_releases.txt", ownerLabel(snapshot))
	}

	textData, err := ExportToText(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(filepath, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return filepath, nil
}

// WriteExportManifest writes a JSON summary of an export run to the given path.
func WriteExportManifest(manifest any, path string) error {
	data, err := shared.MarshalJSON(manifest, true)
	if err != nil {
		return fmt.Errorf("failed to generate manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ownerLabel picks the display name for a snapshot, preferring the username.
func ownerLabel(snapshot *collection.Snapshot) string {
	if snapshot.Username != "" {
		return snapshot.Username
	}
	return snapshot.OwnerID
}

func yearField(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}

func ratingField(rating int) string {
	if rating == 0 {
		return ""
	}
	return strconv.Itoa(rating)
}

func dateField(r *collection.Release) string {
	if r.DateAdded.IsZero() {
		return ""
	}
	return r.DateAdded.Format("2006-01-02")
}
