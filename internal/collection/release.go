// package collection defines the normalized record collection model.
//
// A [Snapshot] is the authoritative mirror of one user's Discogs collection:
// every release they own in normalized form, plus derived [Stats]. Snapshots
// are serialized as JSON blobs into the snapshot store and rebuilt wholesale
// on every sync.
package collection

import "time"

// Release is one collection item in normalized form.
//
// ID is the Discogs release id; InstanceID disambiguates multiple physical
// copies of the same release. MasterID links to the master release (0 when
// the release has none) and the Master* fields hold data copied from it by
// enrichment. MasterEnriched is monotonic: once true it is carried forward
// by every later sync and never reset.
type Release struct {
	ID                int64     `json:"id"`
	InstanceID        int64     `json:"instance_id"`
	MasterID          int64     `json:"master_id,omitempty"`
	Title             string    `json:"title"`
	Artist            string    `json:"artist"`
	Year              int       `json:"year,omitempty"`
	OriginalYear      int       `json:"original_year,omitempty"`
	PrimaryFormat     string    `json:"primary_format,omitempty"`
	FormatDescriptors []string  `json:"format_descriptors,omitempty"`
	Label             string    `json:"label,omitempty"`
	CatalogNumber     string    `json:"catalog_number,omitempty"`
	Genres            []string  `json:"genres,omitempty"`
	Styles            []string  `json:"styles,omitempty"`
	MasterGenres      []string  `json:"master_genres,omitempty"`
	MasterStyles      []string  `json:"master_styles,omitempty"`
	CoverURL          string    `json:"cover_url,omitempty"`
	ThumbURL          string    `json:"thumb_url,omitempty"`
	ExternalURL       string    `json:"external_url,omitempty"`
	DateAdded         time.Time `json:"date_added"`
	Rating            int       `json:"rating,omitempty"`
	MasterEnriched    bool      `json:"master_enriched"`
}

// HasMaster reports whether the release links to a master release.
func (r *Release) HasMaster() bool {
	return r.MasterID != 0
}

// NeedsEnrichment reports whether the release still awaits master data.
func (r *Release) NeedsEnrichment() bool {
	return r.MasterID != 0 && !r.MasterEnriched
}

// KnownYear returns the best release year available, preferring the master's
// original year over the pressing year. Returns 0 when neither is known.
func (r *Release) KnownYear() int {
	if r.OriginalYear != 0 {
		return r.OriginalYear
	}
	return r.Year
}

// BestGenres prefers master genres over release genres.
func (r *Release) BestGenres() []string {
	if len(r.MasterGenres) > 0 {
		return r.MasterGenres
	}
	return r.Genres
}

// BestStyles prefers master styles over release styles.
func (r *Release) BestStyles() []string {
	if len(r.MasterStyles) > 0 {
		return r.MasterStyles
	}
	return r.Styles
}

// Snapshot is the persisted mirror of one owner's collection.
type Snapshot struct {
	OwnerID      string    `json:"owner_id"`
	Username     string    `json:"username"`
	SyncedAt     time.Time `json:"synced_at"`
	ReleaseCount int       `json:"release_count"`
	Releases     []Release `json:"releases"`
	Stats        Stats     `json:"stats"`
}

// ByID builds a release-id lookup over the snapshot's releases.
//
// When the collection holds multiple copies of a release the last one wins;
// enrichment state is per-release, so the copies agree on everything the
// lookup is used for.
func (s *Snapshot) ByID() map[int64]*Release {
	m := make(map[int64]*Release, len(s.Releases))
	for i := range s.Releases {
		m[s.Releases[i].ID] = &s.Releases[i]
	}
	return m
}
