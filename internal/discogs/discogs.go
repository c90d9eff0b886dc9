// Discogs API client types.
//
// Response types based on https://www.discogs.com/developers/
package discogs

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/thirtythreehz/crates/internal/collection"
)

const (
	defaultBaseURL = "https://api.discogs.com"
	authorizeURL   = "https://www.discogs.com/oauth/authorize"
	releaseURL     = "https://www.discogs.com/release"
)

// CredentialPair is an OAuth token and its matching secret.
//
// The request pair is ephemeral and lives only for the browser round-trip;
// the access pair is durable. Secrets are never logged and are sealed before
// they are persisted anywhere.
type CredentialPair struct {
	Token  string
	Secret string
}

// Identity is the authenticated user returned by /oauth/identity.
type Identity struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	ResourceURL  string `json:"resource_url"`
	ConsumerName string `json:"consumer_name"`
}

// Pagination describes the page window of a collection response.
type Pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

// CollectionPage is one page of a user's collection folder.
type CollectionPage struct {
	Pagination Pagination       `json:"pagination"`
	Releases   []CollectionItem `json:"releases"`
}

// CollectionItem is a single owned release within a collection page.
type CollectionItem struct {
	InstanceID int64            `json:"instance_id"`
	Rating     int              `json:"rating"`
	DateAdded  string           `json:"date_added"`
	Basic      BasicInformation `json:"basic_information"`
}

// BasicInformation carries the release fields embedded in collection items.
type BasicInformation struct {
	ID         int64    `json:"id"`
	MasterID   int64    `json:"master_id"`
	Title      string   `json:"title"`
	Year       int      `json:"year"`
	Formats    []Format `json:"formats"`
	Labels     []Label  `json:"labels"`
	Artists    []Artist `json:"artists"`
	Genres     []string `json:"genres"`
	Styles     []string `json:"styles"`
	Thumb      string   `json:"thumb"`
	CoverImage string   `json:"cover_image"`
}

// Format describes one media format of a release.
type Format struct {
	Name         string   `json:"name"`
	Qty          string   `json:"qty"`
	Descriptions []string `json:"descriptions"`
}

// Label is a record label credit.
type Label struct {
	Name  string `json:"name"`
	CatNo string `json:"catno"`
}

// Artist is a single artist credit on a release.
type Artist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	ANV  string `json:"anv"`
	Join string `json:"join"`
	Role string `json:"role"`
}

// Master is a master release, the parent grouping all pressings of one work.
type Master struct {
	ID     int64    `json:"id"`
	Title  string   `json:"title"`
	Year   int      `json:"year"`
	Genres []string `json:"genres"`
	Styles []string `json:"styles"`
}

// Empty reports whether the master carries nothing worth copying onto a
// release. Such masters are marked enriched anyway so the work list does not
// retry them forever.
func (m *Master) Empty() bool {
	return m.Year == 0 && len(m.Genres) == 0 && len(m.Styles) == 0
}

// Discogs appends " (2)", " (3)", ... to artist names that collide.
var artistSuffix = regexp.MustCompile(`\s*\(\d+\)$`)

// JoinArtists merges the credited artists into one display string, comma
// separated, with the trailing numeric disambiguator stripped.
func JoinArtists(artists []Artist) string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return artistSuffix.ReplaceAllString(strings.Join(names, ", "), "")
}

// Normalize converts a raw collection item into the domain model.
//
// The first format and first label credit win; enrichment fields start empty
// and are filled in later from the master release.
func (c CollectionItem) Normalize() collection.Release {
	b := c.Basic

	r := collection.Release{
		ID:          b.ID,
		InstanceID:  c.InstanceID,
		MasterID:    b.MasterID,
		Title:       b.Title,
		Artist:      JoinArtists(b.Artists),
		Year:        b.Year,
		Genres:      b.Genres,
		Styles:      b.Styles,
		CoverURL:    b.CoverImage,
		ThumbURL:    b.Thumb,
		ExternalURL: fmt.Sprintf("%s/%d", releaseURL, b.ID),
		Rating:      c.Rating,
	}

	if len(b.Formats) > 0 {
		r.PrimaryFormat = b.Formats[0].Name
		r.FormatDescriptors = b.Formats[0].Descriptions
	}

	if len(b.Labels) > 0 {
		r.Label = b.Labels[0].Name
		r.CatalogNumber = b.Labels[0].CatNo
	}

	if t, err := time.Parse(time.RFC3339, c.DateAdded); err == nil {
		r.DateAdded = t
	}

	return r
}
