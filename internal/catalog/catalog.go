// Package catalog fetches a source playlist and everything the graph needs
// about it from Spotify: tracks, audio features, albums, artists and genres.
package catalog

import (
	"sort"
)

// AudioFeatures is the per-track feature vector reported by Spotify.
type AudioFeatures struct {
	Acousticness     float64
	Danceability     float64
	Energy           float64
	Instrumentalness float64
	Liveness         float64
	Loudness         float64
	Speechiness      float64
	Tempo            float64
	Valence          float64
	Key              int
	Mode             int
	TimeSignature    int
}

type Track struct {
	ID         string
	Name       string
	Popularity int
	DurationMs int
	Explicit   bool
	Album      string
	Artists    []string
	// Features is nil when Spotify has no analysis for the track.
	Features *AudioFeatures
}

type Album struct {
	ID          string
	Name        string
	Popularity  int
	ReleaseDate string
	Artists     []string
	Genres      []string
	TrackCount  int
	Image       string
}

type Artist struct {
	ID         string
	Name       string
	Popularity int
	Followers  int
	Genres     []string
	Image      string
}

// Catalog is the output of the fetch stage.
type Catalog struct {
	Tracks  map[string]*Track
	Albums  map[string]*Album
	Artists map[string]*Artist
	Genres  []string
}

func newCatalog() *Catalog {
	return &Catalog{
		Tracks:  make(map[string]*Track),
		Albums:  make(map[string]*Album),
		Artists: make(map[string]*Artist),
	}
}

// TrackIDs returns the track ids in sorted order.
func (c *Catalog) TrackIDs() []string {
	return sortedKeys(c.Tracks)
}

// AlbumIDs returns the distinct album ids referenced by tracks.
func (c *Catalog) AlbumIDs() []string {
	seen := make(map[string]bool)
	for _, t := range c.Tracks {
		if t.Album != "" {
			seen[t.Album] = true
		}
	}
	return sortedKeys(seen)
}

// ArtistIDs returns the distinct artist ids referenced by tracks.
func (c *Catalog) ArtistIDs() []string {
	seen := make(map[string]bool)
	for _, t := range c.Tracks {
		for _, a := range t.Artists {
			if a != "" {
				seen[a] = true
			}
		}
	}
	return sortedKeys(seen)
}

// UnionGenres returns every genre named by an album or an artist, once.
func UnionGenres(albums map[string]*Album, artists map[string]*Artist) []string {
	seen := make(map[string]bool)
	for _, a := range albums {
		for _, g := range a.Genres {
			seen[g] = true
		}
	}
	for _, a := range artists {
		for _, g := range a.Genres {
			seen[g] = true
		}
	}
	return sortedKeys(seen)
}

// Props flattens a track and its features into graph node properties.
func (t *Track) Props() map[string]any {
	p := map[string]any{
		"id":          t.ID,
		"name":        t.Name,
		"popularity":  int64(t.Popularity),
		"duration_ms": int64(t.DurationMs),
		"explicit":    t.Explicit,
		"album":       t.Album,
		"artists":     stringsOrEmpty(t.Artists),
	}
	if f := t.Features; f != nil {
		p["acousticness"] = f.Acousticness
		p["danceability"] = f.Danceability
		p["energy"] = f.Energy
		p["instrumentalness"] = f.Instrumentalness
		p["liveness"] = f.Liveness
		p["loudness"] = f.Loudness
		p["speechiness"] = f.Speechiness
		p["tempo"] = f.Tempo
		p["valence"] = f.Valence
		p["key"] = int64(f.Key)
		p["mode"] = int64(f.Mode)
		p["time_signature"] = int64(f.TimeSignature)
	}
	return p
}

func (a *Album) Props() map[string]any {
	return map[string]any{
		"id":           a.ID,
		"name":         a.Name,
		"popularity":   int64(a.Popularity),
		"release_date": a.ReleaseDate,
		"artists":      stringsOrEmpty(a.Artists),
		"genres":       stringsOrEmpty(a.Genres),
		"tracks":       int64(a.TrackCount),
		"images":       a.Image,
	}
}

func (a *Artist) Props() map[string]any {
	return map[string]any{
		"id":         a.ID,
		"name":       a.Name,
		"popularity": int64(a.Popularity),
		"followers":  int64(a.Followers),
		"genres":     stringsOrEmpty(a.Genres),
		"images":     a.Image,
	}
}

// stringsOrEmpty keeps empty lists from being written as null properties.
func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Chunk splits ids into consecutive pages of at most size elements.
func Chunk[T any](ids []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	var pages [][]T
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		pages = append(pages, ids[start:end])
	}
	return pages
}
