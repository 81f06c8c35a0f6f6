package graph

import (
	"context"
	"maps"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/ademuri/playlist-builder/internal/catalog"
)

// LoadOptions controls how the catalog is written.
type LoadOptions struct {
	CreateConstraints bool
}

// Load replaces the graph with cat: every node type in one UNWIND write, then
// the relationships matched back on the ids just written.
func Load(ctx context.Context, r Runner, cat *catalog.Catalog, opts LoadOptions) error {
	if _, err := run(ctx, r, "clearing graph", clearGraphQuery, nil); err != nil {
		return err
	}

	if opts.CreateConstraints {
		for _, q := range constraintQueries {
			if _, err := run(ctx, r, "creating constraint", q, nil); err != nil {
				return err
			}
		}
	}

	tracks := make([]any, 0, len(cat.Tracks))
	for _, id := range cat.TrackIDs() {
		tracks = append(tracks, cat.Tracks[id].Props())
	}
	albums := make([]any, 0, len(cat.Albums))
	for _, id := range sortedIDs(cat.Albums) {
		albums = append(albums, cat.Albums[id].Props())
	}
	artists := make([]any, 0, len(cat.Artists))
	for _, id := range sortedIDs(cat.Artists) {
		artists = append(artists, cat.Artists[id].Props())
	}
	genres := make([]any, len(cat.Genres))
	for i, g := range cat.Genres {
		genres[i] = g
	}

	writes := []struct {
		what   string
		query  string
		params map[string]any
	}{
		{"creating tracks", createTracksQuery, map[string]any{"rows": tracks}},
		{"creating albums", createAlbumsQuery, map[string]any{"rows": albums}},
		{"creating artists", createArtistsQuery, map[string]any{"rows": artists}},
		{"creating genres", mergeGenresQuery, map[string]any{"genres": genres}},
		{"linking albums", linkAlbumsQuery, nil},
		{"linking artists", linkArtistsQuery, nil},
		{"linking genres", linkGenresQuery, nil},
	}
	for _, w := range writes {
		if _, err := run(ctx, r, w.what, w.query, w.params); err != nil {
			return err
		}
	}

	log.Info().
		Int("tracks", len(tracks)).
		Int("albums", len(albums)).
		Int("artists", len(artists)).
		Int("genres", len(genres)).
		Msg("Loaded catalog into graph")
	return nil
}

func sortedIDs[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
