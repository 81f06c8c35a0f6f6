package graph

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/ademuri/playlist-builder/internal/naming"
)

// NamePlaylists names every playlist from the genres its tracks' artists
// carry and its mood. Names are made unique in playlist id order.
func NamePlaylists(ctx context.Context, r Runner, namer *naming.Namer) (map[string]string, error) {
	rows, err := run(ctx, r, "reading playlist genres", playlistGenresQuery, nil)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(rows))
	names := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.GetString("id")
		names[i] = namer.Name(row.GetStrings("genres"), feature(row, "energy"), feature(row, "valence"))
	}
	names = naming.Dedupe(names)

	byID := make(map[string]string, len(ids))
	params := make([]any, len(ids))
	for i, id := range ids {
		byID[id] = names[i]
		params[i] = map[string]any{"id": id, "name": names[i]}
	}
	if _, err := run(ctx, r, "writing playlist names", setPlaylistNamesQuery, map[string]any{"names": params}); err != nil {
		return nil, err
	}

	log.Info().Int("playlists", len(ids)).Msg("Named playlists")
	return byID, nil
}
