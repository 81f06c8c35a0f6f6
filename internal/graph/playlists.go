package graph

import "context"

// Playlist is a named group of tracks ready to publish.
type Playlist struct {
	ID         string
	Name       string
	SuperGenre int64
	Energy     float64
	Valence    float64
	Tracks     []string
}

// Playlists reads every non-empty playlist ordered by id, with its track ids
// in id order.
func Playlists(ctx context.Context, r Runner) ([]Playlist, error) {
	rows, err := run(ctx, r, "reading playlists", readPlaylistsQuery, nil)
	if err != nil {
		return nil, err
	}
	playlists := make([]Playlist, len(rows))
	for i, row := range rows {
		playlists[i] = Playlist{
			ID:         row.GetString("id"),
			Name:       row.GetString("name"),
			SuperGenre: row.GetInt("superGenre"),
			Energy:     feature(row, "energy"),
			Valence:    feature(row, "valence"),
			Tracks:     row.GetStrings("tracks"),
		}
	}
	return playlists, nil
}

// TrackCount returns the number of tracks currently loaded.
func TrackCount(ctx context.Context, r Runner) (int, error) {
	rows, err := run(ctx, r, "counting tracks", countTracksQuery, nil)
	if err != nil {
		return 0, err
	}
	return int(single(rows).GetInt("count")), nil
}
