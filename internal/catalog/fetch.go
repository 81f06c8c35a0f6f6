package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"

	"github.com/ademuri/playlist-builder/internal/config"
	"github.com/ademuri/playlist-builder/internal/transient"
)

// playlistPageLimit is the largest page the playlist items endpoint serves.
const playlistPageLimit = 100

// GenreSource supplies genres for artists Spotify reports none for.
type GenreSource interface {
	ArtistGenres(ctx context.Context, artist string) ([]string, error)
}

type Options struct {
	PageSizes   config.PageSizes
	MaxAttempts uint
	// Limiter paces API calls. Nil means unpaced.
	Limiter *rate.Limiter
	// Fallback is optional.
	Fallback GenreSource
}

// Fetcher reads a playlist and its metadata with a read-only Spotify client.
type Fetcher struct {
	client *spotify.Client
	opts   Options
}

func NewFetcher(client *spotify.Client, opts Options) *Fetcher {
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Fetcher{client: client, opts: opts}
}

// Fetch runs the whole fetch stage for playlistID.
func (f *Fetcher) Fetch(ctx context.Context, playlistID string) (*Catalog, error) {
	cat := newCatalog()

	if err := f.fetchTracks(ctx, playlistID, cat); err != nil {
		return nil, fmt.Errorf("fetching tracks: %w", err)
	}
	log.Info().Int("tracks", len(cat.Tracks)).Msg("fetched playlist tracks")

	if err := f.fetchAudioFeatures(ctx, cat); err != nil {
		return nil, fmt.Errorf("fetching audio features: %w", err)
	}

	if err := f.fetchAlbums(ctx, cat); err != nil {
		return nil, fmt.Errorf("fetching albums: %w", err)
	}
	log.Info().Int("albums", len(cat.Albums)).Msg("fetched albums")

	if err := f.fetchArtists(ctx, cat); err != nil {
		return nil, fmt.Errorf("fetching artists: %w", err)
	}
	log.Info().Int("artists", len(cat.Artists)).Msg("fetched artists")

	if f.opts.Fallback != nil {
		f.fillMissingGenres(ctx, cat)
	}

	cat.Genres = UnionGenres(cat.Albums, cat.Artists)
	log.Info().Int("genres", len(cat.Genres)).Msg("derived genres")
	return cat, nil
}

func (f *Fetcher) call(ctx context.Context, what string, fn func() error) error {
	if err := f.opts.Limiter.Wait(ctx); err != nil {
		return err
	}
	return transient.Do(f.opts.MaxAttempts, what, fn)
}

func (f *Fetcher) fetchTracks(ctx context.Context, playlistID string, cat *Catalog) error {
	var page *spotify.PlaylistItemPage
	err := f.call(ctx, "playlist items", func() error {
		var err error
		page, err = f.client.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(playlistPageLimit))
		return err
	})
	if err != nil {
		return err
	}

	for n := 1; ; n++ {
		for _, item := range page.Items {
			ft := item.Track.Track
			if ft == nil || ft.ID == "" {
				continue
			}
			t := trackFromSpotify(ft)
			cat.Tracks[t.ID] = t
		}
		log.Debug().Int("page", n).Int("total", int(page.Total)).Msg("read playlist page")

		err := f.call(ctx, "playlist items", func() error {
			return f.client.NextPage(ctx, page)
		})
		if errors.Is(err, spotify.ErrNoMorePages) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("page %d: %w", n+1, err)
		}
	}
}

func (f *Fetcher) fetchAudioFeatures(ctx context.Context, cat *Catalog) error {
	pages := Chunk(toSpotifyIDs(cat.TrackIDs()), f.opts.PageSizes.AudioFeatures)
	for i, ids := range pages {
		var features []*spotify.AudioFeatures
		err := f.call(ctx, "audio features", func() error {
			var err error
			features, err = f.client.GetAudioFeatures(ctx, ids...)
			return err
		})
		if err != nil {
			return fmt.Errorf("page %d of %d: %w", i+1, len(pages), err)
		}
		for _, af := range features {
			if af == nil {
				continue
			}
			if t, ok := cat.Tracks[af.ID.String()]; ok {
				t.Features = featuresFromSpotify(af)
			}
		}
		log.Debug().Int("page", i+1).Int("pages", len(pages)).Msg("read audio features")
	}
	return nil
}

func (f *Fetcher) fetchAlbums(ctx context.Context, cat *Catalog) error {
	pages := Chunk(toSpotifyIDs(cat.AlbumIDs()), f.opts.PageSizes.Albums)
	for i, ids := range pages {
		var albums []*spotify.FullAlbum
		err := f.call(ctx, "albums", func() error {
			var err error
			albums, err = f.client.GetAlbums(ctx, ids)
			return err
		})
		if err != nil {
			return fmt.Errorf("page %d of %d: %w", i+1, len(pages), err)
		}
		for _, a := range albums {
			if a == nil {
				continue
			}
			album := albumFromSpotify(a)
			cat.Albums[album.ID] = album
		}
	}
	return nil
}

func (f *Fetcher) fetchArtists(ctx context.Context, cat *Catalog) error {
	pages := Chunk(toSpotifyIDs(cat.ArtistIDs()), f.opts.PageSizes.Artists)
	for i, ids := range pages {
		var artists []*spotify.FullArtist
		err := f.call(ctx, "artists", func() error {
			var err error
			artists, err = f.client.GetArtists(ctx, ids...)
			return err
		})
		if err != nil {
			return fmt.Errorf("page %d of %d: %w", i+1, len(pages), err)
		}
		for _, a := range artists {
			if a == nil {
				continue
			}
			artist := artistFromSpotify(a)
			cat.Artists[artist.ID] = artist
		}
	}
	return nil
}

func (f *Fetcher) fillMissingGenres(ctx context.Context, cat *Catalog) {
	filled := 0
	for _, id := range sortedKeys(cat.Artists) {
		a := cat.Artists[id]
		if len(a.Genres) > 0 || a.Name == "" {
			continue
		}
		genres, err := f.opts.Fallback.ArtistGenres(ctx, a.Name)
		if err != nil {
			log.Warn().Err(err).Str("artist", a.Name).Msg("genre fallback failed")
			continue
		}
		if len(genres) > 0 {
			a.Genres = genres
			filled++
		}
	}
	log.Info().Int("artists", filled).Msg("filled missing artist genres")
}

func trackFromSpotify(ft *spotify.FullTrack) *Track {
	t := &Track{
		ID:         ft.ID.String(),
		Name:       ft.Name,
		Popularity: int(ft.Popularity),
		DurationMs: int(ft.Duration),
		Explicit:   ft.Explicit,
		Album:      ft.Album.ID.String(),
	}
	for _, a := range ft.Artists {
		if a.ID != "" {
			t.Artists = append(t.Artists, a.ID.String())
		}
	}
	return t
}

func featuresFromSpotify(af *spotify.AudioFeatures) *AudioFeatures {
	return &AudioFeatures{
		Acousticness:     float64(af.Acousticness),
		Danceability:     float64(af.Danceability),
		Energy:           float64(af.Energy),
		Instrumentalness: float64(af.Instrumentalness),
		Liveness:         float64(af.Liveness),
		Loudness:         float64(af.Loudness),
		Speechiness:      float64(af.Speechiness),
		Tempo:            float64(af.Tempo),
		Valence:          float64(af.Valence),
		Key:              int(af.Key),
		Mode:             int(af.Mode),
		TimeSignature:    int(af.TimeSignature),
	}
}

func albumFromSpotify(fa *spotify.FullAlbum) *Album {
	a := &Album{
		ID:          fa.ID.String(),
		Name:        fa.Name,
		Popularity:  int(fa.Popularity),
		ReleaseDate: fa.ReleaseDate,
		Genres:      fa.Genres,
		TrackCount:  int(fa.Tracks.Total),
		Image:       imageURL(fa.Images),
	}
	for _, artist := range fa.Artists {
		if artist.ID != "" {
			a.Artists = append(a.Artists, artist.ID.String())
		}
	}
	return a
}

func artistFromSpotify(fa *spotify.FullArtist) *Artist {
	return &Artist{
		ID:         fa.ID.String(),
		Name:       fa.Name,
		Popularity: int(fa.Popularity),
		Followers:  int(fa.Followers.Count),
		Genres:     fa.Genres,
		Image:      imageURL(fa.Images),
	}
}

// imageURL prefers the medium-sized image, the second of the three Spotify
// returns.
func imageURL(images []spotify.Image) string {
	switch {
	case len(images) > 1:
		return images[1].URL
	case len(images) == 1:
		return images[0].URL
	}
	return ""
}

func toSpotifyIDs(ids []string) []spotify.ID {
	out := make([]spotify.ID, len(ids))
	for i, id := range ids {
		out[i] = spotify.ID(id)
	}
	return out
}
