// Package publish creates the built playlists on Spotify.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"

	"github.com/ademuri/playlist-builder/internal/catalog"
	"github.com/ademuri/playlist-builder/internal/graph"
	"github.com/ademuri/playlist-builder/internal/store"
	"github.com/ademuri/playlist-builder/internal/transient"
)

// Ledger remembers what was published. *store.Store implements it.
type Ledger interface {
	PublishedBefore(names []string) (map[string]time.Time, error)
	RecordPublished(p store.Published) error
}

type Options struct {
	UserID      string
	Description string
	// PageSize is the number of tracks added per request.
	PageSize    int
	MaxAttempts uint
	Limiter     *rate.Limiter
}

type Publisher struct {
	client *spotify.Client
	ledger Ledger
	opts   Options
	now    func() time.Time
}

func New(client *spotify.Client, ledger Ledger, opts Options) *Publisher {
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Publisher{client: client, ledger: ledger, opts: opts, now: time.Now}
}

// Description is the text attached to a published playlist.
func Description(prefix string, energy, valence float64) string {
	return fmt.Sprintf("%s Energy: %.2f Mood: %.2f", prefix, energy, valence)
}

// Publish creates one private playlist per entry and fills it, recording each
// under run. Playlists are created every time; names published by earlier runs
// are only warned about.
func (p *Publisher) Publish(ctx context.Context, run string, playlists []graph.Playlist) ([]store.Published, error) {
	if p.opts.PageSize < 1 {
		return nil, fmt.Errorf("page size must be positive, got %d", p.opts.PageSize)
	}

	names := make([]string, len(playlists))
	for i, pl := range playlists {
		names[i] = pl.Name
	}
	before, err := p.ledger.PublishedBefore(names)
	if err != nil {
		return nil, err
	}

	var published []store.Published
	for _, pl := range playlists {
		if when, ok := before[pl.Name]; ok {
			log.Warn().Str("name", pl.Name).Time("first_published", when).Msg("Playlist name was published before, creating it again")
		}

		rec, err := p.publishOne(ctx, run, pl)
		if rec.RemoteID != "" {
			published = append(published, rec)
		}
		if err != nil {
			return published, err
		}
	}

	log.Info().Int("playlists", len(published)).Msg("Published playlists")
	return published, nil
}

func (p *Publisher) publishOne(ctx context.Context, run string, pl graph.Playlist) (store.Published, error) {
	var created *spotify.FullPlaylist
	err := p.call(ctx, "create playlist", func() error {
		var err error
		created, err = p.client.CreatePlaylistForUser(ctx, p.opts.UserID, pl.Name,
			Description(p.opts.Description, pl.Energy, pl.Valence), false, false)
		return err
	})
	if err != nil {
		return store.Published{}, fmt.Errorf("creating playlist %q: %w", pl.Name, err)
	}

	rec := store.Published{
		RemoteID: created.ID.String(),
		Run:      run,
		Playlist: pl.ID,
		Name:     pl.Name,
		Energy:   pl.Energy,
		Valence:  pl.Valence,
	}
	var addErr error
	for _, chunk := range catalog.Chunk(pl.Tracks, p.opts.PageSize) {
		ids := make([]spotify.ID, len(chunk))
		for i, id := range chunk {
			ids[i] = spotify.ID(id)
		}
		addErr = p.call(ctx, "add tracks", func() error {
			_, err := p.client.AddTracksToPlaylist(ctx, created.ID, ids...)
			return err
		})
		if addErr != nil {
			addErr = fmt.Errorf("adding tracks to %q: %w", pl.Name, addErr)
			break
		}
		rec.Tracks += len(chunk)
	}

	// The remote playlist exists even when filling it failed, so it is
	// recorded with the tracks it actually holds.
	rec.Published = p.now()
	if err := p.ledger.RecordPublished(rec); err != nil {
		return rec, errors.Join(addErr, err)
	}
	if addErr != nil {
		log.Error().Err(addErr).Str("name", pl.Name).Str("remote_id", rec.RemoteID).Int("tracks", rec.Tracks).Msg("Playlist left partially filled")
		return rec, addErr
	}
	log.Debug().Str("name", pl.Name).Str("remote_id", rec.RemoteID).Int("tracks", rec.Tracks).Msg("Published playlist")
	return rec, nil
}

// call paces and retries a request. Creating playlists and adding tracks are
// not idempotent, so only rate-limited requests are repeated.
func (p *Publisher) call(ctx context.Context, what string, fn func() error) error {
	if err := p.opts.Limiter.Wait(ctx); err != nil {
		return err
	}
	return transient.DoIf(p.opts.MaxAttempts, what, transient.RateLimited, fn)
}
