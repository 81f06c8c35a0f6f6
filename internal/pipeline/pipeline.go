// Package pipeline runs the playlist builder stages in order: fetch, load,
// cluster, partition, name and publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ademuri/playlist-builder/internal/catalog"
	"github.com/ademuri/playlist-builder/internal/config"
	"github.com/ademuri/playlist-builder/internal/graph"
	"github.com/ademuri/playlist-builder/internal/naming"
	"github.com/ademuri/playlist-builder/internal/store"
)

type Fetcher interface {
	Fetch(ctx context.Context, playlistID string) (*catalog.Catalog, error)
}

type Publisher interface {
	Publish(ctx context.Context, run string, playlists []graph.Playlist) ([]store.Published, error)
}

type Notifier interface {
	Notify(source string, published []store.Published) error
}

// Ledger records runs. *store.Store implements it.
type Ledger interface {
	StartRun(playlist string, skippedFetch bool, started time.Time) (string, error)
	FinishRun(id string, finished time.Time, out store.Outcome) error
}

// Deps are the collaborators a run uses. Fetcher may be nil when fetching is
// skipped; Publisher and Notifier may be nil when their stages are off.
type Deps struct {
	Graph       graph.Runner
	Fetcher     Fetcher
	Partitioner graph.Partitioner
	Publisher   Publisher
	Notifier    Notifier
	Ledger      Ledger
}

type Options struct {
	// Playlist is the source playlist id.
	Playlist  string
	SkipFetch bool
	Publish   bool
}

type Result struct {
	Run         string
	Tracks      int
	SuperGenres []graph.SuperGenre
	Playlists   []graph.Playlist
	Published   []store.Published
}

var ErrMissingStage = errors.New("pipeline stage not configured")

type Pipeline struct {
	cfg  config.Config
	deps Deps
	now  func() time.Time
}

func New(cfg config.Config, deps Deps) *Pipeline {
	return &Pipeline{cfg: cfg, deps: deps, now: time.Now}
}

// Run executes every stage once. The run is recorded in the ledger as failed
// if any stage returns an error.
func (p *Pipeline) Run(ctx context.Context, opts Options) (res Result, err error) {
	if !opts.SkipFetch && p.deps.Fetcher == nil {
		return res, fmt.Errorf("fetch: %w", ErrMissingStage)
	}
	if opts.Publish && p.deps.Publisher == nil {
		return res, fmt.Errorf("publish: %w", ErrMissingStage)
	}

	res.Run, err = p.deps.Ledger.StartRun(opts.Playlist, opts.SkipFetch, p.now())
	if err != nil {
		return res, err
	}
	logger := log.With().Str("run", res.Run).Logger()
	logger.Info().Str("playlist", opts.Playlist).Msg("Starting run")

	defer func() {
		out := store.Outcome{Tracks: res.Tracks, Playlists: len(res.Playlists), Err: err}
		if ferr := p.deps.Ledger.FinishRun(res.Run, p.now(), out); ferr != nil {
			err = errors.Join(err, ferr)
		}
		if err != nil {
			logger.Error().Err(err).Msg("Run failed")
		} else {
			logger.Info().Int("tracks", res.Tracks).Int("playlists", len(res.Playlists)).Msg("Run finished")
		}
	}()

	if opts.SkipFetch {
		logger.Info().Str("stage", "fetch").Msg("Skipping fetch, reusing loaded graph")
		if res.Tracks, err = graph.TrackCount(ctx, p.deps.Graph); err != nil {
			return res, err
		}
	} else {
		logger.Info().Str("stage", "fetch").Msg("Fetching playlist")
		cat, err := p.deps.Fetcher.Fetch(ctx, opts.Playlist)
		if err != nil {
			return res, fmt.Errorf("fetch: %w", err)
		}
		res.Tracks = len(cat.Tracks)

		logger.Info().Str("stage", "load").Msg("Loading graph")
		if err := graph.Load(ctx, p.deps.Graph, cat, graph.LoadOptions{CreateConstraints: p.cfg.CreateConstraints}); err != nil {
			return res, fmt.Errorf("load: %w", err)
		}
	}

	logger.Info().Str("stage", "cluster").Msg("Clustering genres")
	res.SuperGenres, err = graph.ClusterGenres(ctx, p.deps.Graph, graph.ClusterOptions{MinPlaylistSize: p.cfg.MinPlaylistSize})
	if err != nil {
		return res, fmt.Errorf("cluster: %w", err)
	}

	logger.Info().Str("stage", "partition").Msg("Partitioning playlists")
	if _, err = graph.PartitionPlaylists(ctx, p.deps.Graph, p.deps.Partitioner, graph.PartitionOptions{SplitLimit: p.cfg.PlaylistSplitLimit}); err != nil {
		return res, fmt.Errorf("partition: %w", err)
	}

	logger.Info().Str("stage", "name").Msg("Naming playlists")
	namer := naming.New(p.cfg.NamePrefix, p.cfg.PlaylistKeywordsCount, naming.DefaultStopwords)
	if _, err = graph.NamePlaylists(ctx, p.deps.Graph, namer); err != nil {
		return res, fmt.Errorf("name: %w", err)
	}

	if res.Playlists, err = graph.Playlists(ctx, p.deps.Graph); err != nil {
		return res, err
	}

	if !opts.Publish {
		logger.Info().Str("stage", "publish").Msg("Publishing disabled")
		return res, nil
	}

	logger.Info().Str("stage", "publish").Int("playlists", len(res.Playlists)).Msg("Publishing playlists")
	res.Published, err = p.deps.Publisher.Publish(ctx, res.Run, res.Playlists)
	if err != nil {
		return res, fmt.Errorf("publish: %w", err)
	}

	if p.deps.Notifier != nil {
		if nerr := p.deps.Notifier.Notify(opts.Playlist, res.Published); nerr != nil {
			logger.Warn().Err(nerr).Msg("Could not send summary email")
		}
	}
	return res, nil
}
