package graph

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/ademuri/playlist-builder/internal/kmeans"
)

// Partitioner splits points into k clusters. kmeans.Engine implements it.
type Partitioner interface {
	Partition(name string, points []kmeans.Point, k int) (kmeans.Result, error)
}

// PartitionOptions tunes playlist partitioning.
type PartitionOptions struct {
	// SplitLimit is the super-genre size at which its tracks are split into
	// several playlists.
	SplitLimit int
}

// PlaylistStat describes a playlist created by PartitionPlaylists.
type PlaylistStat struct {
	ID         string
	SuperGenre int64
	Tracks     int
	Energy     float64
	Valence    float64
}

// PartitionPlaylists replaces all playlists. A super-genre with fewer than
// SplitLimit tracks becomes a single playlist carrying its id; a larger one is
// split by p into ClusterCount playlists with ids "<superGenre>-<label>".
func PartitionPlaylists(ctx context.Context, r Runner, p Partitioner, opts PartitionOptions) ([]PlaylistStat, error) {
	if opts.SplitLimit < 1 {
		return nil, fmt.Errorf("split limit must be positive, got %d", opts.SplitLimit)
	}
	if _, err := run(ctx, r, "deleting playlists", deletePlaylistsQuery, nil); err != nil {
		return nil, err
	}

	rows, err := run(ctx, r, "counting super-genre tracks", superGenreSizesQuery, nil)
	if err != nil {
		return nil, err
	}

	var stats []PlaylistStat
	for _, row := range rows {
		sg := row.GetInt("id")
		count := int(row.GetInt("tracks"))

		if count < opts.SplitLimit {
			id := strconv.FormatInt(sg, 10)
			if _, err := run(ctx, r, "creating playlist "+id, wholeSuperGenrePlaylistQuery, map[string]any{
				"superGenre": sg,
				"playlist":   id,
			}); err != nil {
				return nil, err
			}
			stats = append(stats, PlaylistStat{
				ID:         id,
				SuperGenre: sg,
				Tracks:     count,
				Energy:     feature(row, "energy"),
				Valence:    feature(row, "valence"),
			})
			continue
		}

		split, err := splitSuperGenre(ctx, r, p, sg, kmeans.ClusterCount(count, opts.SplitLimit))
		if err != nil {
			return nil, err
		}
		stats = append(stats, split...)
	}

	log.Info().Int("playlists", len(stats)).Msg("Partitioned tracks into playlists")
	return stats, nil
}

func splitSuperGenre(ctx context.Context, r Runner, p Partitioner, sg int64, k int) ([]PlaylistStat, error) {
	name := strconv.FormatInt(sg, 10)
	rows, err := run(ctx, r, "reading tracks of super-genre "+name, superGenreTracksQuery, map[string]any{"superGenre": sg})
	if err != nil {
		return nil, err
	}

	points := make([]kmeans.Point, len(rows))
	for i, row := range rows {
		points[i] = kmeans.Point{
			ID:      row.GetString("id"),
			Energy:  feature(row, "energy"),
			Valence: feature(row, "valence"),
		}
	}

	res, err := p.Partition(name, points, k)
	if err != nil {
		return nil, fmt.Errorf("partitioning super-genre %s: %w", name, err)
	}
	if len(res.Labels) != len(points) {
		return nil, fmt.Errorf("partitioning super-genre %s: got %d labels for %d tracks", name, len(res.Labels), len(points))
	}

	sizes := res.Sizes()
	var stats []PlaylistStat
	var playlists []any
	for label, size := range sizes {
		if size == 0 {
			continue
		}
		stat := PlaylistStat{
			ID:         fmt.Sprintf("%s-%d", name, label),
			SuperGenre: sg,
			Tracks:     size,
			Energy:     res.Centroids[label][0],
			Valence:    res.Centroids[label][1],
		}
		stats = append(stats, stat)
		playlists = append(playlists, map[string]any{
			"id":      stat.ID,
			"energy":  stat.Energy,
			"valence": stat.Valence,
		})
	}

	assignments := make([]any, len(points))
	for i, pt := range points {
		assignments[i] = map[string]any{
			"track":    pt.ID,
			"playlist": fmt.Sprintf("%s-%d", name, res.Labels[i]),
		}
	}

	if _, err := run(ctx, r, "creating playlists for super-genre "+name, createPlaylistsQuery, map[string]any{
		"superGenre": sg,
		"playlists":  playlists,
	}); err != nil {
		return nil, err
	}
	if _, err := run(ctx, r, "assigning tracks of super-genre "+name, assignTracksQuery, map[string]any{
		"assignments": assignments,
	}); err != nil {
		return nil, err
	}

	log.Debug().Str("super_genre", name).Int("tracks", len(points)).Int("playlists", len(stats)).Msg("Split super-genre")
	return stats, nil
}
