package graph

import (
	"context"

	"github.com/rs/zerolog/log"
)

// NeutralFeature stands in for a missing energy or valence value.
const NeutralFeature = 0.5

// SuperGenre summarizes one genre community after clustering.
type SuperGenre struct {
	ID      int64
	Genres  int
	Tracks  int
	Energy  float64
	Valence float64
}

// ClusterOptions tunes genre clustering.
type ClusterOptions struct {
	// MinPlaylistSize is the smallest number of distinct tracks a community
	// must reach to keep its own super-genre.
	MinPlaylistSize int
}

// ClusterGenres groups genres into super-genres: node similarity over the
// artist-genre graph, Louvain over the resulting genre similarity graph, then
// undersized communities merged into MiscSuperGenre. Every track ends up with
// exactly one HAS_SUPER_GENRE relationship.
func ClusterGenres(ctx context.Context, r Runner, opts ClusterOptions) ([]SuperGenre, error) {
	if err := resetClusters(ctx, r); err != nil {
		return nil, err
	}

	rows, err := run(ctx, r, "counting genre links", countGenreLinksQuery, nil)
	if err != nil {
		return nil, err
	}
	similar := int64(0)
	if single(rows).GetInt("count") > 0 {
		if _, err := run(ctx, r, "projecting artist genres", projectBipartiteQuery, map[string]any{"name": bipartiteGraph}); err != nil {
			return nil, err
		}
		rows, err := run(ctx, r, "running node similarity", nodeSimilarityQuery, map[string]any{"name": bipartiteGraph})
		if err != nil {
			return nil, err
		}
		similar = single(rows).GetInt("relationshipsWritten")
		log.Debug().Int64("relationships", similar).Msg("Wrote genre similarity")
	}

	if similar > 0 {
		if _, err := run(ctx, r, "projecting genre similarity", projectGenresQuery, map[string]any{"name": genreGraph}); err != nil {
			return nil, err
		}
		rows, err := run(ctx, r, "running louvain", louvainQuery, map[string]any{"name": genreGraph})
		if err != nil {
			return nil, err
		}
		log.Debug().Int64("communities", single(rows).GetInt("communityCount")).Msg("Detected genre communities")
	} else {
		log.Warn().Msg("No genre similarity found, every genre is its own community")
		if _, err := run(ctx, r, "assigning singleton communities", singletonCommunitiesQuery, nil); err != nil {
			return nil, err
		}
	}

	if err := dropProjections(ctx, r); err != nil {
		return nil, err
	}

	rows, err = run(ctx, r, "merging small communities", mergeSmallCommunitiesQuery, map[string]any{
		"minPlaylistSize": int64(opts.MinPlaylistSize),
		"misc":            int64(MiscSuperGenre),
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Int64("genres", single(rows).GetInt("merged")).Msg("Merged small communities into misc")

	steps := []struct {
		what  string
		query string
	}{
		{"creating super-genres", createSuperGenresQuery},
		{"linking genres to super-genres", linkPartOfQuery},
		{"linking tracks to super-genres", linkPrimarySuperGenreQuery},
		{"linking tracks without genres", linkOrphanTracksQuery},
		{"averaging super-genre mood", superGenreMoodQuery},
	}
	for _, s := range steps {
		if _, err := run(ctx, r, s.what, s.query, map[string]any{"misc": int64(MiscSuperGenre)}); err != nil {
			return nil, err
		}
	}

	rows, err = run(ctx, r, "summarizing super-genres", superGenreSummaryQuery, nil)
	if err != nil {
		return nil, err
	}
	supers := make([]SuperGenre, len(rows))
	for i, row := range rows {
		supers[i] = SuperGenre{
			ID:      row.GetInt("id"),
			Genres:  int(row.GetInt("genres")),
			Tracks:  int(row.GetInt("tracks")),
			Energy:  feature(row, "energy"),
			Valence: feature(row, "valence"),
		}
	}
	log.Info().Int("super_genres", len(supers)).Msg("Clustered genres")
	return supers, nil
}

// resetClusters removes everything a previous clustering run wrote so the
// stage can be repeated against an already loaded graph.
func resetClusters(ctx context.Context, r Runner) error {
	if err := dropProjections(ctx, r); err != nil {
		return err
	}
	if _, err := run(ctx, r, "deleting super-genres", deleteSuperGenresQuery, nil); err != nil {
		return err
	}
	_, err := run(ctx, r, "deleting genre similarity", deleteSimilarityQuery, nil)
	return err
}

func dropProjections(ctx context.Context, r Runner) error {
	for _, name := range []string{bipartiteGraph, genreGraph} {
		if _, err := run(ctx, r, "dropping projection "+name, dropProjectionQuery, map[string]any{"name": name}); err != nil {
			return err
		}
	}
	return nil
}

// feature reads an audio feature column, substituting NeutralFeature for null.
func feature(row Record, key string) float64 {
	if v, ok := row.GetFloat(key); ok {
		return v
	}
	return NeutralFeature
}
