/*
Copyright 2020 Google LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/ademuri/playlist-builder/internal/auth"
	"github.com/ademuri/playlist-builder/internal/catalog"
	"github.com/ademuri/playlist-builder/internal/config"
	"github.com/ademuri/playlist-builder/internal/graph"
	"github.com/ademuri/playlist-builder/internal/kmeans"
	"github.com/ademuri/playlist-builder/internal/notify"
	"github.com/ademuri/playlist-builder/internal/pipeline"
	"github.com/ademuri/playlist-builder/internal/publish"
	"github.com/ademuri/playlist-builder/internal/store"
	"github.com/ademuri/playlist-builder/internal/tags"
)

type RunConfig struct {
	Config    config.Config
	SkipFetch bool
	Publish   bool
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [playlist]",
	Short: "Builds playlists from a source playlist",
	Long: `Fetches the source playlist (an id, spotify: URI or open.spotify.com URL,
defaulting to spotify.playlist), rebuilds the graph and the playlists, and
publishes them unless write_to_spotify is off or --no-publish is given.`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: runPreRunE,
	Run:     runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd.Flags())
}

func addRunFlags(flags *pflag.FlagSet) {
	flags.Bool("skip-fetch", false, "Reuse the graph already loaded instead of fetching the playlist again")
	flags.Bool("no-publish", false, "Build the playlists without creating them on Spotify")
	flags.Bool("plot", false, "Write a PNG of each k-means split to plot_dir")
}

// newRunConfig resolves the configuration for one run from viper and the
// command's flags. A positional argument overrides spotify.playlist.
func newRunConfig(cmd *cobra.Command, args []string) (RunConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return RunConfig{}, err
	}
	if len(args) == 1 {
		cfg.Spotify.Playlist = args[0]
	}
	if plot, _ := cmd.Flags().GetBool("plot"); plot {
		cfg.PlotClusters = true
	}

	skipFetch, _ := cmd.Flags().GetBool("skip-fetch")
	noPublish, _ := cmd.Flags().GetBool("no-publish")
	rc := RunConfig{
		Config:    cfg,
		SkipFetch: skipFetch,
		Publish:   cfg.WriteToSpotify && !noPublish,
	}

	if err := cfg.Validate(); err != nil {
		return rc, err
	}
	if rc.Publish {
		if err := cfg.ValidatePublish(); err != nil {
			return rc, err
		}
	}
	if _, err := catalog.ParsePlaylistID(cfg.Spotify.Playlist); err != nil {
		return rc, err
	}
	return rc, nil
}

func runPreRunE(cmd *cobra.Command, args []string) error {
	_, err := newRunConfig(cmd, args)
	return err
}

func runRun(cmd *cobra.Command, args []string) {
	rc, err := newRunConfig(cmd, args)
	if err == nil {
		err = buildPlaylists(cmd.Context(), rc, os.Stdout)
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func buildPlaylists(ctx context.Context, rc RunConfig, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	cfg := rc.Config
	playlistID, err := catalog.ParsePlaylistID(cfg.Spotify.Playlist)
	if err != nil {
		return err
	}

	ledger, err := store.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer ledger.Close()

	engine := &kmeans.Engine{Restarts: cfg.KMeans.Restarts, Seed: cfg.KMeans.Seed}
	if cfg.PlotClusters {
		engine.Plotter = kmeans.PNGPlotter{Dir: cfg.PlotDir}
	}
	deps := pipeline.Deps{Partitioner: engine, Ledger: ledger}
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)

	// Authorize first so a browser prompt does not wait behind a long fetch.
	if rc.Publish {
		authenticator, err := auth.New(cfg.Spotify, ledger)
		if err != nil {
			return err
		}
		client, err := authenticator.UserClient(ctx)
		if err != nil {
			return fmt.Errorf("authorizing publish: %w", err)
		}
		deps.Publisher = publish.New(client, ledger, publish.Options{
			UserID:      cfg.Spotify.UserID,
			Description: cfg.PlaylistDescription,
			PageSize:    cfg.PageSizes.PlaylistAdd,
			MaxAttempts: cfg.MaxAttempts,
			Limiter:     limiter,
		})
		if cfg.NotifyEnabled() {
			deps.Notifier = notify.Mailer{Config: cfg.Notify}
		}
	}

	if !rc.SkipFetch {
		client, err := auth.ReadClient(ctx, cfg.Spotify)
		if err != nil {
			return err
		}
		opts := catalog.Options{
			PageSizes:   cfg.PageSizes,
			MaxAttempts: cfg.MaxAttempts,
			Limiter:     limiter,
		}
		if cfg.LastFm.APIKey != "" {
			opts.Fallback = tags.NewFallback(
				tags.NewLastFm(cfg.LastFm.APIKey, cfg.LastFm.Secret, cfg.MaxAttempts),
				rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
				cfg.LastFm.TagLimit)
		}
		deps.Fetcher = catalog.NewFetcher(client, opts)
	}

	session, err := graph.Open(ctx, cfg.Neo4j)
	if err != nil {
		return err
	}
	defer session.Close(context.Background())
	deps.Graph = session

	res, err := pipeline.New(cfg, deps).Run(ctx, pipeline.Options{
		Playlist:  playlistID,
		SkipFetch: rc.SkipFetch,
		Publish:   rc.Publish,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted: %w", err)
		}
		return err
	}

	return printPlaylists(out, res.Playlists)
}

func printPlaylists(out io.Writer, playlists []graph.Playlist) error {
	table := tablewriter.NewWriter(out)
	table.Header([]string{"ID", "Name", "Tracks", "Energy", "Mood"})
	for _, p := range playlists {
		if err := table.Append([]string{
			p.ID,
			p.Name,
			strconv.Itoa(len(p.Tracks)),
			strconv.FormatFloat(p.Energy, 'f', 2, 64),
			strconv.FormatFloat(p.Valence, 'f', 2, 64),
		}); err != nil {
			return fmt.Errorf("rendering table: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}
	return nil
}
