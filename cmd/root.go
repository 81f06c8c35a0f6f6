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
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/ademuri/playlist-builder/internal/config"
	"github.com/ademuri/playlist-builder/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "playlist-builder",
	Short: "Builds mood playlists from a Spotify playlist",
	Long: `Loads a Spotify playlist into Neo4j, clusters its genres with Graph Data
Science, splits the tracks into playlists by genre and mood, names them and
publishes them back to Spotify.

Without a subcommand this runs the whole pipeline, like "run".`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: runPreRunE,
	Run:     runRun,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default is $HOME/.playlist-builder.yaml)")

	var clientID, clientSecret, userID string
	rootCmd.PersistentFlags().StringVar(&clientID, "client_id", "", "Spotify client id")
	viper.BindPFlag("spotify.client_id", rootCmd.PersistentFlags().Lookup("client_id"))

	rootCmd.PersistentFlags().StringVar(&clientSecret, "client_secret", "", "Spotify client secret")
	viper.BindPFlag("spotify.client_secret", rootCmd.PersistentFlags().Lookup("client_secret"))

	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "Spotify user the playlists are created for")
	viper.BindPFlag("spotify.user_id", rootCmd.PersistentFlags().Lookup("user"))

	var neo4jURL string
	rootCmd.PersistentFlags().StringVar(&neo4jURL, "neo4j", "", "Neo4j bolt URL")
	viper.BindPFlag("neo4j.url", rootCmd.PersistentFlags().Lookup("neo4j"))

	var databasePath string
	rootCmd.PersistentFlags().StringVarP(
		&databasePath, "database", "d", "", "Path to the SQLite run ledger")
	viper.BindPFlag("database", rootCmd.PersistentFlags().Lookup("database"))

	var logLevel string
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	addRunFlags(rootCmd.Flags())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A missing .env is fine.
	godotenv.Load()

	setDefaults(config.Default())

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".playlist-builder" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".playlist-builder")
	}

	viper.SetEnvPrefix("NPB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	if err := logging.Init(viper.GetString("log.level"), viper.GetString("log.format"), os.Stderr); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// setDefaults registers every config key so environment variables are seen
// by Unmarshal even when no config file mentions them.
func setDefaults(d config.Config) {
	defaults := map[string]any{
		"spotify.client_id":         d.Spotify.ClientID,
		"spotify.client_secret":     d.Spotify.ClientSecret,
		"spotify.user_id":           d.Spotify.UserID,
		"spotify.playlist":          d.Spotify.Playlist,
		"spotify.redirect_uri":      d.Spotify.RedirectURI,
		"neo4j.url":                 d.Neo4j.URL,
		"neo4j.username":            d.Neo4j.Username,
		"neo4j.password":            d.Neo4j.Password,
		"neo4j.database":            d.Neo4j.Database,
		"database":                  d.DatabasePath,
		"create_constraints":        d.CreateConstraints,
		"write_to_spotify":          d.WriteToSpotify,
		"plot_clusters":             d.PlotClusters,
		"plot_dir":                  d.PlotDir,
		"min_playlist_size":         d.MinPlaylistSize,
		"playlist_split_limit":      d.PlaylistSplitLimit,
		"playlist_keywords_count":   d.PlaylistKeywordsCount,
		"playlist_description":      d.PlaylistDescription,
		"name_prefix":               d.NamePrefix,
		"page_sizes.audio_features": d.PageSizes.AudioFeatures,
		"page_sizes.albums":         d.PageSizes.Albums,
		"page_sizes.artists":        d.PageSizes.Artists,
		"page_sizes.playlist_add":   d.PageSizes.PlaylistAdd,
		"kmeans.restarts":           d.KMeans.Restarts,
		"kmeans.seed":               d.KMeans.Seed,
		"requests_per_second":       d.RequestsPerSecond,
		"max_attempts":              d.MaxAttempts,
		"lastfm.api_key":            d.LastFm.APIKey,
		"lastfm.secret":             d.LastFm.Secret,
		"lastfm.tag_limit":          d.LastFm.TagLimit,
		"notify.to":                 d.Notify.To,
		"notify.from":               d.Notify.From,
		"notify.sendgrid_api_key":   d.Notify.SendgridAPIKey,
		"log.level":                 d.Log.Level,
		"log.format":                d.Log.Format,
	}
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

// loadConfig decodes the merged flags, file, environment and defaults.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}
