// Package config holds every tunable of the playlist builder in one structure.
package config

import (
	"errors"
	"fmt"
)

// Service-side batch caps.
const (
	MaxAudioFeaturesPage = 100
	MaxAlbumsPage        = 20
	MaxArtistsPage       = 50
	MaxPlaylistAddPage   = 100
)

var ErrInvalid = errors.New("invalid configuration")

type Spotify struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	UserID       string `mapstructure:"user_id"`
	// Playlist is the source playlist as an id, URI or open.spotify.com URL.
	Playlist    string `mapstructure:"playlist"`
	RedirectURI string `mapstructure:"redirect_uri"`
}

type Neo4j struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type PageSizes struct {
	AudioFeatures int `mapstructure:"audio_features"`
	Albums        int `mapstructure:"albums"`
	Artists       int `mapstructure:"artists"`
	PlaylistAdd   int `mapstructure:"playlist_add"`
}

type KMeans struct {
	// Restarts is the number of independent k-means runs; the lowest-inertia
	// partition wins.
	Restarts int `mapstructure:"restarts"`
	// Seed fixes the initial centers so reruns split playlists identically.
	Seed int64 `mapstructure:"seed"`
}

type LastFm struct {
	APIKey   string `mapstructure:"api_key"`
	Secret   string `mapstructure:"secret"`
	TagLimit int    `mapstructure:"tag_limit"`
}

type Notify struct {
	To             string `mapstructure:"to"`
	From           string `mapstructure:"from"`
	SendgridAPIKey string `mapstructure:"sendgrid_api_key"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Spotify Spotify `mapstructure:"spotify"`
	Neo4j   Neo4j   `mapstructure:"neo4j"`

	// DatabasePath is the SQLite run ledger, which also caches the publish token.
	DatabasePath string `mapstructure:"database"`

	CreateConstraints bool   `mapstructure:"create_constraints"`
	WriteToSpotify    bool   `mapstructure:"write_to_spotify"`
	PlotClusters      bool   `mapstructure:"plot_clusters"`
	PlotDir           string `mapstructure:"plot_dir"`

	MinPlaylistSize       int    `mapstructure:"min_playlist_size"`
	PlaylistSplitLimit    int    `mapstructure:"playlist_split_limit"`
	PlaylistKeywordsCount int    `mapstructure:"playlist_keywords_count"`
	PlaylistDescription   string `mapstructure:"playlist_description"`
	NamePrefix            string `mapstructure:"name_prefix"`

	PageSizes PageSizes `mapstructure:"page_sizes"`
	KMeans    KMeans    `mapstructure:"kmeans"`

	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	MaxAttempts       uint    `mapstructure:"max_attempts"`

	LastFm LastFm `mapstructure:"lastfm"`
	Notify Notify `mapstructure:"notify"`
	Log    Log    `mapstructure:"log"`
}

// Default returns the configuration the builder runs with when nothing is
// overridden.
func Default() Config {
	return Config{
		Spotify: Spotify{
			RedirectURI: "http://localhost:8888/callback",
		},
		Neo4j: Neo4j{
			URL:      "bolt://localhost:7687",
			Username: "neo4j",
			Password: "neo",
		},
		DatabasePath:          "./playlist-builder.db",
		CreateConstraints:     true,
		WriteToSpotify:        true,
		PlotClusters:          false,
		PlotDir:               "./plots",
		MinPlaylistSize:       40,
		PlaylistSplitLimit:    150,
		PlaylistKeywordsCount: 3,
		PlaylistDescription:   "Generated using neo4j-playlist-builder.",
		NamePrefix:            "[NPB]",
		PageSizes: PageSizes{
			AudioFeatures: MaxAudioFeaturesPage,
			Albums:        MaxAlbumsPage,
			Artists:       MaxArtistsPage,
			PlaylistAdd:   MaxPlaylistAddPage,
		},
		KMeans:            KMeans{Restarts: 10},
		RequestsPerSecond: 10,
		MaxAttempts:       3,
		LastFm:            LastFm{TagLimit: 3},
		Log:               Log{Level: "info", Format: "console"},
	}
}

// Validate checks the values the pipeline cannot run without. Credentials
// needed only for publishing are checked by ValidatePublish.
func (c Config) Validate() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify.client_id and spotify.client_secret are required", ErrInvalid)
	}
	if c.Spotify.Playlist == "" {
		return fmt.Errorf("%w: spotify.playlist is required", ErrInvalid)
	}
	if c.Neo4j.URL == "" {
		return fmt.Errorf("%w: neo4j.url is required", ErrInvalid)
	}
	if c.MinPlaylistSize < 1 {
		return fmt.Errorf("%w: min_playlist_size must be at least 1, got %d", ErrInvalid, c.MinPlaylistSize)
	}
	if c.PlaylistSplitLimit < 1 {
		return fmt.Errorf("%w: playlist_split_limit must be at least 1, got %d", ErrInvalid, c.PlaylistSplitLimit)
	}
	if c.PlaylistKeywordsCount < 0 {
		return fmt.Errorf("%w: playlist_keywords_count must not be negative, got %d", ErrInvalid, c.PlaylistKeywordsCount)
	}
	if c.KMeans.Restarts < 1 {
		return fmt.Errorf("%w: kmeans.restarts must be at least 1, got %d", ErrInvalid, c.KMeans.Restarts)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts must be at least 1", ErrInvalid)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: requests_per_second must be positive", ErrInvalid)
	}
	return c.PageSizes.validate()
}

// ValidatePublish checks the extra settings needed to write playlists back.
func (c Config) ValidatePublish() error {
	if c.Spotify.UserID == "" {
		return fmt.Errorf("%w: spotify.user_id is required to publish playlists", ErrInvalid)
	}
	if c.Spotify.RedirectURI == "" {
		return fmt.Errorf("%w: spotify.redirect_uri is required to publish playlists", ErrInvalid)
	}
	return nil
}

// NotifyEnabled reports whether a summary email should be sent after publishing.
func (c Config) NotifyEnabled() bool {
	return c.Notify.To != "" && c.Notify.From != "" && c.Notify.SendgridAPIKey != ""
}

func (p PageSizes) validate() error {
	checks := []struct {
		name  string
		value int
		max   int
	}{
		{"page_sizes.audio_features", p.AudioFeatures, MaxAudioFeaturesPage},
		{"page_sizes.albums", p.Albums, MaxAlbumsPage},
		{"page_sizes.artists", p.Artists, MaxArtistsPage},
		{"page_sizes.playlist_add", p.PlaylistAdd, MaxPlaylistAddPage},
	}
	for _, c := range checks {
		if c.value < 1 || c.value > c.max {
			return fmt.Errorf("%w: %s must be between 1 and %d, got %d", ErrInvalid, c.name, c.max, c.value)
		}
	}
	return nil
}
