// Package tags derives genres for artists from their last.fm top tags.
package tags

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/ademuri/lastfm-go/lastfm"
	"github.com/ademuri/playlist-builder/internal/transient"
)

// minTagCount drops tags with too few votes to mean anything.
const minTagCount = 10

type Tag struct {
	Name  string
	Count int
}

// Source returns an artist's top tags, most popular first.
type Source interface {
	ArtistTags(artist string) ([]Tag, error)
}

// Fallback turns an artist's top tags into genre names.
type Fallback struct {
	source  Source
	limiter *rate.Limiter
	limit   int
}

func NewFallback(source Source, limiter *rate.Limiter, limit int) *Fallback {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Fallback{source: source, limiter: limiter, limit: limit}
}

// ArtistGenres returns up to limit lower-cased tags with enough votes.
func (f *Fallback) ArtistGenres(ctx context.Context, artist string) ([]string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	tags, err := f.source.ArtistTags(artist)
	if err != nil {
		return nil, fmt.Errorf("artist tags for %q: %w", artist, err)
	}
	return selectGenres(tags, f.limit), nil
}

func selectGenres(tags []Tag, limit int) []string {
	seen := make(map[string]bool)
	var genres []string
	for _, t := range tags {
		if len(genres) >= limit {
			break
		}
		name := strings.Join(strings.Fields(strings.ToLower(t.Name)), " ")
		if name == "" || t.Count < minTagCount || seen[name] {
			continue
		}
		seen[name] = true
		genres = append(genres, name)
	}
	return genres
}

// LastFm reads top tags from the last.fm API.
type LastFm struct {
	client   *lastfm.Api
	attempts uint
}

func NewLastFm(apiKey, secret string, attempts uint) *LastFm {
	client := lastfm.New(apiKey, secret)
	client.SetUserAgent("playlist-builder/1.0")
	return &LastFm{client: client, attempts: attempts}
}

func (l *LastFm) ArtistTags(artist string) ([]Tag, error) {
	var topTags lastfm.ArtistGetTopTags
	err := transient.Do(l.attempts, "last.fm artist tags", func() error {
		var err error
		topTags, err = l.client.Artist.GetTopTags(lastfm.P{
			"artist":      artist,
			"autocorrect": 1,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	tags := make([]Tag, 0, len(topTags.Tags))
	for _, t := range topTags.Tags {
		c, _ := strconv.Atoi(t.Count)
		tags = append(tags, Tag{Name: t.Name, Count: c})
	}
	return tags, nil
}
