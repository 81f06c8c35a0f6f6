package store

import (
	"fmt"
	"strings"
	"time"
)

// Published is a playlist created on Spotify.
type Published struct {
	RemoteID  string
	Run       string
	Playlist  string
	Name      string
	Tracks    int
	Energy    float64
	Valence   float64
	Published time.Time
}

func (s *Store) RecordPublished(p Published) error {
	_, err := s.db.Exec(`
INSERT INTO PublishedPlaylist (remote_id, run, playlist, name, tracks, energy, valence, published)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.RemoteID, p.Run, p.Playlist, p.Name, p.Tracks, p.Energy, p.Valence, p.Published.UTC())
	if err != nil {
		return fmt.Errorf("recording published playlist %q: %w", p.Name, err)
	}
	return nil
}

// PublishedBefore returns, for each of names that was published by an earlier
// run, the first time it was published.
func (s *Store) PublishedBefore(names []string) (map[string]time.Time, error) {
	found := make(map[string]time.Time)
	if len(names) == 0 {
		return found, nil
	}

	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	query := fmt.Sprintf(
		"SELECT name, MIN(published) FROM PublishedPlaylist WHERE name IN (%s) GROUP BY name",
		strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "))
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying published names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, published string
		if err := rows.Scan(&name, &published); err != nil {
			return nil, fmt.Errorf("scanning published name: %w", err)
		}
		t, err := parseTime(published)
		if err != nil {
			return nil, fmt.Errorf("parsing publish time of %q: %w", name, err)
		}
		found[name] = t
	}
	return found, rows.Err()
}

// PublishedInRun lists the playlists a run published, by name.
func (s *Store) PublishedInRun(run string) ([]Published, error) {
	rows, err := s.db.Query(`
SELECT remote_id, run, playlist, name, tracks, energy, valence, published
FROM PublishedPlaylist
WHERE run = ?
ORDER BY name`, run)
	if err != nil {
		return nil, fmt.Errorf("querying playlists of run %s: %w", run, err)
	}
	defer rows.Close()

	var out []Published
	for rows.Next() {
		var p Published
		if err := rows.Scan(&p.RemoteID, &p.Run, &p.Playlist, &p.Name, &p.Tracks, &p.Energy, &p.Valence, &p.Published); err != nil {
			return nil, fmt.Errorf("scanning published playlist: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// parseTime reads an aggregate over a DATETIME column, which the driver
// returns as text rather than time.Time.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
