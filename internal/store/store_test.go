package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func createTestDb(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("New(%s) error: %v", dbPath, err)
	}

	return store
}

func TestReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, err := s.StartRun("p1", false, time.Now()); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer s.Close()
	runs, err := s.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("Expected 1 run after reopen, got %d", len(runs))
	}
}

func TestRunLifecycle(t *testing.T) {
	s := createTestDb(t)
	defer s.Close()

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ok, err := s.StartRun("p1", false, start)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	failed, err := s.StartRun("p2", true, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if ok == failed {
		t.Fatalf("run ids collide: %s", ok)
	}

	if err := s.FinishRun(ok, start.Add(time.Minute), Outcome{Tracks: 310, Playlists: 5}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := s.FinishRun(failed, start.Add(2*time.Hour), Outcome{Err: errors.New("neo4j unavailable")}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}

	latest := runs[0]
	if latest.ID != failed || latest.Status != StatusFailed || latest.Error != "neo4j unavailable" || !latest.SkippedFetch {
		t.Errorf("latest run = %+v", latest)
	}
	first := runs[1]
	if first.Status != StatusSucceeded || first.Tracks != 310 || first.Playlists != 5 {
		t.Errorf("first run = %+v", first)
	}
	if !first.Started.Equal(start) || !first.Finished.Equal(start.Add(time.Minute)) {
		t.Errorf("first run times = %v..%v", first.Started, first.Finished)
	}

	limited, err := s.ListRuns(1)
	if err != nil {
		t.Fatalf("ListRuns(1): %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("ListRuns(1) returned %d runs", len(limited))
	}
}

func TestFinishUnknownRun(t *testing.T) {
	s := createTestDb(t)
	defer s.Close()

	if err := s.FinishRun("missing", time.Now(), Outcome{}); err == nil {
		t.Error("FinishRun of unknown run succeeded")
	}
}

func TestPublishedBefore(t *testing.T) {
	s := createTestDb(t)
	defer s.Close()

	first := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	run, err := s.StartRun("p1", false, first)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	for i, p := range []Published{
		{RemoteID: "r1", Run: run, Playlist: "3", Name: "[NPB] Indie - active, cheerful", Tracks: 40, Energy: 0.6, Valence: 0.8, Published: first},
		{RemoteID: "r2", Run: run, Playlist: "4", Name: "[NPB] Indie - active, cheerful", Tracks: 41, Published: first.Add(24 * time.Hour)},
		{RemoteID: "r3", Run: run, Playlist: "5", Name: "[NPB] Techno - energetic, low", Tracks: 12, Published: first},
	} {
		if err := s.RecordPublished(p); err != nil {
			t.Fatalf("RecordPublished #%d: %v", i, err)
		}
	}

	got, err := s.PublishedBefore([]string{"[NPB] Indie - active, cheerful", "[NPB] Never - calm, low"})
	if err != nil {
		t.Fatalf("PublishedBefore: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("PublishedBefore returned %v, want one name", got)
	}
	if when := got["[NPB] Indie - active, cheerful"]; !when.Equal(first) {
		t.Errorf("first published = %v, want %v", when, first)
	}

	none, err := s.PublishedBefore(nil)
	if err != nil || len(none) != 0 {
		t.Errorf("PublishedBefore(nil) = %v, %v", none, err)
	}

	inRun, err := s.PublishedInRun(run)
	if err != nil {
		t.Fatalf("PublishedInRun: %v", err)
	}
	if len(inRun) != 3 || inRun[2].Name != "[NPB] Techno - energetic, low" {
		t.Errorf("PublishedInRun = %+v", inRun)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	s := createTestDb(t)
	defer s.Close()

	tok, err := s.LoadToken("spotify")
	if err != nil || tok != nil {
		t.Fatalf("LoadToken on empty ledger = %v, %v", tok, err)
	}

	expiry := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	if err := s.SaveToken("spotify", Token{AccessToken: "a1", TokenType: "Bearer", RefreshToken: "r1", Expiry: expiry}); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	if err := s.SaveToken("spotify", Token{AccessToken: "a2", TokenType: "Bearer", RefreshToken: "r1", Expiry: expiry.Add(time.Hour)}); err != nil {
		t.Fatalf("SaveToken (replace): %v", err)
	}

	tok, err = s.LoadToken("spotify")
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if tok.AccessToken != "a2" || tok.RefreshToken != "r1" || !tok.Expiry.Equal(expiry.Add(time.Hour)) {
		t.Errorf("LoadToken = %+v", tok)
	}
}
