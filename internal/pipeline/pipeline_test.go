package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ademuri/playlist-builder/internal/catalog"
	"github.com/ademuri/playlist-builder/internal/config"
	"github.com/ademuri/playlist-builder/internal/graph"
	"github.com/ademuri/playlist-builder/internal/graph/graphtest"
	"github.com/ademuri/playlist-builder/internal/kmeans"
	"github.com/ademuri/playlist-builder/internal/store"
)

type fakeFetcher struct {
	cat *catalog.Catalog
	err error
	ids []string
}

func (f *fakeFetcher) Fetch(_ context.Context, id string) (*catalog.Catalog, error) {
	f.ids = append(f.ids, id)
	return f.cat, f.err
}

type fakePublisher struct {
	run       string
	playlists []graph.Playlist
}

func (f *fakePublisher) Publish(_ context.Context, run string, playlists []graph.Playlist) ([]store.Published, error) {
	f.run, f.playlists = run, playlists
	var out []store.Published
	for _, p := range playlists {
		out = append(out, store.Published{RemoteID: "r" + p.ID, Run: run, Name: p.Name})
	}
	return out, nil
}

type fakeNotifier struct {
	err  error
	sent int
}

func (f *fakeNotifier) Notify(string, []store.Published) error {
	f.sent++
	return f.err
}

type memoryLedger struct {
	started  []string
	outcomes map[string]store.Outcome
}

func (m *memoryLedger) StartRun(playlist string, _ bool, _ time.Time) (string, error) {
	m.started = append(m.started, playlist)
	return "run-1", nil
}

func (m *memoryLedger) FinishRun(id string, _ time.Time, out store.Outcome) error {
	if m.outcomes == nil {
		m.outcomes = map[string]store.Outcome{}
	}
	m.outcomes[id] = out
	return nil
}

type nopPartitioner struct{}

func (nopPartitioner) Partition(string, []kmeans.Point, int) (kmeans.Result, error) {
	return kmeans.Result{}, errors.New("not expected")
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Tracks: map[string]*catalog.Track{
			"t1": {ID: "t1", Album: "al1", Artists: []string{"ar1"}},
			"t2": {ID: "t2", Album: "al1", Artists: []string{"ar1"}},
		},
		Albums:  map[string]*catalog.Album{"al1": {ID: "al1"}},
		Artists: map[string]*catalog.Artist{"ar1": {ID: "ar1", Genres: []string{"indie rock"}}},
		Genres:  []string{"indie rock"},
	}
}

func fakeGraph() *graphtest.Recorder {
	return graphtest.New().
		Rows("count(t) AS tracks, s.energy", graph.Record{"id": int64(-1), "tracks": int64(2), "energy": 0.5, "valence": 0.5}).
		Rows("collect(DISTINCT g.name)", graph.Record{"id": "-1", "energy": 0.5, "valence": 0.5, "genres": []any{"indie rock"}}).
		Rows("collect(t.id) AS tracks", graph.Record{"id": "-1", "name": "[NPB] Indie - calm, low", "superGenre": int64(-1),
			"energy": 0.5, "valence": 0.5, "tracks": []any{"t1", "t2"}}).
		Rows("MATCH (t:Track) RETURN count(t)", graph.Record{"count": int64(2)})
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Spotify.Playlist = "p1"
	return cfg
}

func TestRunPublishes(t *testing.T) {
	rec := fakeGraph()
	fetcher := &fakeFetcher{cat: testCatalog()}
	publisher := &fakePublisher{}
	notifier := &fakeNotifier{}
	ledger := &memoryLedger{}

	p := New(testConfig(), Deps{
		Graph:       rec,
		Fetcher:     fetcher,
		Partitioner: nopPartitioner{},
		Publisher:   publisher,
		Notifier:    notifier,
		Ledger:      ledger,
	})
	res, err := p.Run(context.Background(), Options{Playlist: "p1", Publish: true})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(fetcher.ids) != 1 || fetcher.ids[0] != "p1" {
		t.Errorf("fetched %v, want [p1]", fetcher.ids)
	}
	if res.Run != "run-1" || res.Tracks != 2 || len(res.Playlists) != 1 || len(res.Published) != 1 {
		t.Errorf("Run result = %+v", res)
	}
	if publisher.run != "run-1" || publisher.playlists[0].Name != "[NPB] Indie - calm, low" {
		t.Errorf("publisher got run %q, playlists %+v", publisher.run, publisher.playlists)
	}
	if notifier.sent != 1 {
		t.Errorf("notifications = %d, want 1", notifier.sent)
	}
	if out := ledger.outcomes["run-1"]; out.Err != nil || out.Tracks != 2 || out.Playlists != 1 {
		t.Errorf("ledger outcome = %+v", out)
	}

	calls := rec.Calls()
	stages := []string{"DETACH DELETE n", "CREATE (t:Track)", "gds.graph.drop", "MATCH (p:Playlist) DETACH DELETE p", "SET p.name", "collect(t.id) AS tracks"}
	last := -1
	for _, s := range stages {
		i := -1
		for j, c := range calls {
			if strings.Contains(c.Cypher, s) {
				i = j
				break
			}
		}
		if i <= last {
			t.Fatalf("%q ran at %d, expected after %d", s, i, last)
		}
		last = i
	}
}

func TestRunRecordsFailure(t *testing.T) {
	boom := errors.New("spotify down")
	rec := fakeGraph()
	ledger := &memoryLedger{}
	p := New(testConfig(), Deps{Graph: rec, Fetcher: &fakeFetcher{err: boom}, Partitioner: nopPartitioner{}, Ledger: ledger})

	_, err := p.Run(context.Background(), Options{Playlist: "p1"})
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
	if out := ledger.outcomes["run-1"]; !errors.Is(out.Err, boom) {
		t.Errorf("ledger outcome = %+v, want failure", out)
	}
	if n := len(rec.Calls()); n != 0 {
		t.Errorf("graph queried %d times after fetch failure", n)
	}
}

func TestRunSkipFetch(t *testing.T) {
	rec := fakeGraph()
	p := New(testConfig(), Deps{Graph: rec, Partitioner: nopPartitioner{}, Ledger: &memoryLedger{}})

	res, err := p.Run(context.Background(), Options{Playlist: "p1", SkipFetch: true})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Tracks != 2 {
		t.Errorf("tracks = %d, want 2 from the loaded graph", res.Tracks)
	}
	if n := len(rec.Matching("MATCH (n) DETACH DELETE n")); n != 0 {
		t.Errorf("graph cleared %d times despite skipping fetch", n)
	}
	if res.Published != nil {
		t.Errorf("published without publish enabled: %+v", res.Published)
	}
}

func TestRunMissingStages(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
		opts Options
	}{
		{"no fetcher", Deps{Ledger: &memoryLedger{}}, Options{Playlist: "p1"}},
		{"no publisher", Deps{Fetcher: &fakeFetcher{}, Ledger: &memoryLedger{}}, Options{Playlist: "p1", Publish: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(testConfig(), tt.deps).Run(context.Background(), tt.opts)
			if !errors.Is(err, ErrMissingStage) {
				t.Errorf("Run error = %v, want ErrMissingStage", err)
			}
		})
	}
}

func TestNotifyFailureIsNotFatal(t *testing.T) {
	p := New(testConfig(), Deps{
		Graph:       fakeGraph(),
		Fetcher:     &fakeFetcher{cat: testCatalog()},
		Partitioner: nopPartitioner{},
		Publisher:   &fakePublisher{},
		Notifier:    &fakeNotifier{err: errors.New("smtp")},
		Ledger:      &memoryLedger{},
	})
	if _, err := p.Run(context.Background(), Options{Playlist: "p1", Publish: true}); err != nil {
		t.Errorf("Run error = %v, want nil", err)
	}
}
