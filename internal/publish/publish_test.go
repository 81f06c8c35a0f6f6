package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zmb3/spotify/v2"

	"github.com/ademuri/playlist-builder/internal/graph"
	"github.com/ademuri/playlist-builder/internal/store"
	"github.com/ademuri/playlist-builder/internal/transient"
)

func init() {
	transient.Delay = 0
}

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

type fakeSpotify struct {
	mu      sync.Mutex
	created []createRequest
	adds    map[string][][]string
	// createStatuses are returned, in order, before creates succeed.
	createStatuses []int
	createCalls    int
	// addStatuses are returned, in order, for add-tracks requests; 0 accepts.
	addStatuses []int
}

func (f *fakeSpotify) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/users/me/playlists":
		f.createCalls++
		if len(f.createStatuses) > 0 {
			status := f.createStatuses[0]
			f.createStatuses = f.createStatuses[1:]
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"error":{"status":%d,"message":"nope"}}`, status)
			return
		}
		var req createRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.created = append(f.created, req)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":"remote%d","name":%q}`, len(f.created), req.Name)
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/playlists/"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/playlists/"), "/tracks")
		if len(f.addStatuses) > 0 {
			status := f.addStatuses[0]
			f.addStatuses = f.addStatuses[1:]
			if status != 0 {
				w.WriteHeader(status)
				fmt.Fprintf(w, `{"error":{"status":%d,"message":"bad"}}`, status)
				return
			}
		}
		var body struct {
			URIs []string `json:"uris"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.adds[id] = append(f.adds[id], body.URIs)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"snapshot_id":"s"}`)
	default:
		http.NotFound(w, r)
	}
}

func newFake(t *testing.T) (*fakeSpotify, *spotify.Client) {
	t.Helper()
	f := &fakeSpotify{adds: map[string][][]string{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, spotify.New(srv.Client(), spotify.WithBaseURL(srv.URL+"/"))
}

type memoryLedger struct {
	before   map[string]time.Time
	recorded []store.Published
}

func (m *memoryLedger) PublishedBefore(names []string) (map[string]time.Time, error) {
	out := map[string]time.Time{}
	for _, n := range names {
		if t, ok := m.before[n]; ok {
			out[n] = t
		}
	}
	return out, nil
}

func (m *memoryLedger) RecordPublished(p store.Published) error {
	m.recorded = append(m.recorded, p)
	return nil
}

func tracks(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%03d", i)
	}
	return ids
}

func TestPublish(t *testing.T) {
	fake, client := newFake(t)
	ledger := &memoryLedger{before: map[string]time.Time{"[NPB] Indie - active, cheerful": time.Now()}}
	p := New(client, ledger, Options{UserID: "me", Description: "Generated.", PageSize: 100, MaxAttempts: 3})

	playlists := []graph.Playlist{
		{ID: "3", Name: "[NPB] Indie - active, cheerful", Energy: 0.6, Valence: 0.8, Tracks: tracks(250)},
		{ID: "-1", Name: "[NPB] - calm, low", Energy: 0.5, Valence: 0.5, Tracks: tracks(3)},
	}
	published, err := p.Publish(context.Background(), "run1", playlists)
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	if len(fake.created) != 2 {
		t.Fatalf("created %d playlists, want 2", len(fake.created))
	}
	first := fake.created[0]
	if first.Name != "[NPB] Indie - active, cheerful" || first.Public {
		t.Errorf("first playlist = %+v, want private with its graph name", first)
	}
	if want := "Generated. Energy: 0.60 Mood: 0.80"; first.Description != want {
		t.Errorf("description = %q, want %q", first.Description, want)
	}

	batches := fake.adds["remote1"]
	if len(batches) != 3 || len(batches[0]) != 100 || len(batches[2]) != 50 {
		t.Errorf("batches for remote1 have sizes %v, want [100 100 50]", batchSizes(batches))
	}
	if batches[0][0] != "spotify:track:t000" {
		t.Errorf("first uri = %q", batches[0][0])
	}
	if len(fake.adds["remote2"]) != 1 {
		t.Errorf("batches for remote2 = %d, want 1", len(fake.adds["remote2"]))
	}

	if len(published) != 2 || len(ledger.recorded) != 2 {
		t.Fatalf("published %d, recorded %d, want 2 each", len(published), len(ledger.recorded))
	}
	if r := ledger.recorded[0]; r.RemoteID != "remote1" || r.Run != "run1" || r.Playlist != "3" || r.Tracks != 250 {
		t.Errorf("recorded = %+v", r)
	}
}

func batchSizes(batches [][]string) []int {
	sizes := make([]int, len(batches))
	for i, b := range batches {
		sizes[i] = len(b)
	}
	return sizes
}

func TestPublishRetriesOnlyRateLimits(t *testing.T) {
	tests := []struct {
		name     string
		statuses []int
		wantErr  bool
		calls    int
	}{
		{"rate limited then ok", []int{429}, false, 2},
		{"server error is not repeated", []int{500}, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, client := newFake(t)
			fake.createStatuses = tt.statuses
			p := New(client, &memoryLedger{}, Options{UserID: "me", PageSize: 100, MaxAttempts: 3})

			_, err := p.Publish(context.Background(), "run1", []graph.Playlist{{ID: "1", Name: "n", Tracks: tracks(1)}})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Publish error = %v, wantErr %v", err, tt.wantErr)
			}
			if fake.createCalls != tt.calls {
				t.Errorf("create calls = %d, want %d", fake.createCalls, tt.calls)
			}
		})
	}
}

func TestPublishRecordsPartiallyFilledPlaylist(t *testing.T) {
	fake, client := newFake(t)
	fake.addStatuses = []int{0, http.StatusBadRequest}
	ledger := &memoryLedger{}
	p := New(client, ledger, Options{UserID: "me", PageSize: 100, MaxAttempts: 3})

	playlists := []graph.Playlist{
		{ID: "1", Name: "first", Tracks: tracks(250)},
		{ID: "2", Name: "second", Tracks: tracks(5)},
	}
	published, err := p.Publish(context.Background(), "run1", playlists)
	if err == nil {
		t.Fatal("Publish succeeded, want add tracks error")
	}
	if len(fake.created) != 1 {
		t.Fatalf("created %d playlists, want 1", len(fake.created))
	}
	if len(ledger.recorded) != 1 {
		t.Fatalf("recorded %d playlists, want 1", len(ledger.recorded))
	}
	if r := ledger.recorded[0]; r.RemoteID != "remote1" || r.Name != "first" || r.Tracks != 100 {
		t.Errorf("recorded = %+v, want remote1 with 100 tracks", r)
	}
	if len(published) != 1 || published[0].RemoteID != "remote1" {
		t.Errorf("published = %+v, want the partial playlist", published)
	}
}

func TestPublishRejectsZeroPageSize(t *testing.T) {
	_, client := newFake(t)
	p := New(client, &memoryLedger{}, Options{UserID: "me"})
	if _, err := p.Publish(context.Background(), "run1", nil); err == nil {
		t.Error("Publish with zero page size succeeded")
	}
}
