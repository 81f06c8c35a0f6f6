//go:build integration

package graph_test

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ademuri/playlist-builder/internal/catalog"
	"github.com/ademuri/playlist-builder/internal/config"
	"github.com/ademuri/playlist-builder/internal/graph"
	"github.com/ademuri/playlist-builder/internal/kmeans"
	"github.com/ademuri/playlist-builder/internal/naming"
)

const neo4jImage = "neo4j:5.26"

func skipIfNoDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

func startNeo4j(t *testing.T, ctx context.Context) *graph.Session {
	t.Helper()
	skipIfNoDocker(t)

	req := testcontainers.ContainerRequest{
		Image:        neo4jImage,
		ExposedPorts: []string{"7687/tcp"},
		Env: map[string]string{
			"NEO4J_AUTH":    "neo4j/integration-test",
			"NEO4J_PLUGINS": `["graph-data-science"]`,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("7687/tcp"),
			wait.ForLog("Started."),
		).WithStartupTimeout(3 * time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting neo4j: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "7687/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	session, err := graph.Open(ctx, config.Neo4j{
		URL:      fmt.Sprintf("bolt://%s:%s", host, port.Port()),
		Username: "neo4j",
		Password: "integration-test",
	})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { session.Close(context.Background()) })
	return session
}

// scene adds tracks by artists that all share the same genres, so each scene
// forms its own genre community.
func scene(c *catalog.Catalog, name string, genres []string, tracks int, energy func(i int) float64) {
	album := &catalog.Album{ID: name + "-album", Name: name}
	c.Albums[album.ID] = album
	for a := 0; a < 3; a++ {
		id := fmt.Sprintf("%s-artist-%d", name, a)
		c.Artists[id] = &catalog.Artist{ID: id, Name: id, Genres: genres}
	}
	for i := 0; i < tracks; i++ {
		id := fmt.Sprintf("%s-track-%03d", name, i)
		e := energy(i)
		c.Tracks[id] = &catalog.Track{
			ID:       id,
			Name:     id,
			Album:    album.ID,
			Artists:  []string{fmt.Sprintf("%s-artist-%d", name, i%3)},
			Features: &catalog.AudioFeatures{Energy: e, Valence: e},
		}
	}
}

func syntheticCatalog() *catalog.Catalog {
	c := &catalog.Catalog{
		Tracks:  map[string]*catalog.Track{},
		Albums:  map[string]*catalog.Album{},
		Artists: map[string]*catalog.Artist{},
	}
	scene(c, "indie", []string{"indie rock", "indie pop", "chamber indie"}, 200, func(i int) float64 {
		if i%2 == 0 {
			return 0.1 + float64(i%10)/100
		}
		return 0.8 + float64(i%10)/100
	})
	scene(c, "techno", []string{"deep techno", "minimal techno"}, 60, func(i int) float64 { return 0.9 })
	scene(c, "jazz", []string{"cool jazz", "bebop"}, 10, func(i int) float64 { return 0.3 })
	scene(c, "unknown", nil, 5, func(i int) float64 { return 0.5 })
	c.Genres = catalog.UnionGenres(c.Albums, c.Artists)
	return c
}

func buildPlaylists(t *testing.T, ctx context.Context, s *graph.Session) map[string]string {
	t.Helper()
	if _, err := graph.ClusterGenres(ctx, s, graph.ClusterOptions{MinPlaylistSize: 40}); err != nil {
		t.Fatalf("ClusterGenres error: %v", err)
	}
	engine := &kmeans.Engine{Restarts: 10}
	if _, err := graph.PartitionPlaylists(ctx, s, engine, graph.PartitionOptions{SplitLimit: 150}); err != nil {
		t.Fatalf("PartitionPlaylists error: %v", err)
	}
	names, err := graph.NamePlaylists(ctx, s, naming.New("[NPB]", 3, naming.DefaultStopwords))
	if err != nil {
		t.Fatalf("NamePlaylists error: %v", err)
	}
	return names
}

func TestPipelineAgainstNeo4j(t *testing.T) {
	ctx := context.Background()
	s := startNeo4j(t, ctx)

	cat := syntheticCatalog()
	if err := graph.Load(ctx, s, cat, graph.LoadOptions{CreateConstraints: true}); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	names := buildPlaylists(t, ctx, s)

	rows, err := s.Run(ctx, `
MATCH (t:Track)
RETURN t.id AS id, size([(t)-[:IN_PLAYLIST]->(p:Playlist) | p]) AS playlists,
  size([(t)-[:HAS_SUPER_GENRE]->(s:SuperGenre) | s]) AS superGenres`, nil)
	if err != nil {
		t.Fatalf("counting memberships: %v", err)
	}
	if len(rows) != len(cat.Tracks) {
		t.Fatalf("graph has %d tracks, want %d", len(rows), len(cat.Tracks))
	}
	for _, row := range rows {
		if row.GetInt("playlists") != 1 || row.GetInt("superGenres") != 1 {
			t.Errorf("track %s: %d playlists, %d super-genres, want 1 each",
				row.GetString("id"), row.GetInt("playlists"), row.GetInt("superGenres"))
		}
	}

	rows, err = s.Run(ctx, `MATCH (g:Genre) RETURN g.name AS name, size([(g)-[:PART_OF]->(s:SuperGenre) | s]) AS n`, nil)
	if err != nil {
		t.Fatalf("counting genre super-genres: %v", err)
	}
	for _, row := range rows {
		if row.GetInt("n") != 1 {
			t.Errorf("genre %s is part of %d super-genres", row.GetString("name"), row.GetInt("n"))
		}
	}

	playlists, err := graph.Playlists(ctx, s)
	if err != nil {
		t.Fatalf("Playlists error: %v", err)
	}
	// indie splits in two, techno stays whole, jazz and the genre-less
	// tracks share misc.
	if len(playlists) != 4 {
		t.Errorf("got %d playlists, want 4: %+v", len(playlists), playlists)
	}
	for _, p := range playlists {
		if p.SuperGenre == graph.MiscSuperGenre && len(p.Tracks) != 15 {
			t.Errorf("misc playlist has %d tracks, want 15", len(p.Tracks))
		}
	}

	again := buildPlaylists(t, ctx, s)
	if fmt.Sprint(again) != fmt.Sprint(names) {
		t.Errorf("rerun changed names:\n got %v\nwant %v", again, names)
	}
}
