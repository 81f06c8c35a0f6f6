package graph

// Projection names used by the genre clustering stage.
const (
	bipartiteGraph = "genre-has-artist"
	genreGraph     = "genre-similar-to-genre"
)

// MiscSuperGenre is the community label of genres that reach too few tracks
// to stand alone.
const MiscSuperGenre = -1

const (
	clearGraphQuery = `MATCH (n) DETACH DELETE n`

	createTracksQuery = `
UNWIND $rows AS row
CREATE (t:Track)
SET t = row`

	createAlbumsQuery = `
UNWIND $rows AS row
CREATE (a:Album)
SET a = row`

	createArtistsQuery = `
UNWIND $rows AS row
CREATE (a:Artist)
SET a = row`

	mergeGenresQuery = `
UNWIND $genres AS genre
MERGE (:Genre {name: genre})`

	linkAlbumsQuery = `
MATCH (t:Track)
MATCH (a:Album {id: t.album})
CREATE (t)-[:IN_ALBUM]->(a)`

	linkArtistsQuery = `
MATCH (t:Track)
UNWIND t.artists AS artist
MATCH (a:Artist {id: artist})
CREATE (t)-[:HAS_ARTIST]->(a)`

	linkGenresQuery = `
MATCH (a:Artist)
UNWIND a.genres AS genre
MATCH (g:Genre {name: genre})
CREATE (a)-[:HAS_GENRE]->(g)`
)

var constraintQueries = []string{
	`CREATE CONSTRAINT genre_name IF NOT EXISTS FOR (g:Genre) REQUIRE g.name IS UNIQUE`,
	`CREATE CONSTRAINT playlist_id IF NOT EXISTS FOR (p:Playlist) REQUIRE p.id IS UNIQUE`,
	`CREATE CONSTRAINT playlist_name IF NOT EXISTS FOR (p:Playlist) REQUIRE p.name IS UNIQUE`,
	`CREATE CONSTRAINT track_id IF NOT EXISTS FOR (t:Track) REQUIRE t.id IS UNIQUE`,
	`CREATE CONSTRAINT album_id IF NOT EXISTS FOR (a:Album) REQUIRE a.id IS UNIQUE`,
	`CREATE CONSTRAINT artist_id IF NOT EXISTS FOR (a:Artist) REQUIRE a.id IS UNIQUE`,
}

const (
	dropProjectionQuery = `
CALL gds.graph.drop($name, false)
YIELD graphName
RETURN graphName`

	deleteSuperGenresQuery = `MATCH (s:SuperGenre) DETACH DELETE s`

	deleteSimilarityQuery = `MATCH (:Genre)-[r:SIMILAR_TO]->(:Genre) DELETE r`

	countGenreLinksQuery = `
MATCH (:Artist)-[r:HAS_GENRE]->(:Genre)
RETURN count(r) AS count`

	projectBipartiteQuery = `
CALL gds.graph.project($name, ['Artist', 'Genre'], {HAS_GENRE: {orientation: 'REVERSE'}})
YIELD graphName, nodeCount, relationshipCount
RETURN nodeCount, relationshipCount`

	nodeSimilarityQuery = `
CALL gds.nodeSimilarity.write($name, {
  writeRelationshipType: 'SIMILAR_TO',
  writeProperty: 'score',
  concurrency: 1
})
YIELD nodesCompared, relationshipsWritten
RETURN nodesCompared, relationshipsWritten`

	projectGenresQuery = `
CALL gds.graph.project($name, 'Genre', {SIMILAR_TO: {orientation: 'NATURAL', properties: 'score'}})
YIELD graphName, nodeCount, relationshipCount
RETURN nodeCount, relationshipCount`

	louvainQuery = `
CALL gds.louvain.write($name, {
  relationshipWeightProperty: 'score',
  writeProperty: 'community',
  concurrency: 1
})
YIELD communityCount, modularity
RETURN communityCount, modularity`

	// Used when there are no similarity edges for Louvain to work on.
	singletonCommunitiesQuery = `
MATCH (g:Genre)
WITH g ORDER BY g.name
WITH collect(g) AS genres
UNWIND range(0, size(genres) - 1) AS i
WITH genres[i] AS g, i
SET g.community = i`

	mergeSmallCommunitiesQuery = `
MATCH (g:Genre)
OPTIONAL MATCH (g)<-[:HAS_GENRE]-(:Artist)<-[:HAS_ARTIST]-(t:Track)
WITH g.community AS community, collect(DISTINCT g) AS genres, count(DISTINCT t) AS tracks
WHERE tracks < $minPlaylistSize
UNWIND genres AS g
SET g.community = $misc
RETURN count(g) AS merged`

	createSuperGenresQuery = `
MATCH (g:Genre)
WITH DISTINCT g.community AS community
CREATE (:SuperGenre {id: community})`

	linkPartOfQuery = `
MATCH (g:Genre)
MATCH (s:SuperGenre {id: g.community})
CREATE (g)-[:PART_OF]->(s)`

	// Each track joins the super-genre most of its artist genres point at.
	// Ties prefer a real super-genre over misc, then the lowest id.
	linkPrimarySuperGenreQuery = `
MATCH (t:Track)-[:HAS_ARTIST]->(:Artist)-[:HAS_GENRE]->(:Genre)-[:PART_OF]->(s:SuperGenre)
WITH t, s, count(*) AS paths
ORDER BY t.id, paths DESC, CASE s.id WHEN $misc THEN 1 ELSE 0 END, s.id
WITH t, collect(s)[0] AS s
CREATE (t)-[:HAS_SUPER_GENRE]->(s)
RETURN count(t) AS linked`

	linkOrphanTracksQuery = `
MATCH (t:Track)
WHERE NOT EXISTS { (t)-[:HAS_SUPER_GENRE]->(:SuperGenre) }
WITH collect(t) AS orphans
WHERE size(orphans) > 0
MERGE (s:SuperGenre {id: $misc})
WITH s, orphans
UNWIND orphans AS t
CREATE (t)-[:HAS_SUPER_GENRE]->(s)
RETURN count(t) AS orphans`

	superGenreMoodQuery = `
MATCH (s:SuperGenre)<-[:HAS_SUPER_GENRE]-(t:Track)
WITH s, avg(t.energy) AS energy, avg(t.valence) AS valence
SET s.energy = energy, s.valence = valence`

	superGenreSummaryQuery = `
MATCH (s:SuperGenre)
RETURN s.id AS id,
  size([(s)<-[:PART_OF]-(g:Genre) | g]) AS genres,
  size([(s)<-[:HAS_SUPER_GENRE]-(t:Track) | t]) AS tracks,
  s.energy AS energy,
  s.valence AS valence
ORDER BY id`
)

const (
	deletePlaylistsQuery = `MATCH (p:Playlist) DETACH DELETE p`

	superGenreSizesQuery = `
MATCH (s:SuperGenre)<-[:HAS_SUPER_GENRE]-(t:Track)
RETURN s.id AS id, count(t) AS tracks, s.energy AS energy, s.valence AS valence
ORDER BY id`

	wholeSuperGenrePlaylistQuery = `
MATCH (s:SuperGenre {id: $superGenre})
CREATE (p:Playlist {id: $playlist, superGenre: s.id})
SET p.energy = s.energy, p.valence = s.valence
WITH s, p
MATCH (s)<-[:HAS_SUPER_GENRE]-(t:Track)
CREATE (t)-[:IN_PLAYLIST]->(p)
RETURN count(t) AS tracks`

	superGenreTracksQuery = `
MATCH (:SuperGenre {id: $superGenre})<-[:HAS_SUPER_GENRE]-(t:Track)
RETURN t.id AS id, t.energy AS energy, t.valence AS valence
ORDER BY id`

	createPlaylistsQuery = `
UNWIND $playlists AS row
CREATE (:Playlist {id: row.id, superGenre: $superGenre, energy: row.energy, valence: row.valence})`

	assignTracksQuery = `
UNWIND $assignments AS row
MATCH (t:Track {id: row.track})
MATCH (p:Playlist {id: row.playlist})
CREATE (t)-[:IN_PLAYLIST]->(p)`
)

const (
	playlistGenresQuery = `
MATCH (p:Playlist)
OPTIONAL MATCH (p)<-[:IN_PLAYLIST]-(:Track)-[:HAS_ARTIST]->(:Artist)-[:HAS_GENRE]->(g:Genre)
RETURN p.id AS id, p.energy AS energy, p.valence AS valence, collect(DISTINCT g.name) AS genres
ORDER BY id`

	setPlaylistNamesQuery = `
UNWIND $names AS row
MATCH (p:Playlist {id: row.id})
SET p.name = row.name`

	countTracksQuery = `MATCH (t:Track) RETURN count(t) AS count`

	readPlaylistsQuery = `
MATCH (p:Playlist)<-[:IN_PLAYLIST]-(t:Track)
WITH p, t ORDER BY t.id
RETURN p.id AS id, p.name AS name, p.superGenre AS superGenre,
  p.energy AS energy, p.valence AS valence, collect(t.id) AS tracks
ORDER BY id`
)
