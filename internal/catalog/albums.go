package catalog

import "rownest/internal/nest"

// AlbumsSchema is the name of the album/artist/tracks demo schema.
const AlbumsSchema = "albums"

func init() {
	Register(AlbumsSchema, Albums())
}

// Albums describes albums joined with their artist and tracks:
//
//	SELECT a.id, a.name, ar.id AS artist_id, ar.name AS artist_name,
//	       t.id AS track_id, t.title AS track_title
//	FROM album a
//	JOIN artist ar ON ar.id = a.artist_id
//	LEFT JOIN track t ON t.album_id = a.id
func Albums() []nest.Property {
	return []nest.Property{
		nest.ID("id", "id"),
		nest.Column("name", "name"),
		nest.HasOne("artist",
			nest.ID("id", "artist_id"),
			nest.Column("name", "artist_name"),
		),
		nest.HasMany("tracks",
			nest.ID("id", "track_id"),
			nest.Column("title", "track_title"),
		),
	}
}

// AlbumRows is the flattened result of the query above for two albums by the
// same artist.
func AlbumRows() []nest.Row {
	return []nest.Row{
		{"id": 1, "name": "Album 1", "artist_id": 1, "artist_name": "Artist 1", "track_id": 1, "track_title": "Track 1"},
		{"id": 1, "name": "Album 1", "artist_id": 1, "artist_name": "Artist 1", "track_id": 2, "track_title": "Track 2"},
		{"id": 2, "name": "Album 2", "artist_id": 1, "artist_name": "Artist 1", "track_id": 3, "track_title": "Track 3"},
	}
}
