package spotify

// SearchResponse is the top-level response from /v1/search.
type SearchResponse struct {
	Artists ArtistsPage `json:"artists"`
}

// ArtistsPage is one page of artist search results.
type ArtistsPage struct {
	Items []Artist `json:"items"`
	Total int      `json:"total"`
}

// Artist is Spotify's artist object.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
}

// RelatedArtistsResponse is the response from /v1/artists/{id}/related-artists.
type RelatedArtistsResponse struct {
	Artists []Artist `json:"artists"`
}

// TopTracksResponse is the response from /v1/artists/{id}/top-tracks.
type TopTracksResponse struct {
	Tracks []Track `json:"tracks"`
}

// Track is Spotify's track object, reduced to the fields used here.
type Track struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Artists []TrackArtist `json:"artists"`
}

// TrackArtist is the simplified artist object embedded in a track.
type TrackArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
