package discogs

// Discogs API response types.

// SearchResponse is the top-level response from /database/search.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// SearchResult is a single search hit.
type SearchResult struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// ReleasesResponse is the top-level response from /artists/{id}/releases.
type ReleasesResponse struct {
	Pagination Pagination `json:"pagination"`
	Releases   []Release  `json:"releases"`
}

// Pagination holds Discogs paging metadata.
type Pagination struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Items int `json:"items"`
}

// Release is one entry in an artist's release list. Artist is the joined
// display string for all credited artists on the release.
type Release struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Year   int    `json:"year"`
	Artist string `json:"artist"`
	Role   string `json:"role"`
	Label  string `json:"label"`
	Type   string `json:"type"`
}
