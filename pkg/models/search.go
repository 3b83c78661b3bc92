package models

// SearchRequest filters entities by a case-insensitive substring of their
// qualified name. Start and Size paginate only when both are set.
type SearchRequest struct {
	Keyword string
	Types   []EntityType
	// Project scopes the search to direct members of a project, by id or name.
	Project string
	Start   *int
	Size    *int
}

// CreatedResponse is returned by every creation endpoint.
type CreatedResponse struct {
	GUID string `json:"guid"`
}
