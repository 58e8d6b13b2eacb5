package models

// Candidate is a post found on a monitored page that has not been confirmed as new yet.
type Candidate struct {
	Title string `json:"title"`
	Link  string `json:"link,omitempty"`
	Image string `json:"image,omitempty"`
}

// Usable reports whether the candidate has a title and at least one of link or image.
func (c Candidate) Usable() bool {
	return c.Title != "" && (c.Link != "" || c.Image != "")
}
