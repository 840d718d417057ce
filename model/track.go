package model

// TagRecord holds the text tags of a track. Absent fields are empty strings.
type TagRecord struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Year   string `json:"year"`
	Genre  string `json:"genre"`
}

// UnknownTitle is the title given to tracks whose bytes carry no tag trailer.
const UnknownTitle = "Unknown title"

// Descriptor is the plain record form of a track, used for persistence and
// playlist files.
type Descriptor struct {
	Locator string `json:"locator"`
	Title   string `json:"title"`
	Album   string `json:"album"`
	Artist  string `json:"artist"`
	Genre   string `json:"genre"`
	Year    string `json:"year"`
	// Name is a display name used as the title when no tag fields are set.
	Name string `json:"name,omitempty"`
}

// HasTags reports whether any tag sub-field is set.
func (d Descriptor) HasTags() bool {
	return d.Title != "" || d.Artist != "" || d.Album != "" || d.Year != "" || d.Genre != ""
}
