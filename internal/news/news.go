package news

// MaxStories caps how many stories a ResultSet keeps.
const MaxStories = 20

// Story is one decoded headline. Abstract and Source may be empty.
type Story struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract,omitempty"`
	URL      string `json:"url"`
	Source   string `json:"source,omitempty"`
}

// ResultSet is what a fetch cycle produces and what the cache persists.
type ResultSet struct {
	Stories []Story `json:"stories"`
}

// Empty reports whether there is nothing to display.
func (r ResultSet) Empty() bool {
	return len(r.Stories) == 0
}

// Byline renders the line shown under the headline: the source, the quoted
// abstract, or both joined by a dash.
func (s Story) Byline() string {
	if s.Abstract == "" {
		return s.Source
	}
	quoted := "“" + s.Abstract + "”"
	if s.Source == "" {
		return quoted
	}
	return s.Source + " - " + quoted
}
