package source

// Line is one deliverable line of source text and the crate it came from.
type Line struct {
	Text   string `json:"text" yaml:"text"`
	Origin string `json:"origin" yaml:"origin"`
}

// String renders the line the way the dump command prints it.
func (l Line) String() string {
	return l.Text + " ::: " + l.Origin
}
