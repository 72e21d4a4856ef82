package export

// Section is one titled table of a document.
type Section struct {
	Heading string
	Headers []string
	Rows    [][]string
}

// Document is a printable summary made of sections.
type Document struct {
	Title    string
	Subtitle string
	Sections []Section
}

// KeyValue builds a two-column section from ordered label/value pairs.
func KeyValue(heading string, pairs ...[2]string) Section {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p[0], p[1]})
	}
	return Section{Heading: heading, Headers: []string{"Field", "Value"}, Rows: rows}
}
