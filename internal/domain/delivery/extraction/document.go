package extraction

// Page is one page of a parsed document.
type Page interface {
	// Text returns the page text, one visual line per "\n"-separated line.
	Text() string
	// Tables returns best-effort tables as rows of cell strings.
	Tables() [][][]string
}

// Metadata carries the document info dates in their raw form.
type Metadata struct {
	CreationDate string
	ModDate      string
}

// Document is a page-structured document.
type Document interface {
	Pages() []Page
	Metadata() Metadata
}

// StaticPage is an in-memory Page, used for pre-parsed content.
type StaticPage struct {
	Content string
	Grid    [][][]string
}

func (p StaticPage) Text() string         { return p.Content }
func (p StaticPage) Tables() [][][]string { return p.Grid }

// StaticDocument is an in-memory Document.
type StaticDocument struct {
	PageList []Page
	Info     Metadata
}

func (d StaticDocument) Pages() []Page      { return d.PageList }
func (d StaticDocument) Metadata() Metadata { return d.Info }
