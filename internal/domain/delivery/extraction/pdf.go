package extraction

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFOptions tunes table detection. Distances are in PDF points.
type PDFOptions struct {
	// SnapTolerance merges ruling lines closer than this.
	SnapTolerance float64
	// EdgeMinLength ignores ruling edges shorter than this.
	EdgeMinLength float64
	// RowTolerance groups text fragments into one row when their baselines are this close.
	RowTolerance float64
	// ColumnTolerance lets a fragment start this far left of its column edge.
	ColumnTolerance float64
	// WordGap splits glyphs into separate words when the horizontal gap
	// between them exceeds this fraction of the font size.
	WordGap float64
}

func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		SnapTolerance:   3,
		EdgeMinLength:   3,
		RowTolerance:    3,
		ColumnTolerance: 2,
		WordGap:         0.2,
	}
}

// PDFDocument is a Document read with ledongthuc/pdf.
type PDFDocument struct {
	pages []Page
	meta  Metadata
}

// OpenPDF parses every page eagerly. Pages whose content cannot be decoded
// are kept as empty pages.
func OpenPDF(data []byte, opts PDFOptions) (doc *PDFDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	doc = &PDFDocument{meta: readMetadata(r)}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		doc.pages = append(doc.pages, readPage(p, opts))
	}
	return doc, nil
}

func (d *PDFDocument) Pages() []Page      { return d.pages }
func (d *PDFDocument) Metadata() Metadata { return d.meta }

func readMetadata(r *pdf.Reader) (meta Metadata) {
	defer func() {
		if recover() != nil {
			meta = Metadata{}
		}
	}()
	info := r.Trailer().Key("Info")
	return Metadata{
		CreationDate: info.Key("CreationDate").Text(),
		ModDate:      info.Key("ModDate").Text(),
	}
}

// fragment is a positioned run of text.
type fragment struct {
	x, y float64
	s    string
}

func readPage(p pdf.Page, opts PDFOptions) (page StaticPage) {
	defer func() {
		// the pdf package panics on malformed content streams
		if r := recover(); r != nil {
			page = StaticPage{}
		}
	}()

	content := p.Content()
	lines := groupRows(words(content.Text, opts), opts.RowTolerance)
	text := make([]string, 0, len(lines))
	for _, line := range lines {
		text = append(text, joinFragments(line))
	}

	page = StaticPage{Content: strings.Join(text, "\n")}
	if tbl := buildTable(lines, content.Rect, opts); len(tbl) > 0 {
		page.Grid = [][][]string{tbl}
	}
	return page
}

// words merges glyphs, in content stream order, into whitespace separated
// runs. A run also ends on a baseline change, a jump backwards or a gap wider
// than WordGap font sizes. Fonts without a Widths array report zero-width
// glyphs, so consecutive glyphs of one string share the same x.
func words(glyphs []pdf.Text, opts PDFOptions) []fragment {
	var (
		out  []fragment
		run  fragment
		sb   strings.Builder
		end  float64
		size float64
	)
	flush := func() {
		if sb.Len() > 0 {
			run.s = sb.String()
			out = append(out, run)
			sb.Reset()
		}
	}

	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			flush()
			continue
		}
		if sb.Len() > 0 {
			gap := g.X - end
			if math.Abs(g.Y-run.y) > opts.RowTolerance || gap < -opts.ColumnTolerance || gap > opts.WordGap*math.Max(size, 1) {
				flush()
			}
		}
		if sb.Len() == 0 {
			run = fragment{x: g.X, y: g.Y}
		}
		sb.WriteString(g.S)
		end = g.X + g.W
		size = g.FontSize
	}
	flush()
	return out
}

// groupRows clusters fragments into visual lines, top of the page first.
func groupRows(frags []fragment, tolerance float64) [][]fragment {
	sort.SliceStable(frags, func(i, j int) bool {
		if frags[i].y != frags[j].y {
			return frags[i].y > frags[j].y
		}
		return frags[i].x < frags[j].x
	})

	var (
		rows  [][]fragment
		lastY float64
	)
	for _, f := range frags {
		if len(rows) == 0 || math.Abs(lastY-f.y) > tolerance {
			rows = append(rows, []fragment{f})
			lastY = f.y
			continue
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], f)
	}

	for _, r := range rows {
		sort.SliceStable(r, func(i, j int) bool { return r[i].x < r[j].x })
	}
	return rows
}

func joinFragments(frags []fragment) string {
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		parts = append(parts, strings.TrimSpace(f.s))
	}
	return strings.Join(parts, " ")
}

// buildTable lays the page lines onto the grid drawn by ruling rectangles.
// Pages without at least two vertical rulings have no table.
//
// Only rectangles painted with the re operator are seen: the pdf package does
// not expose path segments, so tables ruled with stroked m/l lines produce no
// grid and are left to the line strategy.
func buildTable(lines [][]fragment, rects []pdf.Rect, opts PDFOptions) [][]string {
	var xs, ys []float64
	for _, r := range rects {
		w := math.Abs(r.Max.X - r.Min.X)
		h := math.Abs(r.Max.Y - r.Min.Y)
		minX, maxX := math.Min(r.Min.X, r.Max.X), math.Max(r.Min.X, r.Max.X)
		minY, maxY := math.Min(r.Min.Y, r.Max.Y), math.Max(r.Min.Y, r.Max.Y)

		switch {
		case w <= opts.SnapTolerance && h >= opts.EdgeMinLength:
			xs = append(xs, (minX+maxX)/2)
		case h <= opts.SnapTolerance && w >= opts.EdgeMinLength:
			ys = append(ys, (minY+maxY)/2)
		case w > opts.SnapTolerance && h > opts.SnapTolerance:
			xs = append(xs, minX, maxX)
			ys = append(ys, minY, maxY)
		}
	}

	cols := snap(xs, opts.SnapTolerance)
	if len(cols) < 2 {
		return nil
	}
	bands := snap(ys, opts.SnapTolerance)

	left, right := cols[0]-opts.ColumnTolerance, cols[len(cols)-1]
	var top, bottom float64
	if len(bands) >= 2 {
		bottom, top = bands[0]-opts.RowTolerance, bands[len(bands)-1]+opts.RowTolerance
	}

	var table [][]string
	for _, line := range lines {
		if len(bands) >= 2 && (line[0].y < bottom || line[0].y > top) {
			continue
		}

		row := make([]string, len(cols)-1)
		used := false
		for _, f := range line {
			if f.x < left || f.x >= right {
				continue
			}
			c := column(cols, f.x+opts.ColumnTolerance)
			if row[c] != "" {
				row[c] += " "
			}
			row[c] += strings.TrimSpace(f.s)
			used = true
		}
		if used {
			table = append(table, row)
		}
	}
	return table
}

// snap sorts positions and merges those within tolerance of each other.
func snap(vals []float64, tolerance float64) []float64 {
	if len(vals) == 0 {
		return nil
	}
	sort.Float64s(vals)

	out := []float64{vals[0]}
	for _, v := range vals[1:] {
		if v-out[len(out)-1] > tolerance {
			out = append(out, v)
		}
	}
	return out
}

// column returns the index of the cell between consecutive edges holding x.
func column(edges []float64, x float64) int {
	i := sort.SearchFloat64s(edges, x)
	if i > 0 && (i == len(edges) || edges[i] > x) {
		i--
	}
	return min(i, len(edges)-2)
}
