package extraction

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery"
)

func vertical(x float64) pdf.Rect {
	return pdf.Rect{Min: pdf.Point{X: x, Y: 600}, Max: pdf.Point{X: x + 0.5, Y: 700}}
}

func horizontal(y float64) pdf.Rect {
	return pdf.Rect{Min: pdf.Point{X: 10, Y: y}, Max: pdf.Point{X: 300, Y: y + 0.5}}
}

func TestBuildTable(t *testing.T) {
	lines := groupRows([]fragment{
		{x: 12, y: 750, s: "FACTURE"},
		{x: 12, y: 690, s: "Reference"},
		{x: 105, y: 690, s: "Designation"},
		{x: 205, y: 689, s: "Qte"},
		{x: 12, y: 670, s: "V100.001"},
		{x: 105, y: 670, s: "Balai"},
		{x: 140, y: 671, s: "carbone"},
		{x: 205, y: 670, s: "1 000"},
	}, 3)

	rects := []pdf.Rect{
		vertical(10), vertical(100), vertical(200), vertical(300),
		horizontal(700), horizontal(680), horizontal(660), horizontal(640),
	}

	tbl := buildTable(lines, rects, DefaultPDFOptions())

	assert.Equal(t, [][]string{
		{"Reference", "Designation", "Qte"},
		{"V100.001", "Balai carbone", "1 000"},
	}, tbl)
}

func TestBuildTable_NoRulings(t *testing.T) {
	lines := groupRows([]fragment{{x: 12, y: 690, s: "Reference"}}, 3)
	assert.Nil(t, buildTable(lines, nil, DefaultPDFOptions()))
}

func TestGroupRows(t *testing.T) {
	rows := groupRows([]fragment{
		{x: 50, y: 100, s: "b"},
		{x: 10, y: 101, s: "a"},
		{x: 10, y: 200, s: "top"},
	}, 3)

	assert.Len(t, rows, 2)
	assert.Equal(t, "top", joinFragments(rows[0]))
	assert.Equal(t, "a b", joinFragments(rows[1]))
}

func TestSnap(t *testing.T) {
	assert.Equal(t, []float64{10, 20}, snap([]float64{20, 10, 11.5, 21}, 3))
	assert.Nil(t, snap(nil, 3))
}

// singlePagePDF writes a one page PDF using unembedded Helvetica, so glyphs
// carry no widths, with content as the page stream.
func singlePagePDF(content string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// Lines are placed relative to each other, and the numeric columns of the
// first invoice line start a second run further right on the same baseline.
const relativeLayout = `BT
/F1 10 Tf
50 740 Td
(FACTURE no F123) Tj
0 -14 Td
(Date 15/01/2024) Tj
0 -28 Td
(85030010 OUI V100.001 PL BALAI CARBONE) Tj
250 0 Td
(1000 1,50 2,00 1500,00) Tj
-250 -14 Td
(85030010 NON V100.002 BALAI 50 1,50 2,00 75,00) Tj
0 -14 Td
(TOTAL 1050) Tj
ET`

const absoluteLayout = `BT
/F1 10 Tf
1 0 0 1 50 740 Tm
(FACTURE no F123) Tj
1 0 0 1 50 726 Tm
(Date 15/01/2024) Tj
1 0 0 1 50 698 Tm
(85030010 OUI V100.001 PL BALAI CARBONE) Tj
1 0 0 1 300 698 Tm
(1000 1,50 2,00 1500,00) Tj
1 0 0 1 50 684 Tm
(85030010 NON V100.002 BALAI 50 1,50 2,00 75,00) Tj
1 0 0 1 50 670 Tm
(TOTAL 1050) Tj
ET`

func TestOpenPDF_TextLines(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"positioned with Td", relativeLayout},
		{"positioned with Tm", absoluteLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := OpenPDF(singlePagePDF(tt.content), DefaultPDFOptions())
			require.NoError(t, err)
			require.Len(t, doc.Pages(), 1)

			assert.Equal(t, "FACTURE no F123\n"+
				"Date 15/01/2024\n"+
				"85030010 OUI V100.001 PL BALAI CARBONE 1000 1,50 2,00 1500,00\n"+
				"85030010 NON V100.002 BALAI 50 1,50 2,00 75,00\n"+
				"TOTAL 1050", doc.Pages()[0].Text())
			assert.Empty(t, doc.Pages()[0].Tables())
		})
	}
}

func TestExtract_GeneratedInvoice(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"positioned with Td", relativeLayout},
		{"positioned with Tm", absoluteLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := Extract(singlePagePDF(tt.content), "Tunisia")
			require.NoError(t, err)
			require.Len(t, events, 2)

			assert.Equal(t, "V100.001PL", events[0].MaterialCode)
			assert.Equal(t, int64(1000), events[0].Quantity)
			assert.Equal(t, "V100.002", events[1].MaterialCode)
			assert.Equal(t, int64(50), events[1].Quantity)

			for _, ev := range events {
				assert.Equal(t, "F123", ev.DeliveryNo)
				assert.Equal(t, "Tunisia", ev.Site)
				assert.Equal(t, delivery.StatusDispatched, ev.Status)
				assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), ev.Date)
			}
		})
	}
}

func TestWords(t *testing.T) {
	glyph := func(x, y, w float64, s string) pdf.Text {
		return pdf.Text{FontSize: 10, X: x, Y: y, W: w, S: s}
	}

	t.Run("zero width glyphs split on spaces", func(t *testing.T) {
		frags := words([]pdf.Text{
			glyph(50, 700, 0, "O"), glyph(50, 700, 0, "U"), glyph(50, 700, 0, "I"),
			glyph(50, 700, 0, " "),
			glyph(50, 700, 0, "P"), glyph(50, 700, 0, "L"),
		}, DefaultPDFOptions())

		assert.Equal(t, []fragment{{x: 50, y: 700, s: "OUI"}, {x: 50, y: 700, s: "PL"}}, frags)
	})

	t.Run("measured glyphs split on wide gaps", func(t *testing.T) {
		frags := words([]pdf.Text{
			glyph(50, 700, 6, "5"), glyph(56, 700, 6, "0"),
			glyph(90, 700, 6, "1"),
		}, DefaultPDFOptions())

		assert.Equal(t, []fragment{{x: 50, y: 700, s: "50"}, {x: 90, y: 700, s: "1"}}, frags)
	})

	t.Run("baseline change ends the word", func(t *testing.T) {
		frags := words([]pdf.Text{
			glyph(50, 700, 0, "A"), glyph(50, 686, 0, "B"),
		}, DefaultPDFOptions())

		assert.Equal(t, []fragment{{x: 50, y: 700, s: "A"}, {x: 50, y: 686, s: "B"}}, frags)
	})
}
