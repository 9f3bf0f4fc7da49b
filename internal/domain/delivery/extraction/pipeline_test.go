package extraction

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/normalizer"
)

const invoiceHeader = "AVOCARBON TUNISIA SA\nFACTURE N° F2024-001\nDate 15/01/2024\n"

func invoiceTable() [][]string {
	return [][]string{
		{"Code", "Référence", "Désignation", "Quantité", "Prix unitaire"},
		{"85030010", "V100.001", "Balai", "1 000", "1,50"},
		{"85030010", "V100.002", "Balai", "50", "2,00"},
		{"TOTAL", "", "", "1 050", ""},
	}
}

func TestPipeline_Run_TableStrategy(t *testing.T) {
	doc := StaticDocument{PageList: []Page{
		StaticPage{Content: invoiceHeader, Grid: [][][]string{invoiceTable()}},
	}}

	events := NewPipeline(DefaultConfig(), nil).Run(context.Background(), doc, "Default")

	require.Len(t, events, 2)
	assert.Equal(t, "V100.001", events[0].MaterialCode)
	assert.Equal(t, int64(1000), events[0].Quantity)
	assert.Equal(t, "V100.002", events[1].MaterialCode)
	assert.Equal(t, int64(50), events[1].Quantity)

	for _, ev := range events {
		assert.Equal(t, "F2024-001", ev.DeliveryNo)
		assert.Equal(t, "Tunisia", ev.Site)
		assert.Equal(t, delivery.StatusDispatched, ev.Status)
		assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), ev.Date)
	}
}

func TestPipeline_Run_LineFallback(t *testing.T) {
	text := invoiceHeader +
		"85030010 OUI V502.730 SP PPC 11TA BALAIS 960 1,9672 0,3262 1888,51 EUR\n" +
		"85030010 NON V100.001 BALAI CARBONE 50 1,50 2,00 75,00\n" +
		"TOTAL 85030010 OUI V999.999 X 1 1,0 1,0 1,0\n" +
		"Conditions de paiement: 30 jours\n"

	doc := StaticDocument{PageList: []Page{
		// a table without recognizable headers yields nothing
		StaticPage{Content: text, Grid: [][][]string{{{"a", "b"}, {"c", "d"}}}},
	}}

	events := NewPipeline(DefaultConfig(), nil).Run(context.Background(), doc, "Default")

	require.Len(t, events, 2)
	assert.Equal(t, "V502.730SP", events[0].MaterialCode)
	assert.Equal(t, int64(960), events[0].Quantity)
	assert.Equal(t, "V100.001", events[1].MaterialCode)
	assert.Equal(t, int64(50), events[1].Quantity)
}

func TestPipeline_Run_TablePreemptsLines(t *testing.T) {
	text := invoiceHeader + "85030010 OUI V502.730 SP PPC 11TA BALAIS 960 1,9672 0,3262 1888,51 EUR\n"
	doc := StaticDocument{PageList: []Page{
		StaticPage{Content: text, Grid: [][][]string{invoiceTable()}},
	}}

	events := NewPipeline(DefaultConfig(), nil).Run(context.Background(), doc, "Default")

	require.Len(t, events, 2)
	for _, ev := range events {
		assert.NotEqual(t, "V502.730SP", ev.MaterialCode)
	}
}

func TestPipeline_Run_Fallbacks(t *testing.T) {
	doc := StaticDocument{
		PageList: []Page{StaticPage{Grid: [][][]string{invoiceTable()}}},
		Info:     Metadata{CreationDate: "D:20240301120000+01'00'"},
	}

	events := NewPipeline(DefaultConfig(), nil).Run(context.Background(), doc, "Lyon")

	require.Len(t, events, 2)
	assert.Equal(t, delivery.UnknownDeliveryNo, events[0].DeliveryNo)
	assert.Equal(t, "Lyon", events[0].Site)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), events[0].Date)
}

func TestPipeline_Run_Deduplicates(t *testing.T) {
	tbl := [][]string{
		{"Reference", "Qte"},
		{"V100.001", "10"},
		{"V100.001", "10"},
		{"V100.001", "11"},
	}
	doc := StaticDocument{PageList: []Page{StaticPage{Content: invoiceHeader, Grid: [][][]string{tbl}}}}

	events := NewPipeline(DefaultConfig(), nil).Run(context.Background(), doc, "Default")

	require.Len(t, events, 2)
	assert.Equal(t, int64(10), events[0].Quantity)
	assert.Equal(t, int64(11), events[1].Quantity)
}

func TestPipeline_Run_NoData(t *testing.T) {
	doc := StaticDocument{PageList: []Page{StaticPage{Content: "nothing to see"}}}

	events := NewPipeline(DefaultConfig(), nil).Run(context.Background(), doc, "Default")
	assert.Empty(t, events)
}

func TestTableExtractor_Extract(t *testing.T) {
	refs := normalizer.NewReferenceNormalizer(normalizer.DefaultSuffixTokens)
	ex := NewTableExtractor(NewVocabulary(DefaultReferenceHeaders, DefaultQuantityHeaders), refs)

	t.Run("suffix in adjacent cell", func(t *testing.T) {
		page := StaticPage{Grid: [][][]string{{
			{"Reference", "Type", "Qte"},
			{"V504.243", "PL", "10"},
		}}}
		assert.Equal(t, []Candidate{{MaterialCode: "V504.243PL", Quantity: 10}}, ex.Extract(page))
	})

	t.Run("header on second row", func(t *testing.T) {
		page := StaticPage{Grid: [][][]string{{
			{"Bon de livraison", ""},
			{"REF", "QTY"},
			{"A-100", "7"},
		}}}
		assert.Equal(t, []Candidate{{MaterialCode: "A-100", Quantity: 7}}, ex.Extract(page))
	})

	t.Run("invalid rows skipped", func(t *testing.T) {
		page := StaticPage{Grid: [][][]string{{
			{"Reference", "Quantite"},
			{"-X-", "5"},
			{"V1.2", "n/a"},
			{"", "3"},
			{"V1.3", ""},
			{"V1.4", "4"},
		}}}
		assert.Equal(t, []Candidate{{MaterialCode: "V1.4", Quantity: 4}}, ex.Extract(page))
	})

	t.Run("single row table ignored", func(t *testing.T) {
		page := StaticPage{Grid: [][][]string{{{"Reference", "Qte"}}}}
		assert.Empty(t, ex.Extract(page))
	})

	t.Run("loose heuristic", func(t *testing.T) {
		custom := NewTableExtractor(NewVocabulary([]string{"CODE"}, []string{"NOMBRE"}), refs)
		page := StaticPage{Grid: [][][]string{{
			{"prix ref", "item ref", "qty"},
			{"9.99", "B-200", "12"},
		}}}
		assert.Equal(t, []Candidate{{MaterialCode: "B-200", Quantity: 12}}, custom.Extract(page))
	})
}

func TestLineExtractor_CustomSuffixes(t *testing.T) {
	refs := normalizer.NewReferenceNormalizer([]string{"KT"})
	ex := NewLineExtractor([]string{"KT"}, refs)

	page := StaticPage{Content: "85030010 OUI V7.1 KT KIT 3 1,00 2,00 EUR"}
	assert.Equal(t, []Candidate{{MaterialCode: "V7.1KT", Quantity: 3}}, ex.Extract(page))

	none := NewLineExtractor(nil, normalizer.NewReferenceNormalizer(nil))
	page = StaticPage{Content: "85030010 NON V7.1 KIT 3 1,00 2,00 EUR"}
	assert.Equal(t, []Candidate{{MaterialCode: "V7.1", Quantity: 3}}, none.Extract(page))
}

func TestHeaderParser_Parse(t *testing.T) {
	p := NewHeaderParser(DefaultSiteRules())

	t.Run("labeled date wins", func(t *testing.T) {
		doc := StaticDocument{PageList: []Page{StaticPage{Content: "Echeance 01/02/2024\nDate 3/1/2024\nFacture no 77/A"}}}
		h := p.Parse(doc)
		assert.Equal(t, "77/A", h.DeliveryNo)
		assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), h.Date)
		assert.Empty(t, h.Site)
	})

	t.Run("any date fallback", func(t *testing.T) {
		doc := StaticDocument{PageList: []Page{StaticPage{Content: "Tunis le 25/12/2023"}}}
		assert.Equal(t, time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC), p.Parse(doc).Date)
	})

	t.Run("metadata mod date", func(t *testing.T) {
		doc := StaticDocument{Info: Metadata{CreationDate: "garbage", ModDate: "D:20231105"}}
		assert.Equal(t, time.Date(2023, 11, 5, 0, 0, 0, 0, time.UTC), p.Parse(doc).Date)
	})

	t.Run("custom site rule", func(t *testing.T) {
		custom := NewHeaderParser([]SiteRule{{Marker: regexp.MustCompile(`(?i)ACME`), Site: "Poznan"}})
		doc := StaticDocument{PageList: []Page{StaticPage{Content: "acme corp"}}}
		assert.Equal(t, "Poznan", custom.Parse(doc).Site)
	})
}

func TestVocabulary_Folding(t *testing.T) {
	v := NewVocabulary(DefaultReferenceHeaders, DefaultQuantityHeaders)

	assert.True(t, v.IsQuantity("Quantité livrée"))
	assert.True(t, v.IsReference("Référence article"))
	assert.False(t, v.IsReference("Désignation"))
	assert.False(t, v.IsQuantity(""))

	empty := NewVocabulary(nil, nil)
	assert.False(t, empty.IsReference("REF"))
}

func TestExtract_InvalidPDF(t *testing.T) {
	_, err := Extract([]byte("definitely not a pdf"), "Tunisia")
	assert.Error(t, err)
}
