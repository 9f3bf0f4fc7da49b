// Package extraction turns invoice documents into canonical delivery events.
//
// A header pass resolves the document number, date and site from page one.
// Extractors then run in priority order (tables first, positional lines as a
// fallback) and the first one that yields rows wins. Every accepted row is a
// Dispatched event stamped with the header values.
package extraction

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/normalizer"
	"github.com/FACorreiaa/delivery-ledger/pkg/metrics"
)

var tracer = otel.Tracer("github.com/FACorreiaa/delivery-ledger/extraction")

// Config holds the business glossary the pipeline matches against.
type Config struct {
	SuffixTokens     []string
	ReferenceHeaders []string
	QuantityHeaders  []string
	SiteRules        []SiteRule
	PDF              PDFOptions
}

// DefaultConfig returns the glossary for AVO invoices.
func DefaultConfig() Config {
	return Config{
		SuffixTokens:     normalizer.DefaultSuffixTokens,
		ReferenceHeaders: DefaultReferenceHeaders,
		QuantityHeaders:  DefaultQuantityHeaders,
		SiteRules:        DefaultSiteRules(),
		PDF:              DefaultPDFOptions(),
	}
}

// Pipeline runs the header pass and the extractor chain.
type Pipeline struct {
	header     *HeaderParser
	extractors []Extractor
	pdf        PDFOptions
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewPipeline builds the table-then-line pipeline from cfg.
func NewPipeline(cfg Config, logger *slog.Logger) *Pipeline {
	refs := normalizer.NewReferenceNormalizer(cfg.SuffixTokens)
	return NewPipelineWithExtractors(
		NewHeaderParser(cfg.SiteRules),
		[]Extractor{
			NewTableExtractor(NewVocabulary(cfg.ReferenceHeaders, cfg.QuantityHeaders), refs),
			NewLineExtractor(cfg.SuffixTokens, refs),
		},
		cfg.PDF,
		logger,
	)
}

// NewPipelineWithExtractors builds a pipeline with a custom extractor chain.
func NewPipelineWithExtractors(header *HeaderParser, extractors []Extractor, pdf PDFOptions, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		header:     header,
		extractors: extractors,
		pdf:        pdf,
		logger:     logger,
	}
}

// WithMetrics records per-strategy row counts.
func (p *Pipeline) WithMetrics(m *metrics.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// Extract parses PDF bytes with the default glossary.
func Extract(data []byte, defaultSite string) ([]delivery.Event, error) {
	return NewPipeline(DefaultConfig(), nil).ExtractPDF(context.Background(), data, defaultSite)
}

// ExtractPDF opens PDF bytes and runs the pipeline over them.
func (p *Pipeline) ExtractPDF(ctx context.Context, data []byte, defaultSite string) ([]delivery.Event, error) {
	doc, err := OpenPDF(data, p.pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	return p.Run(ctx, doc, defaultSite), nil
}

// Run extracts deduplicated events from doc. An empty result means no data
// was found; it is not an error.
func (p *Pipeline) Run(ctx context.Context, doc Document, defaultSite string) []delivery.Event {
	_, span := tracer.Start(ctx, "extraction.Run")
	defer span.End()

	h := p.header.Parse(doc)
	deliveryNo := h.DeliveryNo
	if deliveryNo == "" {
		deliveryNo = delivery.UnknownDeliveryNo
	}
	site := h.Site
	if site == "" {
		site = defaultSite
	}

	pages := doc.Pages()
	var (
		candidates []Candidate
		strategy   string
	)
	for _, ex := range p.extractors {
		for _, page := range pages {
			candidates = append(candidates, ex.Extract(page)...)
		}
		if len(candidates) > 0 {
			strategy = ex.Name()
			break
		}
		p.logger.Debug("extractor found no rows", slog.String("strategy", ex.Name()))
	}

	events := make([]delivery.Event, 0, len(candidates))
	seen := make(map[delivery.Event]struct{}, len(candidates))
	for _, c := range candidates {
		ev := delivery.Event{
			Site:         site,
			MaterialCode: c.MaterialCode,
			DeliveryNo:   deliveryNo,
			Date:         h.Date,
			Quantity:     c.Quantity,
			Status:       delivery.StatusDispatched,
		}
		if _, dup := seen[ev]; dup {
			continue
		}
		seen[ev] = struct{}{}
		events = append(events, ev)
	}

	span.SetAttributes(
		attribute.String("extraction.strategy", strategy),
		attribute.Int("extraction.rows", len(events)),
	)
	p.metrics.ObserveExtraction(strategy, len(events))
	p.logger.Info("document extracted",
		slog.String("strategy", strategy),
		slog.String("delivery_no", deliveryNo),
		slog.String("date", delivery.FormatDate(h.Date)),
		slog.String("site", site),
		slog.Int("pages", len(pages)),
		slog.Int("rows", len(events)),
	)
	return events
}
