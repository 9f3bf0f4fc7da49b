// Package service orchestrates uploads: a file is parsed and staged by
// Preview, then written to the ledgers by Commit.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/aggregator"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/extraction"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/normalizer"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/reconcile"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/repository"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/tabular"
	"github.com/FACorreiaa/delivery-ledger/pkg/metrics"
	"github.com/FACorreiaa/delivery-ledger/pkg/storage"
)

const (
	// PreviewRows is how many parsed rows a preview shows.
	PreviewRows = 20

	// DefaultSite is stamped on extracted rows when the document names no site.
	DefaultSite = "Tunisia"

	stagingNamespace = "staging"
	labelFileType    = "file_type"
	labelSource      = "source"
)

var (
	ErrUnsupportedFormat   = tabular.ErrUnsupportedFormat
	ErrNoData              = tabular.ErrNoData
	ErrUnknownFileType     = errors.New("unknown file type")
	ErrStagedBatchNotFound = errors.New("staged batch not found")
)

// Preview is a parsed, staged upload waiting to be committed.
type Preview struct {
	BatchID  uuid.UUID
	FileType delivery.FileType
	Filename string
	// Total is the number of staged rows.
	Total int
	// Deliveries or Forecasts holds the first PreviewRows rows, by file type.
	Deliveries []delivery.Event
	Forecasts  []delivery.Forecast
}

// CommitResult reports what a commit wrote.
type CommitResult struct {
	BatchID     uuid.UUID
	FileType    delivery.FileType
	Rows        int
	SourceLines int
	Report      reconcile.Report
}

func (r CommitResult) String() string {
	return fmt.Sprintf("%d rows (aggregated from %d lines)", r.Rows, r.SourceLines)
}

// Service runs the preview and commit flow.
type Service struct {
	staging     storage.Storage
	engine      *reconcile.Engine
	forecasts   repository.ForecastStore
	pipeline    *extraction.Pipeline
	refs        *normalizer.ReferenceNormalizer
	defaultSite string
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewService creates a service with the default extraction glossary.
func NewService(staging storage.Storage, engine *reconcile.Engine, forecasts repository.ForecastStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		staging:     staging,
		engine:      engine,
		forecasts:   forecasts,
		pipeline:    extraction.NewPipeline(extraction.DefaultConfig(), logger),
		refs:        normalizer.NewReferenceNormalizer(normalizer.DefaultSuffixTokens),
		defaultSite: DefaultSite,
		logger:      logger,
	}
}

// WithPipeline replaces the PDF pipeline and the site used when a document names none.
func (s *Service) WithPipeline(p *extraction.Pipeline, defaultSite string) *Service {
	s.pipeline = p
	if defaultSite != "" {
		s.defaultSite = defaultSite
	}
	return s
}

// WithReferenceNormalizer sets the suffix glossary for spreadsheet material codes.
func (s *Service) WithReferenceNormalizer(r *normalizer.ReferenceNormalizer) *Service {
	s.refs = r
	return s
}

// WithMetrics wires in file outcome counters.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Preview parses an upload and stages it for Commit.
func (s *Service) Preview(ctx context.Context, filename string, data []byte, fileType delivery.FileType) (*Preview, error) {
	p, err := s.preview(ctx, filename, data, fileType)
	if err != nil {
		s.metrics.ObserveFile(string(fileType), "rejected")
		s.logger.Warn("upload rejected",
			slog.String("file", filename),
			slog.String("file_type", string(fileType)),
			slog.Any("error", err),
		)
		return nil, err
	}

	s.metrics.ObserveFile(string(fileType), "staged")
	s.logger.Info("upload staged",
		slog.String("batch_id", p.BatchID.String()),
		slog.String("file", filename),
		slog.String("file_type", string(fileType)),
		slog.Int("rows", p.Total),
	)
	return p, nil
}

func (s *Service) preview(ctx context.Context, filename string, data []byte, fileType delivery.FileType) (*Preview, error) {
	ext, err := checkFormat(filename, fileType)
	if err != nil {
		return nil, err
	}

	p := &Preview{FileType: fileType, Filename: filename}
	var staged any

	switch fileType {
	case delivery.FileTypeDelivery:
		events, err := s.parseDeliveries(ctx, filename, ext, data)
		if err != nil {
			return nil, err
		}
		p.Total = len(events)
		p.Deliveries = events[:min(len(events), PreviewRows)]
		staged = stageDeliveries(events)

	case delivery.FileTypeEDI:
		forecasts, err := parseForecasts(filename, data)
		if err != nil {
			return nil, err
		}
		p.Total = len(forecasts)
		p.Forecasts = forecasts[:min(len(forecasts), PreviewRows)]
		staged = stageForecasts(forecasts)
	}

	if p.Total == 0 {
		return nil, fmt.Errorf("%s: %w", filename, ErrNoData)
	}

	body, err := gocsv.MarshalBytes(staged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode staged rows: %w", err)
	}

	labels := map[string]string{labelFileType: string(fileType), labelSource: filename}
	info, err := s.staging.Upload(ctx, stagingNamespace, string(fileType)+".csv", "text/csv", labels, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}
	p.BatchID = info.ID
	return p, nil
}

// checkFormat enforces the accepted extensions per file type.
func checkFormat(filename string, fileType delivery.FileType) (string, error) {
	if fileType != delivery.FileTypeDelivery && fileType != delivery.FileTypeEDI {
		return "", fmt.Errorf("%w: %q", ErrUnknownFileType, fileType)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv", ".xls", ".xlsx":
		return ext, nil
	case ".pdf":
		if fileType != delivery.FileTypeDelivery {
			return "", fmt.Errorf("%w: PDF is only accepted for delivery files", ErrUnsupportedFormat)
		}
		return ext, nil
	}
	return "", fmt.Errorf("%w: %q (expected csv, xls, xlsx or pdf)", ErrUnsupportedFormat, ext)
}

func (s *Service) parseDeliveries(ctx context.Context, filename, ext string, data []byte) ([]delivery.Event, error) {
	if ext == ".pdf" {
		return s.pipeline.ExtractPDF(ctx, data, s.defaultSite)
	}

	table, err := tabular.Read(filename, data)
	if err != nil {
		return nil, err
	}
	records, err := table.Deliveries()
	if err != nil {
		return nil, err
	}

	events := make([]delivery.Event, len(records))
	for i, r := range records {
		events[i] = r.Event(s.refs)
	}
	return events, nil
}

func parseForecasts(filename string, data []byte) ([]delivery.Forecast, error) {
	table, err := tabular.Read(filename, data)
	if err != nil {
		return nil, err
	}
	records, err := table.Forecasts()
	if err != nil {
		return nil, err
	}

	out := make([]delivery.Forecast, len(records))
	for i, r := range records {
		out[i] = r.Forecast()
	}
	return out, nil
}

// Commit writes a staged batch. Delivery batches are aggregated and then
// applied with mode; EDI batches are appended. The staged file is removed
// whether or not the commit succeeds.
func (s *Service) Commit(ctx context.Context, batchID uuid.UUID, mode reconcile.Mode) (*CommitResult, error) {
	rc, info, err := s.staging.Download(ctx, stagingNamespace, batchID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrStagedBatchNotFound, batchID)
	}
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	defer s.discard(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged batch: %w", err)
	}

	fileType := delivery.FileType(info.Labels[labelFileType])
	result, err := s.commit(ctx, fileType, data, mode)
	if err != nil {
		s.metrics.ObserveFile(string(fileType), "failed")
		return nil, err
	}
	result.BatchID = batchID

	s.metrics.ObserveFile(string(fileType), "committed")
	s.logger.Info("batch committed",
		slog.String("batch_id", batchID.String()),
		slog.String("source", info.Labels[labelSource]),
		slog.String("file_type", string(fileType)),
		slog.Int("rows", result.Rows),
		slog.Int("source_lines", result.SourceLines),
	)
	return result, nil
}

func (s *Service) commit(ctx context.Context, fileType delivery.FileType, data []byte, mode reconcile.Mode) (*CommitResult, error) {
	switch fileType {
	case delivery.FileTypeDelivery:
		var rows []stagedDelivery
		if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode staged batch: %w", err)
		}
		events := make([]delivery.Event, len(rows))
		for i, r := range rows {
			events[i] = r.event()
		}

		agg := aggregator.Aggregate(events)
		report, err := s.engine.Apply(ctx, agg.Events, mode)
		if err != nil {
			return nil, err
		}
		return &CommitResult{
			FileType:    fileType,
			Rows:        len(agg.Events),
			SourceLines: agg.SourceLines,
			Report:      report,
		}, nil

	case delivery.FileTypeEDI:
		var rows []stagedForecast
		if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode staged batch: %w", err)
		}
		forecasts := make([]delivery.Forecast, len(rows))
		for i, r := range rows {
			forecasts[i] = r.forecast()
		}

		n, err := s.forecasts.AppendForecasts(ctx, forecasts)
		if err != nil {
			return nil, err
		}
		return &CommitResult{FileType: fileType, Rows: n, SourceLines: len(rows)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFileType, fileType)
}

// Ingest previews and immediately commits an upload.
func (s *Service) Ingest(ctx context.Context, filename string, data []byte, fileType delivery.FileType, mode reconcile.Mode) (*CommitResult, error) {
	p, err := s.Preview(ctx, filename, data, fileType)
	if err != nil {
		return nil, err
	}
	return s.Commit(ctx, p.BatchID, mode)
}

// Sweep deletes staged batches older than olderThan and returns how many
// were removed.
func (s *Service) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	files, err := s.staging.List(ctx, stagingNamespace)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	var errs []error
	for _, f := range files {
		if !f.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.staging.Delete(ctx, stagingNamespace, f.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (s *Service) discard(ctx context.Context, batchID uuid.UUID) {
	if err := s.staging.Delete(context.WithoutCancel(ctx), stagingNamespace, batchID); err != nil {
		s.logger.Warn("failed to remove staged batch",
			slog.String("batch_id", batchID.String()),
			slog.Any("error", err),
		)
	}
}
