// Command ledger ingests delivery invoices, delivery spreadsheets and EDI
// forecasts into the delivery ledger.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/reconcile"
	"github.com/FACorreiaa/delivery-ledger/internal/domain/delivery/service"
	"github.com/FACorreiaa/delivery-ledger/pkg/config"
	"github.com/FACorreiaa/delivery-ledger/pkg/cron"
)

const usage = `usage: ledger <command> [flags]

commands:
  preview  -type delivery|edi -file PATH   parse and stage a file
  commit   -batch ID [-merge]              write a staged batch
  ingest   -type delivery|edi -file PATH [-merge]
  sweep    [-ttl DURATION]                 remove expired staged batches
  migrate                                  apply database migrations
  serve                                    run the sweeper and /metrics until stopped
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	logger := cfg.Log.Logger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "preview":
		err = runPreview(ctx, cfg, logger, rest)
	case "commit":
		err = runCommit(ctx, cfg, logger, rest)
	case "ingest":
		err = runIngest(ctx, cfg, logger, rest)
	case "sweep":
		err = runSweep(ctx, cfg, logger, rest)
	case "migrate":
		err = runMigrate(ctx, cfg, logger)
	case "serve":
		err = runServe(ctx, cfg, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	if err != nil {
		logger.Error("command failed", slog.String("command", cmd), slog.Any("error", err))
		return 1
	}
	return 0
}

type fileFlags struct {
	fileType string
	path     string
	merge    bool
}

func parseFileFlags(name string, args []string, withMerge bool) (fileFlags, error) {
	var f fileFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&f.fileType, "type", "delivery", "file type: delivery or edi")
	fs.StringVar(&f.path, "file", "", "path of the file to read (required)")
	if withMerge {
		fs.BoolVar(&f.merge, "merge", false, "sum into existing rows instead of reconciling")
	}
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.path == "" {
		return f, errors.New("-file is required")
	}
	return f, nil
}

func mode(merge bool) reconcile.Mode {
	if merge {
		return reconcile.ModeMerge
	}
	return reconcile.ModeReconcile
}

func readUpload(f fileFlags) (delivery.FileType, []byte, error) {
	fileType, ok := delivery.ParseFileType(f.fileType)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", service.ErrUnknownFileType, f.fileType)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	return fileType, data, nil
}

func runPreview(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	f, err := parseFileFlags("preview", args, false)
	if err != nil {
		return err
	}
	fileType, data, err := readUpload(f)
	if err != nil {
		return err
	}

	deps, err := InitDependencies(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	p, err := deps.Service.Preview(ctx, filepath.Base(f.path), data, fileType)
	if err != nil {
		return err
	}
	printPreview(os.Stdout, p)
	return nil
}

func runCommit(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("commit", flag.ContinueOnError)
	batch := fs.String("batch", "", "staged batch id (required)")
	merge := fs.Bool("merge", false, "sum into existing rows instead of reconciling")
	if err := fs.Parse(args); err != nil {
		return err
	}
	batchID, err := uuid.Parse(*batch)
	if err != nil {
		return fmt.Errorf("invalid -batch: %w", err)
	}

	deps, err := InitDependencies(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	result, err := deps.Service.Commit(ctx, batchID, mode(*merge))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Inserted %s\n", result)
	return nil
}

func runIngest(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	f, err := parseFileFlags("ingest", args, true)
	if err != nil {
		return err
	}
	fileType, data, err := readUpload(f)
	if err != nil {
		return err
	}

	deps, err := InitDependencies(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	result, err := deps.Service.Ingest(ctx, filepath.Base(f.path), data, fileType, mode(f.merge))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Inserted %s\n", result)
	return nil
}

func runSweep(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	ttl := fs.Duration("ttl", cfg.Storage.StagingTTL, "remove staged batches older than this")
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, err := InitDependencies(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	removed, err := deps.Service.Sweep(ctx, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Removed %d staged batches\n", removed)
	return nil
}

func runMigrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := InitDependencies(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	deps.Cleanup()
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := InitDependencies(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	scheduler := cron.NewScheduler(deps.Service, cfg.Scheduler.SweepSchedule, cfg.Storage.StagingTTL, logger)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() { <-scheduler.Stop().Done() }()

	if !cfg.Observability.MetricsEnabled {
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Observability.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func printPreview(w io.Writer, p *service.Preview) {
	fmt.Fprintf(w, "Batch %s (%s, %d rows)\n", p.BatchID, p.FileType, p.Total)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	switch p.FileType {
	case delivery.FileTypeDelivery:
		fmt.Fprintln(tw, "Site\tAVOMaterialNo\tDeliveryNo\tQuantity\tDate\tStatus")
		for _, e := range p.Deliveries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
				e.Site, e.MaterialCode, e.DeliveryNo, e.Quantity, delivery.FormatDate(e.Date), e.Status)
		}
	case delivery.FileTypeEDI:
		fmt.Fprintln(tw, "Site\tClientCode\tClientMaterialNo\tAVOMaterialNo\tDateFrom\tDateUntil\tQuantity\tEDIStatus")
		for _, f := range p.Forecasts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				f.Site, f.ClientCode, f.ClientMaterialNo, f.MaterialCode, f.DateFrom, f.DateUntil, f.Quantity, f.EDIStatus)
		}
	}
}
