package main

// Drive one tender through OCR, evaluation and export without the HTTP service:
//   TENDER_API_TOKEN=... go run ./cmd/evaluate -tender 12 -vendors 3,4 -export pdf

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"tender-evaluator/internal/bootstrap"
	"tender-evaluator/internal/exports"
	"tender-evaluator/internal/shared/config"
	localstore "tender-evaluator/internal/shared/storage/object/local"
	"tender-evaluator/internal/shared/telemetry"
	"tender-evaluator/internal/tenderapi"
	"tender-evaluator/internal/workflow"
)

type options struct {
	TenderID    int64
	VendorIDs   []int64
	CriteriaIDs []int64
	Format      string
	ArchiveDir  string
}

type report struct {
	TenderID     int64                       `json:"tenderId"`
	EvaluationID string                      `json:"evaluationId,omitempty"`
	OCR          workflow.BatchSummary       `json:"ocr"`
	Results      []workflow.EvaluationResult `json:"results"`
	Export       *workflow.ExportRecord      `json:"export,omitempty"`
}

func main() {
	var (
		tenderID  = flag.Int64("tender", 0, "tender id (required)")
		vendors   = flag.String("vendors", "", "comma-separated vendor ids; default all vendors with documents")
		criteria  = flag.String("criteria", "", "comma-separated criterion ids; default all active criteria")
		format    = flag.String("export", "", "export format after evaluation (pdf, excel, csv); empty skips export")
		archive   = flag.String("archive-dir", "", "directory to archive the export into")
		username  = flag.String("username", os.Getenv("TENDER_API_USERNAME"), "login user when no token is given")
		password  = flag.String("password", os.Getenv("TENDER_API_PASSWORD"), "login password")
		userLabel = flag.String("user", "cli", "user id recorded on events and archive keys")
	)
	flag.Parse()

	opts := options{TenderID: *tenderID, Format: *format, ArchiveDir: *archive}
	var err error
	if opts.VendorIDs, err = parseIDs(*vendors); err != nil {
		log.Fatalf("-vendors: %v", err)
	}
	if opts.CriteriaIDs, err = parseIDs(*criteria); err != nil {
		log.Fatalf("-criteria: %v", err)
	}
	if opts.TenderID <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)
	telemetry.SetService("tender-evaluate")
	token := strings.TrimSpace(os.Getenv("TENDER_API_TOKEN"))
	if token == "" {
		login, err := tenderapi.NewClient(cfg.TenderAPIBaseURL, nil, cfg.TenderAPITimeout).Login(ctx, *username, *password)
		if err != nil {
			log.Fatalf("login: %v", err)
		}
		token = login.AccessToken
	}

	client := tenderapi.NewClient(cfg.TenderAPIBaseURL, tenderapi.StaticToken(token), cfg.TenderAPITimeout)
	deps := workflow.Deps{API: client, UserID: *userLabel, Options: bootstrap.WorkflowOptions(cfg)}
	if opts.ArchiveDir != "" {
		deps.Archiver = &exports.Service{Downloader: client, Store: localstore.New(opts.ArchiveDir)}
	}
	ctrl := workflow.NewController(deps)

	if err := run(ctx, ctrl, opts, os.Stdout); err != nil {
		log.Fatalf("evaluate: %v", err)
	}
}

// run drives ctrl through the whole workflow and writes a JSON report to out.
// Notices are logged as they are produced.
func run(ctx context.Context, ctrl *workflow.Controller, opts options, out io.Writer) error {
	defer logNotices(ctrl)

	if err := ctrl.LoadTenders(ctx); err != nil {
		return err
	}
	if err := ctrl.LoadCriteria(ctx); err != nil {
		return err
	}
	logNotices(ctrl)
	if err := ctrl.SelectTender(ctx, opts.TenderID); err != nil {
		return err
	}
	if len(opts.VendorIDs) == 0 {
		if err := ctrl.SelectAllAvailable(); err != nil {
			return err
		}
	} else {
		for _, id := range opts.VendorIDs {
			if err := ctrl.ToggleVendor(id); err != nil {
				return err
			}
		}
	}
	if err := ctrl.ProceedToExtraction(ctx); err != nil {
		return err
	}
	logNotices(ctrl)

	summary, err := ctrl.RunOCRForAllPending(ctx)
	if err != nil {
		return err
	}
	logNotices(ctrl)

	in := ctrl.SelectionInput()
	if len(opts.CriteriaIDs) > 0 {
		in.CriteriaIDs = opts.CriteriaIDs
	}
	if err := ctrl.RunEvaluation(ctx, in); err != nil {
		return err
	}

	rep := report{TenderID: opts.TenderID, OCR: summary}
	if opts.Format != "" {
		rec, err := ctrl.ExportResults(ctx, opts.Format)
		if err != nil && !errors.Is(err, workflow.ErrRejected) {
			return err
		}
		if err == nil {
			rep.Export = &rec
		}
	}
	snap := ctrl.Snapshot()
	rep.EvaluationID = snap.EvaluationID
	rep.Results = snap.Results

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func logNotices(ctrl *workflow.Controller) {
	for _, n := range ctrl.DrainNotices() {
		log.Printf("[%s] %s", n.Level, n.Message)
	}
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
