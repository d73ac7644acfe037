// Command intro-audit prints attribution and outcome inconsistencies and,
// with -fix, repairs the auto-fixable ones.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"intro_sales_backend/internal/intros/audit"
	"intro_sales_backend/internal/intros/repository"
	"intro_sales_backend/internal/intros/service"
	"intro_sales_backend/platform/config"
	"intro_sales_backend/platform/db"
	"intro_sales_backend/platform/logger"
)

const defaultEditor = "system:intro-audit"

func main() {
	fix := flag.Bool("fix", false, "apply auto-fixable repairs after reporting")
	asJSON := flag.Bool("json", false, "print the report as JSON")
	editor := flag.String("editor", defaultEditor, "name stamped on repaired records")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := service.New(repository.New(pool), nil, cfg, log)
	if err := run(ctx, svc, os.Stdout, *fix, *asJSON, *editor); err != nil {
		log.Error("intro audit failed", "error", err)
		os.Exit(1)
	}
}

type auditor interface {
	Audit(ctx context.Context) (audit.Report, error)
	AutoFix(ctx context.Context, editor, trigger string) (audit.BatchResult, error)
}

func run(ctx context.Context, svc auditor, out io.Writer, fix, asJSON bool, editor string) error {
	report, err := svc.Audit(ctx)
	if err != nil {
		return err
	}
	if err := printReport(out, report, asJSON); err != nil {
		return err
	}
	if !fix {
		return nil
	}

	result, err := svc.AutoFix(ctx, editor, service.TriggerManual)
	if err != nil {
		return err
	}
	return printBatch(out, result, asJSON)
}

func printReport(out io.Writer, report audit.Report, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(out).Encode(report)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tMEMBER\tCURRENT\tSUGGESTED\tAUTO-FIX")
	for _, issue := range report.Issues {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n", issue.Kind, issue.MemberName, issue.Current, issue.Suggested, issue.AutoFixable)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%d issue(s)\n", report.Total())
	return err
}

func printBatch(out io.Writer, result audit.BatchResult, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(out).Encode(result)
	}
	for _, item := range result.Items {
		if item.Applied {
			continue
		}
		fmt.Fprintf(out, "failed %s %s: %s\n", item.Kind, item.RecordID, item.Error)
	}
	_, err := fmt.Fprintf(out, "auto-fix: %d succeeded, %d failed\n", result.Succeeded, result.Failed)
	return err
}
