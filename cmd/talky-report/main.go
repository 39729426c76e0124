// Command talky-report prints the expense report for a JSON record export.
//
//	talky-report -in export.json -view totals -by provider
//	cat export.json | talky-report -tz Europe/Madrid
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"talky/internal/analytics"
	"talky/internal/core"
	applog "talky/internal/log"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "talky-report:", err)
		}
		os.Exit(2)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("talky-report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "-", "export file, or - for stdin")
	view := fs.String("view", "report", "report | monthly | totals | summary")
	by := fs.String("by", string(analytics.KeyCategory), "grouping field for -view totals: category | subcategory | provider")
	tz := fs.String("tz", "Local", "IANA time zone used to derive issue months")
	user := fs.String("user", "", "only include records with this userId")
	compact := fs.Bool("compact", false, "print compact JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return errUsage
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("invalid time zone %q: %w", *tz, err)
	}
	logger := applog.New(applog.Config{Level: slog.LevelWarn, Component: applog.ComponentAnalytics, Output: stderr})

	recs, err := readExport(*in, stdin)
	if err != nil {
		return err
	}
	if *user != "" {
		recs = filterUser(recs, *user)
	}

	engine := analytics.New(analytics.WithLocation(loc))
	if d := engine.Diagnose(recs); d.Skipped() {
		fields := applog.NewFields().WithDiagnostics(len(recs), d.MalformedAmounts, d.UnparseableDates)
		logger.Warn("Some records were degraded", fields.ToSlice()...)
	}

	var out any
	switch *view {
	case "report":
		out = engine.Report(recs)
	case "monthly":
		out = engine.MonthlyTotals(recs)
	case "summary":
		out = engine.SummaryStatistics(recs)
	case "totals":
		field, err := analytics.ParseKeyField(*by)
		if err != nil {
			return err
		}
		out, err = engine.GroupedTotals(recs, field)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown view %q", *view)
	}

	enc := json.NewEncoder(stdout)
	if !*compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}

func readExport(path string, stdin io.Reader) ([]core.ExpenseRecord, error) {
	if path == "-" {
		return core.DecodeExport(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return core.DecodeExport(f)
}

func filterUser(recs []core.ExpenseRecord, user string) []core.ExpenseRecord {
	out := recs[:0:0]
	for _, r := range recs {
		if r.UserID == user {
			out = append(out, r)
		}
	}
	return out
}
