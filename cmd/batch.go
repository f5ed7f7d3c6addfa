package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/faaxis/advisor-calc/internal/export"
	"github.com/faaxis/advisor-calc/internal/format"
	"github.com/faaxis/advisor-calc/internal/model"
	"github.com/faaxis/advisor-calc/internal/normalize"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Project compensation for every advisor in a CSV or XLSX file",
	Long: `Reads one advisor per row. Column headers are calculator form field names
(aum, revenue, feeBasedPercentage, city, state, ...). Optional columns: "id"
and "firms" (firm names separated by ";").`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrent
		}

		rows, err := export.ReadAdvisors(input)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		// One registry read for the whole batch.
		snap, err := env.Service.Snapshot(ctx)
		if err != nil {
			return eris.Wrap(err, "batch")
		}

		entries, err := processBatch(ctx, rows, concurrency, func(a *model.AdvisorInfo, firms []string) (*model.CalculatorResults, error) {
			return env.Service.Project(snap, a, firms)
		})
		if err != nil {
			return err
		}

		return writeBatch(cmd.OutOrStdout(), output, entries)
	},
}

func init() {
	batchCmd.Flags().StringP("input", "i", "", "CSV or XLSX file of advisors")
	batchCmd.Flags().StringP("output", "o", "", "write results to .xlsx or .json (default: summary table)")
	batchCmd.Flags().Int("concurrency", 0, "parallel projections (default from config)")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

type projectFunc func(a *model.AdvisorInfo, firms []string) (*model.CalculatorResults, error)

// processBatch projects every row with bounded concurrency. A row that
// fails is logged and recorded on its entry; it never aborts the batch.
// Entries keep input order.
func processBatch(ctx context.Context, rows []export.Row, concurrency int, project projectFunc) ([]export.Entry, error) {
	entries := make([]export.Entry, len(rows))
	if len(rows) == 0 {
		zap.L().Info("no advisors in input")
		return entries, nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("advisors", len(rows)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, row := range rows {
		id, firms, form := splitRow(i, row)
		entries[i].ID = id

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "batch cancelled")
			}
			log := zap.L().With(zap.String("advisor", id))

			advisor, err := normalize.FromStrings(form)
			if err == nil {
				entries[i].Advisor = advisor
				entries[i].Results, err = project(advisor, firms)
			}
			if err != nil {
				failed.Add(1)
				entries[i].Err = err
				log.Error("projection failed", zap.Error(err))
				return nil
			}

			succeeded.Add(1)
			log.Debug("projection complete",
				zap.Int("firms", len(entries[i].Results.Firms)),
				zap.Float64("total_deal", entries[i].Results.Metrics.TotalDeal.Value),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return entries, nil
}

// splitRow separates the id and firms columns from the form fields.
func splitRow(i int, row export.Row) (id string, firms []string, form map[string]string) {
	form = make(map[string]string, len(row))
	for k, v := range row {
		switch strings.ToLower(k) {
		case "id":
			id = v
		case "firms":
			firms = splitAndTrim(v)
		default:
			form[k] = v
		}
	}
	if id == "" {
		id = fmt.Sprintf("row-%d", i+2) // 1-based, after the header
	}
	return id, firms, form
}

func splitAndTrim(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

type batchResult struct {
	ID      string                   `json:"id"`
	Results *model.CalculatorResults `json:"results,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

func writeBatch(out io.Writer, path string, entries []export.Entry) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case "":
		formatBatchSummary(out, entries)
		return nil
	case ".xlsx":
		if err := export.WriteXLSX(path, entries); err != nil {
			return err
		}
	case ".json":
		results := make([]batchResult, len(entries))
		for i, e := range entries {
			results[i] = batchResult{ID: e.ID, Results: e.Results}
			if e.Err != nil {
				results[i].Error = e.Err.Error()
			}
		}
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal batch results")
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return eris.Wrap(err, "write batch results")
		}
	default:
		return eris.Errorf("unsupported output format %q", filepath.Ext(path))
	}
	zap.L().Info("wrote batch results", zap.String("path", path), zap.Int("advisors", len(entries)))
	return nil
}

func formatBatchSummary(out io.Writer, entries []export.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tREVENUE\tBEST FIRM\tTOTAL DEAL\tCOMP DELTA\tERROR")
	_, _ = fmt.Fprintln(w, "--\t-------\t---------\t----------\t----------\t-----")

	for _, e := range entries {
		if e.Results == nil {
			errMsg := ""
			if e.Err != nil {
				errMsg = e.Err.Error()
				if len(errMsg) > 60 {
					errMsg = errMsg[:57] + "..."
				}
			}
			_, _ = fmt.Fprintf(w, "%s\t\t\t\t\t%s\n", e.ID, errMsg)
			continue
		}

		best := "-"
		if b := e.Results.Best(); b != nil {
			best = b.Firm
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			e.ID,
			format.Money(e.Results.Metrics.RecruitingRevenue.Value),
			best,
			format.Money(e.Results.Metrics.TotalDeal.Value),
			format.Money(e.Results.Metrics.TotalCompDelta.Value),
		)
	}
	_ = w.Flush()
}
