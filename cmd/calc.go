package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/faaxis/advisor-calc/internal/calculator"
	"github.com/faaxis/advisor-calc/internal/engine"
	"github.com/faaxis/advisor-calc/internal/export"
	"github.com/faaxis/advisor-calc/internal/format"
	"github.com/faaxis/advisor-calc/internal/model"
)

// calcFlags maps command-line flags onto calculator form fields.
var calcFlags = []struct {
	flag  string
	field string
	usage string
}{
	{"aum", "aum", "assets under management, e.g. 150,000,000"},
	{"revenue", "revenue", "trailing 12-month revenue"},
	{"fee-based", "feeBasedPercentage", "fee-based share of revenue (0-100)"},
	{"city", "city", "practice city"},
	{"state", "state", "practice state"},
	{"current-firm", "currentFirm", "current firm"},
	{"households", "households", "number of client households"},
	{"retention", "clientRetentionRate", "expected client retention (0-100)"},
	{"current-payout", "currentPayout", "current payout rate (0-100)"},
	{"growth", "targetAnnualGrowthRate", "target annual growth rate (0-100)"},
}

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Project compensation for one advisor",
	Example: `  faaxis calc --aum 150,000,000 --revenue 1,200,000 --fee-based 90 --city Charlotte --state NC --firm UBS --firm RBC
  faaxis calc --profile advisor.json --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		req, err := calcRequest(cmd)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Service.Calculate(ctx, req)
		if err != nil {
			return eris.Wrap(err, "calc")
		}

		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			if err := export.WriteXLSX(path, []export.Entry{{ID: "advisor", Results: res}}); err != nil {
				return err
			}
			zap.L().Info("wrote workbook", zap.String("path", path))
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printResults(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	addCalcFlags(calcCmd)
	rootCmd.AddCommand(calcCmd)
}

func addCalcFlags(cmd *cobra.Command) {
	for _, f := range calcFlags {
		cmd.Flags().String(f.flag, "", f.usage)
	}
	cmd.Flags().StringSlice("firm", nil, "firm to compare (repeatable; default all)")
	cmd.Flags().StringSlice("flag", nil, "practice flag to set: deferredComp, onADeal, banking, international, lending, smas")
	cmd.Flags().Bool("include-independent", false, "include the independent channel")
	cmd.Flags().String("profile", "", "JSON file with calculator form values")
	cmd.Flags().String("xlsx", "", "also write results to this workbook")
	cmd.Flags().Bool("json", false, "print results as JSON")
}

// calcRequest builds the form from --profile, then applies explicitly set
// flags on top.
func calcRequest(cmd *cobra.Command) (calculator.Request, error) {
	form := map[string]any{}

	if path, _ := cmd.Flags().GetString("profile"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return calculator.Request{}, eris.Wrap(err, "read profile")
		}
		if err := json.Unmarshal(data, &form); err != nil {
			return calculator.Request{}, eris.Wrapf(err, "parse profile %s", path)
		}
	}

	for _, f := range calcFlags {
		if cmd.Flags().Changed(f.flag) {
			v, _ := cmd.Flags().GetString(f.flag)
			form[f.field] = v
		}
	}
	flags, _ := cmd.Flags().GetStringSlice("flag")
	for _, name := range flags {
		form[name] = true
	}

	req := calculator.Request{Advisor: form}
	req.Firms, _ = cmd.Flags().GetStringSlice("firm")
	if cmd.Flags().Changed("include-independent") {
		v, _ := cmd.Flags().GetBool("include-independent")
		req.IncludeIndependent = &v
	}
	return req, nil
}

func printResults(out io.Writer, res *model.CalculatorResults) {
	m := res.Metrics
	_, _ = fmt.Fprintf(out, "Total deal:          %s  (%s)\n", format.Money(m.TotalDeal.Value), m.TotalDeal.Description)
	_, _ = fmt.Fprintf(out, "Recruiting revenue:  %s\n", format.Money(m.RecruitingRevenue.Value))
	_, _ = fmt.Fprintf(out, "Compensation delta:  %s  (%s)\n", format.Money(m.TotalCompDelta.Value), m.TotalCompDelta.Description)
	b := res.BackendBreakdown
	_, _ = fmt.Fprintf(out, "Backend breakdown:   growth %.0f%% / assets %.0f%% / length of service %.0f%%\n\n",
		b.Growth, b.Assets, b.LengthOfService)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIRM\tUPFRONT\tBACKEND\tTOTAL DEAL\tGRID\tYEARS\tCUMULATIVE")
	_, _ = fmt.Fprintln(w, "----\t-------\t-------\t----------\t----\t-----\t----------")
	for _, f := range res.Firms {
		_, _ = fmt.Fprintf(w, "%s\t%s (%s)\t%s (%s)\t%s\t%s\t%d\t%s\n",
			f.Firm,
			format.Money(f.Upfront), format.Percent(f.UpfrontPct),
			format.Money(f.Backend), format.Percent(f.BackendPct),
			format.Money(f.TotalDeal),
			format.Percent(f.GridPayoutPct),
			f.DealLength,
			format.Money(f.Cumulative),
		)
	}
	if n := len(res.ComparisonData); n > 0 {
		_, _ = fmt.Fprintf(w, "Stay (current firm)\t\t\t\t\t%d\t%s\n", res.Horizon, format.Money(res.ComparisonData[n-1].Value(engine.BaselineKey)))
	}
	_ = w.Flush()

	if len(res.OmittedFirms) > 0 {
		_, _ = fmt.Fprintf(out, "\nOmitted firms: %s\n", strings.Join(res.OmittedFirms, ", "))
	}
}
