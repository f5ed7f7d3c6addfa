package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/faaxis/advisor-calc/internal/firm"
	"github.com/faaxis/advisor-calc/internal/format"
	"github.com/faaxis/advisor-calc/internal/model"
	"github.com/faaxis/advisor-calc/internal/registry"
	"github.com/faaxis/advisor-calc/internal/resilience"
)

var firmsCmd = &cobra.Command{
	Use:   "firms",
	Short: "Maintain the firm deal registry",
}

var firmsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List firm deals in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		deals, err := st.ListDeals(ctx)
		if err != nil {
			return eris.Wrap(err, "firms list")
		}
		formatDeals(cmd.OutOrStdout(), deals)
		return nil
	},
}

var firmsShowCmd = &cobra.Command{
	Use:   "show <firm>",
	Short: "Show a firm's deal and parameters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		key, err := firmKeyArg(args[0])
		if err != nil {
			return err
		}
		deal, err := st.GetDeal(ctx, key)
		if err != nil {
			return eris.Wrapf(err, "firms show %s", key)
		}
		params, err := st.ListParameters(ctx, key)
		if err != nil {
			return eris.Wrapf(err, "firms show %s", key)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(firmResponse{Deal: *deal, Parameters: params})
	},
}

var firmsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Upsert deals and parameters from a YAML seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f, err := registry.LoadFile(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Import(ctx, f.Deals, f.Parameters); err != nil {
			return eris.Wrap(err, "firms import")
		}
		zap.L().Info("imported registry seed",
			zap.String("path", args[0]),
			zap.Int("deals", len(f.Deals)),
			zap.Int("params", len(f.Parameters)),
		)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d deals and %d parameters\n", len(f.Deals), len(f.Parameters))
		return nil
	},
}

var firmsSyncNotionCmd = &cobra.Command{
	Use:   "sync-notion",
	Short: "Copy deals and parameters from the Notion CMS into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := initNotion()
		if err != nil {
			return err
		}

		retry, _ := resilience.FromRegistryConfig(cfg.Registry)
		retry.OnRetry = resilience.LogRetries("notion")
		src := registry.NotionSource{Client: client, DealsDB: cfg.Notion.DealsDB, ParamsDB: cfg.Notion.ParamsDB}
		snap, err := registry.Load(ctx, src, retry)
		if err != nil {
			return eris.Wrap(err, "firms sync-notion")
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if dryRun {
			formatDeals(cmd.OutOrStdout(), snap.Deals())
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Import(ctx, snap.Deals(), snap.Parameters()); err != nil {
			return eris.Wrap(err, "firms sync-notion")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "synced %d deals and %d parameters\n", snap.Len(), len(snap.Parameters()))
		return nil
	},
}

var firmsDeleteCmd = &cobra.Command{
	Use:   "delete <firm> [param]",
	Short: "Delete a firm's deal and parameters, or one parameter",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		key, err := firmKeyArg(args[0])
		if err != nil {
			return err
		}
		if len(args) == 2 {
			if err := st.DeleteParameter(ctx, key, args[1]); err != nil {
				return eris.Wrapf(err, "firms delete %s %s", key, args[1])
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted parameter %s from %s\n", args[1], key)
			return nil
		}
		if err := st.DeleteDeal(ctx, key); err != nil {
			return eris.Wrapf(err, "firms delete %s", key)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", key)
		return nil
	},
}

func init() {
	firmsSyncNotionCmd.Flags().Bool("dry-run", false, "print what would be synced without writing")
	firmsCmd.AddCommand(firmsListCmd, firmsShowCmd, firmsImportCmd, firmsSyncNotionCmd, firmsDeleteCmd)
	rootCmd.AddCommand(firmsCmd)
}

// firmKeyArg maps a command-line firm name to the key its row is stored
// under. Unlisted names map to their own slug, not to the independent row.
func firmKeyArg(name string) (string, error) {
	key := firm.RowKey(name)
	if key == "" {
		return "", eris.Errorf("invalid firm name %q", name)
	}
	return key, nil
}

func formatDeals(out io.Writer, deals []model.FirmDeal) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tFIRM\tUPFRONT\tBACKEND\tTOTAL DEAL\tUPDATED")
	_, _ = fmt.Fprintln(w, "---\t----\t-------\t-------\t----------\t-------")
	for _, d := range deals {
		updated := ""
		if !d.UpdatedAt.IsZero() {
			updated = d.UpdatedAt.Format("2006-01-02")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Key,
			d.Firm,
			pctRange(d.UpfrontMin, d.UpfrontMax),
			pctRange(d.BackendMin, d.BackendMax),
			pctRange(d.TotalDealMin, d.TotalDealMax),
			updated,
		)
	}
	_ = w.Flush()
}

func pctRange(lo, hi float64) string {
	if lo == hi {
		return format.Percent(lo)
	}
	return format.Percent(lo) + " - " + format.Percent(hi)
}
